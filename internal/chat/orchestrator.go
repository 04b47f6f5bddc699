// Package chat drives a full conversational turn: prompt assembly,
// provider call, history bookkeeping, and the persistence and
// summarization policy around it.
package chat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/emberworks/npchat/internal/brain"
	"github.com/emberworks/npchat/internal/config"
	"github.com/emberworks/npchat/internal/memory"
	"github.com/emberworks/npchat/internal/observability"
	"github.com/emberworks/npchat/internal/session"
	"github.com/emberworks/npchat/internal/storage"
	"github.com/emberworks/npchat/internal/summarizer"
)

var (
	// ErrValidation rejects requests with missing or malformed fields
	// before any side effect.
	ErrValidation = errors.New("invalid request")
	// ErrSessionNotFound is returned by session-end operations for
	// users with no live session.
	ErrSessionNotFound = errors.New("no live session")
)

// MemoryFullReply is the sentinel reply sent when the fact buffer is
// saturated. The game client matches on this exact string, so it is
// part of the wire contract, not an error.
const MemoryFullReply = "MEMORY_FULL"

const factExtractionPrompt = "Extract at most one short persistent fact about the player from the message. Reply with the fact only, or NONE when there is nothing worth remembering."

// Orchestrator composes the session manager, completion provider,
// summarizer and the two file stores into the chat operations exposed
// over HTTP.
type Orchestrator struct {
	cfg          config.Config
	sessions     *session.Manager
	provider     brain.Provider
	summarizer   *summarizer.Summarizer
	rawStore     *storage.FileStore
	summaryStore *storage.FileStore
	metrics      *observability.Metrics
	loc          *time.Location
	now          func() time.Time
}

func New(
	cfg config.Config,
	sessions *session.Manager,
	provider brain.Provider,
	sum *summarizer.Summarizer,
	rawStore, summaryStore *storage.FileStore,
	metrics *observability.Metrics,
) *Orchestrator {
	loc := time.UTC
	if cfg.TimeContextEnabled {
		if l, err := time.LoadLocation(cfg.TimeContextZone); err == nil {
			loc = l
		} else {
			log.Printf("invalid time context zone %q, falling back to UTC: %v", cfg.TimeContextZone, err)
		}
	}
	return &Orchestrator{
		cfg:          cfg,
		sessions:     sessions,
		provider:     provider,
		summarizer:   sum,
		rawStore:     rawStore,
		summaryStore: summaryStore,
		metrics:      metrics,
		loc:          loc,
		now:          time.Now,
	}
}

// Chat runs one conversational turn for userID and returns the
// assistant reply. The per-user session lock is held for the whole
// turn, provider call included; history is mutated only when the turn
// fully succeeds.
func (o *Orchestrator) Chat(ctx context.Context, userID, message, clientMemory string) (string, error) {
	if strings.TrimSpace(userID) == "" || strings.TrimSpace(message) == "" {
		return "", fmt.Errorf("%w: userId and message are required", ErrValidation)
	}
	if !storage.ValidUserID(userID) {
		return "", fmt.Errorf("%w: malformed userId %q", ErrValidation, userID)
	}

	sess := o.sessions.Acquire(userID)
	defer sess.Release()
	o.metrics.ActiveSessions.Set(float64(o.sessions.ActiveCount()))
	o.hydrate(sess)

	if o.cfg.FactExtraction == config.FactExtractionKeyword {
		if fact, ok := memory.ExtractFact(message); ok {
			return o.learnFact(sess, message, fact), nil
		}
	}

	req := o.buildRequest(sess, message, clientMemory)

	cctx, cancel := context.WithTimeout(ctx, o.cfg.BrainTimeout)
	defer cancel()
	start := o.now()
	resp, err := o.provider.Complete(cctx, req)
	o.metrics.ObserveProviderLatency(o.now().Sub(start))
	if err != nil {
		o.metrics.ChatTurns.WithLabelValues("provider_error").Inc()
		return "", err
	}

	sess.Append(
		session.Turn{Role: session.RoleUser, Content: message},
		session.Turn{Role: session.RoleAssistant, Content: resp.Text},
	)
	o.metrics.ChatTurns.WithLabelValues("ok").Inc()

	if o.cfg.FactExtraction == config.FactExtractionLLM {
		o.extractFactLLM(ctx, sess, message)
	}

	return resp.Text, nil
}

// learnFact handles an explicit "remember ..." message locally,
// without a provider round trip. A saturated buffer yields the
// capacity sentinel and leaves both buffer and history untouched.
func (o *Orchestrator) learnFact(sess *session.Session, message, fact string) string {
	if sess.Facts.Full() {
		o.metrics.ChatTurns.WithLabelValues("memory_full").Inc()
		return MemoryFullReply
	}

	sess.Facts.Add(fact)
	o.metrics.FactsStored.Inc()

	var reply string
	if max := sess.Facts.Max(); max > 0 {
		reply = fmt.Sprintf("Okay, I'll remember that. (%d/%d)", sess.Facts.Len(), max)
	} else {
		reply = fmt.Sprintf("Okay, I'll remember that. (%d)", sess.Facts.Len())
	}
	sess.Append(
		session.Turn{Role: session.RoleUser, Content: message},
		session.Turn{Role: session.RoleAssistant, Content: reply},
	)
	o.metrics.ChatTurns.WithLabelValues("fact_stored").Inc()
	return reply
}

// extractFactLLM runs the per-turn provider-based extraction path.
// It is best-effort and never fails the turn that triggered it.
func (o *Orchestrator) extractFactLLM(ctx context.Context, sess *session.Session, message string) {
	if sess.Facts.Full() {
		return
	}
	cctx, cancel := context.WithTimeout(ctx, o.cfg.BrainTimeout)
	defer cancel()
	resp, err := o.provider.Complete(cctx, brain.Request{
		System:    []string{factExtractionPrompt},
		Messages:  []brain.Message{{Role: session.RoleUser, Content: message}},
		MaxTokens: 100,
	})
	if err != nil {
		log.Printf("fact extraction for %s failed: %v", sess.UserID, err)
		return
	}
	fact := strings.TrimSpace(resp.Text)
	if fact == "" || strings.EqualFold(fact, "NONE") {
		return
	}
	sess.Facts.Add(fact)
	o.metrics.FactsStored.Inc()
}

// hydrate pulls previously persisted memory into a fresh session,
// preferring the summarized document over the raw transcript. It is
// advisory: a chat turn never dies because old memory could not be read.
func (o *Orchestrator) hydrate(sess *session.Session) {
	if sess.Hydrated {
		return
	}
	sess.Hydrated = true

	data, ok, err := o.summaryStore.Load(sess.UserID)
	if err != nil {
		o.metrics.StoreErrors.WithLabelValues("hydrate").Inc()
		log.Printf("hydrate %s: %v", sess.UserID, err)
		return
	}
	if ok {
		sess.Persisted = renderPersisted(data)
		return
	}
	raw, ok, err := o.rawStore.Load(sess.UserID)
	if err != nil {
		o.metrics.StoreErrors.WithLabelValues("hydrate").Inc()
		log.Printf("hydrate %s: %v", sess.UserID, err)
		return
	}
	if ok {
		sess.Persisted = strings.TrimSpace(string(raw))
	}
}

// renderPersisted flattens a stored summary document into a single
// prompt line.
func renderPersisted(data []byte) string {
	var doc any
	if err := json.Unmarshal(data, &doc); err != nil {
		return strings.TrimSpace(string(data))
	}
	if s, ok := doc.(string); ok {
		return strings.TrimSpace(s)
	}
	compact, err := json.Marshal(doc)
	if err != nil {
		return strings.TrimSpace(string(data))
	}
	return string(compact)
}

// buildRequest assembles the prompt in a fixed order so identical
// session state always produces an identical request: persona first,
// then wall-clock context, then persisted memory, then remembered
// facts oldest first, then prior turns, then the new user message last.
func (o *Orchestrator) buildRequest(sess *session.Session, message, clientMemory string) brain.Request {
	req := brain.Request{MaxTokens: o.cfg.BrainMaxReplyTokens}
	req.System = append(req.System, o.cfg.PersonaPrompt)

	if o.cfg.TimeContextEnabled {
		now := o.now().In(o.loc)
		req.System = append(req.System, "Current date and time: "+now.Format("Monday, January 2, 2006 at 15:04 (MST)"))
	}

	memoryLine := strings.TrimSpace(clientMemory)
	if memoryLine == "" {
		memoryLine = sess.Persisted
	}
	if memoryLine != "" {
		req.System = append(req.System, "Player memory: "+memoryLine)
	}
	for _, fact := range sess.Facts.Facts() {
		req.System = append(req.System, "Remembered fact: "+fact)
	}

	for _, t := range sess.History {
		req.Messages = append(req.Messages, brain.Message{Role: t.Role, Content: t.Content})
	}
	req.Messages = append(req.Messages, brain.Message{Role: session.RoleUser, Content: message})
	return req
}

// SaveMemory persists the client-supplied memory blob. With
// summarize-on-save enabled the blob is first compressed and stored
// alongside the original; a summarizer failure falls back to the plain
// save and never fails the request.
func (o *Orchestrator) SaveMemory(ctx context.Context, userID string, memoryBlob json.RawMessage) error {
	if strings.TrimSpace(userID) == "" || len(memoryBlob) == 0 {
		return fmt.Errorf("%w: userId and memory are required", ErrValidation)
	}
	if !storage.ValidUserID(userID) {
		return fmt.Errorf("%w: malformed userId %q", ErrValidation, userID)
	}

	payload := []byte(memoryBlob)
	if o.cfg.SummarizeOnSave {
		cctx, cancel := context.WithTimeout(ctx, o.cfg.BrainTimeout)
		summary, err := o.summarizer.Summarize(cctx, string(memoryBlob))
		cancel()
		switch {
		case err != nil:
			o.metrics.Summaries.WithLabelValues("save", "error").Inc()
			log.Printf("summarize-on-save for %s failed: %v", userID, err)
		case summary != "":
			envelope, mErr := json.Marshal(map[string]json.RawMessage{
				"summary": jsonString(summary),
				"memory":  memoryBlob,
			})
			if mErr == nil {
				payload = envelope
				o.metrics.Summaries.WithLabelValues("save", "ok").Inc()
			}
		}
	}

	if err := o.rawStore.Save(userID, payload); err != nil {
		o.metrics.StoreErrors.WithLabelValues("save").Inc()
		return err
	}
	return nil
}

// LoadMemory returns the persisted raw memory for userID. An absent
// file is (nil, nil): the HTTP layer renders it as a null memory,
// never as an error.
func (o *Orchestrator) LoadMemory(userID string) (json.RawMessage, error) {
	if strings.TrimSpace(userID) == "" || !storage.ValidUserID(userID) {
		return nil, fmt.Errorf("%w: malformed userId %q", ErrValidation, userID)
	}
	data, ok, err := o.rawStore.Load(userID)
	if err != nil {
		o.metrics.StoreErrors.WithLabelValues("load").Inc()
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	if json.Valid(data) {
		return json.RawMessage(data), nil
	}
	// Plain transcripts round-trip as a JSON string.
	return jsonString(string(data)), nil
}

// Summarize compresses memoryText and persists both the raw text and
// the summary under their respective roots. Unlike the advisory save
// path, failures surface to the caller: this operation is the request.
func (o *Orchestrator) Summarize(ctx context.Context, userID, memoryText string) (json.RawMessage, error) {
	if strings.TrimSpace(userID) == "" || !storage.ValidUserID(userID) {
		return nil, fmt.Errorf("%w: malformed userId %q", ErrValidation, userID)
	}

	if err := o.rawStore.Save(userID, []byte(memoryText)); err != nil {
		o.metrics.StoreErrors.WithLabelValues("save").Inc()
		return nil, err
	}

	cctx, cancel := context.WithTimeout(ctx, o.cfg.BrainTimeout)
	defer cancel()
	summary, err := o.summarizeAs(cctx, memoryText)
	if err != nil {
		o.metrics.Summaries.WithLabelValues("explicit", "error").Inc()
		return nil, err
	}
	if len(summary) == 0 {
		o.metrics.Summaries.WithLabelValues("explicit", "ok").Inc()
		return jsonString(""), nil
	}
	if err := o.summaryStore.Save(userID, summary); err != nil {
		o.metrics.StoreErrors.WithLabelValues("save").Inc()
		return nil, err
	}
	o.metrics.Summaries.WithLabelValues("explicit", "ok").Inc()
	return summary, nil
}

// PlayerLeft closes the live session: the full history is summarized,
// the summary persisted, and the in-memory session discarded. The
// persisted summary is what a future session rehydrates from. On
// summarization failure the session stays live so nothing is lost.
func (o *Orchestrator) PlayerLeft(ctx context.Context, playerID string) (json.RawMessage, error) {
	if strings.TrimSpace(playerID) == "" || !storage.ValidUserID(playerID) {
		return nil, fmt.Errorf("%w: malformed playerId %q", ErrValidation, playerID)
	}

	sess := o.sessions.Peek(playerID)
	if sess == nil {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, playerID)
	}

	transcript := renderTranscript(sess)

	cctx, cancel := context.WithTimeout(ctx, o.cfg.BrainTimeout)
	defer cancel()
	summary, err := o.summarizeAs(cctx, transcript)
	if err != nil {
		sess.Release()
		o.metrics.Summaries.WithLabelValues("session_end", "error").Inc()
		return nil, err
	}
	if len(summary) > 0 {
		if err := o.summaryStore.Save(playerID, summary); err != nil {
			sess.Release()
			o.metrics.StoreErrors.WithLabelValues("save").Inc()
			return nil, err
		}
	}

	o.sessions.Remove(sess)
	o.metrics.ActiveSessions.Set(float64(o.sessions.ActiveCount()))
	o.metrics.Summaries.WithLabelValues("session_end", "ok").Inc()

	if len(summary) == 0 {
		summary = jsonString("")
	}
	return summary, nil
}

// summarizeAs runs the configured summary format and always returns
// the result as a JSON value, so both formats persist and serialize
// the same way.
func (o *Orchestrator) summarizeAs(ctx context.Context, content string) (json.RawMessage, error) {
	if o.cfg.SummaryFormat == config.SummaryFormatJSON {
		return o.summarizer.SummarizeJSON(ctx, content)
	}
	text, err := o.summarizer.Summarize(ctx, content)
	if err != nil {
		return nil, err
	}
	if text == "" {
		return nil, nil
	}
	return jsonString(text), nil
}

// renderTranscript flattens a session's facts and history into
// summarizer input.
func renderTranscript(sess *session.Session) string {
	var sb strings.Builder
	if facts := sess.Facts.Render(); facts != "" {
		fmt.Fprintf(&sb, "Known facts: %s\n", facts)
	}
	for _, t := range sess.History {
		fmt.Fprintf(&sb, "[%s]: %s\n", t.Role, t.Content)
	}
	return sb.String()
}

func jsonString(s string) json.RawMessage {
	out, _ := json.Marshal(s)
	return json.RawMessage(out)
}
