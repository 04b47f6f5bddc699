// Package memory implements the bounded per-user fact buffer and the
// local fact extraction heuristic.
package memory

import "strings"

// rememberKeyword triggers local fact extraction, case-insensitive.
const rememberKeyword = "remember"

// renderSeparator joins facts when flattened into a prompt line.
const renderSeparator = "; "

// ExtractFact returns the fact embedded in message, if any: everything
// after the first occurrence of the trigger keyword, trimmed. It is a
// pure local heuristic and never touches the provider.
func ExtractFact(message string) (string, bool) {
	idx := strings.Index(strings.ToLower(message), rememberKeyword)
	if idx < 0 {
		return "", false
	}
	fact := strings.TrimSpace(message[idx+len(rememberKeyword):])
	if fact == "" {
		return "", false
	}
	return fact, true
}

// FactBuffer is a bounded FIFO of short remembered facts. A max of 0
// disables the cap. It is not safe for concurrent use on its own; the
// owning session's lock guards it.
type FactBuffer struct {
	max   int
	facts []string
}

func NewFactBuffer(max int) *FactBuffer {
	if max < 0 {
		max = 0
	}
	return &FactBuffer{max: max}
}

// Add appends fact, evicting the oldest entry first when the buffer is
// at capacity. The buffer never exceeds its cap after any mutation.
func (b *FactBuffer) Add(fact string) {
	if b.max > 0 && len(b.facts) >= b.max {
		drop := len(b.facts) - b.max + 1
		b.facts = append(b.facts[:0], b.facts[drop:]...)
	}
	b.facts = append(b.facts, fact)
}

// Full reports whether the buffer is at capacity. An uncapped buffer
// is never full.
func (b *FactBuffer) Full() bool {
	return b.max > 0 && len(b.facts) >= b.max
}

func (b *FactBuffer) Len() int { return len(b.facts) }

func (b *FactBuffer) Max() int { return b.max }

// Facts returns the remembered facts in insertion order, oldest first.
func (b *FactBuffer) Facts() []string {
	out := make([]string, len(b.facts))
	copy(out, b.facts)
	return out
}

// Render flattens the buffer for prompt inclusion. An empty buffer
// renders as the empty string so callers can omit the memory line
// entirely.
func (b *FactBuffer) Render() string {
	return strings.Join(b.facts, renderSeparator)
}
