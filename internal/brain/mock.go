package brain

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// MockProvider returns deterministic replies for tests and keyless
// local runs.
type MockProvider struct {
	mu      sync.Mutex
	delay   time.Duration
	fail    error
	replies []string
	calls   []Request
}

func NewMockProvider() *MockProvider { return &MockProvider{} }

func (p *MockProvider) Name() string { return "mock" }

// QueueReply enqueues a canned reply; replies are consumed in order.
func (p *MockProvider) QueueReply(text string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.replies = append(p.replies, text)
}

// FailWith makes every following call fail with err. Pass nil to heal.
func (p *MockProvider) FailWith(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.fail = err
}

// SetDelay stalls each call, used to exercise timeouts and interleaving.
func (p *MockProvider) SetDelay(d time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.delay = d
}

// Calls returns a copy of every request seen so far.
func (p *MockProvider) Calls() []Request {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]Request, len(p.calls))
	copy(out, p.calls)
	return out
}

func (p *MockProvider) Complete(ctx context.Context, req Request) (Response, error) {
	p.mu.Lock()
	p.calls = append(p.calls, req)
	fail := p.fail
	delay := p.delay
	var reply string
	if len(p.replies) > 0 {
		reply = p.replies[0]
		p.replies = p.replies[1:]
	}
	p.mu.Unlock()

	if delay > 0 {
		select {
		case <-ctx.Done():
			return Response{}, fmt.Errorf("%w: %v", ErrProvider, ctx.Err())
		case <-time.After(delay):
		}
	}
	if fail != nil {
		return Response{}, fmt.Errorf("%w: %v", ErrProvider, fail)
	}
	if reply == "" {
		last := ""
		if len(req.Messages) > 0 {
			last = req.Messages[len(req.Messages)-1].Content
		}
		reply = fmt.Sprintf("(mock) you said: %s", last)
	}
	return Response{Text: reply}, nil
}
