package gateway

import (
	"context"
	"errors"
	"sync"
)

// ErrStubExhausted indicates a scripted stub ran out of responses.
var ErrStubExhausted = errors.New("stub gateway: no scripted responses remaining")

// Stub is a scripted Gateway for tests and offline runs. It records every
// request it receives and either pops scripted responses in order or
// delegates to a response function.
type Stub struct {
	mu        sync.Mutex
	responses []string
	fn        func(Request) (string, error)
	calls     []Request
}

// NewStub returns a Stub that replays the given responses in order and
// fails with ErrStubExhausted once they run out.
func NewStub(responses ...string) *Stub {
	return &Stub{responses: append([]string(nil), responses...)}
}

// NewStubFunc returns a Stub that computes each response from the request.
func NewStubFunc(fn func(Request) (string, error)) *Stub {
	return &Stub{fn: fn}
}

// Complete records the request and returns the next scripted response.
func (s *Stub) Complete(ctx context.Context, req Request) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	recorded := req
	recorded.Messages = append([]Message(nil), req.Messages...)
	s.calls = append(s.calls, recorded)

	if s.fn != nil {
		return s.fn(req)
	}
	if len(s.responses) == 0 {
		return "", ErrStubExhausted
	}
	resp := s.responses[0]
	s.responses = s.responses[1:]
	return resp, nil
}

// Calls returns a copy of every request received so far.
func (s *Stub) Calls() []Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Request(nil), s.calls...)
}

// CallCount returns how many requests have been received.
func (s *Stub) CallCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.calls)
}

// Ensure Stub implements Gateway.
var _ Gateway = (*Stub)(nil)
