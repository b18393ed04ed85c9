package oracle

import (
	"context"
	"fmt"
	"sync"
)

// Scripted replays canned answers per role in order. It backs offline runs
// and the run-loop tests.
type Scripted struct {
	mu      sync.Mutex
	answers map[Role][]string
	seen    []Request
}

// NewScripted returns an empty script.
func NewScripted() *Scripted {
	return &Scripted{answers: make(map[Role][]string)}
}

// On queues answers for role.
func (s *Scripted) On(role Role, answers ...string) *Scripted {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.answers[role] = append(s.answers[role], answers...)
	return s
}

// Decide pops the next answer for req.Role.
func (s *Scripted) Decide(ctx context.Context, req Request) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seen = append(s.seen, req)
	queue := s.answers[req.Role]
	if len(queue) == 0 {
		return "", fmt.Errorf("scripted oracle: no answer left for role %s", req.Role)
	}
	s.answers[req.Role] = queue[1:]
	return queue[0], nil
}

// Requests returns every request seen so far.
func (s *Scripted) Requests() []Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Request(nil), s.seen...)
}

// CallsFor counts requests seen for role.
func (s *Scripted) CallsFor(role Role) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, r := range s.seen {
		if r.Role == role {
			n++
		}
	}
	return n
}

// Remaining counts unused answers across all roles.
func (s *Scripted) Remaining() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, q := range s.answers {
		n += len(q)
	}
	return n
}
