// Package learning persists the mitigations discovered after failed subtasks
// so later runs can reuse them.
package learning

import (
	"context"
	"strings"
	"sync"
)

// Header lists the persisted columns in order.
var Header = []string{
	"ID",
	"Failed Subtask",
	"Failure Reason",
	"Agent Selected",
	"Reasoning for Agent Selection",
	"Task to Perform",
}

// Record is one learned mitigation.
type Record struct {
	ID             int    `json:"ID"`
	FailedSubtask  string `json:"Failed Subtask"`
	FailureReason  string `json:"Failure Reason"`
	AgentSelected  string `json:"Agent Selected"`
	Reasoning      string `json:"Reasoning for Agent Selection"`
	MitigationTask string `json:"Task to Perform"`
}

// Store reads and appends learning records. Append assigns the ID.
type Store interface {
	ReadAll(ctx context.Context) ([]Record, error)
	Append(ctx context.Context, r Record) (int, error)
}

// NextID returns max(ID)+1, or 1 for an empty set.
func NextID(records []Record) int {
	max := 0
	for _, r := range records {
		if r.ID > max {
			max = r.ID
		}
	}
	return max + 1
}

// Prioritize returns records with those whose failed subtask matches subtask
// first, preserving the relative order within each group.
func Prioritize(records []Record, subtask string) []Record {
	want := normalize(subtask)
	out := make([]Record, 0, len(records))
	var rest []Record
	for _, r := range records {
		if want != "" && normalize(r.FailedSubtask) == want {
			out = append(out, r)
		} else {
			rest = append(rest, r)
		}
	}
	return append(out, rest...)
}

func normalize(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}

// Memory is an in-process Store.
type Memory struct {
	mu      sync.Mutex
	records []Record
}

// NewMemory creates a Memory store seeded with records.
func NewMemory(records ...Record) *Memory {
	return &Memory{records: append([]Record(nil), records...)}
}

func (m *Memory) ReadAll(context.Context) ([]Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Record(nil), m.records...), nil
}

func (m *Memory) Append(_ context.Context, r Record) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r.ID = NextID(m.records)
	m.records = append(m.records, r)
	return r.ID, nil
}
