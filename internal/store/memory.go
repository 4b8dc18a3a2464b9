package store

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"
)

var _ Adapter = (*Memory)(nil)

// Memory is an in-process Adapter for tests and ephemeral runs.
// It has no atomic swap; the core falls back to the two-step protocol.
type Memory struct {
	mu     sync.RWMutex
	tables map[Entity][]Row
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{tables: make(map[Entity][]Row)}
}

func (m *Memory) Find(_ context.Context, entity Entity, filter Filter) ([]Row, error) {
	if err := CheckColumns(entity, filter); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []Row
	for _, row := range m.tables[entity] {
		if filter.Matches(row) {
			out = append(out, row.Clone())
		}
	}
	slices.SortStableFunc(out, compareCreated)
	return out, nil
}

func (m *Memory) Insert(_ context.Context, entity Entity, row Row) (string, error) {
	prepared, err := PrepareInsert(entity, row)
	if err != nil {
		return "", err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	id := prepared.String("id")
	for _, existing := range m.tables[entity] {
		if existing.String("id") == id {
			return "", fmt.Errorf("duplicate id %s in %s", id, entity)
		}
	}
	m.tables[entity] = append(m.tables[entity], prepared)
	return id, nil
}

func (m *Memory) Update(_ context.Context, entity Entity, filter Filter, patch Row) (int64, error) {
	if len(filter) == 0 {
		return 0, fmt.Errorf("update %s: filter must not be empty", entity)
	}
	if err := CheckColumns(entity, filter); err != nil {
		return 0, err
	}
	if err := CheckColumns(entity, patch); err != nil {
		return 0, err
	}
	if _, ok := patch["id"]; ok {
		return 0, fmt.Errorf("id is immutable")
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	var n int64
	for _, row := range m.tables[entity] {
		if filter.Matches(row) {
			for k, v := range patch {
				row[k] = v
			}
			n++
		}
	}
	return n, nil
}

func (m *Memory) Delete(_ context.Context, entity Entity, filter Filter) (int64, error) {
	if len(filter) == 0 {
		return 0, fmt.Errorf("delete %s: filter must not be empty", entity)
	}
	if err := CheckColumns(entity, filter); err != nil {
		return 0, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	rows := m.tables[entity]
	kept := rows[:0]
	var n int64
	for _, row := range rows {
		if filter.Matches(row) {
			n++
			continue
		}
		kept = append(kept, row)
	}
	m.tables[entity] = kept
	return n, nil
}

func compareCreated(a, b Row) int {
	if c := a.Int("created_at") - b.Int("created_at"); c != 0 {
		if c < 0 {
			return -1
		}
		return 1
	}
	return strings.Compare(a.String("id"), b.String("id"))
}
