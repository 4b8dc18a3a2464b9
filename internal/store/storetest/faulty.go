// Package storetest provides adapter wrappers for exercising failure paths.
package storetest

import (
	"context"
	"errors"
	"sync"

	"github.com/hpungsan/willow/internal/store"
)

// ErrInjected is returned by a Faulty adapter when a failure is scheduled.
var ErrInjected = errors.New("injected store failure")

// Op names an adapter operation.
type Op string

const (
	OpFind   Op = "find"
	OpInsert Op = "insert"
	OpUpdate Op = "update"
	OpDelete Op = "delete"
)

// Call records one adapter call seen by a Faulty adapter.
type Call struct {
	Op     Op
	Entity store.Entity
}

// Faulty wraps an adapter and fails selected calls on demand.
// It deliberately does not forward AtomicSwapper so the two-step protocol
// is used against it.
type Faulty struct {
	inner store.Adapter

	mu    sync.Mutex
	fail  map[Call]int
	calls []Call
}

// NewFaulty wraps inner.
func NewFaulty(inner store.Adapter) *Faulty {
	return &Faulty{inner: inner, fail: make(map[Call]int)}
}

// FailNext makes the next n calls of op on entity return ErrInjected.
func (f *Faulty) FailNext(op Op, entity store.Entity, n int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fail[Call{op, entity}] += n
}

// Calls returns every call made so far, in order.
func (f *Faulty) Calls() []Call {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Call(nil), f.calls...)
}

// Writes counts insert, update, and delete calls.
func (f *Faulty) Writes() int {
	n := 0
	for _, c := range f.Calls() {
		if c.Op != OpFind {
			n++
		}
	}
	return n
}

// Reset forgets recorded calls and pending failures.
func (f *Faulty) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = nil
	f.fail = make(map[Call]int)
}

func (f *Faulty) record(op Op, entity store.Entity) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	c := Call{op, entity}
	f.calls = append(f.calls, c)
	if f.fail[c] > 0 {
		f.fail[c]--
		return ErrInjected
	}
	return nil
}

func (f *Faulty) Find(ctx context.Context, entity store.Entity, filter store.Filter) ([]store.Row, error) {
	if err := f.record(OpFind, entity); err != nil {
		return nil, err
	}
	return f.inner.Find(ctx, entity, filter)
}

func (f *Faulty) Insert(ctx context.Context, entity store.Entity, row store.Row) (string, error) {
	if err := f.record(OpInsert, entity); err != nil {
		return "", err
	}
	return f.inner.Insert(ctx, entity, row)
}

func (f *Faulty) Update(ctx context.Context, entity store.Entity, filter store.Filter, patch store.Row) (int64, error) {
	if err := f.record(OpUpdate, entity); err != nil {
		return 0, err
	}
	return f.inner.Update(ctx, entity, filter, patch)
}

func (f *Faulty) Delete(ctx context.Context, entity store.Entity, filter store.Filter) (int64, error) {
	if err := f.record(OpDelete, entity); err != nil {
		return 0, err
	}
	return f.inner.Delete(ctx, entity, filter)
}
