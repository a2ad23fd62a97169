package memory

import (
	"context"
	"sync"
)

type txKey struct{}

type lockMode int

const (
	lockShared lockMode = iota + 1
	lockExclusive
)

// tx holds the row locks taken by one WithTx call and the undo log of its
// writes. Locks are released, in reverse order, when the call returns.
type tx struct {
	held    map[string]lockMode
	unlocks []func()
	undo    []func()
}

func txFromContext(ctx context.Context) *tx {
	t, _ := ctx.Value(txKey{}).(*tx)
	return t
}

func (s *Store) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if txFromContext(ctx) != nil {
		return fn(ctx)
	}

	t := &tx{held: make(map[string]lockMode)}
	committed := false
	// Runs on panic too, so a failed call never leaves a row locked.
	defer func() {
		if !committed {
			s.mu.Lock()
			for i := len(t.undo) - 1; i >= 0; i-- {
				t.undo[i]()
			}
			s.mu.Unlock()
		}
		for i := len(t.unlocks) - 1; i >= 0; i-- {
			t.unlocks[i]()
		}
	}()

	if err := fn(context.WithValue(ctx, txKey{}, t)); err != nil {
		return err
	}
	committed = true
	return nil
}

// lockSession takes the session row lock for the rest of the transaction.
// Outside a transaction it is a no-op, like a locking read in autocommit.
func (s *Store) lockSession(ctx context.Context, id string, mode lockMode) {
	t := txFromContext(ctx)
	if t == nil {
		return
	}
	key := "session:" + id
	held := t.held[key]
	if held >= mode {
		return
	}
	if held == lockShared {
		panic("memory: cannot upgrade shared session lock " + id)
	}

	s.locksMu.Lock()
	l, ok := s.sessionLocks[id]
	if !ok {
		l = &sync.RWMutex{}
		s.sessionLocks[id] = l
	}
	s.locksMu.Unlock()

	if mode == lockExclusive {
		l.Lock()
		t.unlocks = append(t.unlocks, l.Unlock)
	} else {
		l.RLock()
		t.unlocks = append(t.unlocks, l.RUnlock)
	}
	t.held[key] = mode
}

func (s *Store) lockBatch(ctx context.Context, id string) {
	t := txFromContext(ctx)
	if t == nil {
		return
	}
	key := "batch:" + id
	if _, ok := t.held[key]; ok {
		return
	}

	s.locksMu.Lock()
	l, ok := s.batchLocks[id]
	if !ok {
		l = &sync.Mutex{}
		s.batchLocks[id] = l
	}
	s.locksMu.Unlock()

	l.Lock()
	t.unlocks = append(t.unlocks, l.Unlock)
	t.held[key] = lockExclusive
}

// record registers how to revert a write. Caller holds s.mu.
func record(ctx context.Context, undo func()) {
	if t := txFromContext(ctx); t != nil {
		t.undo = append(t.undo, undo)
	}
}
