package repository

import (
	"context"
	"sync"
)

// MemoryKeyLedger keeps keys for the lifetime of the process
type MemoryKeyLedger struct {
	mu   sync.RWMutex
	keys map[int64][]string
}

func NewMemoryKeyLedger() *MemoryKeyLedger {
	return &MemoryKeyLedger{keys: make(map[int64][]string)}
}

func (l *MemoryKeyLedger) Record(_ context.Context, attachmentID int64, keys []string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.keys[attachmentID] = append([]string(nil), keys...)
	return nil
}

func (l *MemoryKeyLedger) Lookup(_ context.Context, attachmentID int64) ([]string, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return append([]string{}, l.keys[attachmentID]...), nil
}

func (l *MemoryKeyLedger) Forget(_ context.Context, attachmentID int64) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.keys, attachmentID)
	return nil
}
