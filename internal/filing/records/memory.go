package records

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"rrfiler/internal/filing/models"
	id "rrfiler/pkg/domain"
	"rrfiler/pkg/platform/sentinel"
)

// MemorySource serves records held in memory, optionally loaded from a JSON
// file containing an array of records.
type MemorySource struct {
	mu      sync.RWMutex
	records map[id.RecordID]models.TransactionRecord
}

func NewMemory(recs ...models.TransactionRecord) *MemorySource {
	m := &MemorySource{records: make(map[id.RecordID]models.TransactionRecord)}
	for _, r := range recs {
		m.Put(r)
	}
	return m
}

// LoadFile reads a JSON array of records.
func LoadFile(path string) (*MemorySource, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read records file: %w", err)
	}
	var recs []models.TransactionRecord
	if err := json.Unmarshal(data, &recs); err != nil {
		return nil, fmt.Errorf("decode records file %s: %w", path, err)
	}
	for i, r := range recs {
		if r.ID == "" {
			return nil, fmt.Errorf("records file %s: entry %d has no id", path, i)
		}
	}
	return NewMemory(recs...), nil
}

func (m *MemorySource) Put(rec models.TransactionRecord) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records[rec.ID] = rec
}

func (m *MemorySource) Get(_ context.Context, recordID id.RecordID) (*models.TransactionRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.records[recordID]
	if !ok {
		return nil, fmt.Errorf("record %s: %w", recordID, sentinel.ErrNotFound)
	}
	return &rec, nil
}
