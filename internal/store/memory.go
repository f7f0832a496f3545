// internal/store/memory.go
package store

import (
	"context"
	"sync"

	"github.com/Badis-tech/autoapply/api/schemas"
)

// Memory is a mutex-guarded map store. Everything stored and returned is a
// defensive copy so callers can keep mutating their records without aliasing
// the store's state.
type Memory struct {
	mu         sync.RWMutex
	schemas    map[string]schemas.FormSchema
	candidates map[string]schemas.Candidate
	records    map[string]schemas.ApplicationRecord
}

var _ Repository = (*Memory)(nil)

// NewMemory returns an empty in-memory repository.
func NewMemory() *Memory {
	return &Memory{
		schemas:    map[string]schemas.FormSchema{},
		candidates: map[string]schemas.Candidate{},
		records:    map[string]schemas.ApplicationRecord{},
	}
}

func (m *Memory) SaveSchema(_ context.Context, schema *schemas.FormSchema) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *schema
	cp.Fields = append([]schemas.FieldDescriptor(nil), schema.Fields...)
	m.schemas[schema.ID] = cp
	return nil
}

func (m *Memory) GetSchema(_ context.Context, id string) (*schemas.FormSchema, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.schemas[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := s
	cp.Fields = append([]schemas.FieldDescriptor(nil), s.Fields...)
	return &cp, nil
}

func (m *Memory) SaveCandidate(_ context.Context, candidate schemas.Candidate) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	candidate.Certifications = append([]string(nil), candidate.Certifications...)
	candidate.Languages = append([]string(nil), candidate.Languages...)
	m.candidates[candidate.ID] = candidate
	return nil
}

func (m *Memory) GetCandidate(_ context.Context, id string) (schemas.Candidate, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.candidates[id]
	if !ok {
		return schemas.Candidate{}, ErrNotFound
	}
	c.Certifications = append([]string(nil), c.Certifications...)
	c.Languages = append([]string(nil), c.Languages...)
	return c, nil
}

func (m *Memory) SaveApplication(_ context.Context, rec *schemas.ApplicationRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records[rec.ID] = copyRecord(rec)
	return nil
}

func (m *Memory) GetApplication(_ context.Context, id string) (*schemas.ApplicationRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.records[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := copyRecord(&r)
	return &cp, nil
}

func (m *Memory) ListApplicationsByStatus(_ context.Context, status schemas.ApplicationStatus) ([]*schemas.ApplicationRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*schemas.ApplicationRecord
	for _, r := range m.records {
		if r.Status != status {
			continue
		}
		cp := copyRecord(&r)
		out = append(out, &cp)
	}
	return out, nil
}

func copyRecord(rec *schemas.ApplicationRecord) schemas.ApplicationRecord {
	cp := *rec
	if rec.SubmittedAt != nil {
		t := *rec.SubmittedAt
		cp.SubmittedAt = &t
	}
	if rec.SubmittedValues != nil {
		cp.SubmittedValues = make(map[string]string, len(rec.SubmittedValues))
		for k, v := range rec.SubmittedValues {
			cp.SubmittedValues[k] = v
		}
	}
	return cp
}
