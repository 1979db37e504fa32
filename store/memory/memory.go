// Package memory provides an in-memory store.Store, used by tests and by
// one-shot CLI runs that need no persistence.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/lvillar/pdfmerge/store"
)

// Ensure Store implements the interface.
var _ store.Store = (*Store)(nil)

// Store is an in-memory implementation of store.Store.
type Store struct {
	mu        sync.RWMutex
	templates map[string]store.Template
	datasets  map[string]store.Dataset
	artifacts map[string]store.ArtifactRecord
}

// New creates an empty store.
func New() *Store {
	return &Store{
		templates: make(map[string]store.Template),
		datasets:  make(map[string]store.Dataset),
		artifacts: make(map[string]store.ArtifactRecord),
	}
}

// Close is a no-op.
func (s *Store) Close() error { return nil }

// SaveTemplate stores or updates a template, assigning an ID when empty and
// marking it as used now.
func (s *Store) SaveTemplate(_ context.Context, t *store.Template) error {
	now := time.Now().UTC()
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = now
	}
	t.LastUsed = now

	s.mu.Lock()
	defer s.mu.Unlock()
	s.templates[t.ID] = *t
	return nil
}

// GetTemplate retrieves a template by ID.
func (s *Store) GetTemplate(_ context.Context, id string) (*store.Template, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.templates[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &t, nil
}

// ListTemplates returns all templates, most recently used first.
func (s *Store) ListTemplates(_ context.Context) ([]store.Template, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result := make([]store.Template, 0, len(s.templates))
	for _, t := range s.templates {
		result = append(result, t)
	}
	sort.Slice(result, func(i, j int) bool {
		if !result[i].LastUsed.Equal(result[j].LastUsed) {
			return result[i].LastUsed.After(result[j].LastUsed)
		}
		return result[i].ID < result[j].ID
	})
	return result, nil
}

// TouchTemplate sets the last used time of a template.
func (s *Store) TouchTemplate(_ context.Context, id string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.templates[id]
	if !ok {
		return store.ErrNotFound
	}
	t.LastUsed = at
	s.templates[id] = t
	return nil
}

// DeleteTemplate removes a template.
func (s *Store) DeleteTemplate(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.templates[id]; !ok {
		return store.ErrNotFound
	}
	delete(s.templates, id)
	return nil
}

// SaveDataset validates and stores a dataset.
func (s *Store) SaveDataset(_ context.Context, d *store.Dataset) error {
	if err := d.Validate(); err != nil {
		return err
	}
	if d.ID == "" {
		d.ID = uuid.NewString()
	}
	if d.ImportedAt.IsZero() {
		d.ImportedAt = time.Now().UTC()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.datasets[d.ID] = *d
	return nil
}

// GetDataset retrieves a dataset by ID.
func (s *Store) GetDataset(_ context.Context, id string) (*store.Dataset, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	d, ok := s.datasets[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &d, nil
}

// ListDatasets returns all datasets, newest first.
func (s *Store) ListDatasets(_ context.Context) ([]store.Dataset, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result := make([]store.Dataset, 0, len(s.datasets))
	for _, d := range s.datasets {
		result = append(result, d)
	}
	sort.Slice(result, func(i, j int) bool {
		if !result[i].ImportedAt.Equal(result[j].ImportedAt) {
			return result[i].ImportedAt.After(result[j].ImportedAt)
		}
		return result[i].ID < result[j].ID
	})
	return result, nil
}

// DeleteDataset removes a dataset.
func (s *Store) DeleteDataset(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.datasets[id]; !ok {
		return store.ErrNotFound
	}
	delete(s.datasets, id)
	return nil
}

// SaveArtifact stores an artifact record.
func (s *Store) SaveArtifact(_ context.Context, a *store.ArtifactRecord) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.artifacts[a.ID] = *a
	return nil
}

// GetArtifact retrieves an artifact record by ID.
func (s *Store) GetArtifact(_ context.Context, id string) (*store.ArtifactRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.artifacts[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &a, nil
}

// ListArtifacts returns all artifact records, newest first.
func (s *Store) ListArtifacts(_ context.Context) ([]store.ArtifactRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result := make([]store.ArtifactRecord, 0, len(s.artifacts))
	for _, a := range s.artifacts {
		result = append(result, a)
	}
	sort.Slice(result, func(i, j int) bool {
		if !result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].CreatedAt.After(result[j].CreatedAt)
		}
		return result[i].Name < result[j].Name
	})
	return result, nil
}

// DeleteArtifact removes an artifact record.
func (s *Store) DeleteArtifact(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.artifacts[id]; !ok {
		return store.ErrNotFound
	}
	delete(s.artifacts, id)
	return nil
}
