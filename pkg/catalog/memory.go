package catalog

import (
	"context"
	"strconv"
	"sync"

	"github.com/agentstation/studiosync/internal/utils/ptr"
	"github.com/agentstation/studiosync/pkg/errors"
)

// Memory is an in-process Catalog. It backs tests and offline runs over fixtures.
type Memory struct {
	mu      sync.RWMutex
	studios []*Studio
	boxes   []StashBox
	nextID  int

	creates int
	updates int
}

var _ Catalog = (*Memory)(nil)

// NewMemory creates a catalog seeded with copies of studios.
func NewMemory(studios ...*Studio) *Memory {
	m := &Memory{nextID: 1}
	for _, s := range studios {
		if n, err := strconv.Atoi(s.ID); err == nil && n >= m.nextID {
			m.nextID = n + 1
		}
	}
	for _, s := range studios {
		c := s.Clone()
		if c.ID == "" {
			c.ID = m.allocID()
		}
		m.studios = append(m.studios, c)
	}
	return m
}

// SetStashBoxes sets the registries reported by StashBoxes.
func (m *Memory) SetStashBoxes(boxes ...StashBox) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.boxes = append([]StashBox(nil), boxes...)
}

// Creates returns how many studios were created through the catalog.
func (m *Memory) Creates() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.creates
}

// Updates returns how many updates were applied through the catalog.
func (m *Memory) Updates() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.updates
}

func (m *Memory) allocID() string {
	id := strconv.Itoa(m.nextID)
	m.nextID++
	return id
}

func (m *Memory) find(id string) *Studio {
	for _, s := range m.studios {
		if s.ID == id {
			return s
		}
	}
	return nil
}

// FindStudio implements Catalog.
func (m *Memory) FindStudio(_ context.Context, id string) (*Studio, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.find(id).Clone(), nil
}

// AllStudios implements Catalog.
func (m *Memory) AllStudios(_ context.Context) ([]*Studio, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*Studio, len(m.studios))
	for i, s := range m.studios {
		out[i] = s.Clone()
	}
	return out, nil
}

// UpdateStudio implements Catalog.
func (m *Memory) UpdateStudio(_ context.Context, u StudioUpdate) (*Studio, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := m.find(u.ID)
	if s == nil {
		return nil, errors.NewNotFoundError("studio", u.ID)
	}
	if id := ptr.Value(u.ParentID); id != "" && m.find(id) == nil {
		return nil, errors.NewNotFoundError("parent studio", id)
	}
	ptr.Apply(&s.Name, u.Name)
	ptr.Apply(&s.URL, u.URL)
	ptr.Apply(&s.ImageRef, u.Image)
	ptr.Apply(&s.ParentID, u.ParentID)
	if u.ExternalRefs != nil {
		s.ExternalRefs = u.ExternalRefs.Clone()
	}
	m.updates++
	return s.Clone(), nil
}

// CreateStudio implements Catalog.
func (m *Memory) CreateStudio(_ context.Context, in StudioInput) (*Studio, error) {
	if in.Name == "" {
		return nil, errors.NewValidationError("name", in.Name, "studio name is required")
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	s := &Studio{
		ID:           m.allocID(),
		Name:         in.Name,
		URL:          in.URL,
		ParentID:     in.ParentID,
		ImageRef:     in.Image,
		ExternalRefs: in.ExternalRefs.Clone(),
	}
	m.studios = append(m.studios, s)
	m.creates++
	return s.Clone(), nil
}

// StashBoxes implements Catalog.
func (m *Memory) StashBoxes(_ context.Context) ([]StashBox, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]StashBox(nil), m.boxes...), nil
}
