package server

import (
	"sort"
	"sync"

	"github.com/goliatone/go-formengine/pkg/schema"
)

// Store is a concurrency-safe set of schemas keyed by form id.
type Store struct {
	mu    sync.RWMutex
	forms map[string]*schema.FormSchema
}

// NewStore returns a store seeded with forms.
func NewStore(forms ...*schema.FormSchema) *Store {
	s := &Store{forms: make(map[string]*schema.FormSchema, len(forms))}
	for _, form := range forms {
		s.Put(form)
	}
	return s
}

// Put adds or replaces a schema.
func (s *Store) Put(form *schema.FormSchema) {
	if form == nil {
		return
	}
	s.mu.Lock()
	s.forms[form.FormID] = form
	s.mu.Unlock()
}

// Get returns the schema registered under formID.
func (s *Store) Get(formID string) (*schema.FormSchema, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	form, ok := s.forms[formID]
	return form, ok
}

// IDs returns the registered form ids in sorted order.
func (s *Store) IDs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]string, 0, len(s.forms))
	for id := range s.forms {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
