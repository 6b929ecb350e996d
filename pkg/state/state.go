// Package state implements the session working-state store shared by the
// search and knowledge tools. It is an opaque key-value scratch space, not a
// database: search writes its candidate set, analytics read it back and write
// their reports, and nothing survives the session.
package state

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Fixed key names shared between the tools. Downstream consumers address the
// working set by these names only.
const (
	KeySearchResults       = "search_results"
	KeySearchMetadata      = "search_metadata"
	KeyLastSearchQuery     = "last_search_query"
	KeyLastSearchTimestamp = "last_search_timestamp"
	KeyEntities            = "radgraph_entities"
	KeyEntitiesFull        = "radgraph_entities_full"
	KeyTriplets            = "radgraph_triplets"
	KeyCooccurrence        = "cooccurrence_patterns"
	KeyChexbertValidation  = "chexbert_validation"
	KeyAnatomicalLocations = "anatomical_locations"
	KeyCausalRelationships = "causal_relationships"
)

// Store is one session's working state. The MCP server dispatches tool calls
// concurrently, so access is guarded; the values themselves are owned by the
// request that wrote them and never mutated in place.
type Store struct {
	id     string
	mu     sync.RWMutex
	values map[string]any
}

// NewStore creates an empty session store with a fresh session id.
func NewStore() *Store {
	return &Store{
		id:     uuid.New().String(),
		values: make(map[string]any),
	}
}

// SessionID returns the store's session id.
func (s *Store) SessionID() string {
	return s.id
}

// Set stores a value under a key, replacing any previous value.
func (s *Store) Set(key string, value any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[key] = value
}

// Get returns the value for a key and whether it was present.
func (s *Store) Get(key string) (any, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.values[key]
	return v, ok
}

// Touch records the query and timestamp of the most recent search.
func (s *Store) Touch(query string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[KeyLastSearchQuery] = query
	s.values[KeyLastSearchTimestamp] = time.Now().Unix()
}

// Clear drops all stored values, keeping the session id.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values = make(map[string]any)
}
