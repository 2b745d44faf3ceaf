package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/okian/dispatch/internal/domain/model"
	"github.com/okian/dispatch/pkg/metrics"
)

// edgeKey identifies the unique (source, operator) pair of an edge.
type edgeKey struct {
	sourceID   int64
	operatorID int64
}

// MemStore implements Store with mutex-guarded maps. It is the default
// backend; all mutations and the capacity re-check in InsertContact run under
// a single lock, so the check-and-insert is atomic within the process.
type MemStore struct {
	mu sync.RWMutex

	operators  map[int64]model.Operator
	sources    map[int64]model.Source
	sourceName map[string]int64
	edges      map[int64]model.Edge
	edgeByPair map[edgeKey]int64
	leads      map[int64]model.Lead
	leadByExt  map[string]int64
	contacts   map[int64]model.Contact
	activeLoad map[int64]int // operator id -> active contact count

	nextID map[string]int64
	now    func() time.Time
}

// NewMemStore creates an empty in-memory store.
func NewMemStore(opts ...Option) *MemStore {
	s := &MemStore{
		operators:  make(map[int64]model.Operator),
		sources:    make(map[int64]model.Source),
		sourceName: make(map[string]int64),
		edges:      make(map[int64]model.Edge),
		edgeByPair: make(map[edgeKey]int64),
		leads:      make(map[int64]model.Lead),
		leadByExt:  make(map[string]int64),
		contacts:   make(map[int64]model.Contact),
		activeLoad: make(map[int64]int),
		nextID:     make(map[string]int64),
		now:        time.Now,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// next returns the next sequence id for an entity kind.
// Must be called with s.mu held for writing.
func (s *MemStore) next(kind string) int64 {
	s.nextID[kind]++
	return s.nextID[kind]
}

// FindLeadByExternalID returns the lead for an external id.
func (s *MemStore) FindLeadByExternalID(ctx context.Context, externalID string) (model.Lead, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.leadByExt[externalID]
	if !ok {
		return model.Lead{}, ErrNotFound
	}
	return s.leads[id], nil
}

// InsertLead creates a lead, enforcing external-id uniqueness.
func (s *MemStore) InsertLead(ctx context.Context, externalID string) (model.Lead, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.leadByExt[externalID]; exists {
		return model.Lead{}, ErrConflict
	}
	lead := model.Lead{ID: s.next("lead"), ExternalID: externalID}
	s.leads[lead.ID] = lead
	s.leadByExt[externalID] = lead.ID
	return lead, nil
}

// CreateOperator persists a new operator.
func (s *MemStore) CreateOperator(ctx context.Context, name string, active bool, maxActiveLeads int) (model.Operator, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	op := model.Operator{
		ID:             s.next("operator"),
		Name:           name,
		Active:         active,
		MaxActiveLeads: maxActiveLeads,
	}
	s.operators[op.ID] = op
	return op, nil
}

// UpdateOperator applies the non-nil fields to an existing operator.
func (s *MemStore) UpdateOperator(ctx context.Context, id int64, active *bool, maxActiveLeads *int) (model.Operator, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	op, ok := s.operators[id]
	if !ok {
		return model.Operator{}, ErrNotFound
	}
	if active != nil {
		op.Active = *active
	}
	if maxActiveLeads != nil {
		op.MaxActiveLeads = *maxActiveLeads
	}
	s.operators[id] = op
	return op, nil
}

// GetOperator returns an operator by id.
func (s *MemStore) GetOperator(ctx context.Context, id int64) (model.Operator, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	op, ok := s.operators[id]
	if !ok {
		return model.Operator{}, ErrNotFound
	}
	return op, nil
}

// ListOperators returns all operators ordered by id.
func (s *MemStore) ListOperators(ctx context.Context) ([]model.Operator, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]model.Operator, 0, len(s.operators))
	for _, op := range s.operators {
		out = append(out, op)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// CreateSource persists a new source with a unique name.
func (s *MemStore) CreateSource(ctx context.Context, name string) (model.Source, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.sourceName[name]; exists {
		return model.Source{}, ErrConflict
	}
	src := model.Source{ID: s.next("source"), Name: name}
	s.sources[src.ID] = src
	s.sourceName[name] = src.ID
	return src, nil
}

// FindSource returns a source by id.
func (s *MemStore) FindSource(ctx context.Context, id int64) (model.Source, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	src, ok := s.sources[id]
	if !ok {
		return model.Source{}, ErrNotFound
	}
	return src, nil
}

// ListSources returns all sources ordered by id.
func (s *MemStore) ListSources(ctx context.Context) ([]model.Source, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]model.Source, 0, len(s.sources))
	for _, src := range s.sources {
		out = append(out, src)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// AttachOperator upserts the edge for (sourceID, operatorID).
func (s *MemStore) AttachOperator(ctx context.Context, sourceID, operatorID int64, weight int) (model.Edge, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sources[sourceID]; !ok {
		return model.Edge{}, ErrNotFound
	}
	if _, ok := s.operators[operatorID]; !ok {
		return model.Edge{}, ErrNotFound
	}

	key := edgeKey{sourceID: sourceID, operatorID: operatorID}
	if id, exists := s.edgeByPair[key]; exists {
		edge := s.edges[id]
		edge.Weight = weight
		s.edges[id] = edge
		return edge, nil
	}

	edge := model.Edge{
		ID:         s.next("edge"),
		SourceID:   sourceID,
		OperatorID: operatorID,
		Weight:     weight,
	}
	s.edges[edge.ID] = edge
	s.edgeByPair[key] = edge.ID
	return edge, nil
}

// ListEdgesWithOperator joins the source's edges to their operators,
// filtered to active operators, ordered by operator id.
func (s *MemStore) ListEdgesWithOperator(ctx context.Context, sourceID int64) ([]EdgeOperator, error) {
	start := time.Now()
	defer func() {
		metrics.RecordStoreQueryLatency(float64(time.Since(start).Milliseconds()))
	}()

	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []EdgeOperator
	for _, edge := range s.edges {
		if edge.SourceID != sourceID {
			continue
		}
		op, ok := s.operators[edge.OperatorID]
		if !ok || !op.Active {
			continue
		}
		out = append(out, EdgeOperator{Operator: op, Weight: edge.Weight})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Operator.ID < out[j].Operator.ID })
	return out, nil
}

// CountActiveContacts returns the operator's active contact count.
func (s *MemStore) CountActiveContacts(ctx context.Context, operatorID int64) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.activeLoad[operatorID], nil
}

// InsertContact persists a contact. When an operator is given, its capacity
// is re-checked under the same lock as the insert; ErrConflict means the
// operator filled up between selection and commit.
func (s *MemStore) InsertContact(ctx context.Context, leadID, sourceID int64, operatorID *int64) (model.Contact, error) {
	start := time.Now()
	defer func() {
		metrics.RecordStoreUpdateLatency(float64(time.Since(start).Milliseconds()))
	}()

	s.mu.Lock()
	defer s.mu.Unlock()

	if operatorID != nil {
		op, ok := s.operators[*operatorID]
		if !ok {
			return model.Contact{}, ErrNotFound
		}
		if s.activeLoad[op.ID] >= op.MaxActiveLeads {
			return model.Contact{}, ErrConflict
		}
	}

	contact := model.Contact{
		ID:         s.next("contact"),
		LeadID:     leadID,
		SourceID:   sourceID,
		OperatorID: operatorID,
		CreatedAt:  s.now(),
		Active:     true,
	}
	s.contacts[contact.ID] = contact
	if operatorID != nil {
		s.activeLoad[*operatorID]++
	}
	return contact, nil
}

// CloseContact clears the active flag, releasing the operator's capacity.
// Closing an already closed contact is a no-op.
func (s *MemStore) CloseContact(ctx context.Context, contactID int64) (model.Contact, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	contact, ok := s.contacts[contactID]
	if !ok {
		return model.Contact{}, ErrNotFound
	}
	if contact.Active {
		contact.Active = false
		s.contacts[contactID] = contact
		if contact.OperatorID != nil {
			s.activeLoad[*contact.OperatorID]--
		}
	}
	return contact, nil
}

// ListContacts returns all contacts, closed ones included, ordered by id.
func (s *MemStore) ListContacts(ctx context.Context) ([]model.Contact, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]model.Contact, 0, len(s.contacts))
	for _, c := range s.contacts {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// ContactStats aggregates total, assigned and unassigned contact counts.
func (s *MemStore) ContactStats(ctx context.Context) (model.ContactStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := model.ContactStats{Total: len(s.contacts)}
	for _, c := range s.contacts {
		if c.OperatorID != nil {
			stats.Assigned++
		} else {
			stats.Unassigned++
		}
	}
	return stats, nil
}
