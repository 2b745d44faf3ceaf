package leads_test

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"testing"

	repository "github.com/okian/dispatch/internal/adapters/repository"
	leads "github.com/okian/dispatch/internal/domain/leads"
	"github.com/okian/dispatch/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

// racingStore reports not-found then conflict for a configurable number of
// rounds before letting the insert through.
type racingStore struct {
	mu        sync.Mutex
	conflicts int
	inserted  map[string]model.Lead
	nextID    int64
}

func newRacingStore(conflicts int) *racingStore {
	return &racingStore{
		conflicts: conflicts,
		inserted:  make(map[string]model.Lead),
	}
}

func (s *racingStore) FindLeadByExternalID(_ context.Context, externalID string) (model.Lead, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if lead, ok := s.inserted[externalID]; ok {
		return lead, nil
	}
	return model.Lead{}, repository.ErrNotFound
}

func (s *racingStore) InsertLead(_ context.Context, externalID string) (model.Lead, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conflicts > 0 {
		s.conflicts--
		return model.Lead{}, repository.ErrConflict
	}
	s.nextID++
	lead := model.Lead{ID: s.nextID, ExternalID: externalID}
	s.inserted[externalID] = lead
	return lead, nil
}

// failingStore returns a permanent error from every call.
type failingStore struct {
	err error
}

func (s *failingStore) FindLeadByExternalID(context.Context, string) (model.Lead, error) {
	return model.Lead{}, s.err
}

func (s *failingStore) InsertLead(context.Context, string) (model.Lead, error) {
	return model.Lead{}, s.err
}

func TestResolver(t *testing.T) {
	Convey("Given a resolver over an empty store", t, func() {
		ctx := context.Background()
		store := repository.NewMemStore()
		resolver := leads.NewResolver(store)

		Convey("When resolving a new external id", func() {
			lead, err := resolver.Resolve(ctx, "ext-1")

			Convey("Then a lead should be created", func() {
				So(err, ShouldBeNil)
				So(lead.ID, ShouldBeGreaterThan, 0)
				So(lead.ExternalID, ShouldEqual, "ext-1")
			})

			Convey("And resolving the same id again should return the same lead", func() {
				again, err := resolver.Resolve(ctx, "ext-1")
				So(err, ShouldBeNil)
				So(again.ID, ShouldEqual, lead.ID)
			})
		})

		Convey("When resolving distinct external ids", func() {
			first, err := resolver.Resolve(ctx, "ext-1")
			So(err, ShouldBeNil)
			second, err := resolver.Resolve(ctx, "ext-2")
			So(err, ShouldBeNil)

			Convey("Then they should map to distinct leads", func() {
				So(first.ID, ShouldNotEqual, second.ID)
			})
		})
	})

	Convey("Given a store that loses the insert race once", t, func() {
		ctx := context.Background()
		store := newRacingStore(1)
		resolver := leads.NewResolver(store)

		Convey("When resolving", func() {
			lead, err := resolver.Resolve(ctx, "ext-1")

			Convey("Then the retry should converge on a lead", func() {
				So(err, ShouldBeNil)
				So(lead.ExternalID, ShouldEqual, "ext-1")
			})
		})
	})

	Convey("Given a store that conflicts forever", t, func() {
		ctx := context.Background()
		store := newRacingStore(100)
		resolver := leads.NewResolver(store, leads.WithMaxAttempts(2))

		Convey("When resolving", func() {
			_, err := resolver.Resolve(ctx, "ext-1")

			Convey("Then the retry budget should be reported as exhausted", func() {
				So(errors.Is(err, leads.ErrUnresolved), ShouldBeTrue)
			})
		})
	})

	Convey("Given a store with a permanent failure", t, func() {
		ctx := context.Background()
		storeErr := fmt.Errorf("connection refused")
		resolver := leads.NewResolver(&failingStore{err: storeErr})

		Convey("When resolving", func() {
			_, err := resolver.Resolve(ctx, "ext-1")

			Convey("Then the failure should propagate without retrying", func() {
				So(errors.Is(err, storeErr), ShouldBeTrue)
			})
		})
	})
}

func TestResolverConcurrent(t *testing.T) {
	Convey("Given many goroutines resolving the same external id", t, func() {
		ctx := context.Background()
		store := repository.NewMemStore()
		resolver := leads.NewResolver(store)

		const goroutines = 50
		results := make([]model.Lead, goroutines)
		errs := make([]error, goroutines)

		var wg sync.WaitGroup
		for i := 0; i < goroutines; i++ {
			wg.Add(1)
			go func(idx int) {
				defer wg.Done()
				results[idx], errs[idx] = resolver.Resolve(ctx, "shared-ext")
			}(i)
		}
		wg.Wait()

		Convey("Then every resolution should succeed with the same lead id", func() {
			for i := 0; i < goroutines; i++ {
				So(errs[i], ShouldBeNil)
				So(results[i].ID, ShouldEqual, results[0].ID)
			}
		})
	})

	Convey("Given many goroutines resolving distinct external ids", t, func() {
		ctx := context.Background()
		store := repository.NewMemStore()
		resolver := leads.NewResolver(store)

		const goroutines = 50
		results := make([]model.Lead, goroutines)

		var wg sync.WaitGroup
		for i := 0; i < goroutines; i++ {
			wg.Add(1)
			go func(idx int) {
				defer wg.Done()
				results[idx], _ = resolver.Resolve(ctx, "ext-"+strconv.Itoa(idx))
			}(i)
		}
		wg.Wait()

		Convey("Then every id should map to a distinct lead", func() {
			seen := make(map[int64]bool)
			for _, lead := range results {
				So(seen[lead.ID], ShouldBeFalse)
				seen[lead.ID] = true
			}
		})
	})
}
