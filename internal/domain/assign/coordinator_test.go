package assign_test

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"testing"

	repository "github.com/okian/dispatch/internal/adapters/repository"
	assign "github.com/okian/dispatch/internal/domain/assign"
	eligibility "github.com/okian/dispatch/internal/domain/eligibility"
	leads "github.com/okian/dispatch/internal/domain/leads"
	load "github.com/okian/dispatch/internal/domain/load"
	"github.com/okian/dispatch/internal/domain/model"
	selector "github.com/okian/dispatch/internal/domain/selector"
	"github.com/okian/dispatch/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func init() {
	// Initialize logging for tests
	err := logger.Init()
	if err != nil {
		panic(err)
	}
}

// newPipeline wires a coordinator over a fresh in-memory store.
func newPipeline(opts ...assign.Option) (*assign.Coordinator, *repository.MemStore) {
	store := repository.NewMemStore()
	resolver := leads.NewResolver(store)
	accountant := load.NewAccountant(store)
	filter := eligibility.NewFilter(store, accountant)
	picker := selector.New()
	return assign.NewCoordinator(store, resolver, filter, picker, opts...), store
}

func TestCoordinatorAssign(t *testing.T) {
	Convey("Given a source with one eligible operator", t, func() {
		ctx := context.Background()
		coordinator, store := newPipeline()

		source, err := store.CreateSource(ctx, "web")
		So(err, ShouldBeNil)
		op, err := store.CreateOperator(ctx, "alice", true, 5)
		So(err, ShouldBeNil)
		_, err = store.AttachOperator(ctx, source.ID, op.ID, 1)
		So(err, ShouldBeNil)

		Convey("When assigning a contact", func() {
			result, err := coordinator.Assign(ctx, "ext-1", source.ID)

			Convey("Then the contact should land on the operator", func() {
				So(err, ShouldBeNil)
				So(result.Assigned, ShouldBeTrue)
				So(result.OperatorID, ShouldNotBeNil)
				So(*result.OperatorID, ShouldEqual, op.ID)
				So(result.SourceID, ShouldEqual, source.ID)
			})

			Convey("And the operator load should reflect the assignment", func() {
				So(err, ShouldBeNil)
				count, err := store.CountActiveContacts(ctx, op.ID)
				So(err, ShouldBeNil)
				So(count, ShouldEqual, 1)
			})

			Convey("And a repeat submission should reuse the same lead", func() {
				So(err, ShouldBeNil)
				second, err := coordinator.Assign(ctx, "ext-1", source.ID)
				So(err, ShouldBeNil)
				So(second.LeadID, ShouldEqual, result.LeadID)
				So(second.ContactID, ShouldNotEqual, result.ContactID)
			})
		})
	})

	Convey("Given a source with no eligible operators", t, func() {
		ctx := context.Background()
		coordinator, store := newPipeline()

		source, err := store.CreateSource(ctx, "web")
		So(err, ShouldBeNil)

		Convey("When assigning a contact", func() {
			result, err := coordinator.Assign(ctx, "ext-1", source.ID)

			Convey("Then the contact should be recorded unassigned", func() {
				So(err, ShouldBeNil)
				So(result.Assigned, ShouldBeFalse)
				So(result.OperatorID, ShouldBeNil)
				So(result.ContactID, ShouldBeGreaterThan, 0)
			})

			Convey("And the stats should count it as unassigned", func() {
				So(err, ShouldBeNil)
				stats, err := store.ContactStats(ctx)
				So(err, ShouldBeNil)
				So(stats.Unassigned, ShouldEqual, 1)
			})
		})
	})

	Convey("Given an unknown source", t, func() {
		ctx := context.Background()
		coordinator, store := newPipeline()

		Convey("When assigning a contact", func() {
			_, err := coordinator.Assign(ctx, "ext-1", 42)

			Convey("Then the source error should be reported", func() {
				So(errors.Is(err, assign.ErrSourceNotFound), ShouldBeTrue)
			})

			Convey("And no contact should be written but the lead is retained", func() {
				stats, statsErr := store.ContactStats(ctx)
				So(statsErr, ShouldBeNil)
				So(stats.Total, ShouldEqual, 0)

				lead, leadErr := store.FindLeadByExternalID(ctx, "ext-1")
				So(leadErr, ShouldBeNil)
				So(lead.ExternalID, ShouldEqual, "ext-1")
			})
		})
	})

	Convey("Given a cancelled context", t, func() {
		coordinator, store := newPipeline()
		source, err := store.CreateSource(context.Background(), "web")
		So(err, ShouldBeNil)

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		Convey("When assigning a contact", func() {
			_, err := coordinator.Assign(ctx, "ext-1", source.ID)

			Convey("Then the cancellation should surface", func() {
				So(errors.Is(err, context.Canceled), ShouldBeTrue)
			})
		})
	})
}

// conflictingStore wraps the memstore and forces conflicts on insert.
type conflictingStore struct {
	*repository.MemStore
	mu        sync.Mutex
	conflicts int
}

func (s *conflictingStore) InsertContact(ctx context.Context, leadID, sourceID int64, operatorID *int64) (model.Contact, error) {
	s.mu.Lock()
	force := s.conflicts > 0
	if force {
		s.conflicts--
	}
	s.mu.Unlock()
	if force {
		return model.Contact{}, repository.ErrConflict
	}
	return s.MemStore.InsertContact(ctx, leadID, sourceID, operatorID)
}

func TestCoordinatorConflictRetry(t *testing.T) {
	Convey("Given a store that conflicts twice before accepting", t, func() {
		ctx := context.Background()
		mem := repository.NewMemStore()
		store := &conflictingStore{MemStore: mem, conflicts: 2}

		source, err := mem.CreateSource(ctx, "web")
		So(err, ShouldBeNil)
		op, err := mem.CreateOperator(ctx, "alice", true, 5)
		So(err, ShouldBeNil)
		_, err = mem.AttachOperator(ctx, source.ID, op.ID, 1)
		So(err, ShouldBeNil)

		resolver := leads.NewResolver(mem)
		filter := eligibility.NewFilter(mem, load.NewAccountant(mem))
		coordinator := assign.NewCoordinator(store, resolver, filter, selector.New())

		Convey("When assigning with the default retry budget", func() {
			result, err := coordinator.Assign(ctx, "ext-1", source.ID)

			Convey("Then the retries should absorb the conflicts", func() {
				So(err, ShouldBeNil)
				So(result.Assigned, ShouldBeTrue)
			})
		})
	})

	Convey("Given a store that conflicts forever", t, func() {
		ctx := context.Background()
		mem := repository.NewMemStore()
		store := &conflictingStore{MemStore: mem, conflicts: 1000}

		source, err := mem.CreateSource(ctx, "web")
		So(err, ShouldBeNil)
		op, err := mem.CreateOperator(ctx, "alice", true, 5)
		So(err, ShouldBeNil)
		_, err = mem.AttachOperator(ctx, source.ID, op.ID, 1)
		So(err, ShouldBeNil)

		resolver := leads.NewResolver(mem)
		filter := eligibility.NewFilter(mem, load.NewAccountant(mem))
		coordinator := assign.NewCoordinator(store, resolver, filter, selector.New(), assign.WithMaxAttempts(2))

		Convey("When assigning", func() {
			_, err := coordinator.Assign(ctx, "ext-1", source.ID)

			Convey("Then the transient error should be reported", func() {
				So(errors.Is(err, assign.ErrTransient), ShouldBeTrue)
			})
		})
	})
}

func TestCoordinatorCapacityInvariant(t *testing.T) {
	Convey("Given operators with tight capacity and many concurrent assignments", t, func() {
		ctx := context.Background()
		coordinator, store := newPipeline()

		source, err := store.CreateSource(ctx, "web")
		So(err, ShouldBeNil)

		capacities := map[int64]int{}
		for i := 0; i < 3; i++ {
			op, err := store.CreateOperator(ctx, "op-"+strconv.Itoa(i), true, 4)
			So(err, ShouldBeNil)
			_, err = store.AttachOperator(ctx, source.ID, op.ID, i+1)
			So(err, ShouldBeNil)
			capacities[op.ID] = 4
		}

		const requests = 60
		results := make([]model.AssignmentResult, requests)
		errs := make([]error, requests)

		var wg sync.WaitGroup
		for i := 0; i < requests; i++ {
			wg.Add(1)
			go func(idx int) {
				defer wg.Done()
				results[idx], errs[idx] = coordinator.Assign(ctx, "ext-"+strconv.Itoa(idx), source.ID)
			}(i)
		}
		wg.Wait()

		Convey("Then no operator should exceed its capacity", func() {
			for id, capacity := range capacities {
				count, err := store.CountActiveContacts(ctx, id)
				So(err, ShouldBeNil)
				So(count, ShouldBeLessThanOrEqualTo, capacity)
			}
		})

		Convey("Then total assignments should equal total capacity", func() {
			assigned := 0
			for i := 0; i < requests; i++ {
				So(errs[i], ShouldBeNil)
				if results[i].Assigned {
					assigned++
				}
			}
			So(assigned, ShouldEqual, 12)
		})

		Convey("Then the overflow should be recorded unassigned", func() {
			stats, err := store.ContactStats(ctx)
			So(err, ShouldBeNil)
			So(stats.Total, ShouldEqual, requests)
			So(stats.Assigned, ShouldEqual, 12)
			So(stats.Unassigned, ShouldEqual, requests-12)
		})
	})

	Convey("Given a single capacity slot and two concurrent assignments", t, func() {
		ctx := context.Background()
		coordinator, store := newPipeline()

		source, err := store.CreateSource(ctx, "web")
		So(err, ShouldBeNil)
		op, err := store.CreateOperator(ctx, "alice", true, 1)
		So(err, ShouldBeNil)
		_, err = store.AttachOperator(ctx, source.ID, op.ID, 1)
		So(err, ShouldBeNil)

		results := make([]model.AssignmentResult, 2)
		errs := make([]error, 2)

		var wg sync.WaitGroup
		for i := 0; i < 2; i++ {
			wg.Add(1)
			go func(idx int) {
				defer wg.Done()
				results[idx], errs[idx] = coordinator.Assign(ctx, "ext-"+strconv.Itoa(idx), source.ID)
			}(i)
		}
		wg.Wait()

		Convey("Then exactly one should win the slot", func() {
			So(errs[0], ShouldBeNil)
			So(errs[1], ShouldBeNil)
			So(results[0].Assigned != results[1].Assigned, ShouldBeTrue)

			count, err := store.CountActiveContacts(ctx, op.ID)
			So(err, ShouldBeNil)
			So(count, ShouldEqual, 1)
		})
	})
}
