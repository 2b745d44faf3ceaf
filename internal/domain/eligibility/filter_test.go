package eligibility_test

import (
	"context"
	"errors"
	"testing"

	repository "github.com/okian/dispatch/internal/adapters/repository"
	eligibility "github.com/okian/dispatch/internal/domain/eligibility"
	"github.com/okian/dispatch/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

// stubEdges returns a fixed edge/operator join.
type stubEdges struct {
	edges []repository.EdgeOperator
	err   error
}

func (s *stubEdges) ListEdgesWithOperator(context.Context, int64) ([]repository.EdgeOperator, error) {
	return s.edges, s.err
}

// stubLoads returns per-operator active counts from a map.
type stubLoads struct {
	loads map[int64]int
	err   error
}

func (s *stubLoads) Active(_ context.Context, operatorID int64) (int, error) {
	return s.loads[operatorID], s.err
}

func operator(id int64, active bool, capacity int) model.Operator {
	return model.Operator{ID: id, Name: "op", Active: active, MaxActiveLeads: capacity}
}

func TestFilter(t *testing.T) {
	Convey("Given edges with mixed operator states", t, func() {
		ctx := context.Background()
		edges := &stubEdges{edges: []repository.EdgeOperator{
			{Operator: operator(3, true, 5), Weight: 2},
			{Operator: operator(1, true, 5), Weight: 4},
			{Operator: operator(2, false, 5), Weight: 9},
			{Operator: operator(4, true, 5), Weight: 0},
			{Operator: operator(5, true, 2), Weight: 1},
		}}
		loads := &stubLoads{loads: map[int64]int{5: 2}}
		filter := eligibility.NewFilter(edges, loads)

		Convey("When computing eligibility", func() {
			candidates, err := filter.Eligible(ctx, 1)

			Convey("Then inactive, zero-weight and saturated operators should be excluded", func() {
				So(err, ShouldBeNil)
				So(len(candidates), ShouldEqual, 2)
			})

			Convey("Then the candidates should be ordered by operator id", func() {
				So(err, ShouldBeNil)
				So(candidates[0].OperatorID, ShouldEqual, 1)
				So(candidates[0].Weight, ShouldEqual, 4)
				So(candidates[1].OperatorID, ShouldEqual, 3)
				So(candidates[1].Weight, ShouldEqual, 2)
			})
		})
	})

	Convey("Given a source with no edges", t, func() {
		ctx := context.Background()
		filter := eligibility.NewFilter(&stubEdges{}, &stubLoads{})

		Convey("When computing eligibility", func() {
			candidates, err := filter.Eligible(ctx, 1)

			Convey("Then an empty result should not be an error", func() {
				So(err, ShouldBeNil)
				So(len(candidates), ShouldEqual, 0)
			})
		})
	})

	Convey("Given a failing edge lister", t, func() {
		ctx := context.Background()
		listErr := errors.New("storage offline")
		filter := eligibility.NewFilter(&stubEdges{err: listErr}, &stubLoads{})

		Convey("When computing eligibility", func() {
			_, err := filter.Eligible(ctx, 1)

			Convey("Then the failure should propagate", func() {
				So(errors.Is(err, listErr), ShouldBeTrue)
			})
		})
	})

	Convey("Given a failing load counter", t, func() {
		ctx := context.Background()
		loadErr := errors.New("count failed")
		edges := &stubEdges{edges: []repository.EdgeOperator{
			{Operator: operator(1, true, 5), Weight: 1},
		}}
		filter := eligibility.NewFilter(edges, &stubLoads{err: loadErr})

		Convey("When computing eligibility", func() {
			_, err := filter.Eligible(ctx, 1)

			Convey("Then the failure should propagate", func() {
				So(errors.Is(err, loadErr), ShouldBeTrue)
			})
		})
	})

	Convey("Given a real store behind the filter", t, func() {
		ctx := context.Background()
		store := repository.NewMemStore()

		source, err := store.CreateSource(ctx, "web")
		So(err, ShouldBeNil)
		op1, err := store.CreateOperator(ctx, "alice", true, 1)
		So(err, ShouldBeNil)
		op2, err := store.CreateOperator(ctx, "bob", true, 5)
		So(err, ShouldBeNil)
		_, err = store.AttachOperator(ctx, source.ID, op1.ID, 3)
		So(err, ShouldBeNil)
		_, err = store.AttachOperator(ctx, source.ID, op2.ID, 7)
		So(err, ShouldBeNil)

		filter := eligibility.NewFilter(store, &storeLoads{store: store})

		Convey("When the first operator fills up", func() {
			lead, err := store.InsertLead(ctx, "ext-1")
			So(err, ShouldBeNil)
			_, err = store.InsertContact(ctx, lead.ID, source.ID, &op1.ID)
			So(err, ShouldBeNil)

			candidates, err := filter.Eligible(ctx, source.ID)

			Convey("Then only the second operator should remain eligible", func() {
				So(err, ShouldBeNil)
				So(len(candidates), ShouldEqual, 1)
				So(candidates[0].OperatorID, ShouldEqual, op2.ID)
			})
		})
	})
}

// storeLoads adapts the store's count directly, bypassing the accountant.
type storeLoads struct {
	store *repository.MemStore
}

func (s *storeLoads) Active(ctx context.Context, operatorID int64) (int, error) {
	return s.store.CountActiveContacts(ctx, operatorID)
}
