package generic_test

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/finance-gate/generic"
	"github.com/warp/finance-gate/generic/mocks"
	"github.com/warp/finance-gate/generic/store"
	"go.uber.org/mock/gomock"
	"golang.org/x/sync/errgroup"
)

// =============================================================================
// HELPERS
// =============================================================================

type voucher struct {
	Ref string `json:"ref"`
}

// voucherGate accepts vouchers whose ref no other voucher uses.
func voucherGate(s generic.Store, fenced bool) *generic.Gate {
	lookup := generic.Lookup{Reader: s}
	d := generic.NewDispatcher()
	d.Register("vouchers", generic.NewPipeline[voucher]("voucher", nil,
		func(ctx context.Context, a *generic.Attempt[voucher]) error {
			return lookup.Unique(ctx, "vouchers", a.Key,
				generic.Where(generic.Eq("ref", a.Next.Ref)),
				fmt.Sprintf("Voucher ref '%s' already exists", a.Next.Ref))
		},
	))
	return generic.NewGate(d, s, fenced)
}

// =============================================================================
// COMMIT PATH
// =============================================================================

func TestGate_PutVersionsEachCommit(t *testing.T) {
	ctx := context.Background()
	g := voucherGate(store.NewMemory(), true)

	first, err := g.Put(ctx, "vouchers", "v1", []byte(`{"ref": "A"}`))
	require.NoError(t, err)
	second, err := g.Put(ctx, "vouchers", "v1", []byte(`{"ref": "A"}`))
	require.NoError(t, err)

	assert.Equal(t, int64(1), first.Version)
	assert.Equal(t, int64(2), second.Version)
}

func TestGate_RejectionWritesNothing(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemory()
	g := voucherGate(s, true)
	_, err := g.Put(ctx, "vouchers", "v1", []byte(`{"ref": "A"}`))
	require.NoError(t, err)

	_, err = g.Put(ctx, "vouchers", "v2", []byte(`{"ref": "A"}`))

	assert.EqualError(t, err, "Voucher ref 'A' already exists")
	_, err = s.Get(ctx, "vouchers", "v2")
	assert.True(t, generic.IsNotFound(err))
}

func TestGate_PassesStoredPreviousToValidator(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemory()
	s.Seed("vouchers", "v1", []byte(`{"ref": "A"}`))

	var seen generic.WriteAttempt
	d := generic.NewDispatcher()
	d.Register("vouchers", generic.ValidatorFunc(func(_ context.Context, w generic.WriteAttempt) error {
		seen = w
		return nil
	}))
	g := generic.NewGate(d, s, false)

	_, err := g.Put(ctx, "vouchers", "v1", []byte(`{"ref": "B"}`))

	require.NoError(t, err)
	assert.JSONEq(t, `{"ref": "A"}`, string(seen.Previous))
	assert.False(t, seen.IsCreate())
}

func TestGate_StoreReadFailureIsNotARejection(t *testing.T) {
	ctrl := gomock.NewController(t)
	s := mocks.NewMockStore(ctrl)
	s.EXPECT().Get(gomock.Any(), "vouchers", "v1").Return(nil, errors.New("io timeout"))

	_, err := generic.NewGate(generic.NewDispatcher(generic.AcceptUnknown()), s, true).
		Put(context.Background(), "vouchers", "v1", []byte(`{}`))

	require.Error(t, err)
	assert.False(t, generic.IsRejection(err))
	assert.Contains(t, err.Error(), "io timeout")
}

func TestGate_DeleteIsUnvalidated(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemory()
	s.Seed("vouchers", "v1", []byte(`{"ref": "A"}`))
	g := voucherGate(s, true)

	require.NoError(t, g.Delete(ctx, "vouchers", "v1"))
	assert.True(t, generic.IsNotFound(g.Delete(ctx, "vouchers", "v1")))
}

func TestStore_CompareAndSet(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemory()
	doc := generic.Document{Collection: "vouchers", Key: "v1", Data: []byte(`{"ref": "A"}`)}

	_, err := s.Commit(ctx, doc, 0)
	require.NoError(t, err)

	// A writer that validated against "does not exist" loses.
	_, err = s.Commit(ctx, doc, 0)
	assert.ErrorIs(t, err, generic.ErrVersionConflict)
	assert.True(t, generic.IsRetryable(err))
}

// =============================================================================
// CONCURRENT WRITERS
// =============================================================================

func TestGate_FencedRaceAcceptsExactlyOne(t *testing.T) {
	// GIVEN a fenced gate and many writers proposing the same ref
	s := store.NewMemory()
	g := voucherGate(s, true)
	const writers = 16

	// WHEN they all write at once under different keys
	var accepted, rejected atomic.Int32
	var eg errgroup.Group
	for i := 0; i < writers; i++ {
		eg.Go(func() error {
			_, err := g.Put(context.Background(), "vouchers", fmt.Sprintf("v%d", i), []byte(`{"ref": "SAME"}`))
			switch {
			case err == nil:
				accepted.Add(1)
			case generic.KindOf(err) == generic.KindIntegrity:
				rejected.Add(1)
			default:
				return err
			}
			return nil
		})
	}
	require.NoError(t, eg.Wait())

	// THEN validation saw every earlier commit
	assert.Equal(t, int32(1), accepted.Load())
	assert.Equal(t, int32(writers-1), rejected.Load())
	docs, err := s.List(context.Background(), "vouchers")
	require.NoError(t, err)
	assert.Len(t, docs, 1)
}

func TestGate_UnfencedInterleavingAdmitsBoth(t *testing.T) {
	// Two writers validate before either commits: both checks pass and both
	// commits succeed because they touch different keys.
	ctx := context.Background()
	s := store.NewMemory()
	g := voucherGate(s, false)
	assert.False(t, g.Fenced())

	a := generic.WriteAttempt{Collection: "vouchers", Key: "v1", Proposed: []byte(`{"ref": "SAME"}`)}
	b := generic.WriteAttempt{Collection: "vouchers", Key: "v2", Proposed: []byte(`{"ref": "SAME"}`)}
	require.NoError(t, g.Check(ctx, a))
	require.NoError(t, g.Check(ctx, b))

	_, err := s.Commit(ctx, generic.Document{Collection: a.Collection, Key: a.Key, Data: a.Proposed}, 0)
	require.NoError(t, err)
	_, err = s.Commit(ctx, generic.Document{Collection: b.Collection, Key: b.Key, Data: b.Proposed}, 0)
	require.NoError(t, err)

	docs, err := s.Find(ctx, "vouchers", generic.Where(generic.Eq("ref", "SAME")))
	require.NoError(t, err)
	assert.Len(t, docs, 2)
}
