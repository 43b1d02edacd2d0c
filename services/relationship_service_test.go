package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"buildForgeAPI/internal/docstore"
	"buildForgeAPI/internal/types/relationship"
)

func newRelationshipFixture() (*RelationshipService, *ReconcilerService, *docstore.MemoryStore) {
	store := docstore.NewMemoryStore()
	reconciler := NewReconcilerService(store)
	return NewRelationshipService(store, reconciler), reconciler, store
}

func TestSendAcceptMakesMutualFriends(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newRelationshipFixture()

	require.NoError(t, svc.SendRequest(ctx, "u1", "u2"))
	require.NoError(t, svc.Accept(ctx, "u2", "u1"))

	for _, pair := range [][2]string{{"u1", "u2"}, {"u2", "u1"}} {
		rec, err := svc.Record(ctx, pair[0], pair[1])
		require.NoError(t, err)
		assert.Equal(t, relationship.StatusAccepted, rec.Status)
		assert.Equal(t, "u1", rec.From)
	}

	friends, err := svc.ListFriends(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, []string{"u2"}, friends)

	friends, err = svc.ListFriends(ctx, "u2")
	require.NoError(t, err)
	assert.Equal(t, []string{"u1"}, friends)
}

func TestSendRequestToSelf(t *testing.T) {
	svc, _, _ := newRelationshipFixture()
	assert.ErrorIs(t, svc.SendRequest(context.Background(), "u1", "u1"), ErrSelfRequest)
}

func TestSendRequestToExistingFriend(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newRelationshipFixture()

	require.NoError(t, svc.SendRequest(ctx, "u1", "u2"))
	require.NoError(t, svc.Accept(ctx, "u2", "u1"))

	assert.ErrorIs(t, svc.SendRequest(ctx, "u1", "u2"), ErrAlreadyFriends)
}

func TestResendOverwritesInsteadOfDuplicating(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newRelationshipFixture()

	require.NoError(t, svc.SendRequest(ctx, "u1", "u2"))
	require.NoError(t, svc.SendRequest(ctx, "u1", "u2"))

	pending, err := svc.ListPending(ctx, "u2")
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "u1", pending[0].Counterpart)
}

func TestDeclineThenNewRequestSucceeds(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newRelationshipFixture()

	require.NoError(t, svc.SendRequest(ctx, "u1", "u2"))
	require.NoError(t, svc.Decline(ctx, "u2", "u1"))

	for _, pair := range [][2]string{{"u1", "u2"}, {"u2", "u1"}} {
		rec, err := svc.Record(ctx, pair[0], pair[1])
		require.NoError(t, err)
		assert.Equal(t, relationship.StatusDeclined, rec.Status)
	}

	friends, err := svc.ListFriends(ctx, "u2")
	require.NoError(t, err)
	assert.Empty(t, friends)

	// A declined request is final, but a fresh one starts the pair over.
	assert.ErrorIs(t, svc.Accept(ctx, "u2", "u1"), ErrNotPending)
	require.NoError(t, svc.SendRequest(ctx, "u1", "u2"))
	require.NoError(t, svc.Accept(ctx, "u2", "u1"))

	friends, err = svc.ListFriends(ctx, "u2")
	require.NoError(t, err)
	assert.Equal(t, []string{"u1"}, friends)
}

func TestAcceptWithoutRequest(t *testing.T) {
	svc, _, _ := newRelationshipFixture()
	assert.ErrorIs(t, svc.Accept(context.Background(), "u2", "u1"), ErrNoSuchRequest)
}

func TestAcceptTwice(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newRelationshipFixture()

	require.NoError(t, svc.SendRequest(ctx, "u1", "u2"))
	require.NoError(t, svc.Accept(ctx, "u2", "u1"))
	assert.ErrorIs(t, svc.Accept(ctx, "u2", "u1"), ErrNotPending)
}

func TestListPendingNewestFirst(t *testing.T) {
	ctx := context.Background()
	svc, _, store := newRelationshipFixture()

	require.NoError(t, svc.SendRequest(ctx, "u1", "u3"))
	require.NoError(t, svc.SendRequest(ctx, "u2", "u3"))

	// Push u2's request visibly later than u1's.
	rec := &relationship.Record{
		Owner: "u3", Counterpart: "u2", From: "u2",
		Status:    relationship.StatusPending,
		CreatedAt: time.Now().UTC().Add(time.Hour),
	}
	require.NoError(t, store.Set(ctx, relationship.RequestPath("u3", "u2"), rec.Document()))

	pending, err := svc.ListPending(ctx, "u3")
	require.NoError(t, err)
	require.Len(t, pending, 2)
	assert.Equal(t, "u2", pending[0].Counterpart)
	assert.Equal(t, "u1", pending[1].Counterpart)

	// Accepted requests drop out of the pending view.
	require.NoError(t, svc.Accept(ctx, "u3", "u1"))
	pending, err = svc.ListPending(ctx, "u3")
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "u2", pending[0].Counterpart)
}

func TestPartialSendRequestHealedBySweep(t *testing.T) {
	ctx := context.Background()
	store := docstore.NewMemoryStore()
	flaky := newFlakyStore(store)
	reconciler := NewReconcilerService(flaky)
	svc := NewRelationshipService(flaky, reconciler)

	flaky.failSet[relationship.RequestPath("u2", "u1")] = errors.New("connection reset")
	err := svc.SendRequest(ctx, "u1", "u2")
	assert.ErrorIs(t, err, ErrTransientStore)

	// Only the sender's projection exists; the receiver cannot act yet.
	assert.ErrorIs(t, svc.Accept(ctx, "u2", "u1"), ErrNoSuchRequest)

	reconciler.Sweep(ctx)

	// The sweeper mirrored the surviving record, so the flow completes.
	require.NoError(t, svc.Accept(ctx, "u2", "u1"))
	friends, err := svc.ListFriends(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, []string{"u2"}, friends)
}

func TestPartialAcceptHealedOnFriendsRead(t *testing.T) {
	ctx := context.Background()
	store := docstore.NewMemoryStore()
	flaky := newFlakyStore(store)
	reconciler := NewReconcilerService(flaky)
	svc := NewRelationshipService(flaky, reconciler)

	require.NoError(t, svc.SendRequest(ctx, "u1", "u2"))

	// The last of Accept's four writes fails: u2's edge exists, u1's does
	// not, and the caller sees a retryable error.
	flaky.failSet[relationship.EdgePath("u1", "u2")] = errors.New("deadline exceeded")
	err := svc.Accept(ctx, "u2", "u1")
	assert.ErrorIs(t, err, ErrTransientStore)

	// The friends read heals the flagged pair first, so the friendship
	// never surfaces one-sided.
	friends, err := svc.ListFriends(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, []string{"u2"}, friends)

	friends, err = svc.ListFriends(ctx, "u2")
	require.NoError(t, err)
	assert.Equal(t, []string{"u1"}, friends)
}
