package services

import (
	"context"
	"errors"
	"log"
	"sort"
	"time"

	"buildForgeAPI/internal/docstore"
	"buildForgeAPI/internal/types/relationship"
)

// RelationshipService runs the friend-request state machine over the two
// mirrored projections of every request. Writes that span both projections
// are not atomic; each operation is idempotent by construction and partial
// failures are flagged for the reconciler instead of being swallowed.
type RelationshipService struct {
	store      docstore.Store
	reconciler *ReconcilerService
}

func NewRelationshipService(store docstore.Store, reconciler *ReconcilerService) *RelationshipService {
	return &RelationshipService{store: store, reconciler: reconciler}
}

// SendRequest writes a pending record into both participants' projections,
// keyed by the counterpart identity so a resend overwrites instead of
// duplicating.
func (s *RelationshipService) SendRequest(ctx context.Context, from, to string) error {
	if from == to {
		log.Printf("SendRequest: %s attempted to befriend themselves", from)
		return ErrSelfRequest
	}

	_, err := s.store.Get(ctx, relationship.EdgePath(from, to))
	if err == nil {
		log.Printf("SendRequest: %s and %s are already friends", from, to)
		return ErrAlreadyFriends
	}
	if !errors.Is(err, docstore.ErrNotFound) {
		return transientStore("SendRequest: check friendship", err)
	}

	now := time.Now().UTC()
	mine := &relationship.Record{
		Owner:       from,
		Counterpart: to,
		From:        from,
		Status:      relationship.StatusPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	theirs := &relationship.Record{
		Owner:       to,
		Counterpart: from,
		From:        from,
		Status:      relationship.StatusPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	// First write failed: nothing committed, the caller can retry wholesale.
	if err := s.store.Set(ctx, relationship.RequestPath(from, to), mine.Document()); err != nil {
		return transientStore("SendRequest: write sender record", err)
	}

	// Second write failed: the projections diverge until the reconciler
	// mirrors the surviving record.
	if err := s.store.Set(ctx, relationship.RequestPath(to, from), theirs.Document()); err != nil {
		log.Printf("SendRequest: mirror write failed for %s->%s, flagging pair: %v", from, to, err)
		s.reconciler.FlagPair(from, to)
		return transientStore("SendRequest: write receiver record", err)
	}

	log.Printf("SendRequest: %s -> %s is pending", from, to)
	return nil
}

// Accept transitions both mirrored records to accepted, then creates both
// friendship edges. On success the triangle invariant holds for the pair; on
// partial failure the pair is flagged and the operation reports failure.
func (s *RelationshipService) Accept(ctx context.Context, me, other string) error {
	mine, theirs, err := s.loadPendingPair(ctx, me, other, "Accept")
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	mine.Status = relationship.StatusAccepted
	mine.UpdatedAt = now
	theirs.Status = relationship.StatusAccepted
	theirs.UpdatedAt = now

	writes := []struct {
		what string
		path string
		doc  docstore.Document
	}{
		{"my record", relationship.RequestPath(me, other), mine.Document()},
		{"counterpart record", relationship.RequestPath(other, me), theirs.Document()},
		{"my edge", relationship.EdgePath(me, other), (&relationship.Edge{Owner: me, Friend: other, Since: now}).Document()},
		{"counterpart edge", relationship.EdgePath(other, me), (&relationship.Edge{Owner: other, Friend: me, Since: now}).Document()},
	}

	for i, w := range writes {
		if err := s.store.Set(ctx, w.path, w.doc); err != nil {
			if i > 0 {
				log.Printf("Accept: %s write failed for %s/%s after %d committed writes, flagging pair: %v", w.what, me, other, i, err)
				s.reconciler.FlagPair(me, other)
			}
			return transientStore("Accept: write "+w.what, err)
		}
	}

	log.Printf("Accept: %s and %s are now friends", me, other)
	return nil
}

// Decline transitions both mirrored records to declined. No edge is touched;
// a later SendRequest may re-create the pair as pending.
func (s *RelationshipService) Decline(ctx context.Context, me, other string) error {
	mine, theirs, err := s.loadPendingPair(ctx, me, other, "Decline")
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	mine.Status = relationship.StatusDeclined
	mine.UpdatedAt = now
	theirs.Status = relationship.StatusDeclined
	theirs.UpdatedAt = now

	if err := s.store.Set(ctx, relationship.RequestPath(me, other), mine.Document()); err != nil {
		return transientStore("Decline: write my record", err)
	}
	if err := s.store.Set(ctx, relationship.RequestPath(other, me), theirs.Document()); err != nil {
		log.Printf("Decline: mirror write failed for %s/%s, flagging pair: %v", me, other, err)
		s.reconciler.FlagPair(me, other)
		return transientStore("Decline: write counterpart record", err)
	}

	log.Printf("Decline: %s declined %s", me, other)
	return nil
}

// loadPendingPair fetches both projections of a request and checks that the
// caller's side is pending. A missing counterpart record (drift from a
// partial SendRequest) is rebuilt from the caller's copy.
func (s *RelationshipService) loadPendingPair(ctx context.Context, me, other, op string) (*relationship.Record, *relationship.Record, error) {
	doc, err := s.store.Get(ctx, relationship.RequestPath(me, other))
	if err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			return nil, nil, ErrNoSuchRequest
		}
		return nil, nil, transientStore(op+": read my record", err)
	}
	mine := relationship.RecordFromDocument(me, other, doc)
	if mine.Status != relationship.StatusPending {
		log.Printf("%s: request %s/%s is %s, not pending", op, me, other, mine.Status)
		return nil, nil, ErrNotPending
	}

	var theirs *relationship.Record
	doc, err = s.store.Get(ctx, relationship.RequestPath(other, me))
	switch {
	case err == nil:
		theirs = relationship.RecordFromDocument(other, me, doc)
	case errors.Is(err, docstore.ErrNotFound):
		theirs = &relationship.Record{
			Owner:       other,
			Counterpart: me,
			From:        mine.From,
			Status:      mine.Status,
			CreatedAt:   mine.CreatedAt,
			UpdatedAt:   mine.UpdatedAt,
		}
	default:
		return nil, nil, transientStore(op+": read counterpart record", err)
	}

	return mine, theirs, nil
}

// ListPending returns the owner's projection of every request still awaiting
// a decision, newest first. Read-only and safe alongside writers.
func (s *RelationshipService) ListPending(ctx context.Context, owner string) ([]*relationship.Record, error) {
	entries, err := s.store.List(ctx, relationship.RequestsCollection(owner))
	if err != nil {
		return nil, transientStore("ListPending: list requests", err)
	}

	records := make([]*relationship.Record, 0, len(entries))
	for _, e := range entries {
		rec := relationship.RecordFromDocument(owner, e.ID, e.Data)
		if rec.Status == relationship.StatusPending {
			records = append(records, rec)
		}
	}
	sort.Slice(records, func(i, j int) bool {
		return records[i].CreatedAt.After(records[j].CreatedAt)
	})
	return records, nil
}

// ListFriends returns the identities the owner holds an edge to. Pairs the
// reconciler has flagged for this owner are healed before the read so a
// partially-accepted friendship does not surface one-sided.
func (s *RelationshipService) ListFriends(ctx context.Context, owner string) ([]string, error) {
	if err := s.reconciler.HealOwner(ctx, owner); err != nil {
		// The projections may still be one-sided; serve the read anyway,
		// the pair stays flagged for the sweeper.
		log.Printf("ListFriends: opportunistic heal for %s failed: %v", owner, err)
	}

	entries, err := s.store.List(ctx, relationship.EdgesCollection(owner))
	if err != nil {
		return nil, transientStore("ListFriends: list edges", err)
	}

	friends := make([]string, 0, len(entries))
	for _, e := range entries {
		friends = append(friends, e.ID)
	}
	return friends, nil
}

// Record returns one projection, mainly for diagnostics.
func (s *RelationshipService) Record(ctx context.Context, owner, counterpart string) (*relationship.Record, error) {
	doc, err := s.store.Get(ctx, relationship.RequestPath(owner, counterpart))
	if err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			return nil, ErrNoSuchRequest
		}
		return nil, transientStore("Record: read", err)
	}
	return relationship.RecordFromDocument(owner, counterpart, doc), nil
}
