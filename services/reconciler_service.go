package services

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"buildForgeAPI/internal/docstore"
	"buildForgeAPI/internal/types/build"
	"buildForgeAPI/internal/types/engagement"
	"buildForgeAPI/internal/types/relationship"
	"buildForgeAPI/middleware"
)

// ReconcilerService detects and repairs divergence between the mirrored
// relationship projections and between a build's like marks and its cached
// popularity. Callers flag the unit they failed to finish writing; the
// sweeper drains those flags, and reads may heal suspect units in line.
// Every repair is idempotent and never moves state below what the stored
// marks and records justify.
type ReconcilerService struct {
	store docstore.Store

	mu            sync.Mutex
	suspectPairs  map[string][2]string
	suspectBuilds map[string]struct{}
}

func NewReconcilerService(store docstore.Store) *ReconcilerService {
	return &ReconcilerService{
		store:         store,
		suspectPairs:  make(map[string][2]string),
		suspectBuilds: make(map[string]struct{}),
	}
}

func pairKey(a, b string) string {
	if b < a {
		a, b = b, a
	}
	return a + "|" + b
}

// FlagPair marks a relationship pair as possibly divergent after a partial
// multi-document write.
func (r *ReconcilerService) FlagPair(a, b string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.suspectPairs[pairKey(a, b)] = [2]string{a, b}
}

// FlagBuild marks a build's popularity counter as possibly drifted.
func (r *ReconcilerService) FlagBuild(buildID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.suspectBuilds[buildID] = struct{}{}
}

// BuildSuspect reports whether the build is awaiting a counter audit.
func (r *ReconcilerService) BuildSuspect(buildID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.suspectBuilds[buildID]
	return ok
}

// ReconcilePair restores the triangle invariant for one pair: both mirrored
// records agree, and friendship edges exist on both sides exactly when that
// agreed status is accepted. When the records disagree the less privileged
// status wins, so a friendship one side declined is revoked, never granted.
func (r *ReconcilerService) ReconcilePair(ctx context.Context, a, b string) error {
	recA, err := r.readRecord(ctx, a, b)
	if err != nil {
		return err
	}
	recB, err := r.readRecord(ctx, b, a)
	if err != nil {
		return err
	}

	if recA == nil && recB == nil {
		// No request was ever recorded; any surviving edge is stray.
		return r.removeEdges(ctx, a, b)
	}

	// Mirror a record lost to a partial SendRequest.
	if recA == nil {
		recA = mirrorRecord(a, recB)
	}
	if recB == nil {
		recB = mirrorRecord(b, recA)
	}

	resolved := recA.Status
	if recA.Status != recB.Status {
		resolved = relationship.LessPrivileged(recA.Status, recB.Status)
		log.Printf("ReconcilePair: %s/%s disagree (%s vs %s), resolving to %s", a, b, recA.Status, recB.Status, resolved)
		middleware.RecordConsistencyDivergence("relationship")
	}

	now := time.Now().UTC()
	for _, rec := range []*relationship.Record{recA, recB} {
		if rec.Status == resolved && !rec.UpdatedAt.IsZero() {
			continue
		}
		rec.Status = resolved
		rec.UpdatedAt = now
		if err := r.store.Set(ctx, relationship.RequestPath(rec.Owner, rec.Counterpart), rec.Document()); err != nil {
			return transientStore("ReconcilePair: rewrite record", err)
		}
		middleware.RecordConsistencyRepair("relationship_record")
	}

	if resolved == relationship.StatusAccepted {
		return r.ensureEdges(ctx, a, b, now)
	}
	return r.removeEdges(ctx, a, b)
}

func (r *ReconcilerService) readRecord(ctx context.Context, owner, counterpart string) (*relationship.Record, error) {
	doc, err := r.store.Get(ctx, relationship.RequestPath(owner, counterpart))
	if err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			return nil, nil
		}
		return nil, transientStore("ReconcilePair: read record", err)
	}
	return relationship.RecordFromDocument(owner, counterpart, doc), nil
}

func mirrorRecord(owner string, src *relationship.Record) *relationship.Record {
	return &relationship.Record{
		Owner:       owner,
		Counterpart: src.Owner,
		From:        src.From,
		Status:      src.Status,
		CreatedAt:   src.CreatedAt,
	}
}

func (r *ReconcilerService) ensureEdges(ctx context.Context, a, b string, now time.Time) error {
	for _, pair := range [][2]string{{a, b}, {b, a}} {
		path := relationship.EdgePath(pair[0], pair[1])
		_, err := r.store.Get(ctx, path)
		if err == nil {
			continue
		}
		if !errors.Is(err, docstore.ErrNotFound) {
			return transientStore("ReconcilePair: read edge", err)
		}
		edge := &relationship.Edge{Owner: pair[0], Friend: pair[1], Since: now}
		if err := r.store.Set(ctx, path, edge.Document()); err != nil {
			return transientStore("ReconcilePair: create edge", err)
		}
		log.Printf("ReconcilePair: restored missing edge %s -> %s", pair[0], pair[1])
		middleware.RecordConsistencyRepair("friendship_edge")
	}
	return nil
}

func (r *ReconcilerService) removeEdges(ctx context.Context, a, b string) error {
	for _, pair := range [][2]string{{a, b}, {b, a}} {
		path := relationship.EdgePath(pair[0], pair[1])
		_, err := r.store.Get(ctx, path)
		if errors.Is(err, docstore.ErrNotFound) {
			continue
		}
		if err != nil {
			return transientStore("ReconcilePair: read edge", err)
		}
		if err := r.store.Delete(ctx, path); err != nil {
			return transientStore("ReconcilePair: delete edge", err)
		}
		log.Printf("ReconcilePair: removed stray edge %s -> %s", pair[0], pair[1])
		middleware.RecordConsistencyRepair("friendship_edge")
	}
	return nil
}

// ReconcileBuild recounts the like marks for one build and overwrites the
// cached popularity inside the counter's own transaction when it drifted.
// O(marks), so it only runs for flagged builds or on explicit audit. The
// recount can race an in-flight like by one mark; a later run converges.
func (r *ReconcilerService) ReconcileBuild(ctx context.Context, buildID string) error {
	entries, err := r.store.List(ctx, engagement.MarksCollection(buildID))
	if err != nil {
		return transientStore("ReconcileBuild: list marks", err)
	}
	truth := int64(len(entries))

	repaired := false
	err = r.store.RunTransaction(ctx, build.DocPath(buildID), func(cur docstore.Document, exists bool) (docstore.Document, error) {
		if !exists {
			// The counter lives on the build document and is never
			// created independently of it.
			return nil, nil
		}
		cached := build.PopularityFromDocument(cur)
		if cached == truth {
			return nil, nil
		}
		log.Printf("ReconcileBuild: %s popularity %d != %d marks, correcting", buildID, cached, truth)
		middleware.RecordConsistencyDivergence("popularity")
		cur[build.PopularityField] = truth
		repaired = true
		return cur, nil
	})
	if err != nil {
		return transientStore("ReconcileBuild: rewrite counter", err)
	}
	if repaired {
		middleware.RecordConsistencyRepair("popularity")
	}
	return nil
}

// HealOwner repairs every flagged pair involving owner before a friends
// read. Successfully repaired pairs are unflagged.
func (r *ReconcilerService) HealOwner(ctx context.Context, owner string) error {
	r.mu.Lock()
	var pairs [][2]string
	for _, p := range r.suspectPairs {
		if p[0] == owner || p[1] == owner {
			pairs = append(pairs, p)
		}
	}
	r.mu.Unlock()

	var firstErr error
	for _, p := range pairs {
		if err := r.ReconcilePair(ctx, p[0], p[1]); err != nil {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		r.unflagPair(p[0], p[1])
	}
	return firstErr
}

// HealBuild repairs a flagged build counter before a popularity read.
func (r *ReconcilerService) HealBuild(ctx context.Context, buildID string) error {
	if !r.BuildSuspect(buildID) {
		return nil
	}
	if err := r.ReconcileBuild(ctx, buildID); err != nil {
		return err
	}
	r.mu.Lock()
	delete(r.suspectBuilds, buildID)
	r.mu.Unlock()
	return nil
}

func (r *ReconcilerService) unflagPair(a, b string) {
	r.mu.Lock()
	delete(r.suspectPairs, pairKey(a, b))
	r.mu.Unlock()
}

// Sweep drains the suspect sets once. Units that fail to repair stay
// flagged for the next pass.
func (r *ReconcilerService) Sweep(ctx context.Context) {
	r.mu.Lock()
	pairs := make([][2]string, 0, len(r.suspectPairs))
	for _, p := range r.suspectPairs {
		pairs = append(pairs, p)
	}
	builds := make([]string, 0, len(r.suspectBuilds))
	for id := range r.suspectBuilds {
		builds = append(builds, id)
	}
	r.mu.Unlock()

	for _, p := range pairs {
		if err := r.ReconcilePair(ctx, p[0], p[1]); err != nil {
			log.Printf("Sweep: pair %s/%s still divergent: %v", p[0], p[1], err)
			continue
		}
		r.unflagPair(p[0], p[1])
	}
	for _, id := range builds {
		if err := r.ReconcileBuild(ctx, id); err != nil {
			log.Printf("Sweep: build %s counter still suspect: %v", id, err)
			continue
		}
		r.mu.Lock()
		delete(r.suspectBuilds, id)
		r.mu.Unlock()
	}
}

// StartSweeper runs Sweep on a fixed interval until ctx is cancelled.
func (r *ReconcilerService) StartSweeper(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				r.Sweep(ctx)
			}
		}
	}()
}
