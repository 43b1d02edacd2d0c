package services

import (
	"context"
	"errors"
	"log"
	"time"

	"buildForgeAPI/internal/docstore"
	"buildForgeAPI/internal/types/build"
	"buildForgeAPI/internal/types/engagement"
)

// EngagementService owns the like ledger and the popularity counter cached
// on the build document. The mark write and the counter update cannot share
// a transaction, so the counter mutation runs inside the store's
// single-document transaction and a failed second phase rolls the mark back;
// when even the rollback fails the build is flagged for the reconciler.
type EngagementService struct {
	store      docstore.Store
	reconciler *ReconcilerService
}

func NewEngagementService(store docstore.Store, reconciler *ReconcilerService) *EngagementService {
	return &EngagementService{store: store, reconciler: reconciler}
}

// Like records that member likes the build and bumps the cached popularity
// by one. Liking twice fails; the mark is keyed by member so a retry of a
// half-finished like converges instead of double counting.
func (s *EngagementService) Like(ctx context.Context, buildID, memberID string) error {
	if _, err := s.store.Get(ctx, build.DocPath(buildID)); err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			return ErrBuildNotFound
		}
		return transientStore("Like: read build", err)
	}

	markPath := engagement.MarkPath(buildID, memberID)
	_, err := s.store.Get(ctx, markPath)
	if err == nil {
		log.Printf("Like: %s already liked %s", memberID, buildID)
		return ErrAlreadyLiked
	}
	if !errors.Is(err, docstore.ErrNotFound) {
		return transientStore("Like: read mark", err)
	}

	mark := &engagement.Mark{BuildID: buildID, MemberID: memberID, CreatedAt: time.Now().UTC()}
	if err := s.store.Set(ctx, markPath, mark.Document()); err != nil {
		// Nothing committed; a wholesale retry is safe.
		return transientStore("Like: write mark", err)
	}

	err = s.store.RunTransaction(ctx, build.DocPath(buildID), func(cur docstore.Document, exists bool) (docstore.Document, error) {
		if !exists {
			return nil, docstore.ErrNotFound
		}
		cur[build.PopularityField] = build.PopularityFromDocument(cur) + 1
		return cur, nil
	})
	if err != nil {
		s.rollbackMark(ctx, buildID, memberID, markPath)
		if errors.Is(err, docstore.ErrNotFound) {
			return ErrBuildNotFound
		}
		return transientStore("Like: increment popularity", err)
	}

	log.Printf("Like: %s liked %s", memberID, buildID)
	return nil
}

// Unlike removes the member's mark and decrements the cached popularity,
// clamped at zero so drift can never push it negative.
func (s *EngagementService) Unlike(ctx context.Context, buildID, memberID string) error {
	markPath := engagement.MarkPath(buildID, memberID)
	if _, err := s.store.Get(ctx, markPath); err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			return ErrNotLiked
		}
		return transientStore("Unlike: read mark", err)
	}

	if err := s.store.Delete(ctx, markPath); err != nil {
		return transientStore("Unlike: delete mark", err)
	}

	err := s.store.RunTransaction(ctx, build.DocPath(buildID), func(cur docstore.Document, exists bool) (docstore.Document, error) {
		if !exists {
			// Build gone; there is no counter left to move.
			return nil, nil
		}
		current := build.PopularityFromDocument(cur)
		if current > 0 {
			current--
		}
		cur[build.PopularityField] = current
		return cur, nil
	})
	if err != nil {
		// The mark is gone but the counter still includes it: the classic
		// drift window. Flag the build; the caller sees a retryable error.
		log.Printf("Unlike: decrement failed for %s, flagging for audit: %v", buildID, err)
		s.reconciler.FlagBuild(buildID)
		return transientStore("Unlike: decrement popularity", err)
	}

	log.Printf("Unlike: %s unliked %s", memberID, buildID)
	return nil
}

// GetPopularity returns the cached counter. It may be stale after a partial
// failure; a build flagged suspect is audited before the read.
func (s *EngagementService) GetPopularity(ctx context.Context, buildID string) (int64, error) {
	if err := s.reconciler.HealBuild(ctx, buildID); err != nil {
		log.Printf("GetPopularity: audit of %s failed, serving cached value: %v", buildID, err)
	}

	doc, err := s.store.Get(ctx, build.DocPath(buildID))
	if err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			return 0, ErrBuildNotFound
		}
		return 0, transientStore("GetPopularity: read build", err)
	}
	return build.PopularityFromDocument(doc), nil
}

// IsLiked reports whether the member currently likes the build.
func (s *EngagementService) IsLiked(ctx context.Context, buildID, memberID string) (bool, error) {
	_, err := s.store.Get(ctx, engagement.MarkPath(buildID, memberID))
	if err == nil {
		return true, nil
	}
	if errors.Is(err, docstore.ErrNotFound) {
		return false, nil
	}
	return false, transientStore("IsLiked: read mark", err)
}

// rollbackMark compensates a mark whose counter increment never committed.
func (s *EngagementService) rollbackMark(ctx context.Context, buildID, memberID, markPath string) {
	if err := s.store.Delete(ctx, markPath); err != nil {
		log.Printf("Like: rollback of mark %s/%s failed, flagging build for audit: %v", buildID, memberID, err)
		s.reconciler.FlagBuild(buildID)
	}
}
