package services

import (
	"context"
	"errors"
	"log"
	"sort"
	"time"

	"buildForgeAPI/internal/docstore"
	"buildForgeAPI/internal/types/leaderboard"
)

// LeaderboardService maintains the global score board and mirrors the score
// into the member's profile stats. Same dual-write family as the core
// relationship layer: the two documents are only eventually consistent.
type LeaderboardService struct {
	store docstore.Store
}

func NewLeaderboardService(store docstore.Store) *LeaderboardService {
	return &LeaderboardService{store: store}
}

func (s *LeaderboardService) UpdateScore(ctx context.Context, memberID string, score, streak int64) error {
	entry := &leaderboard.ScoreEntry{
		MemberID:  memberID,
		Score:     score,
		Streak:    streak,
		UpdatedAt: time.Now().UTC(),
	}

	if err := s.store.Set(ctx, leaderboard.ScorePath(memberID), entry.Document()); err != nil {
		return transientStore("UpdateScore: write score", err)
	}

	// Mirror into the profile stats; the board document is authoritative, a
	// stale profile only affects display.
	err := s.store.RunTransaction(ctx, leaderboard.ProfilePath(memberID), func(cur docstore.Document, exists bool) (docstore.Document, error) {
		if cur == nil {
			cur = docstore.Document{}
		}
		cur["statsScore"] = score
		cur["statsStreak"] = streak
		cur["updatedAt"] = entry.UpdatedAt
		return cur, nil
	})
	if err != nil {
		log.Printf("UpdateScore: profile stats mirror failed for %s: %v", memberID, err)
		return transientStore("UpdateScore: mirror profile stats", err)
	}

	return nil
}

// GetGlobalLeaderboard lists scores descending and joins profile display
// fields, falling back to a short handle derived from the identity.
func (s *LeaderboardService) GetGlobalLeaderboard(ctx context.Context, limit int) (*leaderboard.Leaderboard, error) {
	entries, err := s.store.List(ctx, leaderboard.ScoresCollection)
	if err != nil {
		return nil, transientStore("GetGlobalLeaderboard: list scores", err)
	}

	scores := make([]*leaderboard.ScoreEntry, 0, len(entries))
	for _, e := range entries {
		scores = append(scores, leaderboard.ScoreFromDocument(e.ID, e.Data))
	}
	sort.Slice(scores, func(i, j int) bool { return scores[i].Score > scores[j].Score })
	total := len(scores)
	if limit > 0 && len(scores) > limit {
		scores = scores[:limit]
	}

	for i, entry := range scores {
		entry.Rank = i + 1
		s.decorateEntry(ctx, entry)
	}

	return &leaderboard.Leaderboard{Entries: scores, TotalUsers: total}, nil
}

func (s *LeaderboardService) decorateEntry(ctx context.Context, entry *leaderboard.ScoreEntry) {
	entry.RealName = "Unknown User"
	if len(entry.MemberID) >= 6 {
		entry.Handle = entry.MemberID[:6]
	} else {
		entry.Handle = entry.MemberID
	}

	doc, err := s.store.Get(ctx, leaderboard.ProfilePath(entry.MemberID))
	if err != nil {
		if !errors.Is(err, docstore.ErrNotFound) {
			log.Printf("GetGlobalLeaderboard: profile read failed for %s: %v", entry.MemberID, err)
		}
		return
	}
	if v, ok := doc["realName"].(string); ok && v != "" {
		entry.RealName = v
	}
	if v, ok := doc["photoURL"].(string); ok {
		entry.PhotoURL = v
	}
	if v, ok := doc["handle"].(string); ok && v != "" {
		entry.Handle = v
	}
}
