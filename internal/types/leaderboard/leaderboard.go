package leaderboard

import (
	"time"

	"buildForgeAPI/internal/docstore"
)

type ScoreEntry struct {
	MemberID  string    `json:"member_id"`
	Score     int64     `json:"score"`
	Streak    int64     `json:"streak"`
	RealName  string    `json:"real_name,omitempty"`
	PhotoURL  string    `json:"photo_url,omitempty"`
	Handle    string    `json:"handle,omitempty"`
	Rank      int       `json:"rank"`
	UpdatedAt time.Time `json:"updated_at"`
}

type Leaderboard struct {
	Entries    []*ScoreEntry `json:"entries"`
	TotalUsers int           `json:"total_users"`
}

const ScoresCollection = "leaderboards/global/scores"

func ScorePath(memberID string) string {
	return ScoresCollection + "/" + memberID
}

func ProfilePath(memberID string) string {
	return "profiles/" + memberID
}

func (e *ScoreEntry) Document() docstore.Document {
	return docstore.Document{
		"score":     e.Score,
		"streak":    e.Streak,
		"updatedAt": e.UpdatedAt,
	}
}

func ScoreFromDocument(memberID string, d docstore.Document) *ScoreEntry {
	e := &ScoreEntry{MemberID: memberID}
	if v, ok := d["score"].(int64); ok {
		e.Score = v
	}
	if v, ok := d["streak"].(int64); ok {
		e.Streak = v
	}
	if v, ok := d["updatedAt"].(time.Time); ok {
		e.UpdatedAt = v
	}
	return e
}
