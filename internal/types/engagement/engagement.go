package engagement

import (
	"time"

	"buildForgeAPI/internal/docstore"
)

// Mark records that one member likes one build. Existence is the fact; the
// build's popularity field is only a cached count of these.
type Mark struct {
	BuildID   string    `json:"build_id"`
	MemberID  string    `json:"member_id"`
	CreatedAt time.Time `json:"created_at"`
}

func MarkPath(buildID, memberID string) string {
	return "likes/" + buildID + "/by/" + memberID
}

func MarksCollection(buildID string) string {
	return "likes/" + buildID + "/by"
}

func (m *Mark) Document() docstore.Document {
	return docstore.Document{
		"createdAt": m.CreatedAt,
	}
}

func MarkFromDocument(buildID, memberID string, d docstore.Document) *Mark {
	m := &Mark{BuildID: buildID, MemberID: memberID}
	if v, ok := d["createdAt"].(time.Time); ok {
		m.CreatedAt = v
	}
	return m
}
