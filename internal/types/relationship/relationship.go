package relationship

import (
	"time"

	"buildForgeAPI/internal/docstore"
)

type Status string

const (
	StatusPending  Status = "pending"
	StatusAccepted Status = "accepted"
	StatusDeclined Status = "declined"
)

// rank orders statuses by privilege; an unrecognized status sorts lowest so
// a corrupted record can never promote a pair to friendship.
func (s Status) rank() int {
	switch s {
	case StatusAccepted:
		return 2
	case StatusPending:
		return 1
	case StatusDeclined:
		return 0
	default:
		return -1
	}
}

// LessPrivileged returns whichever of the two statuses grants less. Used to
// resolve mirrored records that disagree: declined beats pending beats
// accepted, so a friendship one side rejected is never granted.
func LessPrivileged(a, b Status) Status {
	if b.rank() < a.rank() {
		return b
	}
	return a
}

// Record is one projection of a friend request, stored under the owner's
// identity and keyed by the counterpart's. The same logical request exists
// twice, once per participant.
type Record struct {
	Owner       string    `json:"owner"`
	Counterpart string    `json:"counterpart"`
	From        string    `json:"from"` // identity that initiated the request
	Status      Status    `json:"status"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Edge is one projection of an established friendship.
type Edge struct {
	Owner  string    `json:"owner"`
	Friend string    `json:"friend"`
	Since  time.Time `json:"since"`
}

func RequestPath(owner, counterpart string) string {
	return "friends/" + owner + "/requests/" + counterpart
}

func RequestsCollection(owner string) string {
	return "friends/" + owner + "/requests"
}

func EdgePath(owner, friend string) string {
	return "friends/" + owner + "/list/" + friend
}

func EdgesCollection(owner string) string {
	return "friends/" + owner + "/list"
}

func (r *Record) Document() docstore.Document {
	return docstore.Document{
		"owner":       r.Owner,
		"counterpart": r.Counterpart,
		"from":        r.From,
		"status":      string(r.Status),
		"createdAt":   r.CreatedAt,
		"updatedAt":   r.UpdatedAt,
	}
}

func (e *Edge) Document() docstore.Document {
	return docstore.Document{
		"since": e.Since,
	}
}

// RecordFromDocument rebuilds a Record from its stored fields. Owner and
// counterpart come from the document path, so a record read from the wrong
// projection can never masquerade as the right one.
func RecordFromDocument(owner, counterpart string, d docstore.Document) *Record {
	r := &Record{Owner: owner, Counterpart: counterpart}
	if v, ok := d["from"].(string); ok {
		r.From = v
	}
	if v, ok := d["status"].(string); ok {
		r.Status = Status(v)
	}
	if v, ok := d["createdAt"].(time.Time); ok {
		r.CreatedAt = v
	}
	if v, ok := d["updatedAt"].(time.Time); ok {
		r.UpdatedAt = v
	}
	return r
}

func EdgeFromDocument(owner, friend string, d docstore.Document) *Edge {
	e := &Edge{Owner: owner, Friend: friend}
	if v, ok := d["since"].(time.Time); ok {
		e.Since = v
	}
	return e
}
