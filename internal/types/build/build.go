package build

import (
	"time"

	"buildForgeAPI/internal/docstore"
)

// Build is a member's goal-tracking item. Popularity is a denormalized count
// of like marks; nothing outside the engagement and reconciler paths may
// write it.
type Build struct {
	ID          string    `json:"id"`
	OwnerID     string    `json:"owner_id"`
	Name        string    `json:"name"`
	Category    string    `json:"category"`
	Target      string    `json:"target"`
	Description string    `json:"description"`
	Difficulty  string    `json:"difficulty"`
	PointValue  int64     `json:"point_value"`
	IsPublic    bool      `json:"is_public"`
	Popularity  int64     `json:"popularity"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type CreateBuildRequest struct {
	Name        string `json:"name"`
	Category    string `json:"category"`
	Target      string `json:"target"`
	Description string `json:"description"`
	Difficulty  string `json:"difficulty"`
	PointValue  int64  `json:"point_value"`
	IsPublic    bool   `json:"is_public"`
}

const Collection = "builds"

// PopularityField is the single counter field the engagement layer mutates.
const PopularityField = "popularity"

func DocPath(id string) string {
	return Collection + "/" + id
}

func (b *Build) Document() docstore.Document {
	return docstore.Document{
		"ownerId":       b.OwnerID,
		"name":          b.Name,
		"category":      b.Category,
		"target":        b.Target,
		"description":   b.Description,
		"difficulty":    b.Difficulty,
		"pointValue":    b.PointValue,
		"isPublic":      b.IsPublic,
		PopularityField: b.Popularity,
		"createdAt":     b.CreatedAt,
		"updatedAt":     b.UpdatedAt,
	}
}

func FromDocument(id string, d docstore.Document) *Build {
	b := &Build{ID: id}
	if v, ok := d["ownerId"].(string); ok {
		b.OwnerID = v
	}
	if v, ok := d["name"].(string); ok {
		b.Name = v
	}
	if v, ok := d["category"].(string); ok {
		b.Category = v
	}
	if v, ok := d["target"].(string); ok {
		b.Target = v
	}
	if v, ok := d["description"].(string); ok {
		b.Description = v
	}
	if v, ok := d["difficulty"].(string); ok {
		b.Difficulty = v
	}
	if v, ok := d["pointValue"].(int64); ok {
		b.PointValue = v
	}
	if v, ok := d["isPublic"].(bool); ok {
		b.IsPublic = v
	}
	b.Popularity = PopularityFromDocument(d)
	if v, ok := d["createdAt"].(time.Time); ok {
		b.CreatedAt = v
	}
	if v, ok := d["updatedAt"].(time.Time); ok {
		b.UpdatedAt = v
	}
	return b
}

// PopularityFromDocument reads the cached counter, clamped at zero. A
// missing or malformed field reads as zero rather than failing the caller.
func PopularityFromDocument(d docstore.Document) int64 {
	v, ok := d[PopularityField].(int64)
	if !ok || v < 0 {
		return 0
	}
	return v
}
