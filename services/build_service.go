package services

import (
	"context"
	"errors"
	"log"
	"sort"
	"time"

	"github.com/google/uuid"

	"buildForgeAPI/internal/docstore"
	"buildForgeAPI/internal/types/build"
)

// BuildService owns the build content documents. It seeds popularity at
// zero and otherwise never touches the counter field.
type BuildService struct {
	store docstore.Store
}

func NewBuildService(store docstore.Store) *BuildService {
	return &BuildService{store: store}
}

func (s *BuildService) CreateBuild(ctx context.Context, ownerID string, req *build.CreateBuildRequest) (*build.Build, error) {
	if req.Name == "" {
		return nil, ErrInvalidBuild
	}

	now := time.Now().UTC()
	b := &build.Build{
		ID:          uuid.New().String(),
		OwnerID:     ownerID,
		Name:        req.Name,
		Category:    req.Category,
		Target:      req.Target,
		Description: req.Description,
		Difficulty:  req.Difficulty,
		PointValue:  req.PointValue,
		IsPublic:    req.IsPublic,
		Popularity:  0,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if b.Difficulty == "" {
		b.Difficulty = "Medium"
	}
	if b.PointValue == 0 {
		b.PointValue = 150
	}

	if err := s.store.Set(ctx, build.DocPath(b.ID), b.Document()); err != nil {
		return nil, transientStore("CreateBuild: write build", err)
	}

	log.Printf("CreateBuild: %s created build %s (%s)", ownerID, b.ID, b.Name)
	return b, nil
}

func (s *BuildService) GetBuild(ctx context.Context, id string) (*build.Build, error) {
	doc, err := s.store.Get(ctx, build.DocPath(id))
	if err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			return nil, ErrBuildNotFound
		}
		return nil, transientStore("GetBuild: read build", err)
	}
	return build.FromDocument(id, doc), nil
}

// ListPublicBuilds returns public builds sorted by popularity, newest first
// among equals. The popularity used for ordering is the cached counter, so
// ordering may briefly lag a half-finished like.
func (s *BuildService) ListPublicBuilds(ctx context.Context, limit int) ([]*build.Build, error) {
	entries, err := s.store.List(ctx, build.Collection)
	if err != nil {
		return nil, transientStore("ListPublicBuilds: list builds", err)
	}

	builds := make([]*build.Build, 0, len(entries))
	for _, e := range entries {
		b := build.FromDocument(e.ID, e.Data)
		if b.IsPublic {
			builds = append(builds, b)
		}
	}
	sort.Slice(builds, func(i, j int) bool {
		if builds[i].Popularity != builds[j].Popularity {
			return builds[i].Popularity > builds[j].Popularity
		}
		return builds[i].CreatedAt.After(builds[j].CreatedAt)
	})
	if limit > 0 && len(builds) > limit {
		builds = builds[:limit]
	}
	return builds, nil
}
