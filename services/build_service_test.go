package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"buildForgeAPI/internal/docstore"
	buildtypes "buildForgeAPI/internal/types/build"
)

func TestCreateBuildDefaults(t *testing.T) {
	ctx := context.Background()
	svc := NewBuildService(docstore.NewMemoryStore())

	b, err := svc.CreateBuild(ctx, "u1", &buildtypes.CreateBuildRequest{Name: "Run 5k", IsPublic: true})
	require.NoError(t, err)
	assert.NotEmpty(t, b.ID)
	assert.Equal(t, "u1", b.OwnerID)
	assert.Equal(t, "Medium", b.Difficulty)
	assert.Equal(t, int64(150), b.PointValue)
	assert.Equal(t, int64(0), b.Popularity)

	got, err := svc.GetBuild(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, b.Name, got.Name)
	assert.True(t, got.IsPublic)
}

func TestCreateBuildRequiresName(t *testing.T) {
	svc := NewBuildService(docstore.NewMemoryStore())
	_, err := svc.CreateBuild(context.Background(), "u1", &buildtypes.CreateBuildRequest{})
	assert.ErrorIs(t, err, ErrInvalidBuild)
}

func TestGetBuildNotFound(t *testing.T) {
	svc := NewBuildService(docstore.NewMemoryStore())
	_, err := svc.GetBuild(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrBuildNotFound)
}

func TestListPublicBuildsOrdering(t *testing.T) {
	ctx := context.Background()
	store := docstore.NewMemoryStore()
	svc := NewBuildService(store)

	now := time.Now().UTC()
	seed := []*buildtypes.Build{
		{ID: "old", Name: "old", IsPublic: true, Popularity: 3, CreatedAt: now.Add(-2 * time.Hour)},
		{ID: "hot", Name: "hot", IsPublic: true, Popularity: 9, CreatedAt: now.Add(-time.Hour)},
		{ID: "new", Name: "new", IsPublic: true, Popularity: 3, CreatedAt: now},
		{ID: "priv", Name: "priv", IsPublic: false, Popularity: 50, CreatedAt: now},
	}
	for _, b := range seed {
		require.NoError(t, store.Set(ctx, buildtypes.DocPath(b.ID), b.Document()))
	}

	builds, err := svc.ListPublicBuilds(ctx, 0)
	require.NoError(t, err)
	require.Len(t, builds, 3)
	assert.Equal(t, "hot", builds[0].ID)
	assert.Equal(t, "new", builds[1].ID) // ties break newest first
	assert.Equal(t, "old", builds[2].ID)

	builds, err = svc.ListPublicBuilds(ctx, 2)
	require.NoError(t, err)
	assert.Len(t, builds, 2)
}
