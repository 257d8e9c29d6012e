package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/zjrosen/smripost/internal/domain/layout"
	"github.com/zjrosen/smripost/internal/index/domain"
)

func TestRepository_FindAndAll(t *testing.T) {
	ctx := context.Background()
	repo := NewRepository()

	files := []domain.File{
		{Path: "b.nii.gz", Matched: true, Entities: layout.Entities{"suffix": "T2w"}},
		{Path: "a.nii.gz", Matched: true, Entities: layout.Entities{"suffix": "T1w", "desc": "preproc"}},
	}
	require.NoError(t, repo.ReplaceAll(ctx, domain.Run{ID: "r1", Dataset: "/ds"}, files))

	all, err := repo.All(ctx, "/ds")
	require.NoError(t, err)
	require.Equal(t, []string{"a.nii.gz", "b.nii.gz"}, domain.Paths(all))

	q := layout.NewQuery(layout.NamespaceDerivatives, "q", map[string]layout.Constraint{
		"desc": layout.MustBeAbsent(),
	})
	found, err := repo.Find(ctx, "/ds", q)
	require.NoError(t, err)
	require.Equal(t, []string{"b.nii.gz"}, domain.Paths(found))

	files[0].Entities["suffix"] = "changed"
	all, _ = repo.All(ctx, "/ds")
	require.Equal(t, "T2w", all[1].Entities["suffix"], "stored entities are copies")
}

func TestRepository_LatestRun(t *testing.T) {
	ctx := context.Background()
	repo := NewRepository()

	_, err := repo.LatestRun(ctx, "/ds")
	require.ErrorIs(t, err, domain.ErrRunNotFound)

	now := time.Now()
	require.NoError(t, repo.ReplaceAll(ctx, domain.Run{ID: "r1", Dataset: "/ds", FinishedAt: now}, nil))
	require.NoError(t, repo.ReplaceAll(ctx, domain.Run{ID: "r2", Dataset: "/ds", FinishedAt: now}, nil))

	run, err := repo.LatestRun(ctx, "/ds")
	require.NoError(t, err)
	require.Equal(t, "r2", run.ID)
	require.NoError(t, repo.Close())
}
