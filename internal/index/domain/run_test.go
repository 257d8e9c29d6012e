package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestRun_Duration(t *testing.T) {
	start := time.Date(2025, 1, 1, 10, 0, 0, 0, time.UTC)
	run := Run{StartedAt: start, FinishedAt: start.Add(1500 * time.Millisecond)}

	require.Equal(t, 1500*time.Millisecond, run.Duration())
}

func TestRunNotFoundError(t *testing.T) {
	var err error = &RunNotFoundError{Dataset: "/data/derivatives/smriprep"}

	require.ErrorIs(t, err, ErrRunNotFound)
	require.Contains(t, err.Error(), "/data/derivatives/smriprep")
}

func TestPaths(t *testing.T) {
	files := []File{{Path: "a.nii.gz"}, {Path: "sub-01/b.nii.gz"}}

	require.Equal(t, []string{"a.nii.gz", "sub-01/b.nii.gz"}, Paths(files))
	require.Empty(t, Paths(nil))
}
