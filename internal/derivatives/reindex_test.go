package derivatives

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/zjrosen/smripost/internal/dataset"
	"github.com/zjrosen/smripost/internal/infrastructure/memory"
	"github.com/zjrosen/smripost/internal/pubsub"
	"github.com/zjrosen/smripost/internal/testutil"
)

func nextEvent(t *testing.T, ch <-chan pubsub.Event[IndexEvent]) pubsub.Event[IndexEvent] {
	t.Helper()
	select {
	case e := <-ch:
		return e
	case <-time.After(5 * time.Second):
		require.Fail(t, "timeout waiting for index event")
	}
	return pubsub.Event[IndexEvent]{}
}

func TestIndexer_Reindex(t *testing.T) {
	root := testutil.NewBuilder(t).WithSMRIPrepOutputs("01").Build()
	ix := NewIndexer(defaultSpec(t), memory.NewRepository())

	broker := pubsub.NewBroker[IndexEvent]()
	defer broker.Close()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	events := broker.Subscribe(ctx)

	changes := make(chan struct{})
	done := make(chan error, 1)
	go func() { done <- ix.Reindex(ctx, root, changes, broker) }()

	first := nextEvent(t, events)
	require.Equal(t, EventIndexed, first.Type)
	require.Equal(t, 14, first.Payload.Result.Run.FileCount)

	require.NoError(t, os.WriteFile(
		filepath.Join(root, "sub-01/anat/sub-01_desc-aseg_dseg.nii.gz"), nil, 0o600))
	changes <- struct{}{}

	second := nextEvent(t, events)
	require.Equal(t, EventIndexed, second.Type)
	require.Equal(t, 15, second.Payload.Result.Run.FileCount)

	require.NoError(t, os.Remove(filepath.Join(root, "dataset_description.json")))
	changes <- struct{}{}

	failed := nextEvent(t, events)
	require.Equal(t, EventFailed, failed.Type)
	require.ErrorIs(t, failed.Payload.Err, dataset.ErrNoDescription)

	close(changes)
	require.NoError(t, <-done)
}

func TestIndexer_ReindexFirstRunFails(t *testing.T) {
	ix := NewIndexer(defaultSpec(t), memory.NewRepository())
	broker := pubsub.NewBroker[IndexEvent]()
	defer broker.Close()

	err := ix.Reindex(context.Background(), t.TempDir(), nil, broker)
	require.ErrorIs(t, err, dataset.ErrNoDescription)
}
