package derivatives

import (
	"context"

	"github.com/zjrosen/smripost/internal/log"
	"github.com/zjrosen/smripost/internal/pubsub"
)

// Event types published by Reindex.
const (
	EventIndexed pubsub.EventType = "indexed"
	EventFailed  pubsub.EventType = "failed"
)

// IndexEvent is the outcome of one index run started by Reindex.
type IndexEvent struct {
	Root   string
	Result *IndexResult
	Err    error
}

// Reindex indexes root, then again after every signal on changes, until ctx
// is done or changes is closed. Every outcome is published. Only a failure
// of the first run is returned; later failures are published and the loop
// keeps going.
func (ix *Indexer) Reindex(ctx context.Context, root string, changes <-chan struct{}, pub pubsub.Publisher[IndexEvent]) error {
	result, err := ix.Index(ctx, root)
	if err != nil {
		return err
	}
	pub.Publish(EventIndexed, IndexEvent{Root: root, Result: result})

	for {
		select {
		case <-ctx.Done():
			return nil
		case _, ok := <-changes:
			if !ok {
				return nil
			}
			result, err := ix.Index(ctx, root)
			if err != nil {
				if ctx.Err() != nil {
					return nil
				}
				log.ErrorErr(log.CatIndex, "Re-index failed", err, "root", root)
				pub.Publish(EventFailed, IndexEvent{Root: root, Err: err})
				continue
			}
			pub.Publish(EventIndexed, IndexEvent{Root: root, Result: result})
		}
	}
}
