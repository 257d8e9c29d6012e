package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/zjrosen/smripost/internal/bidsignore"
	"github.com/zjrosen/smripost/internal/derivatives"
	"github.com/zjrosen/smripost/internal/index/domain"
	"github.com/zjrosen/smripost/internal/log"
	"github.com/zjrosen/smripost/internal/paths"
	"github.com/zjrosen/smripost/internal/presentation"
	"github.com/zjrosen/smripost/internal/pubsub"
	"github.com/zjrosen/smripost/internal/watcher"
)

func (a *app) newIndexCmd() *cobra.Command {
	var (
		watch         bool
		useBIDSIgnore bool
	)
	cmd := &cobra.Command{
		Use:   "index DATASET",
		Short: "Index a derivative dataset",
		Long: `Walk a derivative dataset, parse every file name and store the entities in
the index database (index.db_path).

DATASET may be any path inside the dataset; the nearest enclosing directory
holding a dataset_description.json is indexed. Datasets whose DatasetType
is not "derivative" are stored as empty. Files matching index.ignore, and
hidden files, are skipped; --bidsignore also honors the dataset's
.bidsignore.

With --watch the dataset is re-indexed after every burst of changes until
interrupted.

Examples:
  smripost index /data/derivatives/smriprep
  smripost index --watch /data/derivatives/smriprep`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			repo, closeRepo, err := a.openIndex()
			if err != nil {
				return err
			}
			defer closeRepo()

			root, err := paths.DatasetRoot(args[0])
			if err != nil {
				return err
			}
			indexer := a.newIndexer(repo, useBIDSIgnore)
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}

			if !watch {
				result, err := indexer.Index(ctx, root)
				if err != nil {
					return err
				}
				return a.formatter(cmd).Format(presentation.FromIndexResult(result))
			}

			ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
			defer stop()
			return a.watchIndex(ctx, cmd, indexer, root)
		},
	}
	cmd.Flags().BoolVarP(&watch, "watch", "w", false, "re-index on changes until interrupted")
	cmd.Flags().BoolVar(&useBIDSIgnore, "bidsignore", false, "also skip files matched by the dataset's .bidsignore")
	return cmd
}

func (a *app) newIndexer(repo domain.Repository, useBIDSIgnore bool) *derivatives.Indexer {
	opts := []derivatives.IndexerOption{
		derivatives.WithIgnore(a.cfg.Index.Ignore...),
		derivatives.WithCache(a.cfg.Cache),
		derivatives.WithTracer(a.tracer()),
	}
	if useBIDSIgnore {
		opts = append(opts, derivatives.WithBIDSIgnore())
	}
	return derivatives.NewIndexer(a.spec, repo, opts...)
}

func (a *app) watchIndex(ctx context.Context, cmd *cobra.Command, indexer *derivatives.Indexer, root string) error {
	ignore, err := bidsignore.New(a.cfg.Index.Ignore...)
	if err != nil {
		return err
	}
	w, err := watcher.New(watcher.Config{
		Root:        root,
		DebounceDur: a.cfg.Index.WatchDebounce,
		Ignore:      ignore,
	})
	if err != nil {
		return err
	}
	changes, err := w.Start()
	if err != nil {
		_ = w.Stop()
		return err
	}
	defer func() { _ = w.Stop() }()

	broker := pubsub.NewBroker[derivatives.IndexEvent]()
	subCtx, cancelSub := context.WithCancel(context.Background())
	defer cancelSub()
	events := broker.Subscribe(subCtx)

	printed := make(chan struct{})
	go func() {
		defer close(printed)
		f := a.formatter(cmd)
		for event := range events {
			if event.Type == derivatives.EventFailed {
				_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "re-index failed: %v\n", event.Payload.Err)
				continue
			}
			if err := f.Format(presentation.FromIndexResult(event.Payload.Result)); err != nil {
				log.ErrorErr(log.CatWatcher, "Writing index result failed", err)
			}
		}
	}()

	log.Info(log.CatWatcher, "Watching dataset", "root", root)
	err = indexer.Reindex(ctx, root, changes, broker)
	broker.Close()
	<-printed
	log.Info(log.CatWatcher, "Stopped watching", "root", root)
	return err
}
