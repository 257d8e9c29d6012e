package cmd

import (
	"context"
	"errors"

	"github.com/spf13/cobra"

	"github.com/zjrosen/smripost/internal/derivatives"
	"github.com/zjrosen/smripost/internal/index/domain"
	"github.com/zjrosen/smripost/internal/paths"
	"github.com/zjrosen/smripost/internal/presentation"
)

func (a *app) newCollectCmd() *cobra.Command {
	var (
		subject       string
		session       string
		pairs         []string
		spaces        []string
		allowMultiple bool
		reindex       bool
		bidsURIs      bool
		outDir        string
	)
	cmd := &cobra.Command{
		Use:   "collect DATASET -s SUBJECT",
		Short: "Collect the derivatives of one subject",
		Long: `Answer every derivatives and transforms query for a subject.

Queries named anat* accept files at subject level or in the given session
and keep the first of several matches. Other queries are narrowed by every
given entity and fail on several matches unless --allow-multiple (or
collect.allow_multiple) is set.

Each --space requires a transform from the anatomical reference to that
space. The dataset is indexed first when it has no index yet or with
--reindex.

Examples:
  smripost collect /data/derivatives/smriprep -s 01
  smripost collect /data/derivatives/smriprep -s 01 --session 1 --space MNI152NLin6Asym
  smripost collect /data/derivatives/smriprep -s 01 --bids-uris --out-dir /out`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ents, err := parseEntities(a.spec.Registry, pairs)
			if err != nil {
				return err
			}
			if subject != "" {
				ents["subject"] = subject
			}
			if session != "" {
				ents["session"] = session
			}

			repo, closeRepo, err := a.openIndex()
			if err != nil {
				return err
			}
			defer closeRepo()

			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			root, err := paths.DatasetRoot(args[0])
			if err != nil {
				return err
			}
			if err := a.ensureIndexed(ctx, repo, root, reindex); err != nil {
				return err
			}

			coll, err := derivatives.NewCollector(a.spec, repo, derivatives.WithCollectTracer(a.tracer())).
				Collect(ctx, root, ents, derivatives.CollectOptions{
					AllowMultiple: allowMultiple || a.cfg.Collect.AllowMultiple,
					Spaces:        spaces,
				})
			if err != nil {
				return err
			}

			dto := presentation.CollectionDTO{Collection: coll}
			if bidsURIs {
				dto.URIs = make(map[string][]string, len(coll.Files))
				for key, paths := range coll.Files {
					if len(paths) > 0 {
						dto.URIs[key] = derivatives.BIDSURIs(paths, a.cfg.DatasetLinks, outDir)
					}
				}
			}
			return a.formatter(cmd).Format(dto)
		},
	}
	cmd.Flags().StringVarP(&subject, "subject", "s", "", "subject label without sub- (required)")
	cmd.Flags().StringVar(&session, "session", "", "session label without ses-")
	cmd.Flags().StringArrayVarP(&pairs, "entity", "e", nil, "additional entity as name=value (repeatable)")
	cmd.Flags().StringArrayVar(&spaces, "space", nil, "output space needing a transform (repeatable)")
	cmd.Flags().BoolVar(&allowMultiple, "allow-multiple", false, "return every match instead of failing")
	cmd.Flags().BoolVar(&reindex, "reindex", false, "index the dataset before collecting")
	cmd.Flags().BoolVar(&bidsURIs, "bids-uris", false, "also report paths as BIDS-URIs using dataset_links")
	cmd.Flags().StringVar(&outDir, "out-dir", "", "output dataset for bids:: URIs")
	_ = cmd.MarkFlagRequired("subject")
	return cmd
}

func (a *app) ensureIndexed(ctx context.Context, repo domain.Repository, root string, force bool) error {
	if !force {
		_, err := repo.LatestRun(ctx, root)
		if err == nil {
			return nil
		}
		if !errors.Is(err, domain.ErrRunNotFound) {
			return err
		}
	}
	_, err := a.newIndexer(repo, false).Index(ctx, root)
	return err
}
