package cmd

import (
	"context"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/zjrosen/smripost/internal/atlas"
	"github.com/zjrosen/smripost/internal/infrastructure/memory"
	"github.com/zjrosen/smripost/internal/iospec"
	"github.com/zjrosen/smripost/internal/presentation"
)

func (a *app) newAtlasesCmd() *cobra.Command {
	var (
		names  []string
		spaces []string
		pairs  []string
	)
	cmd := &cobra.Command{
		Use:   "atlases [NAME=]DATASET... -a ATLAS...",
		Short: "Collect atlases from BIDS-Atlas datasets",
		Long: `Search atlas datasets, in order, for each requested atlas.

Only datasets whose DatasetType is "atlas" are searched. Images are limited
to atlases.spaces (or --space). Each atlas needs a labels TSV with index and
label columns next to or above its image; a JSON sidecar carrying every
image entity is read as metadata. An atlas found in two datasets is an
error; atlases found nowhere are listed as missing.

Examples:
  smripost atlases /data/atlases -a Gordon -a Schaefer100
  smripost atlases linc=/data/atlases -a Gordon --space fsLR -e res=2`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			spec, err := iospec.Atlas()
			if err != nil {
				return err
			}
			filter, err := parseEntities(spec.Registry, pairs)
			if err != nil {
				return err
			}
			if len(spaces) == 0 {
				spaces = a.cfg.Atlases.Spaces
			}

			datasets := make([]atlas.Dataset, 0, len(args))
			for _, arg := range args {
				datasets = append(datasets, datasetArg(arg))
			}

			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			result, err := atlas.NewCollector(spec, memory.NewRepository(),
				atlas.WithSpaces(spaces...),
				atlas.WithTracer(a.tracer()),
			).Collect(ctx, datasets, names, filter)
			if err != nil {
				return err
			}
			return a.formatter(cmd).Format(presentation.AtlasResultDTO{Result: result})
		},
	}
	cmd.Flags().StringArrayVarP(&names, "atlas", "a", nil, "atlas name (repeatable, required)")
	cmd.Flags().StringArrayVar(&spaces, "space", nil, "allowed space (repeatable; default atlases.spaces)")
	cmd.Flags().StringArrayVarP(&pairs, "entity", "e", nil, "extra filter as name=value (repeatable)")
	_ = cmd.MarkFlagRequired("atlas")
	return cmd
}

// datasetArg splits NAME=PATH; a bare path is named after its directory.
func datasetArg(arg string) atlas.Dataset {
	if name, path, ok := strings.Cut(arg, "="); ok && name != "" {
		return atlas.Dataset{Name: name, Path: path}
	}
	return atlas.Dataset{Name: filepath.Base(filepath.Clean(arg)), Path: arg}
}
