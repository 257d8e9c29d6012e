package cmd

import (
	"github.com/spf13/cobra"

	"github.com/zjrosen/smripost/internal/domain/layout"
	"github.com/zjrosen/smripost/internal/log"
	"github.com/zjrosen/smripost/internal/presentation"
)

func (a *app) newParseCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "parse PATH...",
		Short: "Parse file paths into entities",
		Long: `Parse dataset-relative file paths with the loaded path patterns.

The first pattern that matches a whole path wins. Paths no pattern matches
are reported with matched=false and the entities the registry can still
extract from them.

Examples:
  smripost parse sub-01/anat/sub-01_desc-preproc_T1w.nii.gz
  smripost parse -f table sub-01/anat/*.nii.gz`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			results := make(presentation.ParseResults, 0, len(args))
			for _, path := range args {
				results = append(results, parsePath(a.spec.Patterns, a.spec.Registry, path))
			}
			return a.formatter(cmd).Format(results)
		},
	}
}

func parsePath(ps *layout.Patterns, reg *layout.Registry, path string) presentation.ParseResultDTO {
	ents, p, ok := ps.Match(path)
	if ok {
		return presentation.ParseResultDTO{Path: path, Matched: true, Pattern: p.Template(), Entities: ents}
	}
	extracted, err := reg.ExtractAll(path)
	if err != nil {
		log.Warn(log.CatLayout, "Entity extraction failed", "path", path, "error", err)
		extracted = layout.Entities{}
	}
	return presentation.ParseResultDTO{Path: path, Entities: extracted}
}
