package cmd

import (
	"github.com/spf13/cobra"

	"github.com/zjrosen/smripost/internal/domain/layout"
	"github.com/zjrosen/smripost/internal/presentation"
)

func (a *app) newGenerateCmd() *cobra.Command {
	var (
		pairs  []string
		strict bool
	)
	cmd := &cobra.Command{
		Use:   "generate -e name=value...",
		Short: "Generate a path from entities",
		Long: `Render the first path pattern the given entities satisfy.

With --strict, only patterns that use every given entity are considered.

Examples:
  smripost generate -e subject=01 -e datatype=anat -e desc=preproc -e suffix=T1w
  smripost generate --strict -e subject=01 -e hemi=L -e suffix=pial -e extension=.surf.gii`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ents, err := parseEntities(a.spec.Registry, pairs)
			if err != nil {
				return err
			}
			var opts []layout.GenerateOption
			if strict {
				opts = append(opts, layout.Strict())
			}
			path, err := a.spec.Patterns.Generate(ents, opts...)
			if err != nil {
				return err
			}
			return a.formatter(cmd).Format(presentation.GenerateResultDTO{Path: path, Entities: ents})
		},
	}
	cmd.Flags().StringArrayVarP(&pairs, "entity", "e", nil, "entity as name=value (repeatable)")
	cmd.Flags().BoolVar(&strict, "strict", false, "require every entity to appear in the pattern")
	return cmd
}
