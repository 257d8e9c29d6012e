package cmd

import (
	"github.com/spf13/cobra"

	"github.com/zjrosen/smripost/internal/domain/layout"
	"github.com/zjrosen/smripost/internal/presentation"
)

func (a *app) newEntitiesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "entities [PATH...]",
		Short: "Show registered entities or the entities common to paths",
		Long: `Without arguments, list the entities of the specification in declaration order.

With paths, extract every entity from each path and merge them. An entity
with one distinct value maps to it; one with several maps to a sorted list.

Examples:
  smripost entities
  smripost entities sub-01/anat/sub-01_run-1_T1w.nii.gz sub-01/anat/sub-01_run-2_T1w.nii.gz`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				return a.formatter(cmd).Format(presentation.FromRegistry(a.spec.Registry))
			}
			ents, err := layout.CommonEntities(a.spec.Registry, args...)
			if err != nil {
				return err
			}
			return a.formatter(cmd).Format(presentation.EntitiesDTO(ents))
		},
	}
}
