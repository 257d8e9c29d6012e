package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/zjrosen/smripost/internal/presentation"
)

func (a *app) newQueryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "query",
		Short: "Inspect the named queries of the specification",
	}
	cmd.AddCommand(a.newQueryListCmd(), a.newQueryMatchCmd())
	return cmd
}

func (a *app) newQueryListCmd() *cobra.Command {
	var namespace string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List queries and their constraints",
		Long: `List the queries of every namespace, or of one with --namespace.

Constraints print as a literal, null (the entity must be absent) or a list
of alternatives where null admits a missing entity.

Examples:
  smripost query list
  smripost query list -n transforms -f table`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var namespaces []string
			if namespace != "" {
				if len(a.spec.Catalog.Names(namespace)) == 0 {
					return fmt.Errorf("unknown namespace %q", namespace)
				}
				namespaces = []string{namespace}
			}
			return a.formatter(cmd).Format(presentation.FromCatalog(a.spec.Catalog, namespaces...))
		},
	}
	cmd.Flags().StringVarP(&namespace, "namespace", "n", "", "only list this namespace")
	return cmd
}

func (a *app) newQueryMatchCmd() *cobra.Command {
	var pairs []string
	cmd := &cobra.Command{
		Use:   "match NAMESPACE NAME -e name=value...",
		Short: "Check entities against a query",
		Long: `Report whether the given entities satisfy a query. Exits non-zero when
they do not.

Examples:
  smripost query match derivatives t1w_preproc -e datatype=anat -e desc=preproc \
    -e suffix=T1w -e extension=.nii.gz`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			q, err := a.spec.Catalog.Resolve(args[0], args[1])
			if err != nil {
				return err
			}
			ents, err := parseEntities(a.spec.Registry, pairs)
			if err != nil {
				return err
			}
			matches := a.spec.Catalog.Matches(q, ents)
			if err := a.formatter(cmd).Format(presentation.MatchDTO{
				Query:    presentation.FromQuery(q),
				Entities: ents,
				Matches:  matches,
			}); err != nil {
				return err
			}
			if !matches {
				return fmt.Errorf("entities do not match %s/%s", args[0], args[1])
			}
			return nil
		},
	}
	cmd.Flags().StringArrayVarP(&pairs, "entity", "e", nil, "entity as name=value (repeatable)")
	return cmd
}
