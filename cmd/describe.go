package cmd

import (
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/zjrosen/smripost/internal/bidsignore"
	"github.com/zjrosen/smripost/internal/dataset"
	"github.com/zjrosen/smripost/internal/presentation"
)

const codeURLBase = "https://github.com/zjrosen/smripost/archive/"

func (a *app) newDescribeCmd() *cobra.Command {
	var (
		pairs        []string
		noBIDSIgnore bool
	)
	cmd := &cobra.Command{
		Use:   "describe INPUT OUTPUT",
		Short: "Write the output dataset description and .bidsignore",
		Long: `Derive OUTPUT/dataset_description.json from INPUT's description.

GeneratedBy gains smripost and the first GeneratedBy entry of every linked
dataset; DatasetLinks gains the links (dataset_links plus --link) and the
templateflow URL. Container details come from SMRIPOST_DOCKER_TAG or
SMRIPOST_SINGULARITY_URL. An existing output description is kept; a warning
is logged when it came from another version.

Examples:
  smripost describe /data/bids /out --link smriprep=/data/derivatives/smriprep`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			links, err := parsePairs(pairs)
			if err != nil {
				return err
			}
			merged := make(map[string]string, len(a.cfg.DatasetLinks)+len(links))
			for k, v := range a.cfg.DatasetLinks {
				merged[k] = v
			}
			for k, v := range links {
				merged[k] = v
			}

			result, err := dataset.WriteDerivativeDescription(args[0], args[1], merged, dataset.Tool{
				Name:    "smripost",
				Version: version,
				CodeURL: codeURLBase + version + ".tar.gz",
			})
			if err != nil {
				return err
			}

			ignorePath := ""
			if !noBIDSIgnore {
				if err := bidsignore.Write(args[1]); err != nil {
					return err
				}
				ignorePath = filepath.Join(args[1], bidsignore.FileName)
			}
			return a.formatter(cmd).Format(presentation.FromWriteResult(result, ignorePath))
		},
	}
	cmd.Flags().StringArrayVar(&pairs, "link", nil, "dataset link as name=path (repeatable)")
	cmd.Flags().BoolVar(&noBIDSIgnore, "no-bidsignore", false, "do not write .bidsignore")
	return cmd
}
