package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/zjrosen/smripost/internal/config"
)

func (a *app) newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect and edit the configuration",
	}
	cmd.AddCommand(a.newConfigShowCmd(), a.newConfigSetCmd())
	return cmd
}

func (a *app) newConfigShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration as JSON",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.formatter(cmd).JSON(struct {
				File   string        `json:"file"`
				Config config.Config `json:"config"`
			}{File: a.v.ConfigFileUsed(), Config: a.cfg})
		},
	}
}

func (a *app) newConfigSetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set KEY VALUE...",
		Short: "Set a configuration key in the config file",
		Long: `Set one key in the config file, keeping comments elsewhere.

Keys:
  spec_file        path to a specification document
  atlases.spaces   one or more spaces
  index.ignore     one or more doublestar globs
  dataset_links    one or more name=path pairs

Examples:
  smripost config set spec_file ./io_spec.json
  smripost config set atlases.spaces fsLR MNI152NLin6Asym
  smripost config set dataset_links raw=/data/bids smriprep=/data/derivatives/smriprep`,
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := a.configPath()
			key, values := args[0], args[1:]

			var err error
			switch key {
			case "spec_file":
				if len(values) != 1 {
					return fmt.Errorf("spec_file takes one value")
				}
				err = config.SaveSpecFile(path, values[0])
			case "atlases.spaces":
				if err := config.ValidateAtlases(config.AtlasConfig{Spaces: values}); err != nil {
					return err
				}
				err = config.SaveAtlasSpaces(path, values)
			case "index.ignore":
				err = config.SaveIgnore(path, values)
			case "dataset_links":
				links, perr := parsePairs(values)
				if perr != nil {
					return perr
				}
				err = config.SaveDatasetLinks(path, links)
			default:
				return fmt.Errorf("unsupported key %q (want one of spec_file, atlases.spaces, index.ignore, dataset_links)", key)
			}
			if err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "set %s in %s: %s\n", key, path, strings.Join(values, " "))
			return err
		},
	}
}

func (a *app) configPath() string {
	if used := a.v.ConfigFileUsed(); used != "" {
		return used
	}
	if a.cfgFile != "" {
		return a.cfgFile
	}
	return localConfigPath
}
