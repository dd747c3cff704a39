package main

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/zen-systems/socflow/pkg/capability"
	"github.com/zen-systems/socflow/pkg/config"
	"github.com/zen-systems/socflow/pkg/pipeline"
	"github.com/zen-systems/socflow/pkg/workflows"
)

// NewValidateCmd creates the validate command.
func NewValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate <pipeline.yaml>",
		Short: "Validate a pipeline manifest",
		Long:  "Checks a pipeline manifest for unknown dependencies, duplicates and cycles without running it.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := pipeline.LoadManifest(args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Pipeline %s is valid.\nOrder: %s\nTerminal: %s\n",
				p.Name(), strings.Join(p.Order(), " -> "), p.Terminal())
			return nil
		},
	}
}

// NewPipelinesCmd creates the pipelines command.
func NewPipelinesCmd() *cobra.Command {
	var showName string

	cmd := &cobra.Command{
		Use:   "pipelines",
		Short: "List the built-in pipelines",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if showName != "" {
				src, err := workflows.Source(showName)
				if err != nil {
					return err
				}
				_, err = cmd.OutOrStdout().Write(src)
				return err
			}

			table := tablewriter.NewWriter(cmd.OutOrStdout())
			table.Header("NAME", "ORDER", "DESCRIPTION")
			for _, name := range workflows.Names() {
				p, err := workflows.Load(name)
				if err != nil {
					return err
				}
				label := name
				if name == workflows.Default {
					label += " (default)"
				}
				if err := table.Append([]string{label, strings.Join(p.Order(), " -> "), p.Description()}); err != nil {
					return err
				}
			}
			return table.Render()
		},
	}

	cmd.Flags().StringVar(&showName, "show", "", "print the manifest of a built-in pipeline")
	return cmd
}

// NewModelsCmd creates the models command.
func NewModelsCmd(root *rootOptions) *cobra.Command {
	var resolveFlag bool

	cmd := &cobra.Command{
		Use:   "models",
		Short: "List providers, models, and aliases",
		Long: `Lists providers and their models with whether an API key is configured.

Use --resolve to show aliases and what they resolve to.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := root.loadConfig()
			if err != nil {
				return err
			}
			aliases, err := config.LoadAliasesWithFallback(cfg.Aliases)
			if err != nil {
				return err
			}

			table := tablewriter.NewWriter(cmd.OutOrStdout())
			if resolveFlag {
				table.Header("ALIAS", "MODEL", "PROVIDER", "STATUS")
				aliasMap := aliases.ListAliases()
				names := make([]string, 0, len(aliasMap))
				for name := range aliasMap {
					names = append(names, name)
				}
				sort.Strings(names)
				for _, name := range names {
					model := aliasMap[name]
					provider, status := "-", "invalid"
					if ref, err := config.ParseModel(model, aliases); err == nil {
						provider, status = ref.Provider, "listed"
						if aliases.ValidateModel(ref.Provider, ref.Model) != nil {
							status = "unlisted"
						}
					}
					if err := table.Append([]string{name, model, provider, status}); err != nil {
						return err
					}
				}
				return table.Render()
			}

			table.Header("PROVIDER", "MODELS", "STATUS")
			for _, provider := range aliases.ListProviders() {
				status := "no key"
				if cfg.HasAdapter(provider) {
					status = "ready"
				}
				if err := table.Append([]string{provider, strings.Join(aliases.GetProviderModels(provider), ", "), status}); err != nil {
					return err
				}
			}
			if err := table.Render(); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Default model: %s\n", cfg.Model)
			return nil
		},
	}

	cmd.Flags().BoolVar(&resolveFlag, "resolve", false, "show aliases and what they resolve to")
	return cmd
}

// NewIntelCmd creates the intel command.
func NewIntelCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "intel <ip>",
		Short: "Look up an IP address in the reputation table",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := root.loadConfig()
			if err != nil {
				return err
			}
			table := capability.DefaultReputationTable()
			if cfg.Intel.File != "" {
				extra, err := capability.LoadReputationTable(cfg.Intel.File)
				if err != nil {
					return err
				}
				table = table.Merge(extra)
			}

			record := capability.NewReputationLookup(table).Lookup(args[0])
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(record)
		},
	}
}
