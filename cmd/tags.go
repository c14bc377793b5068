package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/conneroisu/anchorage/internal/config"
	"github.com/conneroisu/anchorage/internal/logging"
	"github.com/conneroisu/anchorage/internal/views"
)

var tagsCmd = &cobra.Command{
	Use:   "tags",
	Short: "Show the configured tags and completion items",
	Long: `Show the tag set after the configuration overrides are merged over the
built-in tags.

Examples:
  anchorage tags                  # Table of tags
  anchorage tags -o yaml          # Definitions as YAML
  anchorage tags --completions    # Completion items, end tags included
  anchorage tags --epics          # Next epic=...,seq=... for every epic`,
	Args: cobra.NoArgs,
	RunE: runTags,
}

var (
	tagsFlags       *StandardFlags
	tagsCompletions bool
	tagsEpics       bool
)

func init() {
	rootCmd.AddCommand(tagsCmd)

	tagsFlags = AddStandardFlags(tagsCmd, "records", "workspace")

	tagsCmd.Flags().BoolVar(&tagsCompletions, "completions", false, "Print tag completion items")
	tagsCmd.Flags().BoolVar(&tagsEpics, "epics", false, "Print epic completion items")
}

func runTags(cmd *cobra.Command, args []string) error {
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}
	if tagsFlags.Root != "" {
		cfg.Workspace.Root = tagsFlags.Root
	}

	opts := tagsOptions{Format: tagsFlags.Format(), Completions: tagsCompletions, Epics: tagsEpics}
	return opts.run(cmd.Context(), cmd.OutOrStdout(), cfg, logger)
}

type tagsOptions struct {
	Format      string
	Completions bool
	Epics       bool
}

func (o tagsOptions) run(ctx context.Context, out io.Writer, cfg *config.Config, logger logging.Logger) error {
	sess, err := newSession(ctx, cfg, logger, false)
	if err != nil {
		return err
	}
	defer sess.Close()

	registry := sess.engine.Registry()

	switch {
	case o.Completions:
		separator := " "
		if len(cfg.Tags.Separators) > 0 {
			separator = cfg.Tags.Separators[0]
		}
		return writeLines(out, registry.Completions(separator))

	case o.Epics:
		if err := sess.loadWorkspace(ctx, true, nil); err != nil {
			return err
		}
		return writeLines(out, views.EpicCompletions(sess.engine.Snapshot(), cfg.Epic.SeqStep))
	}

	defs := registry.All()
	switch o.Format {
	case OutputJSON:
		encoder := json.NewEncoder(out)
		encoder.SetIndent("", "  ")
		return encoder.Encode(defs)
	case OutputYAML:
		encoder := yaml.NewEncoder(out)
		encoder.SetIndent(2)
		defer encoder.Close()
		return encoder.Encode(defs)
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "TAG\tBEHAVIOR\tSCOPE\tSTYLE\tCOLOR")
	for _, d := range defs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", d.Name, d.Behavior, d.Scope, d.StyleMode, d.HighlightColor)
	}
	return w.Flush()
}

func writeLines(out io.Writer, lines []string) error {
	for _, line := range lines {
		if _, err := fmt.Fprintln(out, line); err != nil {
			return err
		}
	}
	return nil
}
