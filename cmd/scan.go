package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/conneroisu/anchorage/internal/anchor"
	"github.com/conneroisu/anchorage/internal/config"
	"github.com/conneroisu/anchorage/internal/logging"
	"github.com/conneroisu/anchorage/internal/scanner"
	"github.com/conneroisu/anchorage/internal/textsource"
)

var scanCmd = &cobra.Command{
	Use:     "scan [root]",
	Aliases: []string{"s"},
	Short:   "Index every anchor in the workspace",
	Long: `Scan the workspace for comment anchors and report the files they were
found in. The include and exclude globs and the max_files cap of the
workspace configuration apply.

Examples:
  anchorage scan                  # Scan the configured workspace root
  anchorage scan ./src -o json    # Scan another directory, JSON summary`,
	Args: cobra.MaximumNArgs(1),
	RunE: runScan,
}

var scanFlags *StandardFlags

func init() {
	rootCmd.AddCommand(scanCmd)

	scanFlags = AddStandardFlags(scanCmd, "records")
}

func runScan(cmd *cobra.Command, args []string) error {
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}
	if len(args) > 0 {
		cfg.Workspace.Root = args[0]
	}

	opts := scanOptions{Format: scanFlags.Format()}
	if !scanFlags.Quiet {
		opts.Progress = cmd.ErrOrStderr()
	}
	return opts.run(cmd.Context(), cmd.OutOrStdout(), cfg, logger)
}

type scanOptions struct {
	Format string
	// Progress receives a running count when set.
	Progress io.Writer
}

// ScanSummary reports a finished workspace scan.
type ScanSummary struct {
	Root       string        `json:"root" yaml:"root"`
	Candidates int           `json:"candidates" yaml:"candidates"`
	Processed  int           `json:"processed" yaml:"processed"`
	Files      []FileAnchors `json:"files" yaml:"files"`
}

// FileAnchors counts the anchors of one scanned file.
type FileAnchors struct {
	Path    string `json:"path" yaml:"path"`
	Anchors int    `json:"anchors" yaml:"anchors"`
	Hidden  int    `json:"hidden" yaml:"hidden"`
}

func (o scanOptions) run(ctx context.Context, out io.Writer, cfg *config.Config, logger logging.Logger) error {
	sess, err := newSession(ctx, cfg, logger, false)
	if err != nil {
		return err
	}
	defer sess.Close()

	var last scanner.Progress
	progress := func(p scanner.Progress) {
		last = p
		if o.Progress != nil {
			fmt.Fprintf(o.Progress, "\rScanning... %d/%d files, anchors in %d (%.0f%%)", p.Processed, p.Total, p.Found, p.Fraction()*100)
		}
	}
	if err := sess.loadWorkspace(ctx, true, progress); err != nil {
		return err
	}
	if o.Progress != nil && last.Total > 0 {
		fmt.Fprintln(o.Progress)
	}

	summary := ScanSummary{
		Root:       cfg.Workspace.Root,
		Candidates: last.Total,
		Processed:  last.Processed,
		Files:      []FileAnchors{},
	}
	for u, idx := range sess.engine.Snapshot() {
		if idx.IsEmpty() {
			continue
		}
		entry := FileAnchors{Path: textsource.DisplayPath(u)}
		for _, n := range anchor.Flatten(idx.Roots()) {
			if n.IsVisibleInWorkspace() {
				entry.Anchors++
			} else {
				entry.Hidden++
			}
		}
		summary.Files = append(summary.Files, entry)
	}
	sort.Slice(summary.Files, func(i, j int) bool { return summary.Files[i].Path < summary.Files[j].Path })

	return writeSummary(out, o.Format, summary)
}

func writeSummary(out io.Writer, format string, summary ScanSummary) error {
	switch format {
	case OutputJSON:
		encoder := json.NewEncoder(out)
		encoder.SetIndent("", "  ")
		return encoder.Encode(summary)
	case OutputYAML:
		encoder := yaml.NewEncoder(out)
		encoder.SetIndent(2)
		defer encoder.Close()
		return encoder.Encode(summary)
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "FILE\tANCHORS\tHIDDEN")
	for _, f := range summary.Files {
		fmt.Fprintf(w, "%s\t%d\t%d\n", f.Path, f.Anchors, f.Hidden)
	}
	if err := w.Flush(); err != nil {
		return err
	}
	_, err := fmt.Fprintf(out, "Found anchors in %d of %d files\n", len(summary.Files), summary.Candidates)
	return err
}
