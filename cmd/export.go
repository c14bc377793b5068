package cmd

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/conneroisu/anchorage/internal/config"
	"github.com/conneroisu/anchorage/internal/export"
	"github.com/conneroisu/anchorage/internal/logging"
)

var exportCmd = &cobra.Command{
	Use:   "export [file]",
	Short: "Export every anchor in the workspace",
	Long: `Scan the workspace and write every anchor, flattened depth first, to a
file or to standard output.

The format is taken from --format, else from the file extension. SQLite
databases can only be written to a file.

Examples:
  anchorage export anchors.csv        # CSV with Filename,Line,Tag,Text,Id,Epic
  anchorage export anchors.db         # SQLite database
  anchorage export -f yaml            # YAML on standard output`,
	Args: cobra.MaximumNArgs(1),
	RunE: runExport,
}

var (
	exportFlags  *StandardFlags
	exportFormat string
)

func init() {
	rootCmd.AddCommand(exportCmd)

	exportFlags = AddStandardFlags(exportCmd, "workspace")

	formats := make([]string, 0, len(export.Formats()))
	for _, f := range export.Formats() {
		formats = append(formats, string(f))
	}
	exportCmd.Flags().StringVarP(&exportFormat, "format", "f", "", "Export format ("+strings.Join(formats, "|")+")")
}

func runExport(cmd *cobra.Command, args []string) error {
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}
	if exportFlags.Root != "" {
		cfg.Workspace.Root = exportFlags.Root
	}

	opts := exportOptions{Format: exportFormat, Status: cmd.ErrOrStderr()}
	if len(args) > 0 {
		opts.Path = args[0]
	}
	return opts.run(cmd.Context(), cmd.OutOrStdout(), cfg, logger)
}

type exportOptions struct {
	// Path is the destination file; empty or "-" writes to out.
	Path   string
	Format string
	Status io.Writer
}

func (o exportOptions) format() (export.Format, error) {
	if o.Format != "" {
		return export.ParseFormat(o.Format)
	}
	if o.toStdout() {
		return export.FormatJSON, nil
	}
	return export.FormatFromPath(o.Path)
}

func (o exportOptions) toStdout() bool {
	return o.Path == "" || o.Path == "-"
}

func (o exportOptions) run(ctx context.Context, out io.Writer, cfg *config.Config, logger logging.Logger) error {
	format, err := o.format()
	if err != nil {
		return err
	}

	sess, err := newSession(ctx, cfg, logger, false)
	if err != nil {
		return err
	}
	defer sess.Close()

	if err := sess.loadWorkspace(ctx, true, nil); err != nil {
		return err
	}
	rows := sess.engine.Rows()

	if o.toStdout() {
		return export.Write(out, format, rows)
	}

	if err := export.WriteFile(o.Path, format, rows); err != nil {
		return fmt.Errorf("exporting to %s: %w", o.Path, err)
	}
	if o.Status != nil {
		fmt.Fprintf(o.Status, "Exported %d anchors to %s\n", len(rows), o.Path)
	}
	return nil
}
