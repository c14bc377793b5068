package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"go.lsp.dev/protocol"
	"go.lsp.dev/uri"

	"github.com/conneroisu/anchorage/internal/config"
	"github.com/conneroisu/anchorage/internal/logging"
	"github.com/conneroisu/anchorage/internal/textsource"
)

var gotoCmd = &cobra.Command{
	Use:     "goto [file:line]",
	Aliases: []string{"g"},
	Short:   "Print the location of an anchor",
	Long: `Resolve a navigation target and print it as path:line.

Exactly one target is accepted: a file:line argument, an anchor id with
--id, or a fuzzy text query with --text matched against anchor display
texts across the workspace.

Examples:
  anchorage goto --id setup           # Anchor declared with [id=setup]
  anchorage goto --text "fix parser"  # Closest anchor text
  anchorage goto main.go:42 --json    # LSP location as JSON`,
	Args: cobra.MaximumNArgs(1),
	RunE: runGoto,
}

var (
	gotoFlags *StandardFlags
	gotoID    string
	gotoText  string
	gotoJSON  bool
)

func init() {
	rootCmd.AddCommand(gotoCmd)

	gotoFlags = AddStandardFlags(gotoCmd, "workspace")

	gotoCmd.Flags().StringVar(&gotoID, "id", "", "Anchor id to resolve")
	gotoCmd.Flags().StringVarP(&gotoText, "text", "t", "", "Fuzzy anchor text to resolve")
	gotoCmd.Flags().BoolVar(&gotoJSON, "json", false, "Print the location as JSON")
}

func runGoto(cmd *cobra.Command, args []string) error {
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}
	if gotoFlags.Root != "" {
		cfg.Workspace.Root = gotoFlags.Root
	}

	opts := gotoOptions{ID: gotoID, Text: gotoText, JSON: gotoJSON}
	if len(args) > 0 {
		opts.Location = args[0]
	}
	return opts.run(cmd.Context(), cmd.OutOrStdout(), cfg, logger)
}

type gotoOptions struct {
	Location string
	ID       string
	Text     string
	JSON     bool
}

func (o gotoOptions) validate() error {
	targets := 0
	for _, s := range []string{o.Location, o.ID, o.Text} {
		if s != "" {
			targets++
		}
	}
	if targets != 1 {
		return fmt.Errorf("specify exactly one of file:line, --id or --text")
	}
	return nil
}

func (o gotoOptions) run(ctx context.Context, out io.Writer, cfg *config.Config, logger logging.Logger) error {
	if err := o.validate(); err != nil {
		return err
	}

	sess, err := newSession(ctx, cfg, logger, false)
	if err != nil {
		return err
	}
	defer sess.Close()

	var loc protocol.Location
	switch {
	case o.Location != "":
		path, line := parseLocation(o.Location)
		u, err := sess.open(ctx, path)
		if err != nil {
			return err
		}
		loc = sess.engine.ResolveLine(u, line)
		sess.close(u)

	case o.ID != "":
		if err := sess.loadWorkspace(ctx, true, nil); err != nil {
			return err
		}
		loc, err = sess.engine.ResolveID(o.ID)
		if err != nil {
			return err
		}

	default:
		if err := sess.loadWorkspace(ctx, true, nil); err != nil {
			return err
		}
		hits := sess.engine.FindText(o.Text)
		if len(hits) == 0 {
			return fmt.Errorf("no anchor text matches %q", o.Text)
		}
		loc = sess.engine.ResolveLine(hits[0].URI, hits[0].Node.LineNumber)
	}

	if o.JSON {
		encoder := json.NewEncoder(out)
		encoder.SetIndent("", "  ")
		return encoder.Encode(loc)
	}
	_, err = fmt.Fprintf(out, "%s:%d\n", textsource.DisplayPath(uri.URI(loc.URI)), loc.Range.Start.Line+1)
	return err
}
