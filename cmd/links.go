package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"go.lsp.dev/uri"
	"gopkg.in/yaml.v3"

	"github.com/conneroisu/anchorage/internal/config"
	"github.com/conneroisu/anchorage/internal/links"
	"github.com/conneroisu/anchorage/internal/logging"
	"github.com/conneroisu/anchorage/internal/textsource"
)

var linksCmd = &cobra.Command{
	Use:   "links [file]",
	Short: "Resolve link anchors and report broken ones",
	Long: `Resolve the target of every LINK anchor. Targets starting with ./ or ../
are relative to the file holding the link, others to the workspace root.
A :line or #id suffix selects a position in the target.

The command fails when any link is broken.

Examples:
  anchorage links                 # Every link in the workspace
  anchorage links docs/guide.md   # Links of one file`,
	Args: cobra.MaximumNArgs(1),
	RunE: runLinks,
}

var linksFlags *StandardFlags

func init() {
	rootCmd.AddCommand(linksCmd)

	linksFlags = AddStandardFlags(linksCmd, "records", "workspace")
}

func runLinks(cmd *cobra.Command, args []string) error {
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}
	if linksFlags.Root != "" {
		cfg.Workspace.Root = linksFlags.Root
	}

	opts := linksOptions{Format: linksFlags.Format()}
	if len(args) > 0 {
		opts.File = args[0]
	}
	return opts.run(cmd.Context(), cmd.OutOrStdout(), cfg, logger)
}

type linksOptions struct {
	File   string
	Format string
}

// linkRecord is one resolved link in command output.
type linkRecord struct {
	Path   string `json:"path" yaml:"path"`
	Line   int    `json:"line" yaml:"line"`
	Link   string `json:"link" yaml:"link"`
	Target string `json:"target,omitempty" yaml:"target,omitempty"`
	Error  string `json:"error,omitempty" yaml:"error,omitempty"`
}

func (o linksOptions) run(ctx context.Context, out io.Writer, cfg *config.Config, logger logging.Logger) error {
	sess, err := newSession(ctx, cfg, logger, false)
	if err != nil {
		return err
	}
	defer sess.Close()

	var sources []uri.URI
	if o.File != "" {
		u, err := sess.open(ctx, o.File)
		if err != nil {
			return err
		}
		defer sess.close(u)
		sources = []uri.URI{u}
	} else {
		if err := sess.loadWorkspace(ctx, true, nil); err != nil {
			return err
		}
		sources = sess.engine.URIs()
	}

	resolver := links.NewResolver(cfg.Workspace.Root, sess.engine)
	records := []linkRecord{}
	broken := 0
	for _, source := range sources {
		for _, t := range resolver.Targets(source, sess.engine.Get(source)) {
			rec := linkRecord{
				Path: textsource.DisplayPath(source),
				Line: t.Anchor.LineNumber,
				Link: t.Anchor.Comment,
			}
			if t.Broken {
				broken++
				rec.Error = t.Err.Error()
			} else {
				rec.Target = fmt.Sprintf("%s:%d", textsource.DisplayPath(uri.URI(t.Location.URI)), t.Location.Range.Start.Line+1)
			}
			records = append(records, rec)
		}
	}

	if err := writeLinks(out, o.Format, records); err != nil {
		return err
	}
	if broken > 0 {
		return fmt.Errorf("%d of %d links are broken", broken, len(records))
	}
	return nil
}

func writeLinks(out io.Writer, format string, records []linkRecord) error {
	switch format {
	case OutputJSON:
		encoder := json.NewEncoder(out)
		encoder.SetIndent("", "  ")
		return encoder.Encode(records)
	case OutputYAML:
		encoder := yaml.NewEncoder(out)
		encoder.SetIndent(2)
		defer encoder.Close()
		return encoder.Encode(records)
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "PATH\tLINE\tLINK\tTARGET")
	for _, r := range records {
		target := r.Target
		if r.Error != "" {
			target = "BROKEN: " + r.Error
		}
		fmt.Fprintf(w, "%s\t%d\t%s\t%s\n", r.Path, r.Line, r.Link, target)
	}
	return w.Flush()
}
