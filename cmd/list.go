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

	"github.com/conneroisu/anchorage/internal/anchor"
	"github.com/conneroisu/anchorage/internal/config"
	"github.com/conneroisu/anchorage/internal/logging"
	"github.com/conneroisu/anchorage/internal/textsource"
	"github.com/conneroisu/anchorage/internal/views"
)

var listCmd = &cobra.Command{
	Use:     "list [file]",
	Aliases: []string{"l"},
	Short:   "Show the anchors of a file, the workspace or its epics",
	Long: `Show anchors as a tree or as records.

With a file argument the file view is shown: every anchor of that file
except hidden-scope ones, regions nested under their section. Without one
the workspace view groups workspace-scope anchors by file.

Examples:
  anchorage list main.go              # File view
  anchorage list main.go --cursor 12  # File view with the cursor entry
  cat main.go | anchorage list main.go --stdin
  anchorage list                      # Workspace view
  anchorage list --epics              # Anchors grouped by epic
  anchorage list -o json              # Records as JSON`,
	Args: cobra.MaximumNArgs(1),
	RunE: runList,
}

var (
	listFlags  *StandardFlags
	listEpics  bool
	listCursor int
	listStdin  bool
)

func init() {
	rootCmd.AddCommand(listCmd)

	listFlags = AddStandardFlags(listCmd, "output", "workspace")

	listCmd.Flags().BoolVarP(&listEpics, "epics", "e", false, "Group workspace anchors by epic")
	listCmd.Flags().IntVar(&listCursor, "cursor", 0, "Cursor line for the file view (1-based)")
	listCmd.Flags().BoolVar(&listStdin, "stdin", false, "Read the file's current text from standard input")
}

func runList(cmd *cobra.Command, args []string) error {
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}
	if listFlags.Root != "" {
		cfg.Workspace.Root = listFlags.Root
	}

	opts := listOptions{
		Epics:  listEpics,
		Cursor: listCursor,
		Format: listFlags.Format(),
		Color:  !listFlags.NoColor,
		Scan:   listFlags.Scan,
	}
	if len(args) > 0 {
		opts.File = args[0]
	}
	if listStdin {
		if opts.File == "" {
			return fmt.Errorf("--stdin requires a file argument")
		}
		text, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return fmt.Errorf("reading standard input: %w", err)
		}
		opts.Text = string(text)
		opts.HasText = true
	}

	return opts.run(cmd.Context(), cmd.OutOrStdout(), cfg, logger)
}

type listOptions struct {
	File    string
	Text    string
	HasText bool
	Epics   bool
	Cursor  int
	Format  string
	Color   bool
	Scan    bool
}

func (o listOptions) run(ctx context.Context, out io.Writer, cfg *config.Config, logger logging.Logger) error {
	sess, err := newSession(ctx, cfg, logger, false)
	if err != nil {
		return err
	}
	defer sess.Close()

	viewOpts := cfg.ViewOptions()

	var title string
	var nodes []views.Node
	if o.File != "" && !o.Epics {
		if o.HasText {
			abs, err := absURI(o.File)
			if err != nil {
				return err
			}
			sess.overlay.Open(abs, o.Text)
		}
		u, err := sess.open(ctx, o.File)
		if err != nil {
			return err
		}
		title = textsource.DisplayPath(u)
		nodes = views.FileView(views.FileState{
			URI:    u,
			Index:  sess.engine.Current(),
			Loaded: sess.engine.Loaded(),
			Cursor: o.Cursor,
		}, viewOpts)
		sess.close(u)
	} else {
		if err := sess.loadWorkspace(ctx, o.Scan, nil); err != nil {
			return err
		}
		state := sess.workspaceState()
		if o.Epics {
			title = "Epics"
			nodes = views.EpicView(state, viewOpts)
		} else {
			title = "Workspace"
			nodes = views.WorkspaceView(state, viewOpts)
		}
	}

	if o.Format == OutputTree {
		_, err := fmt.Fprint(out, views.Render(title, nodes, views.RenderOptions{
			Color:    o.Color,
			Registry: sess.engine.Registry(),
		}))
		return err
	}

	records, notice := collect(nodes, "")
	return writeRecords(out, o.Format, records, notice)
}

// record is one anchor in tabular output.
type record struct {
	Path string `json:"path" yaml:"path"`
	Line int    `json:"line" yaml:"line"`
	Tag  string `json:"tag" yaml:"tag"`
	Text string `json:"text" yaml:"text"`
	ID   string `json:"id,omitempty" yaml:"id,omitempty"`
	Epic string `json:"epic,omitempty" yaml:"epic,omitempty"`
	Seq  int    `json:"seq,omitempty" yaml:"seq,omitempty"`
}

// collect flattens view nodes into records. A view that holds only a
// placeholder yields its message as the notice.
func collect(nodes []views.Node, notice string) ([]record, string) {
	var out []record
	for _, n := range nodes {
		switch v := n.(type) {
		case views.Anchor:
			out = append(out, nodeRecord(v.URI, v.Anchor))
		case views.Region:
			out = append(out, nodeRecord(v.URI, v.Anchor))
		case views.Error:
			notice = v.Message
			continue
		case views.Loading, views.ScanPrompt:
			notice = views.Label(v)
			continue
		}

		var children []record
		children, notice = collect(views.Children(n), notice)
		out = append(out, children...)
	}
	return out, notice
}

func nodeRecord(u uri.URI, n *anchor.Node) record {
	return record{
		Path: textsource.DisplayPath(u),
		Line: n.LineNumber,
		Tag:  n.Tag,
		Text: n.Text,
		ID:   n.Attributes.ID,
		Epic: n.Attributes.Epic,
		Seq:  n.Attributes.Seq,
	}
}

func writeRecords(out io.Writer, format string, records []record, notice string) error {
	if records == nil {
		records = []record{}
	}

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
	default:
		if len(records) == 0 && notice != "" {
			_, err := fmt.Fprintln(out, notice)
			return err
		}
		w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "PATH\tLINE\tTAG\tTEXT")
		for _, r := range records {
			fmt.Fprintf(w, "%s\t%d\t%s\t%s\n", r.Path, r.Line, r.Tag, r.Text)
		}
		return w.Flush()
	}
}
