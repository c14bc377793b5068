package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/conneroisu/anchorage/internal/config"
	"github.com/conneroisu/anchorage/internal/engine"
	"github.com/conneroisu/anchorage/internal/logging"
	"github.com/conneroisu/anchorage/internal/textsource"
)

var watchCmd = &cobra.Command{
	Use:     "watch [root]",
	Aliases: []string{"w"},
	Short:   "Keep the anchor index in sync with file changes",
	Long: `Index the workspace and re-index files as they change on disk. Every
update is reported with the file's new anchor count.

Examples:
  anchorage watch                 # Watch the configured workspace root
  anchorage watch ./src           # Watch another directory`,
	Args: cobra.MaximumNArgs(1),
	RunE: runWatch,
}

func init() {
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}
	if len(args) > 0 {
		cfg.Workspace.Root = args[0]
	}

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	go func() {
		select {
		case <-sigChan:
			fmt.Fprintln(cmd.ErrOrStderr(), "\nStopping file watcher...")
			cancel()
		case <-ctx.Done():
		}
	}()

	return watchWorkspace(ctx, cmd.OutOrStdout(), cfg, logger)
}

// watchWorkspace loads the workspace, then reports index updates to out
// until ctx ends.
func watchWorkspace(ctx context.Context, out io.Writer, cfg *config.Config, logger logging.Logger) error {
	sess, err := newSession(ctx, cfg, logger, true)
	if err != nil {
		return err
	}
	defer sess.Close()

	events := sess.engine.Subscribe()
	defer sess.engine.Unsubscribe(events)

	fw, err := sess.watch(ctx)
	if err != nil {
		return err
	}
	defer fw.Stop()

	fmt.Fprintf(out, "Watching %s with %d indexed files (Press Ctrl+C to stop)\n", cfg.Workspace.Root, len(sess.engine.URIs()))

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-events:
			if !ok {
				return nil
			}
			if event.Type != engine.EventChanged || event.URI == "" {
				continue
			}
			if sess.engine.Has(event.URI) {
				fmt.Fprintf(out, "Updated %s (%d anchors)\n", textsource.DisplayPath(event.URI), sess.engine.Get(event.URI).Len())
			} else {
				fmt.Fprintf(out, "Removed %s\n", textsource.DisplayPath(event.URI))
			}
		}
	}
}
