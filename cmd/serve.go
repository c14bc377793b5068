package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/conneroisu/anchorage/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the anchor index over HTTP with live updates",
	Long: `Index the workspace and serve it over HTTP. Clients connected to /ws
receive a message whenever anchors change.

Endpoints:
  /api/anchors  /api/files  /api/file?path=  /api/tags  /api/epics
  /api/goto?id=  /api/search?q=  /api/links?path=  /api/export?format=
  /health  /ws

Examples:
  anchorage serve                 # Serve on localhost:8383
  anchorage serve -p 9000         # Serve on another port
  anchorage serve --no-watch      # Serve a snapshot without watching files`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

var (
	serveFlags   *StandardFlags
	serveNoWatch bool
)

func init() {
	rootCmd.AddCommand(serveCmd)

	serveFlags = AddStandardFlags(serveCmd, "server")
	serveCmd.Flags().BoolVar(&serveNoWatch, "no-watch", false, "Don't re-index files when they change")

	viper.BindPFlag("server.port", serveCmd.Flags().Lookup("port"))
	viper.BindPFlag("server.host", serveCmd.Flags().Lookup("host"))
}

func runServe(cmd *cobra.Command, args []string) error {
	if err := serveFlags.ValidateFlags(); err != nil {
		return fmt.Errorf("invalid flags: %w", err)
	}

	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	sess, err := newSession(ctx, cfg, logger, true)
	if err != nil {
		return err
	}
	defer sess.Close()

	if !serveNoWatch {
		fw, err := sess.watch(ctx)
		if err != nil {
			return err
		}
		defer fw.Stop()
	}

	srv := server.New(cfg, sess.engine, logger)

	// Handle graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	go func() {
		select {
		case <-sigChan:
		case <-ctx.Done():
			return
		}
		logger.Info(ctx, "Shutting down server")

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error(ctx, err, "Error during server shutdown")
		}
		cancel()
	}()

	fmt.Fprintf(cmd.OutOrStdout(), "Serving %d indexed files at http://%s\n", len(sess.engine.URIs()), srv.Addr())

	if err := srv.Start(ctx); err != nil {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}
