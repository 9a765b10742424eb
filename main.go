package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ammiranda/menutree/config"
	"github.com/ammiranda/menutree/handlers"
	"github.com/ammiranda/menutree/internal/app"
	"github.com/ammiranda/menutree/repository"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
)

// cfgFile, when set, switches configuration to a YAML file
var cfgFile string

var rootCmd = &cobra.Command{
	Use:           "menutree",
	Short:         "Menu hierarchy service backed by materialized paths",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if cfgFile != "" {
			os.Setenv("CONFIG_SOURCE", "file")
			os.Setenv("CONFIG_FILE", cfgFile)
		}
	},
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		deps, err := app.Build(ctx, nil)
		if err != nil {
			return err
		}
		defer deps.Close(context.Background())

		gin.SetMode(gin.ReleaseMode)
		srv := &http.Server{
			Addr:              deps.Server.Addr,
			Handler:           handlers.NewRouter(deps.Engine, deps.Menus, deps.Cache, deps.Logger),
			ReadHeaderTimeout: 10 * time.Second,
		}

		errCh := make(chan error, 1)
		go func() {
			deps.Logger.Info("listening", "addr", srv.Addr)
			errCh <- srv.ListenAndServe()
		}()

		select {
		case err := <-errCh:
			if !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("server failed: %w", err)
			}
			return nil
		case <-ctx.Done():
		}

		deps.Logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	},
}

var migrateCmd = &cobra.Command{
	Use:       "migrate [up|down|rollback|version]",
	Short:     "Manage the SQL schema of the configured store",
	Args:      cobra.ExactArgs(1),
	ValidArgs: []string{"up", "down", "rollback", "version"},
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		provider, err := config.NewProvider(ctx)
		if err != nil {
			return err
		}
		server, err := config.GetServerConfig(ctx, provider)
		if err != nil {
			return err
		}
		logger := app.NewLogger(server.LogLevel)

		storeCfg, err := config.GetStoreConfig(ctx, provider)
		if err != nil {
			return err
		}
		runner, err := repository.Migrations(storeCfg, logger)
		if err != nil {
			return err
		}

		switch args[0] {
		case "up":
			return runner.Up()
		case "down":
			return runner.Down()
		case "rollback":
			return runner.Rollback()
		case "version":
			version, dirty, ok, err := runner.Version()
			if err != nil {
				return err
			}
			if !ok {
				fmt.Fprintln(cmd.OutOrStdout(), "no migrations applied")
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "version %d (dirty: %t)\n", version, dirty)
			return nil
		default:
			return fmt.Errorf("unknown migrate command %q", args[0])
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "YAML config file (default: environment and .env)")
	rootCmd.AddCommand(serveCmd, migrateCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
