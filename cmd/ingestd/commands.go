package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/dshills/codeingest/internal/config"
	"github.com/dshills/codeingest/internal/ingest"
	"github.com/dshills/codeingest/internal/mcp"
	"github.com/dshills/codeingest/pkg/types"
)

func newServeCmd(version string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the ingestion tools over MCP on stdio",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			settings, err := loadSettings(cmd.Flags())
			if err != nil {
				return err
			}
			logger := newLogger(settings)
			logger.Info("Starting ingestd MCP server", "version", version)
			config.LogWithLogger(settings, logger)

			app, err := newApplication(settings, logger)
			if err != nil {
				return err
			}
			defer func() {
				if err := app.Close(); err != nil {
					logger.Error("shutdown failed", "error", err)
				}
			}()

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			go app.jobs.Run(ctx, settings.JanitorInterval)

			server := mcp.NewServer(mcp.Config{
				Pipeline: app.pipeline,
				Index:    app.index,
				Ledger:   app.store,
				Version:  version,
				Logger:   logger,
			})

			err = server.Serve(ctx)
			if ctx.Err() != nil {
				logger.Info("Received shutdown signal, stopping")
				return nil
			}
			return err
		},
	}
}

func newIngestCmd() *cobra.Command {
	var projectID string

	cmd := &cobra.Command{
		Use:   "ingest <path>",
		Short: "Ingest a project tree and print a summary",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			settings, err := loadSettings(cmd.Flags())
			if err != nil {
				return err
			}
			logger := newLogger(settings)

			root, err := filepath.Abs(args[0])
			if err != nil {
				return fmt.Errorf("invalid path: %w", err)
			}
			if projectID == "" {
				projectID = filepath.Base(root)
			}

			app, err := newApplication(settings, logger)
			if err != nil {
				return err
			}
			defer func() { _ = app.Close() }()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			snap, runErr := app.pipeline.Ingest(ctx, ingest.SubmitRequest{
				ProjectPath: root,
				ProjectID:   projectID,
			})
			if snap != nil {
				fmt.Fprintln(cmd.OutOrStdout(), renderJobSummary(snap))
			}
			return runErr
		},
	}

	cmd.Flags().StringVar(&projectID, "project-id", "", "Project id (default: directory name)")
	return cmd
}

func newProbeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "probe",
		Short: "Print the parsing strategies available in this build",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			settings, err := loadSettings(cmd.Flags())
			if err != nil {
				return err
			}
			newLogger(settings)

			caps := newCapabilities(settings)
			info := ingest.CapabilitiesInfo{
				AdvancedParserAvailable: caps.AdvancedAvailable(),
				SupportedStrategies:     types.StrategyNames(caps.AvailableStrategies()),
				Reason:                  caps.Reason(),
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderCapabilities(info))
			return nil
		},
	}
}

func newStatsCmd() *cobra.Command {
	var recent int

	cmd := &cobra.Command{
		Use:   "stats <project-id>",
		Short: "Print ledger coverage and recently indexed files for a project",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			settings, err := loadSettings(cmd.Flags())
			if err != nil {
				return err
			}
			logger := newLogger(settings)

			app, err := newApplication(settings, logger)
			if err != nil {
				return err
			}
			defer func() { _ = app.Close() }()

			ctx := cmd.Context()
			stats, err := app.store.ProjectStats(ctx, args[0])
			if err != nil {
				return fmt.Errorf("failed to get project stats: %w", err)
			}
			entries, err := app.store.RecentFiles(ctx, args[0], recent)
			if err != nil {
				return fmt.Errorf("failed to list recent files: %w", err)
			}

			fmt.Fprintln(cmd.OutOrStdout(), renderStats(args[0], stats, entries))
			return nil
		},
	}

	cmd.Flags().IntVar(&recent, "recent", 10, "Number of recently indexed files to list")
	return cmd
}
