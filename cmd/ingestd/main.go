package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/dshills/codeingest/internal/config"
	"github.com/dshills/codeingest/internal/storage"
)

var (
	// Version is injected at build time
	Version = "dev"
	// BuildTime is injected at build time
	BuildTime = "unknown"
)

func main() {
	runMain(os.Args, os.Exit)
}

func runMain(args []string, exit func(int)) {
	if err := Execute(Version, BuildTime, args[1:], os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		exit(1)
	}
}

// Execute is the entry point for the CLI, extracted for testing
func Execute(version, buildTime string, args []string, out io.Writer) error {
	rootCmd := &cobra.Command{
		Use:           "ingestd",
		Short:         "Source code ingestion server",
		Long:          "ingestd parses source trees into structure-aware chunks and stores them in a searchable index.",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.SetVersionTemplate(fmt.Sprintf(`ingestd {{.Version}}
Build Time: %s
Build Mode: %s
SQLite Driver: %s
Vector Extension: %v
`, buildTime, storage.BuildMode, storage.DriverName, storage.VectorExtensionAvailable))

	config.RegisterFlags(rootCmd.PersistentFlags())

	rootCmd.AddCommand(
		newServeCmd(version),
		newIngestCmd(),
		newProbeCmd(),
		newStatsCmd(),
	)

	rootCmd.SetOut(out)
	rootCmd.SetArgs(args)
	return rootCmd.Execute()
}
