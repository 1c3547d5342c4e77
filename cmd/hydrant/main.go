package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/hydrant-api/hydrant"
)

var (
	// Version information - will be set at build time
	Version   = hydrant.Version
	GitCommit = "unknown"
	BuildDate = "unknown"
	GoVersion = "unknown"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "hydrant",
		Short: "Hydrant resource engine and tooling",
		Long: `Hydrant turns stored objects into API representations and back again.
It ships with a demo blog domain wired to memory, SQL, or Redis storage
so the dehydrate/hydrate cycle can be explored end to end.`,
	}

	// Add subcommands
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(describeCmd)
	rootCmd.AddCommand(seedCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(demoCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
