// Package main provides the tripled CLI for running a Triple protocol
// server.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/apache/dubbo-go-triple/cmd/tripled/commands"
)

var (
	version   = "dev"
	commit    = "unknown"
	buildDate = "unknown"
)

func main() {
	rootCmd := &cobra.Command{
		Use:     "tripled",
		Short:   "Dubbo Triple protocol engine",
		Long:    `tripled runs a Triple (gRPC-over-HTTP/2) RPC server with no .proto-compiler step required at run time.`,
		Version: fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, buildDate),
	}

	rootCmd.AddCommand(
		commands.NewServeCommand(),
		commands.NewVersionCommand(version, commit, buildDate),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
