package main

import (
	"context"
	"fmt"
	"os"

	"qad/internal/cli"
	"qad/internal/cli/commands"

	"github.com/spf13/cobra"
)

var version = "dev"

func main() {
	// Create root command
	rootCmd := &cobra.Command{
		Use:           "qad",
		Short:         "QA dashboard",
		Long:          `Track test cases, schedule prioritized test runs, execute them and follow the defects raised by failures.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Create flags struct (will be populated by command flags)
	var flags cli.Flags

	// Create commands with dependencies
	cmds := commands.NewCommands(&flags)

	// Register all commands
	cmds.Register(rootCmd, &flags)

	// Execute root command
	err := rootCmd.ExecuteContext(context.Background())
	if closeErr := cmds.Session.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
