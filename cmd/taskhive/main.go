package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"taskhive/internal/store"
)

var Version = "dev"

func main() {
	rootCmd := &cobra.Command{
		Use:           "taskhive",
		Short:         "TaskHive - tasks, habits and team organizations",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(authCmd())
	rootCmd.AddCommand(profileCmd())
	rootCmd.AddCommand(taskCmd())
	rootCmd.AddCommand(habitCmd())
	rootCmd.AddCommand(orgCmd())
	rootCmd.AddCommand(notifyCmd())
	rootCmd.AddCommand(statsCmd())
	rootCmd.AddCommand(suggestCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", store.Message(err))
		os.Exit(1)
	}
}
