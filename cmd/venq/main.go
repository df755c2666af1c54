package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var version = "dev"

var rootCmd = &cobra.Command{
	Use:   "venq",
	Short: "Conversational SQL agent for vendor data",
	Long: `venq turns free-text chat into validated, executed SQL over the
vendor database, with layered conversation memory and feedback tracking.`,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the venq version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("venq version %s\n", version)
	},
}

func main() {
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(versionCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
