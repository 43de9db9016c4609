/*
Copyright © 2025 tieubaoca
*/
package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

var cfgFile string

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "docqa",
	Short: "Ask questions about your PDF documents",
	Long: `docqa extracts the text of PDF documents, indexes it in a vector index
and answers questions about it with a language model, keeping the
conversation history of each session.

Run "docqa start" for the HTTP server or "docqa chat" for a terminal session.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file (default is ./config.yaml or ./config/config.yaml)")
}
