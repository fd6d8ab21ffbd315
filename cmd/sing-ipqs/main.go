package main

import (
	"os"

	"github.com/sagernet/sing-ipqs/log"

	"github.com/spf13/cobra"
)

var (
	databasePath string
	logLevel     string
)

var mainCommand = &cobra.Command{
	Use:   "sing-ipqs",
	Short: "IP reputation flat file database tool",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if _, err := log.ParseLevel(logLevel); err != nil {
			cmd.PrintErrln(err)
			os.Exit(1)
		}
	},
}

func main() {
	mainCommand.PersistentFlags().StringVarP(&databasePath, "database", "d", "", "path to the reputation database file")
	mainCommand.PersistentFlags().StringVarP(&logLevel, "log-level", "l", "info", "log level")
	mainCommand.MarkPersistentFlagRequired("database")
	if err := mainCommand.Execute(); err != nil {
		os.Exit(1)
	}
}
