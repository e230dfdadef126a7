package main

import (
	"github.com/spf13/cobra"
)

var (
	configPath string
	storeKind  string
)

func Execute() error {
	root := &cobra.Command{
		Use:   "papertrade",
		Short: "Simulated stock-trading ledger service",
	}
	root.PersistentFlags().StringVar(&configPath, "config", "papertrade.yaml", "path to YAML config")
	root.PersistentFlags().StringVar(&storeKind, "store", "postgres", "storage backend (postgres|memory)")

	root.AddCommand(serveCmd())
	return root.Execute()
}
