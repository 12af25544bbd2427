// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Vestiary Contributors

package main

import (
	"github.com/spf13/cobra"
)

// Global flag available to all subcommands.
var configFile string

// NewRootCmd creates the root command for the Vestiary CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "vestiary",
		Short: "Vestiary - a room appearance server",
		Long: `Vestiary serves one shared room: character appearances, item
trees, chat and poses, with a websocket client protocol and a
postgres-backed store.`,
	}

	cmd.PersistentFlags().StringVar(&configFile, "config", "", "config file path")

	cmd.AddCommand(NewServeCmd())
	cmd.AddCommand(NewMigrateCmd())

	return cmd
}
