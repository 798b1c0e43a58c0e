// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package main

import (
	"github.com/spf13/cobra"

	"github.com/holomush/authlobby/internal/config"
	"github.com/holomush/authlobby/internal/xdg"
)

// Global flags available to all subcommands.
var configFile string

// NewRootCmd creates the root command for the authlobby CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "authlobby",
		Short: "authlobby - localized banners and a frozen world for login lobbies",
		Long: `authlobby drives the pre-authentication lobby of a game server:
localized login and registration banners, feedback cues, and a world
frozen in time while players sit in it. A host adapter on the game
server connects over WebSocket.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&configFile, "config", "", "config file path (YAML, default $XDG_CONFIG_HOME/authlobby/config.yaml)")
	config.BindFlags(cmd.PersistentFlags())

	cmd.AddCommand(NewServeCmd())
	cmd.AddCommand(NewCheckCmd())
	cmd.AddCommand(NewResolveCmd())

	return cmd
}

// loadConfig reads configuration for cmd from --config, or the XDG config
// file when present, and its flags.
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	path := configFile
	if path == "" {
		found, err := xdg.FindConfig()
		if err != nil {
			return config.Config{}, err
		}
		path = found
	}
	return config.Load(path, cmd.Flags())
}
