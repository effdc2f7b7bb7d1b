// Copyright (c) 2024 IoTeX Foundation
// This source code is provided 'as is' and no warranties are given as to title or non-infringement, merchantability
// or fitness for purpose and, to the extent permitted by law, all liability for your use of the code is disclaimed.
// This source code is governed by Apache License 2.0 that can be found in the LICENSE file.

package cmd

import (
	"github.com/spf13/cobra"

	"github.com/iotexproject/iotex-npos/config"
)

var _configPaths []string

var rootCmd = &cobra.Command{
	Use:           "nposctl",
	Short:         "Command-line tool of the npos staking engine",
	SilenceUsage:  true,
	SilenceErrors: false,
}

func init() {
	rootCmd.PersistentFlags().StringSliceVar(&_configPaths, "config-path", nil, "config files, the later ones override the earlier ones")
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func loadConfig() (config.Config, error) {
	return config.New(_configPaths)
}
