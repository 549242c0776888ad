package main

import (
	"github.com/spf13/cobra"

	"github.com/porticus-lab/go-printkit/internal/config"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create or update the config file interactively",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		_, err := config.RunWizard(cfgFile)
		return err
	},
}

func init() {
	rootCmd.AddCommand(initCmd)
}
