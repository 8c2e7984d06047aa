package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/Veraticus/the-budget-must-balance/internal/cli"
)

func whoamiCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the owner commands act for",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			owner, err := a.owner()
			if err != nil {
				return err
			}
			source := "login token"
			if strings.TrimSpace(viper.GetString("owner")) != "" {
				source = "--owner"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", cli.BoldStyle.Render(owner), cli.SubtleStyle.Render("(from "+source+")"))
			return nil
		},
	}
}
