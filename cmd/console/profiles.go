package main

import (
	"context"
	"fmt"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/universal-console/dgdconsole/internal/config"
)

func newProfilesCommand(opts *globalOptions) *cobra.Command {
	var probe bool

	cmd := &cobra.Command{
		Use:   "profiles",
		Short: "List configured profiles",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			if err := initializeLogging(false); err != nil {
				return fmt.Errorf("failed to initialize logging: %w", err)
			}
			deps, err := loadDependencies(opts)
			if err != nil {
				return err
			}
			profiles, err := deps.registry.ListProfiles()
			if err != nil {
				return err
			}
			if len(profiles) == 0 {
				pterm.Info.Println("No profiles configured in", deps.config.GetConfigPath())
				return nil
			}

			data := pterm.TableData{{"Profile", "Address", "Password", "Health"}}
			for _, profile := range profiles {
				password := profile.Auth.PasswordSource
				if password == "" {
					password = config.PasswordSourceConfig
				}
				if password == config.PasswordSourceKeyring && !deps.auth.HasStoredPassword(profile.Name) {
					password += " (not stored)"
				}
				health := "-"
				if probe {
					h, err := deps.registry.CheckHealth(ctx, profile.Name)
					if err != nil {
						health = err.Error()
					} else if h.Status == "ready" {
						health = pterm.FgGreen.Sprintf("ready (%dms)", h.ResponseTime.Milliseconds())
					} else {
						health = pterm.FgRed.Sprintf("%s: %s", h.Status, h.Error)
					}
				}
				data = append(data, []string{
					profile.Name,
					fmt.Sprintf("%s@%s", profile.Auth.Username, profile.Host),
					password,
					health,
				})
			}
			return pterm.DefaultTable.WithHasHeader().WithData(data).Render()
		},
	}
	cmd.Flags().BoolVar(&probe, "check", false, "probe each console for a login prompt")
	return cmd
}
