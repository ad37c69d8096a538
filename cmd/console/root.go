package main

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/universal-console/dgdconsole/internal/app"
	"github.com/universal-console/dgdconsole/internal/interfaces"
	"github.com/universal-console/dgdconsole/internal/ui/menu"
)

func newRootCommand() *cobra.Command {
	opts := &globalOptions{}
	var noStatus bool

	rootCmd := &cobra.Command{
		Use:   "dgdconsole",
		Short: "Console for the administrative port of a DGD server",
		Long: `dgdconsole connects to the administrative port of a DGD server, installs
the code helper and evaluates LPC expressions through it.

Without --profile or --host the profile menu opens, showing which
configured servers are answering.`,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInteractive(cmd.Context(), opts, noStatus)
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&opts.profile, "profile", "p", "", "profile to connect with")
	flags.StringVar(&opts.host, "host", "", "connect to [user@]host:port without a saved profile")
	flags.StringVar(&opts.theme, "theme", "", "theme override")
	flags.BoolVar(&opts.noColor, "no-color", false, "disable syntax highlighting")
	rootCmd.Flags().BoolVar(&noStatus, "no-status", false, "do not show the server status after connecting")

	rootCmd.AddCommand(
		newEvalCommand(opts),
		newStatusCommand(opts),
		newProfilesCommand(opts),
		newPasswordCommand(opts),
	)
	return rootCmd
}

func runInteractive(ctx context.Context, opts *globalOptions, noStatus bool) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if err := initializeLogging(true); err != nil {
		return fmt.Errorf("failed to initialize logging: %w", err)
	}
	deps, err := loadDependencies(opts)
	if err != nil {
		return err
	}
	deps.logger.Info("Starting DGD console", "version", Version)

	connect := func(ctx context.Context, profile *interfaces.Profile) (tea.Model, error) {
		if noStatus {
			profile.ShowStatus = false
		}
		return deps.factory.Open(ctx, profile)
	}

	var controller *app.ConsoleController
	if opts.directConnection() {
		profile, err := deps.resolveProfile(opts)
		if err != nil {
			return err
		}
		session, err := connect(ctx, profile)
		if err != nil {
			return err
		}
		controller = app.NewConsoleController(nil, session)
	} else {
		menuModel := menu.NewMenuModel(deps.registry, connect, deps.registry.Preferences().HealthCheckInterval)
		controller = app.NewConsoleController(menuModel, nil)
		defer func() {
			if err := deps.registry.StopHealthMonitoring(); err != nil {
				deps.logger.Debug("Health monitoring was not running", "error", err)
			}
		}()
	}
	defer controller.Close()

	program := tea.NewProgram(controller, tea.WithAltScreen(), tea.WithContext(ctx))
	if _, err := program.Run(); err != nil {
		return fmt.Errorf("console failed: %w", err)
	}
	deps.logger.Info("DGD console exited")
	return nil
}
