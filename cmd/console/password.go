package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/universal-console/dgdconsole/internal/config"
)

func newPasswordCommand(opts *globalOptions) *cobra.Command {
	var fromStdin, remove bool

	cmd := &cobra.Command{
		Use:   "password PROFILE",
		Short: "Store a profile's console password in the OS keyring",
		Long: `Stores the password used to log in to the administrative console in the
OS keyring and switches the profile to the keyring password source.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := initializeLogging(false); err != nil {
				return fmt.Errorf("failed to initialize logging: %w", err)
			}
			deps, err := loadDependencies(opts)
			if err != nil {
				return err
			}
			profile, err := deps.config.LoadProfile(args[0])
			if err != nil {
				return err
			}

			if remove {
				if err := deps.auth.DeletePassword(profile.Name); err != nil {
					return err
				}
				pterm.Success.Printfln("Removed the stored password of %s", profile.Name)
				return nil
			}

			var password string
			if fromStdin {
				line, err := bufio.NewReader(os.Stdin).ReadString('\n')
				if err != nil && line == "" {
					return fmt.Errorf("failed to read the password: %w", err)
				}
				password = strings.TrimRight(line, "\r\n")
			} else {
				password, err = pterm.DefaultInteractiveTextInput.
					WithMask("*").
					Show(fmt.Sprintf("Password for %s@%s", profile.Auth.Username, profile.Host))
				if err != nil {
					return err
				}
			}
			if err := deps.auth.ValidateCredentials(profile.Auth.Username, password); err != nil {
				return err
			}
			if err := deps.auth.StorePassword(profile.Name, password); err != nil {
				return err
			}

			if profile.Auth.PasswordSource != config.PasswordSourceKeyring {
				profile.Auth.PasswordSource = config.PasswordSourceKeyring
				profile.Auth.Password = ""
				if err := deps.config.SaveProfile(profile); err != nil {
					return err
				}
			}
			pterm.Success.Printfln("Stored the password of %s in the keyring", profile.Name)
			return nil
		},
	}
	cmd.Flags().BoolVar(&fromStdin, "stdin", false, "read the password from the first line of stdin")
	cmd.Flags().BoolVar(&remove, "delete", false, "remove the stored password instead")
	return cmd
}
