package main

import (
	"fmt"
	"time"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/universal-console/dgdconsole/internal/protocol"
)

func newStatusCommand(opts *globalOptions) *cobra.Command {
	var timeout time.Duration

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the driver status of a server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			result, err := evaluate(cmd.Context(), opts, protocol.StatusExpression, timeout)
			if err != nil {
				return err
			}
			if !result.Success {
				return fmt.Errorf("status() failed: %s", result.Error)
			}
			status, err := protocol.DecodeServerStatus(result.Result)
			if err != nil {
				return fmt.Errorf("unexpected status reply: %w", err)
			}

			data := pterm.TableData{{"Field", "Value"}}
			for _, field := range status.Fields() {
				data = append(data, []string{field.Label, field.Value})
			}
			return pterm.DefaultTable.WithHasHeader().WithData(data).Render()
		},
	}
	cmd.Flags().DurationVar(&timeout, "timeout", 30*time.Second, "give up after this long")
	return cmd
}
