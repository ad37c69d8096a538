package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/universal-console/dgdconsole/internal/content"
	"github.com/universal-console/dgdconsole/internal/interfaces"
)

func newEvalCommand(opts *globalOptions) *cobra.Command {
	var timeout time.Duration
	var compact bool

	cmd := &cobra.Command{
		Use:   "eval EXPRESSION",
		Short: "Evaluate one LPC expression and print the result",
		Example: `  dgdconsole eval 'status()[ST_VERSION]'
  dgdconsole eval --host admin@localhost:8023 '1 + 2'`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			expression := strings.Join(args, " ")
			result, err := evaluate(cmd.Context(), opts, expression, timeout)
			if err != nil {
				return err
			}
			return printResult(result, !compact)
		},
	}
	cmd.Flags().DurationVar(&timeout, "timeout", 30*time.Second, "give up after this long")
	cmd.Flags().BoolVar(&compact, "compact", false, "print the value on one line")
	return cmd
}

// evaluate runs expression against the selected profile with a spinner on
// stderr, so stdout carries only the value.
func evaluate(ctx context.Context, opts *globalOptions, expression string, timeout time.Duration) (interfaces.CodeResult, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if err := initializeLogging(false); err != nil {
		return interfaces.CodeResult{}, fmt.Errorf("failed to initialize logging: %w", err)
	}
	if opts.noColor {
		pterm.DisableColor()
	}
	deps, err := loadDependencies(opts)
	if err != nil {
		return interfaces.CodeResult{}, err
	}
	profile, err := deps.resolveProfile(opts)
	if err != nil {
		return interfaces.CodeResult{}, err
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	spinner, _ := pterm.DefaultSpinner.
		WithWriter(os.Stderr).
		WithRemoveWhenDone(true).
		Start(fmt.Sprintf("Connecting to %s@%s", profile.Auth.Username, profile.Host))
	result, err := deps.factory.EvaluateOnce(ctx, profile, expression, func(line string) {
		if spinner != nil {
			spinner.UpdateText(strings.TrimSpace(line))
		}
	})
	if spinner != nil {
		_ = spinner.Stop()
	}
	return result, err
}

func printResult(result interfaces.CodeResult, pretty bool) error {
	if !result.Success {
		for _, diag := range result.CompileErrors {
			pterm.Error.WithWriter(os.Stderr).Printfln("%s, %d: %s", diag.File, diag.Line, diag.Message)
		}
		return fmt.Errorf("evaluation failed: %s", strings.TrimSpace(result.Error))
	}
	pterm.Println(content.FormatValue(result.Result, pretty))
	return nil
}
