// Package main runs a fake DGD administrative console for trying the console
// without a driver.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/universal-console/dgdconsole/internal/logging"
	"github.com/universal-console/dgdconsole/internal/mockconsole"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var (
		script   mockconsole.Script
		options  mockconsole.Options
		logLevel string
	)

	cmd := &cobra.Command{
		Use:   "mockdgd",
		Short: "Fake DGD administrative console",
		Long: `mockdgd listens like the administrative port of a DGD driver. It accepts a
single user, answers the helper's check, compile and uninstall commands and
evaluates a few literal expressions plus status().

The chunking, batching and reordering flags exercise the client's framing.`,
		Example: `  mockdgd --listen 127.0.0.1:8023 --password secret
  mockdgd --check -3,-3        # helper missing, then compile fails
  mockdgd --chunk 7 --batch 3 --reverse`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			logConfig := logging.DefaultConfig()
			logConfig.Level = logging.ParseLevel(logLevel)
			logConfig.Component = "mockdgd"
			if err := logging.InitGlobalLogger(logConfig); err != nil {
				return fmt.Errorf("failed to initialize logging: %w", err)
			}

			server := mockconsole.NewServer(script, options)
			if err := server.Start(); err != nil {
				return err
			}
			pterm.DefaultBox.WithTitle("mockdgd").Println(
				fmt.Sprintf("Listening on %s\nLogin as %s", server.Addr(), script.Username))

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			<-ctx.Done()

			stats := server.Stats()
			pterm.Info.Printfln("Shutting down after %d connections, %d evaluations", stats.Connections, stats.Evaluations)
			return server.Close()
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&options.Address, "listen", "127.0.0.1:8023", "address to listen on")
	flags.StringVar(&script.Username, "user", "admin", "accepted login name")
	flags.StringVar(&script.Password, "password", "admin", "accepted password")
	flags.IntSliceVar(&script.CheckOutcomes, "check", nil, "outcomes returned by successive helper checks")
	flags.BoolVar(&script.CompileFails, "compile-fails", false, "fail every helper compile")
	flags.IntVar(&script.FirstID, "first-id", 1, "id the helper assigns to a session's first evaluation")
	flags.IntVar(&options.ChunkSize, "chunk", 0, "split replies into writes of at most this many bytes")
	flags.DurationVar(&options.ChunkDelay, "chunk-delay", 5*time.Millisecond, "pause between chunks")
	flags.IntVar(&options.BatchSize, "batch", 0, "hold evaluation replies until this many are pending")
	flags.BoolVar(&options.Reverse, "reverse", false, "write each batch in reverse order")
	flags.BoolVar(&options.Literal, "literal", false, "encode values in LPC literal notation")
	flags.StringVar(&logLevel, "log-level", "info", "debug, info, warn or error")
	return cmd
}
