package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"jtlab/internal/config"
	"jtlab/internal/geometry"
	"jtlab/internal/sequence"
	"jtlab/internal/tui"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := rootCommand().ExecuteContext(ctx); err != nil {
		if errors.Is(err, context.Canceled) {
			os.Exit(130)
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func rootCommand() *cobra.Command {
	var (
		configPath string
		logPath    string
		verbose    bool
		once       bool
	)
	cmd := &cobra.Command{
		Use:          "jtlab-intro",
		Short:        "Play the jtlab intro in the terminal",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			introCfg, err := cfg.Choreography()
			if err != nil {
				return err
			}

			// The program owns the terminal, so logs go to a file or nowhere.
			var w io.Writer = io.Discard
			if logPath != "" {
				f, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
				if err != nil {
					return err
				}
				defer f.Close()
				w = f
			}
			logger := cfg.NewLogger(w, verbose)

			themes, closeThemes, err := cfg.ThemeProvider()
			if err != nil {
				return err
			}
			defer func() {
				if err := closeThemes(); err != nil {
					logger.Warn("close theme store", "err", err)
				}
			}()

			return tui.Run(cmd.Context(), tui.Options{
				Config:         introCfg,
				Theme:          themes.For("local"),
				Logger:         logger,
				Size:           geometry.Size{Width: 80, Height: 24},
				QuitOnComplete: once,
			})
		},
	}
	cmd.PersistentFlags().StringVarP(&configPath, "config", "c", "jtlab.toml", "path to the TOML config")
	cmd.Flags().StringVar(&logPath, "log", "", "write logs to this file")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	cmd.Flags().BoolVar(&once, "once", false, "exit when the intro becomes interactive")
	cmd.AddCommand(timelineCommand(&configPath))
	return cmd
}

// timelineCommand writes the effective timeline as YAML, a starting point
// for the intro.timeline setting.
func timelineCommand(configPath *string) *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "timeline",
		Short: "Write the intro timeline to a YAML file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			introCfg, err := cfg.Choreography()
			if err != nil {
				return err
			}
			if err := sequence.Write(introCfg.Timeline, out); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", out)
			return nil
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "timeline.yaml", "file to write")
	return cmd
}
