// Package main provides the CLI entry point for cortexmotion.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/normanking/cortexmotion/internal/command"
	"github.com/normanking/cortexmotion/internal/config"
	"github.com/normanking/cortexmotion/internal/lipsync"
	"github.com/normanking/cortexmotion/internal/logging"
	"github.com/normanking/cortexmotion/internal/store"
)

// Version information (set at build time)
var version = "dev"

var errNoStore = errors.New("no store path configured")

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newRootCmd().ExecuteContext(ctx)
	stop()
	if err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var cfgPath string

	rootCmd := &cobra.Command{
		Use:          "cortexmotion",
		Short:        "Motion runtime for an embodied conversational character",
		Version:      version,
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "config file (yaml)")

	load := func() (*config.Config, error) {
		return config.Load(cfgPath)
	}

	rootCmd.AddCommand(
		newRunCmd(load),
		newParseCmd(),
		newPhonemesCmd(load),
		newMotionsCmd(load),
	)
	return rootCmd
}

func newRunCmd(load func() (*config.Config, error)) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Drive the character and serve the websocket stream",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			logger, err := logging.New(&cfg.Logging)
			if err != nil {
				return err
			}
			defer logger.Close()
			return run(cmd.Context(), cfg, logger.Zerolog())
		},
	}
}

func newParseCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "parse [text]",
		Short: "Show the actions embedded in a line of text",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			clean, actions := command.Parse(strings.Join(args, " "))
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "clean: %q\n", clean)
			for i, a := range actions {
				fmt.Fprintf(out, "%d: %s %+v\n", i, a.Type(), a)
			}
			return nil
		},
	}
}

func newPhonemesCmd(load func() (*config.Config, error)) *cobra.Command {
	return &cobra.Command{
		Use:   "phonemes [text]",
		Short: "Show phonemes, visemes and timings for an utterance",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			text := strings.Join(args, " ")
			mapper := lipsync.NewMapper(nil, cfg.LookupTimeout(), logging.Nop())
			u := mapper.Prepare(text)
			phonemes := mapper.TextToPhonemes(cmd.Context(), text)
			timings := lipsync.ComputeTimings(phonemes, u.Length)

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "script: %s\n", u.Script)
			w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "PHONEME\tVISEME\tSTART\tEND")
			for _, t := range timings {
				fmt.Fprintf(w, "%s\t%s\t%.2f\t%.2f\n", t.Phoneme, lipsync.PhonemeToViseme(t.Phoneme), t.Start, t.End())
			}
			return w.Flush()
		},
	}
}

func newMotionsCmd(load func() (*config.Config, error)) *cobra.Command {
	motionsCmd := &cobra.Command{
		Use:   "motions",
		Short: "Manage persisted learned motions",
	}

	openStore := func() (*store.SQLite, error) {
		cfg, err := load()
		if err != nil {
			return nil, err
		}
		if cfg.Store.Path == "" {
			return nil, errNoStore
		}
		return store.Open(cfg.Store.Path)
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List persisted motions",
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := openStore()
			if err != nil {
				return err
			}
			defer db.Close()

			motions, err := db.LoadMotions(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(motions) == 0 {
				fmt.Fprintln(out, "No motions recorded.")
				return nil
			}
			w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "NAME\tFRAMES\tDURATION\tCOMPLEXITY\tBONES")
			for _, m := range motions {
				fmt.Fprintf(w, "%s\t%d\t%.2fs\t%.3f\t%s\n",
					m.Name, len(m.Frames), m.Duration, m.Complexity, strings.Join(m.AffectedBones, ","))
			}
			return w.Flush()
		},
	}

	deleteCmd := &cobra.Command{
		Use:   "delete [name]",
		Short: "Delete a persisted motion",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := openStore()
			if err != nil {
				return err
			}
			defer db.Close()
			if err := db.DeleteMotion(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s\n", args[0])
			return nil
		},
	}

	motionsCmd.AddCommand(listCmd, deleteCmd)
	return motionsCmd
}
