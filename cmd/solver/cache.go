package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/dreamup/answer-agent/internal/session"
	"github.com/dreamup/answer-agent/internal/solver"
	"github.com/dreamup/answer-agent/internal/store"
)

var (
	cacheBackend  string
	cacheBookwork bool
	cacheImage    bool
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Inspect and maintain the answer store",
}

var cacheGetCmd = &cobra.Command{
	Use:   "get <question>",
	Short: "Print the stored answer for a question",
	Long: `Print the stored answer for a question.
With --bookwork the argument is a bookwork code, with --image it is the path
of a question screenshot.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := identifierFromArg(args[0])
		if err != nil {
			return err
		}
		return withStore(cmd, func(ctx context.Context, st store.Store) error {
			answer, found, err := st.Get(ctx, id)
			if err != nil {
				return err
			}
			if !found {
				color.New(color.FgYellow).Fprintf(cmd.ErrOrStderr(), "no answer stored for %q\n", id)
				return nil
			}
			fmt.Fprintln(cmd.OutOrStdout(), answer)
			return nil
		})
	},
}

var cachePutCmd = &cobra.Command{
	Use:   "put <question> <answer>",
	Short: "Store an answer, replacing any previous one",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := identifierFromArg(args[0])
		if err != nil {
			return err
		}
		answer := solver.Normalize(args[1])
		return withStore(cmd, func(ctx context.Context, st store.Store) error {
			if err := st.Put(ctx, id, answer); err != nil {
				return err
			}
			color.New(color.FgGreen).Fprintf(cmd.OutOrStdout(), "stored %q -> %q\n", id, answer)
			return nil
		})
	},
}

var cacheExportCmd = &cobra.Command{
	Use:   "export [file]",
	Short: "Write every stored answer as a JSON document",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStore(cmd, func(ctx context.Context, st store.Store) error {
			lister, ok := st.(store.Lister)
			if !ok {
				return fmt.Errorf("store backend cannot list its contents")
			}
			records, err := lister.All(ctx)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(args) == 1 {
				f, err := os.Create(args[0])
				if err != nil {
					return fmt.Errorf("failed to create %s: %w", args[0], err)
				}
				defer f.Close()
				out = f
			}
			if err := writeRecords(out, records); err != nil {
				return err
			}
			if len(args) == 1 {
				color.New(color.FgGreen).Fprintf(cmd.ErrOrStderr(), "exported %d answers to %s\n", len(records), args[0])
			}
			return nil
		})
	},
}

var cacheImportCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Load answers from a JSON document into the store",
	Long: `Load answers from a flat JSON document of question to answer into the
configured store. Existing answers for the same questions are replaced.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", args[0], err)
		}
		var records map[string]string
		if err := json.Unmarshal(data, &records); err != nil {
			return fmt.Errorf("failed to parse %s: %w", args[0], err)
		}

		return withStore(cmd, func(ctx context.Context, st store.Store) error {
			n, err := store.Import(ctx, st, records)
			if err != nil {
				return err
			}
			color.New(color.FgGreen).Fprintf(cmd.OutOrStdout(), "imported %d answers\n", n)
			return nil
		})
	},
}

func init() {
	cacheCmd.PersistentFlags().StringVar(&cacheBackend, "backend", "", "Answer store backend: sqlite, file or s3 (overrides config)")
	cacheGetCmd.Flags().BoolVar(&cacheBookwork, "bookwork", false, "Treat the argument as a bookwork code")
	cacheGetCmd.Flags().BoolVar(&cacheImage, "image", false, "Treat the argument as a question screenshot path")
	cachePutCmd.Flags().BoolVar(&cacheBookwork, "bookwork", false, "Treat the argument as a bookwork code")
	cachePutCmd.Flags().BoolVar(&cacheImage, "image", false, "Treat the argument as a question screenshot path")

	cacheCmd.AddCommand(cacheGetCmd)
	cacheCmd.AddCommand(cachePutCmd)
	cacheCmd.AddCommand(cacheExportCmd)
	cacheCmd.AddCommand(cacheImportCmd)
}

func identifierFromArg(arg string) (string, error) {
	switch {
	case cacheBookwork && cacheImage:
		return "", fmt.Errorf("--bookwork and --image are mutually exclusive")
	case cacheBookwork:
		id := solver.BookworkIdentifier(arg)
		if id == "" {
			return "", fmt.Errorf("empty bookwork code")
		}
		return id, nil
	case cacheImage:
		data, err := os.ReadFile(arg)
		if err != nil {
			return "", fmt.Errorf("failed to read image %s: %w", arg, err)
		}
		return solver.ImageIdentifier(data), nil
	default:
		return arg, nil
	}
}

// withStore opens the configured store, runs fn and closes the store
func withStore(cmd *cobra.Command, fn func(ctx context.Context, st store.Store) error) error {
	cfg, _, err := loadConfig(nil)
	if err != nil {
		return err
	}
	if cacheBackend != "" {
		cfg.Store.Backend = cacheBackend
	}
	_, closeLog, err := setupLogger(cfg)
	if err != nil {
		return err
	}
	defer closeLog()

	ctx := cmd.Context()
	st, err := session.OpenStore(ctx, cfg.Store)
	if err != nil {
		return err
	}

	fnErr := fn(ctx, st)
	if err := st.Close(); err != nil && fnErr == nil {
		return fmt.Errorf("failed to close store: %w", err)
	}
	return fnErr
}

// writeRecords writes records as indented JSON; keys come out sorted
func writeRecords(w io.Writer, records map[string]string) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(records)
}
