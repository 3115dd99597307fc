package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/jward/polyinject"
	"github.com/jward/polyinject/internal/jsast"
	"github.com/jward/polyinject/internal/watch"
)

var flagDebounce time.Duration

var watchCmd = &cobra.Command{
	Use:   "watch [dir]",
	Short: "Transform a directory, then re-transform files as they change",
	Long:  "Runs transform over the directory once and then again for every batch of changed files until interrupted. Accepts the same --out and --write flags as transform.",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runWatch,
}

func init() {
	watchCmd.Flags().StringVar(&flagOut, "out", "", "write transformed files under this directory")
	watchCmd.Flags().BoolVar(&flagWrite, "write", false, "rewrite modified files in place")
	watchCmd.Flags().DurationVar(&flagDebounce, "debounce", 300*time.Millisecond, "quiet period before re-transforming")
}

func runWatch(cmd *cobra.Command, args []string) error {
	targetDir, err := resolveTargetDir(args)
	if err != nil {
		return outputError(cmd, "watch", err)
	}

	opts := []polyinject.EngineOption{polyinject.WithBaseDir(targetDir)}
	var outDir string
	if flagOut != "" {
		if outDir, err = filepath.Abs(flagOut); err != nil {
			return outputError(cmd, "watch", err)
		}
		opts = append(opts, polyinject.WithOutDir(outDir))
	}
	// In-place writes fire events of their own; the index records the
	// written hash so those files come back unchanged.
	defaultDB := ""
	if flagWrite {
		opts = append(opts, polyinject.WithWriteInPlace())
		defaultDB = defaultIndex
	}

	s, err := openSession(cmd, defaultDB, opts...)
	if err != nil {
		return outputError(cmd, "watch", err)
	}
	defer s.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	report := func(run *polyinject.Run, runErr error) {
		if run != nil {
			summary := summarize(targetDir, run)
			summary.Database = s.dbPath
			result := CLIResult{Command: "watch", Results: summary}
			if runErr != nil {
				result.Error = runErr.Error()
			}
			if err := outputResult(cmd, result); err != nil {
				s.logger.Error("writing output", "err", err)
			}
			return
		}
		if runErr != nil {
			s.logger.Error("transform failed", "err", runErr)
		}
	}

	report(s.engine.TransformDirectory(ctx, targetDir))

	w, err := watch.New(watch.Config{
		Root:     targetDir,
		Debounce: flagDebounce,
		Logger:   s.logger,
		Match:    watchMatcher(targetDir, outDir),
		OnChange: func(ctx context.Context, changed []string) error {
			var present []string
			for _, p := range changed {
				if info, err := os.Stat(p); err == nil && !info.IsDir() {
					present = append(present, p)
				}
			}
			if len(present) == 0 {
				return nil
			}
			s.logger.Info("re-transforming", "files", len(present))
			report(s.engine.TransformFiles(ctx, present))
			return nil
		},
	})
	if err != nil {
		return outputError(cmd, "watch", err)
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "Watching %s (Ctrl-C to stop)\n", targetDir)
	if err := w.Run(ctx); err != nil {
		return outputError(cmd, "watch", err)
	}
	return nil
}

// watchMatcher selects supported source files outside the output directory.
func watchMatcher(root, outDir string) func(rel string) bool {
	var outRel string
	if outDir != "" {
		if r, err := filepath.Rel(root, outDir); err == nil && !strings.HasPrefix(r, "..") {
			outRel = filepath.ToSlash(r) + "/"
		}
	}
	return func(rel string) bool {
		if outRel != "" && strings.HasPrefix(filepath.ToSlash(rel), outRel) {
			return false
		}
		_, ok := jsast.LanguageForFile(rel)
		return ok
	}
}
