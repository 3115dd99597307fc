package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/jward/polyinject"
)

var (
	flagOut   string
	flagWrite bool
)

var transformCmd = &cobra.Command{
	Use:   "transform [paths...]",
	Short: "Inject polyfill imports into files",
	Long: "Transforms the given files and directories (default: the current directory). " +
		"Without --out or --write nothing is written and the transformed code is printed.",
	RunE: runTransform,
}

func init() {
	transformCmd.Flags().StringVar(&flagOut, "out", "", "write transformed files under this directory")
	transformCmd.Flags().BoolVar(&flagWrite, "write", false, "rewrite modified files in place")
}

func runTransform(cmd *cobra.Command, args []string) error {
	start := time.Now()

	var opts []polyinject.EngineOption
	if flagOut != "" {
		out, err := filepath.Abs(flagOut)
		if err != nil {
			return outputError(cmd, "transform", err)
		}
		opts = append(opts, polyinject.WithOutDir(out))
	}
	if flagWrite {
		opts = append(opts, polyinject.WithWriteInPlace())
	}

	s, err := openSession(cmd, "", opts...)
	if err != nil {
		return outputError(cmd, "transform", err)
	}
	defer s.Close()

	run, runErr := transformArgs(cmd.Context(), s.engine, args)
	if run == nil {
		return outputError(cmd, "transform", runErr)
	}

	reportOnly := flagOut == "" && !flagWrite
	results := make([]CLIFileResult, 0, len(run.Results))
	for _, r := range run.Results {
		results = append(results, resultToCLI(r, reportOnly))
	}

	fmt.Fprintf(cmd.ErrOrStderr(), "Transformed %d file(s), %d modified, %d unchanged in %s\n",
		len(run.Results), len(run.Modified()), len(run.Unchanged),
		time.Since(start).Round(time.Millisecond))

	total := len(results)
	result := CLIResult{Command: "transform", Results: results, TotalCount: &total}
	if runErr != nil {
		result.Error = runErr.Error()
	}
	if err := outputResult(cmd, result); err != nil {
		return err
	}
	if runErr != nil {
		errorHandled = true
		return runErr
	}
	return nil
}

// transformArgs transforms a single directory relative to itself; any other
// mix of files and directories is expanded and written relative to the
// working directory.
func transformArgs(ctx context.Context, engine *polyinject.Engine, args []string) (*polyinject.Run, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if len(args) == 0 {
		args = []string{"."}
	}
	if len(args) == 1 {
		if info, err := os.Stat(args[0]); err == nil && info.IsDir() {
			return engine.TransformDirectory(ctx, args[0])
		}
	}

	var paths []string
	for _, arg := range args {
		info, err := os.Stat(arg)
		if err != nil {
			return nil, fmt.Errorf("file not found: %s", arg)
		}
		if !info.IsDir() {
			paths = append(paths, arg)
			continue
		}
		files, err := polyinject.ListFiles(arg)
		if err != nil {
			return nil, err
		}
		paths = append(paths, files...)
	}
	return engine.TransformFiles(ctx, paths)
}

var scanCmd = &cobra.Command{
	Use:   "scan [dir]",
	Short: "Record usages and injections of a directory in the usage index",
	Long:  "Runs the configured providers over every supported file without writing any output and stores the results in the usage index.",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runScan,
}

func runScan(cmd *cobra.Command, args []string) error {
	start := time.Now()

	targetDir, err := resolveTargetDir(args)
	if err != nil {
		return outputError(cmd, "scan", err)
	}
	s, err := openSession(cmd, defaultIndex)
	if err != nil {
		return outputError(cmd, "scan", err)
	}
	defer s.Close()

	run, runErr := s.engine.TransformDirectory(cmd.Context(), targetDir)
	if run == nil {
		return outputError(cmd, "scan", runErr)
	}

	summary := summarize(targetDir, run)
	summary.Database = s.dbPath
	counts, err := s.engine.Store().ModuleCounts()
	if err != nil {
		return outputError(cmd, "scan", err)
	}
	for _, c := range counts {
		summary.Modules = append(summary.Modules, CLIModuleCount{Source: c.Source, Files: c.Files})
	}

	fmt.Fprintf(cmd.ErrOrStderr(), "Scanned %s in %s\n", targetDir, time.Since(start).Round(time.Millisecond))

	result := CLIResult{Command: "scan", Results: summary}
	if runErr != nil {
		result.Error = runErr.Error()
	}
	if err := outputResult(cmd, result); err != nil {
		return err
	}
	if runErr != nil {
		errorHandled = true
		return runErr
	}
	return nil
}
