package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/jward/polyinject/internal/config"
	"github.com/jward/polyinject/internal/store"
)

var (
	flagFile string
	flagKind string
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Query the usage index",
	Long:  "Reads the index written by scan, transform or watch. Line and column numbers are 1-based.",
}

func init() {
	reportCmd.PersistentFlags().StringVar(&flagFile, "file", "", "restrict the report to one file")
	reportUsagesCmd.Flags().StringVar(&flagKind, "kind", "", "usage kind filter: import|global|property|in")

	reportCmd.AddCommand(reportModulesCmd)
	reportCmd.AddCommand(reportUsagesCmd)
}

var reportModulesCmd = &cobra.Command{
	Use:   "modules",
	Short: "Injected modules and how many files import each",
	Args:  cobra.NoArgs,
	RunE:  runReportModules,
}

var reportUsagesCmd = &cobra.Command{
	Use:   "usages",
	Short: "Usage counts across the index, or one file's usages with --file",
	Args:  cobra.NoArgs,
	RunE:  runReportUsages,
}

// openStore opens the index named by --db, the config, or the default.
func openStore() (*store.Store, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("getting cwd: %w", err)
	}
	cfg, err := config.Load(config.LoadOptions{ConfigFilePath: flagConfig, Dir: cwd})
	if err != nil {
		return nil, err
	}
	dbPath := resolveDBPath(cfg, cwd, defaultIndex)
	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("database not found: %s (run 'polyinject scan' first)", dbPath)
	}
	s, err := store.NewStore(dbPath)
	if err != nil {
		return nil, err
	}
	if err := s.Migrate(); err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}

// lookupFile resolves --file against the index. Paths are stored as given
// to the engine, so both the argument and its absolute form are tried.
func lookupFile(s *store.Store, file string) (*store.File, error) {
	candidates := []string{file}
	if abs, err := filepath.Abs(file); err == nil && abs != file {
		candidates = append(candidates, abs)
	}
	for _, c := range candidates {
		f, err := s.FileByPath(c)
		if err != nil {
			return nil, err
		}
		if f != nil {
			return f, nil
		}
	}
	return nil, fmt.Errorf("file not in index: %s", file)
}

func runReportModules(cmd *cobra.Command, args []string) error {
	s, err := openStore()
	if err != nil {
		return outputError(cmd, "report modules", err)
	}
	defer s.Close()

	if flagFile != "" {
		f, err := lookupFile(s, flagFile)
		if err != nil {
			return outputError(cmd, "report modules", err)
		}
		injs, err := s.InjectionsByFile(f.ID)
		if err != nil {
			return outputError(cmd, "report modules", err)
		}
		out := make([]CLIInjection, 0, len(injs))
		for _, inj := range injs {
			out = append(out, storedInjectionToCLI(inj))
		}
		total := len(out)
		return outputResult(cmd, CLIResult{Command: "report modules", Results: out, TotalCount: &total})
	}

	counts, err := s.ModuleCounts()
	if err != nil {
		return outputError(cmd, "report modules", err)
	}
	out := make([]CLIModuleCount, 0, len(counts))
	for _, c := range counts {
		out = append(out, CLIModuleCount{Source: c.Source, Files: c.Files})
	}
	total := len(out)
	return outputResult(cmd, CLIResult{Command: "report modules", Results: out, TotalCount: &total})
}

func runReportUsages(cmd *cobra.Command, args []string) error {
	s, err := openStore()
	if err != nil {
		return outputError(cmd, "report usages", err)
	}
	defer s.Close()

	if flagFile != "" {
		f, err := lookupFile(s, flagFile)
		if err != nil {
			return outputError(cmd, "report usages", err)
		}
		usages, err := s.UsagesByFile(f.ID)
		if err != nil {
			return outputError(cmd, "report usages", err)
		}
		out := make([]CLIUsage, 0, len(usages))
		for _, u := range usages {
			if flagKind != "" && u.Kind != flagKind {
				continue
			}
			out = append(out, storedUsageToCLI(u, f.Path))
		}
		total := len(out)
		return outputResult(cmd, CLIResult{Command: "report usages", Results: out, TotalCount: &total})
	}

	counts, err := s.UsageCounts(flagKind)
	if err != nil {
		return outputError(cmd, "report usages", err)
	}
	out := make([]CLIUsageCount, 0, len(counts))
	for _, c := range counts {
		out = append(out, usageCountToCLI(c))
	}
	total := len(out)
	return outputResult(cmd, CLIResult{Command: "report usages", Results: out, TotalCount: &total})
}
