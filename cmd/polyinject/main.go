package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/jward/polyinject"
	"github.com/jward/polyinject/internal/config"
)

var (
	flagConfig  string
	flagDB      string
	flagFormat  string
	flagVerbose bool
)

// errorHandled is set by outputError so main() doesn't double-print.
var errorHandled bool

func main() {
	if err := rootCmd.Execute(); err != nil {
		if !errorHandled {
			fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		}
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:           "polyinject",
	Short:         "Detect polyfillable API usage and inject polyfill imports",
	Long:          "polyinject parses JavaScript and TypeScript with tree-sitter, reports the built-ins each file uses and lets polyfill providers inject the imports the configured targets need.",
	SilenceErrors: true,
	SilenceUsage:  true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return validateFormat(flagFormat)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "", "configuration file (default: ./"+config.FileName+")")
	rootCmd.PersistentFlags().StringVar(&flagDB, "db", "", "usage index path (default: db from config; scan uses .polyinject/index.db)")
	rootCmd.PersistentFlags().StringVar(&flagFormat, "format", "json", "output format: json|text")
	rootCmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "debug logging")

	rootCmd.AddCommand(transformCmd)
	rootCmd.AddCommand(scanCmd)
	rootCmd.AddCommand(reportCmd)
	rootCmd.AddCommand(watchCmd)
}

// newLogger writes to w with "HH:MM:SS.ms" timestamps.
func newLogger(w io.Writer) *log.Logger {
	level := log.WarnLevel
	if flagVerbose {
		level = log.DebugLevel
	}
	return log.NewWithOptions(w, log.Options{
		ReportTimestamp: true,
		TimeFormat:      "15:04:05.00",
		Level:           level,
	})
}

// session is the configuration, plugin and engine shared by the commands
// that transform files.
type session struct {
	cfg    *config.Config
	engine *polyinject.Engine
	logger *log.Logger
	dbPath string
}

func (s *session) Close() error {
	return s.engine.Close()
}

// openSession loads configuration from the working directory and builds an
// engine. defaultDB is used when neither --db nor the config names an index;
// empty means no index.
func openSession(cmd *cobra.Command, defaultDB string, opts ...polyinject.EngineOption) (*session, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("getting cwd: %w", err)
	}
	logger := newLogger(cmd.ErrOrStderr())

	cfg, err := config.Load(config.LoadOptions{ConfigFilePath: flagConfig, Dir: cwd})
	if err != nil {
		return nil, err
	}
	pc, err := cfg.PluginConfig()
	if err != nil {
		return nil, err
	}
	plugin, err := polyinject.New(pc, polyinject.WithLogger(logger), polyinject.WithWorkingDir(cwd))
	if err != nil {
		return nil, err
	}

	dbPath := resolveDBPath(cfg, cwd, defaultDB)
	if dbPath != "" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
			return nil, fmt.Errorf("creating %s: %w", filepath.Dir(dbPath), err)
		}
		opts = append(opts, polyinject.WithStore(dbPath))
	}
	opts = append(opts, polyinject.WithEngineLogger(logger))

	engine, err := polyinject.NewEngine(plugin, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating engine: %w", err)
	}
	return &session{cfg: cfg, engine: engine, logger: logger, dbPath: dbPath}, nil
}

// resolveDBPath picks --db, then the config's db relative to the config file,
// then defaultDB under the repository root.
func resolveDBPath(cfg *config.Config, cwd, defaultDB string) string {
	if flagDB != "" {
		if filepath.IsAbs(flagDB) {
			return flagDB
		}
		return filepath.Join(cwd, flagDB)
	}
	if cfg.DB != "" {
		if filepath.IsAbs(cfg.DB) {
			return cfg.DB
		}
		base := cwd
		if cfg.File != "" {
			base = filepath.Dir(cfg.File)
		}
		return filepath.Join(base, cfg.DB)
	}
	if defaultDB == "" {
		return ""
	}
	return filepath.Join(findRepoRoot(cwd), defaultDB)
}

// defaultIndex is where scan and report keep the index when nothing else is
// configured.
var defaultIndex = filepath.Join(".polyinject", "index.db")

// resolveTargetDir returns the absolute path of the directory to process.
func resolveTargetDir(args []string) (string, error) {
	dir := "."
	if len(args) > 0 {
		dir = args[0]
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("resolving path %q: %w", dir, err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return "", fmt.Errorf("directory not found: %s", abs)
	}
	if !info.IsDir() {
		return "", fmt.Errorf("not a directory: %s", abs)
	}
	return abs, nil
}

// findRepoRoot walks up from startDir looking for a .git directory.
// Returns the directory containing .git, or startDir if not found.
func findRepoRoot(startDir string) string {
	dir := startDir
	for {
		if info, err := os.Stat(filepath.Join(dir, ".git")); err == nil && info.IsDir() {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return startDir
		}
		dir = parent
	}
}
