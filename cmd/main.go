// Package main provides the codeagents CLI.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"codeagents/internal/adapters/config"
	"codeagents/internal/bootstrap"
	"codeagents/pkg/errors"
)

// Exit codes
const (
	exitOK          = 0
	exitFindings    = 1
	exitError       = 2
	exitInterrupted = 130
)

// exitCodeError carries a non-zero exit status that is not itself a failure to report
type exitCodeError struct {
	code int
}

func (e exitCodeError) Error() string {
	return fmt.Sprintf("exit code %d", e.code)
}

var (
	configPath string
	modelName  string
	fallback   string
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	rootCmd := newRootCmd()
	rootCmd.SetArgs(args)

	if err := rootCmd.Execute(); err != nil {
		var exitErr exitCodeError
		if errors.As(err, &exitErr) {
			return exitErr.code
		}
		if errors.Is(err, context.Canceled) {
			return exitInterrupted
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return exitError
	}
	return exitOK
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "codeagents",
		Short: "Analyze source code with a rate-limited model and a regex fallback",
		Long: `Analyze source files for security, performance and style issues.

The configured model is called through a rate-limited, retrying client. When it is
unavailable the analysis degrades to built-in regex rules.

Exit codes:
  0 - No findings at or above --fail-on
  1 - Findings at or above --fail-on
  2 - Error
  130 - Interrupted`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "",
		"Path to YAML config (default: $CONFIG_PATH or "+config.DefaultConfigPath+")")
	rootCmd.PersistentFlags().StringVarP(&modelName, "model", "m", "",
		"Model identity, overrides model_config.default_model (env: DEFAULT_MODEL)")
	rootCmd.PersistentFlags().StringVar(&fallback, "fallback", "",
		`Fallback when the model is unavailable: "simple-regex" or "none" (env: FALLBACK_MODEL)`)

	rootCmd.AddCommand(newAnalyzeCmd(), newWatchCmd(), newModelsCmd())
	return rootCmd
}

// loadConfig applies flag overrides on top of defaults, file and environment
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	if modelName != "" {
		cfg.Model.DefaultModel = modelName
	}
	if fallback != "" {
		cfg.Model.FallbackModel = fallback
	}
	if modelName != "" || fallback != "" {
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

// newContainer loads configuration and initializes every component
func newContainer() (*bootstrap.Container, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, errors.Wrap(err, "load config")
	}

	c := bootstrap.NewContainer(cfg)
	if err := c.Init(); err != nil {
		c.Shutdown()
		return nil, err
	}
	return c, nil
}

// signalContext is cancelled on SIGINT or SIGTERM
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
}
