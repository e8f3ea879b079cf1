// Package main implements the counsel CLI for running counseling dialogue
// simulations and record conversions from the command line.
//
// Usage:
//
//	counsel simulate --case-id patient_3
//	counsel convert --case-id patient_3 --out record.json
//	counsel cases list
//	counsel cases search "workplace anxiety"
//	counsel chat
//	counsel version
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/counselsim/internal/casedata"
	"github.com/fyrsmithlabs/counselsim/internal/config"
	"github.com/fyrsmithlabs/counselsim/internal/gateway"
	"github.com/fyrsmithlabs/counselsim/internal/logging"
	"github.com/fyrsmithlabs/counselsim/internal/prompt"
)

// Build information. Populated at build time via ldflags.
var (
	version   = "dev"
	gitCommit = "unknown"
	buildDate = "unknown"
)

var (
	// configPath is the config file path; empty uses the default location.
	configPath string
	// noColor disables styled output.
	noColor bool
	// verbose raises logging from warn to debug.
	verbose bool
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "counsel",
	Short: "CLI for counseling dialogue simulation and record conversion",
	Long: `counsel drives counseling case records through simulated CBT dialogues
and converts them into structured counseling records.

Cases come from a JSON case file (--cases or cases.path in the config);
dialogue and conversion calls go through the configured completion
endpoint. Set gateway.provider to "stub" to exercise the plumbing
without an endpoint.`,
	Version: version,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file path (default: ~/.config/counselsim/config.yaml)")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable styled output")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	rootCmd.AddCommand(versionCmd)
}

// versionCmd prints detailed build information.
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("counsel version %s\n", version)
		fmt.Printf("  commit: %s\n", gitCommit)
		fmt.Printf("  built:  %s\n", buildDate)
	},
}

// Output styles shared by the subcommands.
var (
	// Section title style - bold cyan
	titleStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("51")).Bold(true)

	// Label style - dim cyan
	labelStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("45"))

	// Value style - bright white
	valueStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("231")).Bold(true)

	// Dim style - for units and secondary info
	dimStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))

	// Dialogue speaker labels
	counselorStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("51")).Bold(true)
	clientStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("213")).Bold(true)
)

// render applies the style unless --no-color is set.
func render(style lipgloss.Style, s string) string {
	if noColor {
		return s
	}
	return style.Render(s)
}

// loadConfig loads configuration from --config, the default location, and
// COUNSELSIM_* environment variables.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	return cfg, nil
}

// newLogger builds a console logger on stderr. Warn level by default so
// command output stays clean; --verbose opens it up to debug.
func newLogger() *zap.Logger {
	level := "warn"
	if verbose {
		level = "debug"
	}
	logger, err := logging.New(level, "console")
	if err != nil {
		return zap.NewNop()
	}
	return logger
}

// newGateway builds the completion gateway from configuration.
func newGateway(cfg *config.Config, logger *zap.Logger) (gateway.Gateway, error) {
	gw, err := gateway.New(gateway.Config{
		Provider: cfg.Gateway.Provider,
		BaseURL:  cfg.Gateway.BaseURL,
		APIKey:   cfg.Gateway.APIKey.Value(),
		Model:    cfg.Gateway.Model,
		Timeout:  cfg.Gateway.Timeout.Duration(),
		RateLimit: gateway.RateLimitConfig{
			RequestsPerSecond: cfg.Gateway.RequestsPerSecond,
			Burst:             cfg.Gateway.Burst,
		},
		ScrubOutbound: cfg.Gateway.ScrubOutbound,
	}, logger.Named("gateway"))
	if err != nil {
		return nil, fmt.Errorf("creating gateway: %w", err)
	}
	return gw, nil
}

// newPromptStore builds the prompt store, layering the prompts directory
// and the configured conversion system prompt over the defaults.
func newPromptStore(cfg *config.Config, logger *zap.Logger) (*prompt.Store, error) {
	var (
		prompts *prompt.Store
		err     error
	)
	if cfg.Prompts.Dir != "" {
		prompts, err = prompt.NewFromDir(cfg.Prompts.Dir, logger.Named("prompt"))
		if err != nil {
			return nil, fmt.Errorf("loading prompt directory: %w", err)
		}
	} else {
		prompts = prompt.New(logger.Named("prompt"))
	}

	if cfg.Convert.SystemPromptPath != "" {
		data, err := os.ReadFile(cfg.Convert.SystemPromptPath)
		if err != nil {
			return nil, fmt.Errorf("reading conversion system prompt: %w", err)
		}
		prompts.SetOverride(prompt.TemplateConvertSystem, string(data))
	}
	return prompts, nil
}

// loadCases opens the case file from the flag or the config.
func loadCases(cfg *config.Config, flagPath string) (*casedata.Source, error) {
	path := flagPath
	if path == "" {
		path = cfg.Cases.Path
	}
	if path == "" {
		return nil, fmt.Errorf("no case file: pass --cases or set cases.path in the config")
	}
	src, err := casedata.Load(path)
	if err != nil {
		return nil, fmt.Errorf("loading case file: %w", err)
	}
	return src, nil
}

// pickCase selects a record by id, or the first record when no id is given.
func pickCase(src *casedata.Source, caseID string) (casedata.Record, error) {
	if caseID != "" {
		return src.Lookup(caseID)
	}
	return src.First()
}

// writeJSON writes v as indented JSON to path.
func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding output: %w", err)
	}
	data = append(data, '\n')
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}

// truncate shortens s to at most n runes, marking the cut with an ellipsis.
func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	if n < 3 {
		return string(runes[:n])
	}
	return string(runes[:n-3]) + "..."
}
