package main

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/counselsim/internal/chatui"
	"github.com/fyrsmithlabs/counselsim/internal/session"
)

var (
	chatCases  string
	chatCaseID string
	chatTrust  bool
)

func init() {
	rootCmd.AddCommand(chatCmd)
	chatCmd.Flags().StringVar(&chatCases, "cases", "", "case file path (overrides cases.path in config)")
	chatCmd.Flags().StringVar(&chatCaseID, "case-id", "", "case id to open (default: first record)")
	chatCmd.Flags().BoolVar(&chatTrust, "trust", false, "rate trust on the case's cadence so the phase can advance")
}

// chatCmd opens an interactive session where the user plays the client.
var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Play the client in a live counseling session",
	Long: `Open an interactive counseling session where you play the client.

The counselor plans from the case's intake form and responds to each of
your messages through the configured completion endpoint. With --trust,
every few turns (per the case's resistance level) you are asked to rate
your trust from 1 to 5, which drives the phase forward.

Examples:
  # Chat against the first case in the configured case file
  counsel chat

  # Chat against a specific case with trust evaluation
  counsel chat --case-id patient_3 --trust`,
	RunE: runChat,
}

// runChat handles the chat command.
func runChat(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	// Silent logger: log output would tear the TUI.
	logger := zap.NewNop()

	gw, err := newGateway(cfg, logger)
	if err != nil {
		return err
	}
	prompts, err := newPromptStore(cfg, logger)
	if err != nil {
		return err
	}
	src, err := loadCases(cfg, chatCases)
	if err != nil {
		return err
	}
	rec, err := pickCase(src, chatCaseID)
	if err != nil {
		return err
	}

	sess := session.New(gw, prompts, session.WithTemperature(cfg.Session.Temperature))
	m := chatui.New(sess, rec, chatui.Options{
		TrustEval: chatTrust,
		NoColor:   noColor,
	})

	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(cmd.Context()))
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("chat session: %w", err)
	}
	return nil
}
