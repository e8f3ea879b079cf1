package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/counselsim/internal/logging"
	"github.com/fyrsmithlabs/counselsim/internal/scenario"
	"github.com/fyrsmithlabs/counselsim/internal/session"
	"github.com/fyrsmithlabs/counselsim/internal/simulate"
)

var (
	simulateCases    string
	simulateCaseID   string
	simulateScenario string
	simulateAuto     bool
	simulateMaxTurns int
	simulateOut      string
)

func init() {
	rootCmd.AddCommand(simulateCmd)
	simulateCmd.Flags().StringVar(&simulateCases, "cases", "", "case file path (overrides cases.path in config)")
	simulateCmd.Flags().StringVar(&simulateCaseID, "case-id", "", "case id to simulate (default: first record)")
	simulateCmd.Flags().StringVar(&simulateScenario, "scenario", "", "scenario TOML file scripting the client side")
	simulateCmd.Flags().BoolVar(&simulateAuto, "auto", false, "improvise client replies even when the scenario scripts them")
	simulateCmd.Flags().IntVar(&simulateMaxTurns, "max-turns", 0, "turn cap (overrides session.max_turns in config)")
	simulateCmd.Flags().StringVar(&simulateOut, "out", "", "write the transcript JSON to this file")
}

// simulateCmd runs a complete counselor/client dialogue for one case.
var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Run a full counseling dialogue for one case",
	Long: `Run a complete counselor/client dialogue for one case record.

The counselor side plans and responds through the configured completion
endpoint. The client side is played by a persona agent built from the
case record, or scripted by a scenario file. Trust is re-evaluated on
the cadence set by the case's resistance level, and the run stops when
the counseling goal is reached, the script runs out, or the turn cap
is hit.

Examples:
  # Simulate the first case in the configured case file
  counsel simulate

  # Simulate a specific case with a turn cap
  counsel simulate --case-id patient_3 --max-turns 12

  # Replay a scripted scenario and save the transcript
  counsel simulate --scenario scenarios/resistant.toml --out transcript.json`,
	RunE: runSimulate,
}

// runSimulate handles the simulate command.
func runSimulate(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := newLogger()
	defer func() {
		_ = logging.Sync(logger)
	}()

	gw, err := newGateway(cfg, logger)
	if err != nil {
		return err
	}
	prompts, err := newPromptStore(cfg, logger)
	if err != nil {
		return err
	}
	src, err := loadCases(cfg, simulateCases)
	if err != nil {
		return err
	}
	rec, err := pickCase(src, simulateCaseID)
	if err != nil {
		return err
	}

	var sc *scenario.Scenario
	if simulateScenario != "" {
		sc, err = scenario.Load(simulateScenario)
		if err != nil {
			return err
		}
		if simulateAuto {
			// Keep the opener and turn cap, drop the script so the
			// persona agent improvises.
			improvised := *sc
			improvised.ClientMessages = nil
			sc = &improvised
		}
	}

	maxTurns := cfg.Session.MaxTurns
	if simulateMaxTurns > 0 {
		maxTurns = simulateMaxTurns
	}

	runner := simulate.New(gw, prompts,
		simulate.WithLogger(logger.Named("simulate")),
		simulate.WithMaxTurns(maxTurns),
		simulate.WithTemperature(cfg.Session.Temperature),
	)

	transcript, err := runner.Run(cmd.Context(), rec, sc)
	if err != nil {
		return fmt.Errorf("simulation failed: %w", err)
	}

	printTranscript(transcript)

	if simulateOut != "" {
		if err := writeJSON(simulateOut, transcript); err != nil {
			return err
		}
		fmt.Fprintf(os.Stderr, "transcript written to %s\n", simulateOut)
	}
	return nil
}

// printTranscript prints the run summary and the full dialogue.
func printTranscript(t *simulate.Transcript) {
	fmt.Println(render(titleStyle, "Simulation result"))
	fmt.Printf("%s %s\n", render(labelStyle, "Case:"), render(valueStyle, t.CaseID))
	fmt.Printf("%s %d  %s %s  %s %s\n",
		render(labelStyle, "Turns:"), t.Turns,
		render(labelStyle, "Stopped:"), render(valueStyle, string(t.StopCause)),
		render(labelStyle, "Phase:"), render(valueStyle, string(t.FinalPhase)),
	)
	if t.Technique != nil {
		fmt.Printf("%s %s\n", render(labelStyle, "Technique:"), render(valueStyle, *t.Technique))
	}
	if len(t.TrustHistory) > 0 {
		fmt.Printf("%s %v\n", render(labelStyle, "Trust:"), t.TrustHistory)
	}

	fmt.Println()
	for _, u := range t.History {
		style := counselorStyle
		if u.Role == session.RoleClient {
			style = clientStyle
		}
		fmt.Printf("%s %s\n", render(style, string(u.Role)+":"), u.Message)
	}
}
