package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/counselsim/internal/convert"
	"github.com/fyrsmithlabs/counselsim/internal/logging"
	"github.com/fyrsmithlabs/counselsim/internal/prompt"
	"github.com/fyrsmithlabs/counselsim/pkg/schema"
)

var (
	convertCases        string
	convertCaseID       string
	convertSystemPrompt string
	convertMaxRetries   int
	convertOut          string
)

func init() {
	rootCmd.AddCommand(convertCmd)
	convertCmd.Flags().StringVar(&convertCases, "cases", "", "case file path (overrides cases.path in config)")
	convertCmd.Flags().StringVar(&convertCaseID, "case-id", "", "case id to convert (default: first record)")
	convertCmd.Flags().StringVar(&convertSystemPrompt, "system-prompt", "", "system prompt file (overrides convert.system_prompt_path)")
	convertCmd.Flags().IntVar(&convertMaxRetries, "max-retries", 0, "repair attempts after the first call (overrides convert.max_retries)")
	convertCmd.Flags().StringVar(&convertOut, "out", "", "write the structured record JSON to this file")
}

// convertCmd converts one case record into a structured counseling record.
var convertCmd = &cobra.Command{
	Use:   "convert",
	Short: "Convert a case record into a structured counseling record",
	Long: `Convert one case record into a validated structured counseling record.

The record is sent to the completion endpoint with the conversion system
prompt; invalid responses are fed back with the validation error for
repair, up to the retry budget.

Examples:
  # Convert the first case in the configured case file
  counsel convert

  # Convert a specific case with a custom system prompt
  counsel convert --case-id patient_3 --system-prompt prompts/convert.txt

  # Save the structured record
  counsel convert --case-id patient_3 --out record.json`,
	RunE: runConvert,
}

// runConvert handles the convert command.
func runConvert(cmd *cobra.Command, args []string) error {
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
	if convertSystemPrompt != "" {
		data, err := os.ReadFile(convertSystemPrompt)
		if err != nil {
			return fmt.Errorf("reading system prompt file: %w", err)
		}
		prompts.SetOverride(prompt.TemplateConvertSystem, string(data))
	}
	systemPrompt, ok := prompts.Get(prompt.TemplateConvertSystem)
	if !ok {
		return fmt.Errorf("conversion system prompt not configured")
	}

	src, err := loadCases(cfg, convertCases)
	if err != nil {
		return err
	}
	rec, err := pickCase(src, convertCaseID)
	if err != nil {
		return err
	}

	maxRetries := cfg.Convert.MaxRetries
	if cmd.Flags().Changed("max-retries") {
		maxRetries = convertMaxRetries
	}
	if maxRetries < 0 {
		return fmt.Errorf("--max-retries must be non-negative")
	}

	converter := convert.New(gw,
		convert.WithLogger(logger.Named("convert")),
		convert.WithTemperature(cfg.Convert.Temperature),
	)

	out, err := converter.Convert(cmd.Context(), rec, systemPrompt, maxRetries)
	if err != nil {
		return err
	}

	printRecord(out)

	if convertOut != "" {
		if err := writeJSON(convertOut, out); err != nil {
			return err
		}
		fmt.Fprintf(os.Stderr, "record written to %s\n", convertOut)
	}
	return nil
}

// printRecord prints the structured record summary.
func printRecord(rec *schema.Record) {
	info := rec.IntakeForm.ClientInfo

	fmt.Println(render(titleStyle, "Structured counseling record"))
	fmt.Printf("%s %s\n", render(labelStyle, "Client:"),
		render(valueStyle, fmt.Sprintf("%s, %d, %s", info.Name, info.Age, info.Occupation)))
	fmt.Printf("%s %s\n", render(labelStyle, "Thought:"), rec.Thought)
	fmt.Printf("%s %s\n", render(labelStyle, "Patterns:"), strings.Join(rec.Patterns, ", "))
	fmt.Printf("%s %s\n", render(labelStyle, "Technique:"), render(valueStyle, rec.CBTTechnique))
	fmt.Printf("%s %s\n", render(labelStyle, "Reason:"), rec.IntakeForm.ReasonForSeekingCounseling)

	fmt.Println(render(labelStyle, "Plan:"))
	for i, step := range rec.PlanSteps() {
		fmt.Printf("  %s %s\n", render(dimStyle, fmt.Sprintf("%d.", i+1)), step)
	}
}
