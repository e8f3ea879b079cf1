package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/counselsim/internal/casedata"
	"github.com/fyrsmithlabs/counselsim/internal/caseindex"
	"github.com/fyrsmithlabs/counselsim/internal/logging"
)

var (
	casesFile string
	casesTopK int
)

func init() {
	rootCmd.AddCommand(casesCmd)
	casesCmd.AddCommand(casesListCmd)
	casesCmd.AddCommand(casesShowCmd)
	casesCmd.AddCommand(casesSearchCmd)

	casesCmd.PersistentFlags().StringVar(&casesFile, "cases", "", "case file path (overrides cases.path in config)")
	casesSearchCmd.Flags().IntVar(&casesTopK, "top", 3, "number of results to return")
}

// casesCmd is the parent command for case-file operations.
var casesCmd = &cobra.Command{
	Use:   "cases",
	Short: "Inspect and search the case file",
	Long: `Inspect and search counseling case records.

Examples:
  # List all case ids
  counsel cases list

  # Show one full record
  counsel cases show patient_3

  # Find cases similar to a description
  counsel cases search "workplace anxiety and avoidance"`,
}

// casesListCmd lists the records in the case file.
var casesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the records in the case file",
	RunE:  runCasesList,
}

// casesShowCmd prints one record as JSON.
var casesShowCmd = &cobra.Command{
	Use:   "show <case-id>",
	Short: "Print one case record as JSON",
	Args:  cobra.ExactArgs(1),
	RunE:  runCasesShow,
}

// casesSearchCmd searches records by similarity.
var casesSearchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Search case records by similarity",
	Long: `Search case records by embedding similarity.

Records are indexed by their case summary (or counseling reason) using
the embedding endpoint from the index.* config section. With index.path
set the index persists between runs; otherwise it is rebuilt in memory
per invocation.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runCasesSearch,
}

// runCasesList handles the cases list command.
func runCasesList(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	src, err := loadCases(cfg, casesFile)
	if err != nil {
		return err
	}

	fmt.Printf("%s %d\n", render(labelStyle, "Records:"), src.Len())
	for _, rec := range src.Records() {
		_, reason := casedata.IntakeReason(rec)
		level := rec.String("resistance_level")
		if level == "" {
			level = "-"
		}
		fmt.Printf("%s  %-12s  %s\n",
			render(valueStyle, fmt.Sprintf("%-16s", rec.ID())),
			level,
			render(dimStyle, truncate(reason, 60)),
		)
	}
	return nil
}

// runCasesShow handles the cases show command.
func runCasesShow(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	src, err := loadCases(cfg, casesFile)
	if err != nil {
		return err
	}
	rec, err := src.Lookup(args[0])
	if err != nil {
		return err
	}

	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding record: %w", err)
	}
	fmt.Println(string(data))
	return nil
}

// runCasesSearch handles the cases search command.
func runCasesSearch(cmd *cobra.Command, args []string) error {
	query := strings.Join(args, " ")

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := newLogger()
	defer func() {
		_ = logging.Sync(logger)
	}()

	src, err := loadCases(cfg, casesFile)
	if err != nil {
		return err
	}

	embedder, err := caseindex.NewLangchainEmbedder(caseindex.EmbedderConfig{
		BaseURL: cfg.Index.EmbeddingBaseURL,
		Model:   cfg.Index.EmbeddingModel,
		APIKey:  cfg.Index.EmbeddingAPIKey.Value(),
	})
	if err != nil {
		return fmt.Errorf("creating embedder: %w", err)
	}
	idx, err := caseindex.New(caseindex.Config{
		Path:       cfg.Index.Path,
		Collection: cfg.Index.Collection,
	}, embedder, logger.Named("caseindex"))
	if err != nil {
		return err
	}

	// A persistent index keeps its documents between runs; only index on
	// first use. Delete index.path to rebuild after editing the case file.
	if idx.Count() == 0 {
		added, err := idx.Add(cmd.Context(), src.Records())
		if err != nil {
			return err
		}
		logger.Debug("indexed case records", zap.Int("count", added))
	}

	results, err := idx.Search(cmd.Context(), query, casesTopK)
	if err != nil {
		return err
	}
	if len(results) == 0 {
		fmt.Println(render(dimStyle, "no matches"))
		return nil
	}

	for i, r := range results {
		fmt.Printf("%s %s  %s\n",
			render(dimStyle, fmt.Sprintf("%d.", i+1)),
			render(valueStyle, r.ID),
			render(labelStyle, fmt.Sprintf("score %.3f", r.Score)),
		)
		fmt.Printf("   %s\n", render(dimStyle, truncate(r.Content, 100)))
	}
	return nil
}
