package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/rezonia/invoice-engine/internal/processor"
	"github.com/rezonia/invoice-engine/internal/rules"
	"github.com/rezonia/invoice-engine/internal/storage"
	"github.com/rezonia/invoice-engine/internal/ubl"
)

var (
	schemas  []string
	failFast bool
)

var validateCmd = &cobra.Command{
	Use:   "validate [files...]",
	Short: "Validate invoice files against rule sets",
	Long: `Validate JSON invoices or UBL 2.1 XML documents against one or more
rule sets. Files are validated concurrently; a file that cannot be read or
decoded is reported on its own without stopping the others.

Without --schema the configured default rule sets are used.

Examples:
  invoice-engine validate invoice.xml
  invoice-engine validate invoice.json --schema fairwork
  invoice-engine validate invoices/ --schema peppol --schema fairwork -f table`,
	Args: cobra.MinimumNArgs(1),
	RunE: runValidate,
}

func init() {
	rootCmd.AddCommand(validateCmd)

	validateCmd.Flags().StringSliceVarP(&schemas, "schema", "s", nil, "Rule set to apply (repeatable)")
	validateCmd.Flags().BoolVar(&failFast, "fail-fast", false, "Stop at the first file that cannot be validated")
}

// ValidationResult holds the result of validating a single file
type ValidationResult struct {
	File     string   `json:"file"`
	Valid    bool     `json:"valid"`
	Errors   []string `json:"errors"`
	Warnings []string `json:"warnings"`
	Error    string   `json:"error,omitempty"`
}

func runValidate(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	files, err := collectFiles(args, isInvoiceFile)
	if err != nil {
		return err
	}

	if len(files) == 0 {
		return fmt.Errorf("no files found to validate")
	}

	names := schemas
	if len(names) == 0 {
		names = cfg.Validation.DefaultSchemas
	}
	printVerbose("Validating %d files against %v\n", len(files), names)

	orchestrator := processor.NewOrchestrator(newFileFetcher(), rules.NewEngine(rules.DefaultRegistry()),
		processor.WithConcurrency(cfg.Validation.BatchConcurrency),
		processor.WithItemTimeout(cfg.Validation.ItemTimeout),
		processor.WithFailFast(failFast || cfg.Validation.FailFast),
	)

	batch, err := orchestrator.ValidateBatch(cmd.Context(), files, names)
	if err != nil {
		return err
	}

	results := make([]*ValidationResult, 0, len(batch.Items))
	for _, item := range batch.Items {
		results = append(results, toValidationResult(item))
	}

	if outputFormat == "json" {
		if err := writeJSON(results); err != nil {
			return err
		}
	} else {
		printValidationTable(results)
	}

	if !batch.OverallValid {
		return fmt.Errorf("validation failed for some files")
	}
	return nil
}

func toValidationResult(item processor.BatchItem) *ValidationResult {
	result := &ValidationResult{
		File:     item.InvoiceID,
		Valid:    item.Valid(),
		Errors:   []string{},
		Warnings: []string{},
	}
	if item.Err != nil {
		result.Error = item.Err.Error()
		return result
	}
	result.Errors = item.Result.Errors
	result.Warnings = item.Result.Warnings
	return result
}

func printValidationTable(results []*ValidationResult) {
	for _, r := range results {
		switch {
		case r.Error != "":
			fmt.Printf("✗ %s: ERROR %s\n", r.File, r.Error)
		case r.Valid:
			fmt.Printf("✓ %s: VALID\n", r.File)
		default:
			fmt.Printf("✗ %s: INVALID\n", r.File)
			for _, e := range r.Errors {
				fmt.Printf("  - %s\n", e)
			}
		}
		for _, w := range r.Warnings {
			fmt.Printf("  ⚠ %s\n", w)
		}
	}
}

// fileFetcher serves invoice files to the orchestrator, keyed by path.
// JSON invoices are encoded on the fly.
type fileFetcher struct {
	encoder *ubl.Encoder
}

func newFileFetcher() *fileFetcher {
	return &fileFetcher{encoder: ubl.NewEncoder(ubl.WithIndent(0))}
}

func (f *fileFetcher) Get(ctx context.Context, path string) (*storage.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	if isJSONFile(path) {
		inv, err := parseInvoiceJSON(data)
		if err != nil {
			return nil, err
		}
		encoded, err := f.encoder.Encode(inv)
		if err != nil {
			return nil, err
		}
		data = encoded.XML
	}

	return &storage.Record{InvoiceID: path, XML: data}, nil
}
