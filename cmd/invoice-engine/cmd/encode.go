package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/rezonia/invoice-engine/internal/ubl"
)

var (
	encodeOutput string
	encodeIndent int
)

var encodeCmd = &cobra.Command{
	Use:   "encode [files...]",
	Short: "Encode JSON invoices as UBL 2.1 XML",
	Long: `Encode one or more JSON invoices as UBL 2.1 XML documents.

Totals are derived from the line items; any totals in the JSON are ignored.
With a single input the XML goes to stdout or --output. With several inputs
each document is written next to its source with an .xml extension.

Examples:
  invoice-engine encode invoice.json
  invoice-engine encode invoice.json -o invoice.xml
  invoice-engine encode invoices/`,
	Args: cobra.MinimumNArgs(1),
	RunE: runEncode,
}

func init() {
	rootCmd.AddCommand(encodeCmd)

	encodeCmd.Flags().StringVarP(&encodeOutput, "output", "o", "", "Output file (single input only, default: stdout)")
	encodeCmd.Flags().IntVar(&encodeIndent, "indent", 2, "Spaces per nesting level, 0 for compact output")
}

func runEncode(cmd *cobra.Command, args []string) error {
	files, err := collectFiles(args, isJSONFile)
	if err != nil {
		return err
	}

	if len(files) == 0 {
		return fmt.Errorf("no files found to encode")
	}
	if encodeOutput != "" && len(files) > 1 {
		return fmt.Errorf("--output needs exactly one input, got %d", len(files))
	}

	encoder := ubl.NewEncoder(ubl.WithIndent(encodeIndent))

	for _, file := range files {
		printVerbose("Encoding: %s\n", file)

		inv, err := readInvoiceJSON(file)
		if err != nil {
			return fmt.Errorf("%s: %w", file, err)
		}

		encoded, err := encoder.Encode(inv)
		if err != nil {
			return fmt.Errorf("%s: %w", file, err)
		}

		switch {
		case len(files) == 1 && encodeOutput == "":
			_, err = os.Stdout.Write(encoded.XML)
		case len(files) == 1:
			err = os.WriteFile(encodeOutput, encoded.XML, 0o644)
		default:
			target := strings.TrimSuffix(file, filepath.Ext(file)) + ".xml"
			err = os.WriteFile(target, encoded.XML, 0o644)
			printVerbose("  Wrote %s (document %s)\n", target, encoded.DocumentID)
		}
		if err != nil {
			return err
		}
	}

	return nil
}
