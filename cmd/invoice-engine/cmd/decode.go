package cmd

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	money "github.com/rezonia/invoice-engine/internal/decimal"
	"github.com/rezonia/invoice-engine/internal/model"
	"github.com/rezonia/invoice-engine/internal/ubl"
)

var decodeCmd = &cobra.Command{
	Use:   "decode [files...]",
	Short: "Decode UBL 2.1 XML invoices",
	Long: `Decode one or more UBL 2.1 XML documents into invoices.

Missing fields take their documented defaults: due date "N/A", currency AUD,
country AUS, quantity 1 and zero amounts.

Examples:
  invoice-engine decode invoice.xml
  invoice-engine decode invoices/ -f table`,
	Args: cobra.MinimumNArgs(1),
	RunE: runDecode,
}

func init() {
	rootCmd.AddCommand(decodeCmd)
}

// DecodeResult holds the decoded invoice for a single file
type DecodeResult struct {
	File    string         `json:"file"`
	Invoice *model.Invoice `json:"invoice,omitempty"`
	Error   string         `json:"error,omitempty"`
}

func runDecode(cmd *cobra.Command, args []string) error {
	files, err := collectFiles(args, isXMLFile)
	if err != nil {
		return err
	}

	if len(files) == 0 {
		return fmt.Errorf("no files found to decode")
	}

	decoder := ubl.NewDecoder()
	results := make([]*DecodeResult, 0, len(files))
	failed := 0

	for _, file := range files {
		printVerbose("Decoding: %s\n", file)

		result := &DecodeResult{File: file}
		data, err := os.ReadFile(file)
		if err == nil {
			result.Invoice, err = decoder.Decode(data)
		}
		if err != nil {
			result.Error = err.Error()
			failed++
		}
		results = append(results, result)
	}

	if outputFormat == "table" {
		printDecodeTable(results)
	} else if err := writeJSON(results); err != nil {
		return err
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d files could not be decoded", failed, len(files))
	}
	return nil
}

func printDecodeTable(results []*DecodeResult) {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "FILE\tINVOICE\tISSUED\tDUE\tSUPPLIER\tBUYER\tTOTAL")
	for _, r := range results {
		if r.Error != "" {
			fmt.Fprintf(w, "%s\tERROR: %s\t\t\t\t\t\n", r.File, r.Error)
			continue
		}
		inv := r.Invoice
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s %s\n",
			r.File, inv.InvoiceID, inv.IssueDate, inv.DueDate,
			inv.Supplier.Name, inv.Buyer.Name,
			money.FormatAmount(inv.TotalWithTax), inv.Currency)
	}
	w.Flush()
}
