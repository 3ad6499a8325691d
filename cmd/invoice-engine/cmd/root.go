package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/rezonia/invoice-engine/internal/config"
)

var (
	version = "1.0.0"

	// Global flags
	verbose      bool
	outputFormat string
	configFile   string
)

var rootCmd = &cobra.Command{
	Use:   "invoice-engine",
	Short: "Encode, decode and validate UBL 2.1 invoices",
	Long: `Invoice Engine converts invoices between JSON and UBL 2.1 XML and checks
them against named compliance rule sets.

Rule sets:
  - peppol:   Peppol A-NZ interoperability rules
  - fairwork: Fair Work record-keeping rules for labour hire

Examples:
  # Encode a JSON invoice to UBL XML
  invoice-engine encode invoice.json -o invoice.xml

  # Decode UBL XML back to JSON
  invoice-engine decode invoice.xml

  # Validate files against both rule sets
  invoice-engine validate invoices/ --schema peppol --schema fairwork

  # Run the HTTP API
  invoice-engine serve`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().StringVarP(&outputFormat, "format", "f", "json", "Output format (json, table)")
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "Config file (default: ./config.yaml if present)")
}

func loadConfig() (*config.Configuration, error) {
	cfg, err := config.NewConfig(configFile)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	return cfg, nil
}

func printVerbose(format string, args ...interface{}) {
	if verbose {
		fmt.Fprintf(os.Stderr, format, args...)
	}
}
