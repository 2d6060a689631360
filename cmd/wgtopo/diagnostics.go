package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/netly/wgtopo/internal/engine"
)

var diagnosticsCmd = &cobra.Command{
	Use:   "diagnostics",
	Short: "Run the build and print non-fatal diagnostics only, without writing any config",
	RunE: func(cmd *cobra.Command, args []string) error {
		doc, err := loadDocument(docPath)
		if err != nil {
			return err
		}

		ks, err := openKeyStore(ksPath)
		if err != nil {
			return fmt.Errorf("opening key store: %w", err)
		}

		report, err := engine.BuildReport(doc, ks, engine.Options{InterfaceName: ifaceOpt})
		if err != nil {
			return fmt.Errorf("build: %w", err)
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "report %s: %d diagnostic(s)\n", report.ID, len(report.Result.Diagnostics))
		for _, d := range report.Result.Diagnostics {
			fmt.Fprintf(out, "  [%s] %s: %s\n", d.Stage, d.Kind, d.Message)
		}

		return nil
	},
}

func init() {
	rootCmd.AddCommand(diagnosticsCmd)
}
