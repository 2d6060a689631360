package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/netly/wgtopo/internal/engine"
	"github.com/netly/wgtopo/internal/render"
)

var buildCmd = &cobra.Command{
	Use:   "build",
	Short: "Expand the document, bind keys, and write one .conf file per node",
	RunE: func(cmd *cobra.Command, args []string) error {
		doc, err := loadDocument(docPath)
		if err != nil {
			return err
		}

		ks, err := openKeyStore(ksPath)
		if err != nil {
			return fmt.Errorf("opening key store: %w", err)
		}

		result, err := engine.Build(doc, ks, engine.Options{InterfaceName: ifaceOpt})
		if err != nil {
			return fmt.Errorf("build: %w", err)
		}

		for _, d := range result.Diagnostics {
			fmt.Fprintf(os.Stderr, "diagnostic[%s] %s: %s\n", d.Stage, d.Kind, d.Message)
		}

		rendered, err := render.RenderAll(result.Nodes)
		if err != nil {
			return fmt.Errorf("rendering: %w", err)
		}

		if err := os.MkdirAll(outDir, 0o755); err != nil {
			return fmt.Errorf("creating output dir %q: %w", outDir, err)
		}

		for _, name := range render.SortedNodeNames(result.Nodes) {
			path := filepath.Join(outDir, name+".conf")
			if err := os.WriteFile(path, []byte(rendered[name]), 0o600); err != nil {
				return fmt.Errorf("writing %q: %w", path, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", path)
		}

		return nil
	},
}

func init() {
	rootCmd.AddCommand(buildCmd)
}
