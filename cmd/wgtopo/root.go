// Command wgtopo drives the topology engine from the outside: it loads a
// document, opens a Key Store, calls engine.Build, and renders the result.
// It is a thin shell around internal/docio, internal/keystore, and
// internal/engine — nothing here implements engine semantics.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/netly/wgtopo/internal/config"
)

var (
	cfgFile  string
	cfg      *config.Config
	docPath  string
	ksPath   string
	ifaceOpt string
	outDir   string
)

var rootCmd = &cobra.Command{
	Use:   "wgtopo",
	Short: "Expand a WireGuard topology document into per-node configs",
	Long: `wgtopo turns a topology document (nodes+peers, or groups+connections)
into a per-node WireGuard configuration, binding key material from a
local Key Store and writing wg-quick .conf files.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		loaded, err := config.Load(cfgFile)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		cfg = loaded

		if docPath == "" {
			docPath = cfg.CLI.DefaultDocument
		}
		if ksPath == "" {
			ksPath = cfg.KeyStore.Path
		}
		if ifaceOpt == "" {
			ifaceOpt = cfg.Engine.InterfaceName
		}
		if outDir == "" {
			outDir = cfg.CLI.OutputDir
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "path to a wgtopo config file")
	rootCmd.PersistentFlags().StringVar(&docPath, "document", "", "path to the topology document (YAML/JSON)")
	rootCmd.PersistentFlags().StringVar(&ksPath, "keystore", "", "path to the Key Store file")
	rootCmd.PersistentFlags().StringVar(&ifaceOpt, "interface", "", "WireGuard interface name for generated relay commands")
	rootCmd.PersistentFlags().StringVar(&outDir, "out", "", "directory to write rendered .conf files into")
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
