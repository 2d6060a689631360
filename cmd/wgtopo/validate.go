package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Parse and validate the document without touching the Key Store or emitting configs",
	RunE: func(cmd *cobra.Command, args []string) error {
		doc, err := loadDocument(docPath)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "document valid: %d node(s), %d group(s), %d connection(s), %d explicit peer(s)\n",
			len(doc.Nodes()), len(doc.Groups()), len(doc.Connections), len(doc.Peers))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(validateCmd)
}
