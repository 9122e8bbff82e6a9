// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var verifyCmd = &cobra.Command{
	Use:   "verify <url>",
	Short: "Check that a URL serves a downloadable PDF",
	Long: `Verify probes a URL without downloading it: the syntax is checked, then a
HEAD (or partial GET) confirms the server answers, that the content is a PDF
by declared type or leading bytes, and that the declared size is within the
configured cap.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		orc, _, err := newOrchestrator(cmd.Context())
		if err != nil {
			return err
		}
		defer orc.Close()

		resp := orc.VerifyOnly(cmd.Context(), args[0])
		if jsonOutput(cmd) {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(resp)
		}

		if !resp.IsValid {
			return fmt.Errorf("not a valid document: %s", resp.Error)
		}
		size := "unknown size"
		if resp.SizeBytes != nil {
			size = fmt.Sprintf("%d bytes", *resp.SizeBytes)
		}
		fmt.Fprintf(os.Stdout, "Valid: %s (%s)\n", resp.ContentType, size)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(verifyCmd)
}
