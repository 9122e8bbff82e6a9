// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/pdiddy/bookfinder/internal/orchestrate"
)

var addCmd = &cobra.Command{
	Use:   "add <candidate-id>",
	Short: "Add a search candidate to the library",
	Long: `Add creates a library record from a search session candidate. A book with
the same title and author (case-insensitive) is rejected as a duplicate.
With --download the candidate's PDF is acquired first; a failed download is
reported in the PDF status and the record is created anyway.

Candidate IDs outlive the search command only with the Redis session backend.`,
	Args: cobra.ExactArgs(1),
	RunE: runAdd,
}

func init() {
	addCmd.Flags().String("status", "draft", "book status: draft, published, or pending")
	addCmd.Flags().String("category", "", "category override (default: the candidate's first category)")
	addCmd.Flags().Bool("download", true, "acquire the PDF before creating the record")

	rootCmd.AddCommand(addCmd)
}

func runAdd(cmd *cobra.Command, args []string) error {
	status, _ := cmd.Flags().GetString("status")
	category, _ := cmd.Flags().GetString("category")
	download, _ := cmd.Flags().GetBool("download")

	orc, _, err := newOrchestrator(cmd.Context())
	if err != nil {
		return err
	}
	defer orc.Close()

	resp, err := orc.AddFromSearch(cmd.Context(), orchestrate.AddRequest{
		CandidateID:       args[0],
		Status:            status,
		CustomCategory:    category,
		DownloadRequested: download,
	})
	if err != nil {
		return err
	}

	if jsonOutput(cmd) {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(resp)
	}
	fmt.Fprintf(os.Stdout, "%s (id %d)\nPDF: %s\n", resp.Message, resp.BookID, resp.DocumentStatus)
	return nil
}
