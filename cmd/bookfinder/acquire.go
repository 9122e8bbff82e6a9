// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pdiddy/bookfinder/internal/orchestrate"
	"github.com/pdiddy/bookfinder/internal/search"
	"github.com/pdiddy/bookfinder/pkg/types"
)

var acquireCmd = &cobra.Command{
	Use:   "acquire [candidate-id | url]",
	Short: "Download a verified PDF for a search candidate or URL",
	Long: `Acquire materializes the document of one book. The book is a candidate ID
from a search session, a rank in a results file saved by "search --save"
(--from with --pick), or a direct URL with --title and --author hints.

A candidate without a link goes through the locator chain (oracle, Gutendex,
Internet Archive). The link is verified before anything is downloaded unless
--skip-verification is given. EPUB and MOBI downloads are converted to PDF.
Files land in <media_dir>/books/pdfs/.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runAcquire,
}

func init() {
	acquireCmd.Flags().String("from", "", "results file written by search --save")
	acquireCmd.Flags().Int("pick", 1, "rank of the candidate to acquire from --from")
	acquireCmd.Flags().String("title", "", "title hint for a direct URL (used in the file name)")
	acquireCmd.Flags().String("author", "", "author hint for a direct URL")
	acquireCmd.Flags().Bool("skip-verification", false, "download without verifying the link first")

	rootCmd.AddCommand(acquireCmd)
}

// acquireRequest turns the arguments into a request.
func acquireRequest(cmd *cobra.Command, args []string) (orchestrate.AcquireRequest, error) {
	skip, _ := cmd.Flags().GetBool("skip-verification")
	req := orchestrate.AcquireRequest{SkipVerification: skip}

	if from, _ := cmd.Flags().GetString("from"); from != "" {
		qf, err := search.ReadQueryFile(from)
		if err != nil {
			return req, err
		}
		pick, _ := cmd.Flags().GetInt("pick")
		cand, err := qf.Pick(pick)
		if err != nil {
			return req, err
		}
		// The saved session may have expired; acquire the saved copy.
		cand.ID = ""
		req.Candidate = &cand
		return req, nil
	}

	if len(args) == 0 {
		return req, fmt.Errorf("%w: provide a candidate ID, a URL, or --from", types.ErrInvalidRequest)
	}
	if strings.HasPrefix(args[0], "http://") || strings.HasPrefix(args[0], "https://") {
		title, _ := cmd.Flags().GetString("title")
		author, _ := cmd.Flags().GetString("author")
		req.Candidate = &types.CandidateBook{Title: title, Author: author, DocumentURL: args[0]}
		return req, nil
	}
	req.CandidateID = args[0]
	return req, nil
}

func runAcquire(cmd *cobra.Command, args []string) error {
	req, err := acquireRequest(cmd, args)
	if err != nil {
		return err
	}

	orc, _, err := newOrchestrator(cmd.Context())
	if err != nil {
		return err
	}
	defer orc.Close()

	resp, err := orc.Acquire(cmd.Context(), req)
	if err != nil {
		return err
	}

	if jsonOutput(cmd) {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(resp); err != nil {
			return err
		}
	} else if resp.Success {
		fmt.Fprintf(os.Stdout, "Stored %s (%s, %d bytes)\n", resp.StoredPath, resp.DetectedFormat, resp.SizeBytes)
		if resp.Candidate.DocumentSourceTag != "" {
			fmt.Fprintf(os.Stdout, "Source: %s\n", resp.Candidate.DocumentSourceTag)
		}
	}
	if !resp.Success {
		return fmt.Errorf("acquisition failed: %s", resp.Error)
	}
	return nil
}
