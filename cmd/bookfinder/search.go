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
)

var searchCmd = &cobra.Command{
	Use:   "search [query...]",
	Short: "Search the book catalogs for a title",
	Long: `Search reads a free-text query (optionally through the LLM oracle), queries
every enabled catalog concurrently, and prints the deduplicated, ranked
candidates. Candidates are stored in a search session; with a Redis session
backend their IDs can be passed to "acquire" and "add" later.

Use --save to write the candidates to a YAML file that "acquire --from"
reads back.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runSearch,
}

func init() {
	searchCmd.Flags().StringP("language", "l", "en", "query language: en or ar")
	searchCmd.Flags().Int("max-results", 0, "maximum number of results, 1-20 (default from config)")
	searchCmd.Flags().String("save", "", "write the results to this YAML file")

	rootCmd.AddCommand(searchCmd)
}

func runSearch(cmd *cobra.Command, args []string) error {
	language, _ := cmd.Flags().GetString("language")
	maxResults, _ := cmd.Flags().GetInt("max-results")
	savePath, _ := cmd.Flags().GetString("save")

	orc, _, err := newOrchestrator(cmd.Context())
	if err != nil {
		return err
	}
	defer orc.Close()

	resp, err := orc.Search(cmd.Context(), orchestrate.SearchRequest{
		Query:      strings.Join(args, " "),
		Language:   language,
		MaxResults: maxResults,
	})
	if err != nil {
		return err
	}

	out := search.Output{
		Results:      resp.Results,
		DupsRemoved:  resp.DuplicatesRemoved,
		SourceErrors: resp.SourceErrors,
	}
	if savePath != "" {
		params := search.QueryParams{
			Text:       strings.Join(args, " "),
			Language:   language,
			MaxResults: len(resp.Results),
			SessionID:  resp.SessionID,
		}
		if err := search.WriteQueryFile(savePath, params, resp.Intent, out); err != nil {
			return err
		}
		fmt.Fprintf(os.Stderr, "Saved %d results to %s\n", len(resp.Results), savePath)
	}

	if jsonOutput(cmd) {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(resp)
	}
	fmt.Fprintf(os.Stdout, "Search session: %s\n\n", resp.SessionID)
	search.FormatTable(out, os.Stdout)
	if resp.Message != "" {
		fmt.Fprintln(os.Stdout, resp.Message)
	}
	for _, e := range resp.SourceErrors {
		fmt.Fprintf(os.Stderr, "warning: %s\n", e)
	}
	return nil
}
