// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package search

import (
	"fmt"
	"os"
	"time"

	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/bookfinder/pkg/types"
)

// QueryFile is the on-disk representation of a search and its ranked
// candidates. A saved search can be reloaded later to acquire one of its
// candidates without querying the catalogs again.
type QueryFile struct {
	Query   QueryParams           `yaml:"query"`
	Intent  types.QueryIntent     `yaml:"intent"`
	Results []types.CandidateBook `yaml:"results"`
	Summary QuerySummary          `yaml:"summary"`
}

// QueryParams stores the request that produced the results.
type QueryParams struct {
	Text       string `yaml:"text"`
	Language   string `yaml:"language"`
	MaxResults int    `yaml:"max_results"`
	SessionID  string `yaml:"session_id,omitempty"`
}

// QuerySummary stores result statistics and a timestamp.
type QuerySummary struct {
	Total             int       `yaml:"total"`
	DuplicatesRemoved int       `yaml:"duplicates_removed"`
	SourceErrors      []string  `yaml:"source_errors,omitempty"`
	Timestamp         time.Time `yaml:"timestamp"`
}

// WriteQueryFile saves a search request and its results to a YAML file.
func WriteQueryFile(path string, params QueryParams, intent types.QueryIntent, out Output) error {
	qf := QueryFile{
		Query:   params,
		Intent:  intent,
		Results: out.Results,
		Summary: QuerySummary{
			Total:             len(out.Results),
			DuplicatesRemoved: out.DupsRemoved,
			SourceErrors:      out.SourceErrors,
			Timestamp:         time.Now().UTC(),
		},
	}

	data, err := yaml.Marshal(&qf)
	if err != nil {
		return fmt.Errorf("marshaling query file: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

// ReadQueryFile loads a previously saved query file from disk.
func ReadQueryFile(path string) (*QueryFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading query file: %w", err)
	}
	var qf QueryFile
	if err := yaml.Unmarshal(data, &qf); err != nil {
		return nil, fmt.Errorf("parsing query file: %w", err)
	}
	return &qf, nil
}

// Pick returns the candidate at 1-based rank n.
func (qf *QueryFile) Pick(n int) (types.CandidateBook, error) {
	if n < 1 || n > len(qf.Results) {
		return types.CandidateBook{}, fmt.Errorf("rank %d out of range 1..%d: %w", n, len(qf.Results), types.ErrCandidateNotFound)
	}
	return qf.Results[n-1], nil
}
