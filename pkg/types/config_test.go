// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultPipelineConfigIsValid(t *testing.T) {
	require.NoError(t, DefaultPipelineConfig().Validate())
}

func TestPipelineConfigValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*PipelineConfig)
		errMsg string
	}{
		{
			name:   "zero size cap",
			mutate: func(c *PipelineConfig) { c.Acquisition.MaxBytes = 0 },
			errMsg: "size cap",
		},
		{
			name:   "negative verify cap",
			mutate: func(c *PipelineConfig) { c.Verify.MaxBytes = -1 },
			errMsg: "size cap",
		},
		{
			name:   "max results above 20",
			mutate: func(c *PipelineConfig) { c.Search.MaxResults = 21 },
			errMsg: "max_results",
		},
		{
			name:   "zero search deadline",
			mutate: func(c *PipelineConfig) { c.Search.Deadline = 0 },
			errMsg: "search.deadline",
		},
		{
			name:   "zero source timeout",
			mutate: func(c *PipelineConfig) { c.Search.Gutendex.Timeout = 0 },
			errMsg: "search.gutendex.timeout",
		},
		{
			name:   "empty media dir",
			mutate: func(c *PipelineConfig) { c.Acquisition.MediaDir = "" },
			errMsg: "media_dir",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultPipelineConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalidConfig)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func TestFallbackIntent(t *testing.T) {
	got := FallbackIntent("الأيام", "ar")
	assert.Equal(t, "الأيام", got.Title)
	assert.Equal(t, []string{"الأيام"}, got.SearchVariations)
	assert.True(t, got.SameLanguage)

	got = FallbackIntent("Dune", "en")
	assert.False(t, got.SameLanguage)
	assert.Empty(t, got.Author)
}

func TestVerifyReportIsValid(t *testing.T) {
	assert.True(t, VerifyReport{State: StateVerified}.IsValid())
	assert.False(t, VerifyReport{State: StateTypeRejected}.IsValid())
	assert.Equal(t, "", VerifyReport{State: StateVerified}.ErrorString())
}
