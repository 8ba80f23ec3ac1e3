package library

import (
	"context"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"
)

// SourceWithMetadata wraps a source with its configured display name.
type SourceWithMetadata struct {
	Source      Source
	DisplayName string
}

// SourceChain merges multiple sources in order.
type SourceChain struct {
	sources []SourceWithMetadata
}

// NewSourceChain creates a new source chain.
func NewSourceChain(sources []SourceWithMetadata) *SourceChain {
	return &SourceChain{sources: sources}
}

// Load loads every source. A failing source is skipped; an id already
// provided by an earlier source is dropped. Load fails only when no
// source succeeded.
func (c *SourceChain) Load(ctx context.Context) ([]Entry, error) {
	var all []Entry
	seen := make(map[string]bool)
	succeeded := 0

	for i, sm := range c.sources {
		zlog.Debug().Msgf("library: loading source index=%d total=%d name=%s type=%s",
			i+1, len(c.sources), sm.DisplayName, sm.Source.Name())

		entries, err := sm.Source.Load(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil, errors.Wrap(ctx.Err(), "library load aborted")
			}
			zlog.Warn().Msgf("library: source failed, skipping: source=%s error=%v", sm.DisplayName, err)
			continue
		}
		succeeded++

		added, duplicates := 0, 0
		for _, e := range entries {
			if seen[e.ID] {
				duplicates++
				continue
			}
			seen[e.ID] = true
			all = append(all, e)
			added++
		}
		if duplicates > 0 {
			zlog.Warn().Msgf("library: source %s had %d duplicate ids", sm.DisplayName, duplicates)
		}

		zlog.Info().Msgf("library: source loaded: source=%s count=%d total_so_far=%d",
			sm.DisplayName, added, len(all))
	}

	if succeeded == 0 {
		return nil, errors.New("all library sources failed")
	}
	return all, nil
}

// Name returns the chain name.
func (c *SourceChain) Name() string {
	return "source_chain"
}
