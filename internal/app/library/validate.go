package library

import (
	"context"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"
)

// ContentChecker reports whether a location has content behind it.
type ContentChecker interface {
	Exists(ctx context.Context, location string) (bool, error)
}

// ValidationReport lists entries whose content is missing.
type ValidationReport struct {
	Checked int
	Missing []Entry
}

// Validate checks every entry's location.
func Validate(ctx context.Context, entries []Entry, checker ContentChecker) (ValidationReport, error) {
	var report ValidationReport
	for _, e := range entries {
		ok, err := checker.Exists(ctx, e.Location)
		if err != nil {
			return report, errors.Wrapf(err, "failed to check song %s", e.ID)
		}
		report.Checked++
		if !ok {
			zlog.Debug().Msgf("library: missing content for %s at %s", e.ID, e.Location)
			report.Missing = append(report.Missing, e)
		}
	}
	return report, nil
}
