package addon

import (
	"context"
	"errors"
	"fmt"

	"github.com/Louieza23/Letterboxio/pkg/letterboxd"
	"github.com/Louieza23/Letterboxio/pkg/queue"
	"github.com/Louieza23/Letterboxio/pkg/types"
)

// SubmitRating is the fire-and-forget rating command. It returns whether the
// request was accepted; the outcome of the queued job is only logged.
func (s *Service) SubmitRating(externalID string, stars float64) bool {
	if _, ok := letterboxd.RatingValue(stars); !ok {
		s.logger.Warnf("rejected rating %v for %s: %v", stars, externalID, types.ErrInvalidRating)
		return false
	}
	return s.submit(externalID, types.ActionRate, func(ctx context.Context, slug string) types.ActionResult {
		return s.Rate(ctx, slug, stars)
	})
}

// SubmitWatchlist is the fire-and-forget watchlist command.
func (s *Service) SubmitWatchlist(externalID string, present bool) bool {
	return s.submit(externalID, types.WatchlistAction(present), func(ctx context.Context, slug string) types.ActionResult {
		return s.SetWatchlistMembership(ctx, slug, present)
	})
}

func (s *Service) submit(externalID string, kind types.ActionKind, act func(context.Context, string) types.ActionResult) bool {
	if !s.sessionEnabled() {
		s.logger.Warnf("rejected %s %s: %v", kind, externalID, types.ErrNoSession)
		return false
	}
	// " tt0816692" and "tt0816692" are the same gesture.
	dedupID := externalID
	if normalized, ok := letterboxd.NormalizeExternalID(externalID); ok {
		dedupID = normalized
	}
	if !s.dedup.ShouldAccept(dedupID, kind) {
		s.logger.Infof("dropped duplicate %s %s", kind, externalID)
		return false
	}

	id, err := s.queue.Enqueue(queue.Job{
		Kind:   kind,
		Target: externalID,
		Execute: func(ctx context.Context) error {
			slug, err := s.Resolve(ctx, externalID)
			if errors.Is(err, types.ErrNotFound) {
				s.logger.Warnf("skipping %s: %s has no film on the site", kind, externalID)
				return nil
			}
			if err != nil {
				return err
			}

			result := act(ctx, slug)
			if !result.Success {
				return fmt.Errorf("%s %s: %w", kind, slug, result.Err)
			}
			return nil
		},
	})
	if err != nil {
		s.logger.Errorf("could not queue %s %s: %v", kind, externalID, err)
		return false
	}

	s.logger.Debugf("accepted %s %s as job %s", kind, externalID, id)
	return true
}
