package scan

import (
	"context"
	"log/slog"
)

// continueScan implements the multi-page flatbed loop. After a completed
// job it is attempted only when the input source is the flatbed (the
// feeder handles its own multi-page run), the originating event carried
// both a destination and a completion-event reference, and the device
// advertises multi-item flatbed scanning. Each iteration resumes event
// polling from the prior event's freshness token so the same event is not
// observed twice.
//
// Returns the freshness token to resume the outer event loop from.
func (s *Session) continueScan(ctx context.Context, destRef string, first Event, settings ScanJobSettings, folder string, scanCount int, pages *PageList) (string, error) {
	if settings.Source != SourcePlaten {
		return first.Etag, nil
	}
	if first.CompletionRef == "" || first.DestinationRef == "" {
		return first.Etag, nil
	}
	if !s.caps.MultiItemPlaten {
		return first.Etag, nil
	}

	ev := first
	for {
		next, err := s.listener.WaitForScanEvent(ctx, destRef, ev.Etag)
		if err != nil {
			return ev.Etag, err
		}
		if next.CompletionRef == "" {
			s.logger.Debug("continuation event without completion reference, stopping")
			return next.Etag, nil
		}

		more, err := s.listener.WaitScanNewPageRequest(ctx, next.CompletionRef)
		if err != nil {
			return next.Etag, err
		}
		if !more {
			s.logger.Info("no further pages requested", slog.Int("pages", pages.Len()))
			return next.Etag, nil
		}

		state, err := s.driver.ExecuteScanJob(ctx, settings, folder, scanCount, pages, s.opts.FilePattern)
		if err != nil {
			return next.Etag, err
		}
		if state != JobCompleted {
			// Canceled mid-loop: keep what we have, no further waiting.
			s.logger.Info("continuation job ended without completing",
				slog.String("state", string(state)))
			return next.Etag, nil
		}

		ev = next
	}
}
