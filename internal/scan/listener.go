package scan

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

const (
	// scanRequestAttempts bounds WaitScanRequest; the other waits are
	// unbounded because a human will eventually act at the panel.
	scanRequestAttempts = 50

	// destinationAttempts bounds WaitForDestination (clean abort, no job).
	destinationAttempts = 20
)

// Listener classifies device event-table entries and long-polls for the
// next event relevant to a registered walk-up destination.
type Listener struct {
	client          DeviceClient
	logger          *slog.Logger
	pollInterval    time.Duration
	longPollTimeout int
}

// NewListener creates an event listener for the given device client.
func NewListener(client DeviceClient, logger *slog.Logger) *Listener {
	return &Listener{
		client:          client,
		logger:          logger.With(slog.String("component", "listener")),
		pollInterval:    time.Second,
		longPollTimeout: 1200,
	}
}

// SetLongPollTimeout overrides the event-table long-poll timeout passed
// to the device as the ?timeout= query value.
func (l *Listener) SetLongPollTimeout(timeout int) {
	if timeout > 0 {
		l.longPollTimeout = timeout
	}
}

// WaitForScanEvent blocks until the event table contains a scan-type event
// tied to destRef, starting from afterEtag (or the current table state if
// empty). There is no timeout at this layer; each iteration is one
// long-poll round trip to the device and the last-seen etag becomes the
// next polling baseline.
func (l *Listener) WaitForScanEvent(ctx context.Context, destRef, afterEtag string) (Event, error) {
	etag := afterEtag
	for {
		table, err := l.client.GetEvents(ctx, etag, l.longPollTimeout)
		if err != nil {
			return Event{}, fmt.Errorf("polling event table: %w", err)
		}
		etag = table.Etag

		for _, ev := range table.Events {
			if !ev.IsScanEvent() {
				continue
			}
			if !ev.MatchesDestination(destRef) {
				continue
			}
			ev.Etag = etag
			l.logger.Debug("scan event observed",
				slog.String("destination", ev.DestinationRef),
				slog.String("etag", etag))
			return ev, nil
		}

		if err := ctx.Err(); err != nil {
			return Event{}, err
		}
	}
}

// WaitScanRequest polls the completion event resource once per second, up
// to 50 attempts, and reports whether the scan should proceed. HostSelected
// means the user is still deciding; ScanRequested and ScanNewPageRequested
// mean proceed; ScanPagesComplete means there is nothing to do. Unknown
// kinds are logged and treated as "nothing to do". Exhausting the attempt
// budget proceeds anyway rather than failing.
func (l *Listener) WaitScanRequest(ctx context.Context, compEventRef string) (bool, error) {
	for attempt := 0; attempt < scanRequestAttempts; attempt++ {
		if attempt > 0 {
			if err := sleep(ctx, l.pollInterval); err != nil {
				return false, err
			}
		}

		kind, err := l.client.GetCompletionEvent(ctx, compEventRef)
		if err != nil {
			return false, fmt.Errorf("fetching completion event: %w", err)
		}

		switch kind {
		case CompHostSelected:
			// User is still at the panel.
		case CompScanRequested, CompScanNewPageRequested:
			return true, nil
		case CompScanPagesComplete:
			return false, nil
		default:
			l.logger.Warn("unknown completion event kind", slog.String("kind", string(kind)))
			return false, nil
		}
	}

	// The panel sat in HostSelected for the whole budget. Assume the user
	// wants the scan. TODO: surface a distinct timed-out outcome so
	// callers can tell this apart from an explicit request.
	l.logger.Warn("scan request wait exhausted attempts, proceeding",
		slog.Int("attempts", scanRequestAttempts))
	return true, nil
}

// WaitScanNewPageRequest polls the completion event resource once per
// second, unbounded, and reports whether the user requested another page.
// ScanRequested means the prior request is still settling; unknown kinds
// are logged and end the wait without another page.
func (l *Listener) WaitScanNewPageRequest(ctx context.Context, compEventRef string) (bool, error) {
	for {
		kind, err := l.client.GetCompletionEvent(ctx, compEventRef)
		if err != nil {
			return false, fmt.Errorf("fetching completion event: %w", err)
		}

		switch kind {
		case CompScanNewPageRequested:
			return true, nil
		case CompScanPagesComplete:
			return false, nil
		case CompScanRequested:
			// Still reporting the request that started the current page.
		default:
			l.logger.Warn("unknown completion event kind", slog.String("kind", string(kind)))
			return false, nil
		}

		if err := sleep(ctx, l.pollInterval); err != nil {
			return false, err
		}
	}
}

// WaitForDestination polls the destination resource once per second until
// the user's panel selection (shortcut) is visible, up to 20 attempts.
// Times out with ErrDestinationTimeout so the session can abort cleanly
// before any job is submitted.
func (l *Listener) WaitForDestination(ctx context.Context, destRef string) (*Destination, error) {
	for attempt := 0; attempt < destinationAttempts; attempt++ {
		if attempt > 0 {
			if err := sleep(ctx, l.pollInterval); err != nil {
				return nil, err
			}
		}

		dest, err := l.client.GetDestination(ctx, destRef)
		if err != nil {
			return nil, fmt.Errorf("fetching destination: %w", err)
		}
		if dest != nil && dest.Shortcut != "" {
			return dest, nil
		}
	}
	return nil, ErrDestinationTimeout
}
