package scan

import (
	"context"
	"time"
)

// DefaultResolution is assumed when the device does not report one.
const DefaultResolution = 200

// ScanJobSettings is an immutable description of one job submission. A
// continuation page reuses the same settings unchanged.
type ScanJobSettings struct {
	Source      InputSource
	ContentType ContentType
	Resolution  int
	Width       int
	Height      int
	Duplex      bool
}

// DeviceCapabilities advertises the device's maximum scan extents per
// input source and plex mode, and whether it supports requesting multiple
// items from the flatbed without re-registering.
type DeviceCapabilities struct {
	PlatenMaxWidth      int
	PlatenMaxHeight     int
	AdfSimplexMaxWidth  int
	AdfSimplexMaxHeight int
	AdfDuplexMaxWidth   int
	AdfDuplexMaxHeight  int
	MultiItemPlaten     bool
}

// MaxExtent returns the maximum scan width and height for the given input
// source and plex mode.
func (c DeviceCapabilities) MaxExtent(source InputSource, duplex bool) (width, height int) {
	if source == SourceAdf {
		if duplex {
			return c.AdfDuplexMaxWidth, c.AdfDuplexMaxHeight
		}
		return c.AdfSimplexMaxWidth, c.AdfSimplexMaxHeight
	}
	return c.PlatenMaxWidth, c.PlatenMaxHeight
}

// EffectiveExtent clamps a requested scan dimension against the capability
// maximum. Unset (zero) or oversized requests resolve to the maximum.
func EffectiveExtent(requested, max int) int {
	if requested <= 0 || requested > max {
		return max
	}
	return requested
}

// sleep waits for d or until ctx is canceled. Every polling loop in this
// package suspends through here so shutdown cancels mid-wait.
func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
