package scan

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// adfSettleInterval is the re-poll cadence inside the debounce window.
const adfSettleInterval = 500 * time.Millisecond

// WaitAdfLoaded blocks until the document feeder reports paper loaded,
// then debounces for startScanDelay by re-polling the sensor. If paper is
// unloaded at any point during the window, the whole wait restarts: users
// feed pages one at a time and the sensor fires early. This is purely a
// precondition gate for the job driver and carries no job state.
func WaitAdfLoaded(ctx context.Context, client DeviceClient, logger *slog.Logger, pollInterval, startScanDelay time.Duration) error {
	for {
		for {
			status, err := client.GetScanStatus(ctx)
			if err != nil {
				return fmt.Errorf("polling scan status: %w", err)
			}
			if status.AdfState == AdfLoaded {
				break
			}
			if err := sleep(ctx, pollInterval); err != nil {
				return err
			}
		}

		logger.Debug("feeder reports paper loaded, settling",
			slog.Duration("delay", startScanDelay))

		settle := adfSettleInterval
		if startScanDelay < settle {
			settle = startScanDelay
		}
		deadline := time.Now().Add(startScanDelay)
		settled := true
		for time.Now().Before(deadline) {
			if err := sleep(ctx, settle); err != nil {
				return err
			}
			status, err := client.GetScanStatus(ctx)
			if err != nil {
				return fmt.Errorf("polling scan status: %w", err)
			}
			if status.AdfState != AdfLoaded {
				logger.Debug("paper removed during settle window, restarting wait")
				settled = false
				break
			}
		}
		if settled {
			return nil
		}
	}
}
