package scan

import (
	"context"
	"fmt"
	"log/slog"
	"os"
)

// mockDevice implements the DeviceClient interface for testing.
type mockDevice struct {
	submitFn   func(ctx context.Context, settings ScanJobSettings) (string, error)
	getJobFn   func(ctx context.Context, jobRef string) (*Job, error)
	eventsFn   func(ctx context.Context, etag string, timeout int) (EventTable, error)
	compFn     func(ctx context.Context, compEventRef string) (CompletionKind, error)
	destFn     func(ctx context.Context, destRef string) (*Destination, error)
	downloadFn func(ctx context.Context, binaryRef, destPath string) (string, error)
	statusFn   func(ctx context.Context) (*ScanStatus, error)
}

func (m *mockDevice) SubmitJob(ctx context.Context, settings ScanJobSettings) (string, error) {
	if m.submitFn != nil {
		return m.submitFn(ctx, settings)
	}
	return "/Scan/Jobs/1", nil
}

func (m *mockDevice) GetJob(ctx context.Context, jobRef string) (*Job, error) {
	if m.getJobFn != nil {
		return m.getJobFn(ctx, jobRef)
	}
	return nil, fmt.Errorf("mock: no getJobFn")
}

func (m *mockDevice) GetEvents(ctx context.Context, etag string, timeout int) (EventTable, error) {
	if m.eventsFn != nil {
		return m.eventsFn(ctx, etag, timeout)
	}
	return EventTable{}, fmt.Errorf("mock: no eventsFn")
}

func (m *mockDevice) GetCompletionEvent(ctx context.Context, compEventRef string) (CompletionKind, error) {
	if m.compFn != nil {
		return m.compFn(ctx, compEventRef)
	}
	return "", fmt.Errorf("mock: no compFn")
}

func (m *mockDevice) GetDestination(ctx context.Context, destRef string) (*Destination, error) {
	if m.destFn != nil {
		return m.destFn(ctx, destRef)
	}
	return nil, fmt.Errorf("mock: no destFn")
}

func (m *mockDevice) DownloadPage(ctx context.Context, binaryRef, destPath string) (string, error) {
	if m.downloadFn != nil {
		return m.downloadFn(ctx, binaryRef, destPath)
	}
	return destPath, nil
}

func (m *mockDevice) GetScanStatus(ctx context.Context) (*ScanStatus, error) {
	if m.statusFn != nil {
		return m.statusFn(ctx)
	}
	return &ScanStatus{ScannerState: "Idle", AdfState: AdfEmpty}, nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

// jobScript returns a getJobFn serving the given snapshots in order,
// repeating the last one once exhausted.
func jobScript(jobs ...*Job) func(context.Context, string) (*Job, error) {
	i := 0
	return func(context.Context, string) (*Job, error) {
		j := jobs[min(i, len(jobs)-1)]
		i++
		return j, nil
	}
}
