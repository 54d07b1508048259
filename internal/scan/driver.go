package scan

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// RepairFunc fixes a downloaded page image whose declared height does not
// match its data, returning the corrected height and whether a repair was
// applied. Only feeder pages go through it; flatbed pages are assumed
// correctly sized.
type RepairFunc func(path string) (height int, repaired bool)

// Driver owns the lifecycle of one scan job: submission, state polling,
// per-page download, and termination classification.
type Driver struct {
	client       DeviceClient
	repair       RepairFunc
	logger       *slog.Logger
	pollInterval time.Duration
	retryDelay   time.Duration
}

// NewDriver creates a job driver. repair may be nil to skip page repair.
func NewDriver(client DeviceClient, repair RepairFunc, logger *slog.Logger) *Driver {
	return &Driver{
		client:       client,
		repair:       repair,
		logger:       logger.With(slog.String("component", "driver")),
		pollInterval: 300 * time.Millisecond,
		retryDelay:   200 * time.Millisecond,
	}
}

// ExecuteScanJob submits one job and drives it until the device reports
// Completed or Canceled. Ready pages are downloaded into folder and
// appended to pages with monotonically increasing page numbers. The
// returned state is the job's terminal classification; transport failures
// propagate as errors.
func (d *Driver) ExecuteScanJob(ctx context.Context, settings ScanJobSettings, folder string, scanCount int, pages *PageList, filePattern string) (JobState, error) {
	jobRef, err := d.client.SubmitJob(ctx, settings)
	if err != nil {
		return "", fmt.Errorf("submitting scan job: %w", err)
	}
	d.logger.Info("scan job submitted",
		slog.String("job", jobRef),
		slog.String("source", string(settings.Source)),
		slog.Int("resolution", settings.Resolution))

	for {
		job, err := d.waitPageReadyOrDone(ctx, jobRef)
		if err != nil {
			return "", err
		}

		switch job.State {
		case JobCompleted:
			d.logger.Info("scan job completed",
				slog.String("job", jobRef),
				slog.Int("pages", pages.Len()))
			return JobCompleted, nil

		case JobCanceled:
			// Stop immediately; pages already appended stay.
			d.logger.Info("scan job canceled by device", slog.String("job", jobRef))
			return JobCanceled, nil

		case JobProcessing:
			if job.PageState == PageReadyToUpload && job.BinaryRef != "" && job.PageNumber > 0 {
				if err := d.downloadPage(ctx, job, jobRef, settings, folder, scanCount, pages, filePattern); err != nil {
					return "", err
				}
			} else {
				// Device is between pages.
				d.logger.Debug("page not ready", slog.String("pageState", string(job.PageState)))
				if err := sleep(ctx, d.retryDelay); err != nil {
					return "", err
				}
			}

		default:
			d.logger.Warn("unhandled job state", slog.String("state", string(job.State)))
			if err := sleep(ctx, d.retryDelay); err != nil {
				return "", err
			}
		}
	}
}

// waitPageReadyOrDone polls the job every 300ms until the page is ready to
// upload or the job reaches a terminal state. Processing without a ready
// page keeps waiting; unrecognized job states are logged and waited out.
func (d *Driver) waitPageReadyOrDone(ctx context.Context, jobRef string) (*Job, error) {
	for {
		job, err := d.client.GetJob(ctx, jobRef)
		if err != nil {
			return nil, fmt.Errorf("polling job: %w", err)
		}

		if job.PageState == PageReadyToUpload || job.State == JobCompleted || job.State == JobCanceled {
			return job, nil
		}
		if job.State != JobProcessing {
			d.logger.Warn("unknown job state, still waiting", slog.String("state", string(job.State)))
		}

		if err := sleep(ctx, d.pollInterval); err != nil {
			return nil, err
		}
	}
}

// downloadPage fetches the ready page binary, repairs feeder pages whose
// JPEG header lies about the height, and appends the page unless the job
// was canceled while downloading. A page dropped on cancellation stays on
// disk; the accumulator never retracts.
func (d *Driver) downloadPage(ctx context.Context, job *Job, jobRef string, settings ScanJobSettings, folder string, scanCount int, pages *PageList, filePattern string) error {
	pageNo := pages.NextPageNumber()
	destPath := PageFilePath(folder, filePattern, scanCount, pageNo, time.Now())

	path, err := d.client.DownloadPage(ctx, job.BinaryRef, destPath)
	if err != nil {
		return fmt.Errorf("downloading page %d: %w", pageNo, err)
	}

	width, height := job.ImageWidth, job.ImageHeight
	if settings.Source == SourceAdf && d.repair != nil {
		if h, repaired := d.repair(path); repaired {
			height = h
		}
	}
	xres, yres := job.XResolution, job.YResolution
	if xres <= 0 {
		xres = DefaultResolution
	}
	if yres <= 0 {
		yres = DefaultResolution
	}

	after, err := d.client.GetJob(ctx, jobRef)
	if err != nil {
		return fmt.Errorf("refetching job after download: %w", err)
	}
	if after.State == JobCanceled {
		d.logger.Info("job canceled during download, page dropped",
			slog.Int("page", pageNo), slog.String("path", path))
		return nil
	}

	pages.Append(ScanPage{
		Path:        path,
		PageNumber:  pageNo,
		Width:       width,
		Height:      height,
		XResolution: xres,
		YResolution: yres,
	})
	d.logger.Info("page downloaded",
		slog.Int("page", pageNo),
		slog.String("path", path),
		slog.Int("width", width),
		slog.Int("height", height))
	return nil
}
