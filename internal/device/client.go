// Package device is the HTTP/XML adapter for the multi-function device's
// walk-up control protocol. Each verb is a single request/response with no
// retries; the workflow layer decides what to do about failures.
package device

import (
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/sydlexius/walkup/internal/scan"
	"github.com/sydlexius/walkup/internal/version"
)

// Resource paths on the device.
const (
	pathDestinations = "/WalkupScanToComp/WalkupScanToCompDestinations"
	pathEventTable   = "/EventMgmt/EventTable"
	pathScanJobs     = "/Scan/Jobs"
	pathScanStatus   = "/Scan/Status"
	pathScanCaps     = "/Scan/ScanCaps"
)

const maxBodySize = 1 << 20 // XML resources; page binaries stream to disk

// Client talks to one device. Requests are rate-limited so the three
// interleaved polling loops cannot hammer the device.
type Client struct {
	http    *http.Client
	limiter *rate.Limiter
	logger  *slog.Logger
	baseURL string
}

// New creates a client for the device at host (name or address).
func New(host string, requestsPerSecond int, logger *slog.Logger) *Client {
	return NewWithBaseURL("http://"+host, requestsPerSecond, logger)
}

// NewWithBaseURL creates a client with a full base URL (for testing).
func NewWithBaseURL(baseURL string, requestsPerSecond int, logger *slog.Logger) *Client {
	if requestsPerSecond <= 0 {
		requestsPerSecond = 10
	}
	return &Client{
		http:    &http.Client{Timeout: 30 * time.Second},
		limiter: rate.NewLimiter(rate.Limit(requestsPerSecond), 1),
		logger:  logger.With(slog.String("component", "device")),
		baseURL: strings.TrimRight(baseURL, "/"),
	}
}

// ErrDeviceUnavailable indicates the device did not give a usable response.
type ErrDeviceUnavailable struct {
	Op    string
	Cause error
}

func (e *ErrDeviceUnavailable) Error() string {
	return fmt.Sprintf("device %s: %v", e.Op, e.Cause)
}

func (e *ErrDeviceUnavailable) Unwrap() error { return e.Cause }

// ErrNotFound indicates the device no longer knows the resource, e.g. a
// walk-up destination dropped after a device reboot.
type ErrNotFound struct {
	Ref string
}

func (e *ErrNotFound) Error() string {
	return fmt.Sprintf("device resource not found: %s", e.Ref)
}

// RegisterDestination registers this host as a walk-up scan destination
// and returns the destination resource reference from the Location header.
func (c *Client) RegisterDestination(ctx context.Context, hostname string) (string, error) {
	body, err := xml.Marshal(registrationDoc{
		Hostname: hostname,
		Name:     hostname,
		LinkType: "Network",
	})
	if err != nil {
		return "", fmt.Errorf("encoding registration: %w", err)
	}

	resp, err := c.do(ctx, http.MethodPost, pathDestinations, body, nil)
	if err != nil {
		return "", err
	}
	defer drain(resp)

	if resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusOK {
		return "", &ErrDeviceUnavailable{Op: "register destination", Cause: fmt.Errorf("HTTP %d", resp.StatusCode)}
	}
	loc := resp.Header.Get("Location")
	if loc == "" {
		return "", &ErrDeviceUnavailable{Op: "register destination", Cause: fmt.Errorf("missing Location header")}
	}
	c.logger.Info("walk-up destination registered", slog.String("ref", loc))
	return loc, nil
}

// GetDestination fetches the user's panel selection for a destination.
func (c *Client) GetDestination(ctx context.Context, destRef string) (*scan.Destination, error) {
	var doc destinationDoc
	if err := c.getXML(ctx, destRef, &doc); err != nil {
		return nil, err
	}
	dest := &scan.Destination{}
	if doc.Settings != nil {
		dest.Shortcut = scan.Shortcut(doc.Settings.Shortcut)
		dest.PlexMode = scan.PlexMode(doc.Settings.ScanPlexMode)
	}
	return dest, nil
}

// GetEvents long-polls the event table. etag resumes from the last
// observed table state; an empty etag returns the current state. A 304
// response (nothing new within the device's long-poll window) yields an
// empty event list with the same etag.
func (c *Client) GetEvents(ctx context.Context, etag string, timeout int) (scan.EventTable, error) {
	path := pathEventTable
	if timeout > 0 {
		path += "?timeout=" + strconv.Itoa(timeout)
	}

	headers := http.Header{}
	if etag != "" {
		headers.Set("If-None-Match", etag)
	}

	resp, err := c.do(ctx, http.MethodGet, path, nil, headers)
	if err != nil {
		return scan.EventTable{}, err
	}
	defer drain(resp)

	if resp.StatusCode == http.StatusNotModified {
		return scan.EventTable{Etag: etag}, nil
	}
	if resp.StatusCode != http.StatusOK {
		return scan.EventTable{}, &ErrDeviceUnavailable{Op: "get events", Cause: fmt.Errorf("HTTP %d", resp.StatusCode)}
	}

	var doc eventTableDoc
	if err := decodeXML(resp, &doc); err != nil {
		return scan.EventTable{}, err
	}

	table := scan.EventTable{Etag: resp.Header.Get("ETag")}
	if table.Etag == "" {
		table.Etag = etag
	}
	for _, ev := range doc.Events {
		table.Events = append(table.Events, ev.toEvent())
	}
	return table, nil
}

// GetCompletionEvent fetches the walk-up completion event kind.
func (c *Client) GetCompletionEvent(ctx context.Context, compEventRef string) (scan.CompletionKind, error) {
	var doc compEventDoc
	if err := c.getXML(ctx, compEventRef, &doc); err != nil {
		return "", err
	}
	return scan.CompletionKind(doc.EventType), nil
}

// SubmitJob posts a scan job and returns its resource reference.
func (c *Client) SubmitJob(ctx context.Context, settings scan.ScanJobSettings) (string, error) {
	body, err := xml.Marshal(newJobRequestDoc(settings))
	if err != nil {
		return "", fmt.Errorf("encoding job request: %w", err)
	}

	resp, err := c.do(ctx, http.MethodPost, pathScanJobs, body, nil)
	if err != nil {
		return "", err
	}
	defer drain(resp)

	if resp.StatusCode != http.StatusCreated {
		return "", &ErrDeviceUnavailable{Op: "submit job", Cause: fmt.Errorf("HTTP %d", resp.StatusCode)}
	}
	loc := resp.Header.Get("Location")
	if loc == "" {
		return "", &ErrDeviceUnavailable{Op: "submit job", Cause: fmt.Errorf("missing Location header")}
	}
	return loc, nil
}

// GetJob fetches one immutable snapshot of a scan job.
func (c *Client) GetJob(ctx context.Context, jobRef string) (*scan.Job, error) {
	var doc jobDoc
	if err := c.getXML(ctx, jobRef, &doc); err != nil {
		return nil, err
	}
	return doc.toJob(), nil
}

// DownloadPage streams the ready page binary to destPath and returns the
// written path.
func (c *Client) DownloadPage(ctx context.Context, binaryRef, destPath string) (string, error) {
	resp, err := c.do(ctx, http.MethodGet, binaryRef, nil, nil)
	if err != nil {
		return "", err
	}
	defer drain(resp)

	if resp.StatusCode == http.StatusNotFound {
		return "", &ErrNotFound{Ref: binaryRef}
	}
	if resp.StatusCode != http.StatusOK {
		return "", &ErrDeviceUnavailable{Op: "download page", Cause: fmt.Errorf("HTTP %d", resp.StatusCode)}
	}

	f, err := os.Create(destPath)
	if err != nil {
		return "", fmt.Errorf("creating page file: %w", err)
	}
	if _, err := io.Copy(f, resp.Body); err != nil {
		f.Close()           //nolint:errcheck
		os.Remove(destPath) //nolint:errcheck
		return "", fmt.Errorf("writing page file: %w", err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("closing page file: %w", err)
	}

	c.logger.Debug("page binary downloaded",
		slog.String("ref", binaryRef), slog.String("path", destPath))
	return destPath, nil
}

// GetScanStatus fetches the scanner state and ADF paper sensor state.
func (c *Client) GetScanStatus(ctx context.Context) (*scan.ScanStatus, error) {
	var doc scanStatusDoc
	if err := c.getXML(ctx, pathScanStatus, &doc); err != nil {
		return nil, err
	}
	return &scan.ScanStatus{
		ScannerState: doc.ScannerState,
		AdfState:     scan.AdfState(doc.AdfState),
	}, nil
}

// GetCapabilities fetches the device's scan capability sheet.
func (c *Client) GetCapabilities(ctx context.Context) (*scan.DeviceCapabilities, error) {
	var doc scanCapsDoc
	if err := c.getXML(ctx, pathScanCaps, &doc); err != nil {
		return nil, err
	}
	return doc.toCapabilities(), nil
}

// getXML fetches a resource and decodes the XML body into out.
func (c *Client) getXML(ctx context.Context, path string, out any) error {
	resp, err := c.do(ctx, http.MethodGet, path, nil, nil)
	if err != nil {
		return err
	}
	defer drain(resp)

	if resp.StatusCode == http.StatusNotFound {
		return &ErrNotFound{Ref: path}
	}
	if resp.StatusCode != http.StatusOK {
		return &ErrDeviceUnavailable{Op: "get " + path, Cause: fmt.Errorf("HTTP %d", resp.StatusCode)}
	}
	return decodeXML(resp, out)
}

// do executes one rate-limited request. path may be absolute (references
// returned by the device) or device-relative.
func (c *Client) do(ctx context.Context, method, path string, body []byte, headers http.Header) (*http.Response, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	url := path
	if strings.HasPrefix(path, "/") {
		url = c.baseURL + path
	}

	var rd io.Reader
	if body != nil {
		rd = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, rd)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	for k, vs := range headers {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	if body != nil {
		req.Header.Set("Content-Type", "text/xml")
	}
	req.Header.Set("User-Agent", userAgent())

	c.logger.Debug("device request", slog.String("method", method), slog.String("url", url))

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &ErrDeviceUnavailable{Op: method + " " + path, Cause: err}
	}
	return resp, nil
}

func decodeXML(resp *http.Response, out any) error {
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return fmt.Errorf("reading response: %w", err)
	}
	if err := xml.Unmarshal(data, out); err != nil {
		return fmt.Errorf("parsing response: %w", err)
	}
	return nil
}

func drain(resp *http.Response) {
	_, _ = io.Copy(io.Discard, resp.Body)
	resp.Body.Close() //nolint:errcheck
}

func userAgent() string {
	return fmt.Sprintf("Walkup/%s (https://github.com/sydlexius/walkup)", version.Version)
}
