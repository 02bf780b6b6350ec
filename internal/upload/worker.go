package upload

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"keyvisor/internal/event"
	"keyvisor/internal/supervisor"
)

// Defaults applied when corresponding UploaderConfig fields are unset.
const (
	defaultMaxAttempts   = 3
	defaultBackoff       = 500 * time.Millisecond
	defaultProgressBytes = 256 << 10
)

// ErrNoEndpoint is returned when an upload is started without an endpoint.
var ErrNoEndpoint = errors.New("upload endpoint not configured")

// UploaderConfig configures the upload worker.
type UploaderConfig struct {
	// Endpoint is the base URL files are PUT to as <Endpoint>/<name>.
	Endpoint string
	// Client performs the requests; http.DefaultClient when nil.
	Client *http.Client
	// MaxAttempts bounds retries per upload.
	MaxAttempts int
	// Backoff is the delay before the second attempt; it doubles each retry.
	Backoff time.Duration
	// ProgressBytes is the minimum number of bytes between progress events.
	ProgressBytes int64
	Logger        zerolog.Logger
}

// Uploader streams files to an HTTP endpoint.
type Uploader struct {
	endpoint      string
	client        *http.Client
	maxAttempts   int
	backoff       time.Duration
	progressBytes int64
	log           zerolog.Logger
}

// NewUploader constructs an Uploader from cfg, applying defaults.
func NewUploader(cfg UploaderConfig) *Uploader {
	u := &Uploader{
		endpoint:      strings.TrimRight(cfg.Endpoint, "/"),
		client:        cfg.Client,
		maxAttempts:   cfg.MaxAttempts,
		backoff:       cfg.Backoff,
		progressBytes: cfg.ProgressBytes,
		log:           cfg.Logger.With().Str("component", "uploader").Logger(),
	}
	if u.client == nil {
		u.client = http.DefaultClient
	}
	if u.maxAttempts <= 0 {
		u.maxAttempts = defaultMaxAttempts
	}
	if u.backoff <= 0 {
		u.backoff = defaultBackoff
	}
	if u.progressBytes <= 0 {
		u.progressBytes = defaultProgressBytes
	}
	return u
}

// Worker returns the supervisor worker that uploads one file per key.
// Removing the key aborts the in-flight request.
func (u *Uploader) Worker() supervisor.Worker[State] {
	return func(_ supervisor.Bus, view *supervisor.View[State]) (supervisor.Task, error) {
		if u.endpoint == "" {
			return nil, ErrNoEndpoint
		}
		st := view.Current()
		if st.Finished() {
			// Restored from a previous run; nothing left to do.
			return func(context.Context, supervisor.Emit) error { return nil }, nil
		}
		if st.Path == "" {
			return nil, fmt.Errorf("upload %s: empty path", st.ID)
		}
		return func(ctx context.Context, emit supervisor.Emit) error {
			return u.run(ctx, st, emit)
		}, nil
	}
}

func (u *Uploader) run(ctx context.Context, st State, emit supervisor.Emit) error {
	log := u.log.With().Str("upload", st.ID).Str("path", st.Path).Logger()
	delay := u.backoff
	var lastErr error
	for attempt := 1; attempt <= u.maxAttempts; attempt++ {
		location, err := u.put(ctx, st, attempt, emit)
		if err == nil {
			log.Info().Int("attempt", attempt).Str("location", location).Msg("upload completed")
			emit(Completed(st.ID, location))
			return nil
		}
		if ctx.Err() != nil {
			log.Debug().Msg("upload aborted")
			return nil
		}
		lastErr = err
		final := attempt == u.maxAttempts || isPermanent(err)
		log.Warn().Err(err).Int("attempt", attempt).Bool("final", final).Msg("upload attempt failed")
		if !emit(Failed(st.ID, err, final)) {
			return nil
		}
		if final {
			break
		}
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(delay):
		}
		delay *= 2
	}
	return reportedError{err: lastErr}
}

// put performs one attempt and returns the stored location.
func (u *Uploader) put(ctx context.Context, st State, attempt int, emit supervisor.Emit) (string, error) {
	f, err := os.Open(st.Path)
	if err != nil {
		return "", permanentError{err: fmt.Errorf("open: %w", err)}
	}
	defer f.Close()
	fi, err := f.Stat()
	if err != nil {
		return "", permanentError{err: fmt.Errorf("stat: %w", err)}
	}
	if fi.IsDir() {
		return "", permanentError{err: fmt.Errorf("%s is a directory", st.Path)}
	}
	if !emit(Started(st.ID, attempt, fi.Size())) {
		return "", context.Canceled
	}

	target := u.endpoint + "/" + url.PathEscape(st.Name)
	body := &progressReader{r: f, step: u.progressBytes, report: func(n int64) { emit(Progress(st.ID, n)) }}
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, target, body)
	if err != nil {
		return "", permanentError{err: err}
	}
	req.ContentLength = fi.Size()
	req.Header.Set("Content-Type", "application/octet-stream")
	req.Header.Set("X-Upload-ID", st.ID)

	resp, err := u.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		if loc := resp.Header.Get("Location"); loc != "" {
			return loc, nil
		}
		return target, nil
	case resp.StatusCode >= 400 && resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests:
		return "", permanentError{err: fmt.Errorf("unexpected status %d", resp.StatusCode)}
	default:
		return "", fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
}

// permanentError marks failures that retrying cannot fix.
type permanentError struct{ err error }

func (e permanentError) Error() string { return e.err.Error() }
func (e permanentError) Unwrap() error { return e.err }

func isPermanent(err error) bool {
	var pe permanentError
	return errors.As(err, &pe)
}

// reportedError wraps a failure the worker already published as a final
// upload.failed event.
type reportedError struct{ err error }

func (e reportedError) Error() string { return e.err.Error() }
func (e reportedError) Unwrap() error { return e.err }

// OnFailure is the supervisor failure hook for uploads. It marks the upload
// failed unless the worker already did so, which leaves construction errors
// and panics.
func OnFailure(key string, err error) event.Event {
	var re reportedError
	if errors.As(err, &re) {
		return nil
	}
	return Failed(key, err, true)
}

// progressReader reports the running byte count every step bytes and at EOF.
type progressReader struct {
	r        io.Reader
	step     int64
	report   func(int64)
	sent     atomic.Int64
	reported int64
}

func (p *progressReader) Read(b []byte) (int, error) {
	n, err := p.r.Read(b)
	total := p.sent.Add(int64(n))
	if total-p.reported >= p.step || (errors.Is(err, io.EOF) && total > p.reported) {
		p.reported = total
		p.report(total)
	}
	return n, err
}
