package service

import (
	"time"

	"github.com/rs/zerolog"

	"keyvisor/internal/event"
)

// Config configures a Service.
type Config struct {
	// Bus is shared by every component. A new bus is created when nil.
	Bus *event.Bus

	// CounterInterval is the tick interval of counters that do not set one.
	CounterInterval time.Duration
	// CounterLimit is applied to new counters that do not set a limit.
	// Zero means unbounded.
	CounterLimit int

	// UploadEndpoint is the base URL uploads are PUT to. Uploads are
	// rejected when empty.
	UploadEndpoint string
	// UploadMaxAttempts bounds retries per upload.
	UploadMaxAttempts int
	// UploadBackoff is the initial delay between attempts.
	UploadBackoff time.Duration
	// UploadTimeout bounds each HTTP attempt. Zero disables the timeout.
	UploadTimeout time.Duration

	// SpoolDir, when set, is watched for files to upload.
	SpoolDir string
	// StateFile, when set, persists counters across restarts.
	StateFile string

	Logger zerolog.Logger
}
