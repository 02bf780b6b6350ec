package types

// Counter is the public view of a counter entity.
type Counter struct {
	// Unique counter id.
	// example: foo
	ID string `json:"id" example:"foo"`
	// Number of ticks so far.
	// example: 3
	Count int `json:"count" example:"3"`
	// Tick count at which the worker completes; 0 means unbounded.
	// example: 10
	Limit int `json:"limit" example:"10"`
	// Tick interval in milliseconds; 0 uses the server default.
	// example: 1000
	IntervalMS int64 `json:"interval_ms" example:"1000"`
}

// AddCounterRequest is the body of POST /counters.
type AddCounterRequest struct {
	// Optional id. A random UUID is generated when omitted.
	// example: foo
	ID string `json:"id,omitempty" example:"foo"`
	// Optional limit; 0 uses the server default.
	// example: 10
	Limit int `json:"limit,omitempty" example:"10"`
	// Optional tick interval in milliseconds.
	// example: 500
	IntervalMS int64 `json:"interval_ms,omitempty" example:"500"`
}

// CountersResponse wraps GET /counters.
type CountersResponse struct {
	Counters []Counter `json:"counters"`
}

// Upload is the public view of an upload entity.
type Upload struct {
	// Unique upload id.
	// example: 9b2f7f44-4c8a-4b4e-9a39-2f4a1f0e8c11
	ID string `json:"id" example:"9b2f7f44-4c8a-4b4e-9a39-2f4a1f0e8c11"`
	// Remote file name.
	// example: report.pdf
	Name string `json:"name" example:"report.pdf"`
	// Local path being uploaded.
	// example: /var/spool/keyvisor/report.pdf
	Path string `json:"path" example:"/var/spool/keyvisor/report.pdf"`
	// File size in bytes of the current attempt.
	// example: 1048576
	Size int64 `json:"size" example:"1048576"`
	// Bytes sent in the current attempt.
	// example: 524288
	Sent int64 `json:"sent" example:"524288"`
	// One of pending, uploading, done, failed.
	// example: uploading
	Status string `json:"status" example:"uploading"`
	// Current attempt number.
	// example: 1
	Attempt int `json:"attempt" example:"1"`
	// Last error, if any.
	Error string `json:"error,omitempty"`
	// Location reported by the endpoint once done.
	Location string `json:"location,omitempty"`
}

// AddUploadRequest is the body of POST /uploads.
type AddUploadRequest struct {
	// Local path of the file to upload.
	// example: /tmp/report.pdf
	Path string `json:"path" example:"/tmp/report.pdf"`
	// Optional remote name; defaults to the file's base name.
	// example: report.pdf
	Name string `json:"name,omitempty" example:"report.pdf"`
}

// UploadsResponse wraps GET /uploads.
type UploadsResponse struct {
	Uploads []Upload `json:"uploads"`
}

// WorkerStatus describes the current incarnation of one key.
type WorkerStatus struct {
	// Entity key.
	// example: foo
	Key string `json:"key" example:"foo"`
	// Incarnation number; increases each time the key is re-added.
	// example: 1
	Incarnation uint64 `json:"incarnation" example:"1"`
	// One of running, completed, cancelled, failed.
	// example: running
	State string `json:"state" example:"running"`
	// Start time in unix milliseconds.
	// example: 1700000000000
	StartedUnixMS int64 `json:"started_unix_ms" example:"1700000000000"`
	// End time in unix milliseconds, when the incarnation has ended.
	EndedUnixMS int64 `json:"ended_unix_ms,omitempty"`
	// Failure reason.
	Error string `json:"error,omitempty"`
}

// KindStatus groups the workers of one entity kind.
type KindStatus struct {
	// example: counter
	Kind    string         `json:"kind" example:"counter"`
	Workers []WorkerStatus `json:"workers"`
}

// StatusResponse is returned by GET /status.
type StatusResponse struct {
	Kinds []KindStatus `json:"kinds"`
	// Whether the supervisors are running.
	// example: true
	Ready bool `json:"ready" example:"true"`
	// Uptime of the server in seconds.
	// example: 3600
	UptimeSeconds int64 `json:"uptime_seconds" example:"3600"`
	// Server time in unix seconds.
	// example: 1700000000
	ServerTimeUnix int64 `json:"server_time_unix" example:"1700000000"`
}

// Event is the wire form of a bus event on GET /events.
type Event struct {
	// example: counter.increment
	Type string `json:"type" example:"counter.increment"`
	// example: foo
	Key string `json:"key,omitempty" example:"foo"`
	// Event time in unix milliseconds.
	// example: 1700000000000
	TimeUnixMS int64 `json:"time_unix_ms" example:"1700000000000"`
	// Event specific payload.
	Data any `json:"data,omitempty"`
}

// ErrorResponse is a consistent JSON error payload.
type ErrorResponse struct {
	// Error message.
	// example: invalid JSON body
	Error string `json:"error" example:"invalid JSON body"`
	// HTTP status code.
	// example: 400
	Code int `json:"code" example:"400"`
}
