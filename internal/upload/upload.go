// Package upload implements the file-upload entity: its events, its reducer,
// the worker that streams a file to an HTTP endpoint and the spool watcher
// that turns an inbox directory into upload requests.
package upload

import (
	"path/filepath"

	"keyvisor/internal/event"
	"keyvisor/internal/supervisor"
)

// Event types handled by Reduce.
const (
	TypeRequest   = "upload.request"
	TypeCancel    = "upload.cancel"
	TypeStarted   = "upload.started"
	TypeProgress  = "upload.progress"
	TypeCompleted = "upload.completed"
	TypeFailed    = "upload.failed"
)

// Types lists every event type the upload reducer consumes.
func Types() []string {
	return []string{TypeRequest, TypeCancel, TypeStarted, TypeProgress, TypeCompleted, TypeFailed}
}

// Status is the progress of one upload.
type Status string

const (
	StatusPending   Status = "pending"
	StatusUploading Status = "uploading"
	StatusDone      Status = "done"
	StatusFailed    Status = "failed"
)

// State is the value of one upload.
type State struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Path     string `json:"path"`
	Size     int64  `json:"size"`
	Sent     int64  `json:"sent"`
	Status   Status `json:"status"`
	Attempt  int    `json:"attempt"`
	Error    string `json:"error,omitempty"`
	Location string `json:"location,omitempty"`
}

// Finished reports whether the upload reached a terminal status.
func (s State) Finished() bool { return s.Status == StatusDone || s.Status == StatusFailed }

// RequestPayload describes the file to upload.
type RequestPayload struct {
	Path string `json:"path"`
	Name string `json:"name,omitempty"`
}

// StartedPayload reports a new attempt.
type StartedPayload struct {
	Attempt int   `json:"attempt"`
	Size    int64 `json:"size"`
}

// ProgressPayload reports bytes sent in the current attempt.
type ProgressPayload struct {
	Sent int64 `json:"sent"`
}

// CompletedPayload reports where the file was stored.
type CompletedPayload struct {
	Location string `json:"location,omitempty"`
}

// FailedPayload reports a failed attempt. Final is set when no retry follows.
type FailedPayload struct {
	Error string `json:"error"`
	Final bool   `json:"final"`
}

// Request asks for path to be uploaded under id.
func Request(id, path, name string) event.Message {
	if name == "" {
		name = filepath.Base(path)
	}
	return event.New(TypeRequest, id, RequestPayload{Path: path, Name: name})
}

// Cancel removes an upload, aborting it if it is in flight.
func Cancel(id string) event.Message { return event.New(TypeCancel, id, nil) }

// Started reports the start of an attempt.
func Started(id string, attempt int, size int64) event.Message {
	return event.New(TypeStarted, id, StartedPayload{Attempt: attempt, Size: size})
}

// Progress reports bytes sent.
func Progress(id string, sent int64) event.Message {
	return event.New(TypeProgress, id, ProgressPayload{Sent: sent})
}

// Completed reports a successful upload.
func Completed(id, location string) event.Message {
	return event.New(TypeCompleted, id, CompletedPayload{Location: location})
}

// Failed reports a failed attempt.
func Failed(id string, err error, final bool) event.Message {
	return event.New(TypeFailed, id, FailedPayload{Error: err.Error(), Final: final})
}

// Reduce folds upload events into the collection.
func Reduce(prev supervisor.Snapshot[State], e event.Event) supervisor.Snapshot[State] {
	id := e.EventKey()
	if id == "" {
		return prev
	}
	cur, exists := prev[id]

	switch e.EventType() {
	case TypeRequest:
		if exists {
			return prev
		}
		p, ok := event.Payload[RequestPayload](e)
		if !ok || p.Path == "" {
			return prev
		}
		name := p.Name
		if name == "" {
			name = filepath.Base(p.Path)
		}
		return with(prev, State{ID: id, Name: name, Path: p.Path, Status: StatusPending})
	case TypeCancel:
		if !exists {
			return prev
		}
		next := prev.Clone()
		delete(next, id)
		return next
	}

	if !exists || cur.Finished() {
		return prev
	}
	switch e.EventType() {
	case TypeStarted:
		p, _ := event.Payload[StartedPayload](e)
		cur.Status = StatusUploading
		cur.Attempt = p.Attempt
		cur.Size = p.Size
		cur.Sent = 0
	case TypeProgress:
		p, _ := event.Payload[ProgressPayload](e)
		cur.Sent = p.Sent
	case TypeCompleted:
		p, _ := event.Payload[CompletedPayload](e)
		cur.Status = StatusDone
		cur.Sent = cur.Size
		cur.Location = p.Location
		cur.Error = ""
	case TypeFailed:
		p, _ := event.Payload[FailedPayload](e)
		cur.Error = p.Error
		if p.Final {
			cur.Status = StatusFailed
		}
	default:
		return prev
	}
	if cur == prev[id] {
		return prev
	}
	return with(prev, cur)
}

func with(prev supervisor.Snapshot[State], s State) supervisor.Snapshot[State] {
	next := prev.Clone()
	next[s.ID] = s
	return next
}
