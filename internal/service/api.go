package service

import (
	"context"
	"time"

	"keyvisor/internal/counter"
	"keyvisor/internal/event"
	"keyvisor/internal/supervisor"
	"keyvisor/internal/upload"
	"keyvisor/pkg/types"
)

// API exposes a Service through the wire types of package types.
type API struct {
	svc     *Service
	started time.Time
}

// NewAPI wraps svc for the HTTP layer.
func NewAPI(svc *Service) *API { return &API{svc: svc, started: time.Now()} }

func (a *API) ListCounters() []types.Counter {
	cs := a.svc.ListCounters()
	out := make([]types.Counter, 0, len(cs))
	for _, c := range cs {
		out = append(out, counterDTO(c))
	}
	return out
}

func (a *API) AddCounter(req types.AddCounterRequest) (types.Counter, error) {
	if req.IntervalMS < 0 {
		return types.Counter{}, ErrInvalid("interval_ms must not be negative")
	}
	c, err := a.svc.AddCounter(AddCounterRequest{
		ID:       req.ID,
		Limit:    req.Limit,
		Interval: time.Duration(req.IntervalMS) * time.Millisecond,
	})
	if err != nil {
		return types.Counter{}, err
	}
	return counterDTO(c), nil
}

func (a *API) RemoveCounter(id string) error { return a.svc.RemoveCounter(id) }

func (a *API) ListUploads() []types.Upload {
	us := a.svc.ListUploads()
	out := make([]types.Upload, 0, len(us))
	for _, u := range us {
		out = append(out, uploadDTO(u))
	}
	return out
}

func (a *API) AddUpload(req types.AddUploadRequest) (types.Upload, error) {
	u, err := a.svc.AddUpload(req.Path, req.Name)
	if err != nil {
		return types.Upload{}, err
	}
	return uploadDTO(u), nil
}

func (a *API) RemoveUpload(id string) error { return a.svc.RemoveUpload(id) }

func (a *API) Status() types.StatusResponse {
	now := time.Now()
	resp := types.StatusResponse{
		Ready:          a.svc.Ready(),
		UptimeSeconds:  int64(now.Sub(a.started).Seconds()),
		ServerTimeUnix: now.Unix(),
	}
	for _, ks := range a.svc.Status() {
		k := types.KindStatus{Kind: ks.Kind, Workers: make([]types.WorkerStatus, 0, len(ks.Workers))}
		for _, w := range ks.Workers {
			k.Workers = append(k.Workers, workerDTO(w))
		}
		resp.Kinds = append(resp.Kinds, k)
	}
	return resp
}

func (a *API) Ready() bool { return a.svc.Ready() }

// Events streams bus events as wire events until ctx is done.
func (a *API) Events(ctx context.Context, eventTypes ...string) <-chan types.Event {
	in := a.svc.Subscribe(ctx, eventTypes...)
	out := make(chan types.Event)
	go func() {
		defer close(out)
		for e := range in {
			select {
			case out <- eventDTO(e):
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}

func counterDTO(c counter.State) types.Counter {
	return types.Counter{ID: c.ID, Count: c.Count, Limit: c.Limit, IntervalMS: c.IntervalMS}
}

func uploadDTO(u upload.State) types.Upload {
	return types.Upload{
		ID:       u.ID,
		Name:     u.Name,
		Path:     u.Path,
		Size:     u.Size,
		Sent:     u.Sent,
		Status:   string(u.Status),
		Attempt:  u.Attempt,
		Error:    u.Error,
		Location: u.Location,
	}
}

func workerDTO(w supervisor.Status) types.WorkerStatus {
	ws := types.WorkerStatus{
		Key:           w.Key,
		Incarnation:   w.Incarnation,
		State:         w.State.String(),
		StartedUnixMS: w.Started.UnixMilli(),
		Error:         w.Err,
	}
	if !w.Ended.IsZero() {
		ws.EndedUnixMS = w.Ended.UnixMilli()
	}
	return ws
}

func eventDTO(e event.Event) types.Event {
	out := types.Event{Type: e.EventType(), Key: e.EventKey(), TimeUnixMS: e.Timestamp().UnixMilli()}
	switch m := e.(type) {
	case event.Message:
		out.Data = m.Data
	case *event.Message:
		out.Data = m.Data
	}
	return out
}
