// Package service wires the bus, the collection stores and one supervisor per
// entity kind into the application the HTTP layer serves.
package service

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/sourcegraph/conc"

	"keyvisor/internal/common/fsutil"
	"keyvisor/internal/counter"
	"keyvisor/internal/event"
	"keyvisor/internal/store"
	"keyvisor/internal/supervisor"
	"keyvisor/internal/upload"
)

// Entity kinds served by the service.
const (
	KindCounter = "counter"
	KindUpload  = "upload"
)

// TypeWorkerFailed is published when a counter incarnation fails.
const TypeWorkerFailed = "worker.failed"

// WorkerFailure is the payload of TypeWorkerFailed.
type WorkerFailure struct {
	Kind  string `json:"kind"`
	Error string `json:"error"`
}

// KindStatus groups the worker statuses of one entity kind.
type KindStatus struct {
	Kind    string
	Workers []supervisor.Status
}

// AddCounterRequest describes a new counter. Zero fields take defaults.
type AddCounterRequest struct {
	ID       string
	Limit    int
	Interval time.Duration
}

// Service owns the counter and upload collections and their supervisors.
type Service struct {
	cfg Config
	bus *event.Bus
	log zerolog.Logger

	counters *store.Store[counter.State]
	uploads  *store.Store[upload.State]

	counterSup *supervisor.Supervisor[counter.State]
	uploadSup  *supervisor.Supervisor[upload.State]
	spool      *upload.Spool

	// mu serializes check-then-publish mutations.
	mu      sync.Mutex
	ready   atomic.Bool
	started atomic.Bool
}

// New constructs a Service, restoring counters from cfg.StateFile.
func New(cfg Config) (*Service, error) {
	if cfg.CounterLimit < 0 {
		return nil, ErrInvalid("counter limit must not be negative")
	}
	if cfg.SpoolDir != "" && cfg.UploadEndpoint == "" {
		return nil, ErrInvalid("spool dir requires an upload endpoint")
	}
	bus := cfg.Bus
	if bus == nil {
		bus = event.NewBus()
		bus.SetLogger(cfg.Logger)
	}
	if cfg.StateFile != "" {
		p, err := fsutil.Resolve(cfg.StateFile)
		if err != nil {
			return nil, err
		}
		cfg.StateFile = p
	}

	restored, err := store.LoadFile[counter.State](cfg.StateFile)
	if err != nil {
		return nil, err
	}

	s := &Service{
		cfg:      cfg,
		bus:      bus,
		log:      cfg.Logger.With().Str("component", "service").Logger(),
		counters: store.New[counter.State](counter.Reduce, restored),
		uploads:  store.New[upload.State](upload.Reduce, nil),
	}

	s.counterSup, err = supervisor.New(supervisor.Config[counter.State]{
		Kind:   KindCounter,
		Worker: counter.NewWorker(counter.WorkerConfig{Interval: cfg.CounterInterval, Logger: cfg.Logger}),
		Bus:    bus,
		Logger: cfg.Logger,
		OnFailure: func(key string, err error) event.Event {
			return event.New(TypeWorkerFailed, key, WorkerFailure{Kind: KindCounter, Error: err.Error()})
		},
	})
	if err != nil {
		return nil, err
	}

	var client *http.Client
	if cfg.UploadTimeout > 0 {
		client = &http.Client{Timeout: cfg.UploadTimeout}
	}
	uploader := upload.NewUploader(upload.UploaderConfig{
		Endpoint:    cfg.UploadEndpoint,
		Client:      client,
		MaxAttempts: cfg.UploadMaxAttempts,
		Backoff:     cfg.UploadBackoff,
		Logger:      cfg.Logger,
	})
	s.uploadSup, err = supervisor.New(supervisor.Config[upload.State]{
		Kind:   KindUpload,
		Worker: uploader.Worker(),
		Bus:    bus,
		Logger: cfg.Logger,
		// Marks the upload failed so it is not reported as pending forever.
		OnFailure: upload.OnFailure,
	})
	if err != nil {
		return nil, err
	}

	if cfg.SpoolDir != "" {
		s.spool, err = upload.NewSpool(cfg.SpoolDir, bus, cfg.Logger)
		if err != nil {
			return nil, err
		}
	}

	s.counters.Attach(bus, counter.Types()...)
	s.uploads.Attach(bus, upload.Types()...)
	return s, nil
}

// Bus returns the shared event bus.
func (s *Service) Bus() *event.Bus { return s.bus }

// Ready reports whether Run has started the supervisors.
func (s *Service) Ready() bool { return s.ready.Load() }

// Run starts the supervisors, their membership notifiers and the spool, and
// blocks until ctx is done. Counters are saved to the state file on return.
func (s *Service) Run(ctx context.Context) error {
	if !s.started.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	defer s.counters.Detach()
	defer s.uploads.Detach()

	var (
		wg      conc.WaitGroup
		errMu   sync.Mutex
		runErrs []error
	)
	record := func(name string, err error) {
		if err == nil || errors.Is(err, context.Canceled) {
			return
		}
		s.log.Error().Err(err).Str("part", name).Msg("component stopped")
		errMu.Lock()
		runErrs = append(runErrs, fmt.Errorf("%s: %w", name, err))
		errMu.Unlock()
	}

	wg.Go(func() { record("counter supervisor", s.counterSup.Run(ctx, s.counters.Watch(ctx))) })
	wg.Go(func() { s.forward(s.counterSup.Events()) })
	wg.Go(func() { record("upload supervisor", s.uploadSup.Run(ctx, s.uploads.Watch(ctx))) })
	wg.Go(func() { s.forward(s.uploadSup.Events()) })

	counterNotes := &supervisor.Notifier[counter.State]{Kind: KindCounter}
	uploadNotes := &supervisor.Notifier[upload.State]{Kind: KindUpload}
	wg.Go(func() { record("counter notifier", counterNotes.Run(ctx, s.counters.Watch(ctx), s.bus.Publish)) })
	wg.Go(func() { record("upload notifier", uploadNotes.Run(ctx, s.uploads.Watch(ctx), s.bus.Publish)) })

	if s.spool != nil {
		wg.Go(func() { record("spool", s.spool.Run(ctx)) })
	}

	s.ready.Store(true)
	s.log.Info().
		Int("counters", s.counters.Len()).
		Str("spool", s.cfg.SpoolDir).
		Msg("service running")

	<-ctx.Done()
	s.ready.Store(false)
	wg.Wait()

	if err := s.counters.SaveFile(s.cfg.StateFile); err != nil {
		record("state file", err)
	} else if s.cfg.StateFile != "" {
		s.log.Info().Str("path", s.cfg.StateFile).Int("counters", s.counters.Len()).Msg("state saved")
	}
	return errors.Join(runErrs...)
}

// forward publishes a supervisor's merged output on the bus until it closes.
func (s *Service) forward(events <-chan event.Event) {
	for e := range events {
		s.bus.Publish(e)
	}
}

// Subscribe streams bus events of the given types (all when empty) until ctx
// is done.
func (s *Service) Subscribe(ctx context.Context, types ...string) <-chan event.Event {
	return s.bus.Listen(ctx, types...)
}

// ListCounters returns every counter sorted by id.
func (s *Service) ListCounters() []counter.State {
	return sortedValues(s.counters.Snapshot(), func(c counter.State) string { return c.ID })
}

// GetCounter returns one counter.
func (s *Service) GetCounter(id string) (counter.State, error) {
	c, ok := s.counters.Get(id)
	if !ok {
		return counter.State{}, ErrNotFound(KindCounter, id)
	}
	return c, nil
}

// AddCounter creates a counter and returns its initial state. An empty id is
// replaced by a random UUID.
func (s *Service) AddCounter(req AddCounterRequest) (counter.State, error) {
	if req.Limit < 0 {
		return counter.State{}, ErrInvalid("limit must not be negative")
	}
	if req.Interval < 0 {
		return counter.State{}, ErrInvalid("interval must not be negative")
	}
	if req.Interval > 0 && req.Interval < time.Millisecond {
		return counter.State{}, ErrInvalid("interval must be at least 1ms")
	}
	id := strings.TrimSpace(req.ID)
	if id == "" {
		id = uuid.NewString()
	}
	if err := validID(id); err != nil {
		return counter.State{}, err
	}
	limit := req.Limit
	if limit == 0 {
		limit = s.cfg.CounterLimit
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.counters.Get(id); exists {
		return counter.State{}, ErrConflict(KindCounter, id)
	}
	s.bus.Publish(counter.Add(id, limit, req.Interval))
	c, ok := s.counters.Get(id)
	if !ok {
		return counter.State{}, fmt.Errorf("counter %s was not stored", id)
	}
	s.log.Info().Str("counter", id).Int("limit", limit).Msg("counter added")
	return c, nil
}

// RemoveCounter removes a counter, cancelling its worker.
func (s *Service) RemoveCounter(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.counters.Get(id); !ok {
		return ErrNotFound(KindCounter, id)
	}
	s.bus.Publish(counter.Remove(id))
	s.log.Info().Str("counter", id).Msg("counter removed")
	return nil
}

// ListUploads returns every upload sorted by id.
func (s *Service) ListUploads() []upload.State {
	return sortedValues(s.uploads.Snapshot(), func(u upload.State) string { return u.ID })
}

// GetUpload returns one upload.
func (s *Service) GetUpload(id string) (upload.State, error) {
	u, ok := s.uploads.Get(id)
	if !ok {
		return upload.State{}, ErrNotFound(KindUpload, id)
	}
	return u, nil
}

// AddUpload requests an upload of the local file at path. name defaults to
// the file's base name.
func (s *Service) AddUpload(path, name string) (upload.State, error) {
	if s.cfg.UploadEndpoint == "" {
		return upload.State{}, ErrInvalid("uploads are disabled: no endpoint configured")
	}
	if strings.TrimSpace(path) == "" {
		return upload.State{}, ErrInvalid("path is required")
	}
	abs, err := fsutil.Resolve(path)
	if err != nil {
		return upload.State{}, ErrInvalid(err.Error())
	}
	if _, err := fsutil.RegularFile(abs); err != nil {
		return upload.State{}, ErrInvalid("cannot upload: " + err.Error())
	}
	if strings.ContainsAny(name, `/\`) {
		return upload.State{}, ErrInvalid("name must not contain path separators")
	}

	id := uuid.NewString()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bus.Publish(upload.Request(id, abs, name))
	u, ok := s.uploads.Get(id)
	if !ok {
		return upload.State{}, fmt.Errorf("upload %s was not stored", id)
	}
	s.log.Info().Str("upload", id).Str("path", abs).Msg("upload requested")
	return u, nil
}

// RemoveUpload forgets an upload, aborting it if it is in flight.
func (s *Service) RemoveUpload(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.uploads.Get(id); !ok {
		return ErrNotFound(KindUpload, id)
	}
	s.bus.Publish(upload.Cancel(id))
	s.log.Info().Str("upload", id).Msg("upload removed")
	return nil
}

// Status reports the workers of every kind.
func (s *Service) Status() []KindStatus {
	return []KindStatus{
		{Kind: KindCounter, Workers: s.counterSup.Active()},
		{Kind: KindUpload, Workers: s.uploadSup.Active()},
	}
}

func validID(id string) error {
	if len(id) > 128 {
		return ErrInvalid("id is longer than 128 characters")
	}
	if strings.ContainsAny(id, "/?#% \t\r\n") {
		return ErrInvalid("id contains reserved characters")
	}
	return nil
}

func sortedValues[S comparable](snap supervisor.Snapshot[S], id func(S) string) []S {
	out := make([]S, 0, len(snap))
	for _, v := range snap {
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool { return id(out[i]) < id(out[j]) })
	return out
}
