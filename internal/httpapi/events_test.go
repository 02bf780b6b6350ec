package httpapi

import (
	"bufio"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"keyvisor/pkg/types"
)

// readSSE returns the next event block (lines up to a blank line), skipping comments.
func readSSE(t *testing.T, sc *bufio.Scanner) []string {
	t.Helper()
	var block []string
	for sc.Scan() {
		line := sc.Text()
		if line == "" {
			if len(block) > 0 {
				return block
			}
			continue
		}
		if strings.HasPrefix(line, ":") {
			continue
		}
		block = append(block, line)
	}
	t.Fatalf("stream ended: %v", sc.Err())
	return nil
}

func TestEventsStream(t *testing.T) {
	svc := &mockService{events: make(chan types.Event, 1)}
	srv := httptest.NewServer(NewMux(svc))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/events?type=counter.increment,counter.add&type=entity.added")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("content-type=%q", ct)
	}

	svc.events <- types.Event{Type: "counter.increment", Key: "foo", TimeUnixMS: 1}
	sc := bufio.NewScanner(resp.Body)
	block := readSSE(t, sc)
	if len(block) != 2 || block[0] != "event: counter.increment" {
		t.Fatalf("unexpected block %q", block)
	}
	if !strings.Contains(block[1], `"key":"foo"`) {
		t.Fatalf("unexpected data %q", block[1])
	}

	svc.mu.Lock()
	filter := svc.filter
	svc.mu.Unlock()
	if strings.Join(filter, " ") != "counter.increment counter.add entity.added" {
		t.Fatalf("filter=%v", filter)
	}
}

func TestEventsStream_EndsOnBaseContextCancel(t *testing.T) {
	base, cancel := context.WithCancel(context.Background())
	SetBaseContext(base)
	defer SetBaseContext(context.Background())
	SetEventHeartbeat(10 * time.Millisecond)
	defer SetEventHeartbeat(0)

	srv := httptest.NewServer(NewMux(&mockService{}))
	defer srv.Close()
	resp, err := http.Get(srv.URL + "/events")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()

	sc := bufio.NewScanner(resp.Body)
	pings := 0
	for pings < 2 && sc.Scan() {
		if sc.Text() == ": ping" {
			pings++
		}
	}
	if pings < 2 {
		t.Fatalf("expected heartbeats, got %d", pings)
	}

	cancel()
	done := make(chan struct{})
	go func() {
		for sc.Scan() {
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("stream did not end after base context cancel")
	}
}

func TestEventTypes(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/events?type=a,+b&type=&type=c", nil)
	got := eventTypes(r)
	if strings.Join(got, "|") != "a|b|c" {
		t.Fatalf("eventTypes=%v", got)
	}
}

func TestJoinContexts_CancelsWhenEitherDone(t *testing.T) {
	a, ac := context.WithCancel(context.Background())
	defer ac()
	b, bc := context.WithCancel(context.Background())
	j, cancelJ := joinContexts(a, b)
	defer cancelJ()
	bc()
	select {
	case <-j.Done():
	case <-time.After(500 * time.Millisecond):
		t.Fatal("joined context did not cancel when second parent canceled")
	}
}
