package router

import (
	"context"
	"errors"
	"testing"

	"github.com/newthinker/perftrack/internal/core"
	"github.com/newthinker/perftrack/internal/notifier"
)

type mockNotifier struct {
	name     string
	received []notifier.Event
	fail     bool
}

func (m *mockNotifier) Name() string                   { return m.name }
func (m *mockNotifier) Init(cfg notifier.Config) error { return nil }
func (m *mockNotifier) Notify(ctx context.Context, events []notifier.Event) error {
	m.received = append(m.received, events...)
	if m.fail {
		return errors.New("down")
	}
	return nil
}

func event(u core.Universe, strategy, ticker string, status core.TradeStatus, r float64) notifier.Event {
	return notifier.Event{
		RunID: "run-1",
		From:  core.StatusPending,
		Signal: core.Signal{
			Ticker: ticker, Universe: u, Strategy: strategy, TradeStatus: status,
		},
		R: r,
	}
}

func setup(t *testing.T, cfg Config) (*Router, *mockNotifier) {
	t.Helper()
	reg := notifier.NewRegistry()
	mock := &mockNotifier{name: "mock"}
	if err := reg.Register(mock); err != nil {
		t.Fatal(err)
	}
	return New(cfg, reg, nil), mock
}

func TestRouter_DefaultStatuses(t *testing.T) {
	r, mock := setup(t, Config{})

	r.NotifyAll(context.Background(), []notifier.Event{
		event(core.UniverseSP500, "phoenix", "AAPL", core.StatusClosed, -1),
		event(core.UniverseSP500, "phoenix", "MSFT", core.StatusActive, 0),
		event(core.UniverseSP500, "phoenix", "NVDA", core.StatusPending, 0),
	})

	if len(mock.received) != 2 {
		t.Fatalf("expected 2 events, got %d", len(mock.received))
	}
	if mock.received[0].Signal.Ticker != "AAPL" || mock.received[1].Signal.Ticker != "MSFT" {
		t.Errorf("unexpected events %+v", mock.received)
	}
}

func TestRouter_ClosedOnly(t *testing.T) {
	r, mock := setup(t, Config{NotifyOn: []core.TradeStatus{core.StatusClosed}})

	r.NotifyAll(context.Background(), []notifier.Event{
		event(core.UniverseSP500, "phoenix", "MSFT", core.StatusActive, 0),
	})

	if len(mock.received) != 0 {
		t.Errorf("expected no delivery, got %d", len(mock.received))
	}
}

func TestRouter_GroupFilter(t *testing.T) {
	r, mock := setup(t, Config{Groups: []string{"crypto_phoenix"}})

	r.NotifyAll(context.Background(), []notifier.Event{
		event(core.UniverseSP500, "phoenix", "AAPL", core.StatusClosed, 2),
		event(core.UniverseCrypto, "phoenix", "BTC", core.StatusClosed, 2),
	})

	if len(mock.received) != 1 || mock.received[0].Signal.Ticker != "BTC" {
		t.Errorf("expected only BTC, got %+v", mock.received)
	}
}

func TestRouter_MinAbsR(t *testing.T) {
	r, mock := setup(t, Config{MinAbsR: 0.5})

	r.NotifyAll(context.Background(), []notifier.Event{
		event(core.UniverseSP500, "phoenix", "SMALL", core.StatusClosed, -0.1),
		event(core.UniverseSP500, "phoenix", "LOSS", core.StatusClosed, -1),
		event(core.UniverseSP500, "phoenix", "OPEN", core.StatusActive, 0),
	})

	if len(mock.received) != 2 {
		t.Fatalf("expected 2 events, got %d", len(mock.received))
	}
	if mock.received[0].Signal.Ticker != "LOSS" || mock.received[1].Signal.Ticker != "OPEN" {
		t.Errorf("unexpected events %+v", mock.received)
	}
}

func TestRouter_ReturnsNotifierErrors(t *testing.T) {
	r, mock := setup(t, Config{})
	mock.fail = true

	errs := r.NotifyAll(context.Background(), []notifier.Event{
		event(core.UniverseSP500, "phoenix", "AAPL", core.StatusClosed, -1),
	})

	if errs["mock"] == nil {
		t.Errorf("expected mock failure, got %v", errs)
	}
}

func TestRouter_NilRegistry(t *testing.T) {
	r := New(Config{}, nil, nil)

	errs := r.NotifyAll(context.Background(), []notifier.Event{
		event(core.UniverseSP500, "phoenix", "AAPL", core.StatusClosed, -1),
	})
	if len(errs) != 0 {
		t.Errorf("expected no errors, got %v", errs)
	}
}
