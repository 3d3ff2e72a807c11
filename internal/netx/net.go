// Package netx watches connectivity to the remote API.
package netx

import (
	"context"
	"sync"
	"time"
)

// DefaultInterval is how often Run probes the server.
const DefaultInterval = 3 * time.Second

// Prober reports whether the server answered. Any non-nil error means
// offline.
type Prober interface {
	Ping(ctx context.Context) error
}

// Watcher probes a server periodically and reports transitions between
// online and offline. onChange is called synchronously from Check, once per
// transition; the first probe always reports.
type Watcher struct {
	probe    Prober
	interval time.Duration
	timeout  time.Duration
	onChange func(online bool)

	mu     sync.Mutex
	online bool
	known  bool
}

func NewWatcher(p Prober, interval time.Duration, onChange func(online bool)) *Watcher {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Watcher{probe: p, interval: interval, timeout: interval, onChange: onChange}
}

// Check probes once and returns the current state.
func (w *Watcher) Check(ctx context.Context) bool {
	pctx, cancel := context.WithTimeout(ctx, w.timeout)
	online := w.probe.Ping(pctx) == nil
	cancel()

	w.mu.Lock()
	changed := !w.known || w.online != online
	w.online, w.known = online, true
	w.mu.Unlock()

	if changed && w.onChange != nil {
		w.onChange(online)
	}
	return online
}

// Online returns the last observed state, false before the first probe.
func (w *Watcher) Online() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.online
}

// Run probes immediately and then every interval until ctx is done.
func (w *Watcher) Run(ctx context.Context) {
	w.Check(ctx)
	t := time.NewTicker(w.interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			w.Check(ctx)
		}
	}
}
