// Package netstate tracks whether the network is reachable by periodically
// running a probe, and notifies subscribers when that changes.
package netstate

import (
	"context"
	"log/slog"
	"net"
	"sync"
	"time"
)

// Prober checks connectivity once; a nil error means the network is
// reachable.
type Prober func(ctx context.Context) error

// DialProber returns a Prober that opens (and immediately closes) a TCP
// connection to addr.
func DialProber(addr string, timeout time.Duration) Prober {
	return func(ctx context.Context) error {
		ctx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()

		var d net.Dialer
		conn, err := d.DialContext(ctx, "tcp", addr)
		if err != nil {
			return err
		}
		return conn.Close()
	}
}

// Observer holds the most recently observed network state. Until the first
// probe completes the network is assumed to be online.
type Observer struct {
	log      *slog.Logger
	probe    Prober
	interval time.Duration

	mu     sync.Mutex // protects following
	online bool
	subs   []func(online bool)
}

// New creates an Observer that runs probe every interval once Run is
// called.
func New(log *slog.Logger, probe Prober, interval time.Duration) *Observer {
	if log == nil {
		log = slog.Default()
	}
	return &Observer{
		log:      log,
		probe:    probe,
		interval: interval,
		online:   true,
	}
}

// Online reports the most recently observed state.
func (o *Observer) Online() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.online
}

// Subscribe registers fn to be called, from the probing goroutine, whenever
// the state changes.
func (o *Observer) Subscribe(fn func(online bool)) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.subs = append(o.subs, fn)
}

// Check runs the probe once, updates the state, and returns it.
func (o *Observer) Check(ctx context.Context) bool {
	err := o.probe(ctx)
	online := err == nil

	o.mu.Lock()
	changed := online != o.online
	o.online = online
	subs := append([]func(bool){}, o.subs...)
	o.mu.Unlock()

	if !changed {
		return online
	}
	if online {
		o.log.Info("network is reachable")
	} else {
		o.log.Warn("network is unreachable", slog.String("error", err.Error()))
	}
	for _, fn := range subs {
		fn(online)
	}
	return online
}

// Run probes immediately and then once per interval until ctx is cancelled.
func (o *Observer) Run(ctx context.Context) {
	o.Check(ctx)

	ticker := time.NewTicker(o.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			o.Check(ctx)
		}
	}
}
