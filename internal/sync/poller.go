// Package sync watches the local database for changes committed by other
// processes, such as the web server and a terminal session sharing one
// SQLite file, and reports them as change events.
package sync

import (
	"context"
	gosync "sync"
	"time"

	"go.uber.org/zap"

	"github.com/nhle/accomplishment-tracker/internal/model"
)

// SyncState represents the current state of the poller.
type SyncState int

const (
	SyncIdle SyncState = iota
	SyncRunning
	SyncError
)

func (s SyncState) String() string {
	switch s {
	case SyncRunning:
		return "running"
	case SyncError:
		return "error"
	default:
		return "idle"
	}
}

// SyncStatus is a snapshot of the poller's health.
type SyncStatus struct {
	State    SyncState
	LastSync time.Time
	Error    error
	Watched  int
}

// DefaultInterval is used when New is given a non-positive interval.
const DefaultInterval = 5 * time.Second

// fetchTimeout bounds a single fingerprint query.
const fetchTimeout = 10 * time.Second

// Fingerprinter summarizes an owner's rows. Two calls return the same value
// if and only if the rows did not change in between.
type Fingerprinter interface {
	OwnerFingerprint(ctx context.Context, ownerID string) (string, error)
}

// watch is the per-owner state. refs counts open feeds for the owner.
type watch struct {
	refs   int
	last   string
	primed bool
}

// Poller periodically fingerprints every watched owner and publishes a
// change event when a fingerprint moves. Changes made in this process may
// be reported a second time; events are refetch triggers only.
type Poller struct {
	src       Fingerprinter
	publish   func(model.ChangeEvent)
	interval  time.Duration
	log       *zap.Logger
	now       func() time.Time
	triggerCh chan struct{}
	stopCh    chan struct{}
	doneCh    chan struct{}

	mu      gosync.Mutex
	owners  map[string]*watch
	status  SyncStatus
	running bool
	stopped bool
}

// New creates a Poller that reads fingerprints from src and hands change
// events to publish.
func New(src Fingerprinter, publish func(model.ChangeEvent), interval time.Duration, log *zap.Logger) *Poller {
	if interval <= 0 {
		interval = DefaultInterval
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Poller{
		src:       src,
		publish:   publish,
		interval:  interval,
		log:       log.Named("sync"),
		now:       time.Now,
		triggerCh: make(chan struct{}, 1),
		stopCh:    make(chan struct{}),
		doneCh:    make(chan struct{}),
		owners:    map[string]*watch{},
	}
}

// Watch starts reporting changes to ownerID's rows. The returned function
// stops it; calling it more than once is safe.
func (p *Poller) Watch(ownerID string) func() {
	p.mu.Lock()
	w := p.owners[ownerID]
	if w == nil {
		w = &watch{}
		p.owners[ownerID] = w
	}
	w.refs++
	p.mu.Unlock()

	p.Refresh()

	var once gosync.Once
	return func() {
		once.Do(func() {
			p.mu.Lock()
			defer p.mu.Unlock()
			if w.refs--; w.refs <= 0 {
				delete(p.owners, ownerID)
			}
		})
	}
}

// Start launches the polling goroutine. Starting twice, or after Stop, is a
// no-op.
func (p *Poller) Start() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.running || p.stopped {
		return
	}
	p.running = true
	go p.loop()
}

// Stop halts polling and waits for the goroutine to exit.
func (p *Poller) Stop() {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return
	}
	p.stopped = true
	wasRunning := p.running
	p.running = false
	close(p.stopCh)
	p.mu.Unlock()

	if wasRunning {
		<-p.doneCh
	}
}

// Refresh requests an immediate poll without blocking.
func (p *Poller) Refresh() {
	select {
	case p.triggerCh <- struct{}{}:
	default:
	}
}

// Status returns the poller's current status.
func (p *Poller) Status() SyncStatus {
	p.mu.Lock()
	defer p.mu.Unlock()
	s := p.status
	s.Watched = len(p.owners)
	return s
}

func (p *Poller) loop() {
	defer close(p.doneCh)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-p.stopCh:
			return
		case <-ticker.C:
			p.PollOnce()
		case <-p.triggerCh:
			p.PollOnce()
		}
	}
}

// PollOnce fingerprints every watched owner and publishes an event for each
// one whose rows changed since the previous poll. The first poll of an owner
// only records its baseline.
func (p *Poller) PollOnce() {
	p.mu.Lock()
	owners := make([]string, 0, len(p.owners))
	for id := range p.owners {
		owners = append(owners, id)
	}
	p.status.State = SyncRunning
	p.mu.Unlock()

	var firstErr error
	for _, ownerID := range owners {
		ctx, cancel := context.WithTimeout(context.Background(), fetchTimeout)
		fp, err := p.src.OwnerFingerprint(ctx, ownerID)
		cancel()
		if err != nil {
			p.log.Warn("fingerprinting rows failed", zap.String("owner", ownerID), zap.Error(err))
			if firstErr == nil {
				firstErr = err
			}
			continue
		}

		p.mu.Lock()
		w, ok := p.owners[ownerID]
		changed := ok && w.primed && w.last != fp
		if ok {
			w.last = fp
			w.primed = true
		}
		p.mu.Unlock()

		if changed {
			p.log.Debug("rows changed elsewhere", zap.String("owner", ownerID))
			p.publish(model.ChangeEvent{Type: model.ChangeUpdate, OwnerID: ownerID})
		}
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if firstErr != nil {
		p.status.State = SyncError
		p.status.Error = firstErr
		return
	}
	p.status = SyncStatus{State: SyncIdle, LastSync: p.now()}
}
