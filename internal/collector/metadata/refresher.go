package metadata

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"k8s.io/utils/clock"

	"github.com/mcronce/hass-event-collector/internal/collector/metrics"
	"github.com/mcronce/hass-event-collector/internal/common/logging"
)

const (
	DefaultRefreshInterval        = 10 * time.Second
	DefaultMaxConsecutiveFailures = 4
)

// ErrRefreshFailed is returned by Refresher.Run once consecutive failures exceed the configured limit.
var ErrRefreshFailed = errors.New("metadata failure count limit reached")

type Phase int

const (
	Idle Phase = iota
	Fetching
	Failed
	Fatal
)

func (p Phase) String() string {
	switch p {
	case Idle:
		return "idle"
	case Fetching:
		return "fetching"
	case Failed:
		return "failed"
	case Fatal:
		return "fatal"
	default:
		return fmt.Sprintf("Phase(%d)", int(p))
	}
}

// State is the refresher's position in its state machine. Failures counts consecutive failed fetches and is
// reset by a successful one.
type State struct {
	Phase    Phase
	Failures int
}

func (s State) String() string {
	if s.Failures == 0 {
		return s.Phase.String()
	}
	return fmt.Sprintf("%s(%d)", s.Phase, s.Failures)
}

// Refresher periodically rebuilds the registry's snapshot.
//
//	Idle/Failed(n) --tick--> Fetching --ok--> Idle (snapshot published)
//	                         Fetching --err, n+1 <= max--> Failed(n+1)
//	                         Fetching --err, n+1 > max--> Fatal
//
// Fatal is terminal: the previous snapshot stays published but Run returns ErrRefreshFailed.
type Refresher struct {
	fetcher     Fetcher
	registry    *Registry
	interval    time.Duration
	maxFailures int
	clock       clock.WithTicker
	metrics     *metrics.Metrics

	mu    sync.Mutex
	state State
}

func NewRefresher(fetcher Fetcher, registry *Registry, interval time.Duration, maxFailures int, m *metrics.Metrics) *Refresher {
	if interval <= 0 {
		interval = DefaultRefreshInterval
	}
	return &Refresher{
		fetcher:     fetcher,
		registry:    registry,
		interval:    interval,
		maxFailures: maxFailures,
		clock:       clock.RealClock{},
		metrics:     m,
	}
}

func (r *Refresher) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

func (r *Refresher) setState(s State) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.state = s
}

// Refresh performs a single fetch and the resulting transition. A fetch that fails because ctx was cancelled
// leaves the state as it was. Refresh does nothing once the refresher is Fatal.
func (r *Refresher) Refresh(ctx context.Context) State {
	previous := r.State()
	if previous.Phase == Fatal {
		return previous
	}
	r.setState(State{Phase: Fetching, Failures: previous.Failures})

	start := r.clock.Now()
	snapshot, err := Load(ctx, r.fetcher)
	taken := r.clock.Since(start)

	if err != nil && ctx.Err() != nil {
		r.setState(previous)
		return previous
	}
	r.metrics.RecordRefresh(taken, err)

	var next State
	if err != nil {
		failures := previous.Failures + 1
		logging.WithStacktrace(log.WithField("fail_count", failures), err).Error("Failed to get metadata")
		if failures > r.maxFailures {
			next = State{Phase: Fatal, Failures: failures}
			log.WithField("fail_count", failures).Error("Metadata failure count limit reached")
		} else {
			next = State{Phase: Failed, Failures: failures}
		}
	} else {
		r.registry.Publish(snapshot)
		r.metrics.SetRegistrySize(snapshot.NumEntities(), snapshot.NumDevices(), snapshot.NumAreas())
		log.WithFields(log.Fields{
			"entities": snapshot.NumEntities(),
			"devices":  snapshot.NumDevices(),
			"areas":    snapshot.NumAreas(),
			"taken":    taken,
		}).Debug("Refreshed metadata")
		next = State{Phase: Idle}
	}
	r.metrics.SetConsecutiveFailures(next.Failures)
	r.setState(next)
	return next
}

// Run refreshes on every tick of the interval until ctx is cancelled (returning nil) or the refresher becomes
// Fatal (returning ErrRefreshFailed). The first refresh happens one interval after Run is called; the initial
// snapshot is expected to have been loaded already.
func (r *Refresher) Run(ctx context.Context) error {
	ticker := r.clock.NewTicker(r.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C():
		}
		if r.Refresh(ctx).Phase == Fatal {
			return ErrRefreshFailed
		}
	}
}

// Check fails while the most recent refresh attempts have failed, and permanently once the refresher is Fatal.
func (r *Refresher) Check() error {
	state := r.State()
	if state.Phase == Fatal {
		return ErrRefreshFailed
	}
	if state.Failures > 0 {
		return errors.Errorf("metadata refresh failed %d consecutive times", state.Failures)
	}
	return nil
}
