package mirror

import (
	"context"
	"log/slog"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/sadopc/chorechart/internal/metrics"
	"github.com/sadopc/chorechart/internal/store"
)

// DefaultPushTimeout bounds each background push of a local write.
const DefaultPushTimeout = 10 * time.Second

// Report describes one poll. Err is set when the poll could not complete;
// it is logged, never returned.
type Report struct {
	Skipped bool
	Pulled  []string
	Pushed  []string
	Err     error
}

type Syncer struct {
	store   *store.Store
	remote  Remote
	session *Session
	keys    []string
	logger  *slog.Logger

	pushTimeout time.Duration
	pushes      sync.WaitGroup

	// pending holds the latest unpushed value per key. One flush goroutine
	// at a time drains it, so pushes reach the remote in write order.
	mu       sync.Mutex
	pending  map[string]string
	flushing bool
}

func New(s *store.Store, remote Remote, session *Session, logger *slog.Logger) *Syncer {
	if logger == nil {
		logger = slog.Default()
	}
	if session == nil {
		session = NewSession()
	}
	return &Syncer{
		store:       s,
		remote:      remote,
		session:     session,
		keys:        store.SyncedKeys,
		logger:      logger,
		pushTimeout: DefaultPushTimeout,
	}
}

func (y *Syncer) Session() *Session { return y.session }

// Poll pulls every synced key the remote has a different value for, and
// pushes local keys the remote is missing in one batch. Pulled values do
// not trigger a push back.
func (y *Syncer) Poll(ctx context.Context) Report {
	gen, ok := y.session.begin()
	if !ok {
		metrics.SyncPolls.WithLabelValues(metrics.ResultSkipped).Inc()
		y.logger.Debug("sync poll skipped, previous poll still running")
		return Report{Skipped: true}
	}
	defer y.session.end(gen)

	rep := y.poll(ctx)
	if rep.Err != nil {
		metrics.SyncPolls.WithLabelValues(metrics.ResultFailed).Inc()
		y.logger.Warn("sync poll failed", "error", rep.Err)
		return rep
	}
	metrics.SyncPolls.WithLabelValues(metrics.ResultOK).Inc()
	if len(rep.Pulled) > 0 || len(rep.Pushed) > 0 {
		y.logger.Info("sync poll complete", "pulled", rep.Pulled, "pushed", rep.Pushed)
	}
	return rep
}

func (y *Syncer) poll(ctx context.Context) Report {
	var rep Report

	remote, err := y.remote.Fetch(ctx)
	if err != nil {
		rep.Err = err
		return rep
	}
	local, err := y.store.Snapshot()
	if err != nil {
		rep.Err = err
		return rep
	}

	pull := make(map[string]string)
	push := make(map[string]string)
	for _, k := range y.keys {
		rv := remote[k]
		lv := local[k]
		switch {
		case rv != "":
			if rv != lv {
				pull[k] = rv
			}
		case lv != "":
			push[k] = lv
		}
	}

	// A key written locally since the snapshot keeps the local value; its
	// queued push carries it to the remote.
	if len(pull) > 0 {
		pulled, err := y.store.OverwriteUnchanged(local, pull)
		if err != nil {
			rep.Err = err
			return rep
		}
		rep.Pulled = pulled
		metrics.PulledKeys.Add(float64(len(pulled)))
	}

	if len(push) > 0 {
		if err := y.remote.Push(ctx, push); err != nil {
			metrics.SyncPushes.WithLabelValues(metrics.ResultFailed).Inc()
			rep.Err = err
			return rep
		}
		metrics.SyncPushes.WithLabelValues(metrics.ResultOK).Inc()
		rep.Pushed = sortedKeys(push)
	}
	return rep
}

// Watch pushes every committed local write of a synced key to the remote
// in the background. Writes made while a push is in flight are coalesced
// per key and sent after it, in order.
func (y *Syncer) Watch() {
	y.store.OnWrite(func(changes map[string]string) {
		values := make(map[string]string, len(changes))
		for k, v := range changes {
			if slices.Contains(y.keys, k) {
				values[k] = v
			}
		}
		if len(values) == 0 {
			return
		}
		y.enqueue(values)
	})
}

func (y *Syncer) enqueue(values map[string]string) {
	y.mu.Lock()
	defer y.mu.Unlock()
	if y.pending == nil {
		y.pending = make(map[string]string, len(values))
	}
	for k, v := range values {
		y.pending[k] = v
	}
	if y.flushing {
		return
	}
	y.flushing = true
	y.pushes.Add(1)
	go y.flush()
}

// flush pushes pending values one batch at a time until none are left.
func (y *Syncer) flush() {
	defer y.pushes.Done()
	for {
		y.mu.Lock()
		batch := y.pending
		y.pending = nil
		if len(batch) == 0 {
			y.flushing = false
			y.mu.Unlock()
			return
		}
		y.mu.Unlock()

		y.push(batch)
	}
}

func (y *Syncer) push(values map[string]string) {
	ctx, cancel := context.WithTimeout(context.Background(), y.pushTimeout)
	defer cancel()

	if err := y.remote.Push(ctx, values); err != nil {
		metrics.SyncPushes.WithLabelValues(metrics.ResultFailed).Inc()
		y.logger.Warn("push local write failed", "keys", sortedKeys(values), "error", err)
		return
	}
	metrics.SyncPushes.WithLabelValues(metrics.ResultOK).Inc()
	y.logger.Debug("pushed local write", "keys", sortedKeys(values))
}

// Wait blocks until background pushes started so far have finished.
func (y *Syncer) Wait() {
	y.pushes.Wait()
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
