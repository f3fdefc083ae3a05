// Package metrics holds the Prometheus counters for ledger, approval,
// reset, sync and merge-server activity. The board serves them when
// metrics.listen is set; the merge server serves its own on /metrics.
package metrics

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	Completions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "chorechart_completions_total",
		Help: "Task completions recorded in the ledger, by source.",
	}, []string{"source"})

	Undos = promauto.NewCounter(prometheus.CounterOpts{
		Name: "chorechart_undos_total",
		Help: "Completions removed by an undo.",
	})

	Redemptions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "chorechart_redemptions_total",
		Help: "Reward redemption attempts, by outcome.",
	}, []string{"outcome"})

	Approvals = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "chorechart_approvals_total",
		Help: "Pending approval transitions, by decision.",
	}, []string{"decision"})

	Resets = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "chorechart_resets_total",
		Help: "Resets applied, by horizon.",
	}, []string{"horizon"})

	SyncPolls = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "chorechart_sync_polls_total",
		Help: "Remote sync poll cycles, by result.",
	}, []string{"result"})

	SyncPushes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "chorechart_sync_pushes_total",
		Help: "Pushes of local records to the remote copy, by result.",
	}, []string{"result"})

	PulledKeys = promauto.NewCounter(prometheus.CounterOpts{
		Name: "chorechart_pulled_keys_total",
		Help: "Remote values written over local records by a sync poll.",
	})

	DataRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "chorechart_data_requests_total",
		Help: "Merge server /api/data requests, by method and result.",
	}, []string{"method", "result"})

	MergedKeys = promauto.NewCounter(prometheus.CounterOpts{
		Name: "chorechart_merged_keys_total",
		Help: "Keys merged into server storage by POST /api/data.",
	})
)

// NewServer returns an HTTP server exposing the default registry on
// /metrics at addr.
func NewServer(addr string) *http.Server {
	r := chi.NewRouter()
	r.Handle("/metrics", promhttp.Handler())
	return &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
}

// Label values.
const (
	SourceDirect  = "direct"
	SourceApprove = "approval"
	SourceInstant = "instant"

	OutcomeRedeemed     = "redeemed"
	OutcomeInsufficient = "insufficient"
	OutcomeUnknown      = "unknown"

	DecisionSubmitted = "submitted"
	DecisionApproved  = "approved"
	DecisionRejected  = "rejected"

	HorizonDaily  = "daily"
	HorizonWeekly = "weekly"

	ResultOK      = "ok"
	ResultFailed  = "failed"
	ResultSkipped = "skipped"
	ResultInvalid = "invalid"
)
