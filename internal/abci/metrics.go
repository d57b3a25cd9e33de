// Copyright 2025 Certen Protocol
//
// Prometheus metrics for the ABCI Driver: block height, transactions
// processed by result, and commit latency. Purely observational — nothing
// here feeds back into consensus-visible state, so reading the wall clock
// for commitDuration does not violate spec.md §4.5's determinism
// requirement (no branch of returned/committed data depends on it).
package abci

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	metricBlockHeight = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "certen",
		Subsystem: "abci",
		Name:      "block_height",
		Help:      "Last committed block height.",
	})

	metricTxsProcessed = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "certen",
		Subsystem: "abci",
		Name:      "transactions_total",
		Help:      "Transactions processed by deliver_tx, labeled by result.",
	}, []string{"result"})

	metricCommitDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "certen",
		Subsystem: "abci",
		Name:      "commit_duration_seconds",
		Help:      "Wall-clock time spent in the Commit ABCI hook.",
		Buckets:   prometheus.DefBuckets,
	})

	metricRewardsMinted = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "certen",
		Subsystem: "abci",
		Name:      "reward_records_minted_total",
		Help:      "Validator reward records minted across all commits.",
	})
)

func init() {
	prometheus.MustRegister(metricBlockHeight, metricTxsProcessed, metricCommitDuration, metricRewardsMinted)
}

// observeCommitDuration records the time elapsed since start. Commit defers
// it with time.Now() right after acquiring its lock, following the usual
// prometheus.NewTimer idiom without pulling that helper in (it does not add
// anything over time.Since here).
func observeCommitDuration(start time.Time) {
	metricCommitDuration.Observe(time.Since(start).Seconds())
}
