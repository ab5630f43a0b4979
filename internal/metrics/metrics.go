package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Registry struct {
	reg *prometheus.Registry

	// Selection store
	Adjustments       prometheus.Counter
	Reconciles        prometheus.Counter
	StaleFetches      prometheus.Counter
	DroppedKeys       prometheus.Counter
	LoadFallbacks     prometheus.Counter
	PersistFailures   prometheus.Counter
	SelectedUnits     prometheus.Gauge
	ChangelogAppended prometheus.Counter

	// Confirmation
	Confirmations prometheus.Counter
	OrphanLines   prometheus.Counter
	FetchLatency  prometheus.Histogram

	// Recovery
	Applied            prometheus.Counter
	Skipped            prometheus.Counter
	TTRSec             prometheus.Gauge
	ReplayBytes        prometheus.Counter
	LastManifestAgeSec prometheus.Gauge
}

func NewRegistry() *Registry {
	r := prometheus.NewRegistry()
	adjustments := prometheus.NewCounter(prometheus.CounterOpts{Name: "showroom_selection_adjustments_total"})
	reconciles := prometheus.NewCounter(prometheus.CounterOpts{Name: "showroom_selection_reconciles_total"})
	stale := prometheus.NewCounter(prometheus.CounterOpts{Name: "showroom_catalog_stale_fetches_total"})
	dropped := prometheus.NewCounter(prometheus.CounterOpts{Name: "showroom_selection_dropped_keys_total"})
	fallbacks := prometheus.NewCounter(prometheus.CounterOpts{Name: "showroom_selection_load_fallbacks_total"})
	persistFail := prometheus.NewCounter(prometheus.CounterOpts{Name: "showroom_selection_persist_failures_total"})
	selected := prometheus.NewGauge(prometheus.GaugeOpts{Name: "showroom_selection_units"})
	appended := prometheus.NewCounter(prometheus.CounterOpts{Name: "showroom_changelog_appended_total"})

	confirmations := prometheus.NewCounter(prometheus.CounterOpts{Name: "showroom_confirmations_total"})
	orphans := prometheus.NewCounter(prometheus.CounterOpts{Name: "showroom_confirmation_orphan_lines_total"})
	fetchLatency := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "showroom_catalog_fetch_seconds",
		Buckets: prometheus.DefBuckets,
	})

	applied := prometheus.NewCounter(prometheus.CounterOpts{Name: "showroom_replay_applied_total"})
	skipped := prometheus.NewCounter(prometheus.CounterOpts{Name: "showroom_replay_skipped_total"})
	ttr := prometheus.NewGauge(prometheus.GaugeOpts{Name: "showroom_recovery_ttr_seconds"})
	replayBytes := prometheus.NewCounter(prometheus.CounterOpts{Name: "showroom_replay_bytes_total"})
	lastAge := prometheus.NewGauge(prometheus.GaugeOpts{Name: "showroom_last_manifest_age_seconds"})

	r.MustRegister(adjustments, reconciles, stale, dropped, fallbacks, persistFail, selected, appended,
		confirmations, orphans, fetchLatency, applied, skipped, ttr, replayBytes, lastAge)
	return &Registry{
		reg:                r,
		Adjustments:        adjustments,
		Reconciles:         reconciles,
		StaleFetches:       stale,
		DroppedKeys:        dropped,
		LoadFallbacks:      fallbacks,
		PersistFailures:    persistFail,
		SelectedUnits:      selected,
		ChangelogAppended:  appended,
		Confirmations:      confirmations,
		OrphanLines:        orphans,
		FetchLatency:       fetchLatency,
		Applied:            applied,
		Skipped:            skipped,
		TTRSec:             ttr,
		ReplayBytes:        replayBytes,
		LastManifestAgeSec: lastAge,
	}
}

func (r *Registry) Handler() http.Handler { return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{}) }
