package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Asset cache tiers, in lookup order.
const (
	TierMemory   = "memory"
	TierPointer  = "pointer"
	TierMetadata = "metadata"
	TierScan     = "scan"
	TierMiss     = "miss"
)

// AssetCacheMetrics records which tier resolved each profile image lookup.
type AssetCacheMetrics struct {
	tierHits    *prometheus.CounterVec
	repairs     prometheus.Counter
	saveSeconds *prometheus.HistogramVec
}

// NewAssetCacheMetrics registers the asset cache metrics on the provided registerer.
func NewAssetCacheMetrics(reg prometheus.Registerer) *AssetCacheMetrics {
	if reg == nil {
		return &AssetCacheMetrics{}
	}
	tierHits := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "asset_cache_tier_hits_total",
		Help: "Profile image lookups by resolving tier.",
	}, []string{"tier"})
	repairs := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "asset_cache_repairs_total",
		Help: "Lookups that rewrote faster tiers after a directory scan.",
	})
	saveSeconds := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "asset_cache_save_seconds",
		Help:    "Duration of profile image saves in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"result"})
	reg.MustRegister(tierHits, repairs, saveSeconds)
	return &AssetCacheMetrics{
		tierHits:    tierHits,
		repairs:     repairs,
		saveSeconds: saveSeconds,
	}
}

// IncTierHit counts a lookup resolved by tier.
func (m *AssetCacheMetrics) IncTierHit(tier string) {
	if m == nil || m.tierHits == nil {
		return
	}
	m.tierHits.WithLabelValues(normalizeLabel(tier)).Inc()
}

// IncRepair counts a self-healing rewrite.
func (m *AssetCacheMetrics) IncRepair() {
	if m == nil || m.repairs == nil {
		return
	}
	m.repairs.Inc()
}

// ObserveSave records a save duration labelled ok/error.
func (m *AssetCacheMetrics) ObserveSave(duration time.Duration, err error) {
	if m == nil || m.saveSeconds == nil {
		return
	}
	m.saveSeconds.WithLabelValues(resultLabel(err)).Observe(duration.Seconds())
}

func resultLabel(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

func normalizeLabel(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}
