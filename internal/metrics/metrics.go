// Package metrics declares the prometheus collectors of the entry store and
// the render cache.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Reasons an entry was removed on read.
const (
	Expired = "expired"
	Burned  = "burned"
)

// Collectors for store.Store.
var (
	EntriesInsertedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pastekeeper_entries_inserted_total",
		Help: "Cumulative number of entries inserted.",
	})
	EntriesRemovedOnReadTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pastekeeper_entries_removed_on_read_total",
		Help: "Cumulative number of entries deleted while being read, by reason.",
	}, []string{"reason"})
	CleanupFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pastekeeper_cleanup_failures_total",
		Help: "Cumulative number of expired or burned entries whose delete failed.",
	})
	CompressedBytesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pastekeeper_compressed_bytes_total",
		Help: "Cumulative number of compressed bytes written to the store.",
	})
)

// Collectors for render.Cache.
var (
	RenderCacheHitsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pastekeeper_render_cache_hits_total",
		Help: "Cumulative number of render cache hits.",
	})
	RenderCacheMissesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pastekeeper_render_cache_misses_total",
		Help: "Cumulative number of render cache misses.",
	})
	RenderCacheEvictionsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pastekeeper_render_cache_evictions_total",
		Help: "Cumulative number of renders evicted by capacity pressure.",
	})
)
