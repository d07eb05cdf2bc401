package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	SalesCreated = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pos_sales_created_total",
		Help: "Completed sale transactions per branch.",
	}, []string{"branch"})

	SalesVoided = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pos_sales_voided_total",
		Help: "Voided sale transactions per branch.",
	}, []string{"branch"})

	InventoryDiscrepancies = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pos_inventory_discrepancies_total",
		Help: "Sales that drove a product's stock level negative.",
	}, []string{"branch"})

	ConnectionsOpened = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pos_branch_connections_opened_total",
		Help: "Database handles opened per branch engine.",
	}, []string{"engine"})

	ConnectionCacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pos_branch_connection_cache_hits_total",
		Help: "Branch lookups served from the cached handle.",
	})

	ConnectionInvalidations = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pos_branch_connection_invalidations_total",
		Help: "Cached branch handles discarded explicitly or after config change.",
	})
)
