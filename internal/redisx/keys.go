package redisx

import "time"

const (
	// Cached order view: order:view:{order_id} -> full order JSON
	KeyOrderView = "order:view:%s"

	// Dedup event processing: dedup:{service}:{event_id}
	KeyDedup = "dedup:%s:%s"

	// Low-stock alert latch: alert:lowstock:{product_id} -> quantity at alert time.
	// Keeps the worker from re-alerting on every movement while stock stays low.
	KeyLowStockAlert = "alert:lowstock:%s"
)

var (
	TTLOrderView     = 5 * time.Minute
	TTLDedup         = 48 * time.Hour
	TTLLowStockAlert = 6 * time.Hour
)
