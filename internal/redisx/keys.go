package redisx

import "time"

const (
	// Cache order: order:{order_id} -> JSON order
	KeyOrder = "order:%s"

	// Dedup event processing: dedup:{service}:{event_id}
	KeyDedup = "dedup:%s:%s"

	// Distributed lock: lock:{name} -> token
	KeyLock = "lock:%s"
)

var (
	TTLOrderCache = 5 * time.Minute
	TTLDedup      = 48 * time.Hour
)
