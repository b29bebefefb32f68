package redisx

import (
	"fmt"
	"time"
)

const (
	// Device cart slot: cart:device:{device_id} -> JSON lines
	KeyDeviceCart = "cart:device:%s"

	// Per-buyer checkout lock: lock:checkout:{buyer_id} -> token
	KeyCheckoutLock = "lock:checkout:%s"

	// Reference id claim: idem:checkout:{reference_id} -> buyer_id
	KeyIdemCheckout = "idem:checkout:%s"

	// Cache status transaksi: tx_status:{reference_id} -> transaction JSON
	KeyTxStatus = "tx_status:%s"

	// Dedup event processing: dedup:{service}:{event_id}
	KeyDedup = "dedup:%s:%s"

	// Live feed channel: live:buyer:{buyer_id}
	ChanBuyer = "live:buyer:%s"
)

var (
	TTLDeviceCart  = 30 * 24 * time.Hour
	TTLIdempotency = 24 * time.Hour
	TTLStatusCache = 5 * time.Minute
	TTLDedup       = 48 * time.Hour
)

func Key(tmpl string, args ...any) string { return fmt.Sprintf(tmpl, args...) }
