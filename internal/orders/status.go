package orders

import "strings"

type Status string

const (
	StatusPending    Status = "pending"
	StatusPaid       Status = "paid"
	StatusProcessing Status = "processing"
	StatusShipped    Status = "shipped"
	StatusCompleted  Status = "completed"
	StatusCancelled  Status = "cancelled"
	StatusFailed     Status = "failed"
	StatusExpired    Status = "expired"
)

// rank orders the forward path of a gateway transaction. Statuses missing
// from the table are either failure terminals or gateway passthroughs.
var rank = map[Status]int{
	StatusPending:    0,
	StatusPaid:       1,
	StatusProcessing: 2,
	StatusShipped:    3,
	StatusCompleted:  4,
}

var terminal = map[Status]bool{
	StatusCompleted: true,
	StatusCancelled: true,
	StatusFailed:    true,
	StatusExpired:   true,
}

func (s Status) Terminal() bool { return terminal[s] }

// Known reports whether s is one of the statuses this service defines.
func (s Status) Known() bool {
	_, ranked := rank[s]
	return ranked || terminal[s]
}

// CanAdvance decides whether a gateway callback carrying `to` may overwrite a
// transaction currently in `from`. Terminal records never move and known
// statuses only move forward. Failure terminals (failed, expired, cancelled)
// only replace pending or an unrecognised status: once paid, a transaction
// cannot fail. Unrecognised gateway statuses are accepted over any
// non-terminal record and any known status may follow them.
func CanAdvance(from, to Status) bool {
	if from == to || from.Terminal() {
		return false
	}
	if !to.Known() || !from.Known() {
		return true
	}
	toRank, ranked := rank[to]
	if !ranked {
		return from == StatusPending
	}
	return toRank > rank[from]
}

// handoff orders only leave pending through explicit buyer/merchant actions
// or expiry.
var handoffNext = map[Status]map[Status]bool{
	StatusPending:   {StatusCompleted: true, StatusCancelled: true, StatusExpired: true},
	StatusCompleted: {},
	StatusCancelled: {},
	StatusExpired:   {},
}

func CanTransition(from, to Status) bool {
	return handoffNext[from][to]
}

var gatewayStatus = map[string]Status{
	"PAID":      StatusPaid,
	"SUCCEEDED": StatusPaid,
	"SETTLED":   StatusPaid,
	"PENDING":   StatusPending,
	"EXPIRED":   StatusExpired,
	"FAILED":    StatusFailed,
	"CANCELLED": StatusCancelled,
	"CANCELED":  StatusCancelled,
	"VOIDED":    StatusCancelled,
}

// ParseGatewayStatus maps a raw gateway status onto an internal one. Values
// outside the table are kept, lower-cased, rather than rejected.
func ParseGatewayStatus(raw string) Status {
	raw = strings.TrimSpace(raw)
	if s, ok := gatewayStatus[strings.ToUpper(raw)]; ok {
		return s
	}
	return Status(strings.ToLower(raw))
}
