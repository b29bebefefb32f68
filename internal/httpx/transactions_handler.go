package httpx

import (
	"encoding/json"
	"net/http"

	"github.com/ariefcatur/go-storefront/internal/identity"
	"github.com/ariefcatur/go-storefront/internal/orders"
	"github.com/ariefcatur/go-storefront/internal/payment"
	"github.com/ariefcatur/go-storefront/internal/reconcile"
	"github.com/ariefcatur/go-storefront/internal/redisx"
	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
)

type transactionsHandler struct {
	Transactions orders.TransactionStore
	Payments     payment.StatusChecker
	Reconcile    *reconcile.Handler
	Cache        redis.Cmdable
}

func (h *transactionsHandler) register(r chi.Router) {
	r.Get("/transactions", h.list)
	r.Get("/transactions/{referenceId}", h.get)
	if h.Payments != nil {
		r.Post("/transactions/{referenceId}/refresh", h.refresh)
	}
}

func (h *transactionsHandler) list(w http.ResponseWriter, r *http.Request) {
	u, _ := identity.FromContext(r.Context())
	txs, err := h.Transactions.ListByBuyer(r.Context(), u.ID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if txs == nil {
		txs = []orders.Transaction{}
	}
	writeJSON(w, http.StatusOK, txs)
}

// owned reads the global record through the status cache. Records of other
// buyers are reported as missing.
func (h *transactionsHandler) owned(r *http.Request, ref string) (*orders.Transaction, error) {
	u, _ := identity.FromContext(r.Context())
	ctx := r.Context()
	key := redisx.Key(redisx.KeyTxStatus, ref)

	var tx *orders.Transaction
	if h.Cache != nil {
		if s, err := h.Cache.Get(ctx, key).Result(); err == nil && s != "" {
			var cached orders.Transaction
			if json.Unmarshal([]byte(s), &cached) == nil {
				tx = &cached
			}
		}
	}
	if tx == nil {
		var err error
		if tx, err = h.Transactions.Get(ctx, ref); err != nil {
			return nil, err
		}
		if h.Cache != nil {
			if b, err := json.Marshal(tx); err == nil {
				_ = h.Cache.Set(ctx, key, b, redisx.TTLStatusCache).Err()
			}
		}
	}
	if tx.BuyerID != u.ID {
		return nil, orders.ErrNotFound
	}
	return tx, nil
}

func (h *transactionsHandler) get(w http.ResponseWriter, r *http.Request) {
	tx, err := h.owned(r, chi.URLParam(r, "referenceId"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, tx)
}

// refresh asks the gateway for the current status and applies it the same
// way a callback would.
func (h *transactionsHandler) refresh(w http.ResponseWriter, r *http.Request) {
	tx, err := h.owned(r, chi.URLParam(r, "referenceId"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	if tx.GatewayPaymentID == "" {
		writeError(w, r, orders.Invalid("referenceId", "has no gateway payment"))
		return
	}
	raw, err := h.Payments.PaymentStatus(r.Context(), payment.Method(tx.Method), tx.GatewayPaymentID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	// intent states the gateway cannot map to a payment outcome are not stored
	if !orders.ParseGatewayStatus(raw).Known() {
		writeJSON(w, http.StatusOK, reconcile.Result{Outcome: reconcile.OutcomeStale, ReferenceID: tx.ReferenceID, Status: tx.Status})
		return
	}
	res, err := h.Reconcile.ApplyGatewayCallback(withTrace(r), tx.GatewayPaymentID, tx.ReferenceID, raw)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}
