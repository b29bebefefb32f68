package httpx

import (
	"crypto/subtle"
	"net/http"

	"github.com/ariefcatur/go-storefront/internal/checkout"
	"github.com/ariefcatur/go-storefront/internal/orders"
	"github.com/go-chi/chi/v5"
)

const (
	headerAPIKey     = "X-API-KEY"
	headerMerchantID = "X-Merchant-ID"
)

// merchantKey guards the POS-facing routes. Without a configured key every
// request is refused.
func merchantKey(key string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got := r.Header.Get(headerAPIKey)
			if key == "" || subtle.ConstantTimeCompare([]byte(got), []byte(key)) != 1 {
				writeJSON(w, http.StatusUnauthorized, errorBody{Error: "invalid api key"})
				return
			}
			if r.Header.Get(headerMerchantID) == "" {
				writeError(w, r, orders.Invalid(headerMerchantID, "is required"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

type merchantHandler struct {
	Checkout *checkout.Service
}

func (h *merchantHandler) register(r chi.Router) {
	r.Route("/merchant/orders/{buyerId}/{orderId}", func(r chi.Router) {
		r.Post("/confirm", h.act(h.Checkout.ConfirmOrder))
		r.Post("/complete", h.act(h.Checkout.CompleteOrder))
		r.Post("/cancel", h.cancel)
	})
}

func merchantAction(r *http.Request) checkout.Action {
	return checkout.Action{
		BuyerID:    chi.URLParam(r, "buyerId"),
		OrderID:    chi.URLParam(r, "orderId"),
		Actor:      orders.ActorMerchant,
		MerchantID: r.Header.Get(headerMerchantID),
	}
}

func (h *merchantHandler) act(fn actionFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		o, err := fn(withTrace(r), merchantAction(r))
		writeOrder(w, r, o, err)
	}
}

func (h *merchantHandler) cancel(w http.ResponseWriter, r *http.Request) {
	var req cancelReq
	if err := decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	a := merchantAction(r)
	a.Reason = req.Reason
	o, err := h.Checkout.CancelOrder(withTrace(r), a)
	writeOrder(w, r, o, err)
}
