package httpx

import (
	"crypto/subtle"
	"net/http"

	"github.com/ariefcatur/go-storefront/internal/reconcile"
	"github.com/go-chi/chi/v5"
)

const CallbackPath = "/payments/xendit/callback"

type webhookHandler struct {
	Reconcile *reconcile.Handler
	Token     string // empty disables the check
}

// callbackReq is the subset of the gateway payload the reconciler reads.
type callbackReq struct {
	ID          string `json:"id"`
	ReferenceID string `json:"reference_id" validate:"required"`
	Status      string `json:"status" validate:"required"`
}

func (h *webhookHandler) register(r chi.Router) {
	r.Post(CallbackPath, h.callback)
}

func (h *webhookHandler) callback(w http.ResponseWriter, r *http.Request) {
	if h.Token != "" {
		got := r.Header.Get("x-callback-token")
		if subtle.ConstantTimeCompare([]byte(got), []byte(h.Token)) != 1 {
			writeJSON(w, http.StatusUnauthorized, errorBody{Error: "invalid callback token"})
			return
		}
	}
	var req callbackReq
	if err := decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	res, err := h.Reconcile.ApplyGatewayCallback(withTrace(r), req.ID, req.ReferenceID, req.Status)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}
