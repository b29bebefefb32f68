package httpx

import (
	"context"
	"net/http"

	"github.com/ariefcatur/go-storefront/internal/checkout"
	"github.com/ariefcatur/go-storefront/internal/identity"
	"github.com/ariefcatur/go-storefront/internal/orders"
	"github.com/go-chi/chi/v5"
)

type ordersHandler struct {
	Orders   orders.OrderStore
	Checkout *checkout.Service
}

type orderView struct {
	orders.Order
	StatusInquiryURL string `json:"statusInquiryUrl,omitempty"`
}

func viewOrder(o orders.Order) orderView {
	v := orderView{Order: o}
	// a merchant without a usable phone simply gets no inquiry link
	v.StatusInquiryURL, _ = checkout.StatusInquiryLink(o.MerchantPhone, o.ID)
	return v
}

type cancelReq struct {
	Reason string `json:"reason" validate:"max=500"`
}

func (h *ordersHandler) register(r chi.Router) {
	r.Get("/orders", h.list)
	r.Route("/orders/{id}", func(r chi.Router) {
		r.Get("/", h.get)
		r.Post("/confirm", h.act(h.Checkout.ConfirmOrder))
		r.Post("/complete", h.act(h.Checkout.CompleteOrder))
		r.Post("/cancel", h.cancel)
		r.Post("/handoff-sent", h.handoffSent)
	})
}

func buyerAction(r *http.Request) checkout.Action {
	u, _ := identity.FromContext(r.Context())
	return checkout.Action{BuyerID: u.ID, OrderID: chi.URLParam(r, "id"), Actor: orders.ActorBuyer}
}

func (h *ordersHandler) list(w http.ResponseWriter, r *http.Request) {
	u, _ := identity.FromContext(r.Context())
	list, err := h.Orders.ListByBuyer(r.Context(), u.ID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	out := make([]orderView, 0, len(list))
	for _, o := range list {
		out = append(out, viewOrder(o))
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *ordersHandler) get(w http.ResponseWriter, r *http.Request) {
	u, _ := identity.FromContext(r.Context())
	o, err := h.Orders.Get(r.Context(), u.ID, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, viewOrder(*o))
}

type actionFunc func(ctx context.Context, a checkout.Action) (*orders.Order, error)

func (h *ordersHandler) act(fn actionFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		o, err := fn(withTrace(r), buyerAction(r))
		writeOrder(w, r, o, err)
	}
}

func (h *ordersHandler) cancel(w http.ResponseWriter, r *http.Request) {
	var req cancelReq
	if err := decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	a := buyerAction(r)
	a.Reason = req.Reason
	o, err := h.Checkout.CancelOrder(withTrace(r), a)
	writeOrder(w, r, o, err)
}

func (h *ordersHandler) handoffSent(w http.ResponseWriter, r *http.Request) {
	a := buyerAction(r)
	o, err := h.Checkout.MarkHandoffSent(withTrace(r), a.BuyerID, a.OrderID)
	writeOrder(w, r, o, err)
}

func writeOrder(w http.ResponseWriter, r *http.Request, o *orders.Order, err error) {
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, viewOrder(*o))
}
