package httpx

import (
	"net/http"

	"github.com/ariefcatur/go-storefront/internal/cart"
	"github.com/ariefcatur/go-storefront/internal/identity"
	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
)

const headerDeviceID = "X-Device-ID"

type cartHandler struct {
	Carts *cart.Manager
}

type cartView struct {
	MerchantID string          `json:"merchantId,omitempty"`
	Lines      []cart.Line     `json:"lines"`
	TotalItems int             `json:"totalItems"`
	TotalPrice decimal.Decimal `json:"totalPrice"`
}

func viewCart(c cart.Cart) cartView {
	lines := c.Lines()
	if lines == nil {
		lines = []cart.Line{}
	}
	return cartView{
		MerchantID: c.MerchantID(),
		Lines:      lines,
		TotalItems: c.TotalItems(),
		TotalPrice: c.TotalPrice(),
	}
}

type addItemReq struct {
	ProductID string `json:"productId" validate:"required"`
	Quantity  int    `json:"quantity" validate:"gt=0"`
}

type setQuantityReq struct {
	Quantity int `json:"quantity"`
}

// cartOwner takes the device slot from the header and the buyer, if any,
// from the verified identity.
func cartOwner(r *http.Request) cart.Owner {
	o := cart.Owner{DeviceID: r.Header.Get(headerDeviceID)}
	if u, ok := identity.FromContext(r.Context()); ok {
		o.BuyerID = u.ID
	}
	return o
}

func (h *cartHandler) register(r chi.Router) {
	r.Route("/cart", func(r chi.Router) {
		r.Get("/", h.get)
		r.Delete("/", h.clear)
		r.Post("/items", h.add)
		r.Patch("/items/{productId}", h.update)
		r.Delete("/items/{productId}", h.remove)
		r.Post("/attach", h.attach)
	})
}

func (h *cartHandler) respond(w http.ResponseWriter, r *http.Request, c cart.Cart, err error) {
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, viewCart(c))
}

func (h *cartHandler) get(w http.ResponseWriter, r *http.Request) {
	c, err := h.Carts.Load(r.Context(), cartOwner(r))
	h.respond(w, r, c, err)
}

func (h *cartHandler) add(w http.ResponseWriter, r *http.Request) {
	var req addItemReq
	if err := decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	c, err := h.Carts.Add(r.Context(), cartOwner(r), req.ProductID, req.Quantity)
	h.respond(w, r, c, err)
}

func (h *cartHandler) update(w http.ResponseWriter, r *http.Request) {
	var req setQuantityReq
	if err := decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	c, err := h.Carts.Update(r.Context(), cartOwner(r), chi.URLParam(r, "productId"), req.Quantity)
	h.respond(w, r, c, err)
}

func (h *cartHandler) remove(w http.ResponseWriter, r *http.Request) {
	c, err := h.Carts.Remove(r.Context(), cartOwner(r), chi.URLParam(r, "productId"))
	h.respond(w, r, c, err)
}

func (h *cartHandler) clear(w http.ResponseWriter, r *http.Request) {
	if err := h.Carts.Clear(r.Context(), cartOwner(r)); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *cartHandler) attach(w http.ResponseWriter, r *http.Request) {
	c, err := h.Carts.Attach(r.Context(), cartOwner(r))
	h.respond(w, r, c, err)
}
