package httpx

import (
	"net/http"
	"strings"

	"github.com/ariefcatur/go-storefront/internal/catalog"
	"github.com/ariefcatur/go-storefront/internal/orders"
	"github.com/go-chi/chi/v5"
)

type catalogHandler struct {
	Catalog catalog.Reader
}

type productView struct {
	catalog.ProductSnapshot
	StockStatus string `json:"stockStatus"`
}

func viewProducts(ps []catalog.ProductSnapshot) []productView {
	out := make([]productView, 0, len(ps))
	for _, p := range ps {
		out = append(out, productView{ProductSnapshot: p, StockStatus: catalog.StockStatus(p.Stock)})
	}
	return out
}

func (h *catalogHandler) register(r chi.Router) {
	r.Get("/merchants", h.listMerchants)
	r.Get("/merchants/{id}", h.getMerchant)
	r.Get("/merchants/{id}/products", h.merchantProducts)
	r.Get("/products/{id}", h.getProduct)
}

func (h *catalogHandler) listMerchants(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := catalog.Filter{Category: q.Get("category")}
	for _, t := range strings.Split(q.Get("tags"), ",") {
		if t = strings.TrimSpace(t); t != "" {
			f.Tags = append(f.Tags, t)
		}
	}
	ms, err := h.Catalog.ListMerchants(r.Context(), f)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if ms == nil {
		ms = []catalog.Merchant{}
	}
	writeJSON(w, http.StatusOK, ms)
}

func (h *catalogHandler) getMerchant(w http.ResponseWriter, r *http.Request) {
	m, err := h.Catalog.GetMerchant(r.Context(), chi.URLParam(r, "id"))
	if err == nil && m == nil {
		err = orders.ErrNotFound
	}
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, m)
}

func (h *catalogHandler) merchantProducts(w http.ResponseWriter, r *http.Request) {
	ps, err := h.Catalog.ProductsByMerchant(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	catalog.SortForListing(ps)
	writeJSON(w, http.StatusOK, viewProducts(ps))
}

func (h *catalogHandler) getProduct(w http.ResponseWriter, r *http.Request) {
	p, err := h.Catalog.GetProduct(r.Context(), chi.URLParam(r, "id"))
	if err == nil && p == nil {
		err = orders.ErrNotFound
	}
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, productView{ProductSnapshot: *p, StockStatus: catalog.StockStatus(p.Stock)})
}
