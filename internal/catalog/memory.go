package catalog

import (
	"context"
	"sync"
)

// Memory is a Reader over fixed data. Everything stored is treated as
// visible; tests and local fixtures use it.
type Memory struct {
	mu        sync.RWMutex
	products  map[string]ProductSnapshot
	merchants map[string]Merchant
}

var _ Reader = (*Memory)(nil)

func NewMemory() *Memory {
	return &Memory{products: map[string]ProductSnapshot{}, merchants: map[string]Merchant{}}
}

func (m *Memory) PutMerchant(mc Merchant) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.merchants[mc.ID] = mc
}

func (m *Memory) PutProduct(p ProductSnapshot) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.products[p.ID] = p
}

func (m *Memory) GetProduct(_ context.Context, id string) (*ProductSnapshot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.products[id]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

func (m *Memory) ProductsByMerchant(_ context.Context, merchantID string) ([]ProductSnapshot, error) {
	m.mu.RLock()
	var out []ProductSnapshot
	for _, p := range m.products {
		if p.MerchantID == merchantID {
			out = append(out, p)
		}
	}
	m.mu.RUnlock()
	SortForListing(out)
	return out, nil
}

func (m *Memory) GetMerchant(_ context.Context, id string) (*Merchant, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	mc, ok := m.merchants[id]
	if !ok {
		return nil, nil
	}
	return &mc, nil
}

func (m *Memory) ListMerchants(_ context.Context, f Filter) ([]Merchant, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []Merchant
	for _, mc := range m.merchants {
		if f.match(mc) {
			out = append(out, mc)
		}
	}
	sortMerchants(out)
	return out, nil
}
