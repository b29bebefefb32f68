package cart

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ariefcatur/go-storefront/internal/orders"
	"github.com/ariefcatur/go-storefront/internal/redisx"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
)

// Store persists one cart per key. A missing cart loads as empty.
type Store interface {
	Load(ctx context.Context, key string) (Cart, error)
	Save(ctx context.Context, key string, c Cart) error
}

// DeviceStore is the device-scoped slot, kept in Redis.
type DeviceStore struct {
	Redis redis.Cmdable
	TTL   time.Duration
}

func (s DeviceStore) Load(ctx context.Context, deviceID string) (Cart, error) {
	b, err := s.Redis.Get(ctx, redisx.Key(redisx.KeyDeviceCart, deviceID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return Cart{}, nil
	}
	if err != nil {
		return Cart{}, err
	}
	return decodeLines(b)
}

func (s DeviceStore) Save(ctx context.Context, deviceID string, c Cart) error {
	key := redisx.Key(redisx.KeyDeviceCart, deviceID)
	if c.Empty() {
		return s.Redis.Del(ctx, key).Err()
	}
	b, err := json.Marshal(c.lines)
	if err != nil {
		return err
	}
	ttl := s.TTL
	if ttl <= 0 {
		ttl = redisx.TTLDeviceCart
	}
	return s.Redis.Set(ctx, key, b, ttl).Err()
}

// BuyerStore mirrors a signed-in buyer's cart into Postgres.
type BuyerStore struct{ DB *pgxpool.Pool }

func (s BuyerStore) Load(ctx context.Context, buyerID string) (Cart, error) {
	var b []byte
	err := s.DB.QueryRow(ctx, `SELECT lines FROM carts WHERE buyer_id=$1`, buyerID).Scan(&b)
	if errors.Is(err, pgx.ErrNoRows) {
		return Cart{}, nil
	}
	if err != nil {
		return Cart{}, err
	}
	return decodeLines(b)
}

func (s BuyerStore) Save(ctx context.Context, buyerID string, c Cart) error {
	lines := c.Lines()
	if lines == nil {
		lines = []Line{}
	}
	b, err := json.Marshal(lines)
	if err != nil {
		return err
	}
	_, err = s.DB.Exec(ctx, `
		INSERT INTO carts(buyer_id, lines, updated_at) VALUES ($1,$2,now())
		ON CONFLICT (buyer_id) DO UPDATE SET lines=EXCLUDED.lines, updated_at=now()`, buyerID, b)
	return err
}

// decodeLines drops lines that could never have been added: no product id,
// no merchant or a non-positive quantity.
func decodeLines(b []byte) (Cart, error) {
	var lines []Line
	if err := json.Unmarshal(b, &lines); err != nil {
		return Cart{}, fmt.Errorf("%w: cart: %v", orders.ErrCorruptRecord, err)
	}
	var c Cart
	for _, l := range lines {
		if l.Product.ID == "" || l.Product.MerchantID == "" || l.Quantity <= 0 {
			continue
		}
		if m := c.MerchantID(); m != "" && m != l.Product.MerchantID {
			continue
		}
		c.lines = append(c.lines, l)
	}
	return c, nil
}

// MemoryStore keeps carts in process memory.
type MemoryStore struct {
	mu    sync.Mutex
	carts map[string]Cart

	FailSave error
}

func NewMemoryStore() *MemoryStore { return &MemoryStore{carts: map[string]Cart{}} }

func (s *MemoryStore) Load(_ context.Context, key string) (Cart, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return New(s.carts[key].lines...), nil
}

func (s *MemoryStore) Save(_ context.Context, key string, c Cart) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailSave != nil {
		return s.FailSave
	}
	s.carts[key] = New(c.lines...)
	return nil
}
