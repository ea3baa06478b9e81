// Package cart holds the shopping cart: an in-memory list of products that mirrors one
// key-value record per product.
package cart

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"sync"

	"go.uber.org/zap"

	"goflare.io/gomarket/event"
	"goflare.io/gomarket/metrics"
	"goflare.io/gomarket/models"
	"goflare.io/gomarket/models/enum"
	"goflare.io/gomarket/storage"
)

const DefaultNamespace = "GoMarket"

var (
	ErrInvalidProduct = errors.New("cart: invalid product")
	ErrClosed         = errors.New("cart: store is closed")
)

const (
	opAdd       = "add"
	opIncrement = "increment"
	opDecrement = "decrement"
	opRemove    = "remove"
	opClear     = "clear"
)

// Store owns the cart's products. Mutations are applied to memory under a single lock and
// handed to the Persister, keyed by storage key, so the last write for a product always
// carries its latest quantity.
type Store struct {
	kv        storage.KeyValueStore
	persister Persister
	publisher event.Publisher
	metrics   *metrics.CartMetrics
	logger    *zap.Logger
	keyPrefix string

	mu       sync.RWMutex
	products []models.Product
	version  uint64
	closed   bool
	carried  error

	snapshot        []models.Product
	snapshotVersion uint64
}

type Option func(*Store)

// WithNamespace sets the app namespace used in storage keys (@<namespace>Product:<id>).
func WithNamespace(namespace string) Option {
	return func(s *Store) {
		if namespace != "" {
			s.keyPrefix = keyPrefix(namespace)
		}
	}
}

func WithPersister(p Persister) Option {
	return func(s *Store) {
		if p != nil {
			s.persister = p
		}
	}
}

func WithPublisher(p event.Publisher) Option {
	return func(s *Store) {
		if p != nil {
			s.publisher = p
		}
	}
}

func WithMetrics(m *metrics.CartMetrics) Option {
	return func(s *Store) {
		s.metrics = m
	}
}

func NewStore(kv storage.KeyValueStore, logger *zap.Logger, opts ...Option) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Store{
		kv:        kv,
		persister: NewInlinePersister(),
		publisher: event.NopPublisher{},
		logger:    logger,
		keyPrefix: keyPrefix(DefaultNamespace),
		products:  []models.Product{},
		version:   1,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func keyPrefix(namespace string) string {
	return "@" + namespace + "Product:"
}

// Key returns the storage key of product id under namespace.
func Key(namespace, id string) string {
	return keyPrefix(namespace) + id
}

func (s *Store) key(id string) string {
	return s.keyPrefix + id
}

// Merge computes the entry AddToCart stores: the input's fields with the quantity bumped
// past the existing entry's, or 1 when the product is new. Neither argument is modified.
func Merge(existing *models.Product, input models.Product) models.Product {
	next := input
	if existing != nil {
		next.Quantity = existing.Quantity + 1
	} else {
		next.Quantity = 1
	}
	return next
}

// Load replaces the in-memory cart with every product record found in storage.
// Records outside the namespace are ignored. Unreadable records, and records whose key is
// not the key of the product they hold, are skipped with a warning.
func (s *Store) Load(ctx context.Context) error {
	keys, err := s.kv.GetAllKeys(ctx)
	if err != nil {
		s.logger.Error("Failed to list cart keys", zap.Error(err))
		return fmt.Errorf("load cart keys: %w", err)
	}

	owned := make([]string, 0, len(keys))
	for _, key := range keys {
		if strings.HasPrefix(key, s.keyPrefix) {
			owned = append(owned, key)
		}
	}

	items, err := s.kv.MultiGet(ctx, owned)
	if err != nil {
		s.logger.Error("Failed to read cart records", zap.Int("count", len(owned)), zap.Error(err))
		return fmt.Errorf("load cart records: %w", err)
	}

	products := make([]models.Product, 0, len(items))
	for _, item := range items {
		if !item.Found {
			continue
		}
		product, err := models.UnmarshalProduct(item.Value)
		if err != nil {
			s.logger.Warn("Skipping unreadable cart record", zap.String("key", item.Key), zap.Error(err))
			s.metrics.RecordLoadSkipped()
			continue
		}
		// 只接受 key 與 id 一致的紀錄，否則之後刪除不到
		if item.Key != s.key(product.ID) {
			s.logger.Warn("Skipping cart record stored under another key",
				zap.String("key", item.Key),
				zap.String("product_id", product.ID))
			s.metrics.RecordLoadSkipped()
			continue
		}
		products = append(products, *product)
	}

	s.mu.Lock()
	s.products = products
	s.version++
	s.mu.Unlock()

	s.metrics.SetProducts(len(products))
	s.logger.Info("Cart loaded", zap.Int("products", len(products)))
	return nil
}

// Products returns the current cart. The slice is shared between callers until the next
// change and must not be modified.
func (s *Store) Products() []models.Product {
	s.mu.RLock()
	if s.snapshot != nil && s.snapshotVersion == s.version {
		snapshot := s.snapshot
		s.mu.RUnlock()
		return snapshot
	}
	s.mu.RUnlock()

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.snapshot == nil || s.snapshotVersion != s.version {
		s.snapshot = append(make([]models.Product, 0, len(s.products)), s.products...)
		s.snapshotVersion = s.version
	}
	return s.snapshot
}

// Product returns the entry for id.
func (s *Store) Product(id string) (models.Product, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if p := s.find(id); p != nil {
		return *p, true
	}
	return models.Product{}, false
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.products)
}

func (s *Store) AddToCart(ctx context.Context, product models.Product) error {
	if product.ID == "" {
		return fmt.Errorf("%w: %w", ErrInvalidProduct, models.ErrProductIDRequired)
	}
	if math.IsNaN(product.Price) || math.IsInf(product.Price, 0) || product.Price < 0 {
		return fmt.Errorf("%w: price %v", ErrInvalidProduct, product.Price)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}

	next := Merge(s.find(product.ID), product)
	return s.put(ctx, next, enum.CartEventTypeProductAdded, opAdd)
}

// Increment adds one to the quantity of id. Unknown ids are ignored.
func (s *Store) Increment(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}

	existing := s.find(id)
	if existing == nil {
		return nil
	}

	next := *existing
	next.Quantity++
	return s.put(ctx, next, enum.CartEventTypeProductIncremented, opIncrement)
}

// Decrement takes one from the quantity of id, removing the product when it would reach
// zero. Unknown ids are ignored.
func (s *Store) Decrement(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}

	existing := s.find(id)
	if existing == nil {
		return nil
	}

	if existing.Quantity <= 1 {
		s.remove(ctx, *existing)
		return nil
	}

	next := *existing
	next.Quantity--
	return s.put(ctx, next, enum.CartEventTypeProductDecremented, opDecrement)
}

// Clear empties the cart and deletes every record it owns. It waits for pending writes
// before deleting so no earlier write can bring a product back.
func (s *Store) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}

	if err := s.persister.Flush(ctx); err != nil {
		s.carried = errors.Join(s.carried, err)
	}

	keys := make([]string, 0, len(s.products))
	for _, p := range s.products {
		keys = append(keys, s.key(p.ID))
	}

	if err := s.kv.MultiRemove(ctx, keys); err != nil {
		s.logger.Error("Failed to clear cart", zap.Int("count", len(keys)), zap.Error(err))
		s.metrics.RecordPersistFailure()
		return fmt.Errorf("clear cart: %w", err)
	}

	s.products = []models.Product{}
	s.version++
	s.metrics.RecordMutation(opClear)
	s.metrics.SetProducts(0)
	s.publish(ctx, models.NewCartEvent(enum.CartEventTypeCartCleared, models.Product{}))
	return nil
}

// Flush waits for pending writes and returns every write error since the previous Flush.
func (s *Store) Flush(ctx context.Context) error {
	err := s.persister.Flush(ctx)

	s.mu.Lock()
	carried := s.carried
	s.carried = nil
	s.mu.Unlock()

	return errors.Join(carried, err)
}

// Close flushes pending writes and rejects further mutations.
func (s *Store) Close(ctx context.Context) error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()

	return s.Flush(ctx)
}

// find returns a copy of the entry for id. Callers hold s.mu.
func (s *Store) find(id string) *models.Product {
	for i := range s.products {
		if s.products[i].ID == id {
			p := s.products[i]
			return &p
		}
	}
	return nil
}

// without returns the products other than id in a new slice. Callers hold s.mu.
func (s *Store) without(id string) []models.Product {
	products := make([]models.Product, 0, len(s.products)+1)
	for _, p := range s.products {
		if p.ID != id {
			products = append(products, p)
		}
	}
	return products
}

// put stores product in memory and schedules its write. Callers hold s.mu.
func (s *Store) put(ctx context.Context, product models.Product, eventType enum.CartEventType, op string) error {
	value, err := product.Marshal()
	if err != nil {
		s.logger.Error("Failed to encode product", zap.String("product_id", product.ID), zap.Error(err))
		return fmt.Errorf("%w: %w", ErrInvalidProduct, err)
	}

	s.products = append(s.without(product.ID), product)
	s.version++
	s.metrics.RecordMutation(op)
	s.metrics.SetProducts(len(s.products))

	key := s.key(product.ID)
	s.persister.Submit(ctx, key, func(ctx context.Context) error {
		if err := s.kv.SetItem(ctx, key, value); err != nil {
			s.logger.Error("Failed to persist product", zap.String("key", key), zap.Error(err))
			s.metrics.RecordPersistFailure()
			return fmt.Errorf("persist product %s: %w", product.ID, err)
		}
		s.publish(ctx, models.NewCartEvent(eventType, product))
		return nil
	})
	return nil
}

// remove drops product from memory and schedules the deletion of its record. Callers hold s.mu.
func (s *Store) remove(ctx context.Context, product models.Product) {
	s.products = s.without(product.ID)
	s.version++
	s.metrics.RecordMutation(opRemove)
	s.metrics.SetProducts(len(s.products))

	key := s.key(product.ID)
	s.persister.Submit(ctx, key, func(ctx context.Context) error {
		if err := s.kv.RemoveItem(ctx, key); err != nil {
			s.logger.Error("Failed to remove product", zap.String("key", key), zap.Error(err))
			s.metrics.RecordPersistFailure()
			return fmt.Errorf("remove product %s: %w", product.ID, err)
		}
		s.publish(ctx, models.NewCartEvent(enum.CartEventTypeProductRemoved, models.Product{ID: product.ID}))
		return nil
	})
}

func (s *Store) publish(ctx context.Context, ev *models.CartEvent) {
	if err := s.publisher.Publish(ctx, ev); err != nil {
		// 事件發送失敗不影響已寫入的資料
		s.logger.Warn("Failed to publish cart event",
			zap.String("event_type", string(ev.Type)),
			zap.String("product_id", ev.ProductID),
			zap.Error(err))
	}
}
