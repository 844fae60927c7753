package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"commerce-api/internal/models"
	"commerce-api/internal/payments"
	"commerce-api/internal/store"
)

// fakeStore is an in-memory stand-in for *store.Store. It mirrors the
// transactional contract of the real store: order creation either applies
// every effect or none.
type fakeStore struct {
	mu        sync.Mutex
	products  map[string]*models.Product
	addresses map[string]*models.Address
	orders    map[string]*models.Order
	processed map[string]string
	seq       int64
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		products:  map[string]*models.Product{},
		addresses: map[string]*models.Address{},
		orders:    map[string]*models.Order{},
		processed: map[string]string{},
	}
}

func (f *fakeStore) addProduct(p models.Product) {
	f.products[p.ID] = &p
}

func (f *fakeStore) addAddress(a models.Address) {
	f.addresses[a.ID] = &a
}

func (f *fakeStore) GetActiveProductsByIDs(_ context.Context, ids []string) ([]models.Product, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Product
	for _, id := range ids {
		if p, ok := f.products[id]; ok && p.IsActive {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (f *fakeStore) GetAddressForUser(_ context.Context, addressID, userID string) (*models.Address, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.addresses[addressID]
	if !ok || a.UserID != userID {
		return nil, nil
	}
	copied := *a
	return &copied, nil
}

func (f *fakeStore) NextOrderNumber(_ context.Context) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seq++
	return f.seq, nil
}

func (f *fakeStore) CreateOrder(_ context.Context, order *models.Order) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	// All decrements are validated before any is applied, matching the
	// all-or-nothing transaction of the real store.
	for _, item := range order.Items {
		p, ok := f.products[item.ProductID]
		if !ok || p.Stock < item.Quantity {
			return fmt.Errorf("product %s: %w", item.ProductID, store.ErrInsufficientStock)
		}
	}
	for _, item := range order.Items {
		f.products[item.ProductID].Stock -= item.Quantity
	}

	order.CreatedAt = time.Now()
	order.UpdatedAt = order.CreatedAt
	copied := *order
	f.orders[order.ID] = &copied
	return nil
}

func (f *fakeStore) GetOrderByID(_ context.Context, id string) (*models.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	o, ok := f.orders[id]
	if !ok {
		return nil, nil
	}
	copied := *o
	return &copied, nil
}

func (f *fakeStore) GetPendingOrderForUser(_ context.Context, orderID, userID string) (*models.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	o, ok := f.orders[orderID]
	if !ok || o.UserID != userID || o.Status != models.StatusPending {
		return nil, nil
	}
	copied := *o
	return &copied, nil
}

func (f *fakeStore) ListOrders(_ context.Context, userID string, page, limit int) ([]models.Order, int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var all []models.Order
	for _, o := range f.orders {
		if userID == "" || o.UserID == userID {
			all = append(all, *o)
		}
	}
	total := len(all)
	start := (page - 1) * limit
	if start >= total {
		return []models.Order{}, total, nil
	}
	end := start + limit
	if end > total {
		end = total
	}
	return all[start:end], total, nil
}

func (f *fakeStore) UpdateOrderStatus(_ context.Context, orderID string, status models.Status) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	o, ok := f.orders[orderID]
	if !ok {
		return false, nil
	}
	o.Status = status
	return true, nil
}

func (f *fakeStore) TransitionOrderStatus(_ context.Context, orderID string, from, to models.Status) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	o, ok := f.orders[orderID]
	if !ok || o.Status != from {
		return false, nil
	}
	o.Status = to
	return true, nil
}

func (f *fakeStore) MarkOrderPaid(_ context.Context, orderID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	o, ok := f.orders[orderID]
	if !ok || o.Status != models.StatusPending {
		return false, nil
	}
	o.Status = models.StatusConfirmed
	now := time.Now()
	o.PaidAt = &now
	return true, nil
}

func (f *fakeStore) SetPaymentIntent(_ context.Context, orderID, intentID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	o, ok := f.orders[orderID]
	if !ok {
		return errors.New("order not found")
	}
	o.PaymentIntentID = &intentID
	return nil
}

func (f *fakeStore) IsEventProcessed(_ context.Context, eventID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.processed[eventID]
	return ok, nil
}

func (f *fakeStore) MarkEventProcessed(_ context.Context, eventID, eventType string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.processed[eventID] = eventType
	return nil
}

// recordingProducer captures published events instead of talking to Kafka.
type recordingProducer struct {
	mu     sync.Mutex
	events []interface{}
}

func (r *recordingProducer) PublishEvent(_ context.Context, _ string, event interface{}) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return nil
}

// fakeGateway scripts payment processor behavior.
type fakeGateway struct {
	lastAmount   int64
	lastMetadata map[string]string
	intentErr    error

	event     *payments.Event
	verifyErr error
}

func (g *fakeGateway) CreateIntent(_ context.Context, amount int64, metadata map[string]string) (*payments.Intent, error) {
	if g.intentErr != nil {
		return nil, g.intentErr
	}
	g.lastAmount = amount
	g.lastMetadata = metadata
	return &payments.Intent{ID: "pi_fake_1", ClientSecret: "pi_fake_1_secret", Amount: amount}, nil
}

func (g *fakeGateway) VerifyEvent(_ []byte, _ string) (*payments.Event, error) {
	if g.verifyErr != nil {
		return nil, g.verifyErr
	}
	return g.event, nil
}

// fakeEventCache is an in-memory SETNX.
type fakeEventCache struct {
	mu   sync.Mutex
	seen map[string]bool
}

func newFakeEventCache() *fakeEventCache {
	return &fakeEventCache{seen: map[string]bool{}}
}

func (c *fakeEventCache) WasEventSeen(_ context.Context, eventID string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.seen[eventID], nil
}

func (c *fakeEventCache) MarkEventSeen(_ context.Context, eventID string, _ time.Duration) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.seen[eventID] {
		return false, nil
	}
	c.seen[eventID] = true
	return true, nil
}
