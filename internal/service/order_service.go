package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"commerce-api/config"
	"commerce-api/internal/apperr"
	"commerce-api/internal/broker"
	"commerce-api/internal/models"
	"commerce-api/internal/pricing"
	"commerce-api/internal/store"
	"commerce-api/internal/util"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// OrderStore is the persistence surface the order engine needs. *store.Store
// satisfies it; tests use an in-memory fake.
type OrderStore interface {
	GetActiveProductsByIDs(ctx context.Context, ids []string) ([]models.Product, error)
	GetAddressForUser(ctx context.Context, addressID, userID string) (*models.Address, error)
	NextOrderNumber(ctx context.Context) (int64, error)
	CreateOrder(ctx context.Context, order *models.Order) error
	GetOrderByID(ctx context.Context, id string) (*models.Order, error)
	ListOrders(ctx context.Context, userID string, page, limit int) ([]models.Order, int, error)
	UpdateOrderStatus(ctx context.Context, orderID string, status models.Status) (bool, error)
}

// OrderService implements checkout and order reads.
type OrderService struct {
	store     OrderStore
	publisher *broker.EventPublisher
	business  config.BusinessConfig
	logger    *zap.Logger
}

// NewOrderService creates a new order service.
func NewOrderService(store OrderStore, publisher *broker.EventPublisher, business config.BusinessConfig) *OrderService {
	return &OrderService{
		store:     store,
		publisher: publisher,
		business:  business,
		logger:    util.NamedLogger("orders"),
	}
}

// CreateOrderRequest is the checkout payload.
type CreateOrderRequest struct {
	Items           []OrderItemRequest      `json:"items" binding:"required,min=1,dive"`
	AddressID       string                  `json:"addressId,omitempty"`
	ShippingAddress *ShippingAddressRequest `json:"shippingAddress,omitempty"`
	Notes           string                  `json:"notes,omitempty"`
}

// OrderItemRequest is one cart line.
type OrderItemRequest struct {
	ProductID string `json:"productId" binding:"required"`
	Quantity  int    `json:"quantity" binding:"required,min=1"`
	Grind     string `json:"grind,omitempty"`
}

// ShippingAddressRequest is an inline shipping address.
type ShippingAddressRequest struct {
	Name    string `json:"name" binding:"required"`
	Street  string `json:"street" binding:"required"`
	City    string `json:"city" binding:"required"`
	State   string `json:"state" binding:"required"`
	Country string `json:"country" binding:"required"`
	Zip     string `json:"zip" binding:"required"`
}

// OrderList is a page of orders.
type OrderList struct {
	Orders     []models.Order `json:"orders"`
	Pagination Pagination     `json:"pagination"`
}

// Pagination describes a page of results.
type Pagination struct {
	Total      int `json:"total"`
	Page       int `json:"page"`
	Limit      int `json:"limit"`
	TotalPages int `json:"totalPages"`
}

// CreateOrder validates the cart against the catalog, prices it with unit
// prices snapshotted now, resolves the shipping address, and persists order,
// items and stock decrements in one transaction.
func (s *OrderService) CreateOrder(ctx context.Context, userID string, req *CreateOrderRequest) (*models.Order, error) {
	ctx, span := util.StartSpan(ctx, "OrderService.CreateOrder")
	defer span.End()

	start := time.Now()
	defer func() {
		util.CheckoutLatency.Observe(time.Since(start).Seconds())
	}()

	if len(req.Items) == 0 {
		util.OrdersFailedTotal.WithLabelValues("empty_cart").Inc()
		return nil, apperr.Validation("at least one item is required")
	}

	products, err := s.loadProducts(ctx, req.Items)
	if err != nil {
		util.OrdersFailedTotal.WithLabelValues("unavailable_product").Inc()
		return nil, err
	}

	lines := make([]pricing.Line, 0, len(req.Items))
	items := make([]models.OrderItem, 0, len(req.Items))
	for _, item := range req.Items {
		product := products[item.ProductID]
		if product.Stock < item.Quantity {
			util.OrdersFailedTotal.WithLabelValues("insufficient_stock").Inc()
			return nil, apperr.InsufficientStock(product.Name)
		}

		var grind *string
		if item.Grind != "" {
			g := item.Grind
			grind = &g
		}

		lines = append(lines, pricing.Line{UnitPrice: product.Price, Quantity: item.Quantity})
		items = append(items, models.OrderItem{
			ID:          uuid.NewString(),
			ProductID:   item.ProductID,
			Quantity:    item.Quantity,
			UnitPrice:   product.Price,
			Grind:       grind,
			Subtotal:    product.Price * int64(item.Quantity),
			ProductName: product.Name,
		})
	}

	quote := pricing.Calculate(lines, s.business.ShippingCost, s.business.FreeShippingThreshold)

	shipping, err := s.resolveShippingAddress(ctx, userID, req)
	if err != nil {
		util.OrdersFailedTotal.WithLabelValues("address").Inc()
		return nil, err
	}

	seq, err := s.store.NextOrderNumber(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to generate order number: %w", err)
	}

	var notes *string
	if req.Notes != "" {
		n := req.Notes
		notes = &n
	}

	order := &models.Order{
		ID:              uuid.NewString(),
		OrderNumber:     fmt.Sprintf("%s-%04d", s.business.OrderNumberPrefix, seq),
		UserID:          userID,
		Status:          models.StatusPending,
		Subtotal:        quote.Subtotal,
		ShippingCost:    quote.ShippingCost,
		Discount:        0,
		Total:           quote.Total,
		Notes:           notes,
		ShippingAddress: *shipping,
		Items:           items,
	}

	if err := s.store.CreateOrder(ctx, order); err != nil {
		if errors.Is(err, store.ErrInsufficientStock) {
			// Lost the stock race between the precheck and the decrement;
			// the transaction rolled everything back.
			util.OrdersFailedTotal.WithLabelValues("insufficient_stock").Inc()
			return nil, apperr.InsufficientStock(raceLoserName(err, products, items))
		}
		util.OrdersFailedTotal.WithLabelValues("db_error").Inc()
		return nil, fmt.Errorf("failed to create order: %w", err)
	}

	util.OrdersCreatedTotal.Inc()
	s.logger.Info("Order created",
		zap.String("order_id", order.ID),
		zap.String("order_number", order.OrderNumber),
		zap.Int64("total", order.Total))

	if err := s.publisher.PublishOrderCreated(ctx, order); err != nil {
		s.logger.Error("Failed to publish order.created event", zap.Error(err))
	}

	return order, nil
}

// loadProducts loads the referenced active products and fails when any
// requested id is missing or inactive.
func (s *OrderService) loadProducts(ctx context.Context, items []OrderItemRequest) (map[string]models.Product, error) {
	seen := make(map[string]bool, len(items))
	ids := make([]string, 0, len(items))
	for _, item := range items {
		if !seen[item.ProductID] {
			seen[item.ProductID] = true
			ids = append(ids, item.ProductID)
		}
	}

	products, err := s.store.GetActiveProductsByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	if len(products) < len(ids) {
		return nil, apperr.ProductUnavailable()
	}

	byID := make(map[string]models.Product, len(products))
	for _, p := range products {
		byID[p.ID] = p
	}
	return byID, nil
}

// resolveShippingAddress returns the snapshot for the order: a saved address
// owned by the user, an inline payload, or an error when neither is present.
func (s *OrderService) resolveShippingAddress(ctx context.Context, userID string, req *CreateOrderRequest) (*models.ShippingAddress, error) {
	switch {
	case req.AddressID != "":
		address, err := s.store.GetAddressForUser(ctx, req.AddressID, userID)
		if err != nil {
			return nil, err
		}
		if address == nil {
			return nil, apperr.AddressNotFound()
		}
		return &models.ShippingAddress{
			Name:    address.Name,
			Street:  address.Street,
			City:    address.City,
			State:   address.State,
			Country: address.Country,
			Zip:     address.Zip,
		}, nil

	case req.ShippingAddress != nil:
		a := req.ShippingAddress
		return &models.ShippingAddress{
			Name:    a.Name,
			Street:  a.Street,
			City:    a.City,
			State:   a.State,
			Country: a.Country,
			Zip:     a.Zip,
		}, nil

	default:
		return nil, apperr.MissingShippingAddress()
	}
}

// raceLoserName maps the product id inside a stock conflict error back to a
// product name for the client-facing message.
func raceLoserName(err error, products map[string]models.Product, items []models.OrderItem) string {
	for _, item := range items {
		if p, ok := products[item.ProductID]; ok && strings.Contains(err.Error(), item.ProductID) {
			return p.Name
		}
	}
	return "one or more products"
}

// GetOrders lists orders for the caller; admins see everyone's.
func (s *OrderService) GetOrders(ctx context.Context, userID, role string, page, limit int) (*OrderList, error) {
	ctx, span := util.StartSpan(ctx, "OrderService.GetOrders")
	defer span.End()

	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 10
	}

	scope := userID
	if role == models.RoleAdmin {
		scope = ""
	}

	orders, total, err := s.store.ListOrders(ctx, scope, page, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}

	totalPages := (total + limit - 1) / limit
	return &OrderList{
		Orders: orders,
		Pagination: Pagination{
			Total:      total,
			Page:       page,
			Limit:      limit,
			TotalPages: totalPages,
		},
	}, nil
}

// GetOrder retrieves one order, scoped to its owner unless the caller is an
// admin. Cross-tenant ids read as not found rather than forbidden so order
// existence is not leaked.
func (s *OrderService) GetOrder(ctx context.Context, orderID, userID, role string) (*models.Order, error) {
	ctx, span := util.StartSpan(ctx, "OrderService.GetOrder")
	defer span.End()

	order, err := s.store.GetOrderByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, apperr.OrderNotFound()
	}
	if role != models.RoleAdmin && order.UserID != userID {
		return nil, apperr.OrderNotFound()
	}
	return order, nil
}

// UpdateStatus overwrites an order's status (admin operation). The requested
// status must be a member of the enum; beyond that any overwrite is allowed.
func (s *OrderService) UpdateStatus(ctx context.Context, orderID string, status models.Status) (*models.Order, error) {
	ctx, span := util.StartSpan(ctx, "OrderService.UpdateStatus")
	defer span.End()

	if !models.ValidStatus(status) {
		return nil, apperr.Validation(fmt.Sprintf("unknown status %q", status))
	}

	order, err := s.store.GetOrderByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, apperr.OrderNotFound()
	}

	previous := order.Status
	updated, err := s.store.UpdateOrderStatus(ctx, orderID, status)
	if err != nil {
		return nil, fmt.Errorf("failed to update order status: %w", err)
	}
	if !updated {
		return nil, apperr.OrderNotFound()
	}

	util.OrderStatusChangesTotal.WithLabelValues(string(status)).Inc()
	s.logger.Info("Order status updated",
		zap.String("order_id", orderID),
		zap.String("from", string(previous)),
		zap.String("to", string(status)))

	if err := s.publisher.PublishStatusChanged(ctx, orderID, previous, status); err != nil {
		s.logger.Error("Failed to publish order.status_changed event", zap.Error(err))
	}

	order.Status = status
	return order, nil
}
