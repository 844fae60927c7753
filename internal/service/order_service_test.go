package service

import (
	"context"
	"testing"

	"commerce-api/config"
	"commerce-api/internal/apperr"
	"commerce-api/internal/broker"
	"commerce-api/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testBusiness = config.BusinessConfig{
	ShippingCost:          8000,
	FreeShippingThreshold: 100000,
	OrderNumberPrefix:     "LSC",
}

func newOrderFixture() (*OrderService, *fakeStore, *recordingProducer) {
	fs := newFakeStore()
	producer := &recordingProducer{}
	svc := NewOrderService(fs, broker.NewEventPublisher(producer), testBusiness)
	return svc, fs, producer
}

func inlineAddress() *ShippingAddressRequest {
	return &ShippingAddressRequest{
		Name:    "Ana Gomez",
		Street:  "Calle 10 #5-51",
		City:    "Medellin",
		State:   "Antioquia",
		Country: "CO",
		Zip:     "050021",
	}
}

func TestCreateOrderComputesTotalsAndDecrementsStock(t *testing.T) {
	svc, fs, producer := newOrderFixture()
	fs.addProduct(models.Product{ID: "p1", Name: "Huila Washed 340g", Price: 38000, Stock: 48, IsActive: true})

	order, err := svc.CreateOrder(context.Background(), "user-1", &CreateOrderRequest{
		Items:           []OrderItemRequest{{ProductID: "p1", Quantity: 2, Grind: "espresso"}},
		ShippingAddress: inlineAddress(),
	})
	require.NoError(t, err)

	assert.Equal(t, int64(76000), order.Subtotal)
	assert.Equal(t, int64(8000), order.ShippingCost)
	assert.Equal(t, int64(84000), order.Total)
	assert.Equal(t, models.StatusPending, order.Status)
	assert.Equal(t, "LSC-0001", order.OrderNumber)
	assert.Equal(t, 46, fs.products["p1"].Stock)

	require.Len(t, order.Items, 1)
	assert.Equal(t, int64(38000), order.Items[0].UnitPrice)
	assert.Equal(t, int64(76000), order.Items[0].Subtotal)
	require.NotNil(t, order.Items[0].Grind)
	assert.Equal(t, "espresso", *order.Items[0].Grind)

	assert.Len(t, producer.events, 1)
}

func TestCreateOrderFreeShippingAboveThreshold(t *testing.T) {
	svc, fs, _ := newOrderFixture()
	fs.addProduct(models.Product{ID: "p1", Name: "Geisha Natural", Price: 60000, Stock: 10, IsActive: true})

	order, err := svc.CreateOrder(context.Background(), "user-1", &CreateOrderRequest{
		Items:           []OrderItemRequest{{ProductID: "p1", Quantity: 2}},
		ShippingAddress: inlineAddress(),
	})
	require.NoError(t, err)

	assert.Equal(t, int64(120000), order.Subtotal)
	assert.Equal(t, int64(0), order.ShippingCost)
	assert.Equal(t, int64(120000), order.Total)
}

func TestCreateOrderEmptyCart(t *testing.T) {
	svc, _, _ := newOrderFixture()

	_, err := svc.CreateOrder(context.Background(), "user-1", &CreateOrderRequest{
		ShippingAddress: inlineAddress(),
	})
	assert.True(t, apperr.Is(err, apperr.CodeValidation))
}

func TestCreateOrderUnknownProduct(t *testing.T) {
	svc, _, _ := newOrderFixture()

	_, err := svc.CreateOrder(context.Background(), "user-1", &CreateOrderRequest{
		Items:           []OrderItemRequest{{ProductID: "missing", Quantity: 1}},
		ShippingAddress: inlineAddress(),
	})
	assert.True(t, apperr.Is(err, apperr.CodeProductUnavailable))
}

func TestCreateOrderInactiveProduct(t *testing.T) {
	svc, fs, _ := newOrderFixture()
	fs.addProduct(models.Product{ID: "p1", Name: "Retired Blend", Price: 30000, Stock: 5, IsActive: false})

	_, err := svc.CreateOrder(context.Background(), "user-1", &CreateOrderRequest{
		Items:           []OrderItemRequest{{ProductID: "p1", Quantity: 1}},
		ShippingAddress: inlineAddress(),
	})
	assert.True(t, apperr.Is(err, apperr.CodeProductUnavailable))
}

func TestCreateOrderInsufficientStockLeavesStockUntouched(t *testing.T) {
	svc, fs, producer := newOrderFixture()
	fs.addProduct(models.Product{ID: "p1", Name: "Huila Washed 340g", Price: 38000, Stock: 48, IsActive: true})

	_, err := svc.CreateOrder(context.Background(), "user-1", &CreateOrderRequest{
		Items:           []OrderItemRequest{{ProductID: "p1", Quantity: 50}},
		ShippingAddress: inlineAddress(),
	})

	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.CodeInsufficientStock))
	assert.Contains(t, err.Error(), "Huila Washed 340g")
	assert.Equal(t, 48, fs.products["p1"].Stock)
	assert.Empty(t, fs.orders)
	assert.Empty(t, producer.events)
}

func TestCreateOrderAllOrNothingAcrossItems(t *testing.T) {
	svc, fs, _ := newOrderFixture()
	fs.addProduct(models.Product{ID: "p1", Name: "Huila Washed 340g", Price: 38000, Stock: 48, IsActive: true})
	fs.addProduct(models.Product{ID: "p2", Name: "Sierra Nevada 340g", Price: 42000, Stock: 1, IsActive: true})

	_, err := svc.CreateOrder(context.Background(), "user-1", &CreateOrderRequest{
		Items: []OrderItemRequest{
			{ProductID: "p1", Quantity: 2},
			{ProductID: "p2", Quantity: 3},
		},
		ShippingAddress: inlineAddress(),
	})

	require.Error(t, err)
	assert.Equal(t, 48, fs.products["p1"].Stock)
	assert.Equal(t, 1, fs.products["p2"].Stock)
	assert.Empty(t, fs.orders)
}

func TestOrderNumbersAreDistinctAndSequential(t *testing.T) {
	svc, fs, _ := newOrderFixture()
	fs.addProduct(models.Product{ID: "p1", Name: "Huila Washed 340g", Price: 38000, Stock: 48, IsActive: true})

	first, err := svc.CreateOrder(context.Background(), "user-1", &CreateOrderRequest{
		Items:           []OrderItemRequest{{ProductID: "p1", Quantity: 1}},
		ShippingAddress: inlineAddress(),
	})
	require.NoError(t, err)

	second, err := svc.CreateOrder(context.Background(), "user-2", &CreateOrderRequest{
		Items:           []OrderItemRequest{{ProductID: "p1", Quantity: 1}},
		ShippingAddress: inlineAddress(),
	})
	require.NoError(t, err)

	assert.Equal(t, "LSC-0001", first.OrderNumber)
	assert.Equal(t, "LSC-0002", second.OrderNumber)
	assert.NotEqual(t, first.OrderNumber, second.OrderNumber)
}

func TestCreateOrderSavedAddressSnapshot(t *testing.T) {
	svc, fs, _ := newOrderFixture()
	fs.addProduct(models.Product{ID: "p1", Name: "Huila Washed 340g", Price: 38000, Stock: 48, IsActive: true})
	fs.addAddress(models.Address{
		ID: "addr-1", UserID: "user-1", Name: "Ana Gomez",
		Street: "Calle 10 #5-51", City: "Medellin", State: "Antioquia", Country: "CO", Zip: "050021",
	})

	order, err := svc.CreateOrder(context.Background(), "user-1", &CreateOrderRequest{
		Items:     []OrderItemRequest{{ProductID: "p1", Quantity: 1}},
		AddressID: "addr-1",
	})
	require.NoError(t, err)

	assert.Equal(t, "Calle 10 #5-51", order.Street)
	assert.Equal(t, "Medellin", order.City)

	// Editing the saved address later must not touch the order snapshot.
	fs.addresses["addr-1"].Street = "Carrera 70 #1-1"
	stored, err := svc.GetOrder(context.Background(), order.ID, "user-1", models.RoleCustomer)
	require.NoError(t, err)
	assert.Equal(t, "Calle 10 #5-51", stored.Street)
}

func TestCreateOrderForeignAddressRejected(t *testing.T) {
	svc, fs, _ := newOrderFixture()
	fs.addProduct(models.Product{ID: "p1", Name: "Huila Washed 340g", Price: 38000, Stock: 48, IsActive: true})
	fs.addAddress(models.Address{ID: "addr-2", UserID: "someone-else", Name: "X", Street: "s", City: "c", State: "st", Country: "CO", Zip: "0"})

	_, err := svc.CreateOrder(context.Background(), "user-1", &CreateOrderRequest{
		Items:     []OrderItemRequest{{ProductID: "p1", Quantity: 1}},
		AddressID: "addr-2",
	})
	assert.True(t, apperr.Is(err, apperr.CodeAddressNotFound))
}

func TestCreateOrderMissingAddress(t *testing.T) {
	svc, fs, _ := newOrderFixture()
	fs.addProduct(models.Product{ID: "p1", Name: "Huila Washed 340g", Price: 38000, Stock: 48, IsActive: true})

	_, err := svc.CreateOrder(context.Background(), "user-1", &CreateOrderRequest{
		Items: []OrderItemRequest{{ProductID: "p1", Quantity: 1}},
	})
	assert.True(t, apperr.Is(err, apperr.CodeMissingAddress))
}

func TestCreateOrderPriceSnapshotSurvivesCatalogChanges(t *testing.T) {
	svc, fs, _ := newOrderFixture()
	fs.addProduct(models.Product{ID: "p1", Name: "Huila Washed 340g", Price: 38000, Stock: 48, IsActive: true})

	order, err := svc.CreateOrder(context.Background(), "user-1", &CreateOrderRequest{
		Items:           []OrderItemRequest{{ProductID: "p1", Quantity: 2}},
		ShippingAddress: inlineAddress(),
	})
	require.NoError(t, err)

	fs.products["p1"].Price = 99000

	stored, err := svc.GetOrder(context.Background(), order.ID, "user-1", models.RoleCustomer)
	require.NoError(t, err)
	assert.Equal(t, int64(38000), stored.Items[0].UnitPrice)
	assert.Equal(t, int64(84000), stored.Total)
}

func TestGetOrderScopedToOwner(t *testing.T) {
	svc, fs, _ := newOrderFixture()
	fs.addProduct(models.Product{ID: "p1", Name: "Huila Washed 340g", Price: 38000, Stock: 48, IsActive: true})

	order, err := svc.CreateOrder(context.Background(), "user-1", &CreateOrderRequest{
		Items:           []OrderItemRequest{{ProductID: "p1", Quantity: 1}},
		ShippingAddress: inlineAddress(),
	})
	require.NoError(t, err)

	_, err = svc.GetOrder(context.Background(), order.ID, "intruder", models.RoleCustomer)
	assert.True(t, apperr.Is(err, apperr.CodeOrderNotFound))

	got, err := svc.GetOrder(context.Background(), order.ID, "intruder", models.RoleAdmin)
	require.NoError(t, err)
	assert.Equal(t, order.ID, got.ID)
}

func TestUpdateStatus(t *testing.T) {
	svc, fs, producer := newOrderFixture()
	fs.addProduct(models.Product{ID: "p1", Name: "Huila Washed 340g", Price: 38000, Stock: 48, IsActive: true})

	order, err := svc.CreateOrder(context.Background(), "user-1", &CreateOrderRequest{
		Items:           []OrderItemRequest{{ProductID: "p1", Quantity: 1}},
		ShippingAddress: inlineAddress(),
	})
	require.NoError(t, err)

	updated, err := svc.UpdateStatus(context.Background(), order.ID, models.StatusShipped)
	require.NoError(t, err)
	assert.Equal(t, models.StatusShipped, updated.Status)
	assert.Len(t, producer.events, 2) // order.created + order.status_changed

	_, err = svc.UpdateStatus(context.Background(), "missing", models.StatusShipped)
	assert.True(t, apperr.Is(err, apperr.CodeOrderNotFound))

	_, err = svc.UpdateStatus(context.Background(), order.ID, models.Status("TELEPORTED"))
	assert.True(t, apperr.Is(err, apperr.CodeValidation))
}

func TestGetOrdersPagination(t *testing.T) {
	svc, fs, _ := newOrderFixture()
	fs.addProduct(models.Product{ID: "p1", Name: "Huila Washed 340g", Price: 38000, Stock: 100, IsActive: true})

	for i := 0; i < 5; i++ {
		_, err := svc.CreateOrder(context.Background(), "user-1", &CreateOrderRequest{
			Items:           []OrderItemRequest{{ProductID: "p1", Quantity: 1}},
			ShippingAddress: inlineAddress(),
		})
		require.NoError(t, err)
	}

	list, err := svc.GetOrders(context.Background(), "user-1", models.RoleCustomer, 1, 2)
	require.NoError(t, err)
	assert.Equal(t, 5, list.Pagination.Total)
	assert.Equal(t, 3, list.Pagination.TotalPages)
	assert.Len(t, list.Orders, 2)

	// Another customer sees nothing; an admin sees everything.
	other, err := svc.GetOrders(context.Background(), "user-2", models.RoleCustomer, 1, 10)
	require.NoError(t, err)
	assert.Equal(t, 0, other.Pagination.Total)

	admin, err := svc.GetOrders(context.Background(), "user-2", models.RoleAdmin, 1, 10)
	require.NoError(t, err)
	assert.Equal(t, 5, admin.Pagination.Total)
}
