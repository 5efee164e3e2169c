package reconcile

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/craftandcart/shopfront-backend/internal/gateway"
	"github.com/craftandcart/shopfront-backend/internal/orders"
	"github.com/craftandcart/shopfront-backend/internal/snapshot"
	"github.com/craftandcart/shopfront-backend/internal/stock"
	dbpkg "github.com/craftandcart/shopfront-backend/pkg/db"
	"github.com/craftandcart/shopfront-backend/pkg/db/models"
	"github.com/craftandcart/shopfront-backend/pkg/enums"
	pkgerrors "github.com/craftandcart/shopfront-backend/pkg/errors"
	"github.com/craftandcart/shopfront-backend/pkg/outbox"
	"github.com/craftandcart/shopfront-backend/pkg/types"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:reconcile_" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	err = db.AutoMigrate(
		&models.CartSnapshot{},
		&models.CartSnapshotItem{},
		&models.Order{},
		&models.OrderLineItem{},
		&models.StockItem{},
		&models.StockLedgerEntry{},
		&models.OutboxEvent{},
	)
	if err != nil {
		t.Fatalf("migrate tables: %v", err)
	}
	return db
}

func newTestService(t *testing.T, db *gorm.DB) Service {
	t.Helper()
	return newTestServiceWithOrders(t, db, orders.NewRepository(db))
}

func newTestServiceWithOrders(t *testing.T, db *gorm.DB, orderRepo orders.Repository) Service {
	t.Helper()
	snapSvc, err := snapshot.NewService(snapshot.NewRepository(db), 24*time.Hour)
	if err != nil {
		t.Fatalf("snapshot service: %v", err)
	}
	stockSvc, err := stock.NewService(stock.NewRepository(db))
	if err != nil {
		t.Fatalf("stock service: %v", err)
	}
	svc, err := NewService(
		dbpkg.NewFromConn(db),
		orderRepo,
		snapSvc,
		stockSvc,
		outbox.NewService(outbox.NewRepository(db), nil),
		nil,
		nil,
	)
	if err != nil {
		t.Fatalf("reconcile service: %v", err)
	}
	return svc
}

func seedSnapshot(t *testing.T, db *gorm.DB, token string, productID uuid.UUID, qty int, unitPriceCents int64) *models.CartSnapshot {
	t.Helper()
	lineTotal := int64(qty) * unitPriceCents
	snap := &models.CartSnapshot{
		Token:           token,
		CustomerKind:    enums.CustomerKindGuest,
		Currency:        enums.CurrencyEUR,
		SubtotalCents:   lineTotal,
		GrandTotalCents: lineTotal,
		ExpiresAt:       time.Now().Add(24 * time.Hour),
		Items: []models.CartSnapshotItem{{
			ProductID:      productID,
			Name:           "Vinyl Pressing",
			Quantity:       qty,
			UnitPriceCents: unitPriceCents,
			LineTotalCents: lineTotal,
		}},
	}
	if err := db.Create(snap).Error; err != nil {
		t.Fatalf("seed snapshot: %v", err)
	}
	return snap
}

func seedStock(t *testing.T, db *gorm.DB, productID uuid.UUID, qty int) {
	t.Helper()
	item := &models.StockItem{ProductID: productID, SKU: "SKU-" + productID.String()[:8], AvailableQty: qty}
	if err := db.Create(item).Error; err != nil {
		t.Fatalf("seed stock: %v", err)
	}
}

func mustAvailable(t *testing.T, db *gorm.DB, productID uuid.UUID) int {
	t.Helper()
	var item models.StockItem
	if err := db.First(&item, "product_id = ?", productID).Error; err != nil {
		t.Fatalf("load stock item: %v", err)
	}
	return item.AvailableQty
}

func countOrders(t *testing.T, db *gorm.DB) int64 {
	t.Helper()
	var count int64
	if err := db.Model(&models.Order{}).Count(&count).Error; err != nil {
		t.Fatalf("count orders: %v", err)
	}
	return count
}

func countOutboxEvents(t *testing.T, db *gorm.DB) int64 {
	t.Helper()
	var count int64
	if err := db.Model(&models.OutboxEvent{}).Count(&count).Error; err != nil {
		t.Fatalf("count outbox events: %v", err)
	}
	return count
}

func approvedOutcome(token, reference string) *gateway.PaymentOutcome {
	return &gateway.PaymentOutcome{
		CheckoutToken:        token,
		GatewayTransactionID: reference,
		Status:               enums.OutcomeApproved,
		RawResponseCode:      "approved",
	}
}

func TestReconcileApprovedConfirmsOrder(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	ctx := context.Background()
	svc := newTestService(t, db)

	product := uuid.New()
	seedStock(t, db, product, 5)
	seedSnapshot(t, db, "abc123", product, 2, 10000)

	result, err := svc.Reconcile(ctx, approvedOutcome("abc123", "txn-1"))
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	if result.Result != ResultConfirmed {
		t.Fatalf("expected confirmed, got %s", result.Result)
	}
	order := result.Order
	if order == nil {
		t.Fatal("expected order on confirmed result")
	}
	if order.Status != enums.OrderStatusConfirmed || order.PaymentStatus != enums.PaymentStatusPaid {
		t.Fatalf("unexpected order state: %s/%s", order.Status, order.PaymentStatus)
	}
	if order.GrandTotalCents != 20000 {
		t.Fatalf("expected grand total 20000, got %d", order.GrandTotalCents)
	}
	if order.GatewayReference == nil || *order.GatewayReference != "txn-1" {
		t.Fatalf("expected gateway reference txn-1, got %v", order.GatewayReference)
	}
	if order.OrderNumber == "" {
		t.Fatal("expected minted order number")
	}

	if got := mustAvailable(t, db, product); got != 3 {
		t.Fatalf("expected stock 3 after debit, got %d", got)
	}
	if got := countOutboxEvents(t, db); got != 1 {
		t.Fatalf("expected 1 outbox event, got %d", got)
	}

	var snap models.CartSnapshot
	if err := db.First(&snap, "token = ?", "abc123").Error; err != nil {
		t.Fatalf("load snapshot: %v", err)
	}
	if snap.DiscardedAt == nil {
		t.Fatal("expected snapshot discarded after confirmation")
	}
}

func TestReconcileCarriesSnapshotDetailsOntoOrder(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	ctx := context.Background()
	svc := newTestService(t, db)

	product := uuid.New()
	seedStock(t, db, product, 5)

	email := "ren@example.com"
	first := "Ren"
	last := "Okabe"
	billing := &types.Address{Line1: "2 Rue des Ateliers", City: "Lyon", PostalCode: "69001", Country: "FR"}
	snap := &models.CartSnapshot{
		Token:           "rich-1",
		CustomerKind:    enums.CustomerKindGuest,
		GuestEmail:      &email,
		GuestFirstName:  &first,
		GuestLastName:   &last,
		Currency:        enums.CurrencyEUR,
		BillingAddress:  billing,
		SubtotalCents:   20000,
		DiscountCents:   1000,
		ShippingCents:   600,
		TaxCents:        2100,
		GrandTotalCents: 21700,
		ExpiresAt:       time.Now().Add(24 * time.Hour),
		Items: []models.CartSnapshotItem{{
			ProductID:      product,
			Name:           "Vinyl Pressing",
			Quantity:       2,
			UnitPriceCents: 10000,
			LineTotalCents: 20000,
		}},
	}
	if err := db.Create(snap).Error; err != nil {
		t.Fatalf("seed snapshot: %v", err)
	}

	result, err := svc.Reconcile(ctx, approvedOutcome("rich-1", "txn-9"))
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	order := result.Order
	if order == nil {
		t.Fatal("expected order on confirmed result")
	}
	if order.GuestEmail == nil || *order.GuestEmail != email {
		t.Fatalf("expected guest email carried, got %v", order.GuestEmail)
	}
	if order.GuestFirstName == nil || order.GuestLastName == nil {
		t.Fatal("expected guest name carried")
	}
	if order.BillingAddress == nil || order.BillingAddress.Line1 != billing.Line1 {
		t.Fatalf("expected billing address carried, got %+v", order.BillingAddress)
	}
	if order.DiscountCents != 1000 || order.ShippingCents != 600 || order.TaxCents != 2100 {
		t.Fatalf("unexpected adjustments %d/%d/%d", order.DiscountCents, order.ShippingCents, order.TaxCents)
	}
	if order.GrandTotalCents != 21700 {
		t.Fatalf("expected grand total 21700, got %d", order.GrandTotalCents)
	}
}

func TestReconcileDuplicateCallbackIsIdempotent(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	ctx := context.Background()
	svc := newTestService(t, db)

	product := uuid.New()
	seedStock(t, db, product, 5)
	seedSnapshot(t, db, "abc123", product, 2, 10000)

	first, err := svc.Reconcile(ctx, approvedOutcome("abc123", "txn-1"))
	if err != nil {
		t.Fatalf("first reconcile: %v", err)
	}
	second, err := svc.Reconcile(ctx, approvedOutcome("abc123", "txn-1"))
	if err != nil {
		t.Fatalf("second reconcile: %v", err)
	}
	if second.Result != ResultAlreadyReconciled {
		t.Fatalf("expected already reconciled, got %s", second.Result)
	}
	if second.Order == nil || second.Order.OrderNumber != first.Order.OrderNumber {
		t.Fatalf("expected prior order returned, got %+v", second.Order)
	}

	if got := mustAvailable(t, db, product); got != 3 {
		t.Fatalf("expected stock to stay at 3, got %d", got)
	}
	if got := countOrders(t, db); got != 1 {
		t.Fatalf("expected exactly one order, got %d", got)
	}
	if got := countOutboxEvents(t, db); got != 1 {
		t.Fatalf("expected exactly one outbox event, got %d", got)
	}
}

func TestReconcileInsufficientStock(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	ctx := context.Background()
	svc := newTestService(t, db)

	product := uuid.New()
	seedStock(t, db, product, 1)
	seedSnapshot(t, db, "abc123", product, 2, 10000)

	_, err := svc.Reconcile(ctx, approvedOutcome("abc123", "txn-1"))
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeInsufficientStock {
		t.Fatalf("expected insufficient stock error, got %v", err)
	}

	if got := mustAvailable(t, db, product); got != 1 {
		t.Fatalf("expected stock untouched at 1, got %d", got)
	}
	if got := countOrders(t, db); got != 0 {
		t.Fatalf("expected no orders after rollback, got %d", got)
	}
	if got := countOutboxEvents(t, db); got != 0 {
		t.Fatalf("expected no outbox events after rollback, got %d", got)
	}

	var snap models.CartSnapshot
	if err := db.First(&snap, "token = ?", "abc123").Error; err != nil {
		t.Fatalf("load snapshot: %v", err)
	}
	if snap.DiscardedAt != nil {
		t.Fatal("expected snapshot retained after failed debit")
	}
}

func TestReconcileMissingToken(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	svc := newTestService(t, db)

	_, err := svc.Reconcile(context.Background(), approvedOutcome("missing-token", "txn-1"))
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeNotFound {
		t.Fatalf("expected not found error, got %v", err)
	}
}

func TestReconcileExpiredSnapshot(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	svc := newTestService(t, db)

	product := uuid.New()
	seedStock(t, db, product, 5)
	snap := seedSnapshot(t, db, "stale-token", product, 1, 5000)
	expired := time.Now().Add(-time.Minute)
	if err := db.Model(&models.CartSnapshot{}).Where("id = ?", snap.ID).Update("expires_at", expired).Error; err != nil {
		t.Fatalf("expire snapshot: %v", err)
	}

	_, err := svc.Reconcile(context.Background(), approvedOutcome("stale-token", "txn-1"))
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeSnapshotExpired {
		t.Fatalf("expected snapshot expired error, got %v", err)
	}
	if got := mustAvailable(t, db, product); got != 5 {
		t.Fatalf("expected stock untouched at 5, got %d", got)
	}
}

func TestReconcileCancelledRetainsSnapshot(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	ctx := context.Background()
	svc := newTestService(t, db)

	product := uuid.New()
	seedStock(t, db, product, 5)
	seedSnapshot(t, db, "abc123", product, 2, 10000)

	result, err := svc.Reconcile(ctx, &gateway.PaymentOutcome{
		CheckoutToken:   "abc123",
		Status:          enums.OutcomeCancelled,
		RawResponseCode: "user_cancelled",
	})
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	if result.Result != ResultCancelled {
		t.Fatalf("expected cancelled, got %s", result.Result)
	}
	if got := countOrders(t, db); got != 0 {
		t.Fatalf("expected no orders, got %d", got)
	}

	var snap models.CartSnapshot
	if err := db.First(&snap, "token = ?", "abc123").Error; err != nil {
		t.Fatalf("load snapshot: %v", err)
	}
	if snap.DiscardedAt != nil {
		t.Fatal("expected snapshot retained for payment retry")
	}

	// The retained snapshot accepts a later approved outcome.
	retry, err := svc.Reconcile(ctx, approvedOutcome("abc123", "txn-2"))
	if err != nil {
		t.Fatalf("retry reconcile: %v", err)
	}
	if retry.Result != ResultConfirmed {
		t.Fatalf("expected confirmed on retry, got %s", retry.Result)
	}
}

func TestReconcileDeclinedCreatesNoOrder(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	ctx := context.Background()
	svc := newTestService(t, db)

	product := uuid.New()
	seedStock(t, db, product, 5)
	seedSnapshot(t, db, "abc123", product, 2, 10000)

	outcome := &gateway.PaymentOutcome{
		CheckoutToken:   "abc123",
		Status:          enums.OutcomeDeclined,
		RawResponseCode: "0500",
		ErrorMessage:    "card declined",
	}

	for i := 0; i < 2; i++ {
		result, err := svc.Reconcile(ctx, outcome)
		if err != nil {
			t.Fatalf("reconcile %d: %v", i, err)
		}
		if result.Result != ResultPaymentFailed {
			t.Fatalf("expected payment failed, got %s", result.Result)
		}
		if result.FailureReason != "card declined" {
			t.Fatalf("unexpected failure reason %q", result.FailureReason)
		}
	}

	if got := countOrders(t, db); got != 0 {
		t.Fatalf("expected no orders for declined payment, got %d", got)
	}
	if got := mustAvailable(t, db, product); got != 5 {
		t.Fatalf("expected stock untouched at 5, got %d", got)
	}
}

func TestReconcileUnknownStatusTreatedAsFailed(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	svc := newTestService(t, db)

	product := uuid.New()
	seedStock(t, db, product, 5)
	seedSnapshot(t, db, "abc123", product, 1, 10000)

	result, err := svc.Reconcile(context.Background(), &gateway.PaymentOutcome{
		CheckoutToken:   "abc123",
		Status:          enums.OutcomeUnknown,
		RawResponseCode: "9999",
	})
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	if result.Result != ResultPaymentFailed {
		t.Fatalf("expected payment failed, got %s", result.Result)
	}
	if result.FailureReason != "9999" {
		t.Fatalf("unexpected failure reason %q", result.FailureReason)
	}
}

// blindFirstLookup hides existing orders from the first FindByCheckoutToken
// call, reproducing the window where two callbacks race past the idempotency
// read and collide on the unique index instead.
type blindFirstLookup struct {
	orders.Repository
	calls int
}

func (r *blindFirstLookup) FindByCheckoutToken(ctx context.Context, token string) (*models.Order, error) {
	r.calls++
	if r.calls == 1 {
		return nil, nil
	}
	return r.Repository.FindByCheckoutToken(ctx, token)
}

func TestReconcileConcurrentCallbackLosesToUniqueIndex(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	ctx := context.Background()

	product := uuid.New()
	seedStock(t, db, product, 5)
	seedSnapshot(t, db, "abc123", product, 2, 10000)

	winner := newTestService(t, db)
	first, err := winner.Reconcile(ctx, approvedOutcome("abc123", "txn-1"))
	if err != nil {
		t.Fatalf("winner reconcile: %v", err)
	}

	// Re-arm the snapshot so the loser passes the expiry check and reaches
	// the order insert, as it would have mid-race.
	if err := db.Model(&models.CartSnapshot{}).Where("token = ?", "abc123").Update("discarded_at", nil).Error; err != nil {
		t.Fatalf("reset snapshot: %v", err)
	}

	loser := newTestServiceWithOrders(t, db, &blindFirstLookup{Repository: orders.NewRepository(db)})
	second, err := loser.Reconcile(ctx, approvedOutcome("abc123", "txn-1"))
	if err != nil {
		t.Fatalf("loser reconcile: %v", err)
	}
	if second.Result != ResultAlreadyReconciled {
		t.Fatalf("expected already reconciled, got %s", second.Result)
	}
	if second.Order == nil || second.Order.OrderNumber != first.Order.OrderNumber {
		t.Fatalf("expected winner's order, got %+v", second.Order)
	}

	if got := countOrders(t, db); got != 1 {
		t.Fatalf("expected exactly one order, got %d", got)
	}
	if got := mustAvailable(t, db, product); got != 3 {
		t.Fatalf("expected single debit leaving 3, got %d", got)
	}
}
