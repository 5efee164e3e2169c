package reconcile

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/craftandcart/shopfront-backend/internal/gateway"
	"github.com/craftandcart/shopfront-backend/internal/orders"
	"github.com/craftandcart/shopfront-backend/internal/snapshot"
	"github.com/craftandcart/shopfront-backend/internal/stock"
	dbpkg "github.com/craftandcart/shopfront-backend/pkg/db"
	"github.com/craftandcart/shopfront-backend/pkg/db/models"
	"github.com/craftandcart/shopfront-backend/pkg/enums"
	pkgerrors "github.com/craftandcart/shopfront-backend/pkg/errors"
	"github.com/craftandcart/shopfront-backend/pkg/logger"
	"github.com/craftandcart/shopfront-backend/pkg/metrics"
	"github.com/craftandcart/shopfront-backend/pkg/outbox"
	"github.com/craftandcart/shopfront-backend/pkg/outbox/payloads"
)

// Result labels, also used as metric labels.
const (
	ResultConfirmed         = "confirmed"
	ResultAlreadyReconciled = "already_reconciled"
	ResultPaymentFailed     = "payment_failed"
	ResultCancelled         = "cancelled"
	ResultInsufficientStock = "insufficient_stock"
	ResultSnapshotMissing   = "snapshot_missing"
	ResultSnapshotExpired   = "snapshot_expired"
	ResultError             = "error"
)

// errTokenTaken flags a unique violation on orders.checkout_token inside the
// confirm transaction so the caller can re-read the winning order.
var errTokenTaken = errors.New("checkout token already reconciled")

// ReconcileResult is the typed outcome of a Reconcile call. Order is set for
// Confirmed and AlreadyReconciled; FailureReason carries the gateway's raw
// code for PaymentFailed.
type ReconcileResult struct {
	Result        string
	Order         *models.Order
	FailureReason string
}

// Service is the sole writer of orders. It turns a cart snapshot plus a
// normalized payment outcome into at most one order per checkout token.
type Service interface {
	Reconcile(ctx context.Context, outcome *gateway.PaymentOutcome) (*ReconcileResult, error)
}

type service struct {
	client    *dbpkg.Client
	orders    orders.Repository
	snapshots snapshot.Service
	stock     stock.Service
	events    *outbox.Service
	metrics   *metrics.ReconcileMetrics
	logg      *logger.Logger
	now       func() time.Time
}

// NewService wires the reconciler. The metrics and logger collaborators are
// optional; everything else is required.
func NewService(
	client *dbpkg.Client,
	orderRepo orders.Repository,
	snapshots snapshot.Service,
	stockSvc stock.Service,
	events *outbox.Service,
	recMetrics *metrics.ReconcileMetrics,
	logg *logger.Logger,
) (Service, error) {
	if client == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "db client required")
	}
	if orderRepo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "orders repository required")
	}
	if snapshots == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "snapshot service required")
	}
	if stockSvc == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "stock service required")
	}
	if events == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "outbox service required")
	}
	return &service{
		client:    client,
		orders:    orderRepo,
		snapshots: snapshots,
		stock:     stockSvc,
		events:    events,
		metrics:   recMetrics,
		logg:      logg,
		now:       time.Now,
	}, nil
}

// Reconcile applies a payment outcome to its checkout token. Approved outcomes
// create an order, debit stock, queue the confirmation event, and discard the
// snapshot inside one transaction. Declined, Unknown, and Cancelled outcomes
// never create an order and leave the snapshot in place so the customer can
// retry until the token expires.
func (s *service) Reconcile(ctx context.Context, outcome *gateway.PaymentOutcome) (*ReconcileResult, error) {
	start := s.now()
	result, err := s.reconcile(ctx, outcome)
	s.record(labelFor(result, err), s.now().Sub(start))
	return result, err
}

func (s *service) reconcile(ctx context.Context, outcome *gateway.PaymentOutcome) (*ReconcileResult, error) {
	if outcome == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment outcome required")
	}
	if outcome.CheckoutToken == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "checkout token is required")
	}
	if s.logg != nil {
		ctx = s.logg.WithCheckoutToken(ctx, outcome.CheckoutToken)
	}

	// A delivered callback for an already reconciled token arrives after the
	// snapshot was discarded, so the order lookup has to come first.
	existing, err := s.orders.FindByCheckoutToken(ctx, outcome.CheckoutToken)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order by checkout token")
	}
	if existing != nil {
		return &ReconcileResult{Result: ResultAlreadyReconciled, Order: existing}, nil
	}

	snap, err := s.snapshots.Get(ctx, outcome.CheckoutToken)
	if err != nil {
		return nil, err
	}

	switch outcome.Status {
	case enums.OutcomeApproved:
		return s.confirm(ctx, snap, outcome)
	case enums.OutcomeCancelled:
		if s.logg != nil {
			s.logg.Info(ctx, "payment cancelled, snapshot retained for retry")
		}
		return &ReconcileResult{Result: ResultCancelled}, nil
	case enums.OutcomeDeclined, enums.OutcomeUnknown:
		if s.logg != nil {
			s.logg.Info(ctx, "payment failed, snapshot retained for retry")
		}
		return &ReconcileResult{
			Result:        ResultPaymentFailed,
			FailureReason: failureReason(outcome),
		}, nil
	default:
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "unrecognized payment outcome status").
			WithDetails(map[string]any{"status": string(outcome.Status)})
	}
}

// confirm runs the approved path as one transaction: insert the order, debit
// stock, queue the confirmation event, discard the snapshot. The unique index
// on orders.checkout_token closes the race between concurrent callbacks; the
// loser re-reads the winner's order.
func (s *service) confirm(ctx context.Context, snap *models.CartSnapshot, outcome *gateway.PaymentOutcome) (*ReconcileResult, error) {
	order := s.buildOrder(snap, outcome)

	txErr := s.client.WithTx(ctx, func(tx *gorm.DB) error {
		if _, err := s.orders.WithTx(tx).Create(ctx, order); err != nil {
			if dbpkg.IsUniqueViolation(err, "checkout_token") {
				return errTokenTaken
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "persist order")
		}

		lines := make([]stock.DebitLine, 0, len(snap.Items))
		for _, item := range snap.Items {
			lines = append(lines, stock.DebitLine{ProductID: item.ProductID, Quantity: item.Quantity})
		}
		if err := s.stock.DebitAll(ctx, tx, order.ID, lines); err != nil {
			return err
		}

		event := outbox.DomainEvent{
			EventType:     enums.EventOrderConfirmed,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Actor:         actorFor(snap),
			Data: payloads.OrderConfirmedEvent{
				OrderID:         order.ID,
				OrderNumber:     order.OrderNumber,
				CheckoutToken:   order.CheckoutToken,
				CustomerID:      order.CustomerID,
				Currency:        order.Currency,
				GrandTotalCents: order.GrandTotalCents,
				Status:          order.Status,
				PaymentStatus:   order.PaymentStatus,
				PlacedAt:        order.PlacedAt,
			},
			Version:    1,
			OccurredAt: order.PlacedAt,
		}
		if err := s.events.EmitIfNotExists(ctx, tx, event); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "queue order confirmed event")
		}

		return s.snapshots.DiscardTx(ctx, tx, snap.Token)
	})

	if txErr != nil {
		if errors.Is(txErr, errTokenTaken) {
			winner, err := s.orders.FindByCheckoutToken(ctx, snap.Token)
			if err != nil {
				return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order after token conflict")
			}
			if winner == nil {
				return nil, pkgerrors.New(pkgerrors.CodeDependency, "order vanished after token conflict").
					WithDetails(map[string]any{"token": snap.Token})
			}
			return &ReconcileResult{Result: ResultAlreadyReconciled, Order: winner}, nil
		}
		return nil, txErr
	}

	if s.logg != nil {
		logCtx := s.logg.WithOrderNumber(ctx, order.OrderNumber)
		s.logg.Info(logCtx, "order confirmed")
	}
	return &ReconcileResult{Result: ResultConfirmed, Order: order}, nil
}

func (s *service) buildOrder(snap *models.CartSnapshot, outcome *gateway.PaymentOutcome) *models.Order {
	placedAt := s.now().UTC()
	id := uuid.New()

	items := make([]models.OrderLineItem, 0, len(snap.Items))
	for _, item := range snap.Items {
		items = append(items, models.OrderLineItem{
			ProductID:      item.ProductID,
			Name:           item.Name,
			Quantity:       item.Quantity,
			UnitPriceCents: item.UnitPriceCents,
			LineTotalCents: item.LineTotalCents,
		})
	}

	var ref *string
	if outcome.GatewayTransactionID != "" {
		value := outcome.GatewayTransactionID
		ref = &value
	}

	return &models.Order{
		ID:               id,
		OrderNumber:      orders.MintOrderNumber(placedAt, id),
		CheckoutToken:    snap.Token,
		CustomerID:       snap.CustomerID,
		CustomerKind:     snap.CustomerKind,
		GuestEmail:       snap.GuestEmail,
		GuestFirstName:   snap.GuestFirstName,
		GuestLastName:    snap.GuestLastName,
		Currency:         snap.Currency,
		Status:           enums.OrderStatusConfirmed,
		PaymentStatus:    enums.PaymentStatusPaid,
		GatewayReference: ref,
		SubtotalCents:    snap.SubtotalCents,
		DiscountCents:    snap.DiscountCents,
		ShippingCents:    snap.ShippingCents,
		TaxCents:         snap.TaxCents,
		GrandTotalCents:  snap.GrandTotalCents,
		ShippingAddress:  snap.ShippingAddress,
		BillingAddress:   snap.BillingAddress,
		LineItems:        items,
		PlacedAt:         placedAt,
	}
}

func (s *service) record(label string, elapsed time.Duration) {
	if s.metrics == nil {
		return
	}
	s.metrics.IncResult(label)
	s.metrics.ObserveDuration(label, elapsed)
}

func actorFor(snap *models.CartSnapshot) *outbox.ActorRef {
	return &outbox.ActorRef{
		CustomerID: snap.CustomerID,
		Kind:       string(snap.CustomerKind),
	}
}

func failureReason(outcome *gateway.PaymentOutcome) string {
	if outcome.ErrorMessage != "" {
		return outcome.ErrorMessage
	}
	return outcome.RawResponseCode
}

func labelFor(result *ReconcileResult, err error) string {
	if err == nil {
		if result == nil {
			return ResultError
		}
		return result.Result
	}
	switch pkgerrors.As(err).Code() {
	case pkgerrors.CodeInsufficientStock:
		return ResultInsufficientStock
	case pkgerrors.CodeNotFound:
		return ResultSnapshotMissing
	case pkgerrors.CodeSnapshotExpired:
		return ResultSnapshotExpired
	default:
		return ResultError
	}
}
