package orders

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/avalencia/storefront-backend/internal/cart"
	"github.com/avalencia/storefront-backend/internal/products"
	"github.com/avalencia/storefront-backend/internal/promotions"
	"github.com/avalencia/storefront-backend/internal/users"
	"github.com/avalencia/storefront-backend/pkg/db/models"
	"github.com/avalencia/storefront-backend/pkg/enums"
	pkgerrors "github.com/avalencia/storefront-backend/pkg/errors"
	"github.com/avalencia/storefront-backend/pkg/metrics"
	"github.com/avalencia/storefront-backend/pkg/outbox"
	"github.com/avalencia/storefront-backend/pkg/outbox/payloads"
	"github.com/avalencia/storefront-backend/pkg/pagination"
	"github.com/avalencia/storefront-backend/pkg/types"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

type couponValidator interface {
	ValidateForCheckout(ctx context.Context, tx *gorm.DB, userID uuid.UUID, code string, subtotalCents int) (*promotions.CouponQuote, error)
	SpendCoupon(ctx context.Context, tx *gorm.DB, quote promotions.CouponQuote, orderID, actorID uuid.UUID) error
}

// Service defines order operations used by the controllers.
type Service interface {
	Checkout(ctx context.Context, userID uuid.UUID, req CheckoutRequest) (*OrderResponse, error)
	Get(ctx context.Context, userID, orderID uuid.UUID) (*OrderResponse, error)
	List(ctx context.Context, userID uuid.UUID, params pagination.Params) (*OrderListResponse, error)
	Cancel(ctx context.Context, userID, orderID uuid.UUID) (*OrderResponse, error)
	AdminGet(ctx context.Context, orderID uuid.UUID) (*OrderResponse, error)
	AdminList(ctx context.Context, params pagination.Params, status *enums.OrderStatus) (*OrderListResponse, error)
	UpdateStatus(ctx context.Context, actorID, orderID uuid.UUID, req UpdateStatusRequest) (*OrderResponse, error)
}

type service struct {
	repo     Repository
	carts    cart.Repository
	products products.Repository
	userRepo users.Repository
	coupons  couponValidator
	tx       txRunner
	outbox   outboxPublisher
	checkout *metrics.CheckoutMetrics
	now      func() time.Time
}

// ServiceParams bundles the dependencies required to build an orders service.
type ServiceParams struct {
	Repo            Repository
	CartRepo        cart.Repository
	ProductRepo     products.Repository
	UserRepo        users.Repository
	Coupons         couponValidator
	Tx              txRunner
	Outbox          outboxPublisher
	CheckoutMetrics *metrics.CheckoutMetrics
}

// NewService constructs the orders service with the provided dependencies.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if params.CartRepo == nil {
		return nil, fmt.Errorf("cart repository required")
	}
	if params.ProductRepo == nil {
		return nil, fmt.Errorf("products repository required")
	}
	if params.UserRepo == nil {
		return nil, fmt.Errorf("users repository required")
	}
	if params.Coupons == nil {
		return nil, fmt.Errorf("coupon validator required")
	}
	if params.Tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	return &service{
		repo:     params.Repo,
		carts:    params.CartRepo,
		products: params.ProductRepo,
		userRepo: params.UserRepo,
		coupons:  params.Coupons,
		tx:       params.Tx,
		outbox:   params.Outbox,
		checkout: params.CheckoutMetrics,
		now:      time.Now,
	}, nil
}

// Checkout turns the caller's cart into an order. Stock reservation, coupon
// redemption, order creation, and cart clearing commit or roll back together;
// no partial side effect can survive a failed checkout.
func (s *service) Checkout(ctx context.Context, userID uuid.UUID, req CheckoutRequest) (*OrderResponse, error) {
	started := s.now()

	order, err := s.runCheckout(ctx, userID, req)

	if s.checkout != nil {
		outcome := "success"
		if err != nil {
			outcome = "failure"
			reason := "internal"
			if typed := pkgerrors.As(err); typed != nil {
				reason = string(typed.Code())
			}
			s.checkout.IncFailure(reason)
		}
		s.checkout.ObserveDuration(outcome, s.now().Sub(started))
	}
	if err != nil {
		return nil, err
	}
	if s.checkout != nil {
		s.checkout.IncOrderCreated(order.CouponCode != nil)
	}

	resp := NewOrderResponse(*order)
	return &resp, nil
}

func (s *service) runCheckout(ctx context.Context, userID uuid.UUID, req CheckoutRequest) (*models.Order, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	if !req.PaymentMethod.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid payment method")
	}

	address, err := s.resolveShippingAddress(ctx, userID, req.ShippingAddress)
	if err != nil {
		return nil, err
	}

	var order models.Order
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		cartRepo := s.carts.WithTx(tx)
		productRepo := s.products.WithTx(tx)

		userCart, err := cartRepo.FindByUser(ctx, userID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart")
		}
		if userCart == nil || len(userCart.Items) == 0 {
			return pkgerrors.New(pkgerrors.CodeValidation, "cart is empty")
		}

		ids := make([]uuid.UUID, 0, len(userCart.Items))
		for _, item := range userCart.Items {
			ids = append(ids, item.ProductID)
		}
		catalog, err := productRepo.FindActiveByIDs(ctx, ids)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load products")
		}

		requests := make([]products.InventoryReservationRequest, 0, len(userCart.Items))
		orderItems := make([]models.OrderItem, 0, len(userCart.Items))
		subtotal := 0
		for _, item := range userCart.Items {
			product, ok := catalog[item.ProductID]
			if !ok {
				return pkgerrors.New(pkgerrors.CodeStateConflict, "a cart item is no longer available").
					WithDetails(map[string]any{"product_id": item.ProductID})
			}
			requests = append(requests, products.InventoryReservationRequest{
				CartItemID: item.ID,
				ProductID:  item.ProductID,
				Qty:        item.Quantity,
			})
			unitPrice := product.EffectivePriceCents()
			lineTotal := unitPrice * item.Quantity
			subtotal += lineTotal
			orderItems = append(orderItems, models.OrderItem{
				ProductID:      item.ProductID,
				Title:          product.Title,
				UnitPriceCents: unitPrice,
				Quantity:       item.Quantity,
				TotalCents:     lineTotal,
			})
		}

		results, err := products.ReserveInventory(ctx, tx, requests)
		if err != nil {
			return err
		}
		for _, result := range results {
			if !result.Reserved {
				title := catalog[result.ProductID].Title
				return pkgerrors.Newf(pkgerrors.CodeValidation, "insufficient stock for %s", title).
					WithDetails(map[string]any{
						"product_id": result.ProductID,
						"requested":  result.Qty,
					})
			}
		}

		var quote *promotions.CouponQuote
		discount := 0
		var couponCode *string
		if req.CouponCode != nil && *req.CouponCode != "" {
			quote, err = s.coupons.ValidateForCheckout(ctx, tx, userID, *req.CouponCode, subtotal)
			if err != nil {
				return err
			}
			discount = quote.DiscountCents
			code := quote.Coupon.Code
			couponCode = &code
		}

		total := subtotal - discount
		if total < 0 {
			total = 0
		}

		order = models.Order{
			UserID:          userID,
			Status:          enums.OrderStatusProcessing,
			PaymentStatus:   enums.PaymentStatusPending,
			PaymentMethod:   req.PaymentMethod,
			ShippingAddress: address,
			SubtotalCents:   subtotal,
			DiscountCents:   discount,
			TotalCents:      total,
			CouponCode:      couponCode,
			Items:           orderItems,
		}
		if err := s.repo.WithTx(tx).Create(ctx, &order); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create order")
		}

		if quote != nil {
			if err := s.coupons.SpendCoupon(ctx, tx, *quote, order.ID, userID); err != nil {
				return err
			}
		}

		if err := cartRepo.ClearItems(ctx, userCart.ID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "clear cart")
		}

		itemIDs := make([]uuid.UUID, 0, len(order.Items))
		for _, item := range order.Items {
			itemIDs = append(itemIDs, item.ID)
		}
		event := outbox.DomainEvent{
			EventType:     enums.EventOrderCreated,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Version:       1,
			Actor:         &outbox.ActorRef{UserID: userID},
			Data: payloads.OrderCreatedEvent{
				OrderID:     order.ID,
				UserID:      userID,
				TotalCents:  order.TotalCents,
				CouponCode:  order.CouponCode,
				LineItemIDs: itemIDs,
			},
		}
		return s.outbox.Emit(ctx, tx, event)
	})
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (s *service) resolveShippingAddress(ctx context.Context, userID uuid.UUID, supplied *types.Address) (types.Address, error) {
	var address types.Address
	if supplied != nil && !supplied.IsZero() {
		address = *supplied
	} else {
		stored, err := s.userRepo.FindDefaultAddress(ctx, userID)
		if err != nil {
			return types.Address{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load default address")
		}
		if stored == nil {
			return types.Address{}, pkgerrors.New(pkgerrors.CodeValidation, "shipping address required").
				WithDetails(map[string]any{"missing_fields": types.Address{}.MissingFields()})
		}
		address = stored.Snapshot()
	}

	if missing := address.MissingFields(); len(missing) > 0 {
		return types.Address{}, pkgerrors.New(pkgerrors.CodeValidation, "shipping address is incomplete").
			WithDetails(map[string]any{"missing_fields": missing})
	}
	return address, nil
}

func (s *service) Get(ctx context.Context, userID, orderID uuid.UUID) (*OrderResponse, error) {
	order, err := s.loadOwned(ctx, userID, orderID)
	if err != nil {
		return nil, err
	}
	resp := NewOrderResponse(*order)
	return &resp, nil
}

func (s *service) List(ctx context.Context, userID uuid.UUID, params pagination.Params) (*OrderListResponse, error) {
	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}
	rows, next, err := s.repo.ListByUser(ctx, ListQuery{
		UserID: userID,
		Limit:  params.Limit,
		Cursor: cursor,
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list orders")
	}
	return buildListResponse(rows, next), nil
}

// Cancel lets the buyer back out of any order that has not been delivered.
// Stock goes back on the shelf, via reservation release before shipment or a
// plain restock after; the coupon, if any, stays spent.
func (s *service) Cancel(ctx context.Context, userID, orderID uuid.UUID) (*OrderResponse, error) {
	var updated models.Order
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, err := repo.FindByID(ctx, orderID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
		}
		if order == nil || order.UserID != userID {
			return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		shipped := false
		switch order.Status {
		case enums.OrderStatusPending, enums.OrderStatusProcessing:
		case enums.OrderStatusShipped:
			// Reservation was committed at shipment; returned units go
			// straight back to available.
			shipped = true
		default:
			return pkgerrors.New(pkgerrors.CodeStateConflict, "order is closed")
		}

		released := 0
		for _, item := range order.Items {
			if shipped {
				err = products.RestockInventory(ctx, tx, item.ProductID, item.Quantity)
			} else {
				err = products.ReleaseInventory(ctx, tx, item.ProductID, item.Quantity)
			}
			if err != nil {
				return err
			}
			released++
		}

		now := s.now()
		if err := repo.Update(ctx, order.ID, map[string]any{
			"status":      enums.OrderStatusCancelled,
			"canceled_at": now,
		}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "cancel order")
		}

		order.Status = enums.OrderStatusCancelled
		order.CanceledAt = &now
		updated = *order

		event := outbox.DomainEvent{
			EventType:     enums.EventOrderCanceled,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Version:       1,
			Actor:         &outbox.ActorRef{UserID: userID},
			Data: payloads.OrderCanceledEvent{
				OrderID:       order.ID,
				UserID:        order.UserID,
				ReleasedItems: released,
			},
		}
		return s.outbox.Emit(ctx, tx, event)
	})
	if err != nil {
		return nil, err
	}
	resp := NewOrderResponse(updated)
	return &resp, nil
}

func (s *service) AdminGet(ctx context.Context, orderID uuid.UUID) (*OrderResponse, error) {
	order, err := s.repo.FindByID(ctx, orderID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	if order == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	}
	resp := NewOrderResponse(*order)
	return &resp, nil
}

func (s *service) AdminList(ctx context.Context, params pagination.Params, status *enums.OrderStatus) (*OrderListResponse, error) {
	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}
	rows, next, err := s.repo.ListAll(ctx, ListQuery{
		Status: status,
		Limit:  params.Limit,
		Cursor: cursor,
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list orders")
	}
	return buildListResponse(rows, next), nil
}

// UpdateStatus applies an admin-driven lifecycle transition. Shipment commits
// the stock reservation for good; cancellation before shipment releases it.
func (s *service) UpdateStatus(ctx context.Context, actorID, orderID uuid.UUID, req UpdateStatusRequest) (*OrderResponse, error) {
	if !req.Status.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid order status")
	}
	if req.PaymentStatus != nil && !req.PaymentStatus.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid payment status")
	}

	var updated models.Order
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, err := repo.FindByID(ctx, orderID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
		}
		if order == nil {
			return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		if order.Status == req.Status {
			updated = *order
			return nil
		}
		if !order.Status.CanTransitionTo(req.Status) {
			return pkgerrors.Newf(pkgerrors.CodeStateConflict,
				"cannot transition order from %s to %s", order.Status, req.Status)
		}

		now := s.now()
		updates := map[string]any{"status": req.Status}
		if req.PaymentStatus != nil {
			updates["payment_status"] = *req.PaymentStatus
		}

		switch req.Status {
		case enums.OrderStatusShipped:
			for _, item := range order.Items {
				if err := products.CommitReservation(ctx, tx, item.ProductID, item.Quantity); err != nil {
					return err
				}
			}
		case enums.OrderStatusCancelled:
			// Reservations only exist until shipment.
			if order.Status == enums.OrderStatusPending || order.Status == enums.OrderStatusProcessing {
				for _, item := range order.Items {
					if err := products.ReleaseInventory(ctx, tx, item.ProductID, item.Quantity); err != nil {
						return err
					}
				}
			}
			updates["canceled_at"] = now
		case enums.OrderStatusDelivered:
			updates["delivered_at"] = now
		}

		if err := repo.Update(ctx, order.ID, updates); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update order status")
		}

		previous := order.Status
		order.Status = req.Status
		if req.PaymentStatus != nil {
			order.PaymentStatus = *req.PaymentStatus
		}
		switch req.Status {
		case enums.OrderStatusCancelled:
			order.CanceledAt = &now
		case enums.OrderStatusDelivered:
			order.DeliveredAt = &now
		}
		updated = *order

		event := outbox.DomainEvent{
			EventType:     enums.EventOrderStatusChanged,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Version:       1,
			Actor: &outbox.ActorRef{
				UserID: actorID,
				Role:   string(enums.UserRoleAdmin),
			},
			Data: payloads.OrderStatusChangedEvent{
				OrderID:       order.ID,
				UserID:        order.UserID,
				PreviousState: previous,
				NewState:      req.Status,
				PaymentStatus: req.PaymentStatus,
			},
		}
		return s.outbox.Emit(ctx, tx, event)
	})
	if err != nil {
		return nil, err
	}
	resp := NewOrderResponse(updated)
	return &resp, nil
}

func (s *service) loadOwned(ctx context.Context, userID, orderID uuid.UUID) (*models.Order, error) {
	order, err := s.repo.FindByID(ctx, orderID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	if order == nil || order.UserID != userID {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	}
	return order, nil
}

func buildListResponse(rows []models.Order, next *pagination.Cursor) *OrderListResponse {
	resp := OrderListResponse{Orders: make([]OrderResponse, 0, len(rows))}
	for _, row := range rows {
		resp.Orders = append(resp.Orders, NewOrderResponse(row))
	}
	if next != nil {
		encoded := pagination.EncodeCursor(*next)
		resp.NextCursor = &encoded
	}
	return &resp
}
