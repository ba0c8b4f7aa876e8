package storefront

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"github.com/salehnevergiveup/marketplace-sdk/internal/transport"
	"github.com/salehnevergiveup/marketplace-sdk/pkg/logger"
)

// Backend paths consumed by the façade.
const (
	pathShoppingCart          = "shoppingcart"
	pathCartItems             = "cartitems/%d"
	pathPlaceOrder            = "product/place-order"
	pathCancelBuyerItem       = "buyer-item/cancel"
	pathRebateAmountList      = "product/fetch-rebate-amount-list/%d"
	pathMakePayment           = "order/make-payment"
	pathRequestRefund         = "buyer-item/request-refund"
	pathAcceptRefund          = "product/accept-refund"
	pathRejectCancelRefund    = "product/rejectcancel-refund"
	pathAvailableProducts     = "product/get-available-product"
	pathNotAvailableProducts  = "product/get-not-available-product"
	pathSoldOutProducts       = "product/get-sold-out-product"
	pathRefundRequestProducts = "product/get-request-refund-product"
	pathToReceiveItems        = "buyer-item/to-receive"
	pathReceivedItems         = "buyer-item/received"
	pathRefundItems           = "buyer-item/refund"
	pathCreateStage           = "buyer-item/create-stage/%s"
)

var (
	ErrNoSelectedItems      = errors.New("no selected cart items to order")
	ErrUnknownDeliveryStage = errors.New("unknown delivery stage")
)

// Service is the cart/order façade. Every operation compiles to one call
// through the dispatcher and reports failures by message, never by raw
// transport detail.
type Service struct {
	client *transport.Client
	log    *logger.Logger
}

// New constructs the façade.
func New(client *transport.Client, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("storefront")
	}
	return &Service{client: client, log: log}
}

// AddToCart puts a product into the shopping cart. Duplicate adds are the
// server's concern; no client-side dedupe.
func (s *Service) AddToCart(ctx context.Context, productID int64) error {
	resp := s.client.Send(ctx, transport.Request{
		Method:       http.MethodPost,
		Path:         pathShoppingCart,
		Payload:      map[string]int64{"productId": productID},
		RequiresAuth: true,
	})
	if err := resp.Err(); err != nil {
		return fmt.Errorf("add to cart: %w", err)
	}
	s.log.WithField("product_id", productID).Debug("product added to cart")
	return nil
}

// FetchCart returns the current cart. Every item passes through
// NormalizeCartItem so unavailable products never present as Selected.
func (s *Service) FetchCart(ctx context.Context) ([]CartItem, error) {
	resp := s.client.Send(ctx, transport.Request{
		Method:       http.MethodGet,
		Path:         pathShoppingCart,
		RequiresAuth: true,
	})
	if err := resp.Err(); err != nil {
		return nil, fmt.Errorf("fetch cart: %w", err)
	}
	var items []CartItem
	if err := resp.DecodeData(&items); err != nil {
		return nil, fmt.Errorf("fetch cart: %w", err)
	}
	for i, item := range items {
		items[i] = NormalizeCartItem(item)
	}
	return items, nil
}

// SetCartItemStatus changes an item's selection state. When the item's
// product is unavailable the requested status is overridden with Disabled,
// whatever the caller asked for. Returns the status actually sent.
func (s *Service) SetCartItemStatus(ctx context.Context, item CartItem, status ItemStatus) (ItemStatus, error) {
	if !item.Selectable() {
		status = StatusDisabled
	}
	resp := s.client.Send(ctx, transport.Request{
		Method:       http.MethodPut,
		Path:         fmt.Sprintf(pathCartItems, item.ID),
		Payload:      map[string]ItemStatus{"status": status},
		RequiresAuth: true,
	})
	if err := resp.Err(); err != nil {
		return status, fmt.Errorf("set cart item status: %w", err)
	}
	return status, nil
}

// RemoveCartItem deletes an item from the cart.
func (s *Service) RemoveCartItem(ctx context.Context, itemID int64) error {
	resp := s.client.Send(ctx, transport.Request{
		Method:       http.MethodDelete,
		Path:         fmt.Sprintf(pathCartItems, itemID),
		RequiresAuth: true,
	})
	if err := resp.Err(); err != nil {
		return fmt.Errorf("remove cart item: %w", err)
	}
	return nil
}

// PlaceOrder converts the currently Selected, still-available cart items into
// a pending order. Whether a second pending order may exist is the server's
// decision; the façade does not pre-check.
func (s *Service) PlaceOrder(ctx context.Context, cart []CartItem) (*PendingOrder, error) {
	var ids []int64
	for _, item := range cart {
		item = NormalizeCartItem(item)
		if item.Status == StatusSelected {
			ids = append(ids, item.ID)
		}
	}
	if len(ids) == 0 {
		return nil, ErrNoSelectedItems
	}

	resp := s.client.Send(ctx, transport.Request{
		Method:       http.MethodPost,
		Path:         pathPlaceOrder,
		Payload:      map[string][]int64{"cartItemIds": ids},
		RequiresAuth: true,
	})
	if err := resp.Err(); err != nil {
		return nil, fmt.Errorf("place order: %w", err)
	}
	var order PendingOrder
	if err := resp.DecodeData(&order); err != nil {
		return nil, fmt.Errorf("place order: %w", err)
	}
	s.log.WithField("purchase_order_id", order.PurchaseOrderID).
		WithField("items", len(ids)).
		Info("order placed")
	return &order, nil
}

// CancelBuyerItem removes one item from a still-unpaid order.
func (s *Service) CancelBuyerItem(ctx context.Context, purchaseOrderID, productID int64) error {
	resp := s.client.Send(ctx, transport.Request{
		Method: http.MethodPost,
		Path:   pathCancelBuyerItem,
		Payload: map[string]int64{
			"purchaseOrderId": purchaseOrderID,
			"productId":       productID,
		},
		RequiresAuth: true,
	})
	if err := resp.Err(); err != nil {
		return fmt.Errorf("cancel buyer item: %w", err)
	}
	return nil
}

// FetchRebateAmountList re-quotes the prices for a pending order. It must be
// called, and its result shown to the buyer, immediately before MakePayment:
// prices can drift between cart time and pay time.
func (s *Service) FetchRebateAmountList(ctx context.Context, orderID int64) (*RebateAmountList, error) {
	resp := s.client.Send(ctx, transport.Request{
		Method:       http.MethodGet,
		Path:         fmt.Sprintf(pathRebateAmountList, orderID),
		RequiresAuth: true,
	})
	if err := resp.Err(); err != nil {
		return nil, fmt.Errorf("fetch rebate amount list: %w", err)
	}
	var list RebateAmountList
	if err := resp.DecodeData(&list); err != nil {
		return nil, fmt.Errorf("fetch rebate amount list: %w", err)
	}
	return &list, nil
}

// MakePayment pays a pending order. One shot: on success the pending order is
// consumed and its buyer items move to toReceive.
func (s *Service) MakePayment(ctx context.Context, payment PaymentRequest) error {
	resp := s.client.Send(ctx, transport.Request{
		Method:       http.MethodPost,
		Path:         pathMakePayment,
		Payload:      payment,
		RequiresAuth: true,
	})
	if err := resp.Err(); err != nil {
		return fmt.Errorf("make payment: %w", err)
	}
	s.log.WithField("purchase_order_id", payment.PurchaseOrderID).
		WithField("final_price", payment.FinalPrice).
		Info("payment accepted")
	return nil
}

// RequestRefund asks for a refund on one buyer item. Eligibility is enforced
// server-side and surfaces as a failure here.
func (s *Service) RequestRefund(ctx context.Context, buyerItemID int64) error {
	return s.refundTransition(ctx, pathRequestRefund, buyerItemID, "request refund")
}

// CancelRefundRequest withdraws a pending refund request.
func (s *Service) CancelRefundRequest(ctx context.Context, buyerItemID int64) error {
	return s.refundTransition(ctx, pathRejectCancelRefund, buyerItemID, "cancel refund request")
}

// AcceptRefundRequest resolves a refund request in the buyer's favor.
func (s *Service) AcceptRefundRequest(ctx context.Context, buyerItemID int64) error {
	return s.refundTransition(ctx, pathAcceptRefund, buyerItemID, "accept refund request")
}

func (s *Service) refundTransition(ctx context.Context, path string, buyerItemID int64, op string) error {
	resp := s.client.Send(ctx, transport.Request{
		Method:       http.MethodPost,
		Path:         path,
		Payload:      map[string]int64{"buyerItemId": buyerItemID},
		RequiresAuth: true,
	})
	if err := resp.Err(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	s.log.WithField("buyer_item_id", buyerItemID).Info(op)
	return nil
}

// FetchAvailableProducts lists products open for purchase. Public channel:
// browsing needs no session.
func (s *Service) FetchAvailableProducts(ctx context.Context) ([]Product, error) {
	return s.fetchProducts(ctx, pathAvailableProducts, false)
}

// FetchNotAvailableProducts lists delisted products (seller view).
func (s *Service) FetchNotAvailableProducts(ctx context.Context) ([]Product, error) {
	return s.fetchProducts(ctx, pathNotAvailableProducts, true)
}

// FetchSoldOutProducts lists sold-out products (seller view).
func (s *Service) FetchSoldOutProducts(ctx context.Context) ([]Product, error) {
	return s.fetchProducts(ctx, pathSoldOutProducts, true)
}

// FetchRefundRequestProducts lists products with open refund requests
// (seller view).
func (s *Service) FetchRefundRequestProducts(ctx context.Context) ([]Product, error) {
	return s.fetchProducts(ctx, pathRefundRequestProducts, true)
}

func (s *Service) fetchProducts(ctx context.Context, path string, requiresAuth bool) ([]Product, error) {
	resp := s.client.Send(ctx, transport.Request{
		Method:       http.MethodGet,
		Path:         path,
		RequiresAuth: requiresAuth,
	})
	if err := resp.Err(); err != nil {
		return nil, fmt.Errorf("fetch products: %w", err)
	}
	var products []Product
	if err := resp.DecodeData(&products); err != nil {
		return nil, fmt.Errorf("fetch products: %w", err)
	}
	return products, nil
}

// FetchToReceiveItems lists the buyer's items awaiting delivery.
func (s *Service) FetchToReceiveItems(ctx context.Context) ([]BuyerItem, error) {
	return s.fetchBuyerItems(ctx, pathToReceiveItems)
}

// FetchReceivedItems lists the buyer's delivered items.
func (s *Service) FetchReceivedItems(ctx context.Context) ([]BuyerItem, error) {
	return s.fetchBuyerItems(ctx, pathReceivedItems)
}

// FetchRefundItems lists the buyer's items in a refund flow.
func (s *Service) FetchRefundItems(ctx context.Context) ([]BuyerItem, error) {
	return s.fetchBuyerItems(ctx, pathRefundItems)
}

func (s *Service) fetchBuyerItems(ctx context.Context, path string) ([]BuyerItem, error) {
	resp := s.client.Send(ctx, transport.Request{
		Method:       http.MethodGet,
		Path:         path,
		RequiresAuth: true,
	})
	if err := resp.Err(); err != nil {
		return nil, fmt.Errorf("fetch buyer items: %w", err)
	}
	var items []BuyerItem
	if err := resp.DecodeData(&items); err != nil {
		return nil, fmt.Errorf("fetch buyer items: %w", err)
	}
	return items, nil
}

// CreateDeliveryStage appends the next delivery checkpoint to a buyer item.
// Stages are append-only and ordered; unknown stages fail locally.
func (s *Service) CreateDeliveryStage(ctx context.Context, buyerItemID int64, stage DeliveryStage) error {
	if !stage.Valid() {
		return fmt.Errorf("%w: %q", ErrUnknownDeliveryStage, stage)
	}
	resp := s.client.Send(ctx, transport.Request{
		Method:       http.MethodPost,
		Path:         fmt.Sprintf(pathCreateStage, url.PathEscape(string(stage))),
		Payload:      map[string]int64{"buyerItemId": buyerItemID},
		RequiresAuth: true,
	})
	if err := resp.Err(); err != nil {
		return fmt.Errorf("create delivery stage: %w", err)
	}
	s.log.WithField("buyer_item_id", buyerItemID).
		WithField("stage", stage).
		Debug("delivery stage recorded")
	return nil
}
