// Package lifecycle sequences the buyer-visible order state machine:
// selected cart item, pending order, payment against a fresh price quote,
// delivery stages, receipt, refund. The canonical states live server-side;
// this layer only triggers transitions and re-fetches its view afterwards.
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/salehnevergiveup/marketplace-sdk/internal/storefront"
	"github.com/salehnevergiveup/marketplace-sdk/pkg/logger"
)

var (
	ErrNoPendingOrder   = errors.New("no pending order")
	ErrNoQuote          = errors.New("no price quote fetched for the pending order")
	ErrDeliveryComplete = errors.New("delivery already complete")
)

// Flow drives the order lifecycle for one buyer. It holds nothing beyond the
// last fetched snapshot of each list, refreshed after every successful
// transition.
//
// Submissions are guarded by a monotonically increasing attempt counter: a
// slow in-flight submit that finishes after a newer one has started must not
// clobber the newer state.
type Flow struct {
	svc *storefront.Service
	log *logger.Logger

	attempt atomic.Uint64

	mu        sync.Mutex
	cart      []storefront.CartItem
	pending   *storefront.PendingOrder
	quote     *storefront.RebateAmountList
	toReceive []storefront.BuyerItem
	received  []storefront.BuyerItem
	refunds   []storefront.BuyerItem
}

// New constructs a flow over the given façade.
func New(svc *storefront.Service, log *logger.Logger) *Flow {
	if log == nil {
		log = logger.NewDefault("lifecycle")
	}
	return &Flow{svc: svc, log: log}
}

// begin opens a submission attempt and returns its number.
func (f *Flow) begin() uint64 {
	return f.attempt.Add(1)
}

// apply runs fn under the lock unless a newer attempt has started since n.
// Returns whether fn ran.
func (f *Flow) apply(n uint64, fn func()) bool {
	if f.attempt.Load() != n {
		f.log.WithField("attempt", n).Debug("stale submission result dropped")
		return false
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	fn()
	return true
}

// Cart returns the last fetched cart snapshot.
func (f *Flow) Cart() []storefront.CartItem {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]storefront.CartItem(nil), f.cart...)
}

// Pending returns the current pending order, or nil.
func (f *Flow) Pending() *storefront.PendingOrder {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.pending == nil {
		return nil
	}
	order := *f.pending
	return &order
}

// Quote returns the rebate list fetched for the pending order, or nil.
func (f *Flow) Quote() *storefront.RebateAmountList {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.quote == nil {
		return nil
	}
	quote := *f.quote
	return &quote
}

// ToReceive returns the last fetched to-receive list.
func (f *Flow) ToReceive() []storefront.BuyerItem {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]storefront.BuyerItem(nil), f.toReceive...)
}

// Received returns the last fetched received list.
func (f *Flow) Received() []storefront.BuyerItem {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]storefront.BuyerItem(nil), f.received...)
}

// Refunds returns the last fetched refund list.
func (f *Flow) Refunds() []storefront.BuyerItem {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]storefront.BuyerItem(nil), f.refunds...)
}

// RefreshCart re-fetches the cart snapshot.
func (f *Flow) RefreshCart(ctx context.Context) error {
	n := f.begin()
	items, err := f.svc.FetchCart(ctx)
	if err != nil {
		return err
	}
	f.apply(n, func() { f.cart = items })
	return nil
}

// PlaceSelected places an order from the Selected items of the last cart
// snapshot and re-fetches the cart.
func (f *Flow) PlaceSelected(ctx context.Context) (*storefront.PendingOrder, error) {
	n := f.begin()
	order, err := f.svc.PlaceOrder(ctx, f.Cart())
	if err != nil {
		return nil, err
	}

	items, err := f.svc.FetchCart(ctx)
	if err != nil {
		// The order exists server-side; keep it and let the next cart poll
		// catch up.
		f.apply(n, func() {
			f.pending = order
			f.quote = nil
		})
		return order, nil
	}
	f.apply(n, func() {
		f.pending = order
		f.quote = nil
		f.cart = items
	})
	return order, nil
}

// CancelPendingItem removes one item from the unpaid pending order. When the
// last item goes, the pending order is emptied out locally as well.
func (f *Flow) CancelPendingItem(ctx context.Context, productID int64) error {
	n := f.begin()
	pending := f.Pending()
	if pending == nil {
		return ErrNoPendingOrder
	}
	if err := f.svc.CancelBuyerItem(ctx, pending.PurchaseOrderID, productID); err != nil {
		return err
	}

	f.apply(n, func() {
		if f.pending == nil {
			return
		}
		kept := f.pending.BuyerItems[:0]
		for _, item := range f.pending.BuyerItems {
			if item.Product.ID != productID {
				kept = append(kept, item)
			}
		}
		f.pending.BuyerItems = kept
		if len(kept) == 0 {
			f.pending = nil
			f.quote = nil
		}
	})
	return nil
}

// Checkout fetches a fresh price quote for the pending order. The quote must
// be shown to the buyer before ConfirmPayment: prices may have drifted since
// the cart was displayed.
func (f *Flow) Checkout(ctx context.Context) (*storefront.RebateAmountList, error) {
	n := f.begin()
	pending := f.Pending()
	if pending == nil {
		return nil, ErrNoPendingOrder
	}
	quote, err := f.svc.FetchRebateAmountList(ctx, pending.PurchaseOrderID)
	if err != nil {
		return nil, err
	}
	f.apply(n, func() { f.quote = quote })
	return quote, nil
}

// ConfirmPayment pays the pending order with the prices from the last
// Checkout quote. On success the pending order is consumed and the
// to-receive list refreshed.
func (f *Flow) ConfirmPayment(ctx context.Context, method string) error {
	n := f.begin()
	pending := f.Pending()
	if pending == nil {
		return ErrNoPendingOrder
	}
	quote := f.Quote()
	if quote == nil || quote.PurchaseOrderID != pending.PurchaseOrderID {
		return ErrNoQuote
	}

	if err := f.svc.MakePayment(ctx, storefront.NewPayment(*quote, method)); err != nil {
		return err
	}
	f.apply(n, func() {
		f.pending = nil
		f.quote = nil
	})

	items, err := f.svc.FetchToReceiveItems(ctx)
	if err != nil {
		return fmt.Errorf("refresh after payment: %w", err)
	}
	f.apply(n, func() { f.toReceive = items })
	return nil
}

// AdvanceDelivery appends the next delivery stage to a buyer item and
// refreshes the delivery lists. Once the final stage lands the item shows up
// as received.
func (f *Flow) AdvanceDelivery(ctx context.Context, item storefront.BuyerItem) error {
	next, ok := storefront.NextStage(item.LastDeliveryStage())
	if !ok {
		return ErrDeliveryComplete
	}
	n := f.begin()
	if err := f.svc.CreateDeliveryStage(ctx, item.ID, next); err != nil {
		return err
	}
	return f.refreshDeliveryLists(ctx, n)
}

// RequestItemRefund forwards a refund request for the item. CanRequestRefund
// only gates the control's display: the request always goes to the server so
// a denial is reported rather than hidden.
func (f *Flow) RequestItemRefund(ctx context.Context, item storefront.BuyerItem) error {
	if !item.CanRequestRefund() {
		f.log.WithField("buyer_item_id", item.ID).
			Debug("refund requested outside the eligibility window, forwarding anyway")
	}
	n := f.begin()
	if err := f.svc.RequestRefund(ctx, item.ID); err != nil {
		return err
	}
	return f.refreshRefundLists(ctx, n)
}

// WithdrawRefund cancels a pending refund request, returning the item to
// received.
func (f *Flow) WithdrawRefund(ctx context.Context, buyerItemID int64) error {
	n := f.begin()
	if err := f.svc.CancelRefundRequest(ctx, buyerItemID); err != nil {
		return err
	}
	return f.refreshRefundLists(ctx, n)
}

// ResolveRefund accepts or cancels a refund request (seller side).
func (f *Flow) ResolveRefund(ctx context.Context, buyerItemID int64, accept bool) error {
	n := f.begin()
	var err error
	if accept {
		err = f.svc.AcceptRefundRequest(ctx, buyerItemID)
	} else {
		err = f.svc.CancelRefundRequest(ctx, buyerItemID)
	}
	if err != nil {
		return err
	}
	return f.refreshRefundLists(ctx, n)
}

func (f *Flow) refreshDeliveryLists(ctx context.Context, n uint64) error {
	toReceive, err := f.svc.FetchToReceiveItems(ctx)
	if err != nil {
		return fmt.Errorf("refresh to-receive list: %w", err)
	}
	received, err := f.svc.FetchReceivedItems(ctx)
	if err != nil {
		return fmt.Errorf("refresh received list: %w", err)
	}
	f.apply(n, func() {
		f.toReceive = toReceive
		f.received = received
	})
	return nil
}

func (f *Flow) refreshRefundLists(ctx context.Context, n uint64) error {
	refunds, err := f.svc.FetchRefundItems(ctx)
	if err != nil {
		return fmt.Errorf("refresh refund list: %w", err)
	}
	received, err := f.svc.FetchReceivedItems(ctx)
	if err != nil {
		return fmt.Errorf("refresh received list: %w", err)
	}
	f.apply(n, func() {
		f.refunds = refunds
		f.received = received
	})
	return nil
}
