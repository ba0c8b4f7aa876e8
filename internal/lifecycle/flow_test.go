package lifecycle

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"github.com/salehnevergiveup/marketplace-sdk/internal/session"
	"github.com/salehnevergiveup/marketplace-sdk/internal/storefront"
	"github.com/salehnevergiveup/marketplace-sdk/internal/transport"
	"github.com/salehnevergiveup/marketplace-sdk/pkg/logger"
	"github.com/salehnevergiveup/marketplace-sdk/pkg/testutil"
)

func newTestFlow(t *testing.T) (*Flow, *testutil.FakeBackend) {
	t.Helper()
	b := testutil.NewFakeBackend()
	t.Cleanup(b.Close)

	sess := session.New()
	sess.SetToken(testutil.MakeToken("buyer-1", "buyer", time.Now().Add(time.Hour), nil))
	client := transport.NewClient(sess, transport.Config{
		AuthBaseURL:   b.AuthBaseURL(),
		PublicBaseURL: b.PublicBaseURL(),
		Logger:        logger.NewNop(),
	})
	svc := storefront.New(client, logger.NewNop())
	return New(svc, logger.NewNop()), b
}

// Cart with one Selected and one Unselected item, placed, quoted, and paid:
// the payment carries the quoted prices and the buyer items land in
// to-receive.
func TestFlow_CartToPaidOrder(t *testing.T) {
	flow, b := newTestFlow(t)
	ctx := context.Background()

	b.Handle(http.MethodGet, "/shoppingcart", func(w http.ResponseWriter, r *http.Request) {
		testutil.WriteSuccess(w, []storefront.CartItem{
			// Cart-time price 100: the quote below re-prices it to 90.
			{ID: 1, Product: storefront.Product{ID: 7, Price: 100, Status: storefront.ProductAvailable}, Status: storefront.StatusSelected},
			{ID: 2, Product: storefront.Product{ID: 8, Price: 50, Status: storefront.ProductAvailable}, Status: storefront.StatusUnselected},
		})
	})
	b.Handle(http.MethodPost, "/product/place-order", func(w http.ResponseWriter, r *http.Request) {
		testutil.WriteSuccess(w, storefront.PendingOrder{
			PurchaseOrderID: 42,
			TotalAmount:     100,
			CreatedAt:       time.Now(),
			BuyerItems: []storefront.BuyerItem{
				{ID: 601, PurchaseOrderID: 42, Product: storefront.Product{ID: 7}},
			},
		})
	})
	b.Handle(http.MethodGet, "/product/fetch-rebate-amount-list/{id}", func(w http.ResponseWriter, r *http.Request) {
		testutil.WriteSuccess(w, storefront.RebateAmountList{
			PurchaseOrderID: 42,
			FinalPrice:      100,
			Items: []storefront.RebateAmount{
				{ProductID: 7, RebateRate: 0.1, FinalPrice: 90, DeliveryFee: 10},
			},
		})
	})
	b.Handle(http.MethodPost, "/order/make-payment", func(w http.ResponseWriter, r *http.Request) {
		testutil.WriteSuccess(w, nil)
	})
	b.Handle(http.MethodGet, "/buyer-item/to-receive", func(w http.ResponseWriter, r *http.Request) {
		testutil.WriteSuccess(w, []storefront.BuyerItem{
			{ID: 601, PurchaseOrderID: 42, Product: storefront.Product{ID: 7}, Status: storefront.BuyerItemToReceive},
		})
	})

	require.NoError(t, flow.RefreshCart(ctx))
	require.Len(t, flow.Cart(), 2)

	order, err := flow.PlaceSelected(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(42), order.PurchaseOrderID)

	// Only the Selected cart item went into the order.
	placed := b.LastRequestTo("/product/place-order")
	require.NotNil(t, placed)
	ids := gjson.GetBytes(placed.Body, "cartItemIds").Array()
	require.Len(t, ids, 1)
	assert.Equal(t, int64(1), ids[0].Int())

	quote, err := flow.Checkout(ctx)
	require.NoError(t, err)
	assert.Equal(t, 100.0, quote.FinalPrice)

	require.NoError(t, flow.ConfirmPayment(ctx, "card"))

	// The payment used the quoted price (90), not the cart-time price (100).
	paid := b.LastRequestTo("/order/make-payment")
	require.NotNil(t, paid)
	assert.Equal(t, 90.0, gjson.GetBytes(paid.Body, "items.0.finalPrice").Float())
	assert.Equal(t, int64(42), gjson.GetBytes(paid.Body, "purchaseOrderId").Int())

	assert.Nil(t, flow.Pending(), "pending order is consumed by payment")
	assert.Nil(t, flow.Quote(), "quote is consumed by payment")
	require.Len(t, flow.ToReceive(), 1)
	assert.Equal(t, storefront.BuyerItemToReceive, flow.ToReceive()[0].Status)
}

func TestFlow_PaymentRequiresFreshQuote(t *testing.T) {
	flow, b := newTestFlow(t)
	ctx := context.Background()

	if err := flow.ConfirmPayment(ctx, "card"); !errors.Is(err, ErrNoPendingOrder) {
		t.Errorf("err = %v, want ErrNoPendingOrder", err)
	}
	if _, err := flow.Checkout(ctx); !errors.Is(err, ErrNoPendingOrder) {
		t.Errorf("err = %v, want ErrNoPendingOrder", err)
	}

	b.Handle(http.MethodGet, "/shoppingcart", func(w http.ResponseWriter, r *http.Request) {
		testutil.WriteSuccess(w, []storefront.CartItem{
			{ID: 1, Product: storefront.Product{ID: 7, Status: storefront.ProductAvailable}, Status: storefront.StatusSelected},
		})
	})
	b.Handle(http.MethodPost, "/product/place-order", func(w http.ResponseWriter, r *http.Request) {
		testutil.WriteSuccess(w, storefront.PendingOrder{PurchaseOrderID: 42})
	})

	require.NoError(t, flow.RefreshCart(ctx))
	_, err := flow.PlaceSelected(ctx)
	require.NoError(t, err)

	// Placing an order is not enough: payment without Checkout has no quote
	// to price from.
	if err := flow.ConfirmPayment(ctx, "card"); !errors.Is(err, ErrNoQuote) {
		t.Errorf("err = %v, want ErrNoQuote", err)
	}
}

func TestFlow_CancelPendingItem(t *testing.T) {
	flow, b := newTestFlow(t)
	ctx := context.Background()

	b.Handle(http.MethodGet, "/shoppingcart", func(w http.ResponseWriter, r *http.Request) {
		testutil.WriteSuccess(w, []storefront.CartItem{
			{ID: 1, Product: storefront.Product{ID: 7, Status: storefront.ProductAvailable}, Status: storefront.StatusSelected},
			{ID: 2, Product: storefront.Product{ID: 8, Status: storefront.ProductAvailable}, Status: storefront.StatusSelected},
		})
	})
	b.Handle(http.MethodPost, "/product/place-order", func(w http.ResponseWriter, r *http.Request) {
		testutil.WriteSuccess(w, storefront.PendingOrder{
			PurchaseOrderID: 43,
			BuyerItems: []storefront.BuyerItem{
				{ID: 601, Product: storefront.Product{ID: 7}},
				{ID: 602, Product: storefront.Product{ID: 8}},
			},
		})
	})
	b.Handle(http.MethodPost, "/buyer-item/cancel", func(w http.ResponseWriter, r *http.Request) {
		testutil.WriteSuccess(w, nil)
	})

	require.NoError(t, flow.RefreshCart(ctx))
	_, err := flow.PlaceSelected(ctx)
	require.NoError(t, err)

	require.NoError(t, flow.CancelPendingItem(ctx, 7))
	pending := flow.Pending()
	require.NotNil(t, pending)
	require.Len(t, pending.BuyerItems, 1)
	assert.Equal(t, int64(8), pending.BuyerItems[0].Product.ID)

	// Cancelling the last item empties the order.
	require.NoError(t, flow.CancelPendingItem(ctx, 8))
	assert.Nil(t, flow.Pending())

	if err := flow.CancelPendingItem(ctx, 8); !errors.Is(err, ErrNoPendingOrder) {
		t.Errorf("err = %v, want ErrNoPendingOrder", err)
	}
}

func TestFlow_AdvanceDelivery(t *testing.T) {
	flow, b := newTestFlow(t)
	ctx := context.Background()

	var created []string
	b.Handle(http.MethodPost, "/buyer-item/create-stage/{stage}", func(w http.ResponseWriter, r *http.Request) {
		created = append(created, r.URL.Path)
		testutil.WriteSuccess(w, nil)
	})
	b.Handle(http.MethodGet, "/buyer-item/to-receive", func(w http.ResponseWriter, r *http.Request) {
		testutil.WriteSuccess(w, []storefront.BuyerItem{})
	})
	b.Handle(http.MethodGet, "/buyer-item/received", func(w http.ResponseWriter, r *http.Request) {
		testutil.WriteSuccess(w, []storefront.BuyerItem{
			{ID: 601, Status: storefront.BuyerItemReceived},
		})
	})

	item := storefront.BuyerItem{
		ID:     601,
		Status: storefront.BuyerItemToReceive,
		Deliveries: []storefront.BuyerItemDelivery{
			{Stage: storefront.StageOutForDelivery, CreatedAt: time.Now()},
		},
	}
	require.NoError(t, flow.AdvanceDelivery(ctx, item))
	require.Len(t, created, 1)
	assert.Contains(t, created[0], "Item Delivered")

	require.Len(t, flow.Received(), 1)
	assert.Empty(t, flow.ToReceive())

	// A delivered item has nowhere left to go.
	item.Deliveries = append(item.Deliveries, storefront.BuyerItemDelivery{Stage: storefront.StageItemDelivered})
	if err := flow.AdvanceDelivery(ctx, item); !errors.Is(err, ErrDeliveryComplete) {
		t.Errorf("err = %v, want ErrDeliveryComplete", err)
	}
}

func TestFlow_RefundPaths(t *testing.T) {
	flow, b := newTestFlow(t)
	ctx := context.Background()

	refundOK := true
	b.Handle(http.MethodPost, "/buyer-item/request-refund", func(w http.ResponseWriter, r *http.Request) {
		if !refundOK {
			testutil.WriteFailure(w, http.StatusBadRequest, "refund window expired")
			return
		}
		testutil.WriteSuccess(w, nil)
	})
	b.Handle(http.MethodPost, "/product/rejectcancel-refund", func(w http.ResponseWriter, r *http.Request) {
		testutil.WriteSuccess(w, nil)
	})
	b.Handle(http.MethodPost, "/product/accept-refund", func(w http.ResponseWriter, r *http.Request) {
		testutil.WriteSuccess(w, nil)
	})
	b.Handle(http.MethodGet, "/buyer-item/refund", func(w http.ResponseWriter, r *http.Request) {
		testutil.WriteSuccess(w, []storefront.BuyerItem{
			{ID: 5, Status: storefront.BuyerItemRefundRequested},
		})
	})
	b.Handle(http.MethodGet, "/buyer-item/received", func(w http.ResponseWriter, r *http.Request) {
		testutil.WriteSuccess(w, []storefront.BuyerItem{})
	})

	eligible := storefront.BuyerItem{ID: 5, Status: storefront.BuyerItemReceived, Refundable: true, RemainingRefundDays: 3}
	require.NoError(t, flow.RequestItemRefund(ctx, eligible))
	require.Len(t, flow.Refunds(), 1)

	require.NoError(t, flow.WithdrawRefund(ctx, 5))
	require.NoError(t, flow.ResolveRefund(ctx, 5, true))
	require.NoError(t, flow.ResolveRefund(ctx, 5, false))

	// The deny path stays visible: the request is forwarded even when the
	// client-side gate says no, and the server's rejection surfaces.
	refundOK = false
	expired := storefront.BuyerItem{ID: 5, Status: storefront.BuyerItemReceived, Refundable: true, RemainingRefundDays: 0}
	assert.False(t, expired.CanRequestRefund())
	err := flow.RequestItemRefund(ctx, expired)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "refund window expired")
}

// A submission that completes after a newer one has begun must not overwrite
// the newer state.
func TestFlow_StaleSubmissionDropped(t *testing.T) {
	flow, _ := newTestFlow(t)

	first := flow.begin()
	second := flow.begin()

	applied := flow.apply(first, func() { flow.cart = []storefront.CartItem{{ID: 1}} })
	if applied {
		t.Error("stale attempt should not apply")
	}
	if len(flow.Cart()) != 0 {
		t.Error("stale attempt mutated state")
	}

	applied = flow.apply(second, func() { flow.cart = []storefront.CartItem{{ID: 2}} })
	if !applied {
		t.Error("current attempt should apply")
	}
	if got := flow.Cart(); len(got) != 1 || got[0].ID != 2 {
		t.Errorf("cart = %+v, want the newer submission's state", got)
	}
}
