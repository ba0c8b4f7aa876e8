// Package storefront exposes the cart and order operations of the
// marketplace backend as typed calls over the request dispatcher.
package storefront

import (
	"time"
)

// ItemStatus is the selection state of a cart item.
type ItemStatus string

const (
	StatusSelected   ItemStatus = "Selected"
	StatusUnselected ItemStatus = "Unselected"
	StatusDisabled   ItemStatus = "Disabled"
)

// ProductStatus is the availability state of a product.
type ProductStatus string

const (
	ProductAvailable   ProductStatus = "available"
	ProductUnavailable ProductStatus = "unavailable"
	ProductSoldOut     ProductStatus = "sold-out"
)

// Product is the product view embedded in cart and order items.
type Product struct {
	ID     int64         `json:"id"`
	Name   string        `json:"name"`
	Price  float64       `json:"price"`
	Status ProductStatus `json:"status"`
}

// CartItem is one line of the shopping cart.
type CartItem struct {
	ID      int64      `json:"id"`
	Product Product    `json:"product"`
	Status  ItemStatus `json:"status"`
}

// Selectable reports whether the item's product can still be bought.
func (c CartItem) Selectable() bool {
	return c.Product.Status == ProductAvailable
}

// NormalizeCartItem enforces the availability invariant on a fetched item: an
// item whose product is no longer available must never present as Selected,
// so it is coerced to Disabled. Pure function, applied to every item the
// backend returns. The server enforces the same rule; this keeps the local
// view consistent between polls.
func NormalizeCartItem(item CartItem) CartItem {
	if !item.Selectable() {
		item.Status = StatusDisabled
	}
	return item
}

// PendingOrder is a placed, not yet paid order.
type PendingOrder struct {
	PurchaseOrderID int64       `json:"purchaseOrderId"`
	TotalAmount     float64     `json:"totalAmount"`
	CreatedAt       time.Time   `json:"createdAt"`
	BuyerItems      []BuyerItem `json:"buyerItems"`
}

// BuyerItemStatus is the lifecycle state of one paid order line.
type BuyerItemStatus string

const (
	BuyerItemToReceive       BuyerItemStatus = "toReceive"
	BuyerItemReceived        BuyerItemStatus = "received"
	BuyerItemRefundRequested BuyerItemStatus = "refundRequested"
	BuyerItemRefundAccepted  BuyerItemStatus = "refundAccepted"
	BuyerItemRefundRejected  BuyerItemStatus = "refundRejected"
)

// DeliveryStage is one checkpoint in a buyer item's shipment progress.
// Stages form an ordered, append-only sequence; each one is immutable and
// timestamped once created.
type DeliveryStage string

const (
	StageArrivedSortingFacility DeliveryStage = "Arrived Sorting Facility"
	StageArrivedDeliveryHub     DeliveryStage = "Arrived Delivery Hub"
	StageOutForDelivery         DeliveryStage = "Out For Delivery"
	StageItemDelivered          DeliveryStage = "Item Delivered"
)

// DeliveryStages lists every stage in shipment order.
var DeliveryStages = []DeliveryStage{
	StageArrivedSortingFacility,
	StageArrivedDeliveryHub,
	StageOutForDelivery,
	StageItemDelivered,
}

// Valid reports whether s is a known delivery stage.
func (s DeliveryStage) Valid() bool {
	for _, stage := range DeliveryStages {
		if stage == s {
			return true
		}
	}
	return false
}

// NextStage returns the stage following last, or the first stage when last is
// empty. The second result is false once the sequence is complete.
func NextStage(last DeliveryStage) (DeliveryStage, bool) {
	if last == "" {
		return DeliveryStages[0], true
	}
	for i, stage := range DeliveryStages {
		if stage == last {
			if i+1 < len(DeliveryStages) {
				return DeliveryStages[i+1], true
			}
			return "", false
		}
	}
	return "", false
}

// BuyerItemDelivery is one recorded delivery checkpoint.
type BuyerItemDelivery struct {
	Stage     DeliveryStage `json:"stage"`
	CreatedAt time.Time     `json:"createdAt"`
}

// BuyerItem is one line item of a paid order, tracked through delivery and
// refund independently of its siblings.
type BuyerItem struct {
	ID                  int64               `json:"id"`
	PurchaseOrderID     int64               `json:"purchaseOrderId"`
	Product             Product             `json:"product"`
	Status              BuyerItemStatus     `json:"status"`
	Deliveries          []BuyerItemDelivery `json:"deliveries"`
	Refundable          bool                `json:"refundableBoolean"`
	RemainingRefundDays int                 `json:"remainingRefundDays"`
}

// LastDeliveryStage returns the most recent delivery checkpoint, or "".
func (b BuyerItem) LastDeliveryStage() DeliveryStage {
	if len(b.Deliveries) == 0 {
		return ""
	}
	return b.Deliveries[len(b.Deliveries)-1].Stage
}

// Delivered reports whether the item reached its final delivery stage.
func (b BuyerItem) Delivered() bool {
	return b.LastDeliveryStage() == StageItemDelivered
}

// CanRequestRefund reports whether the refund control should be offered. The
// server makes the binding decision; this only gates the display, and a
// request outside the window is still forwarded so the server's denial is
// visible.
func (b BuyerItem) CanRequestRefund() bool {
	return b.Refundable && b.RemainingRefundDays > 0
}

// RebateAmount is the server-computed price for one product at payment time.
type RebateAmount struct {
	ProductID   int64   `json:"productId"`
	RebateRate  float64 `json:"rebateRate"`
	FinalPrice  float64 `json:"finalPrice"`
	DeliveryFee float64 `json:"deliveryFee"`
}

// RebateAmountList is the re-quoted price set for a pending order, fetched
// immediately before payment. Prices here may differ from the cart-time view
// and are the only prices payment may use.
type RebateAmountList struct {
	PurchaseOrderID int64          `json:"purchaseOrderId"`
	FinalPrice      float64        `json:"finalPrice"`
	Items           []RebateAmount `json:"items"`
}

// PaymentRequest is the payload for order/make-payment.
type PaymentRequest struct {
	PurchaseOrderID int64          `json:"purchaseOrderId"`
	FinalPrice      float64        `json:"finalPrice"`
	Items           []RebateAmount `json:"items"`
	Method          string         `json:"paymentMethod"`
}

// NewPayment builds a payment from a fetched rebate list, carrying its prices
// through unchanged.
func NewPayment(list RebateAmountList, method string) PaymentRequest {
	return PaymentRequest{
		PurchaseOrderID: list.PurchaseOrderID,
		FinalPrice:      list.FinalPrice,
		Items:           list.Items,
		Method:          method,
	}
}
