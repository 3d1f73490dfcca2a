// Package checkout tracks the purchase flow state: buyer mode, shipping
// selection and a simulated payment step. The cart itself stays in the cart
// package; checkout only decides whether the flow may advance.
package checkout

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"larmone-cart/internal/model"
)

// PurchaseMode selects guest or registered-customer checkout.
type PurchaseMode string

const (
	ModeGuest    PurchaseMode = "guest"
	ModeCustomer PurchaseMode = "customer"
)

// PaymentStatus is the outcome of the payment step.
type PaymentStatus string

const (
	PaymentPending PaymentStatus = ""
	PaymentSuccess PaymentStatus = "success"
	PaymentFailure PaymentStatus = "failure"
)

// ShippingOption is one of the storefront's fixed delivery methods.
type ShippingOption struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Description string  `json:"description"`
	ETA         string  `json:"eta"`
	Price       float64 `json:"price"`
}

// shippingOptions mirrors the storefront's delivery catalog. Prices in CLP.
var shippingOptions = []ShippingOption{
	{
		ID:          "standard",
		Name:        "Standard shipping",
		Description: "Home delivery with nationwide coverage.",
		ETA:         "3 to 5 business days",
		Price:       3990,
	},
	{
		ID:          "express",
		Name:        "Express shipping",
		Description: "Priority handling and transport for urgent deliveries.",
		ETA:         "24 to 48 business hours",
		Price:       6990,
	},
	{
		ID:          "pickup",
		Name:        "Store pickup",
		Description: "Pick up your order at the Santiago showroom at no extra cost.",
		ETA:         "Ready within 24 business hours",
		Price:       0,
	},
}

// ShippingOptions returns the fixed delivery methods.
func ShippingOptions() []ShippingOption {
	out := make([]ShippingOption, len(shippingOptions))
	copy(out, shippingOptions)
	return out
}

// OptionByID resolves a shipping option.
func OptionByID(id string) (ShippingOption, bool) {
	for _, opt := range shippingOptions {
		if opt.ID == id {
			return opt, true
		}
	}
	return ShippingOption{}, false
}

// Address is the delivery destination collected during checkout.
type Address struct {
	RegionID     string `json:"regionId"`
	RegionName   string `json:"regionName"`
	CityID       string `json:"cityId"`
	CityName     string `json:"cityName"`
	CommuneID    string `json:"communeId"`
	CommuneName  string `json:"communeName"`
	Street       string `json:"street"`
	Number       string `json:"number"`
	Apartment    string `json:"apartment,omitempty"`
	Instructions string `json:"instructions,omitempty"`
}

// Flow is one checkout in progress. Safe for concurrent use.
type Flow struct {
	mu           sync.Mutex
	mode         PurchaseMode
	address      *Address
	optionID     string
	status       PaymentStatus
	paymentDelay time.Duration
	rng          *rand.Rand
}

// DefaultPaymentDelay simulates the payment gateway round trip.
const DefaultPaymentDelay = 1200 * time.Millisecond

// NewFlow creates an empty checkout flow.
func NewFlow() *Flow {
	return &Flow{
		paymentDelay: DefaultPaymentDelay,
		rng:          rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// SetPaymentDelay overrides the simulated gateway delay. Used by tests.
func (f *Flow) SetPaymentDelay(d time.Duration) {
	f.mu.Lock()
	f.paymentDelay = d
	f.mu.Unlock()
}

// SetPurchaseMode records whether the buyer checks out as guest or customer.
func (f *Flow) SetPurchaseMode(mode PurchaseMode) error {
	if mode != ModeGuest && mode != ModeCustomer {
		return model.NewValidationError("purchaseMode", "must be guest or customer")
	}
	f.mu.Lock()
	f.mode = mode
	f.mu.Unlock()
	return nil
}

// SetShippingDetails records the delivery address and method.
func (f *Flow) SetShippingDetails(addr Address, optionID string) error {
	if _, ok := OptionByID(optionID); !ok {
		return model.NewNotFoundError("shipping option " + optionID)
	}
	if addr.Street == "" || addr.CommuneID == "" {
		return model.NewValidationError("shippingAddress", "street and commune are required")
	}
	f.mu.Lock()
	f.address = &addr
	f.optionID = optionID
	f.mu.Unlock()
	return nil
}

// ResetShipping clears the delivery selection, keeping the purchase mode.
func (f *Flow) ResetShipping() {
	f.mu.Lock()
	f.address = nil
	f.optionID = ""
	f.mu.Unlock()
}

// ReadyForShipping reports whether a purchase mode has been chosen.
func (f *Flow) ReadyForShipping() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.mode != ""
}

// ReadyForPayment reports whether mode, address and shipping method are set.
func (f *Flow) ReadyForPayment() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.mode != "" && f.address != nil && f.optionID != ""
}

// Status returns the last payment outcome.
func (f *Flow) Status() PaymentStatus {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.status
}

// ShippingCost returns the price of the selected shipping option, 0 if none.
func (f *Flow) ShippingCost() float64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	if opt, ok := OptionByID(f.optionID); ok {
		return opt.Price
	}
	return 0
}

// ProcessPayment simulates the payment gateway: a fixed delay followed by a
// randomized outcome, or the forced outcome when one is supplied (used by the
// demo storefront to exercise both paths).
func (f *Flow) ProcessPayment(ctx context.Context, forced PaymentStatus) (PaymentStatus, error) {
	if !f.ReadyForPayment() {
		return PaymentPending, model.NewValidationError("checkout", "shipping details are incomplete")
	}

	f.mu.Lock()
	f.status = PaymentPending
	delay := f.paymentDelay
	f.mu.Unlock()

	select {
	case <-ctx.Done():
		return PaymentPending, ctx.Err()
	case <-time.After(delay):
	}

	status := forced
	if status != PaymentSuccess && status != PaymentFailure {
		status = PaymentSuccess
		f.mu.Lock()
		if f.rng.Float64() <= 0.2 {
			status = PaymentFailure
		}
		f.mu.Unlock()
	}

	f.mu.Lock()
	f.status = status
	f.mu.Unlock()
	return status, nil
}

// Clear resets the whole flow.
func (f *Flow) Clear() {
	f.mu.Lock()
	f.mode = ""
	f.address = nil
	f.optionID = ""
	f.status = PaymentPending
	f.mu.Unlock()
}
