package checkout

import "errors"

// Error carries a message meant for the shopper.
type Error struct {
	Message string
	Err     error
}

func (e *Error) Error() string { return e.Message }

func (e *Error) Unwrap() error { return e.Err }

var (
	ErrBusy         = errors.New("checkout: a remote call is in flight")
	ErrInvalidEvent = errors.New("checkout: event does not apply to the current step")

	ErrInsufficientStock = errors.New("insufficient stock")

	ErrNotSignedIn     = &Error{Message: "Please log in to place an order"}
	ErrEmptyCart       = &Error{Message: "Your cart is empty"}
	ErrQuantity        = &Error{Message: "Quantity must be at least 1"}
	ErrShippingAddress = &Error{Message: "Please enter your shipping address"}
	ErrStoreLocation   = &Error{Message: "Please select a store location"}
	ErrOrderType       = &Error{Message: "Please choose online delivery or in-store pickup"}
	ErrDiscountCode    = &Error{Message: "Please enter a discount code"}
)

// Message returns the shopper-facing text of err, or fallback.
func Message(err error, fallback string) string {
	var e *Error
	if errors.As(err, &e) && e.Message != "" {
		return e.Message
	}
	return fallback
}
