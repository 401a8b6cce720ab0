package checkout

import "github.com/fjod/shopsphere/internal/domain"

type Step string

const (
	StepMethod     Step = "method"
	StepDetails    Step = "details"
	StepOTP        Step = "otp"
	StepProcessing Step = "processing"
	StepSuccess    Step = "success"
	StepFailed     Step = "failed"
	StepCancelled  Step = "cancelled"
)

// IsTerminal reports whether no further event can change the session.
func (s Step) IsTerminal() bool {
	return s == StepSuccess || s == StepCancelled
}

func (s Step) String() string {
	return string(s)
}

// Effect is the remote side effect the driver has to run after a transition.
type Effect string

const (
	EffectNone       Effect = ""
	EffectPlaceOrder Effect = "place_order"
	EffectVerify     Effect = "verify"
	EffectComplete   Effect = "complete"
	EffectCancel     Effect = "cancel"
)

// State is one payment session. Order survives a retry so the order is created
// at most once per session.
type State struct {
	Step    Step                 `json:"step"`
	Method  domain.PaymentMethod `json:"method,omitempty"`
	UPIID   string               `json:"upiId,omitempty"`
	OTP     string               `json:"otp,omitempty"`
	Order   *domain.Order        `json:"order,omitempty"`
	Payment *domain.Payment      `json:"payment,omitempty"`
	Error   string               `json:"error,omitempty"`
	Effect  Effect               `json:"-"`
}

// Initial is the state a session opens in. No order exists yet.
func Initial() State {
	return State{Step: StepMethod}
}

// Event is something the shopper did or a remote call outcome.
type Event interface {
	event()
}

type (
	SelectMethod struct{ Method domain.PaymentMethod }
	EnterDetails struct{ UPIID string }
	SubmitDetails struct{}
	Back struct{}
	EnterOTP struct{ Raw string }
	SubmitOTP struct{}
	Retry struct{}
	Cancel struct{}

	// OrderPlaced reports that the order exists and payment was initiated.
	OrderPlaced struct {
		Order   *domain.Order
		Payment *domain.Payment
	}
	// PlaceFailed reports a failed create-order or initiate-payment call. Order
	// is set when creation succeeded and only initiation failed.
	PlaceFailed struct {
		Order  *domain.Order
		Reason string
	}
	VerifySucceeded struct{ Payment *domain.Payment }
	VerifyFailed    struct {
		Payment *domain.Payment
		Reason  string
	}
)

func (SelectMethod) event()    {}
func (EnterDetails) event()    {}
func (SubmitDetails) event()   {}
func (Back) event()            {}
func (EnterOTP) event()        {}
func (SubmitOTP) event()       {}
func (Retry) event()           {}
func (Cancel) event()          {}
func (OrderPlaced) event()     {}
func (PlaceFailed) event()     {}
func (VerifySucceeded) event() {}
func (VerifyFailed) event()    {}
