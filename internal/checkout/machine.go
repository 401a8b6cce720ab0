package checkout

import (
	"regexp"
	"strings"
	"unicode"
)

const otpLength = 6

const (
	MsgInvalidOTP        = "Please enter a valid 6-digit OTP"
	MsgUPIRequired       = "Please enter your UPI ID"
	MsgInvalidUPI        = "Please enter a valid UPI ID"
	MsgUnsupportedMethod = "Only UPI and COD payment methods are supported"
	MsgPlaceFailed       = "Failed to process order. Please try again."
	MsgPaymentFailed     = "Payment failed. Please try again."
	MsgVerifyFailed      = "Payment verification failed. Please try again."
)

// upiPattern is a shallow shape check, the payment service does the real one.
var upiPattern = regexp.MustCompile(`^[\w.\-]{2,256}@[a-zA-Z]{2,64}$`)

// Next is the pure transition function. Events that do not apply to the
// current step leave the state unchanged.
func Next(s State, ev Event) State {
	next, _ := transition(s, ev)
	return next
}

// Accepts reports whether ev applies to s.
func Accepts(s State, ev Event) bool {
	_, ok := transition(s, ev)
	return ok
}

func transition(s State, ev Event) (State, bool) {
	if s.Step.IsTerminal() {
		return s, false
	}
	s.Effect = EffectNone

	switch e := ev.(type) {
	case SelectMethod:
		if s.Step != StepMethod {
			return s, false
		}
		if !e.Method.Valid() {
			s.Error = MsgUnsupportedMethod
			return s, true
		}
		s.Method = e.Method
		s.Error = ""
		if e.Method.RequiresDetails() {
			s.Step = StepDetails
			return s, true
		}
		s.Step = StepProcessing
		s.Effect = EffectPlaceOrder
		return s, true

	case EnterDetails:
		if s.Step != StepDetails {
			return s, false
		}
		s.UPIID = e.UPIID
		s.Error = ""
		return s, true

	case SubmitDetails:
		if s.Step != StepDetails {
			return s, false
		}
		upi := strings.TrimSpace(s.UPIID)
		switch {
		case upi == "":
			s.Error = MsgUPIRequired
		case !upiPattern.MatchString(upi):
			s.Error = MsgInvalidUPI
		default:
			s.UPIID = upi
			s.Error = ""
			s.Step = StepProcessing
			s.Effect = EffectPlaceOrder
		}
		return s, true

	case Back:
		if s.Step != StepDetails {
			return s, false
		}
		s.Step = StepMethod
		s.Error = ""
		return s, true

	case EnterOTP:
		if s.Step != StepOTP {
			return s, false
		}
		s.OTP = SanitizeOTP(e.Raw)
		s.Error = ""
		return s, true

	case SubmitOTP:
		if s.Step != StepOTP {
			return s, false
		}
		if len(s.OTP) != otpLength {
			s.Error = MsgInvalidOTP
			return s, true
		}
		s.Error = ""
		s.Step = StepProcessing
		s.Effect = EffectVerify
		return s, true

	case OrderPlaced:
		if s.Step != StepProcessing || s.Payment != nil {
			return s, false
		}
		s.Order = e.Order
		s.Payment = e.Payment
		s.Error = ""
		if s.Method.RequiresDetails() {
			s.Step = StepOTP
			return s, true
		}
		s.Step = StepSuccess
		s.Effect = EffectComplete
		return s, true

	case PlaceFailed:
		if s.Step != StepProcessing || s.Payment != nil {
			return s, false
		}
		if e.Order != nil {
			s.Order = e.Order
		}
		s.Step = StepMethod
		s.Error = reasonOr(e.Reason, MsgPlaceFailed)
		return s, true

	case VerifySucceeded:
		if s.Step != StepProcessing || s.Payment == nil {
			return s, false
		}
		if e.Payment != nil {
			s.Payment = e.Payment
		}
		s.Step = StepSuccess
		s.Effect = EffectComplete
		return s, true

	case VerifyFailed:
		if s.Step != StepProcessing || s.Payment == nil {
			return s, false
		}
		if e.Payment != nil {
			s.Payment = e.Payment
		}
		s.Step = StepFailed
		s.Error = reasonOr(e.Reason, MsgPaymentFailed)
		return s, true

	case Retry:
		if s.Step != StepFailed {
			return s, false
		}
		return State{Step: StepMethod, Order: s.Order}, true

	case Cancel:
		// A remote call in flight cannot be abandoned.
		if s.Step == StepProcessing {
			return s, false
		}
		s.Step = StepCancelled
		s.Effect = EffectCancel
		return s, true
	}
	return s, false
}

// SanitizeOTP keeps the first six digits of raw.
func SanitizeOTP(raw string) string {
	var b strings.Builder
	for _, r := range raw {
		if b.Len() == otpLength {
			break
		}
		if r < unicode.MaxASCII && unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// ValidUPI reports whether id has the shape of a UPI id.
func ValidUPI(id string) bool {
	return upiPattern.MatchString(strings.TrimSpace(id))
}

func reasonOr(reason, fallback string) string {
	if strings.TrimSpace(reason) == "" {
		return fallback
	}
	return reason
}
