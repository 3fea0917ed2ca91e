package x402

import "time"

// PaymentEventType identifies the kind of payment event.
type PaymentEventType string

const (
	// PaymentEventAttempt fires when a payment is about to be sent.
	PaymentEventAttempt PaymentEventType = "attempt"

	// PaymentEventSuccess fires when a payment settled successfully.
	PaymentEventSuccess PaymentEventType = "success"

	// PaymentEventFailure fires when signing or sending a payment failed.
	PaymentEventFailure PaymentEventType = "failure"
)

// PaymentEvent carries the details of a client-side payment lifecycle event.
type PaymentEvent struct {
	Type        PaymentEventType
	Timestamp   time.Time
	Method      string
	URL         string
	Network     string
	Scheme      string
	Amount      string
	Asset       string
	Recipient   string
	Transaction string
	Payer       string
	Error       error
	Duration    time.Duration
}

// PaymentCallback receives payment lifecycle events.
type PaymentCallback func(event PaymentEvent)

// FindMatchingRequirements returns the first offer whose network and scheme
// match the payment, or ErrUnsupportedScheme when none does.
func FindMatchingRequirements(payment PaymentPayload, accepts []PaymentRequirements) (*PaymentRequirements, error) {
	for i := range accepts {
		if accepts[i].Network == payment.Network && accepts[i].Scheme == payment.Scheme {
			return &accepts[i], nil
		}
	}
	return nil, ErrUnsupportedScheme
}
