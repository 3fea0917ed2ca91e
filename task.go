package x402

import "fmt"

// PaymentStatus is the payment lifecycle state recorded in task metadata.
type PaymentStatus string

const (
	// StatusNoPayment means no payment interaction has occurred yet.
	StatusNoPayment PaymentStatus = "no-payment"

	// StatusPaymentRequired means a challenge has been raised and offers attached.
	StatusPaymentRequired PaymentStatus = "payment-required"

	// StatusPaymentSubmitted means the caller attached a signed payment payload.
	StatusPaymentSubmitted PaymentStatus = "payment-submitted"

	// StatusPaymentVerified means the payload passed verification.
	StatusPaymentVerified PaymentStatus = "payment-verified"

	// StatusPaymentSettled is the success terminal state.
	StatusPaymentSettled PaymentStatus = "payment-settled"

	// StatusPaymentFailed is the failure terminal state, reachable from
	// submitted (verification failed) or verified (settlement failed).
	StatusPaymentFailed PaymentStatus = "payment-failed"
)

// Terminal reports whether the status is write-once terminal.
func (s PaymentStatus) Terminal() bool {
	return s == StatusPaymentSettled || s == StatusPaymentFailed
}

// Task metadata keys. The metadata map is opaque to external callers; these
// are the fixed names the tracker reads and writes.
const (
	MetadataStatusKey   = "x402.payment.status"
	MetadataRequiredKey = "x402.payment.required"
	MetadataPayloadKey  = "x402.payment.payload"
	MetadataReceiptKey  = "x402.payment.receipt"
)

// Task tracks one payment lifecycle through an opaque metadata map. It is a
// caller-owned record driven by a single logical caller at a time; embedders
// that allow concurrent drivers must serialize access themselves.
type Task struct {
	// Metadata holds the tracked state under the Metadata*Key names.
	Metadata map[string]interface{}
}

// NewTask creates a task with no payment interaction recorded.
func NewTask() *Task {
	return &Task{Metadata: map[string]interface{}{
		MetadataStatusKey: string(StatusNoPayment),
	}}
}

// TaskFromMetadata wraps an existing metadata map, e.g. one deserialized
// from an embedding system's task store.
func TaskFromMetadata(md map[string]interface{}) *Task {
	if md == nil {
		md = map[string]interface{}{}
	}
	if _, ok := md[MetadataStatusKey]; !ok {
		md[MetadataStatusKey] = string(StatusNoPayment)
	}
	return &Task{Metadata: md}
}

// Status returns the current payment status.
func (t *Task) Status() PaymentStatus {
	if s, ok := t.Metadata[MetadataStatusKey].(string); ok {
		return PaymentStatus(s)
	}
	return StatusNoPayment
}

// Offers returns the payment options attached by the current challenge.
func (t *Task) Offers() []PaymentRequirements {
	if offers, ok := t.Metadata[MetadataRequiredKey].([]PaymentRequirements); ok {
		return offers
	}
	var offers []PaymentRequirements
	if err := remarshal(t.Metadata[MetadataRequiredKey], &offers); err != nil {
		return nil
	}
	return offers
}

// Payload returns the most recently submitted payment payload, or nil.
func (t *Task) Payload() *PaymentPayload {
	switch v := t.Metadata[MetadataPayloadKey].(type) {
	case *PaymentPayload:
		return v
	case PaymentPayload:
		return &v
	case nil:
		return nil
	default:
		var p PaymentPayload
		if err := remarshal(v, &p); err != nil {
			return nil
		}
		return &p
	}
}

// Receipt returns the terminal settle response, or nil before settlement.
func (t *Task) Receipt() *SettleResponse {
	switch v := t.Metadata[MetadataReceiptKey].(type) {
	case *SettleResponse:
		return v
	case SettleResponse:
		return &v
	case nil:
		return nil
	default:
		var r SettleResponse
		if err := remarshal(v, &r); err != nil {
			return nil
		}
		return &r
	}
}

// RequirePayment records the NoPayment -> PaymentRequired transition,
// attaching the challenge's offers.
func (t *Task) RequirePayment(challenge *PaymentRequiredError) error {
	if err := t.transition(StatusNoPayment, StatusPaymentRequired); err != nil {
		return err
	}
	if challenge == nil || len(challenge.Accepts) == 0 {
		return fmt.Errorf("%w: challenge carries no offers", ErrInvalidRequirements)
	}
	t.Metadata[MetadataRequiredKey] = challenge.Accepts
	t.Metadata[MetadataStatusKey] = string(StatusPaymentRequired)
	return nil
}

// SubmitPayment records the PaymentRequired -> PaymentSubmitted transition.
// The payload must target one of the offered requirements.
func (t *Task) SubmitPayment(payload *PaymentPayload) error {
	if err := t.transition(StatusPaymentRequired, StatusPaymentSubmitted); err != nil {
		return err
	}
	if payload == nil {
		return fmt.Errorf("%w: nil payload", ErrMalformedPayload)
	}

	matched := false
	for _, offer := range t.Offers() {
		if offer.Network == payload.Network && offer.Scheme == payload.Scheme {
			matched = true
			break
		}
	}
	if !matched {
		return fmt.Errorf("%w: payload for %s/%s matches no offered requirement",
			ErrInvalidRequirements, payload.Scheme, payload.Network)
	}

	t.Metadata[MetadataPayloadKey] = payload
	t.Metadata[MetadataStatusKey] = string(StatusPaymentSubmitted)
	return nil
}

// RecordVerification advances PaymentSubmitted to PaymentVerified or, when
// the payment did not verify, to the PaymentFailed terminal state.
func (t *Task) RecordVerification(resp *VerifyResponse) error {
	if resp == nil {
		return fmt.Errorf("%w: nil verify response", ErrInvalidRequirements)
	}
	next := StatusPaymentVerified
	if !resp.IsValid {
		next = StatusPaymentFailed
	}
	if err := t.transition(StatusPaymentSubmitted, next); err != nil {
		return err
	}
	if !resp.IsValid {
		t.Metadata[MetadataReceiptKey] = &SettleResponse{
			Success:     false,
			Payer:       resp.Payer,
			ErrorReason: resp.InvalidReason,
		}
	}
	t.Metadata[MetadataStatusKey] = string(next)
	return nil
}

// RecordSettlement advances PaymentVerified to the terminal state matching
// the settle outcome. Terminal outcomes are write-once: re-recording an
// identical response is a no-op, while recording a different one fails with
// ErrTerminalState.
func (t *Task) RecordSettlement(resp *SettleResponse) error {
	if resp == nil {
		return fmt.Errorf("%w: nil settle response", ErrInvalidRequirements)
	}

	if t.Status().Terminal() {
		if prev := t.Receipt(); prev != nil && *prev == *resp {
			return nil
		}
		return fmt.Errorf("%w: status %s", ErrTerminalState, t.Status())
	}

	next := StatusPaymentSettled
	if !resp.Success {
		next = StatusPaymentFailed
	}
	if err := t.transition(StatusPaymentVerified, next); err != nil {
		return err
	}
	t.Metadata[MetadataReceiptKey] = resp
	t.Metadata[MetadataStatusKey] = string(next)
	return nil
}

func (t *Task) transition(from, to PaymentStatus) error {
	current := t.Status()
	if current.Terminal() {
		return fmt.Errorf("%w: status %s", ErrTerminalState, current)
	}
	if current != from {
		return fmt.Errorf("%w: %s -> %s (current status %s)", ErrInvalidTransition, from, to, current)
	}
	return nil
}
