package reconcile

import "kal/internal/model"

// The ownership tag is the private extended property kal="true". It is the
// only signal separating managed events from foreign ones.
const (
	SignatureKey   = "kal"
	SignatureValue = "true"
)

// IsManaged reports whether ev carries the ownership tag.
func IsManaged(ev model.Event) bool {
	v, ok := ev.PrivateProperty(SignatureKey)
	return ok && v == SignatureValue
}

// Sign returns ev tagged as managed. Signing a managed event is a no-op.
func Sign(ev model.Event) model.Event {
	if IsManaged(ev) {
		return ev
	}
	return ev.WithPrivateProperty(SignatureKey, SignatureValue)
}
