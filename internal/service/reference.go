package service

import (
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/google/uuid"

	"adyen-session-proxy/internal/config"
)

// referenceSpace bounds the random suffix of timestamp references.
const referenceSpace = 999999

// ReferenceFunc returns a merchant reference for a new session.
type ReferenceFunc func() string

// TimestampReference returns references of the form ref_<unix millis>_<n>,
// n in [0, 999999). They are traceable but may collide under load.
func TimestampReference(now func() time.Time) ReferenceFunc {
	return func() string {
		return fmt.Sprintf("ref_%d_%d", now().UnixMilli(), rand.IntN(referenceSpace))
	}
}

// UUIDReference returns references of the form ref_<uuid v4>.
func UUIDReference() string {
	return "ref_" + uuid.NewString()
}

// referenceFor resolves adyen.reference_scheme to a generator.
func referenceFor(scheme string) (ReferenceFunc, error) {
	switch scheme {
	case config.ReferenceTimestamp, "":
		return TimestampReference(time.Now), nil
	case config.ReferenceUUID:
		return UUIDReference, nil
	default:
		return nil, fmt.Errorf("unknown reference scheme %q", scheme)
	}
}
