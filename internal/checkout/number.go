package checkout

import (
	"crypto/rand"
	"fmt"
	"time"
)

const orderNumberAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

// NewOrderNumber generates a human-readable order number like
// KSW-20260831-7KQ2MX. Uniqueness is ultimately enforced by the database;
// collisions at this entropy are vanishingly rare.
func NewOrderNumber(now time.Time) string {
	buf := make([]byte, 6)
	if _, err := rand.Read(buf); err != nil {
		// crypto/rand failing means the platform is broken anyway; fall
		// back to a time-derived suffix rather than returning an error to
		// every checkout.
		nanos := now.UnixNano()
		for i := range buf {
			buf[i] = orderNumberAlphabet[nanos%int64(len(orderNumberAlphabet))]
			nanos /= int64(len(orderNumberAlphabet))
		}
	}
	for i := range buf {
		buf[i] = orderNumberAlphabet[int(buf[i])%len(orderNumberAlphabet)]
	}
	return fmt.Sprintf("KSW-%s-%s", now.Format("20060102"), string(buf))
}
