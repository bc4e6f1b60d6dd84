package webhooks

import (
	"io"
	"net/http"

	"github.com/kasuwa-market/kasuwa-backend/api/responses"
	"github.com/kasuwa-market/kasuwa-backend/internal/payments"
	pkgerrors "github.com/kasuwa-market/kasuwa-backend/pkg/errors"
	"github.com/kasuwa-market/kasuwa-backend/pkg/logger"
)

// Paystack webhooks are capped well below this; the limit only guards
// against runaway bodies.
const maxWebhookBody = 1 << 20

const signatureHeader = "X-Paystack-Signature"

// Paystack receives gateway charge events. Signature verification and
// replay suppression happen inside the payments service; this handler only
// reads the raw body, since the signature covers the exact bytes sent.
func Paystack(svc payments.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		payload, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
		if err != nil {
			responses.WriteError(r.Context(), logg, w,
				pkgerrors.Wrap(pkgerrors.CodeValidation, err, "reading webhook body"))
			return
		}

		if err := svc.HandleWebhook(r.Context(), payload, r.Header.Get(signatureHeader)); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, map[string]string{"status": "accepted"})
	}
}
