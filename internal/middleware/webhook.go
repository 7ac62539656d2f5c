package middleware

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// SignatureTolerance bounds the age of a timestamped webhook signature.
const SignatureTolerance = 5 * time.Minute

const maxWebhookBody = 1 << 20

// PaymentSignature returns middleware that verifies the HMAC-SHA256
// signature of a payment provider webhook. The Stripe-Signature header
// ("t=<unix>,v1=<hex>") is checked against "<t>.<body>"; an
// X-Signature-256 header ("sha256=<hex>" or bare hex) is checked against
// the raw body.
func PaymentSignature(secret string) func(http.Handler) http.Handler {
	return paymentSignature(secret, time.Now)
}

func paymentSignature(secret string, now func() time.Time) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if secret == "" {
				writeJSONError(w, http.StatusServiceUnavailable, "webhook secret not configured", "unavailable")
				return
			}

			body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
			if err != nil {
				writeJSONError(w, http.StatusBadRequest, "failed to read body", "validation")
				return
			}
			r.Body = io.NopCloser(bytes.NewReader(body))

			var ok bool
			switch {
			case r.Header.Get("Stripe-Signature") != "":
				ok = verifyTimestamped(body, r.Header.Get("Stripe-Signature"), secret, now())
			case r.Header.Get("X-Signature-256") != "":
				ok = verifyHMAC(body, r.Header.Get("X-Signature-256"), secret)
			default:
				writeJSONError(w, http.StatusUnauthorized, "missing webhook signature", "unauthorized")
				return
			}
			if !ok {
				writeJSONError(w, http.StatusForbidden, "invalid webhook signature", "forbidden")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// verifyTimestamped accepts the header if any v1 signature matches and the
// timestamp is within SignatureTolerance of now.
func verifyTimestamped(payload []byte, header, secret string, now time.Time) bool {
	var ts string
	var sigs []string
	for part := range strings.SplitSeq(header, ",") {
		k, v, found := strings.Cut(strings.TrimSpace(part), "=")
		if !found {
			continue
		}
		switch k {
		case "t":
			ts = v
		case "v1":
			sigs = append(sigs, v)
		}
	}
	if ts == "" || len(sigs) == 0 {
		return false
	}
	unix, err := strconv.ParseInt(ts, 10, 64)
	if err != nil {
		return false
	}
	if age := now.Sub(time.Unix(unix, 0)); age > SignatureTolerance || age < -SignatureTolerance {
		return false
	}

	signed := make([]byte, 0, len(ts)+1+len(payload))
	signed = append(signed, ts...)
	signed = append(signed, '.')
	signed = append(signed, payload...)
	for _, s := range sigs {
		if verifyHMAC(signed, s, secret) {
			return true
		}
	}
	return false
}

// verifyHMAC checks an HMAC-SHA256 signature in raw hex or "sha256=<hex>" form.
func verifyHMAC(payload []byte, signature, secret string) bool {
	sigBytes, err := hex.DecodeString(strings.TrimPrefix(signature, "sha256="))
	if err != nil {
		return false
	}
	return hmac.Equal(sigBytes, Sign(payload, secret))
}

// Sign returns the HMAC-SHA256 of payload under secret.
func Sign(payload []byte, secret string) []byte {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return mac.Sum(nil)
}

func writeJSONError(w http.ResponseWriter, status int, msg, code string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(`{"error":"` + msg + `","code":"` + code + `"}`))
}
