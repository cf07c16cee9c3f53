package razorpay

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// VerifyPaymentSignature checks the checkout callback signature.
// Razorpay signs "<order_id>|<payment_id>" with HMAC-SHA256 over the key
// secret and sends the hex digest alongside the payment id.
func (c *Client) VerifyPaymentSignature(orderID, paymentID, signature string) bool {
	return VerifySignature(c.keySecret, orderID, paymentID, signature)
}

// VerifySignature is the keyed verification primitive used by
// VerifyPaymentSignature; exposed for webhook-style callers that hold
// their own secret.
func VerifySignature(secret, orderID, paymentID, signature string) bool {
	orderID = strings.TrimSpace(orderID)
	paymentID = strings.TrimSpace(paymentID)
	signature = strings.TrimSpace(signature)
	if secret == "" || orderID == "" || paymentID == "" || signature == "" {
		return false
	}

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(orderID + "|" + paymentID))
	expected := hex.EncodeToString(mac.Sum(nil))

	return hmac.Equal([]byte(expected), []byte(strings.ToLower(signature)))
}
