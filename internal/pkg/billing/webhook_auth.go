package billing

import (
	"crypto/subtle"
	"strings"
)

// VerifyWebhookAuthorization checks the Authorization header configured on the
// vendor's webhook against the shared secret. Both "Bearer <secret>" and the
// bare secret are accepted.
func VerifyWebhookAuthorization(header, secret string) bool {
	got := strings.TrimSpace(header)
	want := strings.TrimSpace(secret)
	if got == "" || want == "" {
		return false
	}
	if len(got) > 7 && strings.EqualFold(got[:7], "bearer ") {
		got = strings.TrimSpace(got[7:])
	}
	return subtle.ConstantTimeCompare([]byte(got), []byte(want)) == 1
}
