package account

import (
	"crypto/hmac"
	"crypto/sha1"
	"crypto/subtle"
	"encoding/hex"
)

const emailHashSalt = "noyel.account.models.EmailAddress"

// MakeHash derives the verification token for an email address. The HMAC key is
// sha1(salt + secret); the token keeps every second hex digit of the HMAC-SHA1.
// Tokens never expire: they stay valid for as long as the secret does.
func MakeHash(secret, email string) string {
	key := sha1.Sum([]byte(emailHashSalt + secret))
	mac := hmac.New(sha1.New, key[:])
	mac.Write([]byte(email))
	digest := hex.EncodeToString(mac.Sum(nil))

	out := make([]byte, 0, len(digest)/2)
	for i := 0; i < len(digest); i += 2 {
		out = append(out, digest[i])
	}
	return string(out)
}

// MatchesHash reports whether token is the verification token for email.
func MatchesHash(secret, email, token string) bool {
	expected := MakeHash(secret, email)
	return subtle.ConstantTimeCompare([]byte(expected), []byte(token)) == 1
}
