package kdo

import (
	"crypto/rand"

	"noyel/internal/models"
)

const tokenAlphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// NewToken returns a random alphanumeric invitation token.
func NewToken() (string, error) {
	// Bytes at or above this bound are discarded to keep the distribution uniform.
	const bound = 256 - 256%len(tokenAlphabet)

	out := make([]byte, 0, models.InvitationTokenSize)
	buf := make([]byte, models.InvitationTokenSize*2)
	for len(out) < models.InvitationTokenSize {
		if _, err := rand.Read(buf); err != nil {
			return "", err
		}
		for _, b := range buf {
			if int(b) >= bound {
				continue
			}
			out = append(out, tokenAlphabet[int(b)%len(tokenAlphabet)])
			if len(out) == models.InvitationTokenSize {
				break
			}
		}
	}
	return string(out), nil
}
