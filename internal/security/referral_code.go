package security

import (
	"crypto/rand"
	"fmt"
	"io"
)

// referralAlphabet omits I, L, O and U to keep codes readable aloud.
const referralAlphabet = "0123456789ABCDEFGHJKMNPQRSTVWXYZ"

// ReferralCodeLength is the length of generated referral codes.
const ReferralCodeLength = 8

// GenerateReferralCode returns a random code of ReferralCodeLength characters.
func GenerateReferralCode() (string, error) {
	return generateFromAlphabet(rand.Reader, ReferralCodeLength)
}

func generateFromAlphabet(r io.Reader, length int) (string, error) {
	buf := make([]byte, length)
	if _, err := io.ReadFull(r, buf); err != nil {
		return "", fmt.Errorf("generate referral code: %w", err)
	}
	// 32 symbols divide 256 evenly, so the modulo is unbiased.
	for i, b := range buf {
		buf[i] = referralAlphabet[int(b)%len(referralAlphabet)]
	}
	return string(buf), nil
}
