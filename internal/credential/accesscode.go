package credential

import (
	"crypto/rand"
	"io"
)

const (
	// AccessCodeLength is the number of characters in a generated access code.
	AccessCodeLength = 6
	// AccessCodeAlphabet is the set access codes are drawn from.
	AccessCodeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"
)

// maxUnbiased is the largest multiple of len(AccessCodeAlphabet) that fits in a byte;
// bytes at or above it are rejected so every character is equally likely.
const maxUnbiased = 256 - 256%len(AccessCodeAlphabet)

// GenerateAccessCode returns a random AccessCodeLength-character code using crypto/rand.
func GenerateAccessCode() (string, error) {
	return GenerateAccessCodeFrom(rand.Reader)
}

// GenerateAccessCodeFrom draws an access code from r, sampling uniformly (with replacement)
// from AccessCodeAlphabet.
func GenerateAccessCodeFrom(r io.Reader) (string, error) {
	code := make([]byte, 0, AccessCodeLength)
	buf := make([]byte, AccessCodeLength*2)
	for len(code) < AccessCodeLength {
		if _, err := io.ReadFull(r, buf); err != nil {
			return "", err
		}
		for _, b := range buf {
			if int(b) >= maxUnbiased {
				continue
			}
			code = append(code, AccessCodeAlphabet[int(b)%len(AccessCodeAlphabet)])
			if len(code) == AccessCodeLength {
				break
			}
		}
	}
	return string(code), nil
}
