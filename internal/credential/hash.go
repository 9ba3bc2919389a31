package credential

import (
	"crypto/md5"
	"crypto/subtle"
	"encoding/hex"
)

// HashLength is the length of a rendered hash: 128 bits as lower-case hex.
const HashLength = 32

// DeriveHash returns the MD5 digest of salt followed by secret, hex-encoded (32 lower-case
// characters). An empty salt hashes the secret alone. The output must stay byte-for-byte
// compatible with hashes carried in imported CSV records.
func DeriveHash(salt, secret string) string {
	sum := md5.Sum([]byte(salt + secret))
	return hex.EncodeToString(sum[:])
}

// HashEqual reports whether candidate, salted with salt, hashes to stored.
// The comparison is constant-time.
func HashEqual(salt, candidate, stored string) bool {
	if stored == "" {
		return false
	}
	derived := DeriveHash(salt, candidate)
	return subtle.ConstantTimeCompare([]byte(derived), []byte(stored)) == 1
}
