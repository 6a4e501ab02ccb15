package crypto

import "golang.org/x/crypto/bcrypt"

// HashPassword hashes plaintext using bcrypt. The salt is generated per call,
// so hashing the same plaintext twice yields different digests.
func HashPassword(plain string) ([]byte, error) {
	return bcrypt.GenerateFromPassword([]byte(plain), bcrypt.DefaultCost)
}

// ComparePassword compares plaintext to a hashed secret. A malformed digest
// reports an error, it never panics.
func ComparePassword(hash []byte, plain string) error {
	return bcrypt.CompareHashAndPassword(hash, []byte(plain))
}
