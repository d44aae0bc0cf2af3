package ark

import "io"

// Sealer encrypts bundle artifacts at rest. Sealing uses the public key
// only — no user intervention required. Unsealing requires a passphrase to
// unlock the private key, producing an UnsealContext for the session.
type Sealer interface {
	// Setup performs one-time key generation. Generates a key pair, stores
	// the public key in plaintext, and encrypts the private key with the
	// provided passphrase.
	Setup(passphrase string) error

	// Seal encrypts data read from r and writes ciphertext to w.
	// Uses the public key only — no passphrase required.
	Seal(r io.Reader, w io.Writer) error

	// Unlock decrypts the private key using the passphrase and returns an
	// UnsealContext that can decrypt bundles for the duration of the
	// session. Returns an error if the passphrase is incorrect.
	Unlock(passphrase string) (UnsealContext, error)

	// IsConfigured returns true if both key files exist at configured paths.
	IsConfigured() bool
}

// UnsealContext holds an unlocked private key in memory for the duration of
// a verify or restore session. The unlocked key is never written to disk.
type UnsealContext interface {
	// Unseal decrypts ciphertext read from r and writes plaintext to w.
	Unseal(r io.Reader, w io.Writer) error
}
