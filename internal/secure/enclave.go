package secure

import (
	"sync"

	"github.com/awnumar/memguard"
)

// credentialEnclave is locked, encrypted storage for one piece of generated
// credential material — a password, a storage key, a database login secret
// — for as long as a rotation strategy needs to hold it in memory.
//
// It is not exported: the engine's only entry point is WithGeneratedSecret,
// which owns an enclave's entire lifetime (seal, open, destroy) around a
// single external mutation.
type credentialEnclave struct {
	mu        sync.Mutex
	enclave   *memguard.Enclave
	destroyed bool
}

// sealCredential encrypts plaintext into a new enclave. memguard copies the
// bytes into protected memory and wipes the caller's slice.
func sealCredential(plaintext []byte) *credentialEnclave {
	return &credentialEnclave{enclave: memguard.NewEnclave(plaintext)}
}

// unseal decrypts the enclave into a locked, mlocked buffer. The caller
// must Destroy() the result once it no longer needs the plaintext.
// Calling unseal after destroy returns an empty buffer rather than
// panicking, so a deferred double-use is harmless.
func (c *credentialEnclave) unseal() (*memguard.LockedBuffer, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	// memguard.NewEnclave returns nil for empty input, so an empty
	// credential unseals to an empty buffer the same way a destroyed one does.
	if c.destroyed || c.enclave == nil {
		return memguard.NewBufferFromBytes([]byte{}), nil
	}
	return c.enclave.Open()
}

// destroy is idempotent: a rotation strategy that bails out early via a
// deferred destroy alongside an explicit one further down the same function
// must not double-free.
func (c *credentialEnclave) destroy() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.destroyed {
		return
	}
	c.enclave = nil
	c.destroyed = true
}

// WithGeneratedSecret seals plaintext (a generated password, a regenerated
// storage key, anything minted by rotation.Generate/GenerateUsername) in a
// locked enclave, hands fn the decrypted bytes for the one external call
// that needs them, and destroys the locked copy and the enclave before
// returning — regardless of whether fn succeeds. Strategies should route
// generated credential material through this from the moment it is minted
// until it has been consumed by the cloud client, the database connection,
// or the secret-store write, rather than carrying it in a plain string.
func WithGeneratedSecret(plaintext []byte, fn func(plaintext []byte) error) error {
	enclave := sealCredential(plaintext)
	defer enclave.destroy()

	locked, err := enclave.unseal()
	if err != nil {
		return err
	}
	defer locked.Destroy()

	return fn(locked.Bytes())
}
