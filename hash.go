package mls

import (
	"crypto"
	_ "crypto/sha256" // register SHA-256 with crypto.Hash
	_ "crypto/sha512" // register SHA-384 and SHA-512
)

// hashFunction returns the ciphersuite's content hash, which is always the
// same primitive as its HKDF hash. The Go standard library's crypto package
// is the idiomatic choice here across the whole corpus (every example repo
// that needs SHA-2 reaches for crypto/sha256 or crypto/sha512 directly,
// never a third-party hash implementation), so no external dependency is
// wired in for this concern.
func (cs cipherSuite) hashFunction() (crypto.Hash, error) {
	id, err := cs.kdfID()
	if err != nil {
		return 0, err
	}
	switch id {
	case kdfHkdfSha256:
		return crypto.SHA256, nil
	case kdfHkdfSha384:
		return crypto.SHA384, nil
	case kdfHkdfSha512:
		return crypto.SHA512, nil
	default:
		return 0, errInvalidKeyData
	}
}

func (cs cipherSuite) hash(data []byte) ([]byte, error) {
	h, err := cs.hashFunction()
	if err != nil {
		return nil, err
	}
	digest := h.New()
	digest.Write(data)
	return digest.Sum(nil), nil
}
