package mls

import "github.com/cisco/go-hpke"

// cipherSuite identifies the AEAD, KDF, hash, and curve used by a group, as
// assigned by the IANA MLS registry.
type cipherSuite uint16

const (
	cipherSuiteCurve25519Aes128 cipherSuite = 0x0001
	cipherSuiteP256Aes128       cipherSuite = 0x0002
	cipherSuiteCurve25519Chacha cipherSuite = 0x0003
	cipherSuiteP384Aes256       cipherSuite = 0x0004
	cipherSuiteCurve448Chacha   cipherSuite = 0x0005
	cipherSuiteCurve448Aes256   cipherSuite = 0x0006
	cipherSuiteP521Aes256       cipherSuite = 0x0007
)

// kdfID selects one of the three HKDF variants the core understands. The
// mapping from cipher suite to KDF is fixed by the protocol, not negotiated.
func (cs cipherSuite) kdfID() (kdfID, error) {
	switch cs {
	case cipherSuiteCurve25519Aes128, cipherSuiteP256Aes128, cipherSuiteCurve25519Chacha:
		return kdfHkdfSha256, nil
	case cipherSuiteP384Aes256:
		return kdfHkdfSha384, nil
	case cipherSuiteCurve448Chacha, cipherSuiteCurve448Aes256, cipherSuiteP521Aes256:
		return kdfHkdfSha512, nil
	default:
		return 0, errKdfFailure(errInvalidKeyData)
	}
}

// hpkeKEM and hpkeAEAD are only needed to assemble a full hpke.CipherSuite
// out of the vendored KEM/KDF/AEAD registry; the core only ever touches the
// resulting KDF, never the KEM or AEAD.
func (cs cipherSuite) hpkeKEM() hpke.KEMID {
	switch cs {
	case cipherSuiteP256Aes128:
		return hpke.DHKEM_P256
	case cipherSuiteP384Aes256:
		return hpke.DHKEM_P521
	case cipherSuiteCurve448Chacha, cipherSuiteCurve448Aes256:
		return hpke.DHKEM_X448
	case cipherSuiteP521Aes256:
		return hpke.DHKEM_P521
	default:
		return hpke.DHKEM_X25519
	}
}

func (cs cipherSuite) hpkeAEAD() hpke.AEADID {
	switch cs {
	case cipherSuiteCurve25519Chacha, cipherSuiteCurve448Chacha:
		return hpke.AEAD_CHACHA20POLY1305
	case cipherSuiteP384Aes256, cipherSuiteCurve448Aes256, cipherSuiteP521Aes256:
		return hpke.AEAD_AESGCM256
	default:
		return hpke.AEAD_AESGCM128
	}
}
