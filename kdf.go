package mls

import (
	"errors"
	"fmt"

	"github.com/cisco/go-hpke"
	"golang.org/x/crypto/cryptobyte"
)

// errInvalidKeyData is surfaced whenever a kdfID does not name one of the
// three HKDF variants the core supports.
var errInvalidKeyData = errors.New("mls: invalid key data")

// kdfID is the wire identifier for one of the three HKDF variants used by
// MLS, per RFC 9180 §5.1 Table 3.
type kdfID uint16

const (
	kdfHkdfSha256 kdfID = 0x0001
	kdfHkdfSha384 kdfID = 0x0002
	kdfHkdfSha512 kdfID = 0x0003
)

func (id kdfID) extractSize() (int, error) {
	switch id {
	case kdfHkdfSha256:
		return 32, nil
	case kdfHkdfSha384:
		return 48, nil
	case kdfHkdfSha512:
		return 64, nil
	default:
		return 0, errInvalidKeyData
	}
}

// kdf wraps HKDF-Extract, HKDF-Expand, and the MLS "expand with label"
// construction, bound to a single hash function for the lifetime of the
// value. The underlying primitive is provided by a vendored HPKE KDF scheme;
// the core never calls into it directly, only through this wrapper, so that
// all core operations have a uniform Result-returning shape even though the
// underlying scheme's Extract/Expand never fail.
type kdf struct {
	id     kdfID
	scheme hpke.KDFScheme
}

func newKdf(cs cipherSuite) (*kdf, error) {
	id, err := cs.kdfID()
	if err != nil {
		return nil, err
	}

	suite, err := hpke.AssembleCipherSuite(cs.hpkeKEM(), hpke.KDFID(id), cs.hpkeAEAD())
	if err != nil {
		return nil, errKdfFailure(err)
	}

	return &kdf{id: id, scheme: suite.KDF}, nil
}

// extractSize is the hash output length in bytes: 32, 48, or 64.
func (k *kdf) extractSize() int {
	return k.scheme.OutputSize()
}

// extract performs HKDF-Extract(salt, ikm) -> PRK.
func (k *kdf) extract(salt, ikm []byte) ([]byte, error) {
	return k.scheme.Extract(salt, ikm), nil
}

// expand performs HKDF-Expand(prk, info, L) -> OKM. It fails when L exceeds
// 255 * HashLen, per RFC 5869.
func (k *kdf) expand(prk, info []byte, length int) ([]byte, error) {
	if length > 255*k.extractSize() {
		return nil, errKdfFailure(fmt.Errorf("mls: expand length %d exceeds 255*hash_len", length))
	}
	return k.scheme.Expand(prk, info, length), nil
}

// expandWithLabel implements the MLS ExpandWithLabel construction: info is
// the deterministic encoding of
//
//	struct {
//	    uint16 length = L;
//	    opaque label<V> = "MLS 1.0 " + Label;
//	    opaque context<V> = Context;
//	}
func (k *kdf) expandWithLabel(secret, label, context []byte, length uint16) ([]byte, error) {
	var b cryptobyte.Builder
	b.AddUint16(length)
	writeOpaqueVec(&b, append([]byte("MLS 1.0 "), label...))
	writeOpaqueVec(&b, context)

	info, err := b.Bytes()
	if err != nil {
		return nil, errSerialization(err)
	}

	return k.expand(secret, info, int(length))
}

// kdfIDForSuite is a small helper exposed for tests that need the raw wire
// id without constructing a full kdf.
func kdfIDForSuite(cs cipherSuite) (uint16, error) {
	id, err := cs.kdfID()
	return uint16(id), err
}
