package mls

import (
	"fmt"
	"io"

	"golang.org/x/crypto/cryptobyte"
)

// ExternalPskId is an opaque byte string naming an out-of-band PSK.
type ExternalPskId []byte

// PskGroupId is an opaque byte string naming a prior group, used to scope a
// resumption PSK.
type PskGroupId []byte

// PskNonce is random byte string of length extractSize(kdfID(cs)), generated
// fresh for every PreSharedKeyID so that the same PSK material never
// produces the same PSKLabel twice.
type PskNonce []byte

// randomPskNonce draws extractSize(cs) bytes from rng. It only fails if the
// RNG itself fails.
func randomPskNonce(cs cipherSuite, rng io.Reader) (PskNonce, error) {
	id, err := cs.kdfID()
	if err != nil {
		return nil, err
	}
	size, err := id.extractSize()
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, size)
	if _, err := io.ReadFull(rng, nonce); err != nil {
		return nil, fmt.Errorf("mls: psk nonce generation failed: %w", err)
	}
	return PskNonce(nonce), nil
}

// resumptionPSKUsage distinguishes why a resumption PSK is being used. The
// enumeration is non-extensible: unknown values must be rejected rather than
// silently accepted.
type resumptionPSKUsage uint8

const (
	resumptionPSKUsageApplication resumptionPSKUsage = 1
	resumptionPSKUsageReinit      resumptionPSKUsage = 2
	resumptionPSKUsageBranch      resumptionPSKUsage = 3
)

func (usage *resumptionPSKUsage) unmarshal(s *cryptobyte.String) error {
	if !s.ReadUint8((*uint8)(usage)) {
		return io.ErrUnexpectedEOF
	}
	if !oneOf(*usage, resumptionPSKUsageApplication, resumptionPSKUsageReinit, resumptionPSKUsageBranch) {
		return fmt.Errorf("mls: invalid resumption PSK usage %d", *usage)
	}
	return nil
}

func (usage resumptionPSKUsage) marshal(b *cryptobyte.Builder) {
	b.AddUint8(uint8(usage))
}

// ResumptionPsk identifies a PSK resumed from a prior epoch of a group.
type ResumptionPsk struct {
	Usage      resumptionPSKUsage
	PskGroupID PskGroupId
	PskEpoch   uint64
}

func (r *ResumptionPsk) unmarshal(s *cryptobyte.String) error {
	*r = ResumptionPsk{}
	if err := r.Usage.unmarshal(s); err != nil {
		return err
	}
	if !readOpaqueVec(s, (*[]byte)(&r.PskGroupID)) || !s.ReadUint64(&r.PskEpoch) {
		return io.ErrUnexpectedEOF
	}
	return nil
}

func (r *ResumptionPsk) marshal(b *cryptobyte.Builder) {
	r.Usage.marshal(b)
	writeOpaqueVec(b, []byte(r.PskGroupID))
	b.AddUint64(r.PskEpoch)
}

// pskType is the wire discriminant for JustPreSharedKeyID.
type pskType uint8

const (
	pskTypeExternal   pskType = 1
	pskTypeResumption pskType = 2
)

func (t *pskType) unmarshal(s *cryptobyte.String) error {
	if !s.ReadUint8((*uint8)(t)) {
		return io.ErrUnexpectedEOF
	}
	if !oneOf(*t, pskTypeExternal, pskTypeResumption) {
		return fmt.Errorf("mls: invalid PSK type %d", *t)
	}
	return nil
}

func (t pskType) marshal(b *cryptobyte.Builder) {
	b.AddUint8(uint8(t))
}

// JustPreSharedKeyID is a tagged union over the two ways a PSK can be named.
type JustPreSharedKeyID struct {
	pskType pskType

	external   ExternalPskId   // set when pskType == pskTypeExternal
	resumption *ResumptionPsk  // set when pskType == pskTypeResumption
}

// NewExternalPskID builds a JustPreSharedKeyID naming an external PSK.
func NewExternalPskID(id ExternalPskId) JustPreSharedKeyID {
	return JustPreSharedKeyID{pskType: pskTypeExternal, external: id}
}

// NewResumptionPskID builds a JustPreSharedKeyID naming a resumption PSK.
func NewResumptionPskID(r ResumptionPsk) JustPreSharedKeyID {
	return JustPreSharedKeyID{pskType: pskTypeResumption, resumption: &r}
}

func (id *JustPreSharedKeyID) unmarshal(s *cryptobyte.String) error {
	*id = JustPreSharedKeyID{}
	if err := id.pskType.unmarshal(s); err != nil {
		return err
	}
	switch id.pskType {
	case pskTypeExternal:
		if !readOpaqueVec(s, (*[]byte)(&id.external)) {
			return io.ErrUnexpectedEOF
		}
	case pskTypeResumption:
		id.resumption = new(ResumptionPsk)
		if err := id.resumption.unmarshal(s); err != nil {
			return err
		}
	default:
		panic("unreachable")
	}
	return nil
}

func (id *JustPreSharedKeyID) marshal(b *cryptobyte.Builder) {
	id.pskType.marshal(b)
	switch id.pskType {
	case pskTypeExternal:
		writeOpaqueVec(b, []byte(id.external))
	case pskTypeResumption:
		id.resumption.marshal(b)
	default:
		panic("unreachable")
	}
}

// PreSharedKeyID names one PSK to be folded into the group secret: either an
// external PSK or a resumption PSK, paired with a per-instance nonce.
type PreSharedKeyID struct {
	KeyID    JustPreSharedKeyID
	PskNonce PskNonce
}

func (id *PreSharedKeyID) unmarshal(s *cryptobyte.String) error {
	*id = PreSharedKeyID{}
	if err := id.KeyID.unmarshal(s); err != nil {
		return err
	}
	if !readOpaqueVec(s, (*[]byte)(&id.PskNonce)) {
		return io.ErrUnexpectedEOF
	}
	return nil
}

func (id *PreSharedKeyID) marshal(b *cryptobyte.Builder) {
	id.KeyID.marshal(b)
	writeOpaqueVec(b, []byte(id.PskNonce))
}

// pskLabel is the domain-separating HKDF info used to derive each PSK's
// contribution to the chain: PSKLabel { id; index; count; }.
type pskLabel struct {
	id    *PreSharedKeyID
	index uint16
	count uint16
}

func (label *pskLabel) marshal(b *cryptobyte.Builder) {
	label.id.marshal(b)
	b.AddUint16(label.index)
	b.AddUint16(label.count)
}

// Psk is secret byte string key material. Every Psk returned to a caller,
// and every intermediate derived from one, must be wiped with zeroize before
// the stack frame holding it returns.
type Psk []byte

func zeroPsk(cs cipherSuite) (Psk, error) {
	id, err := cs.kdfID()
	if err != nil {
		return nil, err
	}
	size, err := id.extractSize()
	if err != nil {
		return nil, err
	}
	return make(Psk, size), nil
}

// zeroize overwrites b in place. It is the Go idiom for "wipe on every exit
// path" in a runtime without destructors: callers must defer it at every
// point a secret buffer comes into scope.
func zeroize(b []byte) {
	for i := range b {
		b[i] = 0
	}
}

// ExternalPskSearch resolves an external PSK by id. A nil Psk with a nil
// error means "not found" (NoPskForId), which is distinct from a non-nil
// error (a store outage, wrapped as SecretStoreError). pskSecret wipes the
// returned Psk once it has been used, so a store returns a copy of its key
// material rather than its own buffer.
type ExternalPskSearch func(id ExternalPskId) (Psk, error)

// ResumptionPskSearch resolves a resumption PSK by epoch number. Only the
// epoch is used as the lookup key (see the Open Questions section of
// DESIGN.md); usage and group id are carried on the wire but not consulted
// here. As with ExternalPskSearch, the returned Psk is wiped after use.
type ResumptionPskSearch func(epoch uint64) (Psk, error)

// ExternalPskIdValidator is a policy hook invoked before an external PSK id
// is trusted; PassThroughPskIdValidator always accepts.
type ExternalPskIdValidator interface {
	Validate(id ExternalPskId) error
}

// PassThroughPskIdValidator accepts every external PSK id unconditionally.
type PassThroughPskIdValidator struct{}

func (PassThroughPskIdValidator) Validate(ExternalPskId) error { return nil }

const maxPskIDs = 1<<16 - 1

// pskSecret folds every PSK named in ids into a single secret, in list
// order. Determinism and order-sensitivity are load-bearing: this function
// must not reorder, deduplicate, or parallelize the resolution of ids.
//
//	psk_secret <- kdf.extract(psk_input, psk_secret)   // salt = psk_input, ikm = previous secret
//
// On every exit path, including errors, every intermediate the chain
// allocates is zeroized before the function returns.
func pskSecret(cs cipherSuite, external ExternalPskSearch, resumption ResumptionPskSearch, ids []PreSharedKeyID) (Psk, error) {
	n := len(ids)
	if n > maxPskIDs {
		return nil, errTooManyPskIds(n)
	}

	k, err := newKdf(cs)
	if err != nil {
		return nil, err
	}

	secret, err := zeroPsk(cs)
	if err != nil {
		return nil, err
	}

	for i := range ids {
		id := &ids[i]

		var psk Psk
		switch id.KeyID.pskType {
		case pskTypeExternal:
			psk, err = external(id.KeyID.external)
			if err != nil {
				zeroize(secret)
				return nil, errSecretStoreError(err)
			}
			if psk == nil {
				zeroize(secret)
				return nil, errNoPskForId(id.KeyID.external)
			}
		case pskTypeResumption:
			epoch := id.KeyID.resumption.PskEpoch
			psk, err = resumption(epoch)
			if err != nil {
				zeroize(secret)
				return nil, errEpochRepositoryError(err)
			}
			if psk == nil {
				zeroize(secret)
				return nil, errEpochNotFound(epoch)
			}
		default:
			panic("unreachable")
		}

		label := pskLabel{id: id, index: uint16(i), count: uint16(n)}
		labelBytes, err := marshalLabel(&label)
		if err != nil {
			zeroize(secret)
			return nil, errSerialization(err)
		}

		zero := make([]byte, k.extractSize())
		pskExtracted, err := k.extract(zero, psk)
		zeroize(psk)
		if err != nil {
			zeroize(secret)
			return nil, errKdfFailure(err)
		}

		pskInput, err := k.expandWithLabel(pskExtracted, []byte("derived psk"), labelBytes, uint16(k.extractSize()))
		zeroize(pskExtracted)
		if err != nil {
			zeroize(secret)
			return nil, errKdfFailure(err)
		}

		next, err := k.extract(pskInput, secret)
		zeroize(pskInput)
		zeroize(secret)
		if err != nil {
			return nil, errKdfFailure(err)
		}

		secret = next
	}

	return secret, nil
}

func marshalLabel(label *pskLabel) ([]byte, error) {
	var b cryptobyte.Builder
	label.marshal(&b)
	return b.Bytes()
}

// JoinerSecret is the secret carried from the welcome message into the new
// epoch's key schedule.
type JoinerSecret []byte

// getEpochSecret folds the PSK secret into the joiner secret to produce the
// epoch secret. Argument order is load-bearing: salt = pskSecret, ikm =
// joinerSecret.
func getEpochSecret(cs cipherSuite, pskSecret Psk, joinerSecret JoinerSecret) ([]byte, error) {
	k, err := newKdf(cs)
	if err != nil {
		return nil, err
	}
	out, err := k.extract(pskSecret, joinerSecret)
	if err != nil {
		return nil, errKdfFailure(err)
	}
	return out, nil
}
