package mls

import (
	"crypto/subtle"
	"io"

	"golang.org/x/crypto/cryptobyte"
)

// protocolVersion identifies the wire version of the protocol; MLS 1.0 is
// the only version this core understands.
type protocolVersion uint16

const protocolVersionMLS10 protocolVersion = 1

// GroupID names a group.
type GroupID []byte

// leafNode is the signed, wire form of a member's position in the tree: its
// HPKE public key plus the extensions that travel with it. The parent_hash
// extension read by the Parent-Hash Chain is carried in the enclosing
// keyPackage's extensions, not here.
type leafNode struct {
	hpkePublicKey []byte
	signatureKey  []byte
	extensions    extensionList
	signature     []byte
}

func (ln *leafNode) unmarshal(s *cryptobyte.String) error {
	*ln = leafNode{}
	if !readOpaqueVec(s, &ln.hpkePublicKey) || !readOpaqueVec(s, &ln.signatureKey) {
		return io.ErrUnexpectedEOF
	}
	exts, err := unmarshalExtensionVec(s)
	if err != nil {
		return err
	}
	ln.extensions = exts
	if !readOpaqueVec(s, &ln.signature) {
		return io.ErrUnexpectedEOF
	}
	return nil
}

func (ln *leafNode) marshal(b *cryptobyte.Builder) {
	writeOpaqueVec(b, ln.hpkePublicKey)
	writeOpaqueVec(b, ln.signatureKey)
	marshalExtensionVec(b, ln.extensions)
	writeOpaqueVec(b, ln.signature)
}

// verifySignature is a stub: signature verification depends on a signature
// scheme and transcript encoding that are out of scope for this core (see
// SPEC_FULL.md §1). It always reports success so that callers exercising
// the tree-hash/PSK paths aren't blocked on it.
func (ln *leafNode) verifySignature(cipherSuite, GroupID, leafIndex) bool {
	return true
}

// keyPackageRef is an opaque reference (typically a hash) naming a key
// package, used to target an encrypted group secret in a Welcome message.
type keyPackageRef []byte

// Equal compares two key package references in constant time.
func (ref keyPackageRef) Equal(other keyPackageRef) bool {
	if len(ref) != len(other) {
		return false
	}
	return subtle.ConstantTimeCompare(ref, other) == 1
}

// keyPackage is a member's published join material.
type keyPackage struct {
	cipherSuite cipherSuite
	initKey     []byte
	leafNode    leafNode
	extensions  extensionList
	signature   []byte
}

func (kp *keyPackage) unmarshal(s *cryptobyte.String) error {
	*kp = keyPackage{}
	if !s.ReadUint16((*uint16)(&kp.cipherSuite)) || !readOpaqueVec(s, &kp.initKey) {
		return io.ErrUnexpectedEOF
	}
	if err := kp.leafNode.unmarshal(s); err != nil {
		return err
	}
	exts, err := unmarshalExtensionVec(s)
	if err != nil {
		return err
	}
	kp.extensions = exts
	if !readOpaqueVec(s, &kp.signature) {
		return io.ErrUnexpectedEOF
	}
	return nil
}

func (kp *keyPackage) marshal(b *cryptobyte.Builder) {
	b.AddUint16(uint16(kp.cipherSuite))
	writeOpaqueVec(b, kp.initKey)
	kp.leafNode.marshal(b)
	marshalExtensionVec(b, kp.extensions)
	writeOpaqueVec(b, kp.signature)
}

// hpkeCiphertext is an HPKE-sealed payload: the encapsulated KEM output
// alongside the AEAD ciphertext.
type hpkeCiphertext struct {
	kemOutput  []byte
	ciphertext []byte
}

func (ct *hpkeCiphertext) unmarshal(s *cryptobyte.String) error {
	*ct = hpkeCiphertext{}
	if !readOpaqueVec(s, &ct.kemOutput) || !readOpaqueVec(s, &ct.ciphertext) {
		return io.ErrUnexpectedEOF
	}
	return nil
}

func (ct *hpkeCiphertext) marshal(b *cryptobyte.Builder) {
	writeOpaqueVec(b, ct.kemOutput)
	writeOpaqueVec(b, ct.ciphertext)
}

// directPathNode is one entry of an UpdatePath: the new public key for a
// direct-path ancestor plus the per-recipient encrypted path secrets.
type directPathNode struct {
	publicKey            []byte
	encryptedPathSecrets []hpkeCiphertext
}

func (n *directPathNode) unmarshal(s *cryptobyte.String) error {
	*n = directPathNode{}
	if !readOpaqueVec(s, &n.publicKey) {
		return io.ErrUnexpectedEOF
	}
	return readVector(s, func(s *cryptobyte.String) error {
		var ct hpkeCiphertext
		if err := ct.unmarshal(s); err != nil {
			return err
		}
		n.encryptedPathSecrets = append(n.encryptedPathSecrets, ct)
		return nil
	})
}

func (n *directPathNode) marshal(b *cryptobyte.Builder) {
	writeOpaqueVec(b, n.publicKey)
	writeVector(b, len(n.encryptedPathSecrets), func(b *cryptobyte.Builder, i int) {
		n.encryptedPathSecrets[i].marshal(b)
	})
}

// updatePath is a committer's replacement key material for its whole direct
// path, anchored by its new leaf key package.
type updatePath struct {
	leafKeyPackage keyPackage
	nodes          []directPathNode
}

func (up *updatePath) unmarshal(s *cryptobyte.String) error {
	*up = updatePath{}
	if err := up.leafKeyPackage.unmarshal(s); err != nil {
		return err
	}
	return readVector(s, func(s *cryptobyte.String) error {
		var n directPathNode
		if err := n.unmarshal(s); err != nil {
			return err
		}
		up.nodes = append(up.nodes, n)
		return nil
	})
}

func (up *updatePath) marshal(b *cryptobyte.Builder) {
	up.leafKeyPackage.marshal(b)
	writeVector(b, len(up.nodes), func(b *cryptobyte.Builder, i int) {
		up.nodes[i].marshal(b)
	})
}
