package mls

// This file is the package's public surface: the handful of entry points
// an embedding application calls, wrapping the internal representations the
// rest of the package works in.

// CipherSuite identifies the AEAD, KDF, hash, and curve used by a group, as
// assigned by the IANA MLS registry.
type CipherSuite uint16

const (
	Curve25519Aes128 CipherSuite = CipherSuite(cipherSuiteCurve25519Aes128)
	P256Aes128       CipherSuite = CipherSuite(cipherSuiteP256Aes128)
	Curve25519Chacha CipherSuite = CipherSuite(cipherSuiteCurve25519Chacha)
	P384Aes256       CipherSuite = CipherSuite(cipherSuiteP384Aes256)
	Curve448Chacha   CipherSuite = CipherSuite(cipherSuiteCurve448Chacha)
	Curve448Aes256   CipherSuite = CipherSuite(cipherSuiteCurve448Aes256)
	P521Aes256       CipherSuite = CipherSuite(cipherSuiteP521Aes256)
)

func (cs CipherSuite) internal() cipherSuite { return cipherSuite(cs) }

// ExtractSize reports the KDF's HKDF-Extract output length for cs: 32, 48,
// or 64 bytes depending on the bound hash.
func (cs CipherSuite) ExtractSize() (int, error) {
	id, err := cs.internal().kdfID()
	if err != nil {
		return 0, err
	}
	return id.extractSize()
}

// PskSecret folds every PSK named in ids into a single secret, in list
// order, per the PSK Secret Chain (§4.4). external and resumption are
// invoked sequentially, never in parallel or out of order.
func PskSecret(cs CipherSuite, external ExternalPskSearch, resumption ResumptionPskSearch, ids []PreSharedKeyID) (Psk, error) {
	return pskSecret(cs.internal(), external, resumption, ids)
}

// GetEpochSecret derives the epoch secret from a resolved PSK secret and a
// joiner secret (§4.5). Argument order is load-bearing: salt = pskSecret,
// ikm = joinerSecret.
func GetEpochSecret(cs CipherSuite, psk Psk, joiner JoinerSecret) ([]byte, error) {
	return getEpochSecret(cs.internal(), psk, joiner)
}

// RandomPskNonce draws a fresh PskNonce for cs from rng.
func RandomPskNonce(cs CipherSuite, rng interface {
	Read(p []byte) (n int, err error)
}) (PskNonce, error) {
	return randomPskNonce(cs.internal(), rng)
}

// Tree is a left-balanced binary ratchet tree bound to a ciphersuite. It
// exposes only the operations this core needs to compute: resolution and
// parent-hash computation/validation. Beyond adding a bare leaf and blanking
// a single leaf slot, structural operations (removal with direct-path
// blanking, update, full commit application) are the caller's
// responsibility.
type Tree struct {
	t *ratchetTree
}

// NewTree creates an empty tree under cs.
func NewTree(cs CipherSuite) *Tree {
	return &Tree{t: newRatchetTree(cs.internal())}
}

// AddLeaf places a new leaf with the given HPKE public key, returning its
// leaf index.
func (tr *Tree) AddLeaf(publicKey []byte) uint32 {
	return uint32(tr.t.addLeaf(publicKey))
}

// BlankLeaf removes a member's key material from the tree.
func (tr *Tree) BlankLeaf(leaf uint32) {
	tr.t.blankLeaf(leafIndex(leaf))
}

// LeafCount reports the number of leaf slots (blank or not).
func (tr *Tree) LeafCount() uint32 {
	return uint32(tr.t.leafCount())
}

// Resolve returns the public keys named by the MLS resolution of the given
// node index (not leaf index) in the flat array representation.
func (tr *Tree) Resolve(node uint32) [][]byte {
	return tr.t.resolve(nodeIndex(node))
}

// UpdatePath is a committer's replacement key material for its whole direct
// path: a new leaf key package anchoring the path, plus a new public key and
// encrypted path secrets for every other ancestor. Build one from the wire
// bytes of a received Commit with UnmarshalUpdatePath.
type UpdatePath struct {
	u *updatePath
}

// UnmarshalUpdatePath decodes the wire form of an UpdatePath, as carried
// inside a Commit.
func UnmarshalUpdatePath(data []byte) (*UpdatePath, error) {
	u := new(updatePath)
	if err := unmarshal(data, u); err != nil {
		return nil, err
	}
	return &UpdatePath{u: u}, nil
}

// Marshal encodes the UpdatePath back to its wire form.
func (up *UpdatePath) Marshal() ([]byte, error) {
	return marshal(up.u)
}

// UpdateParentHashes is the Parent-Hash Chain (§4.8): it recomputes the
// parent hash of every ancestor of leafIndex, applies the changes to the
// tree, and returns the leaf's resulting parent hash. If path is non-nil,
// the result is checked against the parent_hash extension carried by its
// leaf key package.
func (tr *Tree) UpdateParentHashes(leafIdx uint32, path *UpdatePath) (ParentHash, error) {
	var p *updatePath
	if path != nil {
		p = path.u
	}
	return tr.t.updateParentHashes(leafIndex(leafIdx), p)
}

// ValidateParentHashes is the Parent-Hash Validator (§4.9): it checks every
// non-blank parent in the tree and fails on the first rejection.
func (tr *Tree) ValidateParentHashes() error {
	return tr.t.validateParentHashes()
}

// Marshal encodes the tree as a NodeVec.
func (tr *Tree) Marshal() ([]byte, error) {
	return marshal(tr.t)
}

// UnmarshalTree decodes a NodeVec into a fresh Tree bound to cs.
func UnmarshalTree(cs CipherSuite, data []byte) (*Tree, error) {
	tr := &Tree{t: newRatchetTree(cs.internal())}
	if err := unmarshal(data, tr.t); err != nil {
		return nil, err
	}
	return tr, nil
}
