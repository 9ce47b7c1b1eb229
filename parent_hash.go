package mls

import (
	"crypto/subtle"

	"golang.org/x/crypto/cryptobyte"
)

// ParentHash is a hash-output byte string, or the empty sentinel meaning "no
// hash committed yet". It is not secret and is never zeroized.
type ParentHash []byte

// parentHashEmpty is the sentinel used as the accumulator's starting value
// and as the root's effective "parent's parent hash".
func parentHashEmpty() ParentHash { return ParentHash{} }

func (h ParentHash) isEmpty() bool { return len(h) == 0 }

// matches compares two parent hashes in constant time with respect to
// length-matching inputs: the lengths themselves (always a fixed hash
// output size) are not secret, but once lengths agree, comparison never
// short-circuits on the first differing byte.
func (h ParentHash) matches(other ParentHash) bool {
	if len(h) != len(other) {
		return false
	}
	return subtle.ConstantTimeCompare(h, other) == 1
}

// parentHashInput is the (unserialized) struct hashed to build a parent
// hash: ParentHashInput { public_key; parent_hash; original_child_resolution; }.
type parentHashInput struct {
	publicKey                []byte
	parentHash               ParentHash
	originalChildResolution  [][]byte
}

func (in *parentHashInput) marshal(b *cryptobyte.Builder) {
	writeOpaqueVec(b, in.publicKey)
	writeOpaqueVec(b, []byte(in.parentHash))
	writeVector(b, len(in.originalChildResolution), func(b *cryptobyte.Builder, i int) {
		writeOpaqueVec(b, in.originalChildResolution[i])
	})
}

// computeParentHash is the Parent-Hash Builder: a single hash commitment
// over (public key, parent's parent-hash, original child resolution).
func computeParentHash(cs cipherSuite, publicKey []byte, parentParentHash ParentHash, ocr [][]byte) (ParentHash, error) {
	in := parentHashInput{
		publicKey:               publicKey,
		parentHash:              parentParentHash,
		originalChildResolution: ocr,
	}

	var b cryptobyte.Builder
	in.marshal(&b)
	raw, err := b.Bytes()
	if err != nil {
		return nil, errSerialization(err)
	}

	digest, err := cs.hash(raw)
	if err != nil {
		return nil, err
	}
	return ParentHash(digest), nil
}

// parentHashAt computes the parent hash of the non-blank parent at
// nodeIndex, given its accumulated parent-parent-hash and the co-path child
// (sibling) whose original child resolution feeds the input.
func parentHashAt(cs cipherSuite, nodes nodeVec, nodeIndex_, coPathChild nodeIndex, parentParentHash ParentHash) (ParentHash, error) {
	p, err := nodes.borrowAsParent(nodeIndex_)
	if err != nil {
		return nil, err
	}
	ocr := nodes.originalChildResolution(p, coPathChild)
	return computeParentHash(cs, p.publicKey, parentParentHash, ocr)
}

// updateParentHashes is the Parent-Hash Chain: it walks the direct path of
// index root-to-leaf, threading an accumulator through internal nodes, and
// returns the leaf's expected parent hash. If path is non-nil, the
// accumulator is checked in constant time against the parent-hash extension
// carried by path's leaf key package.
//
// Step 3 reads sibling state while computing new hashes, so all updates are
// gathered into a pending-changes map and applied only after the whole walk
// completes (the two-pass design the package's tests rely on for
// idempotence).
func updateParentHashes(cs cipherSuite, nodes nodeVec, index leafIndex, path *updatePath) (ParentHash, error) {
	n := nodes.leafCount()
	if n <= 1 {
		return parentHashEmpty(), nil
	}

	leaf := toNodeIndex(index)
	dp, err := directPath(leaf, n)
	if err != nil {
		return nil, err
	}
	cp, err := copath(leaf, n)
	if err != nil {
		return nil, err
	}
	if len(dp) != len(cp) {
		return nil, errTreeMath("direct path and copath length mismatch")
	}

	type change struct {
		index nodeIndex
		hash  ParentHash
	}
	var changes []change

	acc := parentHashEmpty()
	for i := len(dp) - 1; i >= 0; i-- {
		nodeIdx := dp[i]
		siblingIdx := cp[i]

		if !nodes.isLeaf(nodeIdx) {
			changes = append(changes, change{index: nodeIdx, hash: acc})
		}

		next, err := parentHashAt(cs, nodes, nodeIdx, siblingIdx, acc)
		if err != nil {
			return nil, err
		}
		acc = next
	}

	for _, c := range changes {
		p, err := nodes.borrowAsParent(c.index)
		if err != nil {
			return nil, err
		}
		p.parentHash = c.hash
	}

	if path != nil {
		received := path.leafKeyPackage.extensions.getParentHash()
		if received == nil {
			return nil, errParentHashNotFound
		}
		if !acc.matches(*received) {
			return nil, errParentHashMismatch
		}
	}

	return acc, nil
}

// validateParentHash is the bidirectional child check for a single non-blank
// parent P: P is accepted as soon as one child's stored hash matches the
// parent hash computed against the opposite co-path child (the left child
// is checked first), tolerating a blank R by
// descending into its left child until a non-blank node (or a blank leaf,
// which fails) is found. The descent is asymmetric by design: only R is
// ever replaced, never L.
func validateParentHash(cs cipherSuite, nodes nodeVec, nodeIdx nodeIndex) error {
	p, err := nodes.borrowAsParent(nodeIdx)
	if err != nil {
		return err
	}

	n := nodes.leafCount()
	l := left(nodeIdx)
	r := right(nodeIdx, n)

	phRight, err := parentHashAt(cs, nodes, nodeIdx, r, p.parentHash)
	if err != nil {
		return err
	}
	if !nodes.isBlank(l) {
		if lh := nodes.getParentHash(l); lh != nil && lh.matches(phRight) {
			return nil
		}
	}

	for nodes.isBlank(r) && !nodes.isLeaf(r) {
		r = left(r)
	}
	if nodes.isLeaf(r) && nodes.isBlank(r) {
		return errInvalidParentHash("blank leaf")
	}

	phLeft, err := parentHashAt(cs, nodes, nodeIdx, l, p.parentHash)
	if err != nil {
		return err
	}
	if !nodes.isBlank(r) {
		if rh := nodes.getParentHash(r); rh != nil && rh.matches(phLeft) {
			return nil
		}
	}

	return errInvalidParentHash("no match found")
}

// validateParentHashes is the Parent-Hash Validator: it checks every
// non-blank parent in the tree; a single rejection fails the whole tree.
func validateParentHashes(cs cipherSuite, nodes nodeVec) error {
	for idx := nodeIndex(1); int(idx) < len(nodes); idx += 2 {
		if nodes.isBlank(idx) {
			continue
		}
		if err := validateParentHash(cs, nodes, idx); err != nil {
			return err
		}
	}
	return nil
}
