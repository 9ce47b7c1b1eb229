package mls

import (
	"io"

	"golang.org/x/crypto/cryptobyte"
)

// ratchetTree is the array representation of the group's ratchet tree: a
// left-balanced binary tree (nodeVec) bound to the ciphersuite its hashes
// and HPKE operations are computed under.
type ratchetTree struct {
	cipherSuite cipherSuite
	nodes       nodeVec
}

func newRatchetTree(cs cipherSuite) *ratchetTree {
	return &ratchetTree{cipherSuite: cs}
}

func (t *ratchetTree) leafCount() leafCount {
	return t.nodes.leafCount()
}

// resolve returns the public keys named by the MLS resolution of x.
func (t *ratchetTree) resolve(x nodeIndex) [][]byte {
	var keys [][]byte
	for _, idx := range t.nodes.resolve(x) {
		pk, err := t.nodes.publicKey(idx)
		if err != nil {
			continue
		}
		keys = append(keys, pk)
	}
	return keys
}

// addLeaf places a leaf at the first blank leaf slot, growing the tree (and
// its intervening blank parent) if none is free. It returns the new leaf's
// index.
func (t *ratchetTree) addLeaf(publicKey []byte) leafIndex {
	for i := nodeIndex(0); t.nodes.inRange(i); i += 2 {
		if t.nodes.isBlank(i) {
			li, _ := i.leafIndex()
			t.nodes[i] = newLeafSlot(leafSlot{publicKey: publicKey})
			return li
		}
	}

	if len(t.nodes) > 0 {
		t.nodes = append(t.nodes, nil) // blank parent slot just left of the new leaf
	}
	t.nodes = append(t.nodes, newLeafSlot(leafSlot{publicKey: publicKey}))
	li, _ := nodeIndex(len(t.nodes) - 1).leafIndex()
	return li
}

// blankLeaf removes a member's key material by blanking its leaf slot, if
// that slot is in range. Ancestors on its direct path are not blanked, and
// no unmergedLeaves bookkeeping is changed.
func (t *ratchetTree) blankLeaf(li leafIndex) {
	x := toNodeIndex(li)
	if t.nodes.inRange(x) {
		t.nodes[x] = nil
	}
}

// updateParentHashes is the Parent-Hash Chain for the direct path of li,
// delegating to the package-level two-pass walk over the tree's raw nodes.
func (t *ratchetTree) updateParentHashes(li leafIndex, path *updatePath) (ParentHash, error) {
	return updateParentHashes(t.cipherSuite, t.nodes, li, path)
}

// validateParentHashes is the Parent-Hash Validator over every non-blank
// parent in the tree.
func (t *ratchetTree) validateParentHashes() error {
	return validateParentHashes(t.cipherSuite, t.nodes)
}

// marshal/unmarshal encode the tree as a NodeVec: a vector of optional
// nodes, each tagged leaf or parent.
func (t *ratchetTree) marshal(b *cryptobyte.Builder) {
	writeVector(b, len(t.nodes), func(b *cryptobyte.Builder, i int) {
		n := t.nodes[i]
		present := n != nil
		writeOptional(b, present)
		if !present {
			return
		}
		b.AddUint8(uint8(n.nodeType))
		switch n.nodeType {
		case nodeTypeLeaf:
			writeOpaqueVec(b, n.leaf.publicKey)
			hasHash := n.leaf.parentHashExt != nil
			writeOptional(b, hasHash)
			if hasHash {
				writeOpaqueVec(b, []byte(*n.leaf.parentHashExt))
			}
		case nodeTypeParent:
			writeOpaqueVec(b, n.parent.publicKey)
			writeOpaqueVec(b, []byte(n.parent.parentHash))
			writeVector(b, len(n.parent.unmergedLeaves), func(b *cryptobyte.Builder, i int) {
				b.AddUint32(uint32(n.parent.unmergedLeaves[i]))
			})
		}
	})
}

func (t *ratchetTree) unmarshal(s *cryptobyte.String) error {
	t.nodes = nil
	return readVector(s, func(s *cryptobyte.String) error {
		var present bool
		if !readOptional(s, &present) {
			return io.ErrUnexpectedEOF
		}
		if !present {
			t.nodes = append(t.nodes, nil)
			return nil
		}

		var typ uint8
		if !s.ReadUint8(&typ) {
			return io.ErrUnexpectedEOF
		}

		switch nodeType(typ) {
		case nodeTypeLeaf:
			var l leafSlot
			if !readOpaqueVec(s, &l.publicKey) {
				return io.ErrUnexpectedEOF
			}
			var hasHash bool
			if !readOptional(s, &hasHash) {
				return io.ErrUnexpectedEOF
			}
			if hasHash {
				var h []byte
				if !readOpaqueVec(s, &h) {
					return io.ErrUnexpectedEOF
				}
				ph := ParentHash(h)
				l.parentHashExt = &ph
			}
			t.nodes = append(t.nodes, newLeafSlot(l))
		case nodeTypeParent:
			var p parentNode
			if !readOpaqueVec(s, &p.publicKey) {
				return io.ErrUnexpectedEOF
			}
			var h []byte
			if !readOpaqueVec(s, &h) {
				return io.ErrUnexpectedEOF
			}
			p.parentHash = ParentHash(h)

			err := readVector(s, func(s *cryptobyte.String) error {
				var li uint32
				if !s.ReadUint32(&li) {
					return io.ErrUnexpectedEOF
				}
				p.unmergedLeaves = append(p.unmergedLeaves, leafIndex(li))
				return nil
			})
			if err != nil {
				return err
			}

			t.nodes = append(t.nodes, newParentSlot(p))
		default:
			return errTreeMath("unknown node type on the wire")
		}

		return nil
	})
}
