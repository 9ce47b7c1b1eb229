package mls

import "fmt"

// nodeType distinguishes the two kinds of non-blank slot in a ratchet tree.
type nodeType uint8

const (
	nodeTypeLeaf   nodeType = 1
	nodeTypeParent nodeType = 2
)

// parentNode is a non-blank internal slot: its own HPKE public key, the
// parent hash it was committed with, and the leaves that have been added to
// its subtree since but not yet merged into its path.
type parentNode struct {
	publicKey      []byte
	parentHash     ParentHash
	unmergedLeaves []leafIndex
}

// leafSlot is a non-blank leaf slot. parentHashExt mirrors the optional
// parent_hash extension carried in the leaf's key package: nil means the
// extension is absent, distinct from ParentHash.empty() which means present
// but "no hash yet".
type leafSlot struct {
	publicKey     []byte
	parentHashExt *ParentHash
}

// node is one slot of a NodeVec; a nil *node is a blank slot.
type node struct {
	nodeType nodeType
	leaf     *leafSlot
	parent   *parentNode
}

func newParentSlot(p parentNode) *node {
	return &node{nodeType: nodeTypeParent, parent: &p}
}

func newLeafSlot(l leafSlot) *node {
	return &node{nodeType: nodeTypeLeaf, leaf: &l}
}

// nodeVec is the flat array representation of a left-balanced binary tree:
// even indices are leaves, odd are parents, nil entries are blank.
type nodeVec []*node

func (nodes nodeVec) leafCount() leafCount {
	return leafCount((len(nodes) + 1) / 2)
}

func (nodes nodeVec) inRange(x nodeIndex) bool {
	return int(x) < len(nodes)
}

func (nodes nodeVec) isLeaf(x nodeIndex) bool {
	return x%2 == 0
}

func (nodes nodeVec) isBlank(x nodeIndex) bool {
	return !nodes.inRange(x) || nodes[x] == nil
}

func (nodes nodeVec) borrowAsParent(x nodeIndex) (*parentNode, error) {
	if nodes.isBlank(x) || nodes[x].nodeType != nodeTypeParent {
		return nil, errTreeMath(fmt.Sprintf("node %d is not a non-blank parent", x))
	}
	return nodes[x].parent, nil
}

// publicKey returns the HPKE public key stored at a non-blank slot.
func (nodes nodeVec) publicKey(x nodeIndex) ([]byte, error) {
	if nodes.isBlank(x) {
		return nil, errTreeMath(fmt.Sprintf("node %d is blank", x))
	}
	n := nodes[x]
	if n.nodeType == nodeTypeLeaf {
		return n.leaf.publicKey, nil
	}
	return n.parent.publicKey, nil
}

// getParentHash returns the parent hash recorded at x: a leaf's extension
// value (nil if absent), or a parent's stored field. Blank slots have no
// parent hash to report.
func (nodes nodeVec) getParentHash(x nodeIndex) *ParentHash {
	if nodes.isBlank(x) {
		return nil
	}
	n := nodes[x]
	if n.nodeType == nodeTypeLeaf {
		return n.leaf.parentHashExt
	}
	return &n.parent.parentHash
}

// resolve computes the MLS resolution of x: the ordered list of non-blank
// node indices reached by descending through blank parents, with a
// non-blank parent's own unmerged leaves appended to its singleton.
func (nodes nodeVec) resolve(x nodeIndex) []nodeIndex {
	if !nodes.inRange(x) {
		return nil
	}

	if nodes.isBlank(x) {
		if nodes.isLeaf(x) {
			return nil
		}
		l := left(x)
		r := right(x, nodes.leafCount())
		return append(nodes.resolve(l), nodes.resolve(r)...)
	}

	n := nodes[x]
	if n.nodeType == nodeTypeLeaf {
		return []nodeIndex{x}
	}

	res := []nodeIndex{x}
	for _, li := range n.parent.unmergedLeaves {
		res = append(res, toNodeIndex(li))
	}
	return res
}

// originalChildResolution is resolve(x) with any of ancestor's unmerged
// leaves filtered out: the resolution the child subtree would have produced
// before those leaves were added, which is what the ancestor's parent hash
// was actually computed against.
func (nodes nodeVec) originalChildResolution(ancestor *parentNode, x nodeIndex) [][]byte {
	excluded := make(map[nodeIndex]struct{}, len(ancestor.unmergedLeaves))
	for _, li := range ancestor.unmergedLeaves {
		excluded[toNodeIndex(li)] = struct{}{}
	}

	var keys [][]byte
	for _, idx := range nodes.resolve(x) {
		if _, skip := excluded[idx]; skip {
			continue
		}
		pk, err := nodes.publicKey(idx)
		if err != nil {
			continue
		}
		keys = append(keys, pk)
	}
	return keys
}
