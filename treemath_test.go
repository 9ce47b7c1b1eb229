package mls

import "testing"

func TestTreeMathRootForFourLeaves(t *testing.T) {
	n := leafCount(4)
	if got := root(n); got != 3 {
		t.Errorf("root(4) = %d, want 3", got)
	}
}

func TestTreeMathSiblingsAreMutual(t *testing.T) {
	n := leafCount(8)
	for x := nodeIndex(0); uint32(x) < nodeWidth(n); x++ {
		if x == root(n) {
			continue
		}
		s, err := sibling(x, n)
		if err != nil {
			t.Fatalf("sibling(%d) = %v", x, err)
		}
		back, err := sibling(s, n)
		if err != nil {
			t.Fatalf("sibling(%d) = %v", s, err)
		}
		if back != x {
			t.Errorf("sibling(sibling(%d)) = %d, want %d", x, back, x)
		}
	}
}

func TestTreeMathDirectPathEndsAtRoot(t *testing.T) {
	n := leafCount(5)
	dp, err := directPath(toNodeIndex(0), n)
	if err != nil {
		t.Fatalf("directPath() = %v", err)
	}
	if len(dp) == 0 || dp[len(dp)-1] != root(n) {
		t.Errorf("directPath() = %v, want to end at root %d", dp, root(n))
	}
}

func TestTreeMathCopathMatchesDirectPathLength(t *testing.T) {
	n := leafCount(6)
	for li := leafIndex(0); uint32(li) < uint32(n); li++ {
		dp, err := directPath(toNodeIndex(li), n)
		if err != nil {
			t.Fatalf("directPath(%d) = %v", li, err)
		}
		cp, err := copath(toNodeIndex(li), n)
		if err != nil {
			t.Fatalf("copath(%d) = %v", li, err)
		}
		if len(dp) != len(cp) {
			t.Errorf("len(directPath(%d)) = %d, len(copath) = %d, want equal", li, len(dp), len(cp))
		}
	}
}

func TestTreeMathParentOfRootFails(t *testing.T) {
	n := leafCount(4)
	if _, err := parent(root(n), n); err == nil {
		t.Errorf("parent(root) = nil, want error")
	}
}

func TestTreeMathLeafIndexRoundTrip(t *testing.T) {
	for li := leafIndex(0); li < 10; li++ {
		x := toNodeIndex(li)
		got, ok := x.leafIndex()
		if !ok || got != li {
			t.Errorf("toNodeIndex(%d).leafIndex() = (%d, %v), want (%d, true)", li, got, ok, li)
		}
	}
}
