package mls

import (
	"bytes"
	"testing"

	"golang.org/x/crypto/cryptobyte"
)

func TestExtensionListParentHashRoundTrip(t *testing.T) {
	var exts extensionList

	if got := exts.getParentHash(); got != nil {
		t.Errorf("getParentHash() on empty list = %v, want nil", got)
	}

	want := ParentHash(bytes.Repeat([]byte{0xab}, 32))
	if err := exts.setParentHash(want); err != nil {
		t.Fatalf("setParentHash() = %v", err)
	}

	got := exts.getParentHash()
	if got == nil || !got.matches(want) {
		t.Errorf("getParentHash() = %v, want %v", got, want)
	}

	// setParentHash again should replace, not duplicate, the extension.
	other := ParentHash(bytes.Repeat([]byte{0xcd}, 32))
	if err := exts.setParentHash(other); err != nil {
		t.Fatalf("setParentHash() = %v", err)
	}
	if len(exts) != 1 {
		t.Errorf("len(exts) = %d after replacing, want 1", len(exts))
	}
	if got := exts.getParentHash(); got == nil || !got.matches(other) {
		t.Errorf("getParentHash() after replace = %v, want %v", got, other)
	}
}

func TestExtensionVecRoundTrip(t *testing.T) {
	exts := extensionList{
		{extensionType: extensionTypeParentHash, extensionData: []byte("one")},
		{extensionType: 0x9999, extensionData: []byte("two")},
	}

	var b cryptobyte.Builder
	marshalExtensionVec(&b, exts)
	raw, err := b.Bytes()
	if err != nil {
		t.Fatalf("marshalExtensionVec() = %v", err)
	}

	s := cryptobyte.String(raw)
	got, err := unmarshalExtensionVec(&s)
	if err != nil {
		t.Fatalf("unmarshalExtensionVec() = %v", err)
	}

	if len(got) != len(exts) {
		t.Fatalf("len(got) = %d, want %d", len(got), len(exts))
	}
	for i := range exts {
		if got[i].extensionType != exts[i].extensionType || !bytes.Equal(got[i].extensionData, exts[i].extensionData) {
			t.Errorf("extension[%d] = %+v, want %+v", i, got[i], exts[i])
		}
	}
}
