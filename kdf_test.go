package mls

import (
	"bytes"
	"testing"
)

func TestKdfExtractSizePerCipherSuite(t *testing.T) {
	cases := []struct {
		cs   cipherSuite
		size int
	}{
		{cipherSuiteCurve25519Aes128, 32},
		{cipherSuiteP256Aes128, 32},
		{cipherSuiteCurve25519Chacha, 32},
		{cipherSuiteP384Aes256, 48},
		{cipherSuiteCurve448Chacha, 64},
		{cipherSuiteCurve448Aes256, 64},
		{cipherSuiteP521Aes256, 64},
	}

	for _, tc := range cases {
		k, err := newKdf(tc.cs)
		if err != nil {
			t.Fatalf("newKdf(%v) = %v", tc.cs, err)
		}
		if got := k.extractSize(); got != tc.size {
			t.Errorf("extractSize(%v) = %d, want %d", tc.cs, got, tc.size)
		}
	}
}

func TestKdfExtractDeterministic(t *testing.T) {
	k, err := newKdf(cipherSuiteCurve25519Aes128)
	if err != nil {
		t.Fatalf("newKdf() = %v", err)
	}

	salt := bytes.Repeat([]byte{0x01}, 32)
	ikm := bytes.Repeat([]byte{0x02}, 32)

	a, err := k.extract(salt, ikm)
	if err != nil {
		t.Fatalf("extract() = %v", err)
	}
	b, err := k.extract(salt, ikm)
	if err != nil {
		t.Fatalf("extract() = %v", err)
	}
	if !bytes.Equal(a, b) {
		t.Errorf("extract() is not deterministic")
	}
	if len(a) != k.extractSize() {
		t.Errorf("extract() output length = %d, want %d", len(a), k.extractSize())
	}
}

func TestKdfExpandRejectsOversizeLength(t *testing.T) {
	k, err := newKdf(cipherSuiteCurve25519Aes128)
	if err != nil {
		t.Fatalf("newKdf() = %v", err)
	}

	_, err = k.expand(bytes.Repeat([]byte{0x01}, 32), []byte("info"), 255*k.extractSize()+1)
	if err == nil {
		t.Errorf("expand() with oversize length = nil, want error")
	}
}

func TestKdfExpandWithLabelDomainSeparation(t *testing.T) {
	k, err := newKdf(cipherSuiteCurve25519Aes128)
	if err != nil {
		t.Fatalf("newKdf() = %v", err)
	}

	secret := bytes.Repeat([]byte{0x03}, 32)

	a, err := k.expandWithLabel(secret, []byte("derived psk"), []byte("ctx"), 32)
	if err != nil {
		t.Fatalf("expandWithLabel() = %v", err)
	}
	b, err := k.expandWithLabel(secret, []byte("welcome"), []byte("ctx"), 32)
	if err != nil {
		t.Fatalf("expandWithLabel() = %v", err)
	}

	if bytes.Equal(a, b) {
		t.Errorf("expandWithLabel() produced the same output for two different labels")
	}
}

func TestCipherSuiteKdfMapping(t *testing.T) {
	cases := []struct {
		cs  cipherSuite
		kdf kdfID
	}{
		{cipherSuiteCurve25519Aes128, kdfHkdfSha256},
		{cipherSuiteP256Aes128, kdfHkdfSha256},
		{cipherSuiteCurve25519Chacha, kdfHkdfSha256},
		{cipherSuiteP384Aes256, kdfHkdfSha384},
		{cipherSuiteCurve448Chacha, kdfHkdfSha512},
		{cipherSuiteCurve448Aes256, kdfHkdfSha512},
		{cipherSuiteP521Aes256, kdfHkdfSha512},
	}

	for _, tc := range cases {
		got, err := tc.cs.kdfID()
		if err != nil {
			t.Fatalf("kdfID(%v) = %v", tc.cs, err)
		}
		if got != tc.kdf {
			t.Errorf("kdfID(%v) = %v, want %v", tc.cs, got, tc.kdf)
		}
	}
}
