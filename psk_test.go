package mls

import (
	"bytes"
	"crypto/rand"
	"errors"
	"testing"
)

func storeReturning(psks map[string]Psk) ExternalPskSearch {
	return func(id ExternalPskId) (Psk, error) {
		if psk, ok := psks[string(id)]; ok {
			// pskSecret wipes the Psk it is handed, so hand out a copy.
			return append(Psk(nil), psk...), nil
		}
		return nil, nil
	}
}

func noResumption(epoch uint64) (Psk, error) {
	return nil, nil
}

func externalID(id PreSharedKeyID) (string, bool) {
	if id.KeyID.pskType != pskTypeExternal {
		return "", false
	}
	return string(id.KeyID.external), true
}

func mustExternalPSK(t *testing.T, cs cipherSuite, id ExternalPskId) PreSharedKeyID {
	t.Helper()
	nonce, err := randomPskNonce(cs, rand.Reader)
	if err != nil {
		t.Fatalf("randomPskNonce() = %v", err)
	}
	return PreSharedKeyID{KeyID: NewExternalPskID(id), PskNonce: nonce}
}

func TestPskSecretEmptyListIdentity(t *testing.T) {
	cs := cipherSuiteCurve25519Aes128
	secret, err := pskSecret(cs, storeReturning(nil), noResumption, nil)
	if err != nil {
		t.Fatalf("pskSecret([]) = %v", err)
	}

	size, err := kdfHkdfSha256.extractSize()
	if err != nil {
		t.Fatalf("extractSize() = %v", err)
	}
	if len(secret) != size || !bytes.Equal(secret, make([]byte, size)) {
		t.Errorf("pskSecret([]) = %x, want %d zero bytes", []byte(secret), size)
	}
}

func TestPskSecretDeterministic(t *testing.T) {
	cs := cipherSuiteCurve25519Aes128
	id := mustExternalPSK(t, cs, ExternalPskId("alice"))
	store := storeReturning(map[string]Psk{"alice": Psk(bytes.Repeat([]byte{0x42}, 32))})

	s1, err := pskSecret(cs, store, noResumption, []PreSharedKeyID{id})
	if err != nil {
		t.Fatalf("pskSecret() run 1 = %v", err)
	}
	s2, err := pskSecret(cs, store, noResumption, []PreSharedKeyID{id})
	if err != nil {
		t.Fatalf("pskSecret() run 2 = %v", err)
	}
	if !bytes.Equal(s1, s2) {
		t.Errorf("pskSecret() is not deterministic: %x != %x", []byte(s1), []byte(s2))
	}
}

func TestPskSecretOrderSensitive(t *testing.T) {
	cs := cipherSuiteCurve25519Aes128
	a := mustExternalPSK(t, cs, ExternalPskId("alice"))
	b := mustExternalPSK(t, cs, ExternalPskId("bob"))
	store := storeReturning(map[string]Psk{
		"alice": Psk(bytes.Repeat([]byte{0x11}, 32)),
		"bob":   Psk(bytes.Repeat([]byte{0x22}, 32)),
	})

	forward, err := pskSecret(cs, store, noResumption, []PreSharedKeyID{a, b})
	if err != nil {
		t.Fatalf("pskSecret([a,b]) = %v", err)
	}
	backward, err := pskSecret(cs, store, noResumption, []PreSharedKeyID{b, a})
	if err != nil {
		t.Fatalf("pskSecret([b,a]) = %v", err)
	}

	if bytes.Equal(forward, backward) {
		t.Errorf("pskSecret() gave the same output regardless of PSK order")
	}
}

func TestPskSecretUnknownIDPropagation(t *testing.T) {
	cs := cipherSuiteCurve25519Aes128
	id := mustExternalPSK(t, cs, ExternalPskId("ghost"))

	_, err := pskSecret(cs, storeReturning(nil), noResumption, []PreSharedKeyID{id})
	got, ok := IsNoPskForId(err)
	if !ok {
		t.Fatalf("pskSecret() with unresolvable id = %v, want NoPskForId", err)
	}
	if !bytes.Equal(got, []byte("ghost")) {
		t.Errorf("IsNoPskForId() id = %q, want %q", got, "ghost")
	}
}

func TestPskSecretEpochNotFoundPropagation(t *testing.T) {
	cs := cipherSuiteCurve25519Aes128
	nonce, err := randomPskNonce(cs, rand.Reader)
	if err != nil {
		t.Fatalf("randomPskNonce() = %v", err)
	}
	id := PreSharedKeyID{
		KeyID:    NewResumptionPskID(ResumptionPsk{Usage: resumptionPSKUsageApplication, PskEpoch: 7}),
		PskNonce: nonce,
	}

	_, err = pskSecret(cs, storeReturning(nil), noResumption, []PreSharedKeyID{id})
	epoch, ok := IsEpochNotFound(err)
	if !ok {
		t.Fatalf("pskSecret() with unresolvable epoch = %v, want EpochNotFound", err)
	}
	if epoch != 7 {
		t.Errorf("IsEpochNotFound() epoch = %d, want 7", epoch)
	}
}

func TestPskSecretStoreErrorPropagation(t *testing.T) {
	cs := cipherSuiteCurve25519Aes128
	id := mustExternalPSK(t, cs, ExternalPskId("alice"))

	cause := errors.New("store unavailable")
	failing := func(ExternalPskId) (Psk, error) { return nil, cause }

	_, err := pskSecret(cs, failing, noResumption, []PreSharedKeyID{id})
	if err == nil {
		t.Fatalf("pskSecret() with failing store = nil, want error")
	}
	if !errors.Is(err, cause) {
		t.Errorf("pskSecret() error does not wrap store error: %v", err)
	}
}

func TestPskSecretTooManyIDs(t *testing.T) {
	cs := cipherSuiteCurve25519Aes128
	ids := make([]PreSharedKeyID, maxPskIDs+1)
	for i := range ids {
		ids[i] = mustExternalPSK(t, cs, ExternalPskId("x"))
	}

	_, err := pskSecret(cs, storeReturning(nil), noResumption, ids)
	if err == nil {
		t.Fatalf("pskSecret() with too many ids = nil, want error")
	}
}

func TestPreSharedKeyIDRoundTrip(t *testing.T) {
	cs := cipherSuiteCurve25519Aes128
	id := mustExternalPSK(t, cs, ExternalPskId("alice"))

	raw, err := marshal(&id)
	if err != nil {
		t.Fatalf("marshal() = %v", err)
	}

	var got PreSharedKeyID
	if err := unmarshal(raw, &got); err != nil {
		t.Fatalf("unmarshal() = %v", err)
	}

	name, ok := externalID(got)
	if !ok || name != "alice" {
		t.Errorf("round-trip external psk id = %q, want %q", name, "alice")
	}
	if !bytes.Equal(got.PskNonce, id.PskNonce) {
		t.Errorf("round-trip nonce = %x, want %x", []byte(got.PskNonce), []byte(id.PskNonce))
	}
}

func TestResumptionPskRoundTrip(t *testing.T) {
	r := ResumptionPsk{Usage: resumptionPSKUsageBranch, PskGroupID: PskGroupId("group-1"), PskEpoch: 42}

	raw, err := marshal(&r)
	if err != nil {
		t.Fatalf("marshal() = %v", err)
	}

	var got ResumptionPsk
	if err := unmarshal(raw, &got); err != nil {
		t.Fatalf("unmarshal() = %v", err)
	}
	if got.Usage != r.Usage || got.PskEpoch != r.PskEpoch || !bytes.Equal(got.PskGroupID, r.PskGroupID) {
		t.Errorf("round-trip ResumptionPsk = %+v, want %+v", got, r)
	}
}

func TestPskLabelEncodingDeterministic(t *testing.T) {
	cs := cipherSuiteCurve25519Aes128
	id := mustExternalPSK(t, cs, ExternalPskId("alice"))
	label := pskLabel{id: &id, index: 2, count: 5}

	raw, err := marshalLabel(&label)
	if err != nil {
		t.Fatalf("marshalLabel() = %v", err)
	}
	if len(raw) == 0 {
		t.Fatalf("marshalLabel() produced no bytes")
	}

	raw2, err := marshalLabel(&label)
	if err != nil {
		t.Fatalf("marshalLabel() = %v", err)
	}
	if !bytes.Equal(raw, raw2) {
		t.Errorf("marshalLabel() is not deterministic")
	}
}

func TestPskNonceRandomness(t *testing.T) {
	cs := cipherSuiteCurve25519Aes128

	seen := make(map[string]struct{}, 1000)
	for i := 0; i < 1000; i++ {
		nonce, err := randomPskNonce(cs, rand.Reader)
		if err != nil {
			t.Fatalf("randomPskNonce() = %v", err)
		}
		seen[string(nonce)] = struct{}{}
	}
	if len(seen) != 1000 {
		t.Errorf("randomPskNonce() produced %d distinct values out of 1000 draws", len(seen))
	}
}

func TestGetEpochSecretArgumentOrder(t *testing.T) {
	cs := cipherSuiteCurve25519Aes128
	psk := Psk(bytes.Repeat([]byte{0x01}, 32))
	joiner := JoinerSecret(bytes.Repeat([]byte{0x02}, 32))

	a, err := getEpochSecret(cs, psk, joiner)
	if err != nil {
		t.Fatalf("getEpochSecret() = %v", err)
	}
	b, err := getEpochSecret(cs, Psk(joiner), JoinerSecret(psk))
	if err != nil {
		t.Fatalf("getEpochSecret() with swapped args = %v", err)
	}
	if bytes.Equal(a, b) {
		t.Errorf("getEpochSecret() ignored argument order")
	}
}
