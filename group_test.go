package mls

import (
	"bytes"
	"testing"
)

func TestGroupContextRoundTrip(t *testing.T) {
	ctx := groupContext{
		version:                 protocolVersionMLS10,
		cipherSuite:             cipherSuiteCurve25519Aes128,
		groupID:                 GroupID("test-group"),
		epoch:                   3,
		treeHash:                bytes.Repeat([]byte{0x01}, 32),
		confirmedTranscriptHash: bytes.Repeat([]byte{0x02}, 32),
		extensions:              []extension{{extensionType: extensionTypeParentHash, extensionData: []byte("x")}},
	}

	raw, err := marshal(&ctx)
	if err != nil {
		t.Fatalf("marshal() = %v", err)
	}

	var got groupContext
	if err := unmarshal(raw, &got); err != nil {
		t.Fatalf("unmarshal() = %v", err)
	}

	if got.epoch != ctx.epoch || !bytes.Equal(got.groupID, ctx.groupID) || !bytes.Equal(got.treeHash, ctx.treeHash) {
		t.Errorf("round-trip groupContext = %+v, want %+v", got, ctx)
	}
}

func TestGroupContextRejectsUnknownVersion(t *testing.T) {
	ctx := groupContext{version: 0xffff, cipherSuite: cipherSuiteCurve25519Aes128}
	raw, err := marshal(&ctx)
	if err != nil {
		t.Fatalf("marshal() = %v", err)
	}

	var got groupContext
	if err := unmarshal(raw, &got); err == nil {
		t.Errorf("unmarshal() with unknown protocol version = nil, want error")
	}
}

func TestCommitRoundTripWithNoPath(t *testing.T) {
	c := commit{proposals: nil, path: nil}

	raw, err := marshal(&c)
	if err != nil {
		t.Fatalf("marshal() = %v", err)
	}

	var got commit
	if err := unmarshal(raw, &got); err != nil {
		t.Fatalf("unmarshal() = %v", err)
	}
	if got.path != nil {
		t.Errorf("unmarshal() path = %+v, want nil", got.path)
	}
}

func TestProposalOrRefReferenceRoundTrip(t *testing.T) {
	p := proposalOrRef{typ: proposalOrRefTypeReference, reference: proposalRef("a-ref")}

	raw, err := marshal(&p)
	if err != nil {
		t.Fatalf("marshal() = %v", err)
	}

	var got proposalOrRef
	if err := unmarshal(raw, &got); err != nil {
		t.Fatalf("unmarshal() = %v", err)
	}
	if got.typ != proposalOrRefTypeReference || !bytes.Equal(got.reference, p.reference) {
		t.Errorf("round-trip proposalOrRef = %+v, want %+v", got, p)
	}
}

func TestGroupSecretsResolveEpochSecretWithoutPSKs(t *testing.T) {
	cs := cipherSuiteCurve25519Aes128
	sec := groupSecrets{joinerSecret: JoinerSecret(bytes.Repeat([]byte{0x09}, 32))}

	got, err := sec.resolveEpochSecret(cs, storeReturning(nil), noResumption)
	if err != nil {
		t.Fatalf("resolveEpochSecret() = %v", err)
	}

	want, err := getEpochSecret(cs, make(Psk, 32), sec.joinerSecret)
	if err != nil {
		t.Fatalf("getEpochSecret() = %v", err)
	}
	if !bytes.Equal(got, want) {
		t.Errorf("resolveEpochSecret() without psks = %x, want %x (zero psk secret)", got, want)
	}
}

func TestGroupSecretsResolveEpochSecretWithPSK(t *testing.T) {
	cs := cipherSuiteCurve25519Aes128
	id := mustExternalPSK(t, cs, ExternalPskId("alice"))
	sec := groupSecrets{
		joinerSecret: JoinerSecret(bytes.Repeat([]byte{0x09}, 32)),
		psks:         []PreSharedKeyID{id},
	}
	store := storeReturning(map[string]Psk{"alice": Psk(bytes.Repeat([]byte{0x42}, 32))})

	withPSK, err := sec.resolveEpochSecret(cs, store, noResumption)
	if err != nil {
		t.Fatalf("resolveEpochSecret() = %v", err)
	}

	empty := groupSecrets{joinerSecret: sec.joinerSecret}
	withoutPSK, err := empty.resolveEpochSecret(cs, storeReturning(nil), noResumption)
	if err != nil {
		t.Fatalf("resolveEpochSecret() = %v", err)
	}

	if bytes.Equal(withPSK, withoutPSK) {
		t.Errorf("resolveEpochSecret() ignored the listed PSK")
	}
}

func TestWelcomeFindLocatesMatchingSecret(t *testing.T) {
	ref := keyPackageRef("member-1")
	w := welcome{
		secrets: []encryptedGroupSecrets{
			{newMember: keyPackageRef("member-0")},
			{newMember: ref},
		},
	}

	got, err := w.find(ref)
	if err != nil {
		t.Fatalf("find() = %v", err)
	}
	if !got.newMember.Equal(ref) {
		t.Errorf("find() returned secrets for %q, want %q", got.newMember, ref)
	}

	if _, err := w.find(keyPackageRef("nope")); err == nil {
		t.Errorf("find() for absent ref = nil, want error")
	}
}
