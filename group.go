package mls

import (
	"fmt"
	"io"

	"golang.org/x/crypto/cryptobyte"
)

// groupContext is the transcript state every member of a group agrees on
// for a given epoch; it feeds both the confirmation tag and (via
// exporter-style derivations not implemented here) the key schedule.
type groupContext struct {
	version                 protocolVersion
	cipherSuite             cipherSuite
	groupID                 GroupID
	epoch                   uint64
	treeHash                []byte
	confirmedTranscriptHash []byte
	extensions              []extension
}

func (ctx *groupContext) unmarshal(s *cryptobyte.String) error {
	*ctx = groupContext{}

	if !s.ReadUint16((*uint16)(&ctx.version)) {
		return io.ErrUnexpectedEOF
	}
	if !oneOf(ctx.version, protocolVersionMLS10) {
		return fmt.Errorf("mls: invalid protocol version %d", ctx.version)
	}

	if !s.ReadUint16((*uint16)(&ctx.cipherSuite)) ||
		!readOpaqueVec(s, (*[]byte)(&ctx.groupID)) ||
		!s.ReadUint64(&ctx.epoch) ||
		!readOpaqueVec(s, &ctx.treeHash) ||
		!readOpaqueVec(s, &ctx.confirmedTranscriptHash) {
		return io.ErrUnexpectedEOF
	}

	exts, err := unmarshalExtensionVec(s)
	if err != nil {
		return err
	}
	ctx.extensions = exts

	return nil
}

func (ctx *groupContext) marshal(b *cryptobyte.Builder) {
	b.AddUint16(uint16(ctx.version))
	b.AddUint16(uint16(ctx.cipherSuite))
	writeOpaqueVec(b, []byte(ctx.groupID))
	b.AddUint64(ctx.epoch)
	writeOpaqueVec(b, ctx.treeHash)
	writeOpaqueVec(b, ctx.confirmedTranscriptHash)
	marshalExtensionVec(b, ctx.extensions)
}

// http://www.iana.org/assignments/mls/mls.xhtml#mls-proposal-types
type proposalType uint16

const (
	proposalTypeAdd                    proposalType = 0x0001
	proposalTypeUpdate                 proposalType = 0x0002
	proposalTypeRemove                 proposalType = 0x0003
	proposalTypePSK                    proposalType = 0x0004
	proposalTypeReinit                 proposalType = 0x0005
	proposalTypeExternalInit           proposalType = 0x0006
	proposalTypeGroupContextExtensions proposalType = 0x0007
)

func (t *proposalType) unmarshal(s *cryptobyte.String) error {
	if !s.ReadUint16((*uint16)(t)) {
		return io.ErrUnexpectedEOF
	}
	if !oneOf(*t, proposalTypeAdd, proposalTypeUpdate, proposalTypeRemove, proposalTypePSK, proposalTypeReinit, proposalTypeExternalInit, proposalTypeGroupContextExtensions) {
		return fmt.Errorf("mls: invalid proposal type %d", *t)
	}
	return nil
}

func (t proposalType) marshal(b *cryptobyte.Builder) {
	b.AddUint16(uint16(t))
}

type proposal struct {
	proposalType           proposalType
	add                    *add                    // for proposalTypeAdd
	update                 *update                 // for proposalTypeUpdate
	remove                 *remove                 // for proposalTypeRemove
	preSharedKey           *preSharedKey           // for proposalTypePSK
	reInit                 *reInit                 // for proposalTypeReinit
	externalInit           *externalInit           // for proposalTypeExternalInit
	groupContextExtensions *groupContextExtensions // for proposalTypeGroupContextExtensions
}

func (prop *proposal) unmarshal(s *cryptobyte.String) error {
	*prop = proposal{}
	if err := prop.proposalType.unmarshal(s); err != nil {
		return err
	}
	switch prop.proposalType {
	case proposalTypeAdd:
		prop.add = new(add)
		return prop.add.unmarshal(s)
	case proposalTypeUpdate:
		prop.update = new(update)
		return prop.update.unmarshal(s)
	case proposalTypeRemove:
		prop.remove = new(remove)
		return prop.remove.unmarshal(s)
	case proposalTypePSK:
		prop.preSharedKey = new(preSharedKey)
		return prop.preSharedKey.unmarshal(s)
	case proposalTypeReinit:
		prop.reInit = new(reInit)
		return prop.reInit.unmarshal(s)
	case proposalTypeExternalInit:
		prop.externalInit = new(externalInit)
		return prop.externalInit.unmarshal(s)
	case proposalTypeGroupContextExtensions:
		prop.groupContextExtensions = new(groupContextExtensions)
		return prop.groupContextExtensions.unmarshal(s)
	default:
		panic("unreachable")
	}
}

func (prop *proposal) marshal(b *cryptobyte.Builder) {
	prop.proposalType.marshal(b)
	switch prop.proposalType {
	case proposalTypeAdd:
		prop.add.keyPackage.marshal(b)
	case proposalTypeUpdate:
		prop.update.leafNode.marshal(b)
	case proposalTypeRemove:
		b.AddUint32(prop.remove.removed)
	case proposalTypePSK:
		prop.preSharedKey.psk.marshal(b)
	case proposalTypeReinit:
		writeOpaqueVec(b, []byte(prop.reInit.groupID))
		b.AddUint16(uint16(prop.reInit.version))
		b.AddUint16(uint16(prop.reInit.cipherSuite))
		marshalExtensionVec(b, prop.reInit.extensions)
	case proposalTypeExternalInit:
		writeOpaqueVec(b, prop.externalInit.kemOutput)
	case proposalTypeGroupContextExtensions:
		marshalExtensionVec(b, prop.groupContextExtensions.extensions)
	}
}

type add struct {
	keyPackage keyPackage
}

func (a *add) unmarshal(s *cryptobyte.String) error {
	*a = add{}
	return a.keyPackage.unmarshal(s)
}

type update struct {
	leafNode leafNode
}

func (upd *update) unmarshal(s *cryptobyte.String) error {
	*upd = update{}
	return upd.leafNode.unmarshal(s)
}

type remove struct {
	removed uint32
}

func (rm *remove) unmarshal(s *cryptobyte.String) error {
	*rm = remove{}
	if !s.ReadUint32(&rm.removed) {
		return io.ErrUnexpectedEOF
	}
	return nil
}

// preSharedKey is the PSK proposal: it names a PreSharedKeyID to be resolved
// and folded into the next epoch's psk_secret chain.
type preSharedKey struct {
	psk PreSharedKeyID
}

func (psk *preSharedKey) unmarshal(s *cryptobyte.String) error {
	*psk = preSharedKey{}
	return psk.psk.unmarshal(s)
}

type reInit struct {
	groupID     GroupID
	version     protocolVersion
	cipherSuite cipherSuite
	extensions  []extension
}

func (ri *reInit) unmarshal(s *cryptobyte.String) error {
	*ri = reInit{}

	if !readOpaqueVec(s, (*[]byte)(&ri.groupID)) || !s.ReadUint16((*uint16)(&ri.version)) || !s.ReadUint16((*uint16)(&ri.cipherSuite)) {
		return io.ErrUnexpectedEOF
	}

	exts, err := unmarshalExtensionVec(s)
	if err != nil {
		return err
	}
	ri.extensions = exts

	return nil
}

type externalInit struct {
	kemOutput []byte
}

func (ei *externalInit) unmarshal(s *cryptobyte.String) error {
	*ei = externalInit{}
	if !readOpaqueVec(s, &ei.kemOutput) {
		return io.ErrUnexpectedEOF
	}
	return nil
}

type groupContextExtensions struct {
	extensions []extension
}

func (exts *groupContextExtensions) unmarshal(s *cryptobyte.String) error {
	*exts = groupContextExtensions{}

	l, err := unmarshalExtensionVec(s)
	if err != nil {
		return err
	}
	exts.extensions = l

	return nil
}

type proposalOrRefType uint8

const (
	proposalOrRefTypeProposal  proposalOrRefType = 1
	proposalOrRefTypeReference proposalOrRefType = 2
)

func (t *proposalOrRefType) unmarshal(s *cryptobyte.String) error {
	if !s.ReadUint8((*uint8)(t)) {
		return io.ErrUnexpectedEOF
	}
	if !oneOf(*t, proposalOrRefTypeProposal, proposalOrRefTypeReference) {
		return fmt.Errorf("mls: invalid proposal or ref type %d", *t)
	}
	return nil
}

func (t proposalOrRefType) marshal(b *cryptobyte.Builder) {
	b.AddUint8(uint8(t))
}

type proposalRef []byte

type proposalOrRef struct {
	typ       proposalOrRefType
	proposal  *proposal   // for proposalOrRefTypeProposal
	reference proposalRef // for proposalOrRefTypeReference
}

func (propOrRef *proposalOrRef) unmarshal(s *cryptobyte.String) error {
	*propOrRef = proposalOrRef{}

	if err := propOrRef.typ.unmarshal(s); err != nil {
		return err
	}

	switch propOrRef.typ {
	case proposalOrRefTypeProposal:
		propOrRef.proposal = new(proposal)
		return propOrRef.proposal.unmarshal(s)
	case proposalOrRefTypeReference:
		if !readOpaqueVec(s, (*[]byte)(&propOrRef.reference)) {
			return io.ErrUnexpectedEOF
		}
		return nil
	default:
		panic("unreachable")
	}
}

func (propOrRef *proposalOrRef) marshal(b *cryptobyte.Builder) {
	propOrRef.typ.marshal(b)
	switch propOrRef.typ {
	case proposalOrRefTypeProposal:
		propOrRef.proposal.marshal(b)
	case proposalOrRefTypeReference:
		writeOpaqueVec(b, []byte(propOrRef.reference))
	}
}

type commit struct {
	proposals []proposalOrRef
	path      *updatePath // optional
}

func (c *commit) unmarshal(s *cryptobyte.String) error {
	*c = commit{}

	err := readVector(s, func(s *cryptobyte.String) error {
		var propOrRef proposalOrRef
		if err := propOrRef.unmarshal(s); err != nil {
			return err
		}
		c.proposals = append(c.proposals, propOrRef)
		return nil
	})
	if err != nil {
		return err
	}

	var hasPath bool
	if !readOptional(s, &hasPath) {
		return io.ErrUnexpectedEOF
	} else if hasPath {
		c.path = new(updatePath)
		if err := c.path.unmarshal(s); err != nil {
			return err
		}
	}

	return nil
}

func (c *commit) marshal(b *cryptobyte.Builder) {
	writeVector(b, len(c.proposals), func(b *cryptobyte.Builder, i int) {
		c.proposals[i].marshal(b)
	})
	writeOptional(b, c.path != nil)
	if c.path != nil {
		c.path.marshal(b)
	}
}

type groupInfo struct {
	groupContext    groupContext
	extensions      []extension
	confirmationTag []byte
	signer          uint32
	signature       []byte
}

func (info *groupInfo) unmarshal(s *cryptobyte.String) error {
	*info = groupInfo{}

	if err := info.groupContext.unmarshal(s); err != nil {
		return err
	}

	exts, err := unmarshalExtensionVec(s)
	if err != nil {
		return err
	}
	info.extensions = exts

	if !readOpaqueVec(s, &info.confirmationTag) || !s.ReadUint32(&info.signer) || !readOpaqueVec(s, &info.signature) {
		return io.ErrUnexpectedEOF
	}

	return nil
}

func (info *groupInfo) marshalTBS(b *cryptobyte.Builder) {
	info.groupContext.marshal(b)
	marshalExtensionVec(b, info.extensions)
	writeOpaqueVec(b, info.confirmationTag)
	b.AddUint32(info.signer)
}

func (info *groupInfo) marshal(b *cryptobyte.Builder) {
	info.marshalTBS(b)
	writeOpaqueVec(b, info.signature)
}

// groupSecrets is the (encrypted) payload of a Welcome entry: the new
// member's joiner secret, an optional path secret for their position in the
// tree, and the list of PSKs the sender folded into this epoch.
type groupSecrets struct {
	joinerSecret JoinerSecret
	pathSecret   []byte // optional
	psks         []PreSharedKeyID
}

func (sec *groupSecrets) unmarshal(s *cryptobyte.String) error {
	*sec = groupSecrets{}

	if !readOpaqueVec(s, (*[]byte)(&sec.joinerSecret)) {
		return io.ErrUnexpectedEOF
	}

	var hasPathSecret bool
	if !readOptional(s, &hasPathSecret) {
		return io.ErrUnexpectedEOF
	} else if hasPathSecret && !readOpaqueVec(s, &sec.pathSecret) {
		return io.ErrUnexpectedEOF
	}

	return readVector(s, func(s *cryptobyte.String) error {
		var psk PreSharedKeyID
		if err := psk.unmarshal(s); err != nil {
			return err
		}
		sec.psks = append(sec.psks, psk)
		return nil
	})
}

type welcome struct {
	cipherSuite        cipherSuite
	secrets            []encryptedGroupSecrets
	encryptedGroupInfo []byte
}

func (w *welcome) unmarshal(s *cryptobyte.String) error {
	*w = welcome{}

	if !s.ReadUint16((*uint16)(&w.cipherSuite)) {
		return io.ErrUnexpectedEOF
	}

	err := readVector(s, func(s *cryptobyte.String) error {
		var sec encryptedGroupSecrets
		if err := sec.unmarshal(s); err != nil {
			return err
		}
		w.secrets = append(w.secrets, sec)
		return nil
	})
	if err != nil {
		return err
	}

	if !readOpaqueVec(s, &w.encryptedGroupInfo) {
		return io.ErrUnexpectedEOF
	}

	return nil
}

func (w *welcome) findSecret(ref keyPackageRef) *encryptedGroupSecrets {
	for i, sec := range w.secrets {
		if sec.newMember.Equal(ref) {
			return &w.secrets[i]
		}
	}
	return nil
}

// resolveEpochSecret is the bridge from a parsed Welcome entry into the key
// schedule: it folds any PSKs the sender listed through the PSK Secret
// Chain, then derives the epoch secret from the result and the entry's
// joiner secret (§4.4, §4.5). Unsealing the encrypted Welcome payload itself
// is left to the caller; this core only owns the derivation once the
// plaintext groupSecrets is in hand.
func (sec *groupSecrets) resolveEpochSecret(cs cipherSuite, external ExternalPskSearch, resumption ResumptionPskSearch) ([]byte, error) {
	secret, err := zeroPsk(cs)
	if err != nil {
		return nil, err
	}
	if len(sec.psks) > 0 {
		secret, err = pskSecret(cs, external, resumption, sec.psks)
		if err != nil {
			return nil, err
		}
	}
	defer zeroize(secret)

	return getEpochSecret(cs, secret, sec.joinerSecret)
}

// find locates the encrypted group secrets addressed to ref, the step a
// recipient takes before unsealing its own Welcome entry.
func (w *welcome) find(ref keyPackageRef) (*encryptedGroupSecrets, error) {
	sec := w.findSecret(ref)
	if sec == nil {
		return nil, fmt.Errorf("mls: encrypted group secrets not found for provided key package ref")
	}
	return sec, nil
}

type encryptedGroupSecrets struct {
	newMember             keyPackageRef
	encryptedGroupSecrets hpkeCiphertext
}

func (sec *encryptedGroupSecrets) unmarshal(s *cryptobyte.String) error {
	*sec = encryptedGroupSecrets{}
	if !readOpaqueVec(s, (*[]byte)(&sec.newMember)) {
		return io.ErrUnexpectedEOF
	}
	if err := sec.encryptedGroupSecrets.unmarshal(s); err != nil {
		return err
	}
	return nil
}
