package mls

import (
	"io"

	"golang.org/x/crypto/cryptobyte"
)

// extensionType is the wire identifier for a GREASE-extensible extension
// slot, per the IANA MLS Extension Types registry.
type extensionType uint16

const (
	extensionTypeParentHash extensionType = 0x0003
)

// extension is a single (type, opaque data) pair, as carried in leaf nodes,
// key packages, and group contexts.
type extension struct {
	extensionType extensionType
	extensionData []byte
}

func (ext *extension) unmarshal(s *cryptobyte.String) error {
	*ext = extension{}
	if !s.ReadUint16((*uint16)(&ext.extensionType)) || !readOpaqueVec(s, &ext.extensionData) {
		return io.ErrUnexpectedEOF
	}
	return nil
}

func (ext *extension) marshal(b *cryptobyte.Builder) {
	b.AddUint16(uint16(ext.extensionType))
	writeOpaqueVec(b, ext.extensionData)
}

func unmarshalExtensionVec(s *cryptobyte.String) ([]extension, error) {
	var exts []extension
	err := readVector(s, func(s *cryptobyte.String) error {
		var ext extension
		if err := ext.unmarshal(s); err != nil {
			return err
		}
		exts = append(exts, ext)
		return nil
	})
	return exts, err
}

func marshalExtensionVec(b *cryptobyte.Builder, exts []extension) {
	writeVector(b, len(exts), func(b *cryptobyte.Builder, i int) {
		exts[i].marshal(b)
	})
}

// extensionList is the set of extensions attached to a leaf node or key
// package, with typed accessors layered over the generic (type, data) pairs.
type extensionList []extension

// parentHashExtension is the typed payload of a parent_hash extension.
type parentHashExtension struct {
	parentHash ParentHash
}

func (ext *parentHashExtension) unmarshal(s *cryptobyte.String) error {
	*ext = parentHashExtension{}
	if !readOpaqueVec(s, (*[]byte)(&ext.parentHash)) {
		return io.ErrUnexpectedEOF
	}
	return nil
}

func (ext *parentHashExtension) marshal(b *cryptobyte.Builder) {
	writeOpaqueVec(b, []byte(ext.parentHash))
}

// getParentHash returns the parent hash carried by the parent_hash
// extension, or nil if no such extension is present.
func (exts extensionList) getParentHash() *ParentHash {
	for _, ext := range exts {
		if ext.extensionType != extensionTypeParentHash {
			continue
		}
		var payload parentHashExtension
		if err := unmarshal(ext.extensionData, &payload); err != nil {
			return nil
		}
		return &payload.parentHash
	}
	return nil
}

// setParentHash replaces (or adds) the parent_hash extension.
func (exts *extensionList) setParentHash(h ParentHash) error {
	raw, err := marshal(&parentHashExtension{parentHash: h})
	if err != nil {
		return err
	}

	for i := range *exts {
		if (*exts)[i].extensionType == extensionTypeParentHash {
			(*exts)[i].extensionData = raw
			return nil
		}
	}
	*exts = append(*exts, extension{extensionType: extensionTypeParentHash, extensionData: raw})
	return nil
}
