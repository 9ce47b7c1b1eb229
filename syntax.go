package mls

import (
	"fmt"
	"io"

	"golang.org/x/crypto/cryptobyte"
)

// This file holds the TLS-presentation-language helpers the rest of the
// package builds its wire structs on top of, in the style of
// golang.org/x/crypto/cryptobyte. opaque<V> vectors are encoded here with a
// 32-bit length prefix uniformly: the core never claims byte-for-byte
// interop with RFC 9420's wire format (that codec is an external
// collaborator, see SPEC_FULL.md §6), only a canonical, deterministic
// encoding of its own structs for domain separation and round-tripping.

type marshaler interface {
	marshal(b *cryptobyte.Builder)
}

type unmarshaler interface {
	unmarshal(s *cryptobyte.String) error
}

func marshal(v marshaler) ([]byte, error) {
	var b cryptobyte.Builder
	v.marshal(&b)
	return b.Bytes()
}

func unmarshal(data []byte, v unmarshaler) error {
	s := cryptobyte.String(data)
	if err := v.unmarshal(&s); err != nil {
		return err
	}
	if !s.Empty() {
		return fmt.Errorf("mls: trailing garbage after unmarshal")
	}
	return nil
}

func writeOpaqueVec(b *cryptobyte.Builder, data []byte) {
	b.AddUint32LengthPrefixed(func(b *cryptobyte.Builder) {
		b.AddBytes(data)
	})
}

// readUint32LengthPrefixed reads a 32-bit length prefix followed by that many
// bytes into out. cryptobyte.String only ships Read{Uint8,Uint16,Uint24}
// LengthPrefixed (Builder's AddUint32LengthPrefixed has no String-side
// counterpart), so the 32-bit case is read by hand: a ReadUint32 for the
// length, then a ReadBytes of that length.
func readUint32LengthPrefixed(s *cryptobyte.String, out *cryptobyte.String) bool {
	var length uint32
	if !s.ReadUint32(&length) {
		return false
	}
	return s.ReadBytes((*[]byte)(out), int(length))
}

func readOpaqueVec(s *cryptobyte.String, out *[]byte) bool {
	var v cryptobyte.String
	if !readUint32LengthPrefixed(s, &v) {
		return false
	}
	*out = []byte(v)
	return true
}

func readVector(s *cryptobyte.String, each func(s *cryptobyte.String) error) error {
	var v cryptobyte.String
	if !readUint32LengthPrefixed(s, &v) {
		return io.ErrUnexpectedEOF
	}
	for !v.Empty() {
		if err := each(&v); err != nil {
			return err
		}
	}
	return nil
}

func writeVector(b *cryptobyte.Builder, n int, each func(b *cryptobyte.Builder, i int)) {
	b.AddUint32LengthPrefixed(func(b *cryptobyte.Builder) {
		for i := 0; i < n; i++ {
			each(b, i)
		}
	})
}

// readOptional reads the single byte MLS uses to flag an `optional<T>`
// field (0 = absent, 1 = present).
func readOptional(s *cryptobyte.String, present *bool) bool {
	var flag uint8
	if !s.ReadUint8(&flag) {
		return false
	}
	switch flag {
	case 0:
		*present = false
	case 1:
		*present = true
	default:
		return false
	}
	return true
}

func writeOptional(b *cryptobyte.Builder, present bool) {
	if present {
		b.AddUint8(1)
	} else {
		b.AddUint8(0)
	}
}

// oneOf reports whether v equals one of allowed. The small fixed-range wire
// enums (pskType, resumptionPSKUsage, proposalType, proposalOrRefType) all
// reject unknown values the same way: read the tag, then check it against
// its closed set rather than hand-rolling a switch per type.
func oneOf[T comparable](v T, allowed ...T) bool {
	for _, a := range allowed {
		if v == a {
			return true
		}
	}
	return false
}
