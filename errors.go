package mls

import "fmt"

// PskSecretError is returned by pskSecret and getEpochSecret.
type PskSecretError struct {
	kind    string
	id      ExternalPskId
	epoch   uint64
	n       int
	wrapped error
}

func (e *PskSecretError) Error() string {
	switch e.kind {
	case "too-many-psk-ids":
		return fmt.Sprintf("mls: too many PSK ids (%d) to compute PSK secret", e.n)
	case "no-psk-for-id":
		return fmt.Sprintf("mls: no PSK for id %x", []byte(e.id))
	case "epoch-not-found":
		return fmt.Sprintf("mls: epoch %d not found", e.epoch)
	case "secret-store-error":
		return fmt.Sprintf("mls: external PSK store error: %v", e.wrapped)
	case "epoch-repository-error":
		return fmt.Sprintf("mls: resumption epoch repository error: %v", e.wrapped)
	case "kdf-error":
		return fmt.Sprintf("mls: KDF failure: %v", e.wrapped)
	case "serialization-error":
		return fmt.Sprintf("mls: serialization failure: %v", e.wrapped)
	default:
		return "mls: psk secret error"
	}
}

func (e *PskSecretError) Unwrap() error { return e.wrapped }

func errTooManyPskIds(n int) error {
	return &PskSecretError{kind: "too-many-psk-ids", n: n}
}

func errNoPskForId(id ExternalPskId) error {
	return &PskSecretError{kind: "no-psk-for-id", id: id}
}

func errEpochNotFound(epoch uint64) error {
	return &PskSecretError{kind: "epoch-not-found", epoch: epoch}
}

func errSecretStoreError(wrapped error) error {
	return &PskSecretError{kind: "secret-store-error", wrapped: wrapped}
}

func errEpochRepositoryError(wrapped error) error {
	return &PskSecretError{kind: "epoch-repository-error", wrapped: wrapped}
}

func errKdfFailure(wrapped error) error {
	return &PskSecretError{kind: "kdf-error", wrapped: wrapped}
}

func errSerialization(wrapped error) error {
	return &PskSecretError{kind: "serialization-error", wrapped: wrapped}
}

// IsNoPskForId reports whether err is a "no PSK for id" error and, if so,
// returns the unresolved id.
func IsNoPskForId(err error) (ExternalPskId, bool) {
	var pe *PskSecretError
	if e, ok := err.(*PskSecretError); ok {
		pe = e
	} else {
		return nil, false
	}
	if pe.kind != "no-psk-for-id" {
		return nil, false
	}
	return pe.id, true
}

// IsEpochNotFound reports whether err is an "epoch not found" error and, if
// so, returns the missing epoch.
func IsEpochNotFound(err error) (uint64, bool) {
	pe, ok := err.(*PskSecretError)
	if !ok || pe.kind != "epoch-not-found" {
		return 0, false
	}
	return pe.epoch, true
}

// RatchetTreeError is returned by the ratchet tree's parent-hash operations
// and by tree-math index computations.
type RatchetTreeError struct {
	kind   string
	reason string
}

func (e *RatchetTreeError) Error() string {
	switch e.kind {
	case "parent-hash-not-found":
		return "mls: parent hash extension not found in update path leaf key package"
	case "parent-hash-mismatch":
		return "mls: computed parent hash does not match received parent hash"
	case "invalid-parent-hash":
		return fmt.Sprintf("mls: invalid parent hash: %s", e.reason)
	case "tree-math-error":
		return fmt.Sprintf("mls: tree math error: %s", e.reason)
	default:
		return "mls: ratchet tree error"
	}
}

var errParentHashNotFound = &RatchetTreeError{kind: "parent-hash-not-found"}
var errParentHashMismatch = &RatchetTreeError{kind: "parent-hash-mismatch"}

func errInvalidParentHash(reason string) error {
	return &RatchetTreeError{kind: "invalid-parent-hash", reason: reason}
}

func errTreeMath(reason string) error {
	return &RatchetTreeError{kind: "tree-math-error", reason: reason}
}

// IsParentHashNotFound reports whether err is the "no parent hash extension" error.
func IsParentHashNotFound(err error) bool {
	e, ok := err.(*RatchetTreeError)
	return ok && e.kind == "parent-hash-not-found"
}

// IsParentHashMismatch reports whether err is the "parent hash mismatch" error.
func IsParentHashMismatch(err error) bool {
	e, ok := err.(*RatchetTreeError)
	return ok && e.kind == "parent-hash-mismatch"
}

// IsInvalidParentHash reports whether err is an "invalid parent hash"
// validation failure and, if so, returns the sub-reason ("blank leaf" or
// "no match found").
func IsInvalidParentHash(err error) (string, bool) {
	e, ok := err.(*RatchetTreeError)
	if !ok || e.kind != "invalid-parent-hash" {
		return "", false
	}
	return e.reason, true
}
