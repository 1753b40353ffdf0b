package ot

import (
	"encoding/json"
)

/*
LEARNING: OPERATION REPLAY

An operation is a single edit against a text buffer:

  {"kind": "insert", "position": 3, "text": "abc"}
  {"kind": "delete", "position": 0, "length": 2}

Positions and lengths count characters (runes), not bytes, so multi-byte
text behaves the way an editor user expects.

The default sync protocol sends whole-buffer snapshots (last write wins).
Operations are the building block for replaying edits on top of the server's
copy instead of overwriting it.
*/

// Kind identifies the type of an operation
type Kind string

const (
	KindInsert Kind = "insert"
	KindDelete Kind = "delete"
)

// Operation is a single insert or delete instruction
type Operation struct {
	Kind     Kind   `json:"kind"`
	Position int    `json:"position"`
	Text     string `json:"text,omitempty"`
	Length   int    `json:"length,omitempty"`
}

// Insert builds an insert operation
func Insert(position int, text string) Operation {
	return Operation{Kind: KindInsert, Position: position, Text: text}
}

// Delete builds a delete operation
func Delete(position, length int) Operation {
	return Operation{Kind: KindDelete, Position: position, Length: length}
}

// Valid reports whether the operation can be applied.
// Unknown kinds and negative positions or lengths are invalid.
func (op Operation) Valid() bool {
	if op.Position < 0 {
		return false
	}
	switch op.Kind {
	case KindInsert:
		return true
	case KindDelete:
		return op.Length >= 0
	default:
		return false
	}
}

// wireOperation mirrors Operation with pointer fields so missing and
// mistyped fields can be told apart from zero values.
type wireOperation struct {
	Kind     *string `json:"kind"`
	Type     *string `json:"type"` // older clients send "type"
	Position *int    `json:"position"`
	Text     *string `json:"text"`
	Length   *int    `json:"length"`
}

// Decode parses a JSON array of operations.
// Elements that fail to decode, miss a required field or carry an unknown
// kind are dropped one by one; the rest of the batch is kept in order.
// Anything other than an array yields no operations.
func Decode(data []byte) []Operation {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil
	}

	ops := make([]Operation, 0, len(raw))
	for _, elem := range raw {
		op, ok := decodeOne(elem)
		if !ok {
			continue
		}
		ops = append(ops, op)
	}
	return ops
}

func decodeOne(elem json.RawMessage) (Operation, bool) {
	var w wireOperation
	if err := json.Unmarshal(elem, &w); err != nil {
		return Operation{}, false
	}

	kind := w.Kind
	if kind == nil {
		kind = w.Type
	}
	if kind == nil || w.Position == nil {
		return Operation{}, false
	}

	var op Operation
	switch Kind(*kind) {
	case KindInsert:
		if w.Text == nil {
			return Operation{}, false
		}
		op = Insert(*w.Position, *w.Text)
	case KindDelete:
		if w.Length == nil {
			return Operation{}, false
		}
		op = Delete(*w.Position, *w.Length)
	default:
		return Operation{}, false
	}

	return op, op.Valid()
}
