package doc

import (
	"encoding/json"
	"fmt"
	"strings"
)

// OpKind discriminates the operations an update can carry.
type OpKind string

const (
	// OpSet writes a leaf register.
	OpSet OpKind = "set"
	// OpDel tombstones a leaf register.
	OpDel OpKind = "del"
	// OpInsert inserts a featureOrder element after a predecessor.
	OpInsert OpKind = "ins"
	// OpRemove tombstones a featureOrder element.
	OpRemove OpKind = "rm"
)

// Op is one primitive mutation. Leaf ops carry Path/Value; order ops carry
// Elem/After/Feature. Every op carries the Lamport stamp that decides
// last-writer-wins conflicts together with the site id of its update.
type Op struct {
	Kind    OpKind `json:"kind"`
	Path    string `json:"path,omitempty"`
	Value   any    `json:"value,omitempty"`
	Elem    string `json:"elem,omitempty"`
	After   string `json:"after,omitempty"`
	Feature string `json:"feature,omitempty"`
	Lamport uint64 `json:"lamport"`
}

// Update is one atomic transaction's worth of ops. (Site, Seq) identifies it;
// applying the same update twice is a no-op.
type Update struct {
	Site   string `json:"site"`
	Seq    uint64 `json:"seq"`
	Origin string `json:"origin,omitempty"`
	Ops    []Op   `json:"ops"`
}

// EncodeUpdate serializes an update for the wire.
func EncodeUpdate(u *Update) ([]byte, error) {
	return json.Marshal(u)
}

// DecodeUpdate parses and validates wire bytes. Malformed updates are
// rejected whole; no partial application ever happens.
func DecodeUpdate(data []byte) (*Update, error) {
	var u Update
	if err := json.Unmarshal(data, &u); err != nil {
		return nil, fmt.Errorf("malformed update: %w", err)
	}
	if u.Site == "" {
		return nil, fmt.Errorf("malformed update: missing site")
	}
	if u.Seq == 0 {
		return nil, fmt.Errorf("malformed update: missing seq")
	}
	for i := range u.Ops {
		op := &u.Ops[i]
		switch op.Kind {
		case OpSet, OpDel:
			if op.Path == "" {
				return nil, fmt.Errorf("malformed update: op %d: missing path", i)
			}
			if strings.HasPrefix(op.Path, "/") {
				return nil, fmt.Errorf("malformed update: op %d: absolute path", i)
			}
		case OpInsert:
			if op.Elem == "" || op.Feature == "" {
				return nil, fmt.Errorf("malformed update: op %d: incomplete insert", i)
			}
		case OpRemove:
			if op.Elem == "" {
				return nil, fmt.Errorf("malformed update: op %d: incomplete remove", i)
			}
		default:
			return nil, fmt.Errorf("malformed update: op %d: unknown kind %q", i, op.Kind)
		}
	}
	return &u, nil
}

// StateVector summarizes which updates a replica has seen, per site.
type StateVector map[string]uint64

// EncodeStateVector serializes a state vector for the connect handshake.
func EncodeStateVector(sv StateVector) ([]byte, error) {
	return json.Marshal(sv)
}

// DecodeStateVector parses a state vector.
func DecodeStateVector(data []byte) (StateVector, error) {
	var sv StateVector
	if err := json.Unmarshal(data, &sv); err != nil {
		return nil, fmt.Errorf("malformed state vector: %w", err)
	}
	if sv == nil {
		sv = StateVector{}
	}
	return sv, nil
}
