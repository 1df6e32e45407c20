// Package doc implements the shared feature document: a replicated tree of
// last-writer-wins registers plus a replicated feature order, with atomic
// transactions, deep observation and an idempotent update protocol. Two
// replicas fed the same updates in any order converge to the same state.
package doc

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// SchemaVersion gates loader compatibility.
const SchemaVersion = 1

// Well-known paths inside the tree.
const (
	pathMeta     = "meta"
	pathState    = "state"
	pathFeatures = "featuresById"
	// PathFeatureOrder is the logical path order mutations are reported
	// under, for observers.
	PathFeatureOrder = "featureOrder"
	pathRebuildGate  = "state/rebuildGate"
)

// Change describes one committed transaction to observers.
type Change struct {
	// Paths are the leaf (or order) paths the transaction touched.
	Paths []string
	// Origin is the transaction tag ("user", "solver", "remote", ...).
	Origin string
	// Local is false when the change arrived via ApplyUpdate.
	Local bool
}

type observer struct {
	id   int
	path string
	cb   func(Change)
}

// Document is one replica of the shared feature tree.
type Document struct {
	mu      sync.RWMutex
	site    string
	seq     uint64
	lamport uint64

	leaves map[string]*leaf
	order  *orderList

	seen map[string]struct{}
	log  []*Update

	observers []observer
	nextObsID int

	logger *zap.Logger
}

// New creates an empty replica. The site id must be unique per replica; an
// empty site gets a fresh UUID.
func New(site string, logger *zap.Logger) *Document {
	if site == "" {
		site = uuid.NewString()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Document{
		site:   site,
		leaves: make(map[string]*leaf),
		order:  newOrderList(),
		seen:   make(map[string]struct{}),
		logger: logger,
	}
}

// NewFeatureID mints a fresh feature id. Ids never move, rename or recycle.
func NewFeatureID() string { return uuid.NewString() }

// Site returns this replica's site id.
func (d *Document) Site() string { return d.site }

// NewStandard creates a replica seeded with the origin and the three default
// datum planes, in the canonical order. Returns the document and the four ids
// (origin, xy, xz, yz).
func NewStandard(site string, logger *zap.Logger) (*Document, [4]string) {
	d := New(site, logger)
	var ids [4]string
	now := time.Now().UTC().Format(time.RFC3339)
	d.Transact("init", func(tx *Tx) {
		tx.SetMeta("schemaVersion", float64(SchemaVersion))
		tx.SetMeta("name", "Untitled")
		tx.SetMeta("units", "mm")
		tx.SetMeta("createdAt", now)
		tx.SetMeta("modifiedAt", now)
		tx.SetRebuildGate("")

		ids[0] = NewFeatureID()
		tx.PutFeature(ids[0], map[string]any{
			"id": ids[0], "type": "origin", "name": "Origin",
			"suppressed": false, "visible": true,
		})
		roles := []struct{ role, name string }{
			{"xy", "XY Plane"}, {"xz", "XZ Plane"}, {"yz", "YZ Plane"},
		}
		for i, r := range roles {
			id := NewFeatureID()
			ids[i+1] = id
			tx.PutFeature(id, map[string]any{
				"id": id, "type": "plane", "name": r.name,
				"suppressed": false, "visible": true,
				"role":       r.role,
				"definition": map[string]any{"kind": "datum"},
			})
		}
	})
	return d, ids
}

// Tx is the mutation surface inside a transaction. Ops apply immediately to
// this replica and are batched into one update at commit.
type Tx struct {
	d      *Document
	origin string
	ops    []Op
	paths  []string
}

// Transact batches all mutations performed inside fn into one atomic update.
// Observers fire once per transaction, after commit.
func (d *Document) Transact(origin string, fn func(*Tx)) []byte {
	d.mu.Lock()
	tx := &Tx{d: d, origin: origin}
	fn(tx)
	if len(tx.ops) == 0 {
		d.mu.Unlock()
		return nil
	}
	d.seq++
	u := &Update{Site: d.site, Seq: d.seq, Origin: origin, Ops: tx.ops}
	d.log = append(d.log, u)
	d.seen[updateKey(u.Site, u.Seq)] = struct{}{}
	change := Change{Paths: tx.paths, Origin: origin, Local: true}
	obs := d.matchObservers(change.Paths)
	d.mu.Unlock()

	d.logger.Debug("transaction committed",
		zap.String("origin", origin), zap.Int("ops", len(u.Ops)))

	for _, cb := range obs {
		cb(change)
	}

	data, err := EncodeUpdate(u)
	if err != nil {
		// Updates are plain data; this cannot fail for values we accept.
		d.logger.Error("encode update", zap.Error(err))
		return nil
	}
	return data
}

func (tx *Tx) nextLamport() uint64 {
	tx.d.lamport++
	return tx.d.lamport
}

func (tx *Tx) set(path string, value any) {
	op := Op{Kind: OpSet, Path: path, Value: value, Lamport: tx.nextLamport()}
	tx.d.applyOp(op, tx.d.site)
	tx.ops = append(tx.ops, op)
	tx.paths = append(tx.paths, path)
}

func (tx *Tx) del(path string) {
	op := Op{Kind: OpDel, Path: path, Lamport: tx.nextLamport()}
	tx.d.applyOp(op, tx.d.site)
	tx.ops = append(tx.ops, op)
	tx.paths = append(tx.paths, path)
}

// SetMeta writes a meta scalar (schema version, name, timestamps, units).
func (tx *Tx) SetMeta(key string, value any) {
	tx.set(pathMeta+"/"+key, value)
}

// SetState writes a state scalar.
func (tx *Tx) SetState(key string, value any) {
	tx.set(pathState+"/"+key, value)
}

// SetRebuildGate moves the rebuild gate; empty means no gate.
func (tx *Tx) SetRebuildGate(featureID string) {
	tx.set(pathRebuildGate, featureID)
}

// PutFeature writes a whole feature record and appends it to the feature
// order. The record must carry its own "id".
func (tx *Tx) PutFeature(id string, record map[string]any) {
	flattenValue(pathFeatures+"/"+id, record, func(path string, value any) {
		tx.set(path, value)
	})
	if tx.d.order.elemFor(id) == "" {
		lam := tx.nextLamport()
		op := Op{
			Kind:    OpInsert,
			Elem:    elemID(lam, tx.d.site),
			After:   tx.d.order.lastID(),
			Feature: id,
			Lamport: lam,
		}
		tx.d.applyOp(op, tx.d.site)
		tx.ops = append(tx.ops, op)
		tx.paths = append(tx.paths, PathFeatureOrder)
	}
}

// SetFeatureField writes one field (slash-separated path) of a feature.
func (tx *Tx) SetFeatureField(id, field string, value any) {
	flattenValue(pathFeatures+"/"+id+"/"+field, value, func(path string, v any) {
		tx.set(path, v)
	})
}

// DeleteFeatureField tombstones one field subtree of a feature.
func (tx *Tx) DeleteFeatureField(id, field string) {
	for _, p := range tx.d.leafPathsUnder(pathFeatures + "/" + id + "/" + field) {
		tx.del(p)
	}
}

// SetSketchPoint writes a solved point position back into a sketch.
func (tx *Tx) SetSketchPoint(sketchID, pointID string, x, y float64) {
	base := pathFeatures + "/" + sketchID + "/data/pointsById/" + pointID
	tx.set(base+"/x", x)
	tx.set(base+"/y", y)
}

// RemoveFeature deletes a feature from both mappings and clears the rebuild
// gate if it pointed at the deleted id.
func (tx *Tx) RemoveFeature(id string) {
	for _, p := range tx.d.leafPathsUnder(pathFeatures + "/" + id) {
		tx.del(p)
	}
	if elem := tx.d.order.elemFor(id); elem != "" {
		op := Op{Kind: OpRemove, Elem: elem, Lamport: tx.nextLamport()}
		tx.d.applyOp(op, tx.d.site)
		tx.ops = append(tx.ops, op)
		tx.paths = append(tx.paths, PathFeatureOrder)
	}
	if gate, _ := tx.d.leafValue(pathRebuildGate).(string); gate == id {
		tx.SetRebuildGate("")
	}
}

// applyOp merges one op into local state. Caller holds the write lock.
func (d *Document) applyOp(op Op, site string) {
	if op.Lamport > d.lamport {
		d.lamport = op.Lamport
	}
	switch op.Kind {
	case OpSet, OpDel:
		lf, ok := d.leaves[op.Path]
		if !ok {
			d.leaves[op.Path] = &leaf{
				value: op.Value, lamport: op.Lamport, site: site,
				deleted: op.Kind == OpDel,
			}
			return
		}
		if lf.wins(op.Lamport, site) {
			lf.value = op.Value
			lf.lamport = op.Lamport
			lf.site = site
			lf.deleted = op.Kind == OpDel
		}
	case OpInsert:
		d.order.insert(op.Elem, op.After, op.Feature)
	case OpRemove:
		d.order.remove(op.Elem)
	}
}

func updateKey(site string, seq uint64) string {
	return fmt.Sprintf("%s:%d", site, seq)
}

// ApplyUpdate merges a remote update. Applying the same update twice is a
// no-op; malformed bytes are rejected whole.
func (d *Document) ApplyUpdate(data []byte) error {
	u, err := DecodeUpdate(data)
	if err != nil {
		return err
	}

	d.mu.Lock()
	key := updateKey(u.Site, u.Seq)
	if _, dup := d.seen[key]; dup {
		d.mu.Unlock()
		return nil
	}
	for _, op := range u.Ops {
		d.applyOp(op, u.Site)
	}
	d.seen[key] = struct{}{}
	d.log = append(d.log, u)

	paths := make([]string, 0, len(u.Ops))
	for _, op := range u.Ops {
		if op.Kind == OpInsert || op.Kind == OpRemove {
			paths = append(paths, PathFeatureOrder)
		} else {
			paths = append(paths, op.Path)
		}
	}
	change := Change{Paths: paths, Origin: u.Origin, Local: false}
	obs := d.matchObservers(paths)
	d.mu.Unlock()

	for _, cb := range obs {
		cb(change)
	}
	return nil
}

// StateVector summarizes which updates this replica has seen.
func (d *Document) StateVector() StateVector {
	d.mu.RLock()
	defer d.mu.RUnlock()
	sv := StateVector{}
	for _, u := range d.log {
		if u.Seq > sv[u.Site] {
			sv[u.Site] = u.Seq
		}
	}
	return sv
}

// DiffSince returns the encoded updates the given replica is missing, in this
// replica's arrival order. A late-joining mirror patches up with one pass.
func (d *Document) DiffSince(sv StateVector) [][]byte {
	d.mu.RLock()
	defer d.mu.RUnlock()
	var out [][]byte
	for _, u := range d.log {
		if u.Seq > sv[u.Site] {
			if data, err := EncodeUpdate(u); err == nil {
				out = append(out, data)
			}
		}
	}
	return out
}

// ObserveDeep registers a callback fired after every transaction that touches
// path or any descendant. Empty path observes everything. Returns an
// unsubscribe func.
func (d *Document) ObserveDeep(path string, cb func(Change)) func() {
	d.mu.Lock()
	d.nextObsID++
	id := d.nextObsID
	d.observers = append(d.observers, observer{id: id, path: path, cb: cb})
	d.mu.Unlock()
	return func() {
		d.mu.Lock()
		defer d.mu.Unlock()
		for i := range d.observers {
			if d.observers[i].id == id {
				d.observers = append(d.observers[:i], d.observers[i+1:]...)
				break
			}
		}
	}
}

// matchObservers collects callbacks whose path is touched. Caller holds a
// lock; callbacks are invoked after release.
func (d *Document) matchObservers(paths []string) []func(Change) {
	var out []func(Change)
	for _, o := range d.observers {
		for _, p := range paths {
			if pathTouches(o.path, p) {
				out = append(out, o.cb)
				break
			}
		}
	}
	return out
}

func (d *Document) leafValue(path string) any {
	lf, ok := d.leaves[path]
	if !ok || lf.deleted {
		return nil
	}
	return lf.value
}

// Meta returns one meta scalar, or nil.
func (d *Document) Meta(key string) any {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.leafValue(pathMeta + "/" + key)
}

// Units returns the document unit, defaulting to mm.
func (d *Document) Units() string {
	if u, ok := d.Meta("units").(string); ok && u != "" {
		return u
	}
	return "mm"
}

// RebuildGate returns the gate feature id, or "" when unset.
func (d *Document) RebuildGate() string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	gate, _ := d.leafValue(pathRebuildGate).(string)
	return gate
}

// FeatureOrder returns the ordered live feature ids.
func (d *Document) FeatureOrder() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.order.values()
}

// HasFeature reports whether a live feature record exists.
func (d *Document) HasFeature(id string) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.order.has(d.order.elemFor(id))
}

// FeatureRecord materializes the raw record for a feature, or nil.
func (d *Document) FeatureRecord(id string) map[string]any {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.materialize(pathFeatures + "/" + id)
}

// FeatureRecords materializes every live feature keyed by id.
func (d *Document) FeatureRecords() map[string]map[string]any {
	order := d.FeatureOrder()
	out := make(map[string]map[string]any, len(order))
	d.mu.RLock()
	defer d.mu.RUnlock()
	for _, id := range order {
		if rec := d.materialize(pathFeatures + "/" + id); rec != nil {
			out[id] = rec
		}
	}
	return out
}

// MetaRecord materializes the meta mapping.
func (d *Document) MetaRecord() map[string]any {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.materialize(pathMeta)
}

// StateRecord materializes the state mapping.
func (d *Document) StateRecord() map[string]any {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.materialize(pathState)
}

// sortedKeys is a small helper for deterministic map walks.
func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
