package doc

import (
	"encoding/json"
	"fmt"
)

// snapshot is the on-disk JSON shape. It is loss-less with respect to the
// document fields: meta, state, features and order round-trip exactly.
type snapshot struct {
	Meta         map[string]any            `json:"meta"`
	State        map[string]any            `json:"state"`
	FeaturesByID map[string]map[string]any `json:"featuresById"`
	FeatureOrder []string                  `json:"featureOrder"`
}

// ExportJSON serializes the current document state.
func (d *Document) ExportJSON() ([]byte, error) {
	snap := snapshot{
		Meta:         d.MetaRecord(),
		State:        d.StateRecord(),
		FeaturesByID: d.FeatureRecords(),
		FeatureOrder: d.FeatureOrder(),
	}
	if snap.Meta == nil {
		snap.Meta = map[string]any{}
	}
	if snap.State == nil {
		snap.State = map[string]any{}
	}
	if snap.FeaturesByID == nil {
		snap.FeaturesByID = map[string]map[string]any{}
	}
	if snap.FeatureOrder == nil {
		snap.FeatureOrder = []string{}
	}
	return json.MarshalIndent(snap, "", "  ")
}

// allowedRoots are the only legal top-level names. Anything else is a schema
// violation.
var allowedRoots = map[string]bool{
	"meta": true, "state": true, "featuresById": true, "featureOrder": true,
}

// ImportJSON loads a snapshot into a fresh replica under one transaction.
func ImportJSON(site string, data []byte) (*Document, error) {
	// Reject unknown top-level siblings before typed decoding.
	var roots map[string]json.RawMessage
	if err := json.Unmarshal(data, &roots); err != nil {
		return nil, fmt.Errorf("parse document: %w", err)
	}
	for name := range roots {
		if !allowedRoots[name] {
			return nil, fmt.Errorf("parse document: unexpected top-level %q", name)
		}
	}

	var snap snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("parse document: %w", err)
	}

	if v, ok := snap.Meta["schemaVersion"].(float64); ok && int(v) > SchemaVersion {
		return nil, fmt.Errorf("document schema version %d is newer than supported %d", int(v), SchemaVersion)
	}

	if len(snap.FeatureOrder) != len(snap.FeaturesByID) {
		return nil, fmt.Errorf("featureOrder length %d does not match featuresById size %d",
			len(snap.FeatureOrder), len(snap.FeaturesByID))
	}
	for _, id := range snap.FeatureOrder {
		if _, ok := snap.FeaturesByID[id]; !ok {
			return nil, fmt.Errorf("featureOrder names unknown feature %q", id)
		}
	}

	d := New(site, nil)
	d.Transact("load", func(tx *Tx) {
		for _, k := range sortedKeys(snap.Meta) {
			tx.SetMeta(k, snap.Meta[k])
		}
		for _, k := range sortedKeys(snap.State) {
			tx.SetState(k, snap.State[k])
		}
		for _, id := range snap.FeatureOrder {
			tx.PutFeature(id, snap.FeaturesByID[id])
		}
	})
	return d, nil
}
