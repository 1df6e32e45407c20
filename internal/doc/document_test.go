package doc

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func docState(d *Document) snapshot {
	return snapshot{
		Meta:         d.MetaRecord(),
		State:        d.StateRecord(),
		FeaturesByID: d.FeatureRecords(),
		FeatureOrder: d.FeatureOrder(),
	}
}

func TestTransact_BatchesAndNotifiesOnce(t *testing.T) {
	d := New("a", nil)

	var fired int
	d.ObserveDeep("", func(c Change) { fired++ })

	d.Transact("user", func(tx *Tx) {
		tx.SetMeta("name", "Widget")
		tx.SetMeta("units", "mm")
		tx.SetState("rebuildGate", "")
	})

	assert.Equal(t, 1, fired, "observers fire once per transaction")
	assert.Equal(t, "Widget", d.Meta("name"))
	assert.Equal(t, "mm", d.Units())
}

func TestObserveDeep_PathFiltering(t *testing.T) {
	d := New("a", nil)
	id := NewFeatureID()

	var metaFired, featFired int
	d.ObserveDeep("meta", func(Change) { metaFired++ })
	unsub := d.ObserveDeep("featuresById/"+id, func(Change) { featFired++ })

	d.Transact("user", func(tx *Tx) { tx.SetMeta("name", "x") })
	assert.Equal(t, 1, metaFired)
	assert.Equal(t, 0, featFired)

	d.Transact("user", func(tx *Tx) {
		tx.PutFeature(id, map[string]any{"id": id, "type": "origin", "name": "Origin",
			"suppressed": false, "visible": true})
	})
	assert.Equal(t, 1, metaFired)
	assert.Equal(t, 1, featFired)

	unsub()
	d.Transact("user", func(tx *Tx) { tx.SetFeatureField(id, "name", "O2") })
	assert.Equal(t, 1, featFired, "unsubscribed observers stay silent")
}

func TestApplyUpdate_Idempotent(t *testing.T) {
	a := New("a", nil)
	b := New("b", nil)

	update := a.Transact("user", func(tx *Tx) { tx.SetMeta("name", "one") })
	require.NotNil(t, update)

	require.NoError(t, b.ApplyUpdate(update))
	require.NoError(t, b.ApplyUpdate(update))
	require.NoError(t, b.ApplyUpdate(update))

	assert.Equal(t, "one", b.Meta("name"))
	assert.Len(t, b.DiffSince(StateVector{}), 1, "duplicate applies do not grow the log")
}

func TestApplyUpdate_RejectsMalformed(t *testing.T) {
	d := New("a", nil)

	testCases := []struct {
		name string
		data []byte
	}{
		{"garbage", []byte("{nope")},
		{"missing site", []byte(`{"seq":1,"ops":[]}`)},
		{"missing seq", []byte(`{"site":"x","ops":[]}`)},
		{"bad op kind", []byte(`{"site":"x","seq":1,"ops":[{"kind":"zap"}]}`)},
		{"set without path", []byte(`{"site":"x","seq":1,"ops":[{"kind":"set"}]}`)},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			err := d.ApplyUpdate(tc.data)
			assert.Error(t, err)
		})
	}
	assert.Empty(t, d.DiffSince(StateVector{}), "rejected updates leave no trace")
}

func TestConvergence_AnyOrder(t *testing.T) {
	a := New("a", nil)
	b := New("b", nil)

	u1 := a.Transact("user", func(tx *Tx) { tx.SetMeta("name", "first") })
	u2 := a.Transact("user", func(tx *Tx) { tx.SetMeta("name", "second") })
	id := NewFeatureID()
	u3 := a.Transact("user", func(tx *Tx) {
		tx.PutFeature(id, map[string]any{"id": id, "type": "origin", "name": "Origin",
			"suppressed": false, "visible": true})
	})

	// Apply out of order; LWW clocks still converge.
	require.NoError(t, b.ApplyUpdate(u3))
	require.NoError(t, b.ApplyUpdate(u1))
	require.NoError(t, b.ApplyUpdate(u2))

	if diff := cmp.Diff(docState(a), docState(b)); diff != "" {
		t.Fatalf("replicas diverged (-a +b):\n%s", diff)
	}
}

func TestConvergence_ConcurrentWrites(t *testing.T) {
	a := New("a", nil)
	b := New("b", nil)

	ua := a.Transact("user", func(tx *Tx) { tx.SetMeta("name", "from-a") })
	ub := b.Transact("user", func(tx *Tx) { tx.SetMeta("name", "from-b") })

	require.NoError(t, a.ApplyUpdate(ub))
	require.NoError(t, b.ApplyUpdate(ua))

	assert.Equal(t, a.Meta("name"), b.Meta("name"), "concurrent writes resolve identically")
}

func TestConcurrentAppends_SameOrderEverywhere(t *testing.T) {
	a := New("a", nil)
	b := New("b", nil)

	idA := NewFeatureID()
	idB := NewFeatureID()
	ua := a.Transact("user", func(tx *Tx) {
		tx.PutFeature(idA, map[string]any{"id": idA, "type": "origin", "name": "A",
			"suppressed": false, "visible": true})
	})
	ub := b.Transact("user", func(tx *Tx) {
		tx.PutFeature(idB, map[string]any{"id": idB, "type": "origin", "name": "B",
			"suppressed": false, "visible": true})
	})

	require.NoError(t, a.ApplyUpdate(ub))
	require.NoError(t, b.ApplyUpdate(ua))

	assert.Equal(t, a.FeatureOrder(), b.FeatureOrder())
}

func TestStateVectorDiff_LateJoin(t *testing.T) {
	a := New("a", nil)
	a.Transact("user", func(tx *Tx) { tx.SetMeta("name", "doc") })
	id := NewFeatureID()
	a.Transact("user", func(tx *Tx) {
		tx.PutFeature(id, map[string]any{"id": id, "type": "origin", "name": "Origin",
			"suppressed": false, "visible": true})
	})

	// Late joiner announces what it has; a single delta patches it up.
	b := New("b", nil)
	for _, u := range a.DiffSince(b.StateVector()) {
		require.NoError(t, b.ApplyUpdate(u))
	}

	if diff := cmp.Diff(docState(a), docState(b)); diff != "" {
		t.Fatalf("late join diverged:\n%s", diff)
	}
	assert.Empty(t, a.DiffSince(b.StateVector()), "caught-up replica needs nothing")
}

func TestRemoveFeature_ClearsGate(t *testing.T) {
	d, ids := NewStandard("a", nil)
	sketch := NewFeatureID()
	d.Transact("user", func(tx *Tx) {
		tx.PutFeature(sketch, map[string]any{"id": sketch, "type": "origin", "name": "S",
			"suppressed": false, "visible": true})
		tx.SetRebuildGate(sketch)
	})
	require.Equal(t, sketch, d.RebuildGate())

	d.Transact("user", func(tx *Tx) { tx.RemoveFeature(sketch) })

	assert.Equal(t, "", d.RebuildGate())
	assert.Nil(t, d.FeatureRecord(sketch))
	assert.Equal(t, ids[:], d.FeatureOrder())
}

func TestNewStandard_CanonicalPrefix(t *testing.T) {
	d, ids := NewStandard("a", nil)

	order := d.FeatureOrder()
	require.Len(t, order, 4)
	assert.Equal(t, ids[:], order)
	assert.Equal(t, "origin", d.FeatureRecord(order[0])["type"])
	for i, role := range []string{"xy", "xz", "yz"} {
		rec := d.FeatureRecord(order[i+1])
		assert.Equal(t, "plane", rec["type"])
		assert.Equal(t, role, rec["role"])
	}
}
