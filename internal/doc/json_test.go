package doc

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJSONRoundTrip(t *testing.T) {
	a, ids := NewStandard("a", nil)
	sketch := NewFeatureID()
	a.Transact("user", func(tx *Tx) {
		tx.SetMeta("name", "bracket")
		tx.PutFeature(sketch, map[string]any{
			"id": sketch, "type": "sketch", "name": "Sketch 1",
			"suppressed": false, "visible": true,
			"plane": map[string]any{"kind": "planeFeatureId", "ref": ids[1]},
			"data": map[string]any{
				"pointsById": map[string]any{
					"p1": map[string]any{"x": 0.0, "y": 0.0},
					"p2": map[string]any{"x": 10.0, "y": 0.0},
				},
				"entitiesById": map[string]any{
					"e1": map[string]any{"kind": "line", "start": "p1", "end": "p2"},
				},
				"constraintsById": map[string]any{},
			},
		})
	})

	data, err := a.ExportJSON()
	require.NoError(t, err)

	b, err := ImportJSON("b", data)
	require.NoError(t, err)

	if diff := cmp.Diff(docState(a), docState(b)); diff != "" {
		t.Fatalf("round trip diverged:\n%s", diff)
	}

	// Export of the re-import is byte-identical: maps serialize sorted.
	data2, err := b.ExportJSON()
	require.NoError(t, err)
	assert.Equal(t, string(data), string(data2))
}

func TestImportJSON_RejectsSiblingRoot(t *testing.T) {
	_, err := ImportJSON("x", []byte(`{"meta":{},"state":{},"featuresById":{},"featureOrder":[],"extra":{}}`))
	assert.ErrorContains(t, err, "unexpected top-level")
}

func TestImportJSON_RejectsOrderMismatch(t *testing.T) {
	_, err := ImportJSON("x", []byte(`{"meta":{},"state":{},"featuresById":{},"featureOrder":["missing"]}`))
	assert.Error(t, err)
}

func TestImportJSON_RejectsNewerSchema(t *testing.T) {
	_, err := ImportJSON("x", []byte(`{"meta":{"schemaVersion":99},"state":{},"featuresById":{},"featureOrder":[]}`))
	assert.ErrorContains(t, err, "schema version")
}
