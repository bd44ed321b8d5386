package model

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarshalMetadata_Typed(t *testing.T) {
	ev := TrustScoreEvent{
		Kind:     EventRuleRecalc,
		Metadata: RecalcMetadata{Trigger: TriggerNoteAdded, AppliedRules: 3},
	}

	data, err := ev.MarshalMetadata()
	require.NoError(t, err)

	var meta RecalcMetadata
	require.NoError(t, json.Unmarshal(data, &meta))
	assert.Equal(t, TriggerNoteAdded, meta.Trigger)
	assert.Equal(t, 3, meta.AppliedRules)
}

func TestMarshalMetadata_RawPassthrough(t *testing.T) {
	raw := json.RawMessage(`{"value":30,"has_reason":true}`)
	ev := TrustScoreEvent{Kind: EventOverrideSet, RawMetadata: raw}

	data, err := ev.MarshalMetadata()
	require.NoError(t, err)
	assert.JSONEq(t, string(raw), string(data))
}

func TestMarshalMetadata_Empty(t *testing.T) {
	data, err := TrustScoreEvent{Kind: EventRuleRecalc}.MarshalMetadata()
	require.NoError(t, err)
	assert.Nil(t, data)
}
