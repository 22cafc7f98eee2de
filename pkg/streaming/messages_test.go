package streaming

import (
	"encoding/json"
	"testing"

	"github.com/arscene/statesync/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnvelopeCarriesRawPayload(t *testing.T) {
	raw, err := json.Marshal(core.StatusChange{Frame: 3, ID: 7, Previous: core.StatusDetected, Current: core.StatusTracked})
	require.NoError(t, err)

	data, err := json.Marshal(Envelope{Type: TypeStatus, Payload: raw})
	require.NoError(t, err)

	var env Envelope
	require.NoError(t, json.Unmarshal(data, &env))
	assert.Equal(t, TypeStatus, env.Type)

	var sc core.StatusChange
	require.NoError(t, json.Unmarshal(env.Payload, &sc))
	assert.Equal(t, 7, sc.ID)
	assert.Equal(t, core.StatusTracked, sc.Current)
}

func TestAckMessageDecode(t *testing.T) {
	var ack AckMessage
	require.NoError(t, json.Unmarshal([]byte(`{"type":"ack","for":"start_session"}`), &ack))
	assert.Equal(t, TypeAck, ack.Type)
	assert.Equal(t, TypeStartSession, ack.For)
}
