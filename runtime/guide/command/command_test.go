package command

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeChoice(t *testing.T) {
	cmd, err := Decode([]byte(`{
		"type": "choice",
		"choice_id": "c1",
		"selected": "lib-a",
		"note": "team preference"
	}`))
	require.NoError(t, err)
	assert.Equal(t, Choice{ChoiceID: "c1", Selected: "lib-a", Note: "team preference"}, cmd)
}

func TestDecodeChoiceRequiresChoiceID(t *testing.T) {
	_, err := Decode([]byte(`{"type": "choice", "selected": "lib-a"}`))
	require.Error(t, err)
}

func TestDecodeInput(t *testing.T) {
	cmd, err := Decode([]byte(`{"type": "input", "value": "sqlite"}`))
	require.NoError(t, err)
	assert.Equal(t, Input{Value: "sqlite"}, cmd)

	// An empty value is a valid input answer.
	cmd, err = Decode([]byte(`{"type": "input"}`))
	require.NoError(t, err)
	assert.Equal(t, Input{}, cmd)
}

func TestDecodeSkip(t *testing.T) {
	cmd, err := Decode([]byte(`{"type": "skip"}`))
	require.NoError(t, err)
	assert.Equal(t, Skip{}, cmd)
}

func TestDecodeRejectsUnknownType(t *testing.T) {
	_, err := Decode([]byte(`{"type": "restart"}`))
	require.Error(t, err)
	_, err = Decode([]byte(`{}`))
	require.Error(t, err)
}

func TestDecodeRejectsMalformedJSON(t *testing.T) {
	_, err := Decode([]byte(`{"type": `))
	require.Error(t, err)
}

func TestEncodeRoundTrip(t *testing.T) {
	for _, cmd := range []Command{
		Choice{ChoiceID: "c1", Selected: "lib-a", Note: "n"},
		Input{Value: "text"},
		Skip{},
	} {
		raw, err := Encode(cmd)
		require.NoError(t, err)
		decoded, err := Decode(raw)
		require.NoError(t, err)
		assert.Equal(t, cmd, decoded)
	}
}
