package core

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestByteArrayJSON(t *testing.T) {
	proof := SignInProof{
		Account:       Account{PublicKey: ByteArray{1, 2}},
		SignedMessage: ByteArray("hi"),
		Signature:     ByteArray{255},
	}

	data, err := json.Marshal(proof)
	require.NoError(t, err)
	assert.JSONEq(t, `{"account":{"publicKey":[1,2]},"signedMessage":[104,105],"signature":[255]}`, string(data))

	var decoded SignInProof
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, proof, decoded)
}

func TestByteArrayAcceptsBase64(t *testing.T) {
	var b ByteArray
	require.NoError(t, json.Unmarshal([]byte(`"AQI="`), &b))
	assert.Equal(t, ByteArray{1, 2}, b)
}

func TestByteArrayRejectsOutOfRange(t *testing.T) {
	var b ByteArray
	assert.Error(t, json.Unmarshal([]byte(`[1, 256]`), &b))
}
