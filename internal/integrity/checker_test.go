package integrity

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChecksumDeterministic(t *testing.T) {
	c1, err := Checksum([]byte("hello world"))
	require.NoError(t, err)
	c2, err := Checksum([]byte("hello world"))
	require.NoError(t, err)
	assert.Equal(t, c1, c2)
	assert.Len(t, c1, 64)
	assert.Regexp(t, "^[a-f0-9]{64}$", c1)
}

func TestChecksumNilRejected(t *testing.T) {
	_, err := Checksum(nil)
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestChecksumEmptyIsValid(t *testing.T) {
	sum, err := Checksum([]byte{})
	require.NoError(t, err)
	assert.Len(t, sum, 64)
}

func TestVerifyChecksum(t *testing.T) {
	content := []byte("artifact bytes")
	sum, err := Checksum(content)
	require.NoError(t, err)

	ok, err := VerifyChecksum(content, sum)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = VerifyChecksum([]byte("corrupted"), sum)
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = VerifyChecksum(content, "")
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestVerifyRequest(t *testing.T) {
	res := VerifyRequest(Request{Prompt: "do the thing"})
	assert.True(t, res.Valid)
	assert.Empty(t, res.Errors)

	res = VerifyRequest(Request{Prompt: "   "})
	assert.False(t, res.Valid)
	assert.NotEmpty(t, res.Errors)

	res = VerifyRequest(Request{Prompt: ""})
	assert.False(t, res.Valid)
}

func TestVerifyRealExecution(t *testing.T) {
	err := VerifyRealExecution(RealExecutionResponse{Execution: "real"})
	assert.NoError(t, err)

	err = VerifyRealExecution(RealExecutionResponse{Execution: "failed"})
	var simErr *SimulationViolationError
	assert.ErrorAs(t, err, &simErr)

	err = VerifyRealExecution(RealExecutionResponse{Execution: ""})
	assert.ErrorAs(t, err, &simErr)
}
