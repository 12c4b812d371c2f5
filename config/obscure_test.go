package config

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObscureReveal_RoundTrip(t *testing.T) {
	cases := []string{"", "hunter2", "a very long password with spaces and !@#$%^&*()"}
	for _, pw := range cases {
		obscured, err := Obscure(pw)
		require.NoError(t, err)
		revealed, err := Reveal(obscured)
		require.NoError(t, err)
		assert.Equal(t, pw, revealed)
	}
}

func TestObscure_DifferentIVsProduceDifferentCiphertext(t *testing.T) {
	a, err := Obscure("hunter2")
	require.NoError(t, err)
	b, err := Obscure("hunter2")
	require.NoError(t, err)
	assert.NotEqual(t, a, b, "random IV must vary obscured output for identical input")
}

func TestReveal_RejectsBadBase64(t *testing.T) {
	_, err := Reveal("not valid base64!!!")
	assert.ErrorContains(t, err, "base64 decode failed")
}

func TestReveal_RejectsTooShortInput(t *testing.T) {
	_, err := Reveal("YQ")
	assert.ErrorContains(t, err, "input too short")
}

func TestMustObscureMustReveal(t *testing.T) {
	obscured := MustObscure("hunter2")
	assert.Equal(t, "hunter2", MustReveal(obscured))
}

func TestObscure_DeterministicWithFixedIV(t *testing.T) {
	old := cryptRand
	defer func() { cryptRand = old }()
	cryptRand = bytes.NewReader(make([]byte, 64))

	a, err := Obscure("hunter2")
	require.NoError(t, err)
	cryptRand = bytes.NewReader(make([]byte, 64))
	b, err := Obscure("hunter2")
	require.NoError(t, err)
	assert.Equal(t, a, b)
}
