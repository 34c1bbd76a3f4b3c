package id

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_SortsInCreationOrder(t *testing.T) {
	first, err := New()
	require.NoError(t, err)
	second, err := New()
	require.NoError(t, err)

	assert.Len(t, first, 26)
	assert.Less(t, first, second)
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, errors.New("entropy exhausted") }

func TestGenerate_EntropyFailureIsReturned(t *testing.T) {
	id, err := generate(time.Now(), failingReader{})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "entropy exhausted")
	assert.Empty(t, id)
}

func TestNewAsset(t *testing.T) {
	a, err := NewAsset()
	require.NoError(t, err)
	b, err := NewAsset()
	require.NoError(t, err)

	assert.Len(t, a, 36)
	assert.NotEqual(t, a, b)
}

func TestSequence(t *testing.T) {
	next := Sequence("op")

	a, _ := next()
	b, _ := next()

	assert.Equal(t, "op-1", a)
	assert.Equal(t, "op-2", b)
}
