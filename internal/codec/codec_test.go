package codec

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yndnr/meshbus-go/internal/core/domain"
)

type playerData struct {
	Name  string   `json:"name"`
	Level int      `json:"level"`
	Tags  []string `json:"tags,omitempty"`
}

func TestRoundTrip_Shapes(t *testing.T) {
	t.Run("struct", func(t *testing.T) {
		in := playerData{Name: "Steve", Level: 5, Tags: []string{"vip"}}
		text, err := Encode(in)
		require.NoError(t, err)
		assert.JSONEq(t, `{"name":"Steve","level":5,"tags":["vip"]}`, text)

		out, err := Decode[playerData](text)
		require.NoError(t, err)
		assert.Equal(t, in, out)
	})

	t.Run("list", func(t *testing.T) {
		text, err := Encode([]int{3, 1, 2})
		require.NoError(t, err)
		out, err := Decode[[]int](text)
		require.NoError(t, err)
		assert.Equal(t, []int{3, 1, 2}, out, "order preserved")
	})

	t.Run("map", func(t *testing.T) {
		in := map[string]playerData{"a": {Name: "A", Level: 1}}
		text, err := Encode(in)
		require.NoError(t, err)
		out, err := Decode[map[string]playerData](text)
		require.NoError(t, err)
		assert.Equal(t, in, out)
	})

	t.Run("set", func(t *testing.T) {
		in := NewSet("b", "a", "c")
		text, err := Encode(in)
		require.NoError(t, err)
		assert.Equal(t, `["a","b","c"]`, text)

		out, err := Decode[Set[string]](text)
		require.NoError(t, err)
		assert.Equal(t, in, out)
	})

	t.Run("string", func(t *testing.T) {
		text, err := Encode("hi \"there\"")
		require.NoError(t, err)
		out, err := Decode[string](text)
		require.NoError(t, err)
		assert.Equal(t, "hi \"there\"", out)
	})
}

func TestDecode_Failure(t *testing.T) {
	_, err := Decode[playerData](`{"name": 12}`)
	require.Error(t, err)

	var de *DeserializationError
	require.True(t, errors.As(err, &de))
	assert.Equal(t, "codec.playerData", de.Target)
	assert.ErrorIs(t, err, domain.ErrDeserialization)
	assert.True(t, domain.IsDomainError(domain.ErrDeserialization, "MB-CODEC-4220"))
}

func TestDecode_TruncatesInput(t *testing.T) {
	long := make([]byte, 500)
	for i := range long {
		long[i] = 'x'
	}
	_, err := Decode[int](string(long))

	var de *DeserializationError
	require.ErrorAs(t, err, &de)
	assert.Len(t, de.Input, maxInputEcho+3)
}

func TestDecodeInto(t *testing.T) {
	var p playerData
	require.NoError(t, DecodeInto(`{"name":"x","level":2}`, &p))
	assert.Equal(t, 2, p.Level)

	err := DecodeInto(`[`, &p)
	var de *DeserializationError
	require.ErrorAs(t, err, &de)
	assert.Equal(t, "codec.playerData", de.Target)
}

func TestEncode_Failure(t *testing.T) {
	_, err := Encode(make(chan int))
	assert.ErrorIs(t, err, domain.ErrSerialization)
}

func TestPrimitives(t *testing.T) {
	assert.Equal(t, "42", FormatInt(42))
	n, err := ParseInt("42")
	require.NoError(t, err)
	assert.Equal(t, int64(42), n)

	_, err = ParseInt("forty")
	assert.ErrorIs(t, err, domain.ErrDeserialization)

	assert.Equal(t, "true", FormatBool(true))
	b, err := ParseBool("false")
	require.NoError(t, err)
	assert.False(t, b)
	_, err = ParseBool("maybe")
	assert.Error(t, err)

	assert.Equal(t, "1.5", FormatFloat(1.5))
	f, err := ParseFloat("2.25")
	require.NoError(t, err)
	assert.Equal(t, 2.25, f)
	_, err = ParseFloat("NaNx")
	assert.Error(t, err)
}

func TestSet_Operations(t *testing.T) {
	s := NewSet(1, 2, 2, 3)
	assert.Equal(t, 3, s.Len())
	assert.True(t, s.Has(2))

	s.Remove(2)
	s.Add(4)
	assert.False(t, s.Has(2))
	assert.ElementsMatch(t, []int{1, 3, 4}, s.Items())

	var dup Set[int]
	require.NoError(t, DecodeInto(`[1,1,1]`, &dup))
	assert.Equal(t, 1, dup.Len())
}
