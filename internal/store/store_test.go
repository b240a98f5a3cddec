package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTest(t *testing.T) *BoltStore {
	t.Helper()
	st, err := Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	return st
}

func TestJSONRoundTrip(t *testing.T) {
	st := openTest(t)

	type record struct {
		Name  string `json:"name"`
		Count int    `json:"count"`
	}
	in := []record{{Name: "alpha", Count: 1}, {Name: "beta", Count: 2}}
	require.NoError(t, st.SetJSON("things", "list", in))

	var out []record
	require.True(t, st.GetJSON("things", "list", &out))
	assert.Equal(t, in, out)
}

func TestGetJSONMissing(t *testing.T) {
	st := openTest(t)

	var out []string
	assert.False(t, st.GetJSON("nope", "missing", &out))

	// Key in an existing bucket but absent.
	require.NoError(t, st.SetJSON("things", "present", []string{"x"}))
	assert.False(t, st.GetJSON("things", "absent", &out))
}

func TestInt64RoundTrip(t *testing.T) {
	st := openTest(t)

	require.NoError(t, st.SetInt64("sync", "last", 1717243200))
	got, ok := st.GetInt64("sync", "last")
	require.True(t, ok)
	assert.Equal(t, int64(1717243200), got)

	require.NoError(t, st.SetInt64("sync", "negative", -5))
	got, ok = st.GetInt64("sync", "negative")
	require.True(t, ok)
	assert.Equal(t, int64(-5), got)

	_, ok = st.GetInt64("sync", "missing")
	assert.False(t, ok)
}

func TestRemove(t *testing.T) {
	st := openTest(t)

	require.NoError(t, st.SetJSON("things", "key", "value"))
	require.NoError(t, st.Remove("things", "key"))

	var out string
	assert.False(t, st.GetJSON("things", "key", &out))

	// Removing a missing key or bucket is fine.
	assert.NoError(t, st.Remove("things", "key"))
	assert.NoError(t, st.Remove("never-created", "key"))
}

func TestBucketsIsolated(t *testing.T) {
	st := openTest(t)

	require.NoError(t, st.SetJSON("a", "shared", "from-a"))
	require.NoError(t, st.SetJSON("b", "shared", "from-b"))

	var got string
	require.True(t, st.GetJSON("a", "shared", &got))
	assert.Equal(t, "from-a", got)
	require.True(t, st.GetJSON("b", "shared", &got))
	assert.Equal(t, "from-b", got)
}
