package snapshot

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/haukened/rr-rpz/internal/dns/common/clock"
)

func openTemp(t *testing.T, clk clock.Clock) *Store {
	t.Helper()
	st, err := Open(filepath.Join(t.TempDir(), "rpz.db"), clk)
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	return st
}

func TestStore_SaveLoad(t *testing.T) {
	now := time.Date(2025, 8, 1, 12, 0, 0, 0, time.UTC)
	st := openTemp(t, &clock.MockClock{CurrentTime: now})

	text := []byte("rpz.local. IN SOA fake.RPZ. hostmaster.fake.RPZ. 7 3600 600 3600000 604800\n")
	require.NoError(t, st.Save("corp", 7, text))

	got, meta, err := st.Load("corp")
	require.NoError(t, err)
	assert.Equal(t, text, got)
	assert.Equal(t, "corp", meta.Name)
	assert.Equal(t, uint32(7), meta.Serial)
	assert.True(t, now.Equal(meta.SavedAt))
}

func TestStore_SaveOverwrites(t *testing.T) {
	st := openTemp(t, nil)
	require.NoError(t, st.Save("corp", 1, []byte("old")))
	require.NoError(t, st.Save("corp", 2, []byte("new")))

	got, meta, err := st.Load("corp")
	require.NoError(t, err)
	assert.Equal(t, "new", string(got))
	assert.Equal(t, uint32(2), meta.Serial)
}

func TestStore_LoadMissing(t *testing.T) {
	st := openTemp(t, nil)
	_, _, err := st.Load("nope")
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestStore_ListAndDelete(t *testing.T) {
	st := openTemp(t, nil)
	require.NoError(t, st.Save("b-zone", 2, []byte("b")))
	require.NoError(t, st.Save("a-zone", 1, []byte("a")))

	list, err := st.List()
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "a-zone", list[0].Name)
	assert.Equal(t, "b-zone", list[1].Name)

	require.NoError(t, st.Delete("a-zone"))
	require.NoError(t, st.Delete("a-zone"))
	list, err = st.List()
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "b-zone", list[0].Name)
}

func TestStore_SaveRejectsEmptyName(t *testing.T) {
	st := openTemp(t, nil)
	assert.Error(t, st.Save("", 1, []byte("x")))
}

func TestStore_ReopenKeepsData(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rpz.db")
	st, err := Open(path, nil)
	require.NoError(t, err)
	require.NoError(t, st.Save("corp", 3, []byte("zone text")))
	require.NoError(t, st.Close())

	st, err = Open(path, nil)
	require.NoError(t, err)
	defer st.Close()
	got, _, err := st.Load("corp")
	require.NoError(t, err)
	assert.Equal(t, "zone text", string(got))
}
