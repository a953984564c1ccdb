package persist

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEntityStore_WriteReadRoundTrip(t *testing.T) {
	s := NewEntityStore(t.TempDir())

	require.NoError(t, s.Write("c1", ActiveAgentEntity{AgentName: "sales"}))

	var got ActiveAgentEntity
	require.NoError(t, s.Read("c1", &got))
	assert.Equal(t, "sales", got.AgentName)

	ok, err := s.Has("c1")
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, s.Remove("c1"))
	ok, err = s.Has("c1")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestEntityStore_WriteLeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	s := NewEntityStore(dir)
	require.NoError(t, s.Write("c1", map[string]any{"a": 1}))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "c1.json", entries[0].Name())
}

func TestEntityStore_InitRemovesCorruptEntities(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "good.json"), []byte(`{"ok":true}`), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "bad.json"), []byte(`{"broken`), 0o644))

	s := NewEntityStore(dir)
	require.NoError(t, s.WaitForInit())

	keys, err := s.Keys()
	require.NoError(t, err)
	assert.Equal(t, []string{"good"}, keys)
}

func TestEntityStore_RemoveMissingIsNoError(t *testing.T) {
	s := NewEntityStore(t.TempDir())
	assert.NoError(t, s.Remove("ghost"))
}

func TestListStore_PushPopOrder(t *testing.T) {
	l := NewListStore(t.TempDir())

	require.NoError(t, l.Push(map[string]any{"agent": "a"}))
	require.NoError(t, l.Push(map[string]any{"agent": "b"}))

	var item map[string]any
	ok, err := l.Pop(&item)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "b", item["agent"])

	ok, err = l.Pop(&item)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "a", item["agent"])

	ok, err = l.Pop(&item)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestListStore_CounterSurvivesReopen(t *testing.T) {
	dir := t.TempDir()
	l := NewListStore(dir)
	require.NoError(t, l.Push("one"))
	require.NoError(t, l.Push("two"))

	reopened := NewListStore(dir)
	require.NoError(t, reopened.Push("three"))

	var v string
	ok, err := reopened.Pop(&v)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "three", v)
}
