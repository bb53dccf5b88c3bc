package media

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_MediaStore_SaveAndRemove(t *testing.T) {
	store, err := NewStore(filepath.Join(t.TempDir(), "uploads"))
	require.NoError(t, err)

	ref, err := store.Save("lamp.png", strings.NewReader("image bytes"))
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(ref, "-lamp.png"))

	data, err := os.ReadFile(filepath.FromSlash(ref))
	require.NoError(t, err)
	assert.Equal(t, "image bytes", string(data))

	require.NoError(t, store.Remove(ref))
	_, err = os.Stat(filepath.FromSlash(ref))
	assert.True(t, os.IsNotExist(err))

	// releasing the same reference twice is harmless
	assert.NoError(t, store.Remove(ref))
}

func Test_MediaStore_Save_UniqueNames(t *testing.T) {
	store, err := NewStore(filepath.Join(t.TempDir(), "uploads"))
	require.NoError(t, err)

	ref1, err := store.Save("lamp.png", strings.NewReader("one"))
	require.NoError(t, err)
	ref2, err := store.Save("lamp.png", strings.NewReader("two"))
	require.NoError(t, err)
	assert.NotEqual(t, ref1, ref2)
}

func Test_MediaStore_Remove_RejectsOutsideReferences(t *testing.T) {
	dir := t.TempDir()
	store, err := NewStore(filepath.Join(dir, "uploads"))
	require.NoError(t, err)

	outside := filepath.Join(dir, "secret.txt")
	require.NoError(t, os.WriteFile(outside, []byte("keep me"), 0o600))

	err = store.Remove(outside)
	require.Error(t, err)

	_, statErr := os.Stat(outside)
	assert.NoError(t, statErr, "a reference outside the upload directory must never be deleted")
}
