package blob_test

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/goliatone/academia"
	"github.com/goliatone/academia/blob"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDiskStoreUpload(t *testing.T) {
	root := t.TempDir()
	store, err := blob.NewDiskStore(root, "/uploads/")
	require.NoError(t, err)

	url, err := store.Upload(context.Background(), strings.NewReader("photo"), "mentors/eva.png")
	require.NoError(t, err)
	assert.Equal(t, "/uploads/mentors/eva.png", url)

	data, err := os.ReadFile(filepath.Join(root, "mentors", "eva.png"))
	require.NoError(t, err)
	assert.Equal(t, "photo", string(data))

	objectPath, ok := store.ObjectPathFromURL(url)
	require.True(t, ok)
	require.NoError(t, store.Delete(context.Background(), objectPath))
	require.NoError(t, store.Delete(context.Background(), objectPath))

	_, err = os.Stat(filepath.Join(root, "mentors", "eva.png"))
	assert.True(t, os.IsNotExist(err))

	_, ok = store.ObjectPathFromURL("https://example.com/eva.png")
	assert.False(t, ok)
}

func TestDiskStoreRejectsEscapingPaths(t *testing.T) {
	store, err := blob.NewDiskStore(t.TempDir(), "/uploads")
	require.NoError(t, err)

	for _, p := range []string{"", "/", "../secret", "mentors/../../etc/passwd", `..\evil`} {
		_, err := store.Upload(context.Background(), strings.NewReader("x"), p)
		assert.ErrorIs(t, err, academia.ErrValidation, p)
	}
}

func TestDiskStoreSizeLimit(t *testing.T) {
	root := t.TempDir()
	store, err := blob.NewDiskStore(root, "/uploads", blob.WithMaxSize(4))
	require.NoError(t, err)

	_, err = store.Upload(context.Background(), strings.NewReader("12345"), "big.bin")
	assert.ErrorIs(t, err, blob.ErrTooLarge)

	_, err = os.Stat(filepath.Join(root, "big.bin"))
	assert.True(t, os.IsNotExist(err))

	_, err = store.Upload(context.Background(), strings.NewReader("1234"), "ok.bin")
	assert.NoError(t, err)
}

func TestDiskStoreHonorsContext(t *testing.T) {
	store, err := blob.NewDiskStore(t.TempDir(), "/uploads")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = store.Upload(ctx, strings.NewReader("x"), "a.txt")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestObjectPath(t *testing.T) {
	p := blob.ObjectPath("mentors", "Foto.JPG")
	assert.True(t, strings.HasPrefix(p, "mentors/"))
	assert.True(t, strings.HasSuffix(p, ".jpg"))
	assert.NotEqual(t, p, blob.ObjectPath("mentors", "Foto.JPG"))
}
