package objectstore

import (
	"context"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPutGetRoundTrip(t *testing.T) {
	store, err := NewFSStore(t.TempDir())
	require.NoError(t, err)

	n, err := store.Put(context.Background(), "jobs/abc/input.mp4", strings.NewReader("hello world"))
	require.NoError(t, err)
	require.Equal(t, int64(11), n)

	rc, err := store.Get(context.Background(), "jobs/abc/input.mp4")
	require.NoError(t, err)
	defer rc.Close()

	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	require.Equal(t, "hello world", string(data))
}

func TestPutRejectsPathEscape(t *testing.T) {
	store, err := NewFSStore(t.TempDir())
	require.NoError(t, err)

	_, err = store.Put(context.Background(), "../../etc/passwd", strings.NewReader("x"))
	require.Error(t, err)
}

func TestDeleteIsIdempotent(t *testing.T) {
	store, err := NewFSStore(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, store.Delete(context.Background(), "never-existed.mp4"))
}

func TestStatReportsSize(t *testing.T) {
	store, err := NewFSStore(t.TempDir())
	require.NoError(t, err)

	_, err = store.Put(context.Background(), "a.mp4", strings.NewReader("12345"))
	require.NoError(t, err)

	info, err := store.Stat(context.Background(), "a.mp4")
	require.NoError(t, err)
	require.Equal(t, int64(5), info.SizeBytes)
	require.Equal(t, "a.mp4", info.Key)
}

func TestGetMissingObjectErrors(t *testing.T) {
	store, err := NewFSStore(t.TempDir())
	require.NoError(t, err)

	_, err = store.Get(context.Background(), "missing.mp4")
	require.Error(t, err)
}
