package blob

import (
	"context"
	"io"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFS_PutOpenRemove(t *testing.T) {
	fs, err := NewFS(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	ref, err := fs.Put(ctx, "MTS-2026-0001", "photo", "me.PNG", strings.NewReader("fake image bytes"))
	require.NoError(t, err)
	assert.Equal(t, "photo", filepath.Dir(ref))
	assert.True(t, strings.HasPrefix(filepath.Base(ref), "MTS-2026-0001-"))
	assert.True(t, strings.HasSuffix(ref, ".png"))

	r, err := fs.Open(ctx, ref)
	require.NoError(t, err)
	content, err := io.ReadAll(r)
	require.NoError(t, err)
	require.NoError(t, r.Close())
	assert.Equal(t, "fake image bytes", string(content))

	require.NoError(t, fs.Remove(ctx, ref))
	_, err = fs.Open(ctx, ref)
	assert.Error(t, err)

	// idempotent
	assert.NoError(t, fs.Remove(ctx, ref))
}

func TestFS_RepeatedPutsGetDistinctRefs(t *testing.T) {
	fs, err := NewFS(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	first, err := fs.Put(ctx, "MTS-2026-0001", "photo", "me.png", strings.NewReader("v1"))
	require.NoError(t, err)
	second, err := fs.Put(ctx, "MTS-2026-0001", "photo", "me.png", strings.NewReader("v2"))
	require.NoError(t, err)
	assert.NotEqual(t, first, second)

	r, err := fs.Open(ctx, second)
	require.NoError(t, err)
	defer r.Close()
	content, _ := io.ReadAll(r)
	assert.Equal(t, "v2", string(content))
}

func TestFS_RejectsEscapingRefs(t *testing.T) {
	fs, err := NewFS(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	for _, ref := range []string{"../etc/passwd", "/etc/passwd", "photo/../../x"} {
		_, err := fs.Open(ctx, ref)
		assert.Error(t, err, "ref %q", ref)
	}
}

func TestFS_DropsSuspiciousExtensions(t *testing.T) {
	fs, err := NewFS(t.TempDir())
	require.NoError(t, err)

	ref, err := fs.Put(context.Background(), "MTS-2026-0001", "photo", "weird.p;g", strings.NewReader("x"))
	require.NoError(t, err)
	assert.False(t, strings.Contains(filepath.Base(ref), ";"))
}
