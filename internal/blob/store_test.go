package blob

import (
	"context"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/diewo77/labdesk/internal/config"
)

func exerciseStore(t *testing.T, s Store) {
	ctx := context.Background()
	info, err := s.Put(ctx, "payment_receipts/a.pdf", strings.NewReader("receipt"), "application/pdf")
	require.NoError(t, err)
	assert.EqualValues(t, 7, info.Size)

	_, err = s.Put(ctx, "payment_receipts/a.pdf", strings.NewReader("again"), "")
	assert.ErrorIs(t, err, ErrExists)

	got, rc, err := s.Get(ctx, "payment_receipts/a.pdf")
	require.NoError(t, err)
	body, _ := io.ReadAll(rc)
	_ = rc.Close()
	assert.Equal(t, "receipt", string(body))
	assert.Equal(t, "application/pdf", got.ContentType)

	require.NoError(t, s.Delete(ctx, "payment_receipts/a.pdf"))
	_, _, err = s.Get(ctx, "payment_receipts/a.pdf")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = s.Put(ctx, "../escape", strings.NewReader("x"), "")
	assert.ErrorIs(t, err, ErrInvalidKey)
}

func TestMemoryStore(t *testing.T) {
	exerciseStore(t, NewMemory())
}

func TestFilesystemStore(t *testing.T) {
	s, err := NewFilesystem(t.TempDir())
	require.NoError(t, err)
	exerciseStore(t, s)
}

func TestOpen(t *testing.T) {
	s, err := Open(context.Background(), config.BlobConfig{Driver: "memory"})
	require.NoError(t, err)
	assert.Equal(t, DriverMemory, s.Driver())

	s, err = Open(context.Background(), config.BlobConfig{Driver: "fs", Root: t.TempDir()})
	require.NoError(t, err)
	assert.Equal(t, DriverFilesystem, s.Driver())

	_, err = Open(context.Background(), config.BlobConfig{Driver: "s3"})
	assert.Error(t, err)

	_, err = Open(context.Background(), config.BlobConfig{Driver: "ftp"})
	assert.Error(t, err)
}

func TestNewKey(t *testing.T) {
	k := NewKey("payment_receipts/", `C:\Users\me\Receipt.PDF`)
	assert.True(t, strings.HasPrefix(k, "payment_receipts/"))
	assert.True(t, strings.HasSuffix(k, ".pdf"))
	assert.NotEqual(t, k, NewKey("payment_receipts", "receipt.pdf"))
}
