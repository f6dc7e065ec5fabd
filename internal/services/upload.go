package services

import (
	"context"
	"fmt"
	"io"

	"go.uber.org/zap"

	"github.com/diewo77/labdesk/internal/blob"
)

// Upload is a file received from a client.
type Upload struct {
	Filename    string
	ContentType string
	Size        int64
	Body        io.Reader
}

// Blob key prefixes per document kind.
const (
	PrefixSpecDocuments = "lab_specs"
	PrefixAttachments   = "consultancy_attachments"
	PrefixReceipts      = "payment_receipts"
	PrefixProfileImages = "profile_images"
)

func storeUpload(ctx context.Context, store blob.Store, prefix string, up *Upload) (string, error) {
	if up == nil || up.Body == nil {
		return "", nil
	}
	info, err := store.Put(ctx, blob.NewKey(prefix, up.Filename), up.Body, up.ContentType)
	if err != nil {
		return "", fmt.Errorf("store %s: %w", prefix, err)
	}
	return info.Key, nil
}

// discardUpload removes a blob stored for a write that did not commit.
func discardUpload(ctx context.Context, store blob.Store, log *zap.Logger, key string) {
	if key == "" {
		return
	}
	if err := store.Delete(ctx, key); err != nil {
		log.Warn("failed to remove orphaned upload", zap.String("key", key), zap.Error(err))
	}
}
