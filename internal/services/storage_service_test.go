package services

import (
	"bytes"
	"context"
	"errors"
	"image/jpeg"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/saptechnologies/sap-backend/internal/apperr"
	"github.com/saptechnologies/sap-backend/internal/testutil"
)

func newTestStorage(t *testing.T) *StorageService {
	t.Helper()
	storage, err := NewStorageService(testutil.Config(t))
	require.NoError(t, err)
	return storage
}

func TestSaveImageResizesAndReencodes(t *testing.T) {
	storage := newTestStorage(t)

	result, err := storage.SaveImage(context.Background(), bytes.NewReader(pngBytes(t, 1600, 1200)), "photo.PNG", storage.GetDefaultUploadOptions("nominations"))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(result.Key, "nominations/"))
	assert.Equal(t, "image/jpeg", result.MimeType)

	data, err := storage.ReadFile(context.Background(), result.URL)
	require.NoError(t, err)
	img, err := jpeg.Decode(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, 800, img.Bounds().Dx())
	assert.Equal(t, 600, img.Bounds().Dy())
}

func TestSaveImageRejectsInvalidInput(t *testing.T) {
	storage := newTestStorage(t)
	opts := storage.GetDefaultUploadOptions("nominations")

	tests := []struct {
		name     string
		data     []byte
		filename string
	}{
		{"extension", pngBytes(t, 10, 10), "photo.exe"},
		{"magic bytes", []byte("plain text pretending to be a photo"), "photo.png"},
		{"too large", append(pngBytes(t, 10, 10), make([]byte, opts.MaxSize)...), "photo.png"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := storage.SaveImage(context.Background(), bytes.NewReader(tt.data), tt.filename, opts)
			require.Error(t, err)
			assert.True(t, errors.Is(err, apperr.ErrValidation), err.Error())
		})
	}
}

func TestKeyFromURL(t *testing.T) {
	storage := newTestStorage(t)

	tests := []struct {
		url     string
		key     string
		managed bool
	}{
		{"/uploads/nominations/a.jpg", "nominations/a.jpg", true},
		{"/uploads/certificates/SAP-1.png", "certificates/SAP-1.png", true},
		{"/uploads/../etc/passwd", "", false},
		{"/uploads/nominations/../../x", "", false},
		{"/uploads/", "", false},
		{"https://cdn.example.com/a.jpg", "", false},
		{"/static/a.jpg", "", false},
		{"", "", false},
	}

	for _, tt := range tests {
		key, ok := storage.KeyFromURL(tt.url)
		assert.Equal(t, tt.managed, ok, tt.url)
		assert.Equal(t, tt.key, key, tt.url)
	}
}

func TestDeleteByURL(t *testing.T) {
	storage := newTestStorage(t)
	ctx := context.Background()

	result, err := storage.SaveBytes(ctx, []byte("data"), "nominations/x.jpg", "image/jpeg")
	require.NoError(t, err)

	deleted, err := storage.DeleteByURL(ctx, result.URL)
	require.NoError(t, err)
	assert.True(t, deleted)
	_, err = os.Stat(filepath.Join(storage.config.Storage.LocalPath, result.Key))
	assert.True(t, os.IsNotExist(err))

	// Deleting twice is not an error
	deleted, err = storage.DeleteByURL(ctx, result.URL)
	require.NoError(t, err)
	assert.True(t, deleted)

	deleted, err = storage.DeleteByURL(ctx, "https://example.com/photo.jpg")
	require.NoError(t, err)
	assert.False(t, deleted)
}
