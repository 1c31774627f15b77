// Package storage uploads try-on images to object storage and returns
// publicly fetchable URLs.
package storage

import (
	"context"
	"fmt"
	"path"
	"strings"

	"storefront/internal/infra"
)

// Uploader stores an object and returns its public URL.
type Uploader interface {
	Upload(ctx context.Context, key string, data []byte, contentType string) (string, error)
}

// New builds the uploader selected by STORAGE_BACKEND.
func New(ctx context.Context, cfg *infra.Config) (Uploader, error) {
	switch cfg.StorageBackend {
	case infra.StorageBackendFile:
		return NewFileStore(cfg.StoragePath, cfg.StorageBaseURL)
	case infra.StorageBackendMinIO:
		return NewMinIOStore(ctx, MinIOOptions{
			Endpoint:  cfg.MinIOEndpoint,
			AccessKey: cfg.MinIOAccessKey,
			SecretKey: cfg.MinIOSecretKey,
			Bucket:    cfg.MinIOBucket,
			UseSSL:    cfg.MinIOUseSSL,
		})
	case infra.StorageBackendGCS:
		return NewGCSStore(ctx, cfg.GCSBucket, cfg.GCSCredentialsFile)
	default:
		return nil, fmt.Errorf("storage: unsupported backend %q", cfg.StorageBackend)
	}
}

// UploadKey builds the object key for a try-on asset. kind is "uploads" or
// "results".
func UploadKey(kind, jobID, ext string) string {
	ext = strings.TrimPrefix(ext, ".")
	if ext == "" {
		ext = "bin"
	}
	return path.Join("tryon", kind, jobID+"."+ext)
}

// ExtensionForMIME maps image content types to file extensions.
func ExtensionForMIME(mime string) string {
	switch strings.ToLower(strings.TrimSpace(mime)) {
	case "image/png":
		return "png"
	case "image/jpeg", "image/jpg":
		return "jpg"
	case "image/webp":
		return "webp"
	default:
		return "bin"
	}
}
