// ABOUTME: MinIO-backed ObjectSigner for production preview URLs
// ABOUTME: Mints presigned GET URLs with an inline content-disposition filename

package attachment

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// MinioSigner signs preview URLs against an S3-compatible object store.
type MinioSigner struct {
	client *minio.Client
}

// NewMinioSigner connects a signer to the object store endpoint.
func NewMinioSigner(endpoint, accessKey, secretKey string, useSSL bool) (*MinioSigner, error) {
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: useSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("connecting to object store: %w", err)
	}
	return &MinioSigner{client: client}, nil
}

// PresignedGet mints a time-limited GET URL for the object.
func (s *MinioSigner) PresignedGet(ctx context.Context, bucket, objectPath, fileName string, ttl time.Duration) (*url.URL, error) {
	reqParams := make(url.Values)
	if fileName != "" {
		reqParams.Set("response-content-disposition", fmt.Sprintf("inline; filename=%q", fileName))
	}

	u, err := s.client.PresignedGetObject(ctx, bucket, objectPath, ttl, reqParams)
	if err != nil {
		return nil, fmt.Errorf("presigning %s/%s: %w", bucket, objectPath, err)
	}
	return u, nil
}

// Ensure MinioSigner implements ObjectSigner
var _ ObjectSigner = (*MinioSigner)(nil)
