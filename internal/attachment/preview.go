// ABOUTME: Attachment preview resolution via time-limited signed URLs
// ABOUTME: Individual preview failures degrade gracefully instead of failing the read

package attachment

import (
	"context"
	"log/slog"
	"net/url"
	"time"

	"github.com/propstead/messaging/internal/store"
)

// DefaultTTL is how long minted preview URLs stay valid.
const DefaultTTL = time.Hour

// ObjectSigner mints time-limited GET URLs for stored objects. The
// production implementation talks to the object store; tests substitute a
// fake.
type ObjectSigner interface {
	PresignedGet(ctx context.Context, bucket, objectPath, fileName string, ttl time.Duration) (*url.URL, error)
}

// Previewer turns stored attachment references into viewer-facing preview
// URLs. Previews are derived values: they are computed on every read and
// never persisted.
type Previewer struct {
	signer ObjectSigner
	ttl    time.Duration
	cache  *urlCache
	logger *slog.Logger
}

// cacheSize bounds the preview URL cache.
const cacheSize = 1024

// NewPreviewer creates a previewer. A nil signer disables previews entirely
// (attachments are still returned, just without URLs). A non-positive ttl
// uses DefaultTTL.
func NewPreviewer(signer ObjectSigner, ttl time.Duration, logger *slog.Logger) *Previewer {
	if logger == nil {
		logger = slog.Default()
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Previewer{
		signer: signer,
		ttl:    ttl,
		// Cached URLs are reused for half their signed lifetime so a
		// viewer never receives one about to expire.
		cache:  newURLCache(ttl/2, cacheSize),
		logger: logger.With("component", "attachment"),
	}
}

// Resolve fills PreviewURL on each attachment that has both a bucket and a
// storage path. A failure for one attachment omits only that preview; the
// rest of the message read proceeds.
func (p *Previewer) Resolve(ctx context.Context, attachments []store.Attachment) []store.Attachment {
	if p == nil || p.signer == nil || len(attachments) == 0 {
		return attachments
	}

	resolved := make([]store.Attachment, len(attachments))
	copy(resolved, attachments)

	for i := range resolved {
		att := &resolved[i]
		if att.BucketID == "" || att.StoragePath == "" {
			continue
		}

		cacheKey := att.BucketID + "/" + att.StoragePath
		if cached := p.cache.get(cacheKey); cached != "" {
			att.PreviewURL = cached
			continue
		}

		u, err := p.signer.PresignedGet(ctx, att.BucketID, att.StoragePath, att.FileName, p.ttl)
		if err != nil {
			p.logger.Warn("preview URL unavailable",
				"bucket", att.BucketID,
				"path", att.StoragePath,
				"error", err)
			continue
		}
		att.PreviewURL = u.String()
		p.cache.put(cacheKey, att.PreviewURL)
	}

	return resolved
}
