// Package artifact reads the output files that pipeline stages leave in
// artifact storage.
//
// Stage outputs are stored under "<job>/<pair>/stage-<n>/". Providers only
// list and stat objects; uploads belong to the execution backend.
package artifact

import (
	"context"
	"time"
)

// Provider lists and inspects stored artifacts.
//
// Implementations must be safe for concurrent use.
type Provider interface {
	// List returns a page of objects under Prefix.
	List(ctx context.Context, opts ListOptions) (*ListResult, error)

	// Head returns metadata for one object, or an error wrapping ErrNotFound.
	Head(ctx context.Context, key string) (*ObjectMeta, error)

	Close() error
}

// ListOptions configures a List call.
type ListOptions struct {
	Prefix string

	// ContinuationToken resumes after a previous truncated page.
	ContinuationToken string

	// MaxKeys limits the page size. Zero uses the provider default.
	MaxKeys int
}

// ListResult is one page of a listing.
type ListResult struct {
	Objects           []ObjectSummary
	ContinuationToken string
	IsTruncated       bool
}

// ObjectSummary is the listing view of one artifact.
type ObjectSummary struct {
	Key          string
	Size         int64
	ETag         string
	LastModified time.Time
}

// ObjectMeta is the full metadata of one artifact.
type ObjectMeta struct {
	ObjectSummary
	ContentType string
	Metadata    map[string]string
}

// ProviderType names a storage implementation.
type ProviderType string

const (
	ProviderFile ProviderType = "file"
	ProviderS3   ProviderType = "s3"
)

func (p ProviderType) String() string {
	return string(p)
}
