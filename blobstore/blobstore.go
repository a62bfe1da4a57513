// Package blobstore defines the minimal object-store contract the
// Uploader needs (spec.md §4.5, §6): upload a local file to a remote
// URI, and list/delete remote objects for orphan cleanup and testing.
// Concrete drivers (S3, Swift, HDFS, GCS) are external collaborators;
// this package only specifies the contract plus an S3 default (see
// blobstore/s3store).
package blobstore

import "context"

// BlobStore is safe for concurrent use: the Uploader calls Upload from
// multiple goroutines within a partition's bounded worker pool
// (spec.md §5).
type BlobStore interface {
	// Upload copies localPath to remoteURI, overwriting any existing
	// object. Idempotent: calling Upload twice with the same bytes must
	// yield byte-identical remote content (spec.md §8 property 4).
	Upload(ctx context.Context, localPath, remoteURI string) error

	// List returns the remote URIs under prefix. The core pipeline does
	// not call it.
	List(ctx context.Context, prefix string) ([]string, error)

	// Delete removes the object at remoteURI. Used for test cleanup; the
	// core pipeline never deletes remote objects.
	Delete(ctx context.Context, remoteURI string) error
}
