// Package blobstore provides the storage abstraction for exported runs.
//
// BlobStore is the interface for reading and writing immutable blobs (ranked
// tables, manifests, the CURRENT pointer). Implementations must be safe for
// concurrent use.
//
// # Built-in Implementations
//
//   - LocalStore: local filesystem, memory-mapped reads, atomic writes
//   - MemoryStore: in-process, for tests
//   - minio.Store: MinIO and other S3-compatible servers
//   - s3.Store: Amazon S3 with range reads and managed uploads
//   - s3.CommitStore: any BlobStore plus a DynamoDB-backed CURRENT pointer
package blobstore
