// Package s3 provides Amazon S3 implementations of blobstore.BlobStore.
//
// # Usage
//
//	store, err := s3.New(ctx, "my-bucket",
//	    s3.WithPrefix("vecsim/"),
//	    s3.WithRegion("us-east-1"),
//	)
//
// Wrap any store in a CommitStore to keep the CURRENT run pointer in
// DynamoDB, which gives concurrent exporters compare-and-swap semantics:
//
//	ddb, _ := s3.NewDynamoDBClient(ctx, "us-east-1")
//	committed := s3.NewCommitStore(store, ddb, "vecsim-commits", "s3://my-bucket/vecsim/")
//
// # Features
//
//   - Range reads for partial fetches
//   - Managed multipart uploads for streaming writes
//   - Automatic pagination for listing
//   - Configurable prefix for multi-tenant isolation
package s3
