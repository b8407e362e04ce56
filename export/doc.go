// Package export persists ranked edge tables.
//
// Encode and Decode convert a ranked table to and from a self-describing
// binary frame. The payload is split into blocks compressed with LZ4 or
// ZSTD, and scores are stored bit-exact. A CRC-32C over the uncompressed
// payload guards against corruption.
//
// Writer stores each export as a run in a blobstore.BlobStore:
//
//	runs/<run-id>/ranked.bin      the frame
//	runs/<run-id>/manifest.json   run metadata
//	CURRENT                       id of the latest run
//
// CURRENT only moves after both run blobs are stored, so readers never see
// a partial run. Reader loads the latest or a named run back.
package export
