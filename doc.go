// Package vecsim computes all-pairs similarity between the entities of a
// feature table and ranks every entity's neighbors.
//
// A run has three stages:
//
//   - generate: similarity.Engine builds the N×N metric matrix, labeled by
//     entity id on both axes;
//   - convert: edges.Convert flattens it into N² (source, target, score)
//     records;
//   - rank: rank.AddRankColumn numbers each source's targets 1..N by score,
//     breaking ties at random.
//
// # Quick Start
//
//	tbl, _ := table.ReadCSV(f)
//	p := vecsim.New(vecsim.WithIDColumn("recipe_id"))
//	out, _ := p.Run(ctx, tbl)
//	for _, r := range out.Ranked.Neighbors("42", 5, true) {
//	    fmt.Println(r.Target, r.Score, r.Rank)
//	}
//
// # Storing Runs
//
// Ranked tables are exported through package export to any
// blobstore.BlobStore (local disk, MinIO, S3). Pipeline.Export logs and
// records the export like the other stages:
//
//	w := export.NewWriter(store, export.WithCompression(export.CompressionZSTD))
//	m, _ := p.Export(ctx, out, w)
//	fmt.Println(m.RunID)
//
// # Ordering
//
// Ranking is descending by default, which puts the most similar neighbor
// first for cosine. For Euclidean distance, enable WithDistanceAwareOrder so
// the nearest neighbor gets rank 1.
package vecsim
