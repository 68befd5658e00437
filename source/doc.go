// Package source reads tabular input records for the ingestion and
// evaluation pipelines.
//
// A Source is deterministic and re-readable: reading the same range twice
// yields the same records with the same row numbers, which is what makes
// resuming an interrupted ingestion run safe. CSV and Excel files are loaded
// into memory once; s3:// references are downloaded to a temporary file first.
//
// # Usage
//
//	src, err := source.Open(ctx, "s3://datasets/labs.csv", source.Options{Region: "us-east-1"})
//	if err != nil {
//	    return err
//	}
//	n, _ := src.Len(ctx)
//	records, err := src.Read(ctx, 0, min(n, 50))
package source
