// Package media provides media store implementations for generated assets.
//
// Implementations:
//   - local: files under the output directory, served by the HTTP server
//   - minio: S3-compatible object storage with presigned GET URLs
package media
