// Package blob stores raw uploaded bytes under a caller-chosen key. The
// local implementation writes to a directory through afero; the S3
// implementation targets AWS S3 or any S3-compatible service such as MinIO.
package blob
