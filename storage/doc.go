// Package storage provides content-addressed blob storage with pluggable
// backends.
//
// Blobs are identified by the SHA-256 hash of their content. The node keeps
// them under its blob directory with a FileBackend and can mirror them to
// further locations listed in the blob_mirrors setting:
//
//	file:///mnt/backup/blobs
//	s3://bucket-name/prefix?region=us-west-2
//	s3://ACCESS_KEY:SECRET_KEY@bucket/prefix?endpoint=http://minio:9000&path_style=true
//	ipfs://127.0.0.1:5001/node-launcher/blobs?timeout=10s
//
// StorageBackendFactory turns those URIs into backends and combines them
// with the local backend in a MultiStorageBackend. Writes go to the local
// backend first and are then copied to every reachable mirror; reads fall
// back through the backends in order.
package storage
