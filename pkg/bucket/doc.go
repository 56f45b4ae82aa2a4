// Package bucket implements a content-addressable store for downloaded
// assets.
//
// Every asset is identified by the MD5 of its bytes. Identical content
// fetched from different URLs is stored once; a provenance row per URL
// records where it came from and how recent it was. Metadata lives in a gorm
// database, content either inline in that database (InlineStore) or in a
// sharded directory tree on an afero filesystem (FSStore):
//
//	stage/<uuid>                 streaming target while hashing
//	bucket/aa/bb/cc/<hash>       finalized blob, sharded by hash prefix
//
// Blobs are always found through their metadata row, never by walking the
// shard tree.
package bucket
