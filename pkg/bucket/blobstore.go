package bucket

import (
	"bytes"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path"

	"github.com/google/uuid"
	"github.com/spf13/afero"
)

const (
	copyBufferSize = 64 * 1024
	shardDepth     = 3
	shardWidth     = 2
)

// Written is the result of storing one stream.
type Written struct {
	Hash       string
	Length     int64
	StoredPath string
	Data       []byte
	// Existed is set when identical content was already present.
	Existed bool
}

// BlobStore holds blob content. Metadata is kept by Bucket.
type BlobStore interface {
	// Write consumes r, hashing it while storing it.
	Write(r io.Reader) (*Written, error)

	// Open returns the content of blob.
	Open(blob *Blob) (io.ReadCloser, error)
}

// InlineStore keeps content in the blobs.data column.
type InlineStore struct{}

// NewInlineStore returns an InlineStore.
func NewInlineStore() *InlineStore {
	return &InlineStore{}
}

// Write reads r fully into memory.
func (InlineStore) Write(r io.Reader) (*Written, error) {
	var buf bytes.Buffer
	h := md5.New()

	n, err := io.CopyBuffer(io.MultiWriter(&buf, h), r, make([]byte, copyBufferSize))
	if err != nil {
		return nil, fmt.Errorf("read content: %w", err)
	}

	return &Written{
		Hash:   hex.EncodeToString(h.Sum(nil)),
		Length: n,
		Data:   buf.Bytes(),
	}, nil
}

// Open returns the inline content.
func (InlineStore) Open(blob *Blob) (io.ReadCloser, error) {
	if blob.Data == nil && blob.Length > 0 {
		return nil, fmt.Errorf("%w: %s has no inline content", ErrBlobNotFound, blob.Hash)
	}
	return io.NopCloser(bytes.NewReader(blob.Data)), nil
}

// FSStore keeps content in a sharded directory tree.
type FSStore struct {
	fs   afero.Fs
	root string
}

// NewFSStore creates a store rooted at root on fs.
func NewFSStore(fs afero.Fs, root string) *FSStore {
	return &FSStore{fs: fs, root: root}
}

// ShardPath returns the path of a blob relative to the store root.
func ShardPath(hash string) string {
	parts := make([]string, 0, shardDepth+2)
	parts = append(parts, "bucket")
	for i := 0; i < shardDepth && (i+1)*shardWidth <= len(hash); i++ {
		parts = append(parts, hash[i*shardWidth:(i+1)*shardWidth])
	}
	parts = append(parts, hash)
	return path.Join(parts...)
}

// Write streams r to a staging file, then moves it to its shard path. The
// staging file is removed on every failure.
func (s *FSStore) Write(r io.Reader) (written *Written, err error) {
	stageDir := path.Join(s.root, "stage")
	if err := s.fs.MkdirAll(stageDir, 0o755); err != nil {
		return nil, fmt.Errorf("create stage dir: %w", err)
	}

	stagePath := path.Join(stageDir, uuid.NewString())
	f, err := s.fs.OpenFile(stagePath, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("create stage file: %w", err)
	}

	staged := true
	defer func() {
		if staged {
			s.fs.Remove(stagePath)
		}
	}()

	h := md5.New()
	n, err := io.CopyBuffer(io.MultiWriter(f, h), r, make([]byte, copyBufferSize))
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return nil, fmt.Errorf("stage content: %w", err)
	}

	hash := hex.EncodeToString(h.Sum(nil))
	rel := ShardPath(hash)
	final := path.Join(s.root, rel)

	existed, err := afero.Exists(s.fs, final)
	if err != nil {
		return nil, fmt.Errorf("stat blob: %w", err)
	}

	if !existed {
		if err := s.fs.MkdirAll(path.Dir(final), 0o755); err != nil {
			return nil, fmt.Errorf("create shard dir: %w", err)
		}
		if err := s.fs.Rename(stagePath, final); err != nil {
			return nil, fmt.Errorf("finalize blob: %w", err)
		}
		staged = false
	}

	return &Written{
		Hash:       hash,
		Length:     n,
		StoredPath: rel,
		Existed:    existed,
	}, nil
}

// Open opens the blob file recorded in its metadata row.
func (s *FSStore) Open(blob *Blob) (io.ReadCloser, error) {
	if blob.StoredPath == "" {
		return nil, fmt.Errorf("%w: %s has no stored path", ErrBlobNotFound, blob.Hash)
	}
	f, err := s.fs.Open(path.Join(s.root, blob.StoredPath))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrBlobNotFound, blob.Hash)
		}
		return nil, err
	}
	return f, nil
}

// hashOnly consumes a stream without keeping it, for dry runs.
type hashOnly struct{}

func (hashOnly) Write(r io.Reader) (*Written, error) {
	h := md5.New()
	n, err := io.CopyBuffer(h, r, make([]byte, copyBufferSize))
	if err != nil {
		return nil, fmt.Errorf("read content: %w", err)
	}
	return &Written{Hash: hex.EncodeToString(h.Sum(nil)), Length: n}, nil
}

func (hashOnly) Open(blob *Blob) (io.ReadCloser, error) {
	return nil, fmt.Errorf("%w: %s (dry run)", ErrBlobNotFound, blob.Hash)
}
