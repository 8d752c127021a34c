package blobsvc

import (
	"context"
	"io"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"

	"github.com/trezcool/educa/core"
)

// LocalStore keeps blobs under a directory of the local filesystem.
type LocalStore struct {
	dir     string
	baseURL string
}

var _ core.BlobStore = (*LocalStore)(nil)

func NewLocalStore(dir, baseURL string) *LocalStore {
	if !strings.HasSuffix(baseURL, "/") {
		baseURL += "/"
	}
	return &LocalStore{dir: dir, baseURL: baseURL}
}

// path maps key to a file under the store directory, rejecting keys escaping it.
func (s *LocalStore) path(key string) (string, error) {
	clean := path.Clean("/" + key)
	if clean == "/" {
		return "", errors.Errorf("invalid blob key %q", key)
	}
	return filepath.Join(s.dir, filepath.FromSlash(clean)), nil
}

func (s *LocalStore) Put(_ context.Context, key string, r io.Reader, _ string) error {
	fp, err := s.path(key)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(fp), 0o755); err != nil {
		return errors.Wrap(err, "creating blob directory")
	}

	f, err := os.Create(fp)
	if err != nil {
		return errors.Wrap(err, "creating blob")
	}
	if _, err := io.Copy(f, r); err != nil {
		_ = f.Close()
		_ = os.Remove(fp)
		return errors.Wrap(err, "writing blob")
	}
	return errors.Wrap(f.Close(), "closing blob")
}

func (s *LocalStore) Delete(_ context.Context, key string) error {
	fp, err := s.path(key)
	if err != nil {
		return err
	}
	if err := os.Remove(fp); err != nil && !os.IsNotExist(err) {
		return errors.Wrap(err, "deleting blob")
	}
	return nil
}

func (s *LocalStore) URL(key string) string {
	return s.baseURL + (&url.URL{Path: strings.TrimPrefix(key, "/")}).EscapedPath()
}
