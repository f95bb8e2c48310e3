// Package attachments turns uploaded blobs into durable file URLs.
package attachments

import (
	"fmt"
	"io"
	"mime"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/teris-io/shortid"
)

const (
	urlPrefix = "/uploads/"
	// MaxUploadSize bounds a single stored file.
	MaxUploadSize = 20 << 20
)

var ErrTooLarge = fmt.Errorf("file exceeds %d bytes", MaxUploadSize)

type Resolver interface {
	Save(originalName string, r io.Reader) (string, error)
}

// LocalStore keeps uploads in a directory on disk and serves them under
// /uploads/.
type LocalStore struct {
	dir       string
	publicURL string
}

func NewLocalStore(dir, publicURL string) (*LocalStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}

	return &LocalStore{
		dir:       dir,
		publicURL: strings.TrimRight(publicURL, "/"),
	}, nil
}

// Save writes r under a generated name keeping the original extension and
// returns the public URL of the stored file.
func (s *LocalStore) Save(originalName string, r io.Reader) (string, error) {
	id, err := shortid.Generate()
	if err != nil {
		return "", err
	}
	name := id + strings.ToLower(filepath.Ext(filepath.Base(originalName)))

	f, err := os.OpenFile(filepath.Join(s.dir, name), os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return "", err
	}

	n, err := io.Copy(f, io.LimitReader(r, MaxUploadSize+1))
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err == nil && n > MaxUploadSize {
		err = ErrTooLarge
	}
	if err != nil {
		os.Remove(f.Name())
		return "", err
	}

	return s.publicURL + urlPrefix + name, nil
}

// Owns reports whether url names a file handed out by Save.
func (s *LocalStore) Owns(url string) bool {
	name, ok := strings.CutPrefix(url, s.publicURL+urlPrefix)
	if !ok || name == "" || name == "." || name == ".." {
		return false
	}
	return !strings.ContainsAny(name, "/\\?#")
}

// Handler serves stored files. Directories are not listed and anything
// that is not a raster image is sent as a download.
func (s *LocalStore) Handler() http.Handler {
	files := http.FileServer(fileOnlyFS{http.Dir(s.dir)})

	return http.StripPrefix(urlPrefix, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		if !servedInline(r.URL.Path) {
			w.Header().Set("Content-Disposition", "attachment")
		}
		files.ServeHTTP(w, r)
	}))
}

func servedInline(name string) bool {
	ct := mime.TypeByExtension(strings.ToLower(path.Ext(name)))
	return strings.HasPrefix(ct, "image/") && !strings.HasPrefix(ct, "image/svg")
}

// fileOnlyFS hides directories so the file server never renders a listing.
type fileOnlyFS struct {
	fs http.FileSystem
}

func (f fileOnlyFS) Open(name string) (http.File, error) {
	file, err := f.fs.Open(name)
	if err != nil {
		return nil, err
	}

	info, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, err
	}
	if info.IsDir() {
		file.Close()
		return nil, os.ErrNotExist
	}

	return file, nil
}
