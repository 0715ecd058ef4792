// Package files is the hierarchical document store holding plan documents and panoramas.
package files

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/afero"
)

// RecycleFolder receives recycled documents
const RecycleFolder = ".recycle"

var (
	ErrInvalidPath = errors.New("invalid document path")
	ErrNotFound    = errors.New("document not found")
)

// Entry is one item of a folder listing
type Entry struct {
	Name    string    `json:"name"`
	Path    string    `json:"path"`
	Folder  bool      `json:"folder"`
	Size    int64     `json:"size"`
	ModTime time.Time `json:"modTime"`
}

// Store keeps documents under root on an afero filesystem. Paths are slash separated and relative to root.
type Store struct {
	fs   afero.Fs
	root string
}

// New creates a store rooted at root
func New(fs afero.Fs, root string) *Store {
	return &Store{fs: fs, root: root}
}

// NewOS creates a store on the local disk
func NewOS(root string) *Store {
	return New(afero.NewOsFs(), root)
}

// Clean normalizes a document path. Paths escaping the root are rejected.
func Clean(p string) (string, error) {
	if strings.Contains(p, "\\") {
		return "", fmt.Errorf("%w: %q", ErrInvalidPath, p)
	}
	for _, part := range strings.Split(p, "/") {
		if part == ".." {
			return "", fmt.Errorf("%w: %q", ErrInvalidPath, p)
		}
	}
	return strings.TrimPrefix(path.Clean("/"+p), "/"), nil
}

// Join builds a document path from parts
func Join(parts ...string) string {
	return strings.TrimPrefix(path.Clean("/"+path.Join(parts...)), "/")
}

func (s *Store) abs(p string) (string, error) {
	clean, err := Clean(p)
	if err != nil {
		return "", err
	}
	return filepath.Join(s.root, filepath.FromSlash(clean)), nil
}

// EnsureFolder creates folder and its parents
func (s *Store) EnsureFolder(folder string) error {
	abs, err := s.abs(folder)
	if err != nil {
		return err
	}
	if err := s.fs.MkdirAll(abs, 0o755); err != nil {
		return fmt.Errorf("error creating folder %s: %w", folder, err)
	}
	return nil
}

// Upload writes r into folder as name. An existing document with that name is kept and the
// upload gets a unique suffix instead. It returns the stored path.
func (s *Store) Upload(folder, name string, r io.Reader) (string, error) {
	name = path.Base(strings.ReplaceAll(name, "\\", "/"))
	if name == "" || name == "." || name == "/" {
		return "", fmt.Errorf("%w: empty file name", ErrInvalidPath)
	}
	if err := s.EnsureFolder(folder); err != nil {
		return "", err
	}

	target := Join(folder, name)
	if s.Exists(target) {
		ext := path.Ext(name)
		target = Join(folder, fmt.Sprintf("%s-%s%s", strings.TrimSuffix(name, ext), uuid.NewString()[:8], ext))
	}

	abs, err := s.abs(target)
	if err != nil {
		return "", err
	}
	f, err := s.fs.OpenFile(abs, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return "", fmt.Errorf("error creating %s: %w", target, err)
	}
	if _, err := io.Copy(f, r); err != nil {
		_ = f.Close()
		_ = s.fs.Remove(abs)
		return "", fmt.Errorf("error writing %s: %w", target, err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("error closing %s: %w", target, err)
	}
	return target, nil
}

// Exists reports whether a document or folder exists at p
func (s *Store) Exists(p string) bool {
	abs, err := s.abs(p)
	if err != nil {
		return false
	}
	ok, _ := afero.Exists(s.fs, abs)
	return ok
}

// Open opens a document for reading
func (s *Store) Open(p string) (afero.File, error) {
	abs, err := s.abs(p)
	if err != nil {
		return nil, err
	}
	f, err := s.fs.Open(abs)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, p)
	}
	return f, err
}

// ReadFile returns the content of a document
func (s *Store) ReadFile(p string) ([]byte, error) {
	abs, err := s.abs(p)
	if err != nil {
		return nil, err
	}
	data, err := afero.ReadFile(s.fs, abs)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, p)
	}
	return data, err
}

// Move relocates a document into folder and returns its new path
func (s *Store) Move(p, folder string) (string, error) {
	from, err := s.abs(p)
	if err != nil {
		return "", err
	}
	if !s.Exists(p) {
		return "", fmt.Errorf("%w: %s", ErrNotFound, p)
	}
	if err := s.EnsureFolder(folder); err != nil {
		return "", err
	}
	target := Join(folder, path.Base(p))
	to, err := s.abs(target)
	if err != nil {
		return "", err
	}
	if err := s.fs.Rename(from, to); err != nil {
		return "", fmt.Errorf("error moving %s: %w", p, err)
	}
	return target, nil
}

// Recycle moves a document or folder into the recycle folder under a unique name
func (s *Store) Recycle(p string) (string, error) {
	from, err := s.abs(p)
	if err != nil {
		return "", err
	}
	if !s.Exists(p) {
		return "", fmt.Errorf("%w: %s", ErrNotFound, p)
	}
	if err := s.EnsureFolder(RecycleFolder); err != nil {
		return "", err
	}
	target := Join(RecycleFolder, uuid.NewString()+"-"+path.Base(p))
	to, _ := s.abs(target)
	if err := s.fs.Rename(from, to); err != nil {
		return "", fmt.Errorf("error recycling %s: %w", p, err)
	}
	return target, nil
}

// List returns the entries of folder sorted by name. The recycle folder is hidden.
func (s *Store) List(folder string) ([]Entry, error) {
	abs, err := s.abs(folder)
	if err != nil {
		return nil, err
	}
	infos, err := afero.ReadDir(s.fs, abs)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, folder)
	}
	if err != nil {
		return nil, fmt.Errorf("error listing %s: %w", folder, err)
	}

	clean, _ := Clean(folder)
	entries := make([]Entry, 0, len(infos))
	for _, info := range infos {
		if info.Name() == RecycleFolder {
			continue
		}
		entries = append(entries, Entry{
			Name:    info.Name(),
			Path:    Join(clean, info.Name()),
			Folder:  info.IsDir(),
			Size:    info.Size(),
			ModTime: info.ModTime(),
		})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name < entries[j].Name })
	return entries, nil
}

// Subfolders returns the names of the folders directly inside folder
func (s *Store) Subfolders(folder string) ([]string, error) {
	entries, err := s.List(folder)
	if err != nil {
		return nil, err
	}
	var names []string
	for _, e := range entries {
		if e.Folder {
			names = append(names, e.Name)
		}
	}
	return names, nil
}
