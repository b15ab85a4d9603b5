// Package quarantine keeps flagged files in a private directory from which
// they can later be restored or permanently deleted.
package quarantine

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/zhengda-lu/antiv/internal/utils"
)

const (
	dirPerm   = 0o700
	tmpPrefix = ".antiv-partial-"
	hashLen   = 12
)

var (
	ErrIsolate = errors.New("isolation failed")
	ErrRestore = errors.New("restore failed")
	ErrDelete  = errors.New("delete failed")

	// ErrExists marks a name collision in the store or at a restore destination.
	ErrExists = errors.New("name already taken")
)

// Naming decides the name a file is stored under.
type Naming string

const (
	// NamingReject stores files under their base name and refuses collisions.
	NamingReject Naming = "reject"
	// NamingHashed prefixes the base name with a digest of the original
	// absolute path, so files sharing a base name from different
	// directories can coexist.
	NamingHashed Naming = "hashed"
)

// ParseNaming maps a config value to a Naming. Empty means NamingReject.
func ParseNaming(s string) (Naming, error) {
	switch Naming(strings.ToLower(strings.TrimSpace(s))) {
	case "", NamingReject:
		return NamingReject, nil
	case NamingHashed:
		return NamingHashed, nil
	default:
		return "", fmt.Errorf("unknown quarantine naming %q (use reject or hashed)", s)
	}
}

// OpError describes a failed store operation. It unwraps to both the
// operation sentinel (ErrIsolate, ErrRestore, ErrDelete) and the cause.
type OpError struct {
	Op   error
	Name string
	Path string
	Err  error
}

func (e *OpError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("%v: %s (%s): %v", e.Op, e.Name, e.Path, e.Err)
	}
	return fmt.Sprintf("%v: %s: %v", e.Op, e.Name, e.Err)
}

func (e *OpError) Unwrap() []error { return []error{e.Op, e.Err} }

// Entry is a file currently held in the store.
type Entry struct {
	Name    string    `json:"name"`
	Path    string    `json:"path"`
	Size    int64     `json:"size"`
	ModTime time.Time `json:"mod_time"`
}

// Store is a quarantine directory. Its methods are safe for concurrent use
// on different names; concurrent isolations of the same name race and one
// of them fails with ErrExists or is overwritten.
type Store struct {
	dir    string
	naming Naming
	log    *slog.Logger
}

// Option configures a Store.
type Option func(*Store)

func WithNaming(n Naming) Option { return func(s *Store) { s.naming = n } }

func WithLogger(l *slog.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.log = l
		}
	}
}

// DefaultDir returns ~/antiv_quarantine.
func DefaultDir() string {
	home := utils.HomeDir()
	if home == "" {
		return "antiv_quarantine"
	}
	return filepath.Join(home, "antiv_quarantine")
}

// Open returns a store backed by dir, creating it if absent.
func Open(dir string, opts ...Option) (*Store, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve quarantine directory: %w", err)
	}
	if err := os.MkdirAll(abs, dirPerm); err != nil {
		return nil, fmt.Errorf("failed to create quarantine directory: %w", err)
	}

	s := &Store{
		dir:    abs,
		naming: NamingReject,
		log:    slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

func (s *Store) Dir() string { return s.dir }

// EntryName returns the name source would be stored under.
func (s *Store) EntryName(source string) string {
	base := filepath.Base(source)
	if s.naming != NamingHashed {
		return base
	}
	sum := sha256.Sum256([]byte(source))
	return hex.EncodeToString(sum[:])[:hashLen] + "-" + base
}

// OriginalName strips the digest prefix added by NamingHashed.
func OriginalName(name string) string {
	if len(name) > hashLen+1 && name[hashLen] == '-' {
		if _, err := hex.DecodeString(name[:hashLen]); err == nil {
			return name[hashLen+1:]
		}
	}
	return name
}

// Isolate moves source into the store. On failure the source is left where
// it was.
func (s *Store) Isolate(source string) (Entry, error) {
	abs, err := filepath.Abs(source)
	if err != nil {
		return Entry{}, &OpError{Op: ErrIsolate, Name: filepath.Base(source), Path: source, Err: err}
	}
	name := s.EntryName(abs)
	fail := func(err error) (Entry, error) {
		return Entry{}, &OpError{Op: ErrIsolate, Name: name, Path: abs, Err: err}
	}

	info, err := os.Lstat(abs)
	if err != nil {
		return fail(err)
	}
	if !info.Mode().IsRegular() {
		return fail(fmt.Errorf("not a regular file"))
	}

	dest := filepath.Join(s.dir, name)
	if err := move(abs, dest); err != nil {
		return fail(err)
	}

	s.log.Info("file quarantined", "source", abs, "name", name)
	return entryFor(dest, info), nil
}

// List returns every entry in the store, in no particular order.
func (s *Store) List() ([]Entry, error) {
	des, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read quarantine directory: %w", err)
	}

	entries := make([]Entry, 0, len(des))
	for _, d := range des {
		if d.IsDir() || strings.HasPrefix(d.Name(), tmpPrefix) {
			continue
		}
		info, err := d.Info()
		if err != nil {
			continue // removed since ReadDir
		}
		entries = append(entries, entryFor(filepath.Join(s.dir, d.Name()), info))
	}
	return entries, nil
}

// Restore moves the named entry into destDir and returns the restored path.
// With NamingHashed the digest prefix is dropped from the restored name.
func (s *Store) Restore(name, destDir string) (string, error) {
	fail := func(err error) (string, error) {
		return "", &OpError{Op: ErrRestore, Name: name, Path: destDir, Err: err}
	}

	src, err := s.entryPath(name)
	if err != nil {
		return fail(err)
	}
	if _, err := os.Lstat(src); err != nil {
		return fail(err)
	}

	if !utils.DirExists(destDir) {
		return fail(fmt.Errorf("destination is not a directory"))
	}
	restoreName := name
	if s.naming == NamingHashed {
		restoreName = OriginalName(name)
	}
	dest := filepath.Join(destDir, restoreName)
	if err := move(src, dest); err != nil {
		return fail(err)
	}

	s.log.Info("file restored", "name", name, "dest", dest)
	return dest, nil
}

// Delete permanently removes the named entry.
func (s *Store) Delete(name string) error {
	p, err := s.entryPath(name)
	if err != nil {
		return &OpError{Op: ErrDelete, Name: name, Err: err}
	}
	if err := os.Remove(p); err != nil {
		return &OpError{Op: ErrDelete, Name: name, Err: err}
	}
	s.log.Info("quarantined file deleted", "name", name)
	return nil
}

// entryPath rejects names that would escape the store directory.
func (s *Store) entryPath(name string) (string, error) {
	if name == "" || name == "." || name == ".." || strings.ContainsAny(name, `/\`) {
		return "", fmt.Errorf("invalid entry name %q", name)
	}
	return filepath.Join(s.dir, name), nil
}

func entryFor(path string, info fs.FileInfo) Entry {
	return Entry{
		Name:    filepath.Base(path),
		Path:    path,
		Size:    info.Size(),
		ModTime: info.ModTime(),
	}
}

// move renames src to dest, refusing to replace an existing dest. When the
// two are on different filesystems it copies to a temporary file next to
// dest, renames that into place, and only then removes src.
func move(src, dest string) error {
	if _, err := os.Lstat(dest); err == nil {
		return fmt.Errorf("%s: %w", dest, ErrExists)
	} else if !errors.Is(err, fs.ErrNotExist) {
		return err
	}

	err := os.Rename(src, dest)
	if err == nil || !isCrossDevice(err) {
		return err
	}
	return copyThenRemove(src, dest)
}

func copyThenRemove(src, dest string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return err
	}

	tmp := filepath.Join(filepath.Dir(dest), tmpPrefix+uuid.NewString())
	out, err := os.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_EXCL, info.Mode().Perm())
	if err != nil {
		return err
	}

	_, err = io.Copy(out, in)
	if err == nil {
		err = out.Sync()
	}
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(tmp)
		return fmt.Errorf("copy failed: %w", err)
	}

	if _, err := os.Lstat(dest); err == nil {
		os.Remove(tmp)
		return fmt.Errorf("%s: %w", dest, ErrExists)
	}
	if err := os.Rename(tmp, dest); err != nil {
		os.Remove(tmp)
		return err
	}

	if err := os.Remove(src); err != nil {
		// Undo so the file is not left in both places.
		os.Remove(dest)
		return fmt.Errorf("failed to remove source after copy: %w", err)
	}
	return nil
}
