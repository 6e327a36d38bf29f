package archive

import (
	"bufio"
	"os"
	"path/filepath"

	"github.com/xtxerr/archivist/config"
	"github.com/xtxerr/archivist/internal/errors"
)

// SyncMode controls what Flush does for file archives.
type SyncMode string

const (
	// SyncFlush writes the buffer to the file.
	SyncFlush SyncMode = "flush"

	// SyncFsync also syncs the file to disk.
	SyncFsync SyncMode = "fsync"
)

// FileOptions configures a FileOpener.
type FileOptions struct {
	// SyncMode controls how Flush persists data.
	// Default: "flush"
	SyncMode SyncMode

	// BufferSize is the size of the per-file write buffer.
	// Default: 64KB
	BufferSize int

	// FileMode and DirMode are used for new files and directories.
	FileMode os.FileMode
	DirMode  os.FileMode
}

// DefaultFileOptions returns default file archive options.
func DefaultFileOptions() FileOptions {
	return FileOptions{
		SyncMode:   config.DefaultSyncMode,
		BufferSize: config.DefaultWriteBufferSize,
		FileMode:   config.DefaultFileMode,
		DirMode:    config.DefaultDirMode,
	}
}

// FileOpener opens append-only archive files below a root directory.
type FileOpener struct {
	dir  string
	opts FileOptions
}

// NewFileOpener creates an opener rooted at dir, which must exist.
func NewFileOpener(dir string, opts FileOptions) (*FileOpener, error) {
	defaults := DefaultFileOptions()
	if opts.SyncMode == "" {
		opts.SyncMode = defaults.SyncMode
	}
	if opts.SyncMode != SyncFlush && opts.SyncMode != SyncFsync {
		return nil, errors.NewInvalidValue("sync_mode", opts.SyncMode, "must be flush or fsync")
	}
	if opts.BufferSize <= 0 {
		opts.BufferSize = defaults.BufferSize
	}
	if opts.FileMode == 0 {
		opts.FileMode = defaults.FileMode
	}
	if opts.DirMode == 0 {
		opts.DirMode = defaults.DirMode
	}

	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, errors.Wrapf(err, "resolve archive dir %s", dir)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, errors.Wrapf(err, "archive dir %s", abs)
	}
	if !info.IsDir() {
		return nil, errors.Wrapf(errors.ErrInvalidPath, "%s is not a directory", abs)
	}

	return &FileOpener{dir: abs, opts: opts}, nil
}

// Dir returns the absolute root directory.
func (o *FileOpener) Dir() string {
	return o.dir
}

// Resolve maps an archive path to its file. Paths that are absolute or that
// would leave the root directory are rejected.
func (o *FileOpener) Resolve(path string) (string, error) {
	local := filepath.FromSlash(path)
	if !filepath.IsLocal(local) {
		return "", errors.Wrapf(errors.ErrInvalidPath, "%q", path)
	}
	return filepath.Join(o.dir, local), nil
}

// Open opens the archive for appending, creating it and its parent
// directories as needed.
func (o *FileOpener) Open(path string) (Handle, error) {
	name, err := o.Resolve(path)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(name), o.opts.DirMode); err != nil {
		return nil, errors.Wrapf(err, "create archive dir for %s", path)
	}

	f, err := os.OpenFile(name, os.O_CREATE|os.O_WRONLY|os.O_APPEND, o.opts.FileMode)
	if err != nil {
		return nil, errors.Wrapf(err, "open archive %s", path)
	}

	return &fileHandle{
		file:  f,
		w:     bufio.NewWriterSize(f, o.opts.BufferSize),
		fsync: o.opts.SyncMode == SyncFsync,
	}, nil
}

type fileHandle struct {
	file   *os.File
	w      *bufio.Writer
	fsync  bool
	closed bool
}

func (h *fileHandle) Write(line []byte) error {
	if h.closed {
		return errors.ErrClosed
	}
	_, err := h.w.Write(line)
	return err
}

func (h *fileHandle) Flush() error {
	if h.closed {
		return errors.ErrClosed
	}
	if err := h.w.Flush(); err != nil {
		return err
	}
	if h.fsync {
		return h.file.Sync()
	}
	return nil
}

func (h *fileHandle) Close() error {
	if h.closed {
		return errors.ErrClosed
	}
	h.closed = true
	return h.file.Close()
}
