// Package fs is a server's in-memory filesystem. File contents are
// persistent and survive crashes; open file descriptors are volatile.
package fs

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/matrix-sim/matrix/sim/core"
)

// Fd is an open file descriptor.
type Fd int

// Mode is the mode a file is opened in.
type Mode int

const (
	ModeRead Mode = iota
	ModeAppend
)

const (
	RootPath = "/"
	TmpPath  = "/tmp"
)

type openFile struct {
	path   string
	mode   Mode
	offset int
	file   *file
}

type file struct {
	data []byte
}

// FileSystem is a flat namespace of paths to byte slices.
type FileSystem struct {
	log *logrus.Entry

	// persistent
	files map[string]*file

	// volatile
	open   map[Fd]*openFile
	nextFd Fd
}

func New(log *logrus.Entry) *FileSystem {
	return &FileSystem{
		log:   log,
		files: make(map[string]*file),
		open:  make(map[Fd]*openFile),
	}
}

func notFound(path string) error {
	return fmt.Errorf("%s: %w", path, os.ErrNotExist)
}

// Create makes an empty file; reports false if it already existed.
func (fs *FileSystem) Create(path string) bool {
	if _, ok := fs.files[path]; ok {
		return false
	}
	fs.log.Infof("create new file '%s'", path)
	fs.files[path] = &file{}
	return true
}

func (fs *FileSystem) Exists(path string) bool {
	_, ok := fs.files[path]
	return ok
}

// Size returns the file length; an error if it does not exist.
func (fs *FileSystem) Size(path string) (int, error) {
	f, ok := fs.files[path]
	if !ok {
		return 0, notFound(path)
	}
	return len(f.data), nil
}

// Open opens path. ModeAppend creates a missing file; ModeRead fails with
// an error wrapping os.ErrNotExist.
func (fs *FileSystem) Open(path string, mode Mode) (Fd, error) {
	f, ok := fs.files[path]
	if !ok {
		if mode != ModeAppend {
			return 0, notFound(path)
		}
		fs.log.Infof("create file '%s'", path)
		f = &file{}
		fs.files[path] = f
	}
	fs.nextFd++
	fd := fs.nextFd
	offset := 0
	if mode == ModeAppend {
		offset = len(f.data)
	}
	fs.open[fd] = &openFile{path: path, mode: mode, offset: offset, file: f}
	return fd, nil
}

// Read fills buf from the current offset and returns the byte count; 0 at EOF.
func (fs *FileSystem) Read(fd Fd, buf []byte) int {
	of := fs.opened(fd, ModeRead)
	n := 0
	if of.offset < len(of.file.data) {
		n = copy(buf, of.file.data[of.offset:])
	}
	of.offset += n
	fs.log.Debugf("read %d bytes from '%s'", n, of.path)
	return n
}

// Append writes data at the end of the file.
func (fs *FileSystem) Append(fd Fd, data []byte) {
	of := fs.opened(fd, ModeAppend)
	fs.log.Debugf("append %d bytes to '%s'", len(data), of.path)
	of.file.data = append(of.file.data, data...)
	of.offset = len(of.file.data)
}

// Sync is a no-op: appended bytes are durable immediately.
func (fs *FileSystem) Sync(fd Fd) {
	if _, ok := fs.open[fd]; !ok {
		panic("filesystem error: fd not found")
	}
}

// Close releases fd. Panics on unknown descriptors.
func (fs *FileSystem) Close(fd Fd) {
	if _, ok := fs.open[fd]; !ok {
		panic("filesystem error: file not found by fd")
	}
	delete(fs.open, fd)
}

// Truncate cuts the file to size bytes.
func (fs *FileSystem) Truncate(path string, size int) error {
	f, ok := fs.files[path]
	if !ok {
		return notFound(path)
	}
	if size < len(f.data) {
		fs.log.Debugf("truncate file %s to %d", path, size)
		f.data = f.data[:size]
	}
	return nil
}

func (fs *FileSystem) Unlink(path string) {
	delete(fs.files, path)
}

// ReadFile returns a copy of the whole file.
func (fs *FileSystem) ReadFile(path string) ([]byte, error) {
	f, ok := fs.files[path]
	if !ok {
		return nil, notFound(path)
	}
	return append([]byte(nil), f.data...), nil
}

// ListFiles returns every path with the given prefix in lexicographic order.
func (fs *FileSystem) ListFiles(prefix string) []string {
	var paths []string
	for p := range fs.files {
		if strings.HasPrefix(p, prefix) {
			paths = append(paths, p)
		}
	}
	sort.Strings(paths)
	return paths
}

// PathAppend joins a directory and a name.
func PathAppend(base, name string) string {
	if strings.HasSuffix(base, "/") {
		return base + name
	}
	return base + "/" + name
}

// PathSplit splits a path into parent directory and name.
func PathSplit(path string) (parent, name string) {
	i := strings.LastIndexByte(path, '/')
	if i < 0 {
		return path, ""
	}
	return path[:i], path[i+1:]
}

// Corrupt simulates a torn write: the file loses a random-length tail.
func (fs *FileSystem) Corrupt(path string, rng *core.RandomSource) {
	f, ok := fs.files[path]
	if !ok || len(f.data) == 0 {
		return
	}
	cut := int(rng.Below(uint64(len(f.data))))
	fs.log.Warnf("corrupt file '%s': %d -> %d bytes", path, len(f.data), cut)
	f.data = f.data[:cut]
}

// Reset drops the volatile state. Called when the server crashes.
func (fs *FileSystem) Reset() {
	fs.open = make(map[Fd]*openFile)
	fs.nextFd = 0
}

// OpenFiles returns the number of open descriptors.
func (fs *FileSystem) OpenFiles() int {
	return len(fs.open)
}

// Digest folds every path and its contents in path order.
func (fs *FileSystem) Digest() uint64 {
	d := core.NewDigest(0)
	for _, p := range fs.ListFiles("") {
		d.EatString(p).EatBytes(fs.files[p].data)
	}
	return d.Value()
}

func (fs *FileSystem) opened(fd Fd, mode Mode) *openFile {
	of, ok := fs.open[fd]
	if !ok {
		panic("filesystem error: fd not found")
	}
	if of.mode != mode {
		panic("filesystem error: unexpected file mode")
	}
	return of
}
