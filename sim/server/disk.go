package server

import (
	"github.com/matrix-sim/matrix/sim/fs"
)

// Disk is the server filesystem as seen by programs: every read and write
// parks the calling fiber for the latency chosen by the server time model.
type Disk struct {
	rt *Runtime
}

func (d *Disk) fs() *fs.FileSystem {
	return d.rt.s.fs
}

func (d *Disk) Exists(path string) bool {
	return d.fs().Exists(path)
}

func (d *Disk) Create(path string) bool {
	return d.fs().Create(path)
}

func (d *Disk) Unlink(path string) {
	d.fs().Unlink(path)
}

func (d *Disk) Truncate(path string, size int) error {
	return d.fs().Truncate(path, size)
}

func (d *Disk) ListFiles(prefix string) []string {
	return d.fs().ListFiles(prefix)
}

func (d *Disk) Open(path string, mode fs.Mode) (fs.Fd, error) {
	return d.fs().Open(path, mode)
}

// Read reads into buf, charging a disk read of len(buf) bytes.
func (d *Disk) Read(fd fs.Fd, buf []byte) int {
	d.rt.fibers.SleepFor(d.rt.s.model.DiskRead(len(buf)))
	return d.fs().Read(fd, buf)
}

// Append writes data, charging a disk write.
func (d *Disk) Append(fd fs.Fd, data []byte) {
	d.rt.fibers.SleepFor(d.rt.s.model.DiskWrite(len(data)))
	d.fs().Append(fd, data)
}

func (d *Disk) Sync(fd fs.Fd) {
	d.fs().Sync(fd)
}

func (d *Disk) Close(fd fs.Fd) {
	d.fs().Close(fd)
}

// ReadFile reads the whole file in one disk read.
func (d *Disk) ReadFile(path string) ([]byte, error) {
	size, err := d.fs().Size(path)
	if err != nil {
		return nil, err
	}
	d.rt.fibers.SleepFor(d.rt.s.model.DiskRead(size))
	return d.fs().ReadFile(path)
}

// AppendFile appends data to path, creating it if needed, in one disk write.
func (d *Disk) AppendFile(path string, data []byte) error {
	fd, err := d.fs().Open(path, fs.ModeAppend)
	if err != nil {
		return err
	}
	defer d.fs().Close(fd)
	d.Append(fd, data)
	return nil
}
