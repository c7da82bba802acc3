package db

import (
	"fmt"
	"sort"

	"github.com/sirupsen/logrus"

	"github.com/matrix-sim/matrix/sim/process"
)

// Disk is the latency-charged file access the database runs on.
type Disk interface {
	Exists(path string) bool
	ReadFile(path string) ([]byte, error)
	AppendFile(path string, data []byte) error
	Truncate(path string, size int) error
}

// CacheModel decides when a lookup misses the block cache.
type CacheModel interface {
	GetCacheMiss() bool
	IteratorCacheMiss() bool
}

// DB is an open database.
type DB struct {
	dir     string
	disk    Disk
	cache   CacheModel
	parker  process.Parker
	log     *logrus.Entry
	mem     map[string][]byte
	version uint64
	writeMu process.Mutex
}

// Open replays the WAL under dir into memory. A corrupted WAL tail is cut off.
func Open(dir string, disk Disk, cache CacheModel, parker process.Parker, log *logrus.Entry) (*DB, error) {
	db := &DB{
		dir:    dir,
		disk:   disk,
		cache:  cache,
		parker: parker,
		log:    log,
		mem:    make(map[string][]byte),
	}
	if err := db.replayWAL(); err != nil {
		return nil, err
	}
	if err := db.prepareSSTable(); err != nil {
		return nil, err
	}
	return db, nil
}

func (db *DB) walPath() string {
	return db.dir + "/wal"
}

func (db *DB) sstablePath() string {
	return db.dir + "/sstable"
}

func (db *DB) replayWAL() error {
	db.log.Info("replaying WAL -> MemTable")
	if !db.disk.Exists(db.walPath()) {
		return nil
	}
	data, err := db.disk.ReadFile(db.walPath())
	if err != nil {
		return fmt.Errorf("reading WAL: %w", err)
	}
	batches, valid := decodeFrames(data)
	for _, b := range batches {
		db.apply(b)
		db.version++
	}
	if valid < len(data) {
		db.log.Warnf("WAL tail corrupted: dropping %d bytes", len(data)-valid)
		if err := db.disk.Truncate(db.walPath(), valid); err != nil {
			return fmt.Errorf("truncating WAL: %w", err)
		}
	}
	db.log.Infof("MemTable populated: %d keys at version %d", len(db.mem), db.version)
	return nil
}

func (db *DB) prepareSSTable() error {
	if db.disk.Exists(db.sstablePath()) {
		return nil
	}
	if err := db.disk.AppendFile(db.sstablePath(), []byte("data")); err != nil {
		return fmt.Errorf("creating SSTable: %w", err)
	}
	return nil
}

// accessSSTable emulates the read latency of a cache miss.
func (db *DB) accessSSTable() error {
	db.log.Info("cache miss, access SSTable on disk")
	if _, err := db.disk.ReadFile(db.sstablePath()); err != nil {
		return fmt.Errorf("reading SSTable: %w", err)
	}
	return nil
}

func (db *DB) Put(key string, value []byte) error {
	var b WriteBatch
	b.Put(key, value)
	return db.Write(b)
}

func (db *DB) Delete(key string) error {
	var b WriteBatch
	b.Delete(key)
	return db.Write(b)
}

// Write appends batch to the WAL, then applies it. Writers are serialized.
func (db *DB) Write(batch WriteBatch) error {
	db.writeMu.Lock(db.parker)
	defer db.writeMu.Unlock()

	frame, err := encodeFrame(batch)
	if err != nil {
		return err
	}
	if err := db.disk.AppendFile(db.walPath(), frame); err != nil {
		return fmt.Errorf("appending to WAL: %w", err)
	}
	db.apply(batch)
	db.version++
	return nil
}

func (db *DB) apply(batch WriteBatch) {
	for _, m := range batch.Muts {
		switch m.Type {
		case MutationPut:
			db.log.Debugf("Put('%s', %d bytes)", m.Key, len(m.Value))
			db.mem[m.Key] = append([]byte(nil), m.Value...)
		case MutationDelete:
			db.log.Debugf("Delete('%s')", m.Key)
			delete(db.mem, m.Key)
		}
	}
}

// TryGet returns the value stored under key and whether it exists.
func (db *DB) TryGet(key string) ([]byte, bool, error) {
	if db.cache.GetCacheMiss() {
		if err := db.accessSSTable(); err != nil {
			return nil, false, err
		}
	}
	v, ok := db.mem[key]
	if !ok {
		return nil, false, nil
	}
	return append([]byte(nil), v...), true, nil
}

// Version counts applied batches, including replayed ones.
func (db *DB) Version() uint64 {
	return db.version
}

// MakeSnapshot captures the current contents.
func (db *DB) MakeSnapshot() *Snapshot {
	db.log.Infof("make snapshot at version %d", db.version)
	entries := make([]entry, 0, len(db.mem))
	for k, v := range db.mem {
		entries = append(entries, entry{key: k, value: v})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].key < entries[j].key })
	return &Snapshot{db: db, entries: entries, version: db.version}
}

type entry struct {
	key   string
	value []byte
}

// Snapshot is an immutable view of the database at one version.
type Snapshot struct {
	db      *DB
	entries []entry
	version uint64
}

func (s *Snapshot) Version() uint64 {
	return s.version
}

func (s *Snapshot) Len() int {
	return len(s.entries)
}

// MakeIterator returns an iterator positioned at the first key.
func (s *Snapshot) MakeIterator() *Iterator {
	return &Iterator{snap: s}
}

// Iterator walks a snapshot in key order.
type Iterator struct {
	snap *Snapshot
	pos  int
	err  error
}

func (it *Iterator) SeekToFirst() {
	it.pos = 0
}

// Seek positions the iterator at the first key >= key.
func (it *Iterator) Seek(key string) {
	it.pos = sort.Search(len(it.snap.entries), func(i int) bool { return it.snap.entries[i].key >= key })
}

func (it *Iterator) Valid() bool {
	return it.err == nil && it.pos < len(it.snap.entries)
}

func (it *Iterator) Key() string {
	return it.snap.entries[it.pos].key
}

func (it *Iterator) Value() []byte {
	return append([]byte(nil), it.snap.entries[it.pos].value...)
}

// Next advances; a cache miss costs a disk read.
func (it *Iterator) Next() {
	if it.snap.db.cache.IteratorCacheMiss() {
		it.err = it.snap.db.accessSSTable()
	}
	it.pos++
}

// Err returns the error that invalidated the iterator, if any.
func (it *Iterator) Err() error {
	return it.err
}
