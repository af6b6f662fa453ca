package storage

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"io"
	"os"
	"sort"
)

// indexStride is N: one sparse index entry is emitted per N data records.
const indexStride = 10

const (
	dataFileExt  = ".data"
	indexFileExt = ".index"
)

// sstableIndexEntry is one (key, offset) pair in the sparse index, kept in
// ascending key order.
type sstableIndexEntry struct {
	key    []byte
	offset int64
}

// SSTableWriter materializes a memtable's in-order traversal as a new
// SSTable: a data file of ascending records and a sparse index file
// referencing every Nth record.
type SSTableWriter struct {
	stem       string
	dataFile   *os.File
	dataWriter *bufio.Writer
	index      []sstableIndexEntry
	offset     int64
	records    uint64
}

// NewSSTableWriter creates the data file for a new SSTable at the given
// path stem (no extension). The index file is written on Finish.
func NewSSTableWriter(stem string) (*SSTableWriter, error) {
	f, err := os.Create(stem + dataFileExt)
	if err != nil {
		return nil, err
	}
	return &SSTableWriter{
		stem:       stem,
		dataFile:   f,
		dataWriter: bufio.NewWriterSize(f, 64*1024),
	}, nil
}

// Add appends one record. Records must be added in ascending key order;
// the writer emits an index entry for the 0th, Nth, 2Nth, ... record.
func (w *SSTableWriter) Add(key, value []byte) error {
	if w.records%indexStride == 0 {
		w.index = append(w.index, sstableIndexEntry{
			key:    append([]byte{}, key...),
			offset: w.offset,
		})
	}

	if err := binary.Write(w.dataWriter, binary.LittleEndian, uint32(len(key))); err != nil {
		return err
	}
	if _, err := w.dataWriter.Write(key); err != nil {
		return err
	}
	if err := binary.Write(w.dataWriter, binary.LittleEndian, uint32(len(value))); err != nil {
		return err
	}
	if _, err := w.dataWriter.Write(value); err != nil {
		return err
	}

	w.offset += int64(4 + len(key) + 4 + len(value))
	w.records++
	return nil
}

// Finish flushes and closes the data file, then writes the index file.
func (w *SSTableWriter) Finish() error {
	if err := w.dataWriter.Flush(); err != nil {
		return err
	}
	if err := w.dataFile.Sync(); err != nil {
		return err
	}
	if err := w.dataFile.Close(); err != nil {
		return err
	}

	indexFile, err := os.Create(w.stem + indexFileExt)
	if err != nil {
		return err
	}
	iw := bufio.NewWriterSize(indexFile, 64*1024)

	if err := binary.Write(iw, binary.LittleEndian, uint64(len(w.index))); err != nil {
		indexFile.Close()
		return err
	}
	for _, e := range w.index {
		if err := binary.Write(iw, binary.LittleEndian, uint32(len(e.key))); err != nil {
			indexFile.Close()
			return err
		}
		if _, err := iw.Write(e.key); err != nil {
			indexFile.Close()
			return err
		}
		if err := binary.Write(iw, binary.LittleEndian, uint64(e.offset)); err != nil {
			indexFile.Close()
			return err
		}
	}
	if err := iw.Flush(); err != nil {
		indexFile.Close()
		return err
	}
	if err := indexFile.Sync(); err != nil {
		indexFile.Close()
		return err
	}
	return indexFile.Close()
}

// Abort discards a partially written SSTable, removing whatever files
// were created so far.
func (w *SSTableWriter) Abort() error {
	w.dataFile.Close()
	os.Remove(w.stem + dataFileExt)
	os.Remove(w.stem + indexFileExt)
	return nil
}

// Stem returns the SSTable's path stem (shared by both files).
func (w *SSTableWriter) Stem() string {
	return w.stem
}

// SSTable is an opened, immutable on-disk sorted string table: a loaded
// sparse index plus a path to the data file. Readers open their own file
// handle per lookup; no handle is held open between calls.
type SSTable struct {
	stem  string
	index []sstableIndexEntry
}

// OpenSSTable loads the index file at stem+".index" and verifies the
// sibling data file exists.
func OpenSSTable(stem string) (*SSTable, error) {
	if _, err := os.Stat(stem + dataFileExt); err != nil {
		return nil, err
	}

	f, err := os.Open(stem + indexFileExt)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := bufio.NewReader(f)
	var count uint64
	if err := binary.Read(r, binary.LittleEndian, &count); err != nil {
		return nil, ErrCorruptedSSTable
	}

	index := make([]sstableIndexEntry, 0, count)
	for i := uint64(0); i < count; i++ {
		var keySize uint32
		if err := binary.Read(r, binary.LittleEndian, &keySize); err != nil {
			return nil, ErrCorruptedSSTable
		}
		key := make([]byte, keySize)
		if _, err := io.ReadFull(r, key); err != nil {
			return nil, ErrCorruptedSSTable
		}
		var offset uint64
		if err := binary.Read(r, binary.LittleEndian, &offset); err != nil {
			return nil, ErrCorruptedSSTable
		}
		index = append(index, sstableIndexEntry{key: key, offset: int64(offset)})
	}

	return &SSTable{stem: stem, index: index}, nil
}

// Get performs a sparse binary search followed by a short forward linear
// scan through the data file.
func (s *SSTable) Get(key []byte) (GetStatus, []byte, error) {
	if len(s.index) == 0 {
		return Absent, nil, nil
	}

	// Largest index entry with key <= target.
	pos := sort.Search(len(s.index), func(i int) bool {
		return bytes.Compare(s.index[i].key, key) > 0
	})

	var startOffset int64
	if pos == 0 {
		startOffset = s.index[0].offset
	} else {
		startOffset = s.index[pos-1].offset
	}

	f, err := os.Open(s.stem + dataFileExt)
	if err != nil {
		return Absent, nil, err
	}
	defer f.Close()

	if _, err := f.Seek(startOffset, io.SeekStart); err != nil {
		return Absent, nil, err
	}
	r := bufio.NewReader(f)

	for {
		var keySize uint32
		if err := binary.Read(r, binary.LittleEndian, &keySize); err != nil {
			if err == io.EOF {
				return Absent, nil, nil
			}
			return Absent, nil, err
		}
		recKey := make([]byte, keySize)
		if _, err := io.ReadFull(r, recKey); err != nil {
			return Absent, nil, err
		}
		var valueSize uint32
		if err := binary.Read(r, binary.LittleEndian, &valueSize); err != nil {
			return Absent, nil, err
		}
		recValue := make([]byte, valueSize)
		if _, err := io.ReadFull(r, recValue); err != nil {
			return Absent, nil, err
		}

		switch bytes.Compare(recKey, key) {
		case 0:
			if IsTombstone(recValue) {
				return Deleted, nil, nil
			}
			return Found, recValue, nil
		case 1:
			return Absent, nil, nil
		}
	}
}

// Iterate streams every record in the data file in ascending key order,
// including tombstones, calling fn for each. It stops and returns fn's
// error if fn returns one.
func (s *SSTable) Iterate(fn func(key, value []byte) error) error {
	f, err := os.Open(s.stem + dataFileExt)
	if err != nil {
		return err
	}
	defer f.Close()

	r := bufio.NewReaderSize(f, 64*1024)
	for {
		var keySize uint32
		if err := binary.Read(r, binary.LittleEndian, &keySize); err != nil {
			if err == io.EOF {
				return nil
			}
			return err
		}
		key := make([]byte, keySize)
		if _, err := io.ReadFull(r, key); err != nil {
			return err
		}
		var valueSize uint32
		if err := binary.Read(r, binary.LittleEndian, &valueSize); err != nil {
			return err
		}
		value := make([]byte, valueSize)
		if _, err := io.ReadFull(r, value); err != nil {
			return err
		}
		if err := fn(key, value); err != nil {
			return err
		}
	}
}

// Stem returns the SSTable's path stem.
func (s *SSTable) Stem() string {
	return s.stem
}

// IndexEntryCount returns the number of sparse index entries.
func (s *SSTable) IndexEntryCount() int {
	return len(s.index)
}

// Remove deletes both files belonging to this SSTable.
func (s *SSTable) Remove() error {
	err1 := os.Remove(s.stem + dataFileExt)
	err2 := os.Remove(s.stem + indexFileExt)
	if err1 != nil {
		return err1
	}
	return err2
}
