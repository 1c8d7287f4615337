/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package journal

import (
	"bufio"
	"encoding/binary"
	"io"
	"os"
	"path/filepath"
	"reflect"
	"sync"

	jsoniter "github.com/json-iterator/go"
	"github.com/pkg/errors"
)

var jsonAPI = jsoniter.ConfigCompatibleWithStandardLibrary

// fileRecord is the on-disk envelope for one journal entry: a sequence
// number, the event's registered type name, and the jsoniter-encoded
// payload. The type name lets Replay reconstruct the original concrete
// type instead of a generic map.
type fileRecord struct {
	SeqNr uint64              `json:"seq"`
	Type  string              `json:"type"`
	Event jsoniter.RawMessage `json:"event"`
}

// File is a durable Journal backend: one append-only file per entity,
// storing length-prefixed jsoniter records as a persisted write-ahead
// log, keyed per entity rather than per node.
type File struct {
	dir string

	mu      sync.Mutex
	handles map[string]*fileLog
}

type fileLog struct {
	mu   sync.Mutex
	f    *os.File
	next uint64
}

// NewFile constructs a File journal rooted at dir, creating it if needed.
func NewFile(dir string) (*File, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.WithMessagef(err, "could not create journal dir %q", dir)
	}
	return &File{dir: dir, handles: map[string]*fileLog{}}, nil
}

func (f *File) path(entityID string) string {
	return filepath.Join(f.dir, entityID+".journal")
}

func (f *File) logFor(entityID string) (*fileLog, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if l, ok := f.handles[entityID]; ok {
		return l, nil
	}

	fh, err := os.OpenFile(f.path(entityID), os.O_CREATE|os.O_RDWR|os.O_APPEND, 0o644)
	if err != nil {
		return nil, errors.WithMessagef(err, "could not open journal file for %q", entityID)
	}

	next, err := nextSeqFromFile(fh)
	if err != nil {
		return nil, errors.WithMessagef(err, "could not recover journal file for %q", entityID)
	}

	l := &fileLog{f: fh, next: next}
	f.handles[entityID] = l
	return l, nil
}

func nextSeqFromFile(fh *os.File) (uint64, error) {
	if _, err := fh.Seek(0, io.SeekStart); err != nil {
		return 0, err
	}
	r := bufio.NewReader(fh)
	var next uint64
	for {
		rec, ok, err := readOneRecord(r)
		if err != nil {
			return 0, err
		}
		if !ok {
			break
		}
		next = rec.SeqNr + 1
	}
	if _, err := fh.Seek(0, io.SeekEnd); err != nil {
		return 0, err
	}
	return next, nil
}

func readOneRecord(r *bufio.Reader) (fileRecord, bool, error) {
	var length uint32
	if err := binary.Read(r, binary.BigEndian, &length); err != nil {
		if err == io.EOF {
			return fileRecord{}, false, nil
		}
		return fileRecord{}, false, err
	}
	buf := make([]byte, length)
	if _, err := io.ReadFull(r, buf); err != nil {
		return fileRecord{}, false, err
	}
	var rec fileRecord
	if err := jsonAPI.Unmarshal(buf, &rec); err != nil {
		return fileRecord{}, false, err
	}
	return rec, true, nil
}

func (f *File) Append(entityID string, event interface{}) (uint64, error) {
	l, err := f.logFor(entityID)
	if err != nil {
		return 0, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	payload, err := jsonAPI.Marshal(event)
	if err != nil {
		return 0, errors.WithMessage(err, "could not encode event for journal")
	}

	seq := l.next
	rec := fileRecord{SeqNr: seq, Type: reflect.TypeOf(event).Name(), Event: payload}
	buf, err := jsonAPI.Marshal(rec)
	if err != nil {
		return 0, errors.WithMessage(err, "could not encode journal record")
	}

	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(buf)))
	if _, err := l.f.Write(lenBuf[:]); err != nil {
		return 0, errors.WithMessage(err, "journal write failed")
	}
	if _, err := l.f.Write(buf); err != nil {
		return 0, errors.WithMessage(err, "journal write failed")
	}
	if err := l.f.Sync(); err != nil {
		return 0, errors.WithMessage(err, "journal fsync failed")
	}

	l.next++
	return seq, nil
}

// decodeRecord reconstructs the original event type via the package's
// type registry. An unregistered type name yields the raw JSON-decoded
// map instead of failing replay outright, since citycat's inspection
// path must still be able to print events no Register call ever covered
// (e.g. a future entity kind's event type).
func decodeRecord(rec fileRecord) (interface{}, error) {
	t, ok := typeByName(rec.Type)
	if !ok {
		var generic interface{}
		if err := jsonAPI.Unmarshal(rec.Event, &generic); err != nil {
			return nil, err
		}
		return generic, nil
	}
	ptr := reflect.New(t)
	if err := jsonAPI.Unmarshal(rec.Event, ptr.Interface()); err != nil {
		return nil, err
	}
	return ptr.Elem().Interface(), nil
}

func (f *File) Replay(entityID string, fromSeq uint64) ([]Record, error) {
	l, err := f.logFor(entityID)
	if err != nil {
		return nil, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if _, err := l.f.Seek(0, io.SeekStart); err != nil {
		return nil, err
	}
	defer l.f.Seek(0, io.SeekEnd)

	r := bufio.NewReader(l.f)
	var out []Record
	for {
		rec, ok, err := readOneRecord(r)
		if err != nil {
			return nil, errors.WithMessage(err, "journal replay failed")
		}
		if !ok {
			break
		}
		if rec.SeqNr < fromSeq {
			continue
		}
		event, err := decodeRecord(rec)
		if err != nil {
			return nil, errors.WithMessagef(err, "journal replay decode failed for seq %d", rec.SeqNr)
		}
		out = append(out, Record{SeqNr: rec.SeqNr, Event: event})
	}
	return out, nil
}

// Truncate is a compaction hint only: the file backend rewrites the file
// keeping only records with SeqNr > upToSeq. Failure is non-fatal; the
// journal simply keeps carrying the extra, already-snapshotted records.
func (f *File) Truncate(entityID string, upToSeq uint64) error {
	l, err := f.logFor(entityID)
	if err != nil {
		return err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if _, err := l.f.Seek(0, io.SeekStart); err != nil {
		return err
	}
	r := bufio.NewReader(l.f)
	var kept []fileRecord
	for {
		var length uint32
		if err := binary.Read(r, binary.BigEndian, &length); err != nil {
			if err == io.EOF {
				break
			}
			return err
		}
		buf := make([]byte, length)
		if _, err := io.ReadFull(r, buf); err != nil {
			return err
		}
		var rec fileRecord
		if err := jsonAPI.Unmarshal(buf, &rec); err != nil {
			return err
		}
		if rec.SeqNr > upToSeq {
			kept = append(kept, rec)
		}
	}

	tmpPath := f.path(entityID) + ".tmp"
	tmp, err := os.OpenFile(tmpPath, os.O_CREATE|os.O_RDWR|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	for _, rec := range kept {
		buf, err := jsonAPI.Marshal(rec)
		if err != nil {
			tmp.Close()
			return err
		}
		var lenBuf [4]byte
		binary.BigEndian.PutUint32(lenBuf[:], uint32(len(buf)))
		if _, err := tmp.Write(lenBuf[:]); err != nil {
			tmp.Close()
			return err
		}
		if _, err := tmp.Write(buf); err != nil {
			tmp.Close()
			return err
		}
	}
	if err := tmp.Close(); err != nil {
		return err
	}

	l.f.Close()
	if err := os.Rename(tmpPath, f.path(entityID)); err != nil {
		return err
	}

	fh, err := os.OpenFile(f.path(entityID), os.O_CREATE|os.O_RDWR|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	l.f = fh
	return nil
}
