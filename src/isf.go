package otkernel

/*------------------------------------------------------------------
 *
 * Purpose:   	Indexed short files (ISF) holding the device settings,
 *		scan sequences, beacon sequence and RTC schedule.
 *
 * Description:	All multi-byte values are big endian no matter what the
 *		host is, because that is how they are stored and sent.
 *		Reads past the end of a file return zero rather than fail,
 *		callers check Len() when it matters.
 *
 *---------------------------------------------------------------*/

import (
	"encoding/binary"

	"github.com/pkg/errors"
)

var ErrNoSuchFile = errors.New("no such ISF file")

type ConfigStore interface {
	Open(id uint8) (*ISFFile, error)
}

type ISFFile struct {
	ID   uint8
	Data []byte
}

func (f *ISFFile) Len() int {
	return len(f.Data)
}

func (f *ISFFile) Byte(offset int) uint8 {
	if offset < 0 || offset >= len(f.Data) {
		return 0
	}

	return f.Data[offset]
}

func (f *ISFFile) Uint16(offset int) uint16 {
	if offset < 0 || offset+2 > len(f.Data) {
		return 0
	}

	return binary.BigEndian.Uint16(f.Data[offset:])
}

func (f *ISFFile) Slice(offset int, length int) []byte {
	var out = make([]byte, length)
	if offset >= 0 && offset < len(f.Data) {
		copy(out, f.Data[offset:])
	}

	return out
}

func (f *ISFFile) PutUint16(offset int, value uint16) error {
	if offset < 0 || offset+2 > len(f.Data) {
		return errors.Errorf("ISF %#02x: write of 2 bytes at %d is past the end (%d)", f.ID, offset, len(f.Data))
	}

	binary.BigEndian.PutUint16(f.Data[offset:], value)

	return nil
}

/*
 * In-memory store.  Files are shared, not copied, so writes through an
 * opened file are seen by later opens.
 */

type MemoryStore struct {
	files map[uint8]*ISFFile
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{files: make(map[uint8]*ISFFile)}
}

func (m *MemoryStore) Put(id uint8, data []byte) {
	m.files[id] = &ISFFile{ID: id, Data: data}
}

func (m *MemoryStore) Open(id uint8) (*ISFFile, error) {
	var f, ok = m.files[id]
	if !ok {
		return nil, errors.Wrapf(ErrNoSuchFile, "ISF %#02x", id)
	}

	return f, nil
}
