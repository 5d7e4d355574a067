package chunk

import (
	"sort"

	"github.com/KilimcininKorOglu/mvstore/internal/storage"
	"github.com/KilimcininKorOglu/mvstore/internal/storage/codec"
	"github.com/cespare/xxhash/v2"
	"github.com/google/uuid"
)

// Chunk layout constants.
//
// Header (32 bytes):
//   - Bytes 0-3:   Magic ("MVCK")
//   - Bytes 4-7:   Chunk id (uint32 LE)
//   - Bytes 8-23:  Store id (UUID)
//   - Bytes 24-25: Format version (uint16 LE)
//   - Bytes 26-31: Reserved
//
// Pages follow the header back to back. The footer closes the chunk:
//
//	varint id | varint pageCount | varlong length | varlong version |
//	varint rootCount | { varint nameLen | name | uint64 position }* |
//	16 bytes store id | uint16 check | uint32 footerLen | "MVCF"
//
// length is the byte size of the header and pages, which is also the
// footer's offset. footerLen counts the bytes before itself, check
// included.
const (
	HeaderSize    = 32
	FormatVersion = 1

	headerMagic = "MVCK"
	footerMagic = "MVCF"
	trailerSize = 8
)

// Meta describes a sealed chunk.
type Meta struct {
	ID        uint32
	PageCount int
	Length    int64
	Version   uint64
	StoreID   uuid.UUID
	Roots     map[string]codec.Position
}

// RootNames returns the table names recorded in the footer, sorted.
func (m *Meta) RootNames() []string {
	names := make([]string, 0, len(m.Roots))
	for name := range m.Roots {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func appendHeader(w *codec.Writer, id uint32, storeID uuid.UUID) {
	w.Write([]byte(headerMagic))
	w.WriteUint32(id)
	w.Write(storeID[:])
	w.WriteUint16(FormatVersion)
	for w.Len() < HeaderSize {
		w.WriteByte(0)
	}
}

func appendFooter(w *codec.Writer, m *Meta) {
	start := w.Len()
	w.WriteVarInt(m.ID)
	w.WriteVarInt(uint32(m.PageCount))
	w.WriteVarLong(uint64(m.Length))
	w.WriteVarLong(m.Version)
	names := m.RootNames()
	w.WriteVarInt(uint32(len(names)))
	for _, name := range names {
		w.WriteVarInt(uint32(len(name)))
		w.Write([]byte(name))
		w.WriteUint64(uint64(m.Roots[name]))
	}
	w.Write(m.StoreID[:])
	body := w.Bytes()[start:]
	w.WriteUint16(footerCheck(body))
	w.WriteUint32(uint32(w.Len() - start))
	w.Write([]byte(footerMagic))
}

func footerCheck(body []byte) uint16 {
	return codec.CheckValue(uint32(xxhash.Sum64(body)))
}

// parseChunk validates the header and footer of a whole chunk image.
func parseChunk(id uint32, data []byte) (*Meta, error) {
	if len(data) < HeaderSize+trailerSize {
		return nil, storage.Truncatedf("chunk %d is %d bytes", id, len(data))
	}

	hr := codec.NewReader(data[:HeaderSize])
	magic, _ := hr.ReadBytes(4)
	if string(magic) != headerMagic {
		return nil, storage.Corruptf("chunk %d: bad header magic %q", id, magic)
	}
	hid, _ := hr.ReadUint32()
	if hid != id {
		return nil, storage.Corruptf("chunk %d: header names chunk %d", id, hid)
	}
	idBytes, _ := hr.ReadBytes(16)
	var headerStore uuid.UUID
	copy(headerStore[:], idBytes)
	if v, _ := hr.ReadUint16(); v != FormatVersion {
		return nil, storage.Corruptf("chunk %d: format version %d", id, v)
	}

	trailer := codec.NewReader(data[len(data)-trailerSize:])
	footerLen, _ := trailer.ReadUint32()
	tail, _ := trailer.ReadBytes(4)
	if string(tail) != footerMagic {
		return nil, storage.Corruptf("chunk %d: bad footer magic %q", id, tail)
	}
	footerStart := len(data) - trailerSize - int(footerLen)
	if int(footerLen) < 2 || footerStart < HeaderSize {
		return nil, storage.Corruptf("chunk %d: footer length %d", id, footerLen)
	}
	footer := data[footerStart : len(data)-trailerSize]
	body := footer[:len(footer)-2]
	cr := codec.NewReader(footer[len(footer)-2:])
	check, _ := cr.ReadUint16()
	if check != footerCheck(body) {
		return nil, storage.Corruptf("chunk %d: footer check mismatch", id)
	}

	r := codec.NewReader(body)
	m := &Meta{Roots: make(map[string]codec.Position)}
	var err error
	if m.ID, err = r.ReadVarInt(); err != nil {
		return nil, err
	}
	pages, err := r.ReadVarInt()
	if err != nil {
		return nil, err
	}
	m.PageCount = int(pages)
	length, err := r.ReadVarLong()
	if err != nil {
		return nil, err
	}
	m.Length = int64(length)
	if m.Version, err = r.ReadVarLong(); err != nil {
		return nil, err
	}
	count, err := r.ReadVarInt()
	if err != nil {
		return nil, err
	}
	for i := uint32(0); i < count; i++ {
		n, err := r.ReadVarInt()
		if err != nil {
			return nil, err
		}
		name, err := r.ReadBytes(int(n))
		if err != nil {
			return nil, err
		}
		pos, err := r.ReadUint64()
		if err != nil {
			return nil, err
		}
		m.Roots[string(name)] = codec.Position(pos)
	}
	sid, err := r.ReadBytes(16)
	if err != nil {
		return nil, err
	}
	copy(m.StoreID[:], sid)

	if m.ID != id {
		return nil, storage.Corruptf("chunk %d: footer names chunk %d", id, m.ID)
	}
	if m.StoreID != headerStore {
		return nil, storage.Corruptf("chunk %d: header and footer store ids differ", id)
	}
	if m.Length != int64(footerStart) {
		return nil, storage.Corruptf("chunk %d: footer records length %d, footer starts at %d", id, m.Length, footerStart)
	}
	return m, nil
}
