package apk

import (
	"encoding/binary"
	"errors"
	"fmt"
	"unicode/utf16"
)

const (
	chunkStringPool = 0x0001
	chunkTable      = 0x0002
	chunkPackage    = 0x0200
	chunkType       = 0x0201

	chunkHeaderSize = 8

	poolFlagUTF8 = 1 << 8

	typeFlagSparse   = 0x01
	typeFlagOffset16 = 0x02

	entryFlagComplex = 0x0001
	entryFlagCompact = 0x0008

	valueTypeString = 0x03

	noEntry32 = 0xFFFFFFFF
	noEntry16 = 0xFFFF

	// minConfigSize covers size, mcc, mnc, language and country.
	minConfigSize = 12
)

// ErrMalformedTable is returned for resource tables that cannot be decoded.
var ErrMalformedTable = errors.New("apk: malformed resource table")

// Locale is the language and region of a resource configuration.
type Locale struct {
	// Language is a lowercase ISO-639 code, empty for the default configuration.
	Language string
	// Region is an uppercase ISO-3166 code or UN M.49 number, possibly empty.
	Region string
}

// String formats the locale as "en-US", "en" or "default".
func (l Locale) String() string {
	switch {
	case l.Language == "":
		return "default"
	case l.Region == "":
		return l.Language
	default:
		return l.Language + "-" + l.Region
	}
}

// Candidate is one configuration-specific value of a resource.
type Candidate struct {
	Locale Locale
	Value  string
}

type resourceTable struct {
	values map[uint32][]Candidate
}

type chunk struct {
	kind       uint16
	headerSize uint32
	data       []byte
}

func readChunk(data []byte, offset uint32) (chunk, error) {
	if uint64(offset)+chunkHeaderSize > uint64(len(data)) {
		return chunk{}, fmt.Errorf("%w: chunk header at %d", ErrMalformedTable, offset)
	}

	header := data[offset:]
	headerSize := uint32(binary.LittleEndian.Uint16(header[2:]))
	size := binary.LittleEndian.Uint32(header[4:])

	if headerSize < chunkHeaderSize || size < headerSize || uint64(size) > uint64(len(header)) {
		return chunk{}, fmt.Errorf("%w: chunk at %d", ErrMalformedTable, offset)
	}

	return chunk{
		kind:       binary.LittleEndian.Uint16(header),
		headerSize: headerSize,
		data:       header[:size],
	}, nil
}

// children calls fn for every chunk nested in c.
func (c chunk) children(fn func(chunk) error) error {
	for offset := c.headerSize; offset < uint32(len(c.data)); {
		child, err := readChunk(c.data, offset)
		if err != nil {
			return err
		}

		if err = fn(child); err != nil {
			return err
		}

		offset += uint32(len(child.data))
	}

	return nil
}

func parseResourceTable(data []byte) (*resourceTable, error) {
	root, err := readChunk(data, 0)
	if err != nil {
		return nil, err
	}

	if root.kind != chunkTable {
		return nil, fmt.Errorf("%w: unexpected root chunk 0x%04x", ErrMalformedTable, root.kind)
	}

	table := &resourceTable{values: make(map[uint32][]Candidate)}

	var pool []string

	err = root.children(func(c chunk) error {
		switch c.kind {
		case chunkStringPool:
			if pool != nil {
				return nil
			}

			parsed, perr := parseStringPool(c)
			pool = parsed

			return perr
		case chunkPackage:
			return table.addPackage(c, pool)
		default:
			return nil
		}
	})
	if err != nil {
		return nil, err
	}

	return table, nil
}

func (t *resourceTable) addPackage(c chunk, pool []string) error {
	if c.headerSize < 12 {
		return fmt.Errorf("%w: package header", ErrMalformedTable)
	}

	packageID := binary.LittleEndian.Uint32(c.data[8:]) & 0xFF

	return c.children(func(child chunk) error {
		if child.kind != chunkType {
			return nil
		}

		return t.addType(child, packageID, pool)
	})
}

func (t *resourceTable) addType(c chunk, packageID uint32, pool []string) error {
	if c.headerSize < 20+minConfigSize {
		return fmt.Errorf("%w: type header", ErrMalformedTable)
	}

	d := c.data
	typeID := uint32(d[8])
	flags := d[9]
	entryCount := binary.LittleEndian.Uint32(d[12:])
	entriesStart := binary.LittleEndian.Uint32(d[16:])

	locale := Locale{
		Language: unpackLanguage(d[28], d[29]),
		Region:   unpackRegion(d[30], d[31]),
	}

	offsets, err := entryOffsets(d[c.headerSize:], flags, entryCount)
	if err != nil {
		return err
	}

	for _, e := range offsets {
		start := uint64(entriesStart) + uint64(e.offset)

		value, ok, err := stringEntry(d, start, pool)
		if err != nil {
			return err
		}

		if !ok {
			continue
		}

		id := packageID<<24 | typeID<<16 | e.index
		t.values[id] = append(t.values[id], Candidate{Locale: locale, Value: value})
	}

	return nil
}

type entryOffset struct {
	index  uint32
	offset uint32
}

func entryOffsets(d []byte, flags uint8, count uint32) ([]entryOffset, error) {
	width := uint64(4)
	if flags&typeFlagOffset16 != 0 && flags&typeFlagSparse == 0 {
		width = 2
	}

	if uint64(count)*width > uint64(len(d)) {
		return nil, fmt.Errorf("%w: entry offsets", ErrMalformedTable)
	}

	offsets := make([]entryOffset, 0, count)

	for i := range count {
		switch {
		case flags&typeFlagSparse != 0:
			pos := i * 4
			offsets = append(offsets, entryOffset{
				index:  uint32(binary.LittleEndian.Uint16(d[pos:])),
				offset: uint32(binary.LittleEndian.Uint16(d[pos+2:])) * 4,
			})
		case width == 2:
			raw := binary.LittleEndian.Uint16(d[i*2:])
			if raw != noEntry16 {
				offsets = append(offsets, entryOffset{index: i, offset: uint32(raw) * 4})
			}
		default:
			raw := binary.LittleEndian.Uint32(d[i*4:])
			if raw != noEntry32 {
				offsets = append(offsets, entryOffset{index: i, offset: raw})
			}
		}
	}

	return offsets, nil
}

// stringEntry decodes the entry at start and reports whether it holds a string.
func stringEntry(d []byte, start uint64, pool []string) (string, bool, error) {
	if start+8 > uint64(len(d)) {
		return "", false, fmt.Errorf("%w: entry at %d", ErrMalformedTable, start)
	}

	entry := d[start:]
	flags := binary.LittleEndian.Uint16(entry[2:])

	var (
		dataType uint8
		data     uint32
	)

	switch {
	case flags&entryFlagCompact != 0:
		dataType = uint8(flags >> 8)
		data = binary.LittleEndian.Uint32(entry[4:])
	case flags&entryFlagComplex != 0:
		return "", false, nil
	default:
		size := uint64(binary.LittleEndian.Uint16(entry))
		if size+8 > uint64(len(entry)) {
			return "", false, fmt.Errorf("%w: value at %d", ErrMalformedTable, start)
		}

		dataType = entry[size+3]
		data = binary.LittleEndian.Uint32(entry[size+4:])
	}

	if dataType != valueTypeString {
		return "", false, nil
	}

	if uint64(data) >= uint64(len(pool)) {
		return "", false, fmt.Errorf("%w: string index %d", ErrMalformedTable, data)
	}

	return pool[data], true, nil
}

func parseStringPool(c chunk) ([]string, error) {
	if c.headerSize < 28 {
		return nil, fmt.Errorf("%w: string pool header", ErrMalformedTable)
	}

	d := c.data
	count := binary.LittleEndian.Uint32(d[8:])
	flags := binary.LittleEndian.Uint32(d[16:])
	stringsStart := uint64(binary.LittleEndian.Uint32(d[20:]))

	if uint64(c.headerSize)+uint64(count)*4 > uint64(len(d)) || stringsStart > uint64(len(d)) {
		return nil, fmt.Errorf("%w: string pool offsets", ErrMalformedTable)
	}

	pool := make([]string, count)

	for i := range count {
		offset := uint64(binary.LittleEndian.Uint32(d[c.headerSize+i*4:]))
		if stringsStart+offset >= uint64(len(d)) {
			return nil, fmt.Errorf("%w: string %d", ErrMalformedTable, i)
		}

		var (
			s   string
			err error
		)

		if flags&poolFlagUTF8 != 0 {
			s, err = decodeUTF8(d[stringsStart+offset:])
		} else {
			s, err = decodeUTF16(d[stringsStart+offset:])
		}

		if err != nil {
			return nil, fmt.Errorf("string %d: %w", i, err)
		}

		pool[i] = s
	}

	return pool, nil
}

// decodeUTF8 reads the character count, the byte count and the bytes.
func decodeUTF8(b []byte) (string, error) {
	_, n, ok := utf8Length(b)
	if !ok {
		return "", ErrMalformedTable
	}

	size, m, ok := utf8Length(b[n:])
	if !ok || n+m+size > len(b) {
		return "", ErrMalformedTable
	}

	return string(b[n+m : n+m+size]), nil
}

func utf8Length(b []byte) (int, int, bool) {
	if len(b) < 1 {
		return 0, 0, false
	}

	if b[0]&0x80 == 0 {
		return int(b[0]), 1, true
	}

	if len(b) < 2 {
		return 0, 0, false
	}

	return int(b[0]&0x7F)<<8 | int(b[1]), 2, true
}

func decodeUTF16(b []byte) (string, error) {
	if len(b) < 2 {
		return "", ErrMalformedTable
	}

	length := int(binary.LittleEndian.Uint16(b))
	n := 2

	if length&0x8000 != 0 {
		if len(b) < 4 {
			return "", ErrMalformedTable
		}

		length = (length&0x7FFF)<<16 | int(binary.LittleEndian.Uint16(b[2:]))
		n = 4
	}

	if n+length*2 > len(b) {
		return "", ErrMalformedTable
	}

	units := make([]uint16, length)
	for i := range units {
		units[i] = binary.LittleEndian.Uint16(b[n+i*2:])
	}

	return string(utf16.Decode(units)), nil
}

// unpackLanguage decodes a two-letter code or the packed three-letter form.
func unpackLanguage(a, b byte) string {
	return unpackCode(a, b, 'a')
}

func unpackRegion(a, b byte) string {
	return unpackCode(a, b, '0')
}

func unpackCode(a, b, base byte) string {
	if a == 0 && b == 0 {
		return ""
	}

	if a&0x80 == 0 {
		return string([]byte{a, b})
	}

	first := b & 0x1F
	second := (b&0xE0)>>5 | (a&0x03)<<3
	third := (a & 0x7C) >> 2

	return string([]byte{first + base, second + base, third + base})
}
