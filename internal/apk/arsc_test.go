package apk

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/require"
)

type testEntry struct {
	index uint32
	value uint32
}

type testConfig struct {
	language string
	region   string
	entries  []testEntry
}

func le16(b []byte, v uint16) []byte { return binary.LittleEndian.AppendUint16(b, v) }

func le32(b []byte, v uint32) []byte { return binary.LittleEndian.AppendUint32(b, v) }

func pad4(b []byte) []byte {
	for len(b)%4 != 0 {
		b = append(b, 0)
	}

	return b
}

func chunkBytes(kind uint16, header, body []byte) []byte {
	out := le16(nil, kind)
	out = le16(out, uint16(chunkHeaderSize+len(header)))
	out = le32(out, uint32(chunkHeaderSize+len(header)+len(body)))
	out = append(out, header...)

	return append(out, body...)
}

func stringPoolBytes(values []string, utf8 bool) []byte {
	var offsets, data []byte

	for _, s := range values {
		offsets = le32(offsets, uint32(len(data)))

		if utf8 {
			data = append(data, byte(len([]rune(s))), byte(len(s)))
			data = append(data, s...)
			data = append(data, 0)

			continue
		}

		units := []rune(s)
		data = le16(data, uint16(len(units)))

		for _, r := range units {
			data = le16(data, uint16(r))
		}

		data = le16(data, 0)
	}

	var flags uint32
	if utf8 {
		flags = poolFlagUTF8
	}

	header := le32(nil, uint32(len(values)))
	header = le32(header, 0)
	header = le32(header, flags)
	header = le32(header, uint32(28+len(offsets)))
	header = le32(header, 0)

	return chunkBytes(chunkStringPool, header, pad4(append(offsets, data...)))
}

func typeChunkBytes(typeID uint8, entryCount uint32, cfg testConfig) []byte {
	const configSize = 64

	config := le32(nil, configSize)
	config = le16(config, 0)
	config = le16(config, 0)

	lang := [2]byte{}
	copy(lang[:], cfg.language)
	region := [2]byte{}
	copy(region[:], cfg.region)

	config = append(config, lang[0], lang[1], region[0], region[1])
	config = append(config, make([]byte, configSize-len(config))...)

	offsets := make([]uint32, entryCount)
	for i := range offsets {
		offsets[i] = noEntry32
	}

	var entries []byte

	for _, e := range cfg.entries {
		offsets[e.index] = uint32(len(entries))
		entries = le16(entries, 8)
		entries = le16(entries, 0)
		entries = le32(entries, 0)
		entries = le16(entries, 8)
		entries = append(entries, 0, valueTypeString)
		entries = le32(entries, e.value)
	}

	var offsetBytes []byte
	for _, o := range offsets {
		offsetBytes = le32(offsetBytes, o)
	}

	headerSize := chunkHeaderSize + 12 + configSize

	header := []byte{typeID, 0, 0, 0}
	header = le32(header, entryCount)
	header = le32(header, uint32(headerSize+len(offsetBytes)))
	header = append(header, config...)

	return chunkBytes(chunkType, header, append(offsetBytes, entries...))
}

func packageChunkBytes(id uint32, children ...[]byte) []byte {
	header := le32(nil, id)
	header = append(header, make([]byte, 256)...)
	header = append(header, make([]byte, 20)...)

	var body []byte
	for _, c := range children {
		body = append(body, c...)
	}

	return chunkBytes(chunkPackage, header, body)
}

func tableBytes(pool []byte, packages ...[]byte) []byte {
	body := append([]byte(nil), pool...)
	for _, p := range packages {
		body = append(body, p...)
	}

	return chunkBytes(chunkTable, le32(nil, uint32(len(packages))), body)
}

// labelTable holds app_name (0x7f010000) in fr, en and default configurations
// and an unrelated string (0x7f010001) in the default configuration only.
func labelTable(utf8 bool) []byte {
	pool := stringPoolBytes([]string{"MonApp", "MyApp", "Mein App", "Über"}, utf8)

	return tableBytes(pool, packageChunkBytes(0x7f,
		typeChunkBytes(1, 2, testConfig{language: "fr", entries: []testEntry{{index: 0, value: 0}}}),
		typeChunkBytes(1, 2, testConfig{language: "en", region: "GB", entries: []testEntry{{index: 0, value: 1}}}),
		typeChunkBytes(1, 2, testConfig{entries: []testEntry{{index: 0, value: 2}, {index: 1, value: 3}}}),
	))
}

func TestParseResourceTable(t *testing.T) {
	t.Parallel()

	for _, utf8 := range []bool{true, false} {
		table, err := parseResourceTable(labelTable(utf8))
		require.NoError(t, err)

		require.Equal(t, []Candidate{
			{Locale: Locale{Language: "fr"}, Value: "MonApp"},
			{Locale: Locale{Language: "en", Region: "GB"}, Value: "MyApp"},
			{Locale: Locale{}, Value: "Mein App"},
		}, table.values[0x7f010000])

		require.Equal(t, []Candidate{{Value: "Über"}}, table.values[0x7f010001])
		require.NotContains(t, table.values, uint32(0x7f010002))
	}
}

func TestParseResourceTableMalformed(t *testing.T) {
	t.Parallel()

	valid := labelTable(true)

	tests := []struct {
		name string
		data []byte
	}{
		{name: "empty", data: nil},
		{name: "truncated", data: valid[:len(valid)-10]},
		{name: "wrong root", data: chunkBytes(chunkStringPool, make([]byte, 20), nil)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := parseResourceTable(tt.data)
			require.ErrorIs(t, err, ErrMalformedTable)
		})
	}
}

func TestUnpackCode(t *testing.T) {
	t.Parallel()

	require.Empty(t, unpackLanguage(0, 0))
	require.Equal(t, "en", unpackLanguage('e', 'n'))
	require.Equal(t, "US", unpackRegion('U', 'S'))

	// "fil" packed as in the Android resource format.
	first, second, third := byte('f'-'a'), byte('i'-'a'), byte('l'-'a')
	packed := [2]byte{0x80 | third<<2 | second>>3, (second&0x07)<<5 | first}
	require.Equal(t, "fil", unpackLanguage(packed[0], packed[1]))
}

func TestLocaleString(t *testing.T) {
	t.Parallel()

	require.Equal(t, "default", Locale{}.String())
	require.Equal(t, "fr", Locale{Language: "fr"}.String())
	require.Equal(t, "en-US", Locale{Language: "en", Region: "US"}.String())
}
