package zipcrypto

import (
	"errors"
	"hash/crc32"
)

// HeaderSize is the length of the encryption header preceding the entry data.
const HeaderSize = 12

const (
	key0Init = 0x12345678
	key1Init = 0x23456789
	key2Init = 0x34567890

	key1Multiplier = 134775813
)

var (
	// ErrEmptyPassword is returned when a cipher is requested without a password.
	ErrEmptyPassword = errors.New("zipcrypto: empty password")
	// ErrPassword is returned when the encryption header does not match the password.
	ErrPassword = errors.New("zipcrypto: invalid password")
)

// keys is the running cipher state.
type keys [3]uint32

// newKeys initializes the state with the password bytes.
func newKeys(password []byte) *keys {
	k := &keys{key0Init, key1Init, key2Init}
	for _, b := range password {
		k.update(b)
	}

	return k
}

// update mixes a plaintext byte into the state.
func (k *keys) update(b byte) {
	k[0] = crc32Update(k[0], b)
	k[1] += k[0] & 0xff
	k[1] = k[1]*key1Multiplier + 1
	k[2] = crc32Update(k[2], byte(k[1]>>24))
}

// stream returns the next keystream byte.
func (k *keys) stream() byte {
	t := uint16(k[2] | 2)

	return byte((uint32(t) * uint32(t^1)) >> 8)
}

// encrypt enciphers buf in place.
func (k *keys) encrypt(buf []byte) {
	for i, p := range buf {
		buf[i] = p ^ k.stream()
		k.update(p)
	}
}

// decrypt deciphers buf in place.
func (k *keys) decrypt(buf []byte) {
	for i, c := range buf {
		p := c ^ k.stream()
		buf[i] = p
		k.update(p)
	}
}

// crc32Update advances a CRC-32 register by one byte without the final inversion.
func crc32Update(crc uint32, b byte) uint32 {
	return crc32.IEEETable[byte(crc)^b] ^ (crc >> 8)
}
