package protocol

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/udisondev/uologin/internal/constants"
	"github.com/udisondev/uologin/internal/crypto"
)

// ErrInvalidSeedPacket is returned for a malformed 0xEF seed packet.
var ErrInvalidSeedPacket = errors.New("invalid seed packet")

// Seed is the per-connection value the client opens the login stream with.
type Seed struct {
	Value uint32

	// Version is the client version carried by the 0xEF seed packet.
	// Nil for the legacy 4-byte form.
	Version *crypto.Version

	// Prototype is the fourth version word of the seed packet.
	Prototype uint32
}

// ReadSeed reads either the legacy 4-byte big-endian seed or the 21-byte
// 0xEF seed packet.
func ReadSeed(r io.Reader) (Seed, error) {
	var head [constants.LegacySeedSize]byte
	if _, err := io.ReadFull(r, head[:]); err != nil {
		return Seed{}, fmt.Errorf("reading seed: %w", err)
	}
	if head[0] != constants.SeedPacketOpcode {
		return Seed{Value: binary.BigEndian.Uint32(head[:])}, nil
	}

	var pkt [constants.SeedPacketSize]byte
	copy(pkt[:], head[:])
	if _, err := io.ReadFull(r, pkt[len(head):]); err != nil {
		return Seed{}, fmt.Errorf("reading seed packet: %w", err)
	}
	return parseSeedPacket(pkt[:])
}

func parseSeedPacket(pkt []byte) (Seed, error) {
	if len(pkt) != constants.SeedPacketSize || pkt[0] != constants.SeedPacketOpcode {
		return Seed{}, ErrInvalidSeedPacket
	}
	v := &crypto.Version{
		Major: binary.BigEndian.Uint32(pkt[5:]),
		Minor: binary.BigEndian.Uint32(pkt[9:]),
		Patch: binary.BigEndian.Uint32(pkt[13:]),
	}
	if v.Major == 0 {
		return Seed{}, fmt.Errorf("%w: zero major version", ErrInvalidSeedPacket)
	}
	return Seed{
		Value:     binary.BigEndian.Uint32(pkt[1:]),
		Version:   v,
		Prototype: binary.BigEndian.Uint32(pkt[17:]),
	}, nil
}

// EncodeSeed writes s in the form a client would send it: the 0xEF packet
// when s carries a version, the bare 4 bytes otherwise.
func EncodeSeed(buf []byte, s Seed) (int, error) {
	if s.Version == nil {
		if len(buf) < constants.LegacySeedSize {
			return 0, fmt.Errorf("writing seed: %w", ErrBufferOverflow)
		}
		binary.BigEndian.PutUint32(buf, s.Value)
		return constants.LegacySeedSize, nil
	}

	if len(buf) < constants.SeedPacketSize {
		return 0, fmt.Errorf("writing seed packet: %w", ErrBufferOverflow)
	}
	buf[0] = constants.SeedPacketOpcode
	binary.BigEndian.PutUint32(buf[1:], s.Value)
	binary.BigEndian.PutUint32(buf[5:], s.Version.Major)
	binary.BigEndian.PutUint32(buf[9:], s.Version.Minor)
	binary.BigEndian.PutUint32(buf[13:], s.Version.Patch)
	binary.BigEndian.PutUint32(buf[17:], s.Prototype)
	return constants.SeedPacketSize, nil
}
