package constants

// Login Protocol Constants
//
// Wire-level constants of the login phase. The values are fixed by the client
// binaries and must stay bit-exact.

// Probe Constants
const (
	// ProbeLength is the size of the probe window read at the start of a connection.
	// It equals the size of the first login packet (0x80 login request).
	ProbeLength = 62

	// FingerprintMarker is the expected opcode of the first decrypted packet (offset 0).
	FingerprintMarker = 0x80

	// FingerprintZeroStart is the first offset of the zero-padded account name tail
	FingerprintZeroStart = 21

	// FingerprintZeroEnd is the last offset (inclusive) of the zero-padded account name tail
	FingerprintZeroEnd = 30

	// FingerprintZeroStride is the distance between the account tail and the parallel password tail (51..60)
	FingerprintZeroStride = 30
)

// Login Request Packet Structure (opcode 0x80)
//
//	[opcode 1 byte]
//	[account name 30 bytes, zero padded]
//	[password 30 bytes, zero padded]
//	[next login key 1 byte]
//	Total: 62 bytes
const (
	LoginRequestOpcode         = 0x80
	LoginRequestAccountOffset  = 1
	LoginRequestPasswordOffset = 31
	LoginRequestFieldSize      = 30
	LoginRequestNextKeyOffset  = 61
	LoginRequestSize           = 62
)

// Seed Constants
//
// Older clients open the connection with a bare 4-byte big-endian seed.
// Newer clients send a seed packet:
//
//	[opcode 0xEF 1 byte]
//	[seed 4 bytes BE]
//	[major, minor, revision, prototype 4×4 bytes BE]
//	Total: 21 bytes
const (
	// LegacySeedSize is the size of the bare seed
	LegacySeedSize = 4

	// SeedPacketOpcode starts the 21-byte seed packet
	SeedPacketOpcode = 0xEF

	// SeedPacketSize is the total size of the seed packet
	SeedPacketSize = 21
)

// Server Default Constants
const (
	// DefaultLoginPort is the conventional login port
	DefaultLoginPort = 2593

	// DefaultReadBufSize is the read buffer size for post-handshake session traffic
	DefaultReadBufSize = 4096
)
