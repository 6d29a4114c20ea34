// Package handshake detects the protocol version and login key of a new
// connection from the first bytes it sends.
//
// The first packet of every session is the fixed-size login request. Its
// plaintext carries a known opcode and zero padding at fixed offsets, so a
// candidate key is accepted when decrypting the probe with it reproduces that
// pattern. Candidates are tried in order and the first match wins.
package handshake

import (
	"bytes"
	"fmt"

	"github.com/udisondev/uologin/internal/constants"
	"github.com/udisondev/uologin/internal/crypto"
	"github.com/udisondev/uologin/internal/transport"
)

// Result is the outcome of a detection attempt.
// A failed detection is a normal Result with a nil Cipher.
type Result struct {
	// Data holds the decrypted probe bytes on success, otherwise the raw bytes.
	Data []byte

	// Cipher is the matched cipher, already advanced past Data.
	Cipher  *crypto.LoginCrypt
	Key     crypto.KeyTriple
	Version crypto.Version

	// Unencrypted is set when the raw bytes already carry the fingerprint.
	Unencrypted bool

	// Attempts is the number of candidate keys tried.
	Attempts int
}

// Detected reports whether a key was matched.
func (r Result) Detected() bool {
	return r.Cipher != nil
}

// Detector runs the candidate search against an immutable key table.
// It keeps no per-call state and is safe for concurrent use.
type Detector struct {
	table *crypto.KeyTable
}

// NewDetector creates a Detector over table. A nil table selects the built-in one.
func NewDetector(table *crypto.KeyTable) *Detector {
	if table == nil {
		table = crypto.DefaultKeyTable()
	}
	return &Detector{table: table}
}

// Table returns the key table the detector searches.
func (d *Detector) Table() *crypto.KeyTable {
	return d.table
}

type candidate struct {
	version crypto.Version
	key     crypto.KeyTriple
}

// Detect reads up to ProbeLength bytes from src and searches for the key that
// decrypts them into a login request.
//
// Reading stops early when src has no data available; a short probe still
// runs the full search and simply fails to match. defaultVersion, when not
// nil, is tried before the table entries.
//
// The returned error is non-nil only if src fails to deliver a byte it
// reported as available. An unmatched probe is not an error.
func (d *Detector) Detect(seed uint32, src transport.ByteSource, defaultVersion *crypto.Version) (Result, error) {
	var raw [constants.ProbeLength]byte
	n := 0
	for n < len(raw) && src.DataAvailable() {
		b, err := src.ReadByte()
		if err != nil {
			return Result{}, fmt.Errorf("reading probe byte %d: %w", n, err)
		}
		raw[n] = b
		n++
	}
	probe := raw[:n]

	if MatchesFingerprint(probe) {
		return Result{Data: bytes.Clone(probe), Unencrypted: true}, nil
	}

	candidates := d.candidates(defaultVersion)
	scratch := make([]byte, n)
	for i, c := range candidates {
		lc := crypto.NewLoginCrypt(seed, c.key)
		lc.Decrypt(scratch, probe)
		if MatchesFingerprint(scratch) {
			return Result{
				Data:     scratch,
				Cipher:   lc,
				Key:      c.key,
				Version:  c.version,
				Attempts: i + 1,
			}, nil
		}
	}

	return Result{Data: bytes.Clone(probe), Attempts: len(candidates)}, nil
}

// candidates returns the search order: defaultVersion, then the table.
// Duplicates are kept.
func (d *Detector) candidates(defaultVersion *crypto.Version) []candidate {
	out := make([]candidate, 0, d.table.Len()+1)
	if defaultVersion != nil {
		out = append(out, candidate{version: *defaultVersion, key: d.table.KeyFor(*defaultVersion)})
	}
	for i := range d.table.Len() {
		e := d.table.At(i)
		out = append(out, candidate{version: e.Version, key: e.Key})
	}
	return out
}

// MatchesFingerprint reports whether b looks like a plaintext login request:
// the opcode at offset 0 and zero padding at 21..30 and 51..60.
// Buffers too short to hold offset 60 never match.
func MatchesFingerprint(b []byte) bool {
	last := constants.FingerprintZeroEnd + constants.FingerprintZeroStride
	if len(b) <= last {
		return false
	}
	if b[0] != constants.FingerprintMarker || b[constants.FingerprintZeroEnd] != 0 || b[last] != 0 {
		return false
	}
	for i := constants.FingerprintZeroStart; i <= constants.FingerprintZeroEnd; i++ {
		if b[i] != 0 || b[i+constants.FingerprintZeroStride] != 0 {
			return false
		}
	}
	return true
}
