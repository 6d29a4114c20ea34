package crypto

// Register seeding masks. Shared by all protocol versions.
const (
	seedMaskLow  = 0x00001357
	seedMaskHigh = 0xffffaaaa
	seedMask1    = 0x43210000
	seedMask2    = 0xabcdffff
)

// LoginCrypt implements the rolling XOR stream cipher of the login phase.
//
// Each byte is XORed with the low byte of the first register, then the two
// registers are advanced by a rotate/XOR step keyed by the KeyTriple.
// Encryption and decryption are the same operation.
//
// A LoginCrypt belongs to exactly one connection and is not safe for
// concurrent use. There is no way to rewind it: decrypting the same stream
// again requires a new instance built from the same seed and key.
type LoginCrypt struct {
	reg [2]uint32
	key KeyTriple
}

// NewLoginCrypt derives the initial registers from seed and returns a cipher
// positioned at the start of the stream.
func NewLoginCrypt(seed uint32, key KeyTriple) *LoginCrypt {
	return &LoginCrypt{
		reg: seedRegisters(seed),
		key: key,
	}
}

func seedRegisters(seed uint32) [2]uint32 {
	return [2]uint32{
		((^seed ^ seedMaskLow) << 16) | ((seed ^ seedMaskHigh) & 0x0000ffff),
		((seed ^ seedMask1) >> 16) | ((^seed ^ seedMask2) & 0xffff0000),
	}
}

// Transform writes min(len(dst), len(src)) transformed bytes to dst and
// returns the count. dst and src may be the same slice.
func (c *LoginCrypt) Transform(dst, src []byte) int {
	n := min(len(dst), len(src))
	for i := range n {
		dst[i] = src[i] ^ byte(c.reg[0])
		c.step()
	}
	return n
}

// Encrypt is Transform.
func (c *LoginCrypt) Encrypt(dst, src []byte) int {
	return c.Transform(dst, src)
}

// Decrypt is Transform.
func (c *LoginCrypt) Decrypt(dst, src []byte) int {
	return c.Transform(dst, src)
}

// Key returns the key triple the cipher was built with.
func (c *LoginCrypt) Key() KeyTriple {
	return c.key
}

// Registers returns a snapshot of the current register words.
func (c *LoginCrypt) Registers() [2]uint32 {
	return c.reg
}

func (c *LoginCrypt) step() {
	r0, r1 := c.reg[0], c.reg[1]
	c.reg[1] = (((((r1 >> 1) | (r0 << 31)) ^ c.key.K1) >> 1) | (r0 << 31)) ^ c.key.K2
	c.reg[0] = ((r0 >> 1) | (r1 << 31)) ^ c.key.K3
}
