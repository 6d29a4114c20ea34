package protocol

import (
	"fmt"

	"github.com/udisondev/uologin/internal/constants"
)

// BuildLoginRequest writes the plaintext 0x80 login request into buf and
// returns its size (always LoginRequestSize).
func BuildLoginRequest(buf []byte, account, password string, nextKey byte) (int, error) {
	w := NewPacketWriter(buf)
	if err := w.WriteByte(constants.LoginRequestOpcode); err != nil {
		return 0, fmt.Errorf("writing opcode: %w", err)
	}
	if err := w.WriteFixedString(account, constants.LoginRequestFieldSize); err != nil {
		return 0, fmt.Errorf("writing account: %w", err)
	}
	if err := w.WriteFixedString(password, constants.LoginRequestFieldSize); err != nil {
		return 0, fmt.Errorf("writing password: %w", err)
	}
	if err := w.WriteByte(nextKey); err != nil {
		return 0, fmt.Errorf("writing next login key: %w", err)
	}
	return w.Position(), nil
}
