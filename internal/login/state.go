package login

// ConnectionState represents the bootstrap progress of a login connection.
type ConnectionState int

const (
	StateConnected   ConnectionState = iota // TCP connected, nothing read
	StateSeeded                             // seed received
	StateDetected                           // login key matched
	StateUnencrypted                        // probe arrived in plaintext
	StateUndetected                         // no candidate key matched
)

func (s ConnectionState) String() string {
	switch s {
	case StateConnected:
		return "CONNECTED"
	case StateSeeded:
		return "SEEDED"
	case StateDetected:
		return "DETECTED"
	case StateUnencrypted:
		return "UNENCRYPTED"
	case StateUndetected:
		return "UNDETECTED"
	default:
		return "UNKNOWN"
	}
}
