package model

import "time"

// Detection is one login bootstrap outcome stored in the history.
type Detection struct {
	RemoteIP    string
	Seed        uint32
	Detected    bool
	Unencrypted bool

	// Version and key words are empty/zero when nothing was detected.
	Version string
	Key1    uint32
	Key2    uint32
	Key3    uint32

	ProbeLength int
	Attempts    int
	CreatedAt   time.Time
}
