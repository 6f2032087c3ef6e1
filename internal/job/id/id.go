// Package id generates job identifiers.
package id

import (
	"crypto/rand"
	"encoding/binary"
	"encoding/hex"
	"io"
	"time"
)

const layout = "20060102T150405"

// Generate returns a new job ID such as "mux-20251018T150405-a1b2c3d4".
// IDs sort by creation second and are safe to use as file names.
func Generate() string {
	return generate(time.Now().UTC(), rand.Reader)
}

func generate(now time.Time, entropy io.Reader) string {
	suffix := make([]byte, 4)
	if _, err := io.ReadFull(entropy, suffix); err != nil {
		binary.BigEndian.PutUint32(suffix, uint32(now.UnixNano()))
	}
	return "mux-" + now.Format(layout) + "-" + hex.EncodeToString(suffix)
}
