package ws

import (
	"crypto/rand"
	"encoding/hex"
)

func newConnID() string {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return ""
	}
	return hex.EncodeToString(buf)
}

// RoomKey names the room for a pair of users, independent of direction.
func RoomKey(a, b string) string {
	if a > b {
		a, b = b, a
	}
	return a + ":" + b
}
