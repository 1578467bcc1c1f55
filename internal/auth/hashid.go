package auth

import (
	"encoding/hex"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/blake2b"
)

// HashIDLength is the length of every id and token minted here.
const HashIDLength = 2 * digestSize

const digestSize = 16

// NewID returns an opaque id derived from the current time and a fresh UUID.
func NewID() string {
	return digest(timestamp(time.Now()), uuid.NewString())
}

// NewToken derives a user secret from the name, the current time and a fresh UUID.
// Uniqueness against existing users is the caller's job.
func NewToken(name string) string {
	return digest(name, timestamp(time.Now()), uuid.NewString())
}

func digest(parts ...string) string {
	h, err := blake2b.New(digestSize, nil)
	if err != nil {
		// Only returned for invalid sizes or keys.
		panic(err)
	}
	h.Write([]byte(strings.Join(parts, "_")))
	return hex.EncodeToString(h.Sum(nil))
}

func timestamp(t time.Time) string {
	return strconv.FormatInt(t.UnixNano(), 10)
}
