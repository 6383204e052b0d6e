// Package adminkey hashes and verifies the bearer key guarding the admin API.
package adminkey

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"golang.org/x/crypto/argon2"
)

const (
	argonTime    uint32 = 1
	argonMemory  uint32 = 64 * 1024
	argonThreads uint8  = 4
	argonKeyLen  uint32 = 32
	argonSaltLen        = 16

	keyPrefix = "sk_admin_"
)

var ErrMalformedHash = errors.New("malformed argon2id hash")

// Generate returns a new random admin key.
func Generate() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return keyPrefix + base64.RawURLEncoding.EncodeToString(buf), nil
}

// Hash returns the encoded Argon2id hash of key.
func Hash(key string) (string, error) {
	salt := make([]byte, argonSaltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", err
	}
	hash := argon2.IDKey([]byte(key), salt, argonTime, argonMemory, argonThreads, argonKeyLen)

	saltB64 := base64.RawStdEncoding.EncodeToString(salt)
	hashB64 := base64.RawStdEncoding.EncodeToString(hash)
	return fmt.Sprintf("$argon2id$v=19$m=%d,t=%d,p=%d$%s$%s", argonMemory, argonTime, argonThreads, saltB64, hashB64), nil
}

type params struct {
	memory  uint32
	time    uint32
	threads uint8
	salt    []byte
	hash    []byte
}

func decode(encoded string) (params, error) {
	parts := strings.Split(encoded, "$")
	if len(parts) != 6 || parts[1] != "argon2id" || parts[2] != "v=19" {
		return params{}, ErrMalformedHash
	}

	var p params
	fields := strings.Split(parts[3], ",")
	if len(fields) != 3 {
		return params{}, ErrMalformedHash
	}
	for i, prefix := range []string{"m=", "t=", "p="} {
		raw, ok := strings.CutPrefix(fields[i], prefix)
		if !ok {
			return params{}, ErrMalformedHash
		}
		bits := 32
		if prefix == "p=" {
			bits = 8
		}
		v, err := strconv.ParseUint(raw, 10, bits)
		if err != nil || v == 0 {
			return params{}, ErrMalformedHash
		}
		switch prefix {
		case "m=":
			p.memory = uint32(v)
		case "t=":
			p.time = uint32(v)
		default:
			p.threads = uint8(v)
		}
	}

	var err error
	if p.salt, err = base64.RawStdEncoding.DecodeString(parts[4]); err != nil {
		return params{}, ErrMalformedHash
	}
	if p.hash, err = base64.RawStdEncoding.DecodeString(parts[5]); err != nil || len(p.hash) == 0 {
		return params{}, ErrMalformedHash
	}
	return p, nil
}

// Verify checks key against an encoded Argon2id hash.
func Verify(key, encoded string) bool {
	p, err := decode(encoded)
	if err != nil {
		return false
	}
	check := argon2.IDKey([]byte(key), p.salt, p.time, p.memory, p.threads, uint32(len(p.hash)))
	return subtle.ConstantTimeCompare(p.hash, check) == 1
}

// Verifier checks presented keys against one configured hash. The last
// accepted key is remembered by digest so repeated admin calls skip the
// Argon2 work.
type Verifier struct {
	encoded string

	mu       sync.Mutex
	accepted [sha256.Size]byte
	hasHit   bool
}

// NewVerifier validates the encoded hash. An empty hash yields a nil Verifier,
// which rejects everything.
func NewVerifier(encoded string) (*Verifier, error) {
	encoded = strings.TrimSpace(encoded)
	if encoded == "" {
		return nil, nil
	}
	if _, err := decode(encoded); err != nil {
		return nil, err
	}
	return &Verifier{encoded: encoded}, nil
}

func (v *Verifier) Enabled() bool {
	return v != nil
}

func (v *Verifier) Verify(key string) bool {
	if v == nil || key == "" {
		return false
	}
	digest := sha256.Sum256([]byte(key))

	v.mu.Lock()
	if v.hasHit && subtle.ConstantTimeCompare(v.accepted[:], digest[:]) == 1 {
		v.mu.Unlock()
		return true
	}
	v.mu.Unlock()

	if !Verify(key, v.encoded) {
		return false
	}

	v.mu.Lock()
	v.accepted = digest
	v.hasHit = true
	v.mu.Unlock()
	return true
}
