package qkd

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/zeebo/blake3"
	"golang.org/x/crypto/hkdf"

	"github.com/entangle-io/qkd/qkd/bitarray"
)

const (
	// maxTagBits caps the simple universal-hash tag length.
	maxTagBits = 32

	// enhancedTagBytes is the truncated keyed-BLAKE3 tag length.
	enhancedTagBytes = 16
)

// authInfo is the HKDF domain-separation label for enhanced-mode MAC
// subkeys, so the pre-shared secret is never used raw for two purposes.
var authInfo = []byte("qkd/authenticator/v1")

// errNoKeyMaterial is returned when authentication is requested for an empty
// key.
var errNoKeyMaterial = errors.New("no key material to authenticate")

// generateTag computes the keyed universal-hash MAC over the final key: tag
// bit i XORs together key[(i+j) mod len(key)] over all set secret positions
// j, with tag length min(32, len(secret)). This is a simple universal-hash
// MAC, not an HMAC; its guarantees do not extend beyond the simulation's
// scope.
func generateTag(key, secret bitarray.Dense) (bitarray.Dense, error) {
	if key.Size() == 0 {
		return bitarray.Empty(), errNoKeyMaterial
	}
	if secret.Size() == 0 {
		return bitarray.Empty(), errors.New("empty authentication secret")
	}
	tagLen := secret.Size()
	if tagLen > maxTagBits {
		tagLen = maxTagBits
	}
	var tag bitarray.Dense
	for i := 0; i < tagLen; i++ {
		bit := false
		for j := 0; j < secret.Size(); j++ {
			if secret.Get(j) && key.Get((i+j)%key.Size()) {
				bit = !bit
			}
		}
		tag.AppendBit(bit)
	}
	return tag, nil
}

// verifyTag recomputes the universal-hash tag and compares. Any length or
// bit mismatch means not authentic.
func verifyTag(key, tag, secret bitarray.Dense) bool {
	want, err := generateTag(key, secret)
	if err != nil {
		return false
	}
	if want.Size() != tag.Size() {
		return false
	}
	return subtle.ConstantTimeCompare(want.Data(), tag.Data()) == 1
}

// generateEnhancedTag derives a 32-byte MAC subkey from the pre-shared
// secret via HKDF-SHA256 and tags the key bits (length-bound) with keyed
// BLAKE3, truncated to enhancedTagBytes.
func generateEnhancedTag(key bitarray.Dense, secret []byte) ([]byte, error) {
	if key.Size() == 0 {
		return nil, errNoKeyMaterial
	}
	if len(secret) == 0 {
		return nil, errors.New("empty authentication secret")
	}
	macKey := make([]byte, 32)
	if _, err := io.ReadFull(hkdf.New(sha256.New, secret, nil, authInfo), macKey); err != nil {
		return nil, fmt.Errorf("deriving MAC subkey: %w", err)
	}
	h, err := blake3.NewKeyed(macKey)
	if err != nil {
		return nil, fmt.Errorf("keying MAC: %w", err)
	}
	var lenBuf [8]byte
	binary.LittleEndian.PutUint64(lenBuf[:], uint64(key.Size()))
	h.Write(lenBuf[:])
	h.Write(key.Data())
	return h.Sum(nil)[:enhancedTagBytes], nil
}

// verifyEnhancedTag recomputes the enhanced tag and compares in constant
// time.
func verifyEnhancedTag(key bitarray.Dense, tag, secret []byte) bool {
	want, err := generateEnhancedTag(key, secret)
	if err != nil {
		return false
	}
	if len(want) != len(tag) {
		return false
	}
	return subtle.ConstantTimeCompare(want, tag) == 1
}

// authenticate tags the final key per the session's authentication mode.
func (s *Session) authenticate(key bitarray.Dense) ([]byte, error) {
	switch s.opts.AuthenticationMode {
	case AuthNone:
		return nil, nil
	case AuthPreShared:
		tag, err := generateTag(key, s.secret)
		if err != nil {
			return nil, err
		}
		return tag.Data(), nil
	case AuthEnhanced:
		return generateEnhancedTag(key, s.opts.PreSharedSecret)
	default:
		return nil, fmt.Errorf("unknown authentication mode %d", s.opts.AuthenticationMode)
	}
}

// VerifyKey reports whether tag authenticates the given bit-packed key under
// the session's authentication mode and pre-shared secret. Rejecting a key
// whose tag does not verify is the consuming side's responsibility.
func (s *Session) VerifyKey(key []byte, keyBits int, tag []byte) bool {
	bits := bitarray.NewDense(key, keyBits)
	switch s.opts.AuthenticationMode {
	case AuthNone:
		return len(tag) == 0
	case AuthPreShared:
		tagLen := s.secret.Size()
		if tagLen > maxTagBits {
			tagLen = maxTagBits
		}
		return verifyTag(bits, bitarray.NewDense(tag, tagLen), s.secret)
	case AuthEnhanced:
		return verifyEnhancedTag(bits, tag, s.opts.PreSharedSecret)
	default:
		return false
	}
}
