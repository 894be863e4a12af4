package qkd

import (
	"errors"
	"testing"

	"github.com/entangle-io/qkd/qkd/bitarray"
)

func TestGenerateTagRoundTrip(t *testing.T) {
	key := bitarray.NewDense([]byte{0xde, 0xad, 0xbe, 0xef}, 32)
	secret := bitarray.NewDense([]byte{0xb7, 0x1c}, 16)

	tag, err := generateTag(key, secret)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tag.Size() != 16 {
		t.Fatalf("got tag of %d bits, want len(secret)", tag.Size())
	}
	if !verifyTag(key, tag, secret) {
		t.Error("freshly generated tag does not verify")
	}
}

func TestGenerateTagCapsLength(t *testing.T) {
	key := bitarray.NewDense([]byte{0xff, 0x00, 0xff, 0x00}, 32)
	secret := bitarray.NewDense([]byte{0x12, 0x34, 0x56, 0x78, 0x9a, 0xbc}, 48)
	tag, err := generateTag(key, secret)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tag.Size() != maxTagBits {
		t.Errorf("got tag of %d bits, want cap %d", tag.Size(), maxTagBits)
	}
}

func TestVerifyTagRejectsTampering(t *testing.T) {
	key := bitarray.NewDense([]byte{0xde, 0xad, 0xbe, 0xef}, 32)
	secret := bitarray.NewDense([]byte{0xb7, 0x1c}, 16)
	tag, err := generateTag(key, secret)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	tampered := bitarray.NewDense(key.Data(), key.Size())
	tampered.Flip(5)
	if verifyTag(tampered, tag, secret) {
		t.Error("tag verified against a tampered key")
	}

	badTag := bitarray.NewDense(tag.Data(), tag.Size())
	badTag.Flip(0)
	if verifyTag(key, badTag, secret) {
		t.Error("tampered tag verified")
	}

	short, err := tag.Slice(0, tag.Size()-1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if verifyTag(key, short, secret) {
		t.Error("truncated tag verified")
	}
}

func TestGenerateTagErrors(t *testing.T) {
	secret := bitarray.NewDense([]byte{0xff}, 8)
	if _, err := generateTag(bitarray.Empty(), secret); !errors.Is(err, errNoKeyMaterial) {
		t.Errorf("empty key error == %v, want errNoKeyMaterial", err)
	}
	key := bitarray.NewDense([]byte{0xff}, 8)
	if _, err := generateTag(key, bitarray.Empty()); err == nil {
		t.Error("empty secret accepted")
	}
}

func TestEnhancedTagRoundTrip(t *testing.T) {
	key := bitarray.NewDense([]byte{0xde, 0xad, 0xbe, 0xef, 0x01, 0x23}, 48)
	secret := []byte("correct horse battery staple")

	tag, err := generateEnhancedTag(key, secret)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(tag) != enhancedTagBytes {
		t.Fatalf("got tag of %d bytes, want %d", len(tag), enhancedTagBytes)
	}
	if !verifyEnhancedTag(key, tag, secret) {
		t.Error("freshly generated tag does not verify")
	}
	if verifyEnhancedTag(key, tag, []byte("wrong secret")) {
		t.Error("tag verified under the wrong secret")
	}

	tampered := bitarray.NewDense(key.Data(), key.Size())
	tampered.Flip(17)
	if verifyEnhancedTag(tampered, tag, secret) {
		t.Error("tag verified against a tampered key")
	}
}

func TestEnhancedTagBindsLength(t *testing.T) {
	// Two keys with identical packed bytes but different bit lengths must not
	// share a tag.
	a := bitarray.NewDense([]byte{0xff, 0x0f}, 16)
	b := bitarray.NewDense([]byte{0xff, 0x0f}, 12)
	secret := []byte("pre-shared")

	ta, err := generateEnhancedTag(a, secret)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	tb, err := generateEnhancedTag(b, secret)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(ta) == string(tb) {
		t.Error("tags collide across key lengths")
	}
}

func TestSessionAuthenticate(t *testing.T) {
	key := bitarray.NewDense([]byte{0x5a, 0xa5, 0x3c, 0xc3}, 32)
	secret := []byte{0x42, 0x17}

	tcs := []struct {
		name    string
		mode    AuthMode
		wantTag bool
	}{
		{name: "none", mode: AuthNone},
		{name: "preshared", mode: AuthPreShared, wantTag: true},
		{name: "enhanced", mode: AuthEnhanced, wantTag: true},
	}
	for _, tc := range tcs {
		t.Run(tc.name, func(t *testing.T) {
			opts := Options{AuthenticationMode: tc.mode}
			if tc.mode != AuthNone {
				opts.PreSharedSecret = secret
			}
			s, err := NewSession(opts)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			tag, err := s.authenticate(key)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if tc.wantTag == (len(tag) == 0) {
				t.Fatalf("got tag of %d bytes, wantTag == %v", len(tag), tc.wantTag)
			}
			if !s.VerifyKey(key.Data(), key.Size(), tag) {
				t.Error("session does not verify its own tag")
			}
			if tc.wantTag {
				bad := append([]byte{}, tag...)
				bad[0] ^= 1
				if s.VerifyKey(key.Data(), key.Size(), bad) {
					t.Error("corrupted tag verified")
				}
			}
		})
	}
}

func TestNewSessionRequiresSecret(t *testing.T) {
	for _, mode := range []AuthMode{AuthPreShared, AuthEnhanced} {
		if _, err := NewSession(Options{AuthenticationMode: mode}); err == nil {
			t.Errorf("mode %v accepted without a pre-shared secret", mode)
		}
	}
}
