// Package keys implements snekcloud's text-armored 32-byte key format and
// the X25519 long-term identity keypairs it wraps.
package keys

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/Trivernis/snekcloud-go/internal/snerr"
	"golang.org/x/crypto/curve25519"
)

const (
	privateHeader = "---BEGIN-SNEKCLOUD-PRIVATE-KEY---\n"
	privateFooter = "\n---END-SNEKCLOUD-PRIVATE-KEY---"
	publicHeader  = "---BEGIN-SNEKCLOUD-PUBLIC-KEY---\n"
	publicFooter  = "\n---END-SNEKCLOUD-PUBLIC-KEY---"

	keyLen = 32
)

// Kind distinguishes which header/footer pair to use when armoring.
type Kind int

const (
	Private Kind = iota
	Public
)

// PrivateKey is a 32-byte X25519 scalar, the node's long-term secret identity.
type PrivateKey [keyLen]byte

// PublicKey is a 32-byte X25519 point derived from a PrivateKey.
type PublicKey [keyLen]byte

// GeneratePrivateKey creates a fresh random private key.
func GeneratePrivateKey() (PrivateKey, error) {
	var key PrivateKey
	if _, err := rand.Read(key[:]); err != nil {
		return key, snerr.Wrap(snerr.IO, fmt.Errorf("read random bytes: %w", err))
	}
	// Clamp per RFC 7748 so the scalar is a valid X25519 private key.
	key[0] &= 248
	key[31] &= 127
	key[31] |= 64
	return key, nil
}

// PublicKey derives the public key matching this private key.
func (k PrivateKey) PublicKey() (PublicKey, error) {
	var pub PublicKey
	out, err := curve25519.X25519(k[:], curve25519.Basepoint)
	if err != nil {
		return pub, fmt.Errorf("derive public key: %w", err)
	}
	copy(pub[:], out)
	return pub, nil
}

// Armor wraps a 32-byte key in snekcloud's text-armor header/footer.
func Armor(kind Kind, key [keyLen]byte) string {
	encoded := base64.StdEncoding.EncodeToString(key[:])
	switch kind {
	case Private:
		return privateHeader + encoded + privateFooter
	default:
		return publicHeader + encoded + publicFooter
	}
}

// ArmorPrivateKey is a convenience wrapper for Armor(Private, ...).
func ArmorPrivateKey(key PrivateKey) string {
	return Armor(Private, key)
}

// ArmorPublicKey is a convenience wrapper for Armor(Public, ...).
func ArmorPublicKey(key PublicKey) string {
	return Armor(Public, key)
}

// Unarmor strips the header/footer for kind and base64-decodes the body,
// failing with an InvalidKey error if the envelope or length is wrong.
func Unarmor(kind Kind, content string) ([keyLen]byte, error) {
	var out [keyLen]byte
	header, footer := publicHeader, publicFooter
	if kind == Private {
		header, footer = privateHeader, privateFooter
	}

	body, ok := strings.CutPrefix(content, header)
	if !ok {
		return out, snerr.Wrap(snerr.InvalidKey, fmt.Errorf("missing header"))
	}
	body, ok = strings.CutSuffix(body, footer)
	if !ok {
		return out, snerr.Wrap(snerr.InvalidKey, fmt.Errorf("missing footer"))
	}

	decoded, err := base64.StdEncoding.DecodeString(body)
	if err != nil {
		return out, snerr.Wrap(snerr.InvalidKey, snerr.Wrap(snerr.Base64Decode, err))
	}
	if len(decoded) != keyLen {
		return out, snerr.Wrap(snerr.InvalidKey, fmt.Errorf("expected %d bytes, got %d", keyLen, len(decoded)))
	}
	copy(out[:], decoded)
	return out, nil
}

// UnarmorPrivateKey parses an armored private key.
func UnarmorPrivateKey(content string) (PrivateKey, error) {
	raw, err := Unarmor(Private, content)
	return PrivateKey(raw), err
}

// UnarmorPublicKey parses an armored public key.
func UnarmorPublicKey(content string) (PublicKey, error) {
	raw, err := Unarmor(Public, content)
	return PublicKey(raw), err
}
