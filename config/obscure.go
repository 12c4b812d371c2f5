package config

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
)

// cryptKey is a fixed, publicly-known AES key: obscuring exists only to
// keep a credential from being casually readable over someone's
// shoulder or in a careless `cat config.toml`, not to provide real
// secrecy. Anyone who can read the config file can reverse this.
var cryptKey = []byte{
	0x9c, 0x93, 0x5b, 0x48, 0x73, 0x0a, 0x55, 0x4d,
	0x6b, 0xfd, 0x7c, 0x63, 0xc8, 0x86, 0xa9, 0x2b,
	0xd3, 0x90, 0x19, 0x8e, 0xb8, 0x12, 0x8a, 0xfb,
	0xf4, 0xde, 0x16, 0x2b, 0x8b, 0x95, 0xf6, 0x38,
}

// cryptRand is overridden in tests to produce a deterministic IV.
var cryptRand io.Reader = rand.Reader

// Obscure encodes plaintext (an SMB/NFS password) so it is not stored in
// the config file as-is. Obscuring is reversible by design; see Reveal.
func Obscure(plaintext string) (string, error) {
	block, err := aes.NewCipher(cryptKey)
	if err != nil {
		return "", fmt.Errorf("failed to create cipher: %w", err)
	}
	iv := make([]byte, aes.BlockSize)
	if _, err := io.ReadFull(cryptRand, iv); err != nil {
		return "", fmt.Errorf("failed to read random IV: %w", err)
	}
	data := []byte(plaintext)
	out := make([]byte, len(iv)+len(data))
	copy(out, iv)
	stream := cipher.NewCFBEncrypter(block, iv)
	stream.XORKeyStream(out[len(iv):], data)
	return base64.RawURLEncoding.EncodeToString(out), nil
}

// MustObscure is Obscure, panicking on error, for config defaults
// computed at init time from a literal string.
func MustObscure(plaintext string) string {
	obscured, err := Obscure(plaintext)
	if err != nil {
		panic(err)
	}
	return obscured
}

// Reveal decodes a password Obscure previously produced.
func Reveal(obscured string) (string, error) {
	out, err := base64.RawURLEncoding.DecodeString(obscured)
	if err != nil {
		return "", fmt.Errorf("base64 decode failed when revealing password - is it obscured?: %w", err)
	}
	if len(out) < aes.BlockSize {
		return "", errors.New("input too short when revealing password - is it obscured?")
	}
	block, err := aes.NewCipher(cryptKey)
	if err != nil {
		return "", fmt.Errorf("failed to create cipher: %w", err)
	}
	iv, data := out[:aes.BlockSize], out[aes.BlockSize:]
	plaintext := make([]byte, len(data))
	stream := cipher.NewCFBDecrypter(block, iv)
	stream.XORKeyStream(plaintext, data)
	return string(plaintext), nil
}

// MustReveal is Reveal, panicking on error.
func MustReveal(obscured string) string {
	plaintext, err := Reveal(obscured)
	if err != nil {
		panic(err)
	}
	return plaintext
}
