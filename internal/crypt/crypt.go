// Package crypt implements the optional encryption envelope:
// salt ∥ iv ∥ AES-256-CBC(compressed stream) with PKCS#7 padding,
// keyed by PBKDF2-HMAC-SHA256. The compression codecs never call this
// package directly — it wraps their output as an independent layer —
// but the dispatcher composes the two.
package crypt

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"io"

	"golang.org/x/crypto/pbkdf2"

	"github.com/quiflern/filecompress/internal/codec"
)

const component = "crypt"

const (
	saltLen    = 8
	ivLen      = 16
	keyLen     = 32
	iterations = 10000
)

func deriveKey(password string, salt []byte) []byte {
	return pbkdf2.Key([]byte(password), salt, iterations, keyLen, sha256.New)
}

// Encrypt reads the entire compressed stream from r, encrypts it with
// AES-256-CBC under a key derived from password, and writes
// salt ∥ iv ∥ ciphertext to w.
func Encrypt(w io.Writer, r io.Reader, password string) error {
	plaintext, err := io.ReadAll(r)
	if err != nil {
		return codec.New(component, codec.Io, "read plaintext: %w", err)
	}

	salt := make([]byte, saltLen)
	if _, err := rand.Read(salt); err != nil {
		return codec.New(component, codec.CryptoFailure, "generate salt: %w", err)
	}
	iv := make([]byte, ivLen)
	if _, err := rand.Read(iv); err != nil {
		return codec.New(component, codec.CryptoFailure, "generate iv: %w", err)
	}

	key := deriveKey(password, salt)
	block, err := aes.NewCipher(key)
	if err != nil {
		return codec.New(component, codec.CryptoFailure, "init cipher: %w", err)
	}

	padded := pkcs7Pad(plaintext, block.BlockSize())
	ciphertext := make([]byte, len(padded))
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(ciphertext, padded)

	if _, err := w.Write(salt); err != nil {
		return codec.New(component, codec.Io, "write salt: %w", err)
	}
	if _, err := w.Write(iv); err != nil {
		return codec.New(component, codec.Io, "write iv: %w", err)
	}
	if _, err := w.Write(ciphertext); err != nil {
		return codec.New(component, codec.Io, "write ciphertext: %w", err)
	}
	return nil
}

// Decrypt is the inverse of Encrypt. A wrong password surfaces as
// CryptoFailure via a PKCS#7 unpadding failure.
func Decrypt(w io.Writer, r io.Reader, password string) error {
	header := make([]byte, saltLen+ivLen)
	if _, err := io.ReadFull(r, header); err != nil {
		return codec.New(component, codec.Truncated, "truncated envelope header: %w", err)
	}
	salt, iv := header[:saltLen], header[saltLen:]

	ciphertext, err := io.ReadAll(r)
	if err != nil {
		return codec.New(component, codec.Io, "read ciphertext: %w", err)
	}
	block, err := aes.NewCipher(deriveKey(password, salt))
	if err != nil {
		return codec.New(component, codec.CryptoFailure, "init cipher: %w", err)
	}
	if len(ciphertext) == 0 || len(ciphertext)%block.BlockSize() != 0 {
		return codec.New(component, codec.CryptoFailure, "ciphertext is not a multiple of the block size")
	}

	plaintext := make([]byte, len(ciphertext))
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(plaintext, ciphertext)

	unpadded, err := pkcs7Unpad(plaintext, block.BlockSize())
	if err != nil {
		return codec.New(component, codec.CryptoFailure, "invalid padding (likely wrong password): %w", err)
	}
	if _, err := w.Write(unpadded); err != nil {
		return codec.New(component, codec.Io, "write plaintext: %w", err)
	}
	return nil
}

func pkcs7Pad(data []byte, blockSize int) []byte {
	padLen := blockSize - len(data)%blockSize
	padding := bytes.Repeat([]byte{byte(padLen)}, padLen)
	return append(append([]byte{}, data...), padding...)
}

func pkcs7Unpad(data []byte, blockSize int) ([]byte, error) {
	if len(data) == 0 || len(data)%blockSize != 0 {
		return nil, codec.New(component, codec.CryptoFailure, "padded data is not block-aligned")
	}
	padLen := int(data[len(data)-1])
	if padLen == 0 || padLen > blockSize || padLen > len(data) {
		return nil, codec.New(component, codec.CryptoFailure, "invalid PKCS#7 padding length")
	}
	for _, b := range data[len(data)-padLen:] {
		if int(b) != padLen {
			return nil, codec.New(component, codec.CryptoFailure, "inconsistent PKCS#7 padding bytes")
		}
	}
	return data[:len(data)-padLen], nil
}
