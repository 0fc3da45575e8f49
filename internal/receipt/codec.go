// Package receipt seals booking records into opaque strings suitable for QR
// codes. The format is ivhex:cipherhex, AES-256-CBC with PKCS#7 padding and a
// fresh random IV per call.
package receipt

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
)

var ErrMalformed = errors.New("receipt: malformed payload")

type Codec struct {
	block cipher.Block
}

// NewCodec builds a codec from a hex encoded 32 byte key.
func NewCodec(hexKey string) (*Codec, error) {
	key, err := hex.DecodeString(strings.TrimSpace(hexKey))
	if err != nil {
		return nil, fmt.Errorf("receipt: decode key: %w", err)
	}
	if len(key) != 32 {
		return nil, fmt.Errorf("receipt: key must be 32 bytes, got %d", len(key))
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("receipt: %w", err)
	}
	return &Codec{block: block}, nil
}

func (c *Codec) Encrypt(plaintext []byte) (string, error) {
	iv := make([]byte, aes.BlockSize)
	if _, err := rand.Read(iv); err != nil {
		return "", fmt.Errorf("receipt: iv: %w", err)
	}
	padded := pad(plaintext)
	out := make([]byte, len(padded))
	cipher.NewCBCEncrypter(c.block, iv).CryptBlocks(out, padded)
	return hex.EncodeToString(iv) + ":" + hex.EncodeToString(out), nil
}

func (c *Codec) Decrypt(sealed string) ([]byte, error) {
	ivHex, ctHex, ok := strings.Cut(sealed, ":")
	if !ok {
		return nil, ErrMalformed
	}
	iv, err := hex.DecodeString(ivHex)
	if err != nil || len(iv) != aes.BlockSize {
		return nil, ErrMalformed
	}
	ct, err := hex.DecodeString(ctHex)
	if err != nil || len(ct) == 0 || len(ct)%aes.BlockSize != 0 {
		return nil, ErrMalformed
	}
	out := make([]byte, len(ct))
	cipher.NewCBCDecrypter(c.block, iv).CryptBlocks(out, ct)
	return unpad(out)
}

func pad(b []byte) []byte {
	n := aes.BlockSize - len(b)%aes.BlockSize
	return append(bytes.Clone(b), bytes.Repeat([]byte{byte(n)}, n)...)
}

func unpad(b []byte) ([]byte, error) {
	if len(b) == 0 {
		return nil, ErrMalformed
	}
	n := int(b[len(b)-1])
	if n == 0 || n > aes.BlockSize || n > len(b) {
		return nil, ErrMalformed
	}
	for _, v := range b[len(b)-n:] {
		if int(v) != n {
			return nil, ErrMalformed
		}
	}
	return b[:len(b)-n], nil
}
