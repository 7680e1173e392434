// internal/config/crypto.go
package config

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io"
)

const masterKeyName = "__master_key__"

// GetMasterKey retrieves or generates a master key from the keyring
func GetMasterKey() ([]byte, error) {
	ks, err := NewKeyringStore()
	if err != nil {
		return nil, err
	}

	keyHex, err := ks.GetPassword(masterKeyName)
	if err == nil {
		return hex.DecodeString(keyHex)
	}

	// Generate new key
	key := make([]byte, 32)
	if _, err := io.ReadFull(rand.Reader, key); err != nil {
		return nil, err
	}

	if err := ks.SetPassword(masterKeyName, hex.EncodeToString(key)); err != nil {
		return nil, err
	}

	return key, nil
}

// Cipher encrypts stored passwords with a fixed key
type Cipher struct {
	key []byte
}

// NewCipher returns a cipher keyed by the keyring master key
func NewCipher() (*Cipher, error) {
	key, err := GetMasterKey()
	if err != nil {
		return nil, fmt.Errorf("master key: %w", err)
	}
	return NewCipherWithKey(key)
}

// NewCipherWithKey returns a cipher for an explicit 16, 24 or 32 byte key
func NewCipherWithKey(key []byte) (*Cipher, error) {
	if _, err := aes.NewCipher(key); err != nil {
		return nil, err
	}
	return &Cipher{key: key}, nil
}

// Encrypt implements store.Cipher
func (c *Cipher) Encrypt(plainText string) (string, error) {
	return Encrypt(plainText, c.key)
}

// Decrypt implements store.Cipher
func (c *Cipher) Decrypt(cipherTextHex string) (string, error) {
	return Decrypt(cipherTextHex, c.key)
}

// Encrypt encrypts a string using AES-GCM
func Encrypt(plainText string, key []byte) (string, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return "", err
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", err
	}

	cipherText := gcm.Seal(nonce, nonce, []byte(plainText), nil)
	return hex.EncodeToString(cipherText), nil
}

// Decrypt decrypts a hex string using AES-GCM
func Decrypt(cipherTextHex string, key []byte) (string, error) {
	cipherText, err := hex.DecodeString(cipherTextHex)
	if err != nil {
		return "", err
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return "", err
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", err
	}

	nonceSize := gcm.NonceSize()
	if len(cipherText) < nonceSize {
		return "", fmt.Errorf("ciphertext too short")
	}

	nonce, actualCipherText := cipherText[:nonceSize], cipherText[nonceSize:]
	plainText, err := gcm.Open(nil, nonce, actualCipherText, nil)
	if err != nil {
		return "", err
	}

	return string(plainText), nil
}
