package storage

import (
	"crypto/rand"

	"github.com/pkg/errors"
	"golang.org/x/crypto/nacl/secretbox"
	"golang.org/x/crypto/scrypt"
)

const (
	saltLength  = 16
	nonceLength = 24
	keyLength   = 32
)

// EncryptedFile wraps a File store and encrypts values at rest with a key
// derived from a passphrase. Each Set uses a fresh salt and nonce, so the
// same session record never produces the same ciphertext twice.
//
// Slot layout: salt || nonce || secretbox ciphertext.
type EncryptedFile struct {
	inner      *File
	passphrase []byte
}

// NewEncryptedFile creates an encrypted file-backed store rooted at dir.
func NewEncryptedFile(dir string, passphrase []byte) (*EncryptedFile, error) {
	if len(passphrase) == 0 {
		return nil, errors.New("[NewEncryptedFile] passphrase is required")
	}
	inner, err := NewFile(dir)
	if err != nil {
		return nil, err
	}
	return &EncryptedFile{inner: inner, passphrase: passphrase}, nil
}

func (e *EncryptedFile) Get(key string) (string, bool, error) {
	sealed, ok, err := e.inner.Get(key)
	if err != nil || !ok {
		return "", ok, err
	}

	raw := []byte(sealed)
	if len(raw) < saltLength+nonceLength+secretbox.Overhead {
		return "", false, errors.New("[EncryptedFile.Get] slot too short")
	}

	boxKey, err := e.deriveKey(raw[:saltLength])
	if err != nil {
		return "", false, err
	}

	var nonce [nonceLength]byte
	copy(nonce[:], raw[saltLength:saltLength+nonceLength])

	plain, ok := secretbox.Open(nil, raw[saltLength+nonceLength:], &nonce, boxKey)
	if !ok {
		return "", false, errors.New("[EncryptedFile.Get] decryption failed")
	}
	return string(plain), true, nil
}

func (e *EncryptedFile) Set(key, value string) error {
	salt := make([]byte, saltLength)
	if _, err := rand.Read(salt); err != nil {
		return errors.Wrap(err, "[EncryptedFile.Set] generate salt")
	}

	boxKey, err := e.deriveKey(salt)
	if err != nil {
		return err
	}

	var nonce [nonceLength]byte
	if _, err := rand.Read(nonce[:]); err != nil {
		return errors.Wrap(err, "[EncryptedFile.Set] generate nonce")
	}

	sealed := append(salt, nonce[:]...)
	sealed = secretbox.Seal(sealed, []byte(value), &nonce, boxKey)
	return e.inner.Set(key, string(sealed))
}

func (e *EncryptedFile) Remove(key string) error {
	return e.inner.Remove(key)
}

func (e *EncryptedFile) deriveKey(salt []byte) (*[keyLength]byte, error) {
	derived, err := scrypt.Key(e.passphrase, salt, 1<<15, 8, 1, keyLength)
	if err != nil {
		return nil, errors.Wrap(err, "[EncryptedFile.deriveKey] scrypt")
	}
	var boxKey [keyLength]byte
	copy(boxKey[:], derived)
	return &boxKey, nil
}
