package securestore

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"golang.org/x/crypto/argon2"

	"github.com/tandemapp/tandem/internal/common"
)

// FileBackend is a secure Backend for environments without a platform
// enclave: each item is sealed with AES-GCM under a key derived from a
// passphrase via argon2id and written to its own file. It enforces the same
// per-item size cap an enclave would, which is what makes the chunked
// adapter above it meaningful in tests and on desktop.
type FileBackend struct {
	dir         string
	key         []byte
	maxItemSize int
}

const saltFile = ".salt"

// NewFileBackend opens (or initializes) the backend directory. The argon2id
// salt is created on first use and reused afterwards; the same passphrase
// then always derives the same key.
func NewFileBackend(dir, passphrase string, maxItemSize int) (*FileBackend, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("mkdir %s: %w", dir, err)
	}

	saltPath := filepath.Join(dir, saltFile)
	salt, err := os.ReadFile(saltPath)
	if errors.Is(err, fs.ErrNotExist) {
		salt = make([]byte, 16)
		if _, err := rand.Read(salt); err != nil {
			return nil, fmt.Errorf("generate salt: %w", err)
		}
		if err := os.WriteFile(saltPath, salt, 0o600); err != nil {
			return nil, fmt.Errorf("write salt: %w", err)
		}
	} else if err != nil {
		return nil, fmt.Errorf("read salt: %w", err)
	}

	if maxItemSize <= 0 {
		maxItemSize = DefaultChunkSize
	}

	key := argon2.IDKey([]byte(passphrase), salt, 1, 64*1024, 4, 32)
	return &FileBackend{dir: dir, key: key, maxItemSize: maxItemSize}, nil
}

func (f *FileBackend) path(key string) string {
	sum := sha256.Sum256([]byte(key))
	return filepath.Join(f.dir, hex.EncodeToString(sum[:]))
}

func (f *FileBackend) Get(ctx context.Context, key string) (string, bool, error) {
	data, err := os.ReadFile(f.path(key))
	if errors.Is(err, fs.ErrNotExist) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("read item: %w", err)
	}

	plaintext, err := f.open(data)
	if err != nil {
		return "", false, fmt.Errorf("decrypt item: %w", err)
	}
	return string(plaintext), true, nil
}

func (f *FileBackend) Set(ctx context.Context, key, value string) error {
	if len(value) > f.maxItemSize {
		return fmt.Errorf("%w: %d bytes", common.ErrItemTooLarge, len(value))
	}

	sealed, err := f.seal([]byte(value))
	if err != nil {
		return fmt.Errorf("encrypt item: %w", err)
	}

	path := f.path(key)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, sealed, 0o600); err != nil {
		return fmt.Errorf("write item: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("write item: %w", err)
	}
	return nil
}

func (f *FileBackend) Delete(ctx context.Context, key string) error {
	err := os.Remove(f.path(key))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("delete item: %w", err)
	}
	return nil
}

// seal encrypts plaintext with AES-GCM; the random nonce is prepended to
// the ciphertext.
func (f *FileBackend) seal(plaintext []byte) ([]byte, error) {
	block, err := aes.NewCipher(f.key)
	if err != nil {
		return nil, err
	}
	aesgcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, aesgcm.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, err
	}
	return aesgcm.Seal(nonce, nonce, plaintext, nil), nil
}

func (f *FileBackend) open(sealed []byte) ([]byte, error) {
	block, err := aes.NewCipher(f.key)
	if err != nil {
		return nil, err
	}
	aesgcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}

	if len(sealed) < aesgcm.NonceSize() {
		return nil, errors.New("sealed item too short")
	}
	nonce, ciphertext := sealed[:aesgcm.NonceSize()], sealed[aesgcm.NonceSize():]
	return aesgcm.Open(nil, nonce, ciphertext, nil)
}
