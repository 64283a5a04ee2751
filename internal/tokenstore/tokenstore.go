// Package tokenstore persists the backend auth token. The file-backed store
// encrypts with AES-256-GCM and keeps the key in a sibling file readable
// only by the user; the secret-store variant delegates to a host keychain.
package tokenstore

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	json "github.com/goccy/go-json"
	"github.com/rs/zerolog/log"

	"github.com/DevArk-AI/devark/internal/paths"
)

const (
	ivLen  = 16
	tagLen = 16
	keyLen = 32

	// minTokenLen guards against storing truncated or garbage tokens.
	minTokenLen = 10
)

// Store is the token persistence contract.
type Store interface {
	GetToken() (string, error)
	StoreToken(token string) error
	ClearToken() error
	HasToken() bool
}

// FileStore keeps the encrypted token in a JSON file under the devark
// config directory.
type FileStore struct {
	tokenPath string
	keyPath   string
}

// NewFileStore creates a file-backed store rooted at dir. Empty dir uses
// the default devark config directory.
func NewFileStore(dir string) *FileStore {
	if dir == "" {
		dir = paths.DevarkDir()
	}
	tokenPath := filepath.Join(dir, "auth.json")
	return &FileStore{
		tokenPath: tokenPath,
		keyPath:   tokenPath + ".key",
	}
}

type tokenFile struct {
	Token string `json:"token"`
}

// GetToken returns the stored token, or "" when absent or undecryptable.
// Decrypt failures are swallowed so a corrupted file reads as logged-out.
func (s *FileStore) GetToken() (string, error) {
	raw, err := os.ReadFile(s.tokenPath)
	if errors.Is(err, os.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("read token file: %w", err)
	}

	var file tokenFile
	if err := json.Unmarshal(raw, &file); err != nil {
		log.Debug().Err(err).Msg("Token file unreadable, treating as logged out")
		return "", nil
	}

	key, err := s.loadKey()
	if err != nil {
		log.Debug().Err(err).Msg("Token key unreadable, treating as logged out")
		return "", nil
	}

	token, err := decrypt(file.Token, key)
	if err != nil {
		log.Debug().Err(err).Msg("Token decrypt failed, treating as logged out")
		return "", nil
	}
	return token, nil
}

// StoreToken encrypts and writes the token. Tokens shorter than the minimum
// are rejected.
func (s *FileStore) StoreToken(token string) error {
	if len(token) < minTokenLen {
		return fmt.Errorf("token too short (%d chars, minimum %d)", len(token), minTokenLen)
	}

	key, err := s.loadOrCreateKey()
	if err != nil {
		return err
	}
	encrypted, err := encrypt(token, key)
	if err != nil {
		return err
	}

	raw, err := json.Marshal(tokenFile{Token: encrypted})
	if err != nil {
		return fmt.Errorf("marshal token file: %w", err)
	}
	if err := paths.EnsureParentDir(s.tokenPath); err != nil {
		return err
	}
	if err := os.WriteFile(s.tokenPath, raw, 0o600); err != nil {
		return fmt.Errorf("write token file: %w", err)
	}
	return nil
}

// ClearToken removes the token file. Failures are swallowed.
func (s *FileStore) ClearToken() error {
	if err := os.Remove(s.tokenPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Debug().Err(err).Msg("Token file removal failed")
	}
	return nil
}

// HasToken reports whether a decryptable token is stored.
func (s *FileStore) HasToken() bool {
	token, err := s.GetToken()
	return err == nil && token != ""
}

func (s *FileStore) loadKey() ([]byte, error) {
	raw, err := os.ReadFile(s.keyPath)
	if err != nil {
		return nil, err
	}
	key, err := hex.DecodeString(strings.TrimSpace(string(raw)))
	if err != nil {
		return nil, fmt.Errorf("decode key: %w", err)
	}
	if len(key) != keyLen {
		return nil, fmt.Errorf("key is %d bytes, want %d", len(key), keyLen)
	}
	return key, nil
}

func (s *FileStore) loadOrCreateKey() ([]byte, error) {
	if key, err := s.loadKey(); err == nil {
		return key, nil
	}
	key := make([]byte, keyLen)
	if _, err := rand.Read(key); err != nil {
		return nil, fmt.Errorf("generate key: %w", err)
	}
	if err := paths.EnsureParentDir(s.keyPath); err != nil {
		return nil, err
	}
	if err := os.WriteFile(s.keyPath, []byte(hex.EncodeToString(key)), 0o600); err != nil {
		return nil, fmt.Errorf("write key file: %w", err)
	}
	return key, nil
}

// encrypt seals the token and serialises it as hex iv:tag:ciphertext.
func encrypt(plaintext string, key []byte) (string, error) {
	gcm, err := newGCM(key)
	if err != nil {
		return "", err
	}
	iv := make([]byte, ivLen)
	if _, err := rand.Read(iv); err != nil {
		return "", fmt.Errorf("generate iv: %w", err)
	}

	sealed := gcm.Seal(nil, iv, []byte(plaintext), nil)
	ciphertext := sealed[:len(sealed)-tagLen]
	tag := sealed[len(sealed)-tagLen:]

	return strings.Join([]string{
		hex.EncodeToString(iv),
		hex.EncodeToString(tag),
		hex.EncodeToString(ciphertext),
	}, ":"), nil
}

// decrypt validates the serialised segments before opening the seal.
func decrypt(serialized string, key []byte) (string, error) {
	parts := strings.Split(serialized, ":")
	if len(parts) != 3 {
		return "", fmt.Errorf("expected 3 segments, got %d", len(parts))
	}
	iv, err := hex.DecodeString(parts[0])
	if err != nil {
		return "", fmt.Errorf("decode iv: %w", err)
	}
	tag, err := hex.DecodeString(parts[1])
	if err != nil {
		return "", fmt.Errorf("decode tag: %w", err)
	}
	ciphertext, err := hex.DecodeString(parts[2])
	if err != nil {
		return "", fmt.Errorf("decode ciphertext: %w", err)
	}
	if len(iv) != ivLen {
		return "", fmt.Errorf("iv is %d bytes, want %d", len(iv), ivLen)
	}
	if len(tag) != tagLen {
		return "", fmt.Errorf("tag is %d bytes, want %d", len(tag), tagLen)
	}

	gcm, err := newGCM(key)
	if err != nil {
		return "", err
	}
	plaintext, err := gcm.Open(nil, iv, append(ciphertext, tag...), nil)
	if err != nil {
		return "", fmt.Errorf("open seal: %w", err)
	}
	return string(plaintext), nil
}

func newGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("init cipher: %w", err)
	}
	gcm, err := cipher.NewGCMWithNonceSize(block, ivLen)
	if err != nil {
		return nil, fmt.Errorf("init gcm: %w", err)
	}
	return gcm, nil
}

// SecretBackend is a host-provided secret store, such as an editor keychain.
type SecretBackend interface {
	Get(key string) (string, error)
	Set(key, value string) error
	Delete(key string) error
}

// SecretKey is the devark entry name in the host secret store.
const SecretKey = paths.AppName + ".auth.token"

// SecretStore delegates persistence to a SecretBackend. An empty stored
// value is treated as absent.
type SecretStore struct {
	backend SecretBackend
}

// NewSecretStore wraps a host secret backend.
func NewSecretStore(backend SecretBackend) *SecretStore {
	return &SecretStore{backend: backend}
}

func (s *SecretStore) GetToken() (string, error) {
	token, err := s.backend.Get(SecretKey)
	if err != nil {
		return "", fmt.Errorf("secret store get: %w", err)
	}
	return token, nil
}

func (s *SecretStore) StoreToken(token string) error {
	if len(token) < minTokenLen {
		return fmt.Errorf("token too short (%d chars, minimum %d)", len(token), minTokenLen)
	}
	if err := s.backend.Set(SecretKey, token); err != nil {
		return fmt.Errorf("secret store set: %w", err)
	}
	return nil
}

func (s *SecretStore) ClearToken() error {
	if err := s.backend.Delete(SecretKey); err != nil {
		log.Debug().Err(err).Msg("Secret store delete failed")
	}
	return nil
}

func (s *SecretStore) HasToken() bool {
	token, err := s.GetToken()
	return err == nil && token != ""
}
