package secrets

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"
)

// lightweight per-user secret store (file, 0600) with AES-GCM obfuscation.
// Not a replacement for OS keychains but avoids plain-text config.

const fileName = "passwords.json"

// ErrNotFound is returned when no password is stored for an identity.
var ErrNotFound = errors.New("password not found")

type secretFile struct {
	Passwords map[string]string `json:"passwords"` // identity -> base64(ciphertext)
}

// Store is a secret file in dir. The zero value is not usable; use Open or
// Default.
type Store struct {
	dir string
}

// Open returns a store rooted at dir.
func Open(dir string) *Store { return &Store{dir: dir} }

// Default returns the store in the user config directory.
func Default() (*Store, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return nil, err
	}
	return Open(filepath.Join(dir, "phone")), nil
}

// StorePassword saves the SIP password for an account identity (caller@realm).
func (s *Store) StorePassword(identity, password string) error {
	if identity = norm(identity); identity == "" {
		return fmt.Errorf("identity required")
	}
	path, err := s.filePath()
	if err != nil {
		return err
	}
	sf, err := load(path)
	if err != nil {
		return err
	}
	if sf.Passwords == nil {
		sf.Passwords = map[string]string{}
	}
	ct, err := encrypt([]byte(password))
	if err != nil {
		return err
	}
	sf.Passwords[identity] = base64.StdEncoding.EncodeToString(ct)
	return save(path, sf)
}

// FetchPassword returns the stored password or ErrNotFound.
func (s *Store) FetchPassword(identity string) (string, error) {
	if identity = norm(identity); identity == "" {
		return "", fmt.Errorf("identity required")
	}
	path, err := s.filePath()
	if err != nil {
		return "", err
	}
	sf, err := load(path)
	if err != nil {
		return "", err
	}
	enc, ok := sf.Passwords[identity]
	if !ok {
		return "", ErrNotFound
	}
	raw, err := base64.StdEncoding.DecodeString(enc)
	if err != nil {
		return "", fmt.Errorf("decode password: %w", err)
	}
	pt, err := decrypt(raw)
	if err != nil {
		return "", fmt.Errorf("decrypt password: %w", err)
	}
	return string(pt), nil
}

// DeletePassword removes the password for identity. Deleting a missing entry
// is not an error.
func (s *Store) DeletePassword(identity string) error {
	if identity = norm(identity); identity == "" {
		return fmt.Errorf("identity required")
	}
	path, err := s.filePath()
	if err != nil {
		return err
	}
	sf, err := load(path)
	if err != nil {
		return err
	}
	delete(sf.Passwords, identity)
	return save(path, sf)
}

func (s *Store) filePath() (string, error) {
	if err := os.MkdirAll(s.dir, 0o700); err != nil { // restrict directory
		return "", err
	}
	return filepath.Join(s.dir, fileName), nil
}

func load(path string) (secretFile, error) {
	var sf secretFile
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return secretFile{}, nil
		}
		return sf, err
	}
	if err := json.Unmarshal(data, &sf); err != nil {
		return sf, fmt.Errorf("parse %s: %w", filepath.Base(path), err)
	}
	return sf, nil
}

func save(path string, sf secretFile) error {
	data, err := json.MarshalIndent(sf, "", "  ")
	if err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

func norm(s string) string {
	return strings.TrimSpace(strings.ToLower(s))
}

func masterKey() []byte {
	user := os.Getenv("USER")
	base := fmt.Sprintf("phone-%s-%s", runtime.GOOS, user)
	hash := sha256.Sum256([]byte(base))
	return hash[:]
}

func newGCM() (cipher.AEAD, error) {
	block, err := aes.NewCipher(masterKey())
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}

func encrypt(plain []byte) ([]byte, error) {
	gcm, err := newGCM()
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, err
	}
	return gcm.Seal(nonce, nonce, plain, nil), nil
}

func decrypt(ciphertext []byte) ([]byte, error) {
	gcm, err := newGCM()
	if err != nil {
		return nil, err
	}
	if len(ciphertext) < gcm.NonceSize() {
		return nil, fmt.Errorf("ciphertext too short")
	}
	nonce := ciphertext[:gcm.NonceSize()]
	body := ciphertext[gcm.NonceSize():]
	return gcm.Open(nil, nonce, body, nil)
}
