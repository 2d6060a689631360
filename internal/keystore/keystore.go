// Package keystore implements the Key Store collaborator (spec.md §4.6,
// §6): idempotent, concurrency-safe generation and persistence of
// WireGuard keypairs and pre-shared keys. It is the Engine's only
// component with observable side effects.
package keystore

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/gofrs/flock"
	"golang.zx2c4.com/wireguard/wgctrl/wgtypes"
)

// KeyRecord is one node's persisted keypair.
type KeyRecord struct {
	PrivateKey string    `json:"private_key"`
	PublicKey  string    `json:"public_key"`
	CreatedAt  time.Time `json:"created_at"`
}

// PSKRecord is one unordered-pair's persisted pre-shared key.
type PSKRecord struct {
	PSK       string    `json:"psk"`
	CreatedAt time.Time `json:"created_at"`
}

type fileLayout struct {
	Keys map[string]KeyRecord `json:"keys"`
	PSKs map[string]PSKRecord `json:"psks"`
}

// Store is a file-backed Key Store: a single JSON document guarded by an
// adjacent ".lock" file, matching spec.md §6's persisted-state layout
// byte-for-byte.
type Store struct {
	path   string
	lock   *flock.Flock
	cipher *keystoreCipher // nil when at-rest encryption is disabled
}

// Option configures a Store at construction time.
type Option func(*Store) error

// WithEncryption enables AES-256-GCM at-rest encryption of stored private
// keys and PSKs, keyed by passphrase.
func WithEncryption(passphrase string) Option {
	return func(s *Store) error {
		c, err := newCipher(passphrase)
		if err != nil {
			return err
		}
		s.cipher = c
		return nil
	}
}

// Open opens (creating if absent) the JSON key store at path.
func Open(path string, opts ...Option) (*Store, error) {
	s := &Store{
		path: path,
		lock: flock.New(path + ".lock"),
	}
	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, fmt.Errorf("keystore: %w", err)
		}
	}
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("keystore: create directory: %w", err)
		}
		if err := s.writeLayout(&fileLayout{Keys: map[string]KeyRecord{}, PSKs: map[string]PSKRecord{}}); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// GetOrCreateKeyPair returns node's keypair, generating and persisting one
// on first use. Safe under concurrent callers across processes.
func (s *Store) GetOrCreateKeyPair(node string) (priv, pub wgtypes.Key, err error) {
	if err := s.withLock(func(layout *fileLayout) (bool, error) {
		if rec, ok := layout.Keys[node]; ok {
			priv, err = s.decodeKey(rec.PrivateKey)
			if err != nil {
				return false, fmt.Errorf("keystore: decode stored private key for %q: %w", node, err)
			}
			pub, err = wgtypes.ParseKey(rec.PublicKey)
			if err != nil {
				return false, fmt.Errorf("keystore: decode stored public key for %q: %w", node, err)
			}
			return false, nil
		}

		priv, err = wgtypes.GeneratePrivateKey()
		if err != nil {
			return false, fmt.Errorf("keystore: generate key for %q: %w", node, err)
		}
		pub = priv.PublicKey()

		encoded, err := s.encodeKey(priv)
		if err != nil {
			return false, err
		}
		layout.Keys[node] = KeyRecord{PrivateKey: encoded, PublicKey: pub.String(), CreatedAt: time.Now().UTC()}
		return true, nil
	}); err != nil {
		return wgtypes.Key{}, wgtypes.Key{}, err
	}
	return priv, pub, nil
}

// GetOrCreatePSK returns the pre-shared key for an unordered pair of node
// names, generating and persisting one on first use. a and b may be given
// in either order; the pair is canonicalised to a lexicographically sorted
// key so (a,b) and (b,a) resolve to the same record.
func (s *Store) GetOrCreatePSK(a, b string) (psk wgtypes.Key, err error) {
	key := pairKey(a, b)
	if err := s.withLock(func(layout *fileLayout) (bool, error) {
		if rec, ok := layout.PSKs[key]; ok {
			psk, err = s.decodeKey(rec.PSK)
			if err != nil {
				return false, fmt.Errorf("keystore: decode stored psk for %q: %w", key, err)
			}
			return false, nil
		}

		psk, err = wgtypes.GenerateKey()
		if err != nil {
			return false, fmt.Errorf("keystore: generate psk for %q: %w", key, err)
		}
		encoded, err := s.encodeKey(psk)
		if err != nil {
			return false, err
		}
		layout.PSKs[key] = PSKRecord{PSK: encoded, CreatedAt: time.Now().UTC()}
		return true, nil
	}); err != nil {
		return wgtypes.Key{}, err
	}
	return psk, nil
}

func pairKey(a, b string) string {
	pair := []string{a, b}
	sort.Strings(pair)
	return strings.Join(pair, ":")
}

// withLock runs fn under the exclusive file lock, reloading the on-disk
// layout first and persisting it afterward only if fn reports a mutation.
func (s *Store) withLock(fn func(layout *fileLayout) (dirty bool, err error)) error {
	if err := s.lock.Lock(); err != nil {
		return fmt.Errorf("keystore: acquire lock: %w", err)
	}
	defer s.lock.Unlock()

	layout, err := s.readLayout()
	if err != nil {
		return err
	}

	dirty, err := fn(layout)
	if err != nil {
		return err
	}
	if !dirty {
		return nil
	}
	return s.writeLayout(layout)
}

func (s *Store) readLayout() (*fileLayout, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("keystore: read %s: %w", s.path, err)
	}
	var layout fileLayout
	if err := json.Unmarshal(data, &layout); err != nil {
		return nil, fmt.Errorf("keystore: parse %s: %w", s.path, err)
	}
	if layout.Keys == nil {
		layout.Keys = map[string]KeyRecord{}
	}
	if layout.PSKs == nil {
		layout.PSKs = map[string]PSKRecord{}
	}
	return &layout, nil
}

func (s *Store) writeLayout(layout *fileLayout) error {
	data, err := json.MarshalIndent(layout, "", "  ")
	if err != nil {
		return fmt.Errorf("keystore: marshal %s: %w", s.path, err)
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("keystore: write %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("keystore: rename into place %s: %w", s.path, err)
	}
	return nil
}

func (s *Store) encodeKey(k wgtypes.Key) (string, error) {
	if s.cipher == nil {
		return k.String(), nil
	}
	return s.cipher.encrypt(k.String())
}

func (s *Store) decodeKey(stored string) (wgtypes.Key, error) {
	plain := stored
	if s.cipher != nil {
		decrypted, err := s.cipher.decrypt(stored)
		if err != nil {
			return wgtypes.Key{}, err
		}
		plain = decrypted
	}
	return wgtypes.ParseKey(plain)
}
