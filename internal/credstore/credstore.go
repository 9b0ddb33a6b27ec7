// Package credstore persists exactly one credential (the bearer token
// and the serialized user profile) in a JSON file on disk. It is the
// device-local analog of the browser's persistent storage: the session
// manager hydrates from it at startup, and the HTTP adapter drops it on
// authorization failures.
//
// The store fails closed: a missing, partial or corrupt file reads as
// "no credential" and is wiped, never surfaced as an error to callers.
package credstore

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/linkboard/linkboard/internal/user"
)

// ErrStorage wraps failures to write the credential file. Reads never
// produce it; see Load.
var ErrStorage = errors.New("credential storage failure")

// Credential couples the opaque bearer token with the profile it was
// issued for. The two are persisted and removed together; a token
// without a profile is never observable.
type Credential struct {
	Token string
	User  *user.Profile
}

// fileFormat is the on-disk document: two named entries, mirroring the
// token/user split of the original storage.
type fileFormat struct {
	Token string          `json:"token"`
	User  json.RawMessage `json:"user"`
}

// Store is a file-backed credential store. All methods are safe for
// concurrent use.
type Store struct {
	mu       sync.Mutex
	fileName string
}

// New returns a Store persisting to fileName. The parent directory is
// created on the first Save, not here, so constructing a store against
// an unwritable path still lets the application run logged out.
func New(fileName string) *Store {
	return &Store{fileName: fileName}
}

// FileName reports the path the store persists to.
func (s *Store) FileName() string {
	return s.fileName
}

// Save writes the credential to disk. The file is staged next to its
// final location and renamed into place, so a reader never observes a
// token without its profile. Returns an error wrapping ErrStorage when
// persistence is unavailable.
func (s *Store) Save(credential *Credential) error {
	if credential == nil || credential.Token == "" || credential.User == nil {
		return fmt.Errorf("%w: refusing to save a partial credential", ErrStorage)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	profileBlob, err := credential.User.Encode()
	if err != nil {
		return fmt.Errorf("%w: encode profile: %v", ErrStorage, err)
	}

	document, err := json.MarshalIndent(
		fileFormat{Token: credential.Token, User: profileBlob},
		"",
		"\t",
	)
	if err != nil {
		return fmt.Errorf("%w: encode credential: %v", ErrStorage, err)
	}

	if err := os.MkdirAll(filepath.Dir(s.fileName), 0o700); err != nil {
		return fmt.Errorf("%w: create storage directory: %v", ErrStorage, err)
	}

	staging, err := os.CreateTemp(filepath.Dir(s.fileName), ".credentials-*")
	if err != nil {
		return fmt.Errorf("%w: create staging file: %v", ErrStorage, err)
	}
	stagingName := staging.Name()

	_, writeErr := staging.Write(document)
	closeErr := staging.Close()
	if writeErr != nil || closeErr != nil {
		_ = os.Remove(stagingName)
		return fmt.Errorf("%w: write staging file: %v", ErrStorage, errors.Join(writeErr, closeErr))
	}

	// The file holds a live bearer token.
	if err := os.Chmod(stagingName, 0o600); err != nil {
		_ = os.Remove(stagingName)
		return fmt.Errorf("%w: restrict file mode: %v", ErrStorage, err)
	}

	if err := os.Rename(stagingName, s.fileName); err != nil {
		_ = os.Remove(stagingName)
		return fmt.Errorf("%w: publish credential file: %v", ErrStorage, err)
	}

	return nil
}

// Load reads the stored credential. It returns nil when no credential
// is stored, and it never returns an error for unreadable or corrupt
// state: such state is cleared so the next Load starts clean.
func (s *Store) Load() *Credential {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.fileName)
	if err != nil {
		if !os.IsNotExist(err) {
			s.clearLocked()
		}
		return nil
	}

	var document fileFormat
	if err := json.Unmarshal(data, &document); err != nil {
		s.clearLocked()
		return nil
	}

	profile, ok := user.Decode(document.User)
	if document.Token == "" || !ok {
		s.clearLocked()
		return nil
	}

	return &Credential{Token: document.Token, User: profile}
}

// Token returns the stored bearer token, or "" when no credential is
// stored. It shares Load's self-healing behavior.
func (s *Store) Token() string {
	credential := s.Load()
	if credential == nil {
		return ""
	}

	return credential.Token
}

// Clear removes the stored credential. It is idempotent and always
// succeeds from the caller's perspective.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.clearLocked()
}

func (s *Store) clearLocked() {
	_ = os.Remove(s.fileName)
}
