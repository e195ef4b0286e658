package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// FileUserStore keeps the user database in a JSON file mapping username to
// record. The file is read once at open; Create rewrites it.
type FileUserStore struct {
	mu    sync.RWMutex
	path  string
	users map[string]*UserRecord
}

// OpenFileUserStore loads the user database at path. A missing file is an
// empty database, so a fresh deployment works before any user is created.
func OpenFileUserStore(path string) (*FileUserStore, error) {
	s := &FileUserStore{path: path, users: make(map[string]*UserRecord)}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading user db %s: %w", path, err)
	}
	if err := json.Unmarshal(data, &s.users); err != nil {
		return nil, fmt.Errorf("parsing user db %s: %w", path, err)
	}
	return s, nil
}

// Lookup returns the record for username or ErrNotFound.
func (s *FileUserStore) Lookup(username string) (*UserRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.users[username]
	if !ok {
		return nil, ErrNotFound
	}
	copied := *rec
	return &copied, nil
}

// Create adds a record and rewrites the backing file.
func (s *FileUserStore) Create(rec *UserRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[rec.Username]; ok {
		return ErrExists
	}

	copied := *rec
	copied.Role = NormalizeRole(copied.Role)
	s.users[rec.Username] = &copied
	return s.save()
}

func (s *FileUserStore) save() error {
	data, err := json.MarshalIndent(s.users, "", "    ")
	if err != nil {
		return err
	}
	if err := writeDBFile(s.path, data); err != nil {
		return fmt.Errorf("writing user db %s: %w", s.path, err)
	}
	return nil
}

// FileBanStore keeps the ban list as a JSON array in a single file, rewritten
// on every mutation.
type FileBanStore struct {
	mu   sync.Mutex
	path string
}

// NewFileBanStore returns a ban store backed by the file at path. The file
// is created on the first Append.
func NewFileBanStore(path string) *FileBanStore {
	return &FileBanStore{path: path}
}

// Load reads the full ban list. A missing file is an empty list.
func (s *FileBanStore) Load() ([]BanRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load()
}

func (s *FileBanStore) load() ([]BanRecord, error) {
	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading ban list %s: %w", s.path, err)
	}

	var recs []BanRecord
	if err := json.Unmarshal(data, &recs); err != nil {
		return nil, fmt.Errorf("parsing ban list %s: %w", s.path, err)
	}
	return recs, nil
}

// Append persists one new ban entry. Appending an identity that is already
// present replaces its entry, keeping the store idempotent like the
// moderation state it mirrors.
func (s *FileBanStore) Append(rec BanRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	recs, err := s.load()
	if err != nil {
		return err
	}

	kept := recs[:0]
	for _, r := range recs {
		if r.Identity != rec.Identity {
			kept = append(kept, r)
		}
	}
	kept = append(kept, rec)
	return s.save(kept)
}

// Remove deletes the entry for identity, if present.
func (s *FileBanStore) Remove(identity string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	recs, err := s.load()
	if err != nil {
		return err
	}

	kept := recs[:0]
	for _, r := range recs {
		if r.Identity != identity {
			kept = append(kept, r)
		}
	}
	return s.save(kept)
}

// Close is a no-op for the file backend.
func (s *FileBanStore) Close() error {
	return nil
}

func (s *FileBanStore) save(recs []BanRecord) error {
	if recs == nil {
		recs = []BanRecord{}
	}
	data, err := json.MarshalIndent(recs, "", "    ")
	if err != nil {
		return err
	}
	if err := writeDBFile(s.path, data); err != nil {
		return fmt.Errorf("writing ban list %s: %w", s.path, err)
	}
	return nil
}

// writeDBFile rewrites a database file, creating its directory on first use.
func writeDBFile(path string, data []byte) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return err
		}
	}
	return os.WriteFile(path, data, 0o600)
}
