// Package tokenstore persists per-provider OAuth tokens for the
// `auth=login` API profile (§3, §6.5). The auth/login flow itself is
// out of scope for this core (spec.md §1); this package only owns the
// at-rest representation and the refresh-due check the Task Supervisor
// and Agent consult before making an authenticated request.
package tokenstore

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/0xfe/buddy-sub001/internal/errs"
)

// Tokens is one provider's persisted OAuth credential set.
type Tokens struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresAtUnix int64 `json:"expires_at_unix"`
}

// refreshSkew is the lead time before expiry at which a token is
// considered due for refresh (§6.5: "refreshed when now + 90s >=
// expires_at_unix").
const refreshSkew = 90 * time.Second

// NeedsRefresh reports whether t should be refreshed given now.
func (t Tokens) NeedsRefresh(now time.Time) bool {
	return now.Add(refreshSkew).Unix() >= t.ExpiresAtUnix
}

// Store persists Tokens per provider key under Dir, one JSON file per
// provider with permission-restricted (0600) access — the retrieval
// pack carries no keyring-integration library, so this is the
// documented fallback (see DESIGN.md).
type Store struct {
	Dir string

	mu sync.Mutex
}

// NewStore returns a Store rooted at dir, creating dir (mode 0700) if
// necessary.
func NewStore(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, errs.NewConfigIO(fmt.Errorf("create token store dir %s: %w", dir, err))
	}
	return &Store{Dir: dir}, nil
}

var providerKeySanitizer = regexp.MustCompile(`[^a-z0-9._-]+`)

func (s *Store) pathFor(providerKey string) string {
	safe := providerKeySanitizer.ReplaceAllString(strings.ToLower(providerKey), "_")
	return filepath.Join(s.Dir, safe+".json")
}

// Load reads the persisted Tokens for providerKey. Returns (Tokens{},
// false, nil) when nothing has been stored yet.
func (s *Store) Load(providerKey string) (Tokens, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, err := os.ReadFile(s.pathFor(providerKey))
	if err != nil {
		if os.IsNotExist(err) {
			return Tokens{}, false, nil
		}
		return Tokens{}, false, errs.NewConfigIO(fmt.Errorf("read tokens for %s: %w", providerKey, err))
	}
	var tok Tokens
	if err := json.Unmarshal(b, &tok); err != nil {
		return Tokens{}, false, errs.NewConfigInvalid("corrupted token store for %q: %v", providerKey, err)
	}
	return tok, true, nil
}

// Save atomically persists tok for providerKey, restricting the file to
// owner-read/write only.
func (s *Store) Save(providerKey string, tok Tokens) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, err := json.MarshalIndent(tok, "", "  ")
	if err != nil {
		return errs.NewExecutionFailed("marshal tokens for %s: %v", providerKey, err)
	}
	path := s.pathFor(providerKey)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, b, 0o600); err != nil {
		return errs.NewConfigIO(fmt.Errorf("write tokens for %s: %w", providerKey, err))
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return errs.NewConfigIO(fmt.Errorf("rename tokens for %s: %w", providerKey, err))
	}
	return nil
}

// Delete removes any persisted tokens for providerKey. Not an error
// when nothing was stored.
func (s *Store) Delete(providerKey string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(s.pathFor(providerKey)); err != nil && !os.IsNotExist(err) {
		return errs.NewConfigIO(fmt.Errorf("delete tokens for %s: %w", providerKey, err))
	}
	return nil
}
