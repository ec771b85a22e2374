// Package authtest provides in-memory collaborators for testing code built
// on the auth package.
package authtest

import (
	"bytes"
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/logsmart/authcore/svc/auth"
)

// MemStore is an in-memory auth.UserStore and auth.PasskeyStore for tests.
type MemStore struct {
	mu         sync.Mutex
	users      map[uuid.UUID]*auth.User
	identities map[string]uuid.UUID // provider|subject -> user
	passkeys   map[uuid.UUID]*auth.PasskeyCredential
	companies  []auth.Company
	getByID    int
}

func NewMemStore() *MemStore {
	return &MemStore{
		users:      make(map[uuid.UUID]*auth.User),
		identities: make(map[string]uuid.UUID),
		passkeys:   make(map[uuid.UUID]*auth.PasskeyCredential),
	}
}

func identityKey(provider, subject string) string { return provider + "|" + subject }

// Add stores u as is, assigning an id when it has none.
func (m *MemStore) Add(u auth.User) *auth.User {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	cp := u
	m.users[u.ID] = &cp
	return &cp
}

// Lookups counts GetByID calls.
func (m *MemStore) Lookups() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.getByID
}

func (m *MemStore) GetByID(_ context.Context, id uuid.UUID) (*auth.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.getByID++
	u, ok := m.users[id]
	if !ok {
		return nil, auth.ErrUserNotFound
	}
	cp := *u
	return &cp, nil
}

func (m *MemStore) GetByEmail(_ context.Context, email string) (*auth.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if strings.EqualFold(u.Email, email) {
			cp := *u
			return &cp, nil
		}
	}
	return nil, auth.ErrUserNotFound
}

func (m *MemStore) GetByOAuthIdentity(_ context.Context, provider, subject string) (*auth.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id, ok := m.identities[identityKey(provider, subject)]
	if !ok {
		return nil, auth.ErrUserNotFound
	}
	cp := *m.users[id]
	return &cp, nil
}

func (m *MemStore) insert(u *auth.User) (*auth.User, error) {
	for _, existing := range m.users {
		if strings.EqualFold(existing.Email, u.Email) {
			return nil, auth.ErrEmailTaken
		}
	}
	cp := *u
	cp.ID = uuid.New()
	cp.CreatedAt = time.Now()
	m.users[cp.ID] = &cp
	out := cp
	return &out, nil
}

func (m *MemStore) CreateCompanyAdmin(_ context.Context, u *auth.User, c auth.Company) (*auth.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	created, err := m.insert(u)
	if err != nil {
		return nil, err
	}
	m.companies = append(m.companies, c)
	companyID := uuid.New()
	m.users[created.ID].CompanyID = &companyID
	m.users[created.ID].CompanyName = c.Name
	created.CompanyID, created.CompanyName = &companyID, c.Name
	return created, nil
}

func (m *MemStore) CreateWithIdentity(_ context.Context, u *auth.User, identity auth.OAuthIdentity) (*auth.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.identities[identityKey(identity.Provider, identity.Subject)]; ok {
		return nil, auth.ErrIdentityLinked
	}
	created, err := m.insert(u)
	if err != nil {
		return nil, err
	}
	m.identities[identityKey(identity.Provider, identity.Subject)] = created.ID
	return created, nil
}

func (m *MemStore) LinkOAuthIdentity(_ context.Context, identity auth.OAuthIdentity) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := identityKey(identity.Provider, identity.Subject)
	if owner, ok := m.identities[key]; ok && owner != identity.UserID {
		return auth.ErrIdentityLinked
	}
	u, ok := m.users[identity.UserID]
	if !ok {
		return auth.ErrUserNotFound
	}
	m.identities[key] = identity.UserID
	u.OAuthProvider = identity.Provider
	return nil
}

func (m *MemStore) UnlinkOAuthIdentity(_ context.Context, userID uuid.UUID, provider string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for key, owner := range m.identities {
		if owner == userID && strings.HasPrefix(key, provider+"|") {
			delete(m.identities, key)
			m.users[userID].OAuthProvider = ""
			return nil
		}
	}
	return auth.ErrNoProviderLink
}

func (m *MemStore) UpdateProfile(_ context.Context, userID uuid.UUID, first, last string) (*auth.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[userID]
	if !ok {
		return nil, auth.ErrUserNotFound
	}
	u.FirstName, u.LastName = first, last
	cp := *u
	return &cp, nil
}

func (m *MemStore) UpdatePasswordHash(_ context.Context, userID uuid.UUID, hash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[userID]
	if !ok {
		return auth.ErrUserNotFound
	}
	u.PasswordHash = hash
	return nil
}

func (m *MemStore) ListPasskeys(_ context.Context, userID uuid.UUID) ([]auth.PasskeyCredential, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []auth.PasskeyCredential
	for _, p := range m.passkeys {
		if p.UserID == userID {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (m *MemStore) CreatePasskey(_ context.Context, cred *auth.PasskeyCredential) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *cred
	m.passkeys[cred.ID] = &cp
	return nil
}

func (m *MemStore) GetPasskeyByCredentialID(_ context.Context, credentialID []byte) (*auth.PasskeyCredential, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.passkeys {
		if bytes.Equal(p.CredentialID, credentialID) {
			cp := *p
			return &cp, nil
		}
	}
	return nil, auth.ErrPasskeyNotFound
}

func (m *MemStore) UpdatePasskeyCounter(_ context.Context, id uuid.UUID, signCount uint32, usedAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.passkeys[id]
	if !ok {
		return auth.ErrPasskeyNotFound
	}
	p.SignCount = signCount
	p.LastUsedAt = &usedAt
	return nil
}

func (m *MemStore) DeletePasskey(_ context.Context, userID, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.passkeys[id]
	if !ok || p.UserID != userID {
		return auth.ErrPasskeyNotFound
	}
	delete(m.passkeys, id)
	return nil
}

// FakeHasher stores passwords behind a fixed prefix.
type FakeHasher struct {
	Prefix string
}

func (h FakeHasher) Hash(_ context.Context, pw string) (string, error) { return h.Prefix + pw, nil }

func (h FakeHasher) Verify(_ context.Context, pw, encoded string) (bool, error) {
	return encoded == h.Prefix+pw, nil
}

func (h FakeHasher) NeedsRehash(encoded string) bool { return !strings.HasPrefix(encoded, h.Prefix) }
