package session

import (
	"encoding/json"
	"errors"
	"reflect"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/nurseryfinder/nurseryfinder-backend/pkg/enums"
)

var (
	ErrMissingToken    = errors.New("session: access token is required")
	ErrMalformedToken  = errors.New("session: access token is not a jwt")
	ErrMissingIdentity = errors.New("session: user identity is required")
	ErrRoleNotAllowed  = errors.New("session: role does not belong to this session domain")
)

type Tokens struct {
	Access  string
	Refresh string
}

// UserSummary is the identity persisted next to the tokens.
type UserSummary struct {
	ID          uuid.UUID  `json:"id"`
	Email       string     `json:"email"`
	FirstName   string     `json:"firstName,omitempty"`
	LastName    string     `json:"lastName,omitempty"`
	Phone       string     `json:"phone,omitempty"`
	NurseryName string     `json:"nurseryName,omitempty"`
	Role        enums.Role `json:"role"`
}

// Snapshot is the synchronous view of one session domain.
type Snapshot struct {
	Authenticated bool
	Role          enums.Role
	User          *UserSummary
}

func (s Snapshot) equal(o Snapshot) bool {
	return s.Authenticated == o.Authenticated && s.Role == o.Role && reflect.DeepEqual(s.User, o.User)
}

type keySet struct {
	access  string
	refresh string
	role    string
	email   string
	user    string
	// profile fields persisted individually, keyed by storage key
	profile map[string]func(UserSummary) string
}

func (k keySet) all() []string {
	keys := []string{k.access, k.refresh, k.role, k.email, k.user}
	for key := range k.profile {
		keys = append(keys, key)
	}
	return keys
}

// store holds the logic shared by AdminStore and UserStore. It is never
// exposed so the two domains stay distinct types.
type store struct {
	storage Storage
	keys    keySet
	accept  func(enums.Role) bool
	now     func() time.Time

	mu        sync.Mutex
	last      Snapshot
	subs      watchers
	unwatch   func()
	listeners int
}

func newStore(storage Storage, keys keySet, accept func(enums.Role) bool) *store {
	s := &store{storage: storage, keys: keys, accept: accept, now: time.Now}
	s.last = s.Current()
	return s
}

// Current never fails. Missing, expired or undecodable state reads as
// signed out.
func (s *store) Current() Snapshot {
	token, ok := s.storage.Get(s.keys.access)
	if !ok || token == "" || !s.tokenUsable(token) {
		return Snapshot{}
	}
	raw, ok := s.storage.Get(s.keys.user)
	if !ok || raw == "" {
		return Snapshot{}
	}
	var user UserSummary
	if err := json.Unmarshal([]byte(raw), &user); err != nil {
		return Snapshot{}
	}
	role, _ := s.storage.Get(s.keys.role)
	if enums.Role(role) != user.Role || !s.accept(user.Role) {
		return Snapshot{}
	}
	return Snapshot{Authenticated: true, Role: user.Role, User: &user}
}

func (s *store) tokenUsable(token string) bool {
	claims := jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err != nil {
		return false
	}
	if claims.ExpiresAt != nil && !claims.ExpiresAt.After(s.now()) {
		return false
	}
	return true
}

// AccessToken returns the stored bearer token, or "" when signed out.
func (s *store) AccessToken() string {
	if !s.Current().Authenticated {
		return ""
	}
	token, _ := s.storage.Get(s.keys.access)
	return token
}

func (s *store) RefreshToken() string {
	token, _ := s.storage.Get(s.keys.refresh)
	return token
}

// Set validates everything first and then writes every key in one batch, so
// a token is never persisted without its identity.
func (s *store) Set(tokens Tokens, user *UserSummary) error {
	if strings.TrimSpace(tokens.Access) == "" {
		return ErrMissingToken
	}
	if _, _, err := jwt.NewParser().ParseUnverified(tokens.Access, &jwt.RegisteredClaims{}); err != nil {
		return ErrMalformedToken
	}
	if user == nil || strings.TrimSpace(user.Email) == "" {
		return ErrMissingIdentity
	}
	if !s.accept(user.Role) {
		return ErrRoleNotAllowed
	}
	raw, err := json.Marshal(user)
	if err != nil {
		return err
	}

	set := map[string]string{
		s.keys.access: tokens.Access,
		s.keys.role:   string(user.Role),
		s.keys.email:  user.Email,
		s.keys.user:   string(raw),
	}
	var remove []string
	if tokens.Refresh != "" {
		set[s.keys.refresh] = tokens.Refresh
	} else {
		remove = append(remove, s.keys.refresh)
	}
	for key, field := range s.keys.profile {
		if v := field(*user); v != "" {
			set[key] = v
		} else {
			remove = append(remove, key)
		}
	}

	copied := *user
	s.mu.Lock()
	prev := s.last
	s.last = Snapshot{Authenticated: true, Role: user.Role, User: &copied}
	s.mu.Unlock()

	if err := s.storage.Update(set, remove); err != nil {
		s.mu.Lock()
		s.last = prev
		s.mu.Unlock()
		return err
	}
	return nil
}

// Clear removes every key of this domain only.
func (s *store) Clear() error {
	s.mu.Lock()
	s.last = Snapshot{}
	s.mu.Unlock()
	return s.storage.Update(nil, s.keys.all())
}

// OnExternalChange calls cb with the re-derived snapshot whenever another
// writer changes this domain's keys.
func (s *store) OnExternalChange(cb func(Snapshot)) func() {
	cancelSub := s.subs.add(func([]string) { cb(s.lastSnapshot()) })

	s.mu.Lock()
	s.listeners++
	if s.unwatch == nil {
		s.unwatch = s.storage.Watch(s.storageChanged)
	}
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			cancelSub()
			s.mu.Lock()
			s.listeners--
			if s.listeners == 0 && s.unwatch != nil {
				s.unwatch()
				s.unwatch = nil
			}
			s.mu.Unlock()
		})
	}
}

func (s *store) lastSnapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last
}

func (s *store) storageChanged(changed []string) {
	own := s.keys.all()
	relevant := slices.ContainsFunc(changed, func(k string) bool { return slices.Contains(own, k) })
	if !relevant {
		return
	}
	snap := s.Current()
	s.mu.Lock()
	if snap.equal(s.last) {
		s.mu.Unlock()
		return
	}
	s.last = snap
	s.mu.Unlock()
	s.subs.notify(changed)
}

// AdminStore holds the admin session. It only ever accepts role ADMIN.
type AdminStore struct{ *store }

func NewAdminStore(storage Storage) *AdminStore {
	keys := keySet{
		access:  "adminAccessToken",
		refresh: "adminRefreshToken",
		role:    "adminRole",
		email:   "adminEmail",
		user:    "adminUser",
	}
	return &AdminStore{newStore(storage, keys, func(r enums.Role) bool { return r == enums.RoleAdmin })}
}

// UserStore holds the parent, owner or user session and never accepts ADMIN.
type UserStore struct{ *store }

func NewUserStore(storage Storage) *UserStore {
	keys := keySet{
		access:  "accessToken",
		refresh: "refreshToken",
		role:    "role",
		email:   "email",
		user:    "user",
		profile: map[string]func(UserSummary) string{
			"firstName":   func(u UserSummary) string { return u.FirstName },
			"lastName":    func(u UserSummary) string { return u.LastName },
			"phone":       func(u UserSummary) string { return u.Phone },
			"nurseryName": func(u UserSummary) string { return u.NurseryName },
		},
	}
	return &UserStore{newStore(storage, keys, func(r enums.Role) bool {
		return r.IsValid() && r.Domain() == enums.SessionDomainUser
	})}
}
