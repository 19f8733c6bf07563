package core

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/valter-silva-au/taskclock/internal/storage"
	"github.com/valter-silva-au/taskclock/pkg/models"
	"golang.org/x/crypto/bcrypt"
)

// MinPasswordLength is the shortest password accepted at sign-up.
const MinPasswordLength = 6

var emailPattern = regexp.MustCompile(`\S+@\S+\.\S+`)

// IdentityState is the lifecycle of the current identity.
type IdentityState string

const (
	IdentityLoading   IdentityState = "loading"
	IdentitySignedIn  IdentityState = "signed_in"
	IdentitySignedOut IdentityState = "signed_out"
)

// IdentityChange is delivered to subscribers whenever the identity or its
// state changes. Identity is nil unless State is IdentitySignedIn.
type IdentityChange struct {
	Identity *models.Identity
	State    IdentityState
}

// IdentityProvider resolves who the current user is.
type IdentityProvider interface {
	Load(ctx context.Context) error
	SignUp(ctx context.Context, creds models.Credentials) (models.Identity, error)
	SignIn(ctx context.Context, creds models.Credentials) (models.Identity, error)
	SignOut(ctx context.Context) error
	Current() (models.Identity, bool)
	State() IdentityState
	Subscribe(fn func(IdentityChange)) (unsubscribe func())
}

// IdentityProviderConfig carries the provider's collaborators. Store is
// required. BcryptCost defaults to bcrypt.DefaultCost.
type IdentityProviderConfig struct {
	Store      storage.KVStore
	Clock      Clock
	IDs        IDGenerator
	Logger     logrus.FieldLogger
	Events     EventLogger
	BcryptCost int
}

type identityProvider struct {
	kv     storage.KVStore
	clock  Clock
	ids    IDGenerator
	log    logrus.FieldLogger
	events EventLogger
	cost   int

	mu      sync.Mutex
	current *models.Identity
	state   IdentityState

	subMu  sync.Mutex
	subs   map[int]func(IdentityChange)
	nextID int
}

// NewIdentityProvider creates an IdentityProvider in the loading state.
func NewIdentityProvider(cfg IdentityProviderConfig) IdentityProvider {
	p := &identityProvider{
		kv:     cfg.Store,
		clock:  cfg.Clock,
		ids:    cfg.IDs,
		log:    cfg.Logger,
		events: cfg.Events,
		cost:   cfg.BcryptCost,
		state:  IdentityLoading,
		subs:   make(map[int]func(IdentityChange)),
	}
	if p.clock == nil {
		p.clock = SystemClock()
	}
	if p.ids == nil {
		p.ids = NewUUIDGenerator()
	}
	if p.log == nil {
		p.log = discardLogger()
	}
	if p.cost == 0 {
		p.cost = bcrypt.DefaultCost
	}
	return p
}

// Load restores the persisted identity, if any, and settles the state.
func (p *identityProvider) Load(ctx context.Context) error {
	data, found, err := p.kv.Get(ctx, storage.IdentityKey)
	if err != nil {
		p.set(nil, IdentitySignedOut)
		return persistenceError("loading identity", err)
	}
	if !found {
		p.set(nil, IdentitySignedOut)
		return nil
	}

	id, err := storage.DecodeIdentity(data)
	if err != nil {
		p.log.WithError(err).Warn("discarding unreadable identity")
		p.set(nil, IdentitySignedOut)
		return nil
	}
	p.set(&id, IdentitySignedIn)
	return nil
}

// SignUp registers a new account and signs it in.
func (p *identityProvider) SignUp(ctx context.Context, creds models.Credentials) (models.Identity, error) {
	email := normalizeEmail(creds.Email)
	if err := validateSignUp(email, creds); err != nil {
		return models.Identity{}, err
	}

	accounts, err := p.loadAccounts(ctx)
	if err != nil {
		return models.Identity{}, err
	}
	if _, exists := accounts[email]; exists {
		return models.Identity{}, invalid("email", "an account with this email already exists")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(creds.Password), p.cost)
	if err != nil {
		return models.Identity{}, fmt.Errorf("hashing password: %w", err)
	}
	acct := models.Account{
		ID:           p.ids.NewID(),
		Email:        email,
		PasswordHash: string(hash),
		CreatedAt:    p.clock.Now().UTC().Format(time.RFC3339),
	}
	accounts[email] = acct

	data, err := storage.EncodeAccounts(accounts)
	if err != nil {
		return models.Identity{}, persistenceError("saving accounts", err)
	}
	if err := p.kv.Set(ctx, storage.AccountsKey, data); err != nil {
		return models.Identity{}, persistenceError("saving accounts", err)
	}

	id := models.Identity{ID: acct.ID, Email: acct.Email}
	if err := p.persist(ctx, id); err != nil {
		return models.Identity{}, err
	}
	p.logEvent("auth.signed_up", map[string]any{"user_id": id.ID})
	p.set(&id, IdentitySignedIn)
	return id, nil
}

// SignIn verifies credentials against the account registry. Malformed
// input, an unknown email and a wrong password all fail with
// ErrInvalidCredentials.
func (p *identityProvider) SignIn(ctx context.Context, creds models.Credentials) (models.Identity, error) {
	email := normalizeEmail(creds.Email)
	if !emailPattern.MatchString(email) || len(creds.Password) < MinPasswordLength {
		return models.Identity{}, fmt.Errorf("signing in: %w", ErrInvalidCredentials)
	}

	accounts, err := p.loadAccounts(ctx)
	if err != nil {
		return models.Identity{}, err
	}
	acct, ok := accounts[email]
	if !ok {
		return models.Identity{}, fmt.Errorf("signing in: %w", ErrInvalidCredentials)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(acct.PasswordHash), []byte(creds.Password)); err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return models.Identity{}, fmt.Errorf("signing in: %w", ErrInvalidCredentials)
		}
		return models.Identity{}, fmt.Errorf("signing in: verifying password: %w", err)
	}

	id := models.Identity{ID: acct.ID, Email: acct.Email}
	if err := p.persist(ctx, id); err != nil {
		return models.Identity{}, err
	}
	p.logEvent("auth.signed_in", map[string]any{"user_id": id.ID})
	p.set(&id, IdentitySignedIn)
	return id, nil
}

// SignOut forgets the current identity. Task data is left in place.
func (p *identityProvider) SignOut(ctx context.Context) error {
	p.mu.Lock()
	prev := p.current
	p.mu.Unlock()

	if err := p.kv.Remove(ctx, storage.IdentityKey); err != nil {
		return persistenceError("signing out", err)
	}
	if prev != nil {
		p.logEvent("auth.signed_out", map[string]any{"user_id": prev.ID})
	}
	p.set(nil, IdentitySignedOut)
	return nil
}

func (p *identityProvider) Current() (models.Identity, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.current == nil {
		return models.Identity{}, false
	}
	return *p.current, true
}

func (p *identityProvider) State() IdentityState {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Subscribe registers fn for identity changes. fn runs on the goroutine
// that made the change.
func (p *identityProvider) Subscribe(fn func(IdentityChange)) func() {
	p.subMu.Lock()
	id := p.nextID
	p.nextID++
	p.subs[id] = fn
	p.subMu.Unlock()

	return func() {
		p.subMu.Lock()
		delete(p.subs, id)
		p.subMu.Unlock()
	}
}

func (p *identityProvider) change() IdentityChange {
	p.mu.Lock()
	defer p.mu.Unlock()
	c := IdentityChange{State: p.state}
	if p.current != nil {
		id := *p.current
		c.Identity = &id
	}
	return c
}

func (p *identityProvider) set(id *models.Identity, state IdentityState) {
	p.mu.Lock()
	p.current = id
	p.state = state
	p.mu.Unlock()

	change := p.change()
	p.subMu.Lock()
	fns := make([]func(IdentityChange), 0, len(p.subs))
	for _, fn := range p.subs {
		fns = append(fns, fn)
	}
	p.subMu.Unlock()
	for _, fn := range fns {
		fn(change)
	}
}

func (p *identityProvider) persist(ctx context.Context, id models.Identity) error {
	data, err := storage.EncodeIdentity(id)
	if err != nil {
		return persistenceError("saving identity", err)
	}
	if err := p.kv.Set(ctx, storage.IdentityKey, data); err != nil {
		return persistenceError("saving identity", err)
	}
	return nil
}

func (p *identityProvider) loadAccounts(ctx context.Context) (map[string]models.Account, error) {
	data, found, err := p.kv.Get(ctx, storage.AccountsKey)
	if err != nil {
		return nil, persistenceError("loading accounts", err)
	}
	if !found {
		return make(map[string]models.Account), nil
	}
	accounts, err := storage.DecodeAccounts(data)
	if err != nil {
		return nil, persistenceError("loading accounts", err)
	}
	return accounts, nil
}

func (p *identityProvider) logEvent(eventType string, data map[string]any) {
	if p.events == nil {
		return
	}
	if err := p.events.LogEvent(eventType, data); err != nil {
		p.log.WithError(err).WithField("event", eventType).Warn("recording event")
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func validateSignUp(email string, creds models.Credentials) error {
	switch {
	case email == "":
		return invalid("email", "email is required")
	case !emailPattern.MatchString(email):
		return invalid("email", "email is invalid")
	case creds.Password == "":
		return invalid("password", "password is required")
	case len(creds.Password) < MinPasswordLength:
		return invalid("password", fmt.Sprintf("password must be at least %d characters", MinPasswordLength))
	case creds.Confirm != creds.Password:
		return invalid("confirm", "passwords do not match")
	}
	return nil
}
