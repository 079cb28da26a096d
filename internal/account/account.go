// Package account manages sign-in, session tokens and the learner profile.
package account

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"net/mail"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/verte-zerg/sqlquest/internal/apperr"
	"github.com/verte-zerg/sqlquest/internal/events"
	"github.com/verte-zerg/sqlquest/internal/logx"
	"github.com/verte-zerg/sqlquest/internal/model"
	"github.com/verte-zerg/sqlquest/internal/progress"
	"github.com/verte-zerg/sqlquest/internal/store"
)

const (
	// DailyRewardCrystals is granted once per DailyRewardInterval on sign-in.
	DailyRewardCrystals = 20
	DailyRewardInterval = 24 * time.Hour

	// GuestName is shown while nobody is signed in.
	GuestName = "Guest"

	minPasswordLen = 6
)

var (
	ErrInvalidCredentials = apperr.New(apperr.CategoryAuth, apperr.CodeBadLogin, "invalid email or password")
	ErrAccountExists      = errors.New("an account with this email already exists")
	ErrNotSignedIn        = errors.New("not signed in")
)

// Store persists accounts and the daily reward.
type Store interface {
	CreateAccount(ctx context.Context, acc model.Account) error
	AccountByEmail(ctx context.Context, email string) (model.Account, error)
	AccountByID(ctx context.Context, id string) (model.Account, error)
	UpdateProfile(ctx context.Context, accountID, username, avatarID string) error
	ClaimDailyReward(ctx context.Context, accountID string, now time.Time, interval time.Duration, amount int) (store.DailyReward, error)
}

// Claims are carried by session tokens.
type Claims struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	jwt.RegisteredClaims
}

// Service signs learners in and out and publishes their profile. Progress is
// switched to the signed-in account; guests use model.LocalAccountID.
type Service struct {
	store       Store
	tracker     *progress.Tracker
	secret      []byte
	ttl         time.Duration
	sessionPath string
	guestID     string
	cost        int
	now         func() time.Time

	mu      sync.Mutex
	current *model.Account

	// Profile always holds the latest profile, guest or signed in.
	Profile *events.Latest[model.Profile]
	// SignedIn tells whether an account is active.
	SignedIn *events.Latest[bool]
	// Messages carries one-shot notices such as the daily reward.
	Messages *events.Queue[string]
}

// Option configures a Service.
type Option func(*Service)

// WithTTL sets the session token lifetime.
func WithTTL(ttl time.Duration) Option {
	return func(s *Service) {
		s.ttl = ttl
	}
}

// WithGuestID sets the account that owns progress while nobody is signed in.
func WithGuestID(id string) Option {
	return func(s *Service) {
		if id != "" {
			s.guestID = id
		}
	}
}

// WithSessionPath stores the session token at path. Empty disables storage.
func WithSessionPath(path string) Option {
	return func(s *Service) {
		s.sessionPath = path
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

// WithBcryptCost overrides the password hashing cost.
func WithBcryptCost(cost int) Option {
	return func(s *Service) {
		s.cost = cost
	}
}

// NewService creates a service starting as guest.
func NewService(st Store, tracker *progress.Tracker, secret string, opts ...Option) (*Service, error) {
	if strings.TrimSpace(secret) == "" {
		return nil, apperr.Validation("token signing secret is empty")
	}
	s := &Service{
		store:    st,
		tracker:  tracker,
		secret:   []byte(secret),
		ttl:      30 * 24 * time.Hour,
		guestID:  model.LocalAccountID,
		cost:     bcrypt.DefaultCost,
		now:      time.Now,
		SignedIn: events.NewLatest(false),
		Messages: events.NewQueue[string](),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.Profile = events.NewLatest(s.buildProfile(tracker.Snapshot()))
	tracker.OnChange(func(state model.ProgressState) {
		s.Profile.Publish(s.buildProfile(state))
	})
	return s, nil
}

// Current returns the signed-in account.
func (s *Service) Current() (model.Account, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil {
		return model.Account{}, false
	}
	return *s.current, true
}

// Register creates an account and signs it in.
func (s *Service) Register(ctx context.Context, email, password, username string) (model.Account, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if _, err := mail.ParseAddress(email); err != nil || !strings.Contains(email, "@") {
		return model.Account{}, apperr.Validation(fmt.Sprintf("invalid email %q", email))
	}
	if len(password) < minPasswordLen {
		return model.Account{}, apperr.Validation(fmt.Sprintf("password must be at least %d characters", minPasswordLen))
	}
	username = strings.TrimSpace(username)
	if username == "" {
		username = strings.SplitN(email, "@", 2)[0]
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return model.Account{}, fmt.Errorf("failed to hash password: %w", err)
	}
	acc := model.Account{
		ID:           uuid.NewString(),
		Email:        email,
		Username:     username,
		PasswordHash: string(hash),
		CreatedAt:    s.now().UTC(),
	}
	if err := s.store.CreateAccount(ctx, acc); err != nil {
		if errors.Is(err, store.ErrConflict) {
			return model.Account{}, ErrAccountExists
		}
		return model.Account{}, apperr.Persistence("failed to create account", err)
	}
	if err := s.signIn(ctx, acc, true); err != nil {
		return model.Account{}, err
	}
	return acc, nil
}

// Login checks credentials and signs the account in.
func (s *Service) Login(ctx context.Context, email, password string) (model.Account, error) {
	acc, err := s.store.AccountByEmail(ctx, email)
	if errors.Is(err, store.ErrNotFound) {
		return model.Account{}, ErrInvalidCredentials
	}
	if err != nil {
		return model.Account{}, apperr.Wrap(apperr.CategoryPersistence, apperr.CodeReadFailed, "failed to load account", err)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(acc.PasswordHash), []byte(password)); err != nil {
		return model.Account{}, ErrInvalidCredentials
	}
	if err := s.signIn(ctx, acc, true); err != nil {
		return model.Account{}, err
	}
	return acc, nil
}

// Resume restores the session stored on disk. ErrNotSignedIn means there is
// no usable session; an invalid token file is removed.
func (s *Service) Resume(ctx context.Context) (model.Account, error) {
	if s.sessionPath == "" {
		return model.Account{}, ErrNotSignedIn
	}
	raw, err := os.ReadFile(s.sessionPath)
	if err != nil {
		if os.IsNotExist(err) {
			return model.Account{}, ErrNotSignedIn
		}
		return model.Account{}, fmt.Errorf("failed to read session: %w", err)
	}
	acc, err := s.Restore(ctx, strings.TrimSpace(string(raw)))
	if err != nil && apperr.CategoryOf(err) == apperr.CategoryAuth {
		s.removeSession()
	}
	return acc, err
}

// Restore signs in with a previously issued token.
func (s *Service) Restore(ctx context.Context, token string) (model.Account, error) {
	claims, err := s.ParseToken(token)
	if err != nil {
		return model.Account{}, err
	}
	acc, err := s.store.AccountByID(ctx, claims.Subject)
	if errors.Is(err, store.ErrNotFound) {
		return model.Account{}, apperr.Wrap(apperr.CategoryAuth, apperr.CodeInvalidToken, "token refers to an unknown account", err)
	}
	if err != nil {
		return model.Account{}, apperr.Wrap(apperr.CategoryPersistence, apperr.CodeReadFailed, "failed to load account", err)
	}
	if err := s.signIn(ctx, acc, false); err != nil {
		return model.Account{}, err
	}
	return acc, nil
}

// Logout forgets the session and switches progress back to the guest.
func (s *Service) Logout(ctx context.Context) error {
	s.mu.Lock()
	s.current = nil
	s.mu.Unlock()
	s.removeSession()
	s.SignedIn.Publish(false)
	if err := s.tracker.Reload(ctx, s.guestID); err != nil {
		return err
	}
	return nil
}

// UpdateProfile changes the display name and avatar of the signed-in account.
func (s *Service) UpdateProfile(ctx context.Context, username, avatarID string) error {
	acc, ok := s.Current()
	if !ok {
		return ErrNotSignedIn
	}
	username = strings.TrimSpace(username)
	if username == "" {
		return apperr.Validation("username must not be empty")
	}
	if err := s.store.UpdateProfile(ctx, acc.ID, username, avatarID); err != nil {
		return apperr.Persistence("failed to update profile", err)
	}
	s.mu.Lock()
	if s.current != nil && s.current.ID == acc.ID {
		s.current.Username = username
		s.current.AvatarID = avatarID
	}
	s.mu.Unlock()
	s.Profile.Publish(s.buildProfile(s.tracker.Snapshot()))
	return nil
}

// IssueToken signs a session token for acc.
func (s *Service) IssueToken(acc model.Account) (string, error) {
	now := s.now()
	claims := Claims{
		Name:  acc.Username,
		Email: acc.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   acc.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// ParseToken validates a session token and returns its claims.
func (s *Service) ParseToken(tokenString string) (Claims, error) {
	var claims Claims
	token, err := jwt.ParseWithClaims(tokenString, &claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.secret, nil
	}, jwt.WithValidMethods([]string{"HS256"}), jwt.WithTimeFunc(s.now), jwt.WithExpirationRequired())
	if err != nil {
		return Claims{}, apperr.Wrap(apperr.CategoryAuth, apperr.CodeInvalidToken, "invalid session token", err)
	}
	if !token.Valid || claims.Subject == "" {
		return Claims{}, apperr.New(apperr.CategoryAuth, apperr.CodeInvalidToken, "invalid session token")
	}
	return claims, nil
}

func (s *Service) signIn(ctx context.Context, acc model.Account, fresh bool) error {
	if fresh && s.sessionPath != "" {
		token, err := s.IssueToken(acc)
		if err != nil {
			return err
		}
		if err := writeSession(s.sessionPath, token); err != nil {
			// The account is still usable for this run.
			logx.Errf("failed to store session: %v\n", err)
		}
	}

	s.mu.Lock()
	signed := acc
	signed.PasswordHash = ""
	s.current = &signed
	s.mu.Unlock()

	reward, err := s.store.ClaimDailyReward(ctx, acc.ID, s.now(), DailyRewardInterval, DailyRewardCrystals)
	if err != nil {
		logx.Errf("failed to claim daily reward: %v\n", err)
	} else if reward.Granted {
		if reward.First {
			s.Messages.Push(fmt.Sprintf("Welcome! +%d crystals", DailyRewardCrystals))
		} else {
			s.Messages.Push(fmt.Sprintf("Daily reward! +%d crystals", DailyRewardCrystals))
		}
	}

	if err := s.tracker.Reload(ctx, acc.ID); err != nil {
		return err
	}
	s.SignedIn.Publish(true)
	return nil
}

func (s *Service) buildProfile(state model.ProgressState) model.Profile {
	p := model.Profile{
		AccountID:  state.AccountID,
		Username:   GuestName,
		Crystals:   state.Crystals,
		Experience: state.Experience,
		Streak:     state.Streak,
		LastLogin:  state.LastLogin,
	}
	for id, done := range state.CompletedLessons {
		if done {
			p.CompletedLessons = append(p.CompletedLessons, id)
		}
	}
	sort.Strings(p.CompletedLessons)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current != nil && s.current.ID == state.AccountID {
		p.Username = s.current.Username
		p.Email = s.current.Email
		p.AvatarID = s.current.AvatarID
	}
	return p
}

func (s *Service) removeSession() {
	if s.sessionPath == "" {
		return
	}
	if err := os.Remove(s.sessionPath); err != nil && !os.IsNotExist(err) {
		logx.Errf("failed to remove session: %v\n", err)
	}
}

func writeSession(path, token string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("failed to create session directory: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), "session-*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create session file: %w", err)
	}
	tmpPath := tmp.Name()
	defer func() {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
	}()
	if _, err := tmp.WriteString(token); err != nil {
		return fmt.Errorf("failed to write session: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close session: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("failed to write session: %w", err)
	}
	return nil
}

// LoadOrCreateSecret returns the signing secret kept at path, creating a
// random one on first use.
func LoadOrCreateSecret(path string) (string, error) {
	raw, err := os.ReadFile(path)
	if err == nil && strings.TrimSpace(string(raw)) != "" {
		return strings.TrimSpace(string(raw)), nil
	}
	if err != nil && !os.IsNotExist(err) {
		return "", fmt.Errorf("failed to read secret: %w", err)
	}
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate secret: %w", err)
	}
	secret := hex.EncodeToString(buf)
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return "", fmt.Errorf("failed to create secret directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(secret), 0o600); err != nil {
		return "", fmt.Errorf("failed to write secret: %w", err)
	}
	return secret, nil
}
