package session

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/hostbridge/hostbridge-go/request"
	"github.com/hostbridge/hostbridge-go/storage"
)

// refreshLeeway is how close to its expiry a JWT access token may get
// before EnsureSession refreshes proactively.
const refreshLeeway = 30 * time.Second

// Listener observes session changes. It receives the current user record,
// or nil when the session was cleared.
type Listener func(user *User)

// Store holds the single authoritative Session, persists it to a durable
// key-value slot, and broadcasts changes to subscribers. All auth endpoint
// calls go through an unauthenticated executor; the token is attached
// explicitly per call, so the store never participates in the 401 retry
// loop it backs.
type Store struct {
	exec    *request.Executor
	storage storage.Store
	key     string
	logger  zerolog.Logger

	mu        sync.Mutex
	session   Session
	listeners map[uint64]Listener
	nextID    uint64

	refresh singleflight.Group
}

// StoreOption configures a Store.
type StoreOption func(*Store)

// WithLogger sets the store's logger. Defaults to a no-op logger.
func WithLogger(logger zerolog.Logger) StoreOption {
	return func(s *Store) {
		s.logger = logger
	}
}

// New creates a Store keyed by appID and seeds it from the storage slot
// "session_<appID>". Corrupt stored content is discarded and the slot
// removed.
func New(exec *request.Executor, store storage.Store, appID string, options ...StoreOption) *Store {
	s := &Store{
		exec:      exec,
		storage:   store,
		key:       "session_" + appID,
		logger:    zerolog.Nop(),
		listeners: make(map[uint64]Listener),
	}
	for _, opt := range options {
		opt(s)
	}
	s.restore()
	return s
}

// SignIn exchanges credentials for a token pair, fetches the user record
// the tokens belong to, and commits the full session atomically. On any
// failure in the sequence the existing session is left unchanged.
func (s *Store) SignIn(ctx context.Context, creds Credentials) (*User, error) {
	var pair tokenPair
	err := s.exec.Do(ctx, request.Request{
		Method: http.MethodPost,
		Path:   "/auth/token",
		Body:   creds,
	}, &pair)
	if err != nil {
		return nil, errors.Wrap(err, "[Store.SignIn] token request")
	}

	user, err := s.fetchUserWithToken(ctx, pair.AccessToken)
	if err != nil {
		return nil, errors.Wrap(err, "[Store.SignIn] fetch user")
	}

	s.commit(Session{User: user, AccessToken: pair.AccessToken, RefreshToken: pair.RefreshToken})
	return user, nil
}

// SignUp registers a new account and signs it in with the same
// credentials. No session mutation happens before the sign-in succeeds.
func (s *Store) SignUp(ctx context.Context, params SignUpParams) (*User, error) {
	err := s.exec.Do(ctx, request.Request{
		Method: http.MethodPost,
		Path:   "/auth/signup",
		Body:   params,
	}, nil)
	if err != nil {
		return nil, errors.Wrap(err, "[Store.SignUp] signup request")
	}
	return s.SignIn(ctx, Credentials{Email: params.Email, Password: params.Password})
}

// SignOut clears the session, removes the stored record, and notifies
// subscribers. It never fails.
func (s *Store) SignOut() {
	s.clear()
}

// RefreshSession exchanges the held refresh token for a new token pair.
// Without a refresh token it returns false immediately, no network call.
// Concurrent callers share a single in-flight refresh and all observe its
// outcome. On failure the session is cleared entirely.
func (s *Store) RefreshSession(ctx context.Context) bool {
	s.mu.Lock()
	refreshToken := s.session.RefreshToken
	s.mu.Unlock()
	if refreshToken == "" {
		return false
	}

	// The refresh mutation must land even if the originating caller is
	// cancelled mid-flight, so the shared call detaches from ctx's
	// cancellation. singleflight drops the key once the call settles,
	// success or not.
	result, _, _ := s.refresh.Do("refresh", func() (any, error) {
		return s.doRefresh(context.WithoutCancel(ctx)), nil
	})
	ok, _ := result.(bool)
	return ok
}

func (s *Store) doRefresh(ctx context.Context) bool {
	s.mu.Lock()
	current := s.session
	s.mu.Unlock()
	if current.RefreshToken == "" {
		return false
	}

	var pair tokenPair
	err := s.exec.Do(ctx, request.Request{
		Method: http.MethodPost,
		Path:   "/auth/refresh",
		Body:   map[string]string{"refreshToken": current.RefreshToken},
	}, &pair)
	if err != nil {
		s.logger.Warn().Err(err).Msg("session refresh failed")
		s.clear()
		return false
	}

	// The user record is replaced wholesale, never merged; here that means
	// carrying the current record forward under the new token pair.
	s.commit(Session{User: current.User, AccessToken: pair.AccessToken, RefreshToken: pair.RefreshToken})
	return true
}

// FetchUser retrieves the current-user record with the held access token.
// Without a token it returns (nil, nil) with no network call. A 401 clears
// the session and returns (nil, nil); any other failure leaves the session
// untouched and returns the error - a flaky server must never log the user
// out.
func (s *Store) FetchUser(ctx context.Context) (*User, error) {
	s.mu.Lock()
	token := s.session.AccessToken
	s.mu.Unlock()
	if token == "" {
		return nil, nil
	}

	user, err := s.fetchUserWithToken(ctx, token)
	if err != nil {
		if request.StatusOf(err) == http.StatusUnauthorized {
			s.logger.Debug().Msg("access token rejected, clearing session")
			s.clear()
			return nil, nil
		}
		return nil, errors.Wrap(err, "[Store.FetchUser] current user")
	}

	s.mu.Lock()
	s.session.User = user
	snapshot := s.session
	s.mu.Unlock()
	s.persist(snapshot)
	s.notify(user)
	return user, nil
}

// SetToken overwrites the access token only, leaving the refresh token and
// user record untouched. Used for externally obtained tokens, e.g. an OIDC
// identity handoff.
func (s *Store) SetToken(token string, persist bool) {
	s.mu.Lock()
	s.session.AccessToken = token
	snapshot := s.session
	s.mu.Unlock()
	if persist {
		s.persist(snapshot)
	}
	s.notify(snapshot.User)
}

// EnsureSession reports whether a usable authenticated session is held,
// refreshing first when the access token is a JWT that expires within the
// leeway window. Opaque (non-JWT) tokens are assumed usable.
func (s *Store) EnsureSession(ctx context.Context) bool {
	s.mu.Lock()
	current := s.session
	s.mu.Unlock()

	if !current.Authenticated() {
		return false
	}
	if !tokenExpiresWithin(current.AccessToken, refreshLeeway) {
		return true
	}
	return s.RefreshSession(ctx)
}

// Subscribe registers a listener, invokes it immediately with the current
// user (or nil), and returns an unsubscribe handle. A panicking listener is
// recovered and logged without affecting other listeners.
func (s *Store) Subscribe(listener Listener) (unsubscribe func()) {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = listener
	user := s.session.User
	s.mu.Unlock()

	s.invoke(listener, user)

	return func() {
		s.mu.Lock()
		delete(s.listeners, id)
		s.mu.Unlock()
	}
}

// AccessToken returns the held access token, "" when unauthenticated. It is
// the token-getter the authenticated executor is wired with.
func (s *Store) AccessToken() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.session.AccessToken
}

// RefreshToken returns the held refresh token, "" when absent.
func (s *Store) RefreshToken() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.session.RefreshToken
}

// User returns a copy of the current user record, nil when absent.
func (s *Store) User() *User {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.session.User == nil {
		return nil
	}
	user := *s.session.User
	return &user
}

// IsAuthenticated reports whether both a user record and an access token
// are held.
func (s *Store) IsAuthenticated() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.session.Authenticated()
}

func (s *Store) fetchUserWithToken(ctx context.Context, token string) (*User, error) {
	var user User
	err := s.exec.Do(ctx, request.Request{
		Method:  http.MethodGet,
		Path:    "/auth/user",
		Headers: map[string]string{"Authorization": "Bearer " + token},
	}, &user)
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (s *Store) commit(next Session) {
	s.mu.Lock()
	s.session = next
	s.mu.Unlock()
	s.persist(next)
	s.notify(next.User)
}

func (s *Store) clear() {
	s.mu.Lock()
	s.session = Session{}
	s.mu.Unlock()
	if err := s.storage.Remove(s.key); err != nil {
		s.logger.Warn().Err(err).Msg("failed to remove stored session")
	}
	s.notify(nil)
}

// persist mirrors the session to storage. Persistence is best effort and
// never fails the operation that triggered it.
func (s *Store) persist(sess Session) {
	raw, err := json.Marshal(sess)
	if err != nil {
		s.logger.Warn().Err(err).Msg("failed to encode session")
		return
	}
	if err := s.storage.Set(s.key, string(raw)); err != nil {
		s.logger.Warn().Err(err).Msg("failed to persist session")
	}
}

func (s *Store) restore() {
	raw, ok, err := s.storage.Get(s.key)
	if err != nil {
		s.logger.Warn().Err(err).Msg("failed to read stored session")
		return
	}
	if !ok {
		return
	}

	var sess Session
	if err := json.Unmarshal([]byte(raw), &sess); err != nil {
		s.logger.Warn().Err(err).Msg("stored session unreadable, clearing slot")
		if removeErr := s.storage.Remove(s.key); removeErr != nil {
			s.logger.Warn().Err(removeErr).Msg("failed to clear session slot")
		}
		return
	}
	s.session = sess
}

func (s *Store) notify(user *User) {
	s.mu.Lock()
	listeners := make([]Listener, 0, len(s.listeners))
	for _, listener := range s.listeners {
		listeners = append(listeners, listener)
	}
	s.mu.Unlock()

	for _, listener := range listeners {
		s.invoke(listener, user)
	}
}

func (s *Store) invoke(listener Listener, user *User) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error().Interface("panic", r).Msg("session listener panicked")
		}
	}()
	listener(user)
}

// tokenExpiresWithin decodes raw as a JWT without verifying it and reports
// whether its exp claim falls inside leeway. Tokens that are not JWTs or
// carry no expiry report false.
func tokenExpiresWithin(raw string, leeway time.Duration) bool {
	claims := jwtlib.MapClaims{}
	if _, _, err := jwtlib.NewParser().ParseUnverified(raw, claims); err != nil {
		return false
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return false
	}
	return time.Until(exp.Time) < leeway
}
