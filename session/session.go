// Package session owns the authenticated identity of the SDK: the current
// user record and token pair, its persistence across restarts, and change
// notification to subscribers.
package session

// User is the platform's record of the signed-in account.
type User struct {
	ID       string  `json:"id"`
	TenantID string  `json:"tenantId"`
	Email    string  `json:"email"`
	Name     *string `json:"name"`
}

// Session is the authenticated identity held in memory and mirrored to
// storage. A session is authenticated only when both the user record and
// the access token are present; neither alone counts.
type Session struct {
	User         *User  `json:"user"`
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

// Authenticated reports whether the session holds both a user record and an
// access token.
func (s Session) Authenticated() bool {
	return s.User != nil && s.AccessToken != ""
}

// tokenPair is the response shape of the token and refresh endpoints.
type tokenPair struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

// Credentials are the inputs to SignIn.
type Credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// SignUpParams are the inputs to SignUp.
type SignUpParams struct {
	Email    string  `json:"email"`
	Password string  `json:"password"`
	Name     *string `json:"name,omitempty"`
}
