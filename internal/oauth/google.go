package oauth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"credit_ledger/internal/model"
	"credit_ledger/internal/repository"
	"credit_ledger/internal/session"

	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrProviderFailure is the only error detail the login surface ever
	// sees; provider responses are logged server-side.
	ErrProviderFailure = errors.New("google sign-in failed")

	// ErrInvalidState covers missing, unknown and expired state values.
	ErrInvalidState = errors.New("invalid or expired sign-in attempt")
)

const (
	googleAuthURL     = "https://accounts.google.com/o/oauth2/v2/auth"
	googleTokenURL    = "https://oauth2.googleapis.com/token"
	googleUserinfoURL = "https://www.googleapis.com/oauth2/v3/userinfo"
)

// Config holds the registered OAuth client credentials
type Config struct {
	ClientID     string
	ClientSecret string
	RedirectURI  string
}

// StoreHealth reports whether the backing store is currently reachable.
type StoreHealth interface {
	Healthy() bool
}

// Provider drives the Google authorization-code flow and maps the external
// identity onto a local user and session.
type Provider struct {
	cfg      Config
	users    repository.UserRepository
	sessions session.Registry
	health   StoreHealth
	states   *stateStore
	client   *http.Client

	// Overridable in tests.
	AuthURL     string
	TokenURL    string
	UserinfoURL string
}

// NewProvider creates a Provider against Google's production endpoints
func NewProvider(cfg Config, users repository.UserRepository, sessions session.Registry, health StoreHealth) *Provider {
	return &Provider{
		cfg:         cfg,
		users:       users,
		sessions:    sessions,
		health:      health,
		states:      newStateStore(10 * time.Minute),
		client:      &http.Client{Timeout: 10 * time.Second},
		AuthURL:     googleAuthURL,
		TokenURL:    googleTokenURL,
		UserinfoURL: googleUserinfoURL,
	}
}

// AuthorizationURL builds the consent URL with a fresh per-attempt state
// value that HandleCallback verifies and consumes.
func (p *Provider) AuthorizationURL() (string, error) {
	state, err := p.states.Create()
	if err != nil {
		return "", fmt.Errorf("failed to create oauth state: %w", err)
	}
	params := url.Values{
		"client_id":     {p.cfg.ClientID},
		"redirect_uri":  {p.cfg.RedirectURI},
		"response_type": {"code"},
		"scope":         {"openid email profile"},
		"access_type":   {"offline"},
		"prompt":        {"consent"},
		"state":         {state},
	}
	return p.AuthURL + "?" + params.Encode(), nil
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	IDToken     string `json:"id_token"`
}

type userInfo struct {
	Sub           string `json:"sub"`
	Email         string `json:"email"`
	Name          string `json:"name"`
	Picture       string `json:"picture"`
	EmailVerified bool   `json:"email_verified"`
}

// HandleCallback completes the flow: state check, code exchange, profile
// fetch, local user mapping, session issuance. Every provider-side failure
// collapses into ErrProviderFailure.
func (p *Provider) HandleCallback(ctx context.Context, code, state string) (*session.Session, error) {
	if !p.states.Consume(state) {
		return nil, ErrInvalidState
	}
	if code == "" {
		return nil, ErrProviderFailure
	}

	tok, err := p.exchangeCode(ctx, code)
	if err != nil {
		log.Printf("google token exchange failed: %v", err)
		return nil, ErrProviderFailure
	}

	info, err := p.fetchUserInfo(ctx, tok.AccessToken)
	if err != nil {
		log.Printf("google userinfo fetch failed: %v", err)
		info = &userInfo{}
	}
	if info.Email == "" && tok.IDToken != "" {
		// The id_token arrived over the server-to-server exchange; use its
		// claims when the userinfo endpoint came back short.
		fillFromIDToken(info, tok.IDToken)
	}
	if info.Email == "" {
		return nil, ErrProviderFailure
	}
	if !info.EmailVerified {
		log.Printf("google account %s has unverified email, refusing login", info.Email)
		return nil, ErrProviderFailure
	}

	if !p.health.Healthy() {
		log.Println("google callback refused: store unreachable")
		return nil, ErrProviderFailure
	}

	user, err := p.mapUser(ctx, info)
	if err != nil {
		log.Printf("failed to map google identity to local user: %v", err)
		return nil, ErrProviderFailure
	}

	return p.sessions.Issue(user.ID, user.Username, user.Role, model.ProviderGoogle)
}

// exchangeCode swaps the authorization code for tokens
func (p *Provider) exchangeCode(ctx context.Context, code string) (*tokenResponse, error) {
	form := url.Values{
		"code":          {code},
		"client_id":     {p.cfg.ClientID},
		"client_secret": {p.cfg.ClientSecret},
		"redirect_uri":  {p.cfg.RedirectURI},
		"grant_type":    {"authorization_code"},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.TokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("token endpoint returned %d: %s", resp.StatusCode, body)
	}

	var tok tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tok); err != nil {
		return nil, fmt.Errorf("malformed token response: %w", err)
	}
	if tok.AccessToken == "" {
		return nil, errors.New("no access token in response")
	}
	return &tok, nil
}

// fetchUserInfo loads the profile using the provider access token
func (p *Provider) fetchUserInfo(ctx context.Context, accessToken string) (*userInfo, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.UserinfoURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("userinfo endpoint returned %d: %s", resp.StatusCode, body)
	}

	var info userInfo
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return nil, fmt.Errorf("malformed userinfo response: %w", err)
	}
	return &info, nil
}

// fillFromIDToken copies missing fields out of the id_token claims. The
// signature is not re-verified here: the token came straight from the
// provider over TLS, not from the client.
func fillFromIDToken(info *userInfo, idToken string) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(idToken, claims); err != nil {
		log.Printf("failed to parse google id_token: %v", err)
		return
	}
	if info.Email == "" {
		if email, ok := claims["email"].(string); ok {
			info.Email = email
		}
	}
	if info.Sub == "" {
		if sub, ok := claims["sub"].(string); ok {
			info.Sub = sub
		}
	}
	if !info.EmailVerified {
		if verified, ok := claims["email_verified"].(bool); ok {
			info.EmailVerified = verified
		}
	}
	if info.Name == "" {
		if name, ok := claims["name"].(string); ok {
			info.Name = name
		}
	}
}

// mapUser finds or creates the local account for a Google identity
func (p *Provider) mapUser(ctx context.Context, info *userInfo) (*model.User, error) {
	email := strings.ToLower(strings.TrimSpace(info.Email))

	user, err := p.users.FindByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if user != nil {
		if err := p.users.UpdateLastLogin(ctx, user.ID, time.Now()); err != nil {
			log.Printf("failed to record last login for user %d: %v", user.ID, err)
		}
		return user, nil
	}

	username, err := p.synthesizeUsername(ctx, email)
	if err != nil {
		return nil, err
	}
	googleID := info.Sub
	user = &model.User{
		Username:  username,
		Email:     email,
		Role:      model.RoleUser,
		Provider:  model.ProviderGoogle,
		GoogleID:  &googleID,
		CreatedAt: time.Now(),
	}
	if err := p.users.Create(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

var nonAlnumRE = regexp.MustCompile(`[^a-z0-9]`)

// synthesizeUsername derives a username from the email local-part and
// appends a numeric suffix until it is free.
func (p *Provider) synthesizeUsername(ctx context.Context, email string) (string, error) {
	base := nonAlnumRE.ReplaceAllString(strings.ToLower(strings.SplitN(email, "@", 2)[0]), "")
	if len(base) < 3 {
		base += "user"
	}
	candidate := base
	for i := 1; ; i++ {
		taken, err := p.users.UsernameExists(ctx, candidate)
		if err != nil {
			return "", err
		}
		if !taken {
			return candidate, nil
		}
		candidate = fmt.Sprintf("%s%d", base, i)
	}
}
