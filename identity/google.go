package identity

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/endpoints"

	"github.com/MrEthical07/goSession/userstore"
)

const (
	// GoogleUserInfoURL is the profile endpoint queried after the exchange.
	GoogleUserInfoURL = "https://www.googleapis.com/oauth2/v2/userinfo"

	defaultHTTPTimeout = 10 * time.Second
	maxProfileBytes    = 1 << 20
)

// GoogleConfig configures NewGoogleProvider.
type GoogleConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
	Scopes       []string

	// Endpoint and UserInfoURL default to Google's.
	Endpoint    oauth2.Endpoint
	UserInfoURL string

	// HTTPClient is used for both the token exchange and the profile fetch.
	HTTPClient *http.Client
}

// GoogleProvider exchanges Google authorization codes.
type GoogleProvider struct {
	oauth       *oauth2.Config
	userInfoURL string
	httpClient  *http.Client
}

// NewGoogleProvider builds a provider. ClientID and ClientSecret are required.
func NewGoogleProvider(cfg GoogleConfig) (*GoogleProvider, error) {
	if cfg.ClientID == "" || cfg.ClientSecret == "" {
		return nil, fmt.Errorf("identity: google client id and secret are required")
	}
	scopes := cfg.Scopes
	if len(scopes) == 0 {
		scopes = []string{"openid", "email", "profile"}
	}
	endpoint := cfg.Endpoint
	if endpoint.TokenURL == "" {
		endpoint = endpoints.Google
	}
	userInfoURL := cfg.UserInfoURL
	if userInfoURL == "" {
		userInfoURL = GoogleUserInfoURL
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultHTTPTimeout}
	}

	return &GoogleProvider{
		oauth: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Scopes:       scopes,
			Endpoint:     endpoint,
		},
		userInfoURL: userInfoURL,
		httpClient:  httpClient,
	}, nil
}

// AuthCodeURL returns the consent URL for state.
func (p *GoogleProvider) AuthCodeURL(state string) string {
	return p.oauth.AuthCodeURL(state, oauth2.AccessTypeOnline)
}

type googleProfile struct {
	Email         string `json:"email"`
	Name          string `json:"name"`
	Picture       string `json:"picture"`
	VerifiedEmail *bool  `json:"verified_email"`
	EmailVerified *bool  `json:"email_verified"`
}

func (g googleProfile) verified() bool {
	switch {
	case g.VerifiedEmail != nil:
		return *g.VerifiedEmail
	case g.EmailVerified != nil:
		return *g.EmailVerified
	}
	return false
}

// Exchange trades code for a token and fetches the userinfo profile.
func (p *GoogleProvider) Exchange(ctx context.Context, code string) (Identity, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return Identity{}, ErrNoCode
	}

	ctx = context.WithValue(ctx, oauth2.HTTPClient, p.httpClient)
	tok, err := p.oauth.Exchange(ctx, code)
	if err != nil {
		return Identity{}, fmt.Errorf("%w: token: %v", ErrExchange, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.userInfoURL, nil)
	if err != nil {
		return Identity{}, fmt.Errorf("%w: %v", ErrExchange, err)
	}
	resp, err := p.oauth.Client(ctx, tok).Do(req)
	if err != nil {
		return Identity{}, fmt.Errorf("%w: userinfo: %v", ErrExchange, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxProfileBytes))
		return Identity{}, fmt.Errorf("%w: userinfo status %d", ErrExchange, resp.StatusCode)
	}

	var profile googleProfile
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxProfileBytes)).Decode(&profile); err != nil {
		return Identity{}, fmt.Errorf("%w: decode userinfo: %v", ErrExchange, err)
	}

	email := userstore.NormalizeEmail(profile.Email)
	if email == "" {
		return Identity{}, ErrNoEmail
	}
	return Identity{
		Email:         email,
		Name:          strings.TrimSpace(profile.Name),
		Picture:       profile.Picture,
		EmailVerified: profile.verified(),
	}, nil
}

var _ Provider = (*GoogleProvider)(nil)
