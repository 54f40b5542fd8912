package sink

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/c360/httpsink/errors"
)

// expirySkew is subtracted from the token lifetime so a token is refreshed
// slightly before the server-side expiry.
const expirySkew = 30 * time.Second

// Token is a cached bearer credential. A zero Expiry means the token never
// expires.
type Token struct {
	Value  string
	Expiry time.Time
}

// ExpiredAt reports whether the token has expired at the given instant.
func (t Token) ExpiredAt(now time.Time) bool {
	if t.Value == "" {
		return true
	}
	if t.Expiry.IsZero() {
		return false
	}
	return !now.Before(t.Expiry)
}

// CredentialProvider caches one bearer token and refreshes it on expiry via
// the configured token endpoint. The cache is owned by a single writer and is
// not safe for concurrent use; a multi-writer pool sharing one provider must
// add its own locking.
type CredentialProvider struct {
	cfg    OAuth2Config
	client *http.Client
	token  Token
	now    func() time.Time
}

// NewCredentialProvider builds a provider for the given OAuth2 parameters.
// The token is fetched lazily on the first Token call.
func NewCredentialProvider(cfg OAuth2Config, client *http.Client) *CredentialProvider {
	if client == nil {
		client = http.DefaultClient
	}
	return &CredentialProvider{cfg: cfg, client: client, now: time.Now}
}

// Token returns the cached token if not expired, otherwise refreshes it and
// updates the cache. Exactly one refresh call is made per expiry.
func (p *CredentialProvider) Token(ctx context.Context) (Token, error) {
	if !p.token.ExpiredAt(p.now()) {
		return p.token, nil
	}

	token, err := p.refresh(ctx)
	if err != nil {
		return Token{}, err
	}
	p.token = token
	return p.token, nil
}

// tokenResponse is the relevant subset of the RFC 6749 token response.
type tokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int64  `json:"expires_in"`
}

func (p *CredentialProvider) refresh(ctx context.Context) (Token, error) {
	form := url.Values{}
	if p.cfg.RefreshToken != "" {
		form.Set("grant_type", "refresh_token")
		form.Set("refresh_token", p.cfg.RefreshToken)
	} else {
		form.Set("grant_type", "client_credentials")
	}
	form.Set("client_id", p.cfg.ClientID)
	form.Set("client_secret", p.cfg.ClientSecret)
	if len(p.cfg.Scopes) > 0 {
		form.Set("scope", strings.Join(p.cfg.Scopes, " "))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.cfg.TokenURL,
		strings.NewReader(form.Encode()))
	if err != nil {
		return Token{}, errors.WrapInvalid(err, "CredentialProvider", "refresh", "build token request")
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := p.client.Do(req)
	if err != nil {
		return Token{}, errors.WrapTransient(err, "CredentialProvider", "refresh", "call token endpoint")
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return Token{}, errors.WrapTransient(errors.ErrTokenRefreshFailed, "CredentialProvider", "refresh",
			fmt.Sprintf("token endpoint returned status %d", resp.StatusCode))
	}

	var tr tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tr); err != nil {
		return Token{}, errors.WrapInvalid(err, "CredentialProvider", "refresh", "decode token response")
	}
	if tr.AccessToken == "" {
		return Token{}, errors.WrapInvalid(errors.ErrTokenRefreshFailed, "CredentialProvider", "refresh",
			"token response has no access_token")
	}

	token := Token{Value: tr.AccessToken}
	if tr.ExpiresIn > 0 {
		lifetime := time.Duration(tr.ExpiresIn) * time.Second
		if lifetime > expirySkew {
			lifetime -= expirySkew
		}
		token.Expiry = p.now().Add(lifetime)
	}
	return token, nil
}
