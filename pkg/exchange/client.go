// Package exchange trades a signed assertion for an access token at the
// authorization server (RFC 7523 JWT-bearer grant).
package exchange

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/joeydtaylor/steeze-bearer/pkg/codec"
	"github.com/joeydtaylor/steeze-bearer/pkg/failure"
	"github.com/joeydtaylor/steeze-bearer/pkg/middleware/metrics"
	"github.com/joeydtaylor/steeze-bearer/pkg/transport/httpx"
	"go.uber.org/zap"
)

const GrantTypeJWTBearer = "urn:ietf:params:oauth:grant-type:jwt-bearer"

// maxTokenResponse caps how much of a token endpoint response is read.
const maxTokenResponse = 1 << 20

type TokenResponse struct {
	AccessToken string
	TokenType   string
	Scope       string
}

type Client struct {
	tokenURL string
	clients  httpx.ClientSource
	log      *zap.Logger
}

func New(tokenURL string, clients httpx.ClientSource, log *zap.Logger) *Client {
	if log == nil {
		log = zap.NewNop()
	}
	return &Client{tokenURL: strings.TrimSpace(tokenURL), clients: clients, log: log}
}

// Form returns the urlencoded grant body for assertion.
func Form(assertion string) string {
	form := url.Values{}
	form.Set("grant_type", GrantTypeJWTBearer)
	form.Set("assertion", assertion)
	return form.Encode()
}

func (c *Client) Exchange(ctx context.Context, assertion string) (TokenResponse, error) {
	if c.tokenURL == "" {
		return TokenResponse{}, failure.New(failure.KindEndpointMisconfigured, "token_url not configured")
	}

	hc, err := c.clients.Client()
	if err != nil {
		c.log.Error("cannot create outbound client", zap.Error(err))
		return TokenResponse{}, failure.Wrap(failure.KindTransportSetup, err, "create http client")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.tokenURL, strings.NewReader(Form(assertion)))
	if err != nil {
		return TokenResponse{}, failure.Wrap(failure.KindConnection, err, "build token request for %s", c.tokenURL)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	res, err := hc.Do(req)
	metrics.ObserveTokenExchange(time.Since(start))
	if err != nil {
		c.log.Error("token endpoint unreachable", zap.String("tokenUrl", c.tokenURL), zap.Error(err))
		return TokenResponse{}, failure.Wrap(failure.KindConnection, err, "call %s", c.tokenURL)
	}
	defer res.Body.Close()

	body, err := io.ReadAll(io.LimitReader(res.Body, maxTokenResponse))
	if err != nil {
		return TokenResponse{}, failure.Wrap(failure.KindConnection, err, "read token response from %s", c.tokenURL)
	}

	if res.StatusCode != http.StatusOK {
		c.log.Error("token request rejected",
			zap.Int("status", res.StatusCode),
			zap.ByteString("body", body),
		)
		return TokenResponse{}, failure.Upstream(res.StatusCode, string(body))
	}

	return parseTokenResponse(body)
}

func parseTokenResponse(body []byte) (TokenResponse, error) {
	var m map[string]any
	if err := codec.JSON.Unmarshal(body, &m); err != nil || m == nil {
		fe := failure.Upstream(http.StatusOK, string(body))
		fe.Message = "response body is not a JSON object"
		return TokenResponse{}, fe
	}

	var tr TokenResponse
	var missing []string
	for _, f := range []struct {
		name string
		dst  *string
	}{
		{"access_token", &tr.AccessToken},
		{"token_type", &tr.TokenType},
		{"scope", &tr.Scope},
	} {
		s, ok := m[f.name].(string)
		if !ok {
			missing = append(missing, f.name)
			continue
		}
		*f.dst = s
	}
	if tr.AccessToken == "" && len(missing) == 0 {
		missing = append(missing, "access_token")
	}
	if len(missing) > 0 {
		fe := failure.Upstream(http.StatusOK, string(body))
		fe.Message = "token response missing " + strings.Join(missing, ", ")
		return TokenResponse{}, fe
	}
	return tr, nil
}
