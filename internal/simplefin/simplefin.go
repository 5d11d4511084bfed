// Package simplefin is the client for the SimpleFIN Bridge aggregator.
// Access URLs are only ever held as vault ciphertext outside this package.
package simplefin

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"regexp"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

var (
	// ErrUntrustedSetupToken is returned when a setup token does not decode
	// to an https claim URL on an allowed host under /simplefin.
	ErrUntrustedSetupToken = errors.New("simplefin: untrusted setup token")

	// ErrMalformedAccessURL is returned when a decrypted access URL does not
	// carry embedded credentials.
	ErrMalformedAccessURL = errors.New("simplefin: malformed access URL")
)

// UpstreamError reports a failed or unreachable aggregator call. Callers
// must not retry automatically.
type UpstreamError struct {
	Op         string
	StatusCode int
	Status     string
	TimedOut   bool
	Err        error
}

func (e *UpstreamError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("simplefin: %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("simplefin: %s: %s", e.Op, e.Status)
}

func (e *UpstreamError) Unwrap() error { return e.Err }

// Timeout reports whether the call failed because it ran out of time.
func (e *UpstreamError) Timeout() bool {
	return e.TimedOut
}

// Sealer encrypts and decrypts secrets at rest.
type Sealer interface {
	Encrypt(plaintext string) (string, error)
	Decrypt(ciphertext string) (string, error)
}

// DefaultAllowedHosts are the aggregator hosts a setup token may point at.
var DefaultAllowedHosts = []string{"bridge.simplefin.org", "beta-bridge.simplefin.org"}

// DefaultTimeout bounds every aggregator request.
const DefaultTimeout = 30 * time.Second

const (
	requiredPath      = "/simplefin"
	maxClaimBody      = 64 << 10
	maxClaimRedirects = 3
	maxFetchBody      = 32 << 20
	accountsPath      = "/accounts"
	startDateParm     = "start-date"
	endDateParm       = "end-date"
)

// Config configures a Client.
type Config struct {
	AllowedHosts []string
	Timeout      time.Duration
}

// Client talks to SimpleFIN Bridge.
type Client struct {
	sealer       Sealer
	allowedHosts []string
	http         *http.Client
	log          zerolog.Logger
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient replaces the HTTP client. Its timeout is left as given.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithLogger sets the client logger.
func WithLogger(log zerolog.Logger) Option {
	return func(c *Client) { c.log = log }
}

// New creates a Client that seals access URLs with sealer.
func New(cfg Config, sealer Sealer, opts ...Option) *Client {
	hosts := cfg.AllowedHosts
	if len(hosts) == 0 {
		hosts = DefaultAllowedHosts
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	c := &Client{
		sealer:       sealer,
		allowedHosts: hosts,
		http:         &http.Client{Timeout: timeout},
		log:          zerolog.Nop(),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// ValidateClaimURL checks that raw is an https URL on an allowed host whose
// path contains /simplefin.
func (c *Client) ValidateClaimURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("%w: invalid claim URL", ErrUntrustedSetupToken)
	}
	if u.Scheme != "https" {
		c.log.Warn().Str("scheme", u.Scheme).Msg("rejected non-https claim URL")
		return fmt.Errorf("%w: claim URL must use https", ErrUntrustedSetupToken)
	}
	if !slices.Contains(c.allowedHosts, u.Hostname()) {
		c.log.Warn().Str("host", u.Hostname()).Msg("rejected claim URL host")
		return fmt.Errorf("%w: host %q not allowed", ErrUntrustedSetupToken, u.Hostname())
	}
	if !strings.Contains(u.Path, requiredPath) {
		c.log.Warn().Msg("rejected claim URL path")
		return fmt.Errorf("%w: path must contain %s", ErrUntrustedSetupToken, requiredPath)
	}
	return nil
}

// claimClient is c.http with every redirect target held to the same
// rules as the claim URL itself.
func (c *Client) claimClient() *http.Client {
	hc := *c.http
	hc.CheckRedirect = func(req *http.Request, via []*http.Request) error {
		if len(via) >= maxClaimRedirects {
			return fmt.Errorf("%w: too many redirects", ErrUntrustedSetupToken)
		}
		return c.ValidateClaimURL(req.URL.String())
	}
	return &hc
}

func decodeSetupToken(token string) (string, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return "", fmt.Errorf("%w: empty token", ErrUntrustedSetupToken)
	}
	for _, enc := range []*base64.Encoding{base64.StdEncoding, base64.RawStdEncoding, base64.URLEncoding, base64.RawURLEncoding} {
		if b, err := enc.DecodeString(token); err == nil {
			return string(b), nil
		}
	}
	return "", fmt.Errorf("%w: token is not base64", ErrUntrustedSetupToken)
}

// ClaimSetupToken exchanges a one-time setup token for an access URL and
// returns it encrypted. The claim URL is validated before any request.
func (c *Client) ClaimSetupToken(ctx context.Context, setupToken string) (string, error) {
	claimURL, err := decodeSetupToken(setupToken)
	if err != nil {
		return "", err
	}
	if err := c.ValidateClaimURL(claimURL); err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, claimURL, nil)
	if err != nil {
		return "", fmt.Errorf("%w: building claim request", ErrUntrustedSetupToken)
	}
	req.Header.Set("Content-Length", "0")

	resp, err := c.claimClient().Do(req)
	if err != nil {
		if errors.Is(err, ErrUntrustedSetupToken) {
			return "", err
		}
		return "", transportError("claiming setup token", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.log.Error().Int("status", resp.StatusCode).Msg("setup token claim rejected")
		return "", &UpstreamError{Op: "claiming setup token", StatusCode: resp.StatusCode, Status: statusText(resp)}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxClaimBody))
	if err != nil {
		return "", &UpstreamError{Op: "reading claim response", StatusCode: resp.StatusCode, Err: err}
	}
	accessURL := strings.TrimSpace(string(body))
	if accessURL == "" {
		return "", &UpstreamError{Op: "claiming setup token", StatusCode: resp.StatusCode, Status: "empty access URL"}
	}

	sealed, err := c.sealer.Encrypt(accessURL)
	if err != nil {
		return "", fmt.Errorf("encrypting access URL: %w", err)
	}
	return sealed, nil
}

// Credentials are the parts of a decrypted access URL.
type Credentials struct {
	BaseURL  string
	Username string
	Password string
}

var accessURLPattern = regexp.MustCompile(`^https?://([^:]+):([^@]+)@(.+)$`)

// ParseAccessURL splits a plaintext access URL into its base URL and Basic
// auth credentials. The base URL is always https.
func ParseAccessURL(accessURL string) (Credentials, error) {
	m := accessURLPattern.FindStringSubmatch(accessURL)
	if m == nil {
		return Credentials{}, ErrMalformedAccessURL
	}
	return Credentials{
		BaseURL:  "https://" + strings.TrimRight(m[3], "/"),
		Username: m[1],
		Password: m[2],
	}, nil
}

// FetchOptions bounds the transaction window. Zero times are omitted.
type FetchOptions struct {
	StartDate time.Time
	EndDate   time.Time
}

// FetchAccounts decrypts the access URL and retrieves accounts and their
// transactions.
func (c *Client) FetchAccounts(ctx context.Context, encryptedAccessURL string, opts FetchOptions) (*AccountSet, error) {
	accessURL, err := c.sealer.Decrypt(encryptedAccessURL)
	if err != nil {
		return nil, fmt.Errorf("decrypting access URL: %w", err)
	}
	creds, err := ParseAccessURL(accessURL)
	if err != nil {
		return nil, err
	}

	q := url.Values{}
	if !opts.StartDate.IsZero() {
		q.Set(startDateParm, strconv.FormatInt(opts.StartDate.Unix(), 10))
	}
	if !opts.EndDate.IsZero() {
		q.Set(endDateParm, strconv.FormatInt(opts.EndDate.Unix(), 10))
	}
	target := creds.BaseURL + accountsPath
	if len(q) > 0 {
		target += "?" + q.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, ErrMalformedAccessURL
	}
	req.SetBasicAuth(creds.Username, creds.Password)
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, transportError("fetching accounts", err)
	}
	defer resp.Body.Close()

	c.log.Debug().
		Str("host", req.URL.Hostname()).
		Int("status", resp.StatusCode).
		Dur("duration", time.Since(start)).
		Msg("simplefin accounts fetched")

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &UpstreamError{Op: "fetching accounts", StatusCode: resp.StatusCode, Status: statusText(resp)}
	}

	var set AccountSet
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxFetchBody)).Decode(&set); err != nil {
		return nil, &UpstreamError{Op: "decoding accounts", StatusCode: resp.StatusCode, Err: err}
	}
	for _, msg := range set.Errors {
		c.log.Warn().Str("upstream_message", msg).Msg("simplefin reported an error")
	}
	return &set, nil
}

func statusText(resp *http.Response) string {
	if text := http.StatusText(resp.StatusCode); text != "" {
		return text
	}
	return resp.Status
}

// transportError classifies a failed round trip. The request URL is dropped
// from the message because access URLs embed credentials.
func transportError(op string, err error) *UpstreamError {
	ue := &UpstreamError{Op: op, Err: err}
	var ne net.Error
	if (errors.As(err, &ne) && ne.Timeout()) || errors.Is(err, context.DeadlineExceeded) {
		ue.TimedOut = true
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		ue.Err = fmt.Errorf("%s request: %w", urlErr.Op, urlErr.Err)
	}
	return ue
}
