// Package aliceblue is a client for the Alice Blue trading API: REST session
// handshake, LTP lookup, contract master download, and the streaming quote
// websocket.
//
// Usage example:
//
//	c := aliceblue.NewClient(aliceblue.Config{UserID: "123456", APIKey: "..."})
//	sessionID, err := c.GenerateSession(ctx)
//	if err != nil { log.Fatal(err) }
//	feed := aliceblue.NewFeed(c.UserID(), sessionID)
package aliceblue

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/pquerna/otp/totp"

	"bn-breakoutv1/internal/model"
)

// ErrAuth means the session handshake was rejected. Fatal, never retried:
// stale credentials must not be silently reused.
var ErrAuth = errors.New("aliceblue: authentication failed")

const (
	defaultBaseURL        = "https://ant.aliceblueonline.com/rest/AliceBlueAPIService/api/"
	defaultContractMaster = "https://v2api.aliceblueonline.com/restpy/static/contract_master/%s.csv"
	defaultTimeout        = 10 * time.Second
)

var routes = map[string]string{
	"api.enckey":    "customer/getAPIEncpkey",
	"api.session":   "customer/getUserSID",
	"api.weblogin":  "customer/webLogin",
	"api.ltp":       "market/ltpData",
	"api.profile":   "customer/accountDetails",
	"api.logout":    "customer/logout",
}

// Config holds client configuration.
type Config struct {
	UserID string
	APIKey string

	BaseURL           string // default: ant.aliceblueonline.com REST root
	ContractMasterURL string // printf pattern with one %s for the exchange
	Timeout           time.Duration
	Debug             bool
}

// Client is the Alice Blue REST client.
type Client struct {
	userID    string
	apiKey    string
	baseURL   string
	masterURL string
	debug     bool

	sessionID string

	httpClient *http.Client
}

// NewClient initializes the REST client.
func NewClient(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.ContractMasterURL == "" {
		cfg.ContractMasterURL = defaultContractMaster
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = defaultTimeout
	}
	return &Client{
		userID:     cfg.UserID,
		apiKey:     cfg.APIKey,
		baseURL:    strings.TrimRight(cfg.BaseURL, "/") + "/",
		masterURL:  cfg.ContractMasterURL,
		debug:      cfg.Debug,
		httpClient: &http.Client{Timeout: cfg.Timeout},
	}
}

// UserID returns the configured client code.
func (c *Client) UserID() string { return c.userID }

// SessionID returns the session established by GenerateSession, or "".
func (c *Client) SessionID() string { return c.sessionID }

// apiResponse is the common envelope: {"stat":"Ok", ...} or {"stat":"Not_Ok","emsg":"..."}.
type apiResponse map[string]any

func (r apiResponse) ok() bool {
	stat, _ := r["stat"].(string)
	return strings.EqualFold(stat, "Ok")
}

func (r apiResponse) emsg() string {
	if m, _ := r["emsg"].(string); m != "" {
		return m
	}
	return "unknown error"
}

func (r apiResponse) str(key string) string {
	s, _ := r[key].(string)
	return s
}

// GenerateSession performs the API-key login handshake:
// fetch the per-user encryption key, hash userID+apiKey+encKey with SHA-256,
// and exchange the digest for a session ID.
func (c *Client) GenerateSession(ctx context.Context) (string, error) {
	res, err := c.post(ctx, "api.enckey", map[string]any{"userId": c.userID})
	if err != nil {
		return "", fmt.Errorf("%w: get encryption key: %v", ErrAuth, err)
	}
	if !res.ok() {
		return "", fmt.Errorf("%w: get encryption key: %s", ErrAuth, res.emsg())
	}
	encKey := res.str("encKey")
	if encKey == "" {
		return "", fmt.Errorf("%w: empty encryption key", ErrAuth)
	}

	digest := sha256.Sum256([]byte(c.userID + c.apiKey + encKey))
	res, err = c.post(ctx, "api.session", map[string]any{
		"userId":   c.userID,
		"userData": hex.EncodeToString(digest[:]),
	})
	if err != nil {
		return "", fmt.Errorf("%w: get session: %v", ErrAuth, err)
	}
	if !res.ok() {
		return "", fmt.Errorf("%w: get session: %s", ErrAuth, res.emsg())
	}
	sid := res.str("sessionID")
	if sid == "" {
		return "", fmt.Errorf("%w: empty session ID", ErrAuth)
	}
	c.sessionID = sid
	return sid, nil
}

// GenerateSessionWithTOTP is the 2FA login variant for accounts without a
// vendor API key: password plus a TOTP code generated from the shared secret.
func (c *Client) GenerateSessionWithTOTP(ctx context.Context, password, totpSecret string) (string, error) {
	code, err := totp.GenerateCode(totpSecret, time.Now())
	if err != nil {
		return "", fmt.Errorf("%w: generate TOTP: %v", ErrAuth, err)
	}
	res, err := c.post(ctx, "api.weblogin", map[string]any{
		"userId":   c.userID,
		"password": password,
		"totp":     code,
	})
	if err != nil {
		return "", fmt.Errorf("%w: web login: %v", ErrAuth, err)
	}
	if !res.ok() {
		return "", fmt.Errorf("%w: web login: %s", ErrAuth, res.emsg())
	}
	sid := res.str("sessionID")
	if sid == "" {
		return "", fmt.Errorf("%w: empty session ID", ErrAuth)
	}
	c.sessionID = sid
	return sid, nil
}

// LTP fetches the last traded price for a token over REST, in paise.
// The monitor reads the websocket quote table instead; this path serves
// one-shot lookups (diagnostics, the underlying future at startup).
func (c *Client) LTP(ctx context.Context, exchange, token string) (int64, error) {
	q := url.Values{}
	q.Set("exchange", exchange)
	q.Set("symbolToken", token)
	res, err := c.get(ctx, "api.ltp", q)
	if err != nil {
		return 0, fmt.Errorf("aliceblue: ltp %s:%s: %w", exchange, token, err)
	}
	data, _ := res["data"].(map[string]any)
	if data == nil {
		return 0, fmt.Errorf("aliceblue: ltp %s:%s: missing data in response", exchange, token)
	}
	switch v := data["ltp"].(type) {
	case string:
		return model.ParsePaise(v)
	case float64:
		return model.RupeesToPaise(v), nil
	default:
		return 0, fmt.Errorf("aliceblue: ltp %s:%s: unexpected ltp type %T", exchange, token, v)
	}
}

// DownloadContractMaster fetches the day's contract master CSV for an exchange.
func (c *Client) DownloadContractMaster(ctx context.Context, exchange string) ([]byte, error) {
	u := fmt.Sprintf(c.masterURL, exchange)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("aliceblue: download contract master: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("aliceblue: download contract master: status %d", resp.StatusCode)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("aliceblue: download contract master: %w", err)
	}
	log.Printf("[aliceblue] contract master %s: %d bytes", exchange, len(data))
	return data, nil
}

// ---- request helpers ----

func (c *Client) buildURL(route string) (string, error) {
	uri, ok := routes[route]
	if !ok {
		return "", fmt.Errorf("aliceblue: unknown route: %s", route)
	}
	return c.baseURL + uri, nil
}

func (c *Client) post(ctx context.Context, route string, params map[string]any) (apiResponse, error) {
	fullURL, err := c.buildURL(route)
	if err != nil {
		return nil, err
	}
	body, _ := json.Marshal(params)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, fullURL, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	c.authorize(req)
	return c.do(req)
}

func (c *Client) get(ctx context.Context, route string, q url.Values) (apiResponse, error) {
	fullURL, err := c.buildURL(route)
	if err != nil {
		return nil, err
	}
	if len(q) > 0 {
		fullURL += "?" + q.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return nil, err
	}
	c.authorize(req)
	return c.do(req)
}

func (c *Client) authorize(req *http.Request) {
	if c.sessionID != "" {
		req.Header.Set("Authorization", "Bearer "+c.userID+" "+c.sessionID)
	}
}

func (c *Client) do(req *http.Request) (apiResponse, error) {
	if c.debug {
		log.Printf("[aliceblue] %s %s", req.Method, req.URL)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if c.debug {
		log.Printf("[aliceblue] response code=%d body=%s", resp.StatusCode, string(raw))
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("http status %d: %s", resp.StatusCode, truncate(string(raw), 200))
	}
	var out apiResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("couldn't parse JSON response: %w", err)
	}
	return out, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
