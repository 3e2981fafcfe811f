package upload

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/USA-RedDragon/crashgate/internal/symbols"
	"github.com/go-errors/errors"
	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrAuthentication = errors.New("authentication with the reporting service failed")
	ErrNoArtifacts    = errors.New("batch contains no artifacts")
	ErrNoDatabase     = errors.New("batch has no database")
)

const (
	DefaultTimeout = 60 * time.Second
	DefaultRetries = 3
	DefaultBackoff = time.Second

	symbolsPath = "/api/symbols"
	tokenScope  = "restricted"
	// Tokens are refreshed this long before they actually expire.
	expirySkew = 30 * time.Second
	// Used when the token endpoint says nothing about expiry.
	fallbackTokenLifetime = 5 * time.Minute
	maxResponseBody       = 64 << 10
)

// Batch is one logical upload: every artifact is filed under the same database,
// application and version.
type Batch struct {
	Database    string
	Application string
	Version     string
	Artifacts   []symbols.Artifact
}

// Response describes the outcome of one upload call.
type Response struct {
	File       string
	StatusCode int
	Status     string
	Body       string
}

func (r Response) Success() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

type Options struct {
	// BaseURL is the crash database URL, e.g. https://acme.bugsplat.com/
	BaseURL      string
	TokenURL     string
	ClientID     string
	ClientSecret string
	Timeout      time.Duration
	// Retries is the number of attempts per request, including the first.
	Retries int
	Backoff time.Duration
}

type Client struct {
	options Options
	http    *http.Client

	mu          sync.Mutex
	token       string
	tokenExpiry time.Time
}

func NewClient(options Options) *Client {
	if options.Timeout <= 0 {
		options.Timeout = DefaultTimeout
	}
	if options.Retries <= 0 {
		options.Retries = DefaultRetries
	}
	if options.Backoff <= 0 {
		options.Backoff = DefaultBackoff
	}
	options.BaseURL = strings.TrimRight(options.BaseURL, "/")
	return &Client{
		options: options,
		http: &http.Client{
			Timeout:   options.Timeout,
			Transport: http.DefaultTransport.(*http.Transport).Clone(),
		},
	}
}

// Close releases the connections held by the client. The client must not be used
// afterwards.
func (c *Client) Close() error {
	c.http.CloseIdleConnections()
	return nil
}

// Upload sends every artifact of the batch and returns one Response per artifact in
// batch order. Responses gathered before a transport or authentication error are
// returned alongside it.
func (c *Client) Upload(ctx context.Context, batch Batch) ([]Response, error) {
	if batch.Database == "" {
		return nil, ErrNoDatabase
	}
	if len(batch.Artifacts) == 0 {
		return nil, ErrNoArtifacts
	}

	responses := make([]Response, 0, len(batch.Artifacts))
	for _, artifact := range batch.Artifacts {
		resp, err := c.uploadArtifact(ctx, batch, artifact)
		if err != nil {
			return responses, fmt.Errorf("failed to upload %s: %w", artifact.Name(), err)
		}
		if resp.Success() {
			slog.Info("Uploaded symbol file", "file", artifact.Name(), "size", artifact.Size)
		} else {
			slog.Error("Symbol upload rejected", "file", artifact.Name(), "status", resp.Status, "body", resp.Body)
		}
		responses = append(responses, resp)
	}
	return responses, nil
}

type statusError struct {
	StatusCode int
	Status     string
}

func (e *statusError) Error() string {
	return "unexpected status " + e.Status
}

// transient reports whether a request that failed with err should be retried.
// Transport failures, 429 and 5xx are transient; other statuses are not.
func transient(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	if errors.Is(err, ErrAuthentication) {
		return false
	}
	var statusErr *statusError
	if errors.As(err, &statusErr) {
		return transientStatus(statusErr.StatusCode)
	}
	return true
}

func transientStatus(code int) bool {
	return code == http.StatusTooManyRequests || code >= 500
}

func (c *Client) uploadArtifact(ctx context.Context, batch Batch, artifact symbols.Artifact) (Response, error) {
	var (
		lastResp Response
		lastErr  error
	)
	for attempt := 0; attempt < c.options.Retries; attempt++ {
		if attempt > 0 {
			backoff := c.options.Backoff * time.Duration(1<<(attempt-1))
			select {
			case <-ctx.Done():
				return Response{}, ctx.Err()
			case <-time.After(backoff):
			}
		}

		token, err := c.accessToken(ctx)
		if err != nil {
			if !transient(err) {
				return Response{}, err
			}
			lastErr = err
			slog.Warn("Transient token failure, retrying", "attempt", attempt+1, "error", err)
			continue
		}

		resp, err := c.post(ctx, token, batch, artifact)
		if err != nil {
			if !transient(err) {
				return Response{}, err
			}
			lastErr = err
			slog.Warn("Transient upload failure, retrying", "file", artifact.Name(), "attempt", attempt+1, "error", err)
			continue
		}

		lastResp, lastErr = resp, nil
		switch {
		case resp.StatusCode == http.StatusUnauthorized:
			c.dropToken()
			lastErr = fmt.Errorf("%w: %s", ErrAuthentication, resp.Status)
			slog.Warn("Upload unauthorized, refreshing token", "file", artifact.Name(), "attempt", attempt+1)
		case transientStatus(resp.StatusCode):
			slog.Warn("Upload failed with a transient status, retrying", "file", artifact.Name(), "status", resp.Status, "attempt", attempt+1)
		default:
			return resp, nil
		}
	}
	if lastErr != nil {
		return Response{}, lastErr
	}
	return lastResp, nil
}

func (c *Client) post(ctx context.Context, token string, batch Batch, artifact symbols.Artifact) (Response, error) {
	body, contentType := multipartBody(batch, artifact)
	defer body.Close()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.options.BaseURL+symbolsPath, body)
	if err != nil {
		return Response{}, err
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.http.Do(req)
	if err != nil {
		return Response{}, err
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return Response{}, fmt.Errorf("failed to read response: %w", err)
	}
	return Response{
		File:       artifact.Path,
		StatusCode: resp.StatusCode,
		Status:     resp.Status,
		Body:       string(data),
	}, nil
}

// multipartBody streams the form for one artifact so that large symbol files are
// never held in memory.
func multipartBody(batch Batch, artifact symbols.Artifact) (io.ReadCloser, string) {
	reader, writer := io.Pipe()
	form := multipart.NewWriter(writer)

	go func() {
		writer.CloseWithError(writeForm(form, batch, artifact))
	}()
	return reader, form.FormDataContentType()
}

func writeForm(form *multipart.Writer, batch Batch, artifact symbols.Artifact) error {
	fields := [][2]string{
		{"database", batch.Database},
		{"appName", batch.Application},
		{"appVersion", batch.Version},
	}
	for _, field := range fields {
		if err := form.WriteField(field[0], field[1]); err != nil {
			return err
		}
	}

	file, err := os.Open(artifact.Path)
	if err != nil {
		return err
	}
	defer file.Close()
	part, err := form.CreateFormFile("file", artifact.Name())
	if err != nil {
		return err
	}
	if _, err := io.Copy(part, file); err != nil {
		return err
	}
	return form.Close()
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"`
}

func (c *Client) accessToken(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.token != "" && time.Now().Before(c.tokenExpiry) {
		return c.token, nil
	}

	form := url.Values{}
	form.Set("grant_type", "client_credentials")
	form.Set("client_id", c.options.ClientID)
	form.Set("client_secret", c.options.ClientSecret)
	form.Set("scope", tokenScope)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.options.TokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("token request failed: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusBadRequest, resp.StatusCode == http.StatusUnauthorized, resp.StatusCode == http.StatusForbidden:
		return "", fmt.Errorf("%w: %s", ErrAuthentication, resp.Status)
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return "", &statusError{StatusCode: resp.StatusCode, Status: resp.Status}
	}

	var token tokenResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBody)).Decode(&token); err != nil {
		return "", fmt.Errorf("failed to decode token response: %w", err)
	}
	if token.AccessToken == "" {
		return "", fmt.Errorf("%w: empty access token", ErrAuthentication)
	}

	c.token = token.AccessToken
	c.tokenExpiry = tokenExpiry(token, time.Now())
	return c.token, nil
}

// tokenExpiry prefers the endpoint's expires_in, then the exp claim when the token is
// a JWT.
func tokenExpiry(token tokenResponse, now time.Time) time.Time {
	if token.ExpiresIn > 0 {
		return now.Add(time.Duration(token.ExpiresIn)*time.Second - expirySkew)
	}
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token.AccessToken, claims); err == nil {
		if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
			return exp.Add(-expirySkew)
		}
	}
	return now.Add(fallbackTokenLifetime)
}

func (c *Client) dropToken() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.token = ""
	c.tokenExpiry = time.Time{}
}
