// Package rest talks to an MLflow tracking server over its REST API. Client
// implements tracking.Store, tracking.ModelRegistry, and the artifact proxy
// upload used for mlflow-artifacts: URIs.
package rest

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/YuminosukeSato/winequality/pkg/errors"
	"github.com/YuminosukeSato/winequality/tracking"
)

const apiPrefix = "/api/2.0/mlflow/"

// DefaultTimeout bounds each request.
const DefaultTimeout = 120 * time.Second

// Credentials authenticate requests. Token takes precedence over basic auth.
type Credentials struct {
	Token    string
	Username string
	Password string
	// Insecure skips TLS verification (MLFLOW_TRACKING_INSECURE_TLS).
	Insecure bool
}

// Client is an MLflow REST client.
type Client struct {
	base  *url.URL
	http  *http.Client
	creds Credentials
}

// NewClient returns a client for the server at baseURL (http or https).
// httpClient may be nil.
func NewClient(baseURL string, creds Credentials, httpClient *http.Client) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, errors.Wrapf(err, "parse tracking URI %s", baseURL)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, errors.Wrapf(tracking.ErrUnsupportedScheme, "%q is not an http(s) URI", baseURL)
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: DefaultTimeout}
		if creds.Insecure {
			httpClient.Transport = insecureTransport()
		}
	}
	return &Client{base: u, http: httpClient, creds: creds}, nil
}

// APIError is an error response from the server.
type APIError struct {
	StatusCode int    `json:"-"`
	Code       string `json:"error_code"`
	Message    string `json:"message"`
}

func (e *APIError) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("mlflow: HTTP %d: %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("mlflow: %s: %s", e.Code, e.Message)
}

// Server error codes mapped onto the tracking sentinels.
const (
	codeNotFound      = "RESOURCE_DOES_NOT_EXIST"
	codeAlreadyExists = "RESOURCE_ALREADY_EXISTS"
)

// Is matches the tracking sentinel for the server error code, so both the
// standard library and cockroachdb errors.Is see ErrNotFound and
// ErrAlreadyExists through any wrapping.
func (e *APIError) Is(target error) bool {
	switch target {
	case tracking.ErrNotFound:
		return e.Code == codeNotFound || (e.Code == "" && e.StatusCode == http.StatusNotFound)
	case tracking.ErrAlreadyExists:
		return e.Code == codeAlreadyExists
	}
	return false
}

func (c *Client) endpoint(path string, query url.Values) string {
	u := *c.base
	u.Path = strings.TrimRight(u.Path, "/") + path
	if query != nil {
		u.RawQuery = query.Encode()
	}
	return u.String()
}

func (c *Client) authorize(req *http.Request) {
	switch {
	case c.creds.Token != "":
		req.Header.Set("Authorization", "Bearer "+c.creds.Token)
	case c.creds.Username != "":
		req.SetBasicAuth(c.creds.Username, c.creds.Password)
	}
}

// do sends a request and decodes a JSON response into out (if not nil).
func (c *Client) do(ctx context.Context, method, path string, query url.Values, in, out interface{}) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return errors.Wrapf(err, "encode %s request", path)
		}
		body = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.endpoint(path, query), body)
	if err != nil {
		return errors.Wrapf(err, "build %s request", path)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return c.send(req, path, out)
}

func (c *Client) send(req *http.Request, path string, out interface{}) error {
	c.authorize(req)
	resp, err := c.http.Do(req)
	if err != nil {
		return errors.Wrapf(err, "%s %s", req.Method, path)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return errors.Wrapf(err, "read %s response", path)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		if json.Unmarshal(raw, apiErr) != nil || apiErr.Message == "" {
			apiErr.Message = strings.TrimSpace(string(raw))
		}
		return apiErr
	}
	if out == nil || len(raw) == 0 {
		return nil
	}
	return errors.Wrapf(json.Unmarshal(raw, out), "decode %s response", path)
}

// UploadArtifact implements artifact.Uploader through the server's artifact
// proxy.
func (c *Client) UploadArtifact(ctx context.Context, path string, file *os.File) error {
	escaped := make([]string, 0, 4)
	for _, seg := range strings.Split(strings.Trim(path, "/"), "/") {
		escaped = append(escaped, url.PathEscape(seg))
	}
	target := strings.TrimRight(c.base.String(), "/") + "/api/2.0/mlflow-artifacts/artifacts/" + strings.Join(escaped, "/")
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, target, file)
	if err != nil {
		return errors.Wrapf(err, "build upload of %s", path)
	}
	if st, err := file.Stat(); err == nil {
		req.ContentLength = st.Size()
	}
	req.Header.Set("Content-Type", "application/octet-stream")
	return c.send(req, "mlflow-artifacts/artifacts/"+path, nil)
}

func insecureTransport() http.RoundTripper {
	t := http.DefaultTransport.(*http.Transport).Clone()
	t.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec // opt-in via configuration
	return t
}
