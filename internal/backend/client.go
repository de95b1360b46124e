// Package backend talks to the external scoring and vault service.
// Every call is a single request: no retries, failures are returned as-is.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/verte-zerg/shadowshield/internal/model"
)

// DefaultBaseURL is the backend address used when none is configured.
const DefaultBaseURL = "http://127.0.0.1:5000"

const statusSuccess = "success"

var (
	// ErrUnreachable wraps transport failures (connection refused, DNS, timeouts).
	ErrUnreachable = errors.New("backend unreachable")
	// ErrMalformed is returned when a response body cannot be decoded.
	ErrMalformed = errors.New("malformed backend response")
)

// StatusError reports a non-2xx response.
type StatusError struct {
	Code int
	Msg  string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("backend returned %d: %s", e.Code, e.Msg)
}

// RejectedError reports a well-formed response whose status is not "success".
type RejectedError struct {
	Msg string
}

func (e *RejectedError) Error() string {
	return e.Msg
}

// LoginRequest is the body of POST /login.
type LoginRequest struct {
	Username        string    `json:"username"`
	Password        string    `json:"password"`
	KeystrokeHold   []float64 `json:"keystroke_hold"`
	KeystrokeFlight []float64 `json:"keystroke_flight"`
}

// LoginResponse is the decoded body of POST /login.
type LoginResponse struct {
	Status           string `json:"status"`
	AnomalyDetected  bool   `json:"anomaly_detected,omitempty"`
	AnomalyKeystroke bool   `json:"anomaly_keystroke,omitempty"`
	AnomalyTime      bool   `json:"anomaly_time,omitempty"`
}

type encryptResponse struct {
	Status        string `json:"status"`
	VaultFilename string `json:"vault_filename"`
	Msg           string `json:"msg"`
}

type vaultListResponse struct {
	Status string   `json:"status"`
	Files  []string `json:"files"`
	Msg    string   `json:"msg"`
}

type decryptRequest struct {
	VaultFilename string `json:"vault_filename"`
}

type errorResponse struct {
	Msg string `json:"msg"`
}

// Client is a thin HTTP client for the backend contract.
type Client struct {
	baseURL string
	http    *http.Client
}

// New returns a client for baseURL. A zero timeout keeps the transport default.
func New(baseURL string, timeout time.Duration) *Client {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: timeout},
	}
}

// BaseURL returns the normalized backend address.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// NewLoginRequest builds a login body from credentials and a timing vector.
// Degenerate vectors are sent as empty arrays, never null.
func NewLoginRequest(username, password string, vec model.TimingVector) LoginRequest {
	hold := vec.Hold
	if hold == nil {
		hold = []float64{}
	}
	flight := vec.Flight
	if flight == nil {
		flight = []float64{}
	}
	return LoginRequest{
		Username:        username,
		Password:        password,
		KeystrokeHold:   hold,
		KeystrokeFlight: flight,
	}
}

// Login posts credentials and timing to /login.
func (c *Client) Login(ctx context.Context, body LoginRequest) (LoginResponse, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return LoginResponse{}, fmt.Errorf("failed to encode login request: %w", err)
	}
	resp, err := c.do(ctx, http.MethodPost, "/login", "application/json", bytes.NewReader(payload))
	if err != nil {
		return LoginResponse{}, err
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	var out LoginResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return LoginResponse{}, fmt.Errorf("%w: %w", ErrMalformed, err)
	}
	return out, nil
}

// EncryptFile uploads data as multipart field "file" and returns the vault artifact name.
func (c *Client) EncryptFile(ctx context.Context, filename string, data []byte) (string, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile("file", filename)
	if err != nil {
		return "", fmt.Errorf("failed to create form file: %w", err)
	}
	if _, err := part.Write(data); err != nil {
		return "", fmt.Errorf("failed to write form file: %w", err)
	}
	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("failed to finish multipart body: %w", err)
	}

	resp, err := c.do(ctx, http.MethodPost, "/encrypt-file", writer.FormDataContentType(), &buf)
	if err != nil {
		return "", err
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	var out encryptResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		if !isOK(resp) {
			return "", &StatusError{Code: resp.StatusCode, Msg: resp.Status}
		}
		return "", fmt.Errorf("%w: %w", ErrMalformed, err)
	}
	if out.Status != statusSuccess {
		msg := out.Msg
		if msg == "" {
			msg = "unknown"
		}
		return "", &RejectedError{Msg: msg}
	}
	if out.VaultFilename == "" {
		return "", fmt.Errorf("%w: missing vault_filename", ErrMalformed)
	}
	return out.VaultFilename, nil
}

// ListVault returns stored artifact names in backend order.
func (c *Client) ListVault(ctx context.Context) ([]string, error) {
	resp, err := c.do(ctx, http.MethodGet, "/vault-list", "", http.NoBody)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	var out vaultListResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		if !isOK(resp) {
			return nil, &StatusError{Code: resp.StatusCode, Msg: resp.Status}
		}
		return nil, fmt.Errorf("%w: %w", ErrMalformed, err)
	}
	if out.Status != statusSuccess {
		return nil, &RejectedError{Msg: out.Msg}
	}
	return out.Files, nil
}

// DecryptFile returns the decrypted bytes of a vault artifact.
func (c *Client) DecryptFile(ctx context.Context, vaultFilename string) ([]byte, error) {
	payload, err := json.Marshal(decryptRequest{VaultFilename: vaultFilename})
	if err != nil {
		return nil, fmt.Errorf("failed to encode decrypt request: %w", err)
	}
	resp, err := c.do(ctx, http.MethodPost, "/decrypt-file", "application/json", bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if !isOK(resp) {
		var out errorResponse
		msg := resp.Status
		if err := json.NewDecoder(resp.Body).Decode(&out); err == nil && out.Msg != "" {
			msg = out.Msg
		}
		return nil, &StatusError{Code: resp.StatusCode, Msg: msg}
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnreachable, err)
	}
	return data, nil
}

func (c *Client) do(ctx context.Context, method, path, contentType string, body io.Reader) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnreachable, err)
	}
	return resp, nil
}

func isOK(resp *http.Response) bool {
	return resp.StatusCode >= 200 && resp.StatusCode < 300
}
