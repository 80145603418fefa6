// Package httpclient implements a synchronous JSON-over-HTTPS client
// with bearer auth. The Hetzner and Scaleway compute adapters and the
// cloudflare package's R2 bucket calls are built on top of it. The client is stateless with respect to
// retries: callers decide whether and how to retry.
package httpclient

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/pkg/errors"
)

const (
	defaultTotalTimeout   = 60 * time.Second
	defaultConnectTimeout = 10 * time.Second
)

// Client is a minimal JSON REST client shared by the Hetzner and
// Scaleway adapters and the R2 bucket calls. It carries no provider-specific knowledge: base URL,
// bearer token and default headers are all the caller supplies.
type Client struct {
	BaseURL     string
	BearerToken string
	UserAgent   string
	HTTPClient  *http.Client
}

// New builds a Client with conservative default timeouts (60s total,
// 10s connect).
func New(baseURL, bearerToken string) *Client {
	return &Client{
		BaseURL:     baseURL,
		BearerToken: bearerToken,
		UserAgent:   "deployctl/1.0",
		HTTPClient: &http.Client{
			Timeout: defaultTotalTimeout,
			Transport: &http.Transport{
				DialContext: (&net.Dialer{Timeout: defaultConnectTimeout}).DialContext,
			},
		},
	}
}

func (c *Client) Get(ctx context.Context, path string, query url.Values, out interface{}) error {
	return c.do(ctx, http.MethodGet, path, query, nil, out)
}

func (c *Client) Post(ctx context.Context, path string, body interface{}, out interface{}) error {
	return c.do(ctx, http.MethodPost, path, nil, body, out)
}

func (c *Client) Put(ctx context.Context, path string, body interface{}, out interface{}) error {
	return c.do(ctx, http.MethodPut, path, nil, body, out)
}

func (c *Client) Delete(ctx context.Context, path string, out interface{}) error {
	return c.do(ctx, http.MethodDelete, path, nil, nil, out)
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body interface{}, out interface{}) error {
	var reqBody io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return errors.Wrapf(err, "failed to marshal request body")
		}
		reqBody = bytes.NewReader(buf)
	}

	u := c.BaseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, u, reqBody)
	if err != nil {
		return errors.Wrapf(err, "failed to build request")
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.UserAgent)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.BearerToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.BearerToken)
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return errors.Wrapf(err, "request to %s %s failed", method, path)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return errors.Wrapf(err, "failed to read response body")
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &ApiError{Status: resp.StatusCode, Body: string(respBody), Message: extractMessage(respBody)}
	}

	if out != nil && len(respBody) > 0 {
		if err := json.Unmarshal(respBody, out); err != nil {
			return errors.Wrapf(err, "failed to unmarshal response from %s %s", method, path)
		}
	}
	return nil
}

// PutMultipart uploads body as a single multipart/form-data part named
// "file", framed with boundary, and decodes the JSON response into out.
func (c *Client) PutMultipart(ctx context.Context, path string, body io.Reader, boundary string, out interface{}) error {
	buf := &bytes.Buffer{}
	writer := multipart.NewWriter(buf)
	if err := writer.SetBoundary(boundary); err != nil {
		return errors.Wrapf(err, "invalid multipart boundary")
	}
	part, err := writer.CreateFormFile("file", "upload")
	if err != nil {
		return errors.Wrapf(err, "failed to create multipart part")
	}
	if _, err := io.Copy(part, body); err != nil {
		return errors.Wrapf(err, "failed to copy multipart body")
	}
	if err := writer.Close(); err != nil {
		return errors.Wrapf(err, "failed to close multipart writer")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, c.BaseURL+path, buf)
	if err != nil {
		return errors.Wrapf(err, "failed to build multipart request")
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	if c.BearerToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.BearerToken)
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return errors.Wrapf(err, "multipart request to %s failed", path)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return errors.Wrapf(err, "failed to read multipart response")
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &ApiError{Status: resp.StatusCode, Body: string(respBody), Message: extractMessage(respBody)}
	}
	if out != nil && len(respBody) > 0 {
		if err := json.Unmarshal(respBody, out); err != nil {
			return errors.Wrapf(err, "failed to unmarshal multipart response")
		}
	}
	return nil
}

func extractMessage(body []byte) string {
	var envelope struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return ""
	}
	if envelope.Message != "" {
		return envelope.Message
	}
	return envelope.Error
}
