// Copyright (c) 2026 John Earle
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package provider implements a client for the delivery and e-signing
// provider's registered-letter response API. Responses are listed per
// tenant, fetched one by one, and deleted once they have been applied.
package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/drl/statussync/internal/models"
)

// maxErrorBody caps how much of an error response body is kept.
const maxErrorBody = 2048

// StatusError is returned when the provider answers with an unexpected
// HTTP status.
type StatusError struct {
	Op         string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s failed (HTTP %d)", e.Op, e.StatusCode)
	}
	return fmt.Sprintf("%s failed (HTTP %d): %s", e.Op, e.StatusCode, e.Body)
}

// IsNotFound reports whether err is a provider 404.
func IsNotFound(err error) bool {
	var se *StatusError
	return errors.As(err, &se) && se.StatusCode == http.StatusNotFound
}

// Client talks to the provider API. The httpClient must already handle
// authentication (see NewHTTPClient).
type Client struct {
	httpClient *http.Client
	baseURL    string
}

// NewClient creates a provider client rooted at baseURL.
func NewClient(httpClient *http.Client, baseURL string) *Client {
	return &Client{
		httpClient: httpClient,
		baseURL:    strings.TrimRight(baseURL, "/"),
	}
}

// ListPending returns the references of all responses waiting to be
// processed for the tenant.
func (c *Client) ListPending(ctx context.Context, tenant models.Tenant) ([]models.PendingEventReference, error) {
	var refs []models.PendingEventReference
	if err := c.getJSON(ctx, "list pending responses", c.responsesURL(tenant), &refs); err != nil {
		return nil, err
	}
	return refs, nil
}

// FetchDetail returns the full response behind a reference.
func (c *Client) FetchDetail(ctx context.Context, responseKey string, tenant models.Tenant) (*models.ProviderEvent, error) {
	var event models.ProviderEvent
	if err := c.getJSON(ctx, "fetch response", c.responseURL(tenant, responseKey), &event); err != nil {
		return nil, err
	}
	return &event, nil
}

// Delete retires a processed reference. A reference that is already gone
// counts as deleted.
func (c *Client) Delete(ctx context.Context, responseKey string, tenant models.Tenant) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, c.responseURL(tenant, responseKey), nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("delete response: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		slog.Debug("response already deleted at provider",
			"response_key", responseKey,
			"municipality_id", tenant.MunicipalityID,
		)
		return nil
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return statusError("delete response", resp)
	}
	return nil
}

// Ping checks that the provider answers at all. Any HTTP response counts.
func (c *Client) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, c.baseURL, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("ping provider: %w", err)
	}
	resp.Body.Close()
	return nil
}

func (c *Client) getJSON(ctx context.Context, op, u string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return statusError(op, resp)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s: %w", op, err)
	}
	return nil
}

func (c *Client) responsesURL(tenant models.Tenant) string {
	return fmt.Sprintf("%s/v2/tenant/%s/registered/response",
		c.baseURL, url.PathEscape(tenant.TenantKey))
}

func (c *Client) responseURL(tenant models.Tenant, responseKey string) string {
	return c.responsesURL(tenant) + "/" + url.PathEscape(responseKey)
}

func statusError(op string, resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	return &StatusError{
		Op:         op,
		StatusCode: resp.StatusCode,
		Body:       strings.TrimSpace(string(body)),
	}
}
