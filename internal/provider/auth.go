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

package provider

import (
	"context"
	"net/http"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

// AuthConfig holds the OAuth2 client credentials for the provider.
type AuthConfig struct {
	ClientID     string
	ClientSecret string
	TokenURL     string
	Scopes       []string
	Timeout      time.Duration
}

// NewHTTPClient returns an http.Client that attaches a client-credentials
// bearer token to every request and refreshes it when it expires. Timeout
// applies to both token and API requests.
func NewHTTPClient(ctx context.Context, cfg AuthConfig) *http.Client {
	base := &http.Client{Timeout: cfg.Timeout}
	ctx = context.WithValue(ctx, oauth2.HTTPClient, base)

	creds := &clientcredentials.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		TokenURL:     cfg.TokenURL,
		Scopes:       cfg.Scopes,
	}
	client := creds.Client(ctx)
	client.Timeout = cfg.Timeout
	return client
}
