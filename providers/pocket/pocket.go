/*
	Research
	Copyright (c) 2024 The Research Authors

	This program is free software: you can redistribute it and/or modify
	it under the terms of the GNU Affero General Public License as published
	by the Free Software Foundation, either version 3 of the License, or
	(at your option) any later version.

	This program is distributed in the hope that it will be useful,
	but WITHOUT ANY WARRANTY; without even the implied warranty of
	MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
	GNU Affero General Public License for more details.

	You should have received a copy of the GNU Affero General Public License
	along with this program.  If not, see <https://www.gnu.org/licenses/>.
*/

// Package pocket implements the Pocket provider: the consumer-key
// authorization handshake and the retrieve/add/send endpoints,
// documented at https://getpocket.com/developer/docs/overview.
// The retrieve API isn't very reliable and is subject to change
// without notice.
package pocket

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/researchly/research/research"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// ProviderName is the registered name of this provider.
const ProviderName = "pocket"

const (
	defaultBaseURL = "https://getpocket.com"

	// the handshake has no real redirect target; the token is
	// exchanged out of band after the user confirms
	redirectURI = "0.0.0.0"
	authState   = "research"
)

func init() {
	err := research.RegisterProvider(research.Provider{
		Name:  ProviderName,
		Title: "Pocket",
		NewRemote: func(s research.Secrets) (research.Remote, error) {
			return NewClient(s.PocketConsumerKey, s.PocketAccessToken), nil
		},
	})
	if err != nil {
		research.Log.Fatal("registering provider", zap.Error(err))
	}
}

// Client talks to the Pocket API on behalf of one consumer key.
type Client struct {
	ConsumerKey string
	AccessToken string

	// HTTPClient overrides the default client (60s timeout).
	HTTPClient *http.Client

	// BaseURL overrides the production endpoint, for tests.
	BaseURL string

	// Confirm presents an authorization URL to the user and blocks
	// until they approve it. Defaults to printing the URL and
	// waiting for a line on stdin.
	Confirm func(authURL string) error

	limiter *rate.Limiter
	log     *zap.Logger
}

// NewClient returns a client for the given credentials. The access
// token may be empty until Authenticate has run.
func NewClient(consumerKey, accessToken string) *Client {
	return &Client{
		ConsumerKey: consumerKey,
		AccessToken: accessToken,
	}
}

func (c *Client) httpClient() *http.Client {
	if c.HTTPClient != nil {
		return c.HTTPClient
	}
	return &http.Client{Timeout: 60 * time.Second}
}

func (c *Client) baseURL() string {
	if c.BaseURL != "" {
		return strings.TrimSuffix(c.BaseURL, "/")
	}
	return defaultBaseURL
}

func (c *Client) logger() *zap.Logger {
	if c.log == nil {
		c.log = research.Log.Named(ProviderName)
	}
	return c.log
}

type oauthRequestBody struct {
	ConsumerKey string `json:"consumer_key"`
	RedirectURI string `json:"redirect_uri"`
	State       string `json:"state,omitempty"`
}

type oauthRequestResponse struct {
	Code  string `json:"code"`
	State string `json:"state"`
}

type oauthAuthorizeBody struct {
	ConsumerKey string `json:"consumer_key"`
	Code        string `json:"code"`
}

type oauthAuthorizeResponse struct {
	AccessToken string `json:"access_token"`
	Username    string `json:"username"`
}

// Authenticate performs the two-step authorization handshake:
// obtain a request code, have the user approve the authorization
// URL, then exchange the code for an access token.
func (c *Client) Authenticate(ctx context.Context) (research.Secrets, error) {
	if c.ConsumerKey == "" {
		return research.Secrets{}, research.CredentialError{Provider: ProviderName, Missing: "consumer key"}
	}

	var reqResp oauthRequestResponse
	err := c.postJSON(ctx, "/v3/oauth/request", oauthRequestBody{
		ConsumerKey: c.ConsumerKey,
		RedirectURI: redirectURI,
		State:       authState,
	}, &reqResp)
	if err != nil {
		return research.Secrets{}, fmt.Errorf("requesting authorization code: %w", err)
	}

	authURL := c.baseURL() + "/auth/authorize?" + url.Values{
		"request_token": {reqResp.Code},
		"redirect_uri":  {redirectURI},
	}.Encode()

	confirm := c.Confirm
	if confirm == nil {
		confirm = confirmOnStdin
	}
	if err := confirm(authURL); err != nil {
		return research.Secrets{}, fmt.Errorf("waiting for authorization: %w", err)
	}

	var authResp oauthAuthorizeResponse
	err = c.postJSON(ctx, "/v3/oauth/authorize", oauthAuthorizeBody{
		ConsumerKey: c.ConsumerKey,
		Code:        reqResp.Code,
	}, &authResp)
	if err != nil {
		return research.Secrets{}, fmt.Errorf("exchanging code for access token: %w", err)
	}
	if authResp.AccessToken == "" {
		return research.Secrets{}, fmt.Errorf("authorization response carried no access token")
	}

	c.logger().Info("authenticated", zap.String("username", authResp.Username))

	c.AccessToken = authResp.AccessToken
	return research.Secrets{
		PocketConsumerKey: c.ConsumerKey,
		PocketAccessToken: authResp.AccessToken,
		UserID:            research.DefaultUserID,
	}, nil
}

func confirmOnStdin(authURL string) error {
	fmt.Printf("Follow the URL to provide access:\n%s\n", authURL)
	fmt.Println("Press enter to continue...")
	_, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil && err != io.EOF {
		return err
	}
	return nil
}

type addRequestBody struct {
	ConsumerKey string `json:"consumer_key"`
	AccessToken string `json:"access_token"`
	URL         string `json:"url"`
	Title       string `json:"title,omitempty"`
	Tags        string `json:"tags,omitempty"` // comma-delimited
}

// AddItem pushes a new item to the service and returns the
// service-assigned item ID if the response carries one.
func (c *Client) AddItem(ctx context.Context, uri string, tags []string) (*int64, error) {
	if err := c.requireCredentials(); err != nil {
		return nil, err
	}

	var resp struct {
		Item struct {
			ItemID wireInt `json:"item_id"`
		} `json:"item"`
	}
	err := c.postJSON(ctx, "/v3/add", addRequestBody{
		ConsumerKey: c.ConsumerKey,
		AccessToken: c.AccessToken,
		URL:         uri,
		Tags:        strings.Join(tags, ","),
	}, &resp)
	if err != nil {
		return nil, fmt.Errorf("adding item: %w", err)
	}

	if resp.Item.ItemID == 0 {
		return nil, nil
	}
	id := int64(resp.Item.ItemID)
	c.logger().Info("added item", zap.String("uri", uri), zap.Int64("item_id", id))
	return &id, nil
}

type sendAction struct {
	Action string  `json:"action"`
	ItemID string  `json:"item_id"`
	Time   *string `json:"time"`
}

type sendRequestBody struct {
	ConsumerKey string       `json:"consumer_key"`
	AccessToken string       `json:"access_token"`
	Actions     []sendAction `json:"actions"`
}

// MarkFavorite pushes a favorite or unfavorite action for the item.
// It does not touch local storage.
func (c *Client) MarkFavorite(ctx context.Context, itemID int64, mark bool) error {
	if err := c.requireCredentials(); err != nil {
		return err
	}

	action := "unfavorite"
	if mark {
		action = "favorite"
	}

	err := c.postJSON(ctx, "/v3/send", sendRequestBody{
		ConsumerKey: c.ConsumerKey,
		AccessToken: c.AccessToken,
		Actions: []sendAction{{
			Action: action,
			ItemID: strconv.FormatInt(itemID, 10),
		}},
	}, nil)
	if err != nil {
		return fmt.Errorf("sending %s action: %w", action, err)
	}

	c.logger().Info("favorite state pushed", zap.Int64("item_id", itemID), zap.Bool("favorite", mark))
	return nil
}

func (c *Client) requireCredentials() error {
	if c.ConsumerKey == "" {
		return research.CredentialError{Provider: ProviderName, Missing: "consumer key"}
	}
	if c.AccessToken == "" {
		return research.CredentialError{Provider: ProviderName, Missing: "access token"}
	}
	return nil
}

// postJSON posts body to path and decodes a 2xx response into out
// (if non-nil). Transport failures and non-2xx statuses are errors;
// the retrieve loop uses postRaw instead because its error envelopes
// arrive with a success status.
func (c *Client) postJSON(ctx context.Context, path string, body, out any) error {
	raw, status, err := c.postRaw(ctx, path, body)
	if err != nil {
		return err
	}
	if status < 200 || status > 299 {
		return fmt.Errorf("%s returned status %d", path, status)
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decoding %s response: %w", path, err)
	}
	return nil
}

func (c *Client) postRaw(ctx context.Context, path string, body any) ([]byte, int, error) {
	buf, err := json.Marshal(body)
	if err != nil {
		return nil, 0, fmt.Errorf("encoding request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL()+path, bytes.NewReader(buf))
	if err != nil {
		return nil, 0, fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Accept", "application/json")

	resp, err := c.httpClient().Do(req)
	if err != nil {
		return nil, 0, research.TransportError{Provider: ProviderName, Op: "POST " + path, Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, research.TransportError{Provider: ProviderName, Op: "reading " + path + " response", Err: err}
	}
	return raw, resp.StatusCode, nil
}
