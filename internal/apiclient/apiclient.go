// Package apiclient is the single point of contact with the shortener
// REST API. One configured resty client shapes every outgoing request
// (bearer token injection) and interprets every incoming response
// (credential invalidation on authorization failure); typed methods on
// top of it cover the auth, links and analytics resources.
package apiclient

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	resty "github.com/go-resty/resty/v2"

	"github.com/linkboard/linkboard/internal/logger"
	"github.com/linkboard/linkboard/internal/models"
)

// credentialKeeper is the slice of the credential store the adapter
// needs: read the current token, drop the credential on a 401.
type credentialKeeper interface {
	Token() string
	Clear()
}

// APIError carries a non-2xx response. The adapter propagates it to the
// caller unchanged; redirecting or retrying is the caller's business.
type APIError struct {
	StatusCode int
	Message    string
}

// Error implements the error interface.
func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("api request failed with status %d", e.StatusCode)
	}

	return fmt.Sprintf("api request failed (%d): %s", e.StatusCode, e.Message)
}

// Unauthorized reports whether the response carried HTTP 401 semantics.
func (e *APIError) Unauthorized() bool {
	return e.StatusCode == http.StatusUnauthorized
}

// Client is the configured HTTP client adapter.
type Client struct {
	http        *resty.Client
	credentials credentialKeeper
}

// Option customises client instantiation.
type Option func(*Client)

// WithUnauthorizedCallback registers a hook invoked once per response
// with authorization-failure status, after the stored credential has
// been cleared. The application composes it with the route guard; the
// adapter itself never redirects.
func WithUnauthorizedCallback(callback func()) Option {
	return func(c *Client) {
		if callback == nil {
			return
		}
		c.http.OnAfterResponse(func(_ *resty.Client, response *resty.Response) error {
			if response.StatusCode() == http.StatusUnauthorized {
				callback()
			}
			return nil
		})
	}
}

// WithTransport overrides the underlying transport, which tests use to
// fail requests at the network layer.
func WithTransport(transport http.RoundTripper) Option {
	return func(c *Client) {
		c.http.SetTransport(transport)
	}
}

// New builds the adapter against baseURL, reading and invalidating
// credentials through the given keeper.
func New(baseURL string, credentials credentialKeeper, opts ...Option) *Client {
	theClient := &Client{
		http:        resty.New(),
		credentials: credentials,
	}

	theClient.http.SetBaseURL(baseURL)

	// Request phase: attach the bearer token when the store holds one.
	// Unauthenticated calls go out unmodified because the store is
	// empty before login.
	theClient.http.OnBeforeRequest(func(_ *resty.Client, request *resty.Request) error {
		if token := credentials.Token(); token != "" {
			request.SetAuthToken(token)
		}
		return nil
	})

	// Response phase: an authorization failure invalidates the stored
	// credential. The failed call still reaches its caller unchanged.
	theClient.http.OnAfterResponse(func(_ *resty.Client, response *resty.Response) error {
		if response.StatusCode() == http.StatusUnauthorized {
			logger.Log.Debugln("authorization failure, clearing stored credential")
			credentials.Clear()
		}
		return nil
	})

	for _, opt := range opts {
		opt(theClient)
	}

	return theClient
}

func decodeErrorMessage(body []byte) string {
	var envelope models.APIErrorBody
	if err := json.Unmarshal(body, &envelope); err != nil {
		return ""
	}

	return envelope.Message
}

// execute runs a prepared request and maps the outcome: transport
// failures are wrapped, non-2xx statuses become *APIError, 2xx bodies
// are decoded into result when result is non-nil.
func (c *Client) execute(
	ctx context.Context,
	method string,
	path string,
	body interface{},
	result interface{},
) error {
	request := c.http.R().SetContext(ctx)
	if body != nil {
		request.SetBody(body)
	}

	response, err := request.Execute(method, path)
	if err != nil {
		return fmt.Errorf("perform request %s %s: %w", method, path, err)
	}

	if response.IsError() {
		return &APIError{
			StatusCode: response.StatusCode(),
			Message:    decodeErrorMessage(response.Body()),
		}
	}

	if result == nil {
		return nil
	}
	if err := json.Unmarshal(response.Body(), result); err != nil {
		return fmt.Errorf("decode response of %s %s: %w", method, path, err)
	}

	return nil
}

// Login exchanges credentials for a token and profile.
func (c *Client) Login(ctx context.Context, request models.LoginRequest) (*models.AuthResponse, error) {
	var response models.AuthResponse
	if err := c.execute(ctx, http.MethodPost, "/auth/login", request, &response); err != nil {
		return nil, err
	}

	return &response, nil
}

// Register creates an account; the response establishes a session just
// like a login.
func (c *Client) Register(ctx context.Context, request models.RegisterRequest) (*models.AuthResponse, error) {
	var response models.AuthResponse
	if err := c.execute(ctx, http.MethodPost, "/auth/register", request, &response); err != nil {
		return nil, err
	}

	return &response, nil
}

// ListLinks returns every link of the authenticated user.
func (c *Client) ListLinks(ctx context.Context) ([]models.Link, error) {
	var links []models.Link
	if err := c.execute(ctx, http.MethodGet, "/links", nil, &links); err != nil {
		return nil, err
	}

	return links, nil
}

// CreateLink shortens a URL.
func (c *Client) CreateLink(ctx context.Context, request models.CreateLinkRequest) (*models.Link, error) {
	var link models.Link
	if err := c.execute(ctx, http.MethodPost, "/links", request, &link); err != nil {
		return nil, err
	}

	return &link, nil
}

// UpdateLink applies a partial update to a link.
func (c *Client) UpdateLink(ctx context.Context, linkID string, request models.UpdateLinkRequest) (*models.Link, error) {
	var link models.Link
	path := "/links/" + url.PathEscape(linkID)
	if err := c.execute(ctx, http.MethodPut, path, request, &link); err != nil {
		return nil, err
	}

	return &link, nil
}

// DeleteLink removes a link.
func (c *Client) DeleteLink(ctx context.Context, linkID string) error {
	return c.execute(ctx, http.MethodDelete, "/links/"+url.PathEscape(linkID), nil, nil)
}

// GetAnalytics fetches the analytics aggregate for a link.
func (c *Client) GetAnalytics(ctx context.Context, linkID string) (*models.AnalyticsResponse, error) {
	var analytics models.AnalyticsResponse
	path := "/analytics/" + url.PathEscape(linkID)
	if err := c.execute(ctx, http.MethodGet, path, nil, &analytics); err != nil {
		return nil, err
	}

	return &analytics, nil
}
