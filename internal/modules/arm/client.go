// Package arm is the management-plane client shared by the built-in command
// modules. Every call carries the api-version of the operation that issues
// it, so one client serves all bound versions.
package arm

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	clierr "github.com/LukaszStem/azure-cli/internal/errors"
	"github.com/LukaszStem/azure-cli/internal/httpx"
	"github.com/LukaszStem/azure-cli/internal/operation"
)

type Client struct {
	http         *httpx.Client
	subscription string
}

func New(http *httpx.Client, subscription string) *Client {
	return &Client{http: http, subscription: subscription}
}

// Factory returns a client factory for command descriptors. It fails with a
// usage error when no subscription is configured.
func Factory(http *httpx.Client, subscription string) func(context.Context, operation.Args) (any, error) {
	return func(context.Context, operation.Args) (any, error) {
		if strings.TrimSpace(subscription) == "" {
			return nil, clierr.New(clierr.CodeUsage, "no subscription configured; set cloud.subscription or AZ_SUBSCRIPTION_ID")
		}
		return New(http, subscription), nil
	}
}

// From extracts the client passed to an operation.
func From(client any) (*Client, error) {
	c, ok := client.(*Client)
	if !ok || c == nil {
		return nil, clierr.New(clierr.CodeInternal, fmt.Sprintf("unexpected client type %T", client))
	}
	return c, nil
}

// SubscriptionPath joins segments below /subscriptions/<id>. Segments are
// path-escaped.
func (c *Client) SubscriptionPath(segments ...string) string {
	parts := []string{"subscriptions", url.PathEscape(c.subscription)}
	for _, s := range segments {
		parts = append(parts, url.PathEscape(s))
	}
	return "/" + strings.Join(parts, "/")
}

func query(apiVersion string) url.Values {
	return url.Values{"api-version": {apiVersion}}
}

func (c *Client) Get(ctx context.Context, apiVersion, path string) (any, error) {
	resp, err := c.http.Do(ctx, http.MethodGet, path, query(apiVersion), nil)
	if err != nil {
		return nil, err
	}
	return resp.Value()
}

// Head reports whether path exists.
func (c *Client) Head(ctx context.Context, apiVersion, path string) (bool, error) {
	resp, err := c.http.Do(ctx, http.MethodHead, path, query(apiVersion), nil)
	if err != nil {
		if isNotFound(err) {
			return false, nil
		}
		return false, err
	}
	return resp.StatusCode == http.StatusNoContent || resp.StatusCode == http.StatusOK, nil
}

// Put creates or updates path. Asynchronous acceptance returns an
// *httpx.Operation for the poller.
func (c *Client) Put(ctx context.Context, apiVersion, path string, body any) (any, error) {
	return c.mutate(ctx, http.MethodPut, apiVersion, path, body)
}

func (c *Client) Patch(ctx context.Context, apiVersion, path string, body any) (any, error) {
	return c.mutate(ctx, http.MethodPatch, apiVersion, path, body)
}

func (c *Client) Post(ctx context.Context, apiVersion, path string, body any) (any, error) {
	return c.mutate(ctx, http.MethodPost, apiVersion, path, body)
}

// Delete always returns an *httpx.Operation; completed deletes resolve
// immediately to a nil result.
func (c *Client) Delete(ctx context.Context, apiVersion, path string) (any, error) {
	resp, err := c.http.Do(ctx, http.MethodDelete, path, query(apiVersion), nil)
	if err != nil {
		return nil, err
	}
	return httpx.StartOperation(c.http, http.MethodDelete, c.resourceURL(path, apiVersion), resp), nil
}

// List returns a pager over the value/nextLink pages of path.
func (c *Client) List(apiVersion, path string) *httpx.Pager {
	return httpx.NewPager(c.http, path, query(apiVersion))
}

func (c *Client) mutate(ctx context.Context, method, apiVersion, path string, body any) (any, error) {
	resp, err := c.http.Do(ctx, method, path, query(apiVersion), body)
	if err != nil {
		return nil, err
	}
	if httpx.IsLongRunning(resp) {
		return httpx.StartOperation(c.http, method, c.resourceURL(path, apiVersion), resp), nil
	}
	return resp.Value()
}

func (c *Client) resourceURL(path, apiVersion string) string {
	return path + "?" + query(apiVersion).Encode()
}
