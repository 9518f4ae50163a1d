package client

import (
	"context"
	"fmt"

	"github.com/gamecafe/panelsync/internal/model"
	"github.com/gamecafe/panelsync/internal/querycache"
)

// HealthResponse is returned by the API health check.
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version,omitempty"`
}

// Fetch loads the resource a cache key names. The key's path is requested
// with its scope parameters as path segments, and the decoded JSON comes
// back as model.Doc / []model.Doc.
func (c *Client) Fetch(ctx context.Context, key querycache.Key) (any, error) {
	if len(key) == 0 {
		return nil, fmt.Errorf("fetch: empty key")
	}

	var out any
	if err := c.get(ctx, resourcePath(key.Path(), key[1:]), nil, &out); err != nil {
		return nil, err
	}

	return model.Normalize(out), nil
}

// Me returns the signed-in user.
func (c *Client) Me(ctx context.Context) (model.Doc, error) {
	var out model.Doc
	if err := c.get(ctx, model.PathCurrentUser, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Kitchens returns every kitchen with its alert subscriptions.
func (c *Client) Kitchens(ctx context.Context) ([]model.Doc, error) {
	return c.list(ctx, model.PathKitchens)
}

// Categories returns every menu category.
func (c *Client) Categories(ctx context.Context) ([]model.Doc, error) {
	return c.list(ctx, model.PathCategories)
}

func (c *Client) list(ctx context.Context, path string) ([]model.Doc, error) {
	var out []model.Doc
	if err := c.get(ctx, path, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}
