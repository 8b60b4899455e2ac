package media

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"

	apperrors "github.com/utafrali/catalog/pkg/errors"
	"github.com/utafrali/catalog/pkg/httpclient"
)

// Owner types under which catalog assets are registered in the media service.
const (
	OwnerListing      = "listing"
	OwnerCatalogEntry = "catalog_entry"
	OwnerSuggestion   = "suggestion"
)

const pageSize = 100

// HTTPDoer executes HTTP requests. Both httpclient.Client and
// httpclient.CircuitBreakerClient satisfy it.
type HTTPDoer interface {
	Do(ctx context.Context, req *http.Request) (*http.Response, error)
}

// CircuitOpenFallback turns an open breaker into a 503 instead of the raw
// gobreaker error.
func CircuitOpenFallback(_ context.Context, _ error) (*http.Response, error) {
	return nil, apperrors.Unavailable("media service is temporarily unavailable")
}

// Asset is a media file as returned by the media service.
type Asset struct {
	ID        string `json:"id"`
	OwnerID   string `json:"owner_id"`
	OwnerType string `json:"owner_type"`
	URL       string `json:"url"`
}

type listResponse struct {
	Data       []Asset `json:"data"`
	TotalCount int     `json:"total_count"`
	Page       int     `json:"page"`
	TotalPages int     `json:"total_pages"`
}

// Client talks to the platform media service.
type Client struct {
	http    HTTPDoer
	baseURL string
	logger  *slog.Logger
}

// NewClient creates a media service client rooted at baseURL.
func NewClient(doer HTTPDoer, baseURL string, logger *slog.Logger) *Client {
	return &Client{
		http:    doer,
		baseURL: baseURL,
		logger:  logger,
	}
}

// ListByOwner returns every asset registered for the owner, following pages.
func (c *Client) ListByOwner(ctx context.Context, ownerType, ownerID string) ([]Asset, error) {
	assets := []Asset{}
	for page := 1; ; page++ {
		q := url.Values{}
		q.Set("page", strconv.Itoa(page))
		q.Set("per_page", strconv.Itoa(pageSize))
		endpoint := fmt.Sprintf("%s/api/v1/media/owner/%s/%s?%s",
			c.baseURL, url.PathEscape(ownerType), url.PathEscape(ownerID), q.Encode())

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, http.NoBody)
		if err != nil {
			return nil, fmt.Errorf("create list media request: %w", err)
		}

		resp, err := c.http.Do(ctx, req)
		if err != nil {
			return nil, fmt.Errorf("call media service: %w", err)
		}
		if resp.StatusCode != http.StatusOK {
			return nil, httpclient.ParseResponseError(resp, "media")
		}

		var body listResponse
		err = json.NewDecoder(resp.Body).Decode(&body)
		_ = resp.Body.Close()
		if err != nil {
			return nil, fmt.Errorf("decode media list: %w", err)
		}

		assets = append(assets, body.Data...)
		if page >= body.TotalPages || len(body.Data) == 0 {
			return assets, nil
		}
	}
}

// Delete removes one asset. An asset that is already gone counts as deleted.
func (c *Client) Delete(ctx context.Context, id string) error {
	endpoint := fmt.Sprintf("%s/api/v1/media/%s", c.baseURL, url.PathEscape(id))
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, endpoint, http.NoBody)
	if err != nil {
		return fmt.Errorf("create delete media request: %w", err)
	}

	resp, err := c.http.Do(ctx, req)
	if err != nil {
		return fmt.Errorf("call media service: %w", err)
	}

	switch resp.StatusCode {
	case http.StatusOK, http.StatusNoContent, http.StatusNotFound:
		_ = resp.Body.Close()
		return nil
	default:
		return httpclient.ParseResponseError(resp, "media")
	}
}

// DeleteByOwner deletes every asset of the owner and returns how many were
// removed. It keeps going past individual failures and reports them joined.
func (c *Client) DeleteByOwner(ctx context.Context, ownerType, ownerID string) (int, error) {
	assets, err := c.ListByOwner(ctx, ownerType, ownerID)
	if err != nil {
		return 0, err
	}

	var (
		deleted int
		errs    []error
	)
	for _, a := range assets {
		if err := c.Delete(ctx, a.ID); err != nil {
			errs = append(errs, fmt.Errorf("delete media %s: %w", a.ID, err))
			continue
		}
		deleted++
	}

	c.logger.DebugContext(ctx, "owner media deleted",
		slog.String("owner_type", ownerType),
		slog.String("owner_id", ownerID),
		slog.Int("deleted", deleted),
		slog.Int("failed", len(errs)),
	)
	return deleted, errors.Join(errs...)
}

// Noop is an asset cleaner for deployments without a media service.
type Noop struct{}

// DeleteByOwner does nothing.
func (Noop) DeleteByOwner(context.Context, string, string) (int, error) { return 0, nil }
