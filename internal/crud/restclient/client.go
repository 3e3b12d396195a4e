// Package restclient is a CRUD service backed by an external JSON API that
// exposes /api/{entity} collection routes.
package restclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/matthewbaird/backoffice/internal/apperr"
	"github.com/matthewbaird/backoffice/internal/crud"
)

// Client talks to one entity collection of a remote API.
type Client struct {
	baseURL string
	entity  string
	token   string
	http    *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient sets the underlying HTTP client (cookie jar, transport).
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithToken sends a bearer token on every request.
func WithToken(token string) Option {
	return func(c *Client) { c.token = token }
}

// New creates a client for entity under baseURL.
func New(baseURL, entity string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		entity:  entity,
		http:    &http.Client{Timeout: 15 * time.Second},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

func (c *Client) collectionURL() string {
	return c.baseURL + "/api/" + url.PathEscape(c.entity)
}

func (c *Client) itemURL(id string) string {
	return c.collectionURL() + "/" + url.PathEscape(id)
}

func (c *Client) FetchItems(ctx context.Context, f crud.Filters) (*crud.ListResult, error) {
	u := c.collectionURL()
	if len(f) > 0 {
		q := url.Values{}
		for k, v := range f {
			q.Set(k, fmt.Sprint(v))
		}
		u += "?" + q.Encode()
	}
	body, err := c.do(ctx, http.MethodGet, u, nil, "")
	if err != nil {
		return nil, err
	}
	return crud.DecodeList(body)
}

func (c *Client) CreateItem(ctx context.Context, item crud.Record) (crud.Record, error) {
	body, err := c.do(ctx, http.MethodPost, c.collectionURL(), item, "")
	if err != nil {
		return nil, err
	}
	return decodeItem(body)
}

func (c *Client) UpdateItem(ctx context.Context, id string, patch crud.Record) (crud.Record, error) {
	body, err := c.do(ctx, http.MethodPatch, c.itemURL(id), patch, id)
	if err != nil {
		return nil, err
	}
	return decodeItem(body)
}

func (c *Client) DeleteItem(ctx context.Context, id string) error {
	_, err := c.do(ctx, http.MethodDelete, c.itemURL(id), nil, id)
	return err
}

func (c *Client) do(ctx context.Context, method, u string, payload any, id string) ([]byte, error) {
	var reader io.Reader
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("encoding %s payload: %w", c.entity, err)
		}
		reader = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, u, err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, 10<<20))
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}
	switch {
	case resp.StatusCode == http.StatusNotFound && id != "":
		return nil, apperr.NewNotFound(c.entity, id)
	case resp.StatusCode >= 300:
		return nil, &apperr.UpstreamError{Status: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}
	return body, nil
}

// decodeItem accepts a bare object or a {"data": {...}} envelope.
func decodeItem(body []byte) (crud.Record, error) {
	if len(bytes.TrimSpace(body)) == 0 {
		return crud.Record{}, nil
	}
	var rec crud.Record
	if err := json.Unmarshal(body, &rec); err != nil {
		return nil, fmt.Errorf("decoding item: %w", err)
	}
	if inner, ok := rec["data"].(map[string]any); ok && len(rec) == 1 {
		return inner, nil
	}
	return rec, nil
}
