// Package client holds HTTP clients for the Ecoleta API and the IBGE
// locality service.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"ecoleta/models"
	"ecoleta/utils/errors"
)

const defaultTimeout = 10 * time.Second

// APIClient talks to an Ecoleta server.
type APIClient struct {
	baseURL string
	http    *http.Client
	token   string
}

type Option func(*APIClient)

// WithHTTPClient replaces the default client (10s timeout).
func WithHTTPClient(c *http.Client) Option {
	return func(a *APIClient) { a.http = c }
}

// WithToken sends a bearer token on write requests.
func WithToken(token string) Option {
	return func(a *APIClient) { a.token = token }
}

func NewAPIClient(baseURL string, opts ...Option) *APIClient {
	c := &APIClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: defaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *APIClient) ListItems(ctx context.Context) ([]models.Item, error) {
	var items []models.Item
	err := c.do(ctx, http.MethodGet, "/items", nil, &items)
	return items, err
}

func (c *APIClient) CreatePoint(ctx context.Context, input models.CreatePointInput) (models.Point, error) {
	var point models.Point
	err := c.do(ctx, http.MethodPost, "/points", input, &point)
	return point, err
}

func (c *APIClient) ListPoints(ctx context.Context, filter models.PointFilter) ([]models.Point, error) {
	q := url.Values{}
	if filter.City != "" {
		q.Set("city", filter.City)
	}
	if filter.UF != "" {
		q.Set("uf", filter.UF)
	}
	if len(filter.Items) > 0 {
		ids := make([]string, len(filter.Items))
		for i, id := range filter.Items {
			ids[i] = strconv.FormatInt(id, 10)
		}
		q.Set("items", strings.Join(ids, ","))
	}
	if filter.Near != nil {
		q.Set("lat", strconv.FormatFloat(filter.Near.Lat(), 'f', -1, 64))
		q.Set("lon", strconv.FormatFloat(filter.Near.Lon(), 'f', -1, 64))
		if filter.RadiusKm > 0 {
			q.Set("radius", strconv.FormatFloat(filter.RadiusKm, 'f', -1, 64))
		}
	}

	path := "/points"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}
	var points []models.Point
	err := c.do(ctx, http.MethodGet, path, nil, &points)
	return points, err
}

func (c *APIClient) GetPoint(ctx context.Context, id int64) (models.PointDetail, error) {
	var detail models.PointDetail
	err := c.do(ctx, http.MethodGet, fmt.Sprintf("/points/%d", id), nil, &detail)
	return detail, err
}

// do sends body as JSON and decodes a 2xx response into out. Other statuses
// come back as *errors.APIError.
func (c *APIClient) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" && method != http.MethodGet {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &errors.APIError{}
		if err := json.NewDecoder(resp.Body).Decode(apiErr); err != nil || apiErr.Code == "" {
			return errors.NewAPIError("HTTP_ERROR", http.StatusText(resp.StatusCode), resp.StatusCode)
		}
		apiErr.Status = resp.StatusCode
		return apiErr
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s %s: %w", method, path, err)
	}
	return nil
}
