package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

const (
	locationTTL     = 24 * time.Hour
	locationCleanup = 48 * time.Hour
)

type ibgeState struct {
	Sigla string `json:"sigla"`
}

type ibgeCity struct {
	Nome string `json:"nome"`
}

// LocationClient reads states and municipalities from the IBGE locality API.
// Answers are memoised because the directory changes rarely.
type LocationClient struct {
	baseURL string
	http    *http.Client
	cache   *gocache.Cache
}

func NewLocationClient(baseURL string, httpClient *http.Client) *LocationClient {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultTimeout}
	}
	return &LocationClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    httpClient,
		cache:   gocache.New(locationTTL, locationCleanup),
	}
}

// States returns every UF code, sorted.
func (c *LocationClient) States(ctx context.Context) ([]string, error) {
	const key = "ufs"
	if cached, ok := c.cache.Get(key); ok {
		return append([]string(nil), cached.([]string)...), nil
	}

	var states []ibgeState
	if err := c.get(ctx, "/api/v1/localidades/estados", &states); err != nil {
		return nil, err
	}
	ufs := make([]string, 0, len(states))
	for _, s := range states {
		ufs = append(ufs, s.Sigla)
	}
	sort.Strings(ufs)

	c.cache.Set(key, ufs, gocache.DefaultExpiration)
	return append([]string(nil), ufs...), nil
}

// Cities returns the municipality names of uf in directory order.
func (c *LocationClient) Cities(ctx context.Context, uf string) ([]string, error) {
	uf = strings.ToUpper(strings.TrimSpace(uf))
	if uf == "" {
		return nil, fmt.Errorf("uf is required")
	}
	key := "cities:" + uf
	if cached, ok := c.cache.Get(key); ok {
		return append([]string(nil), cached.([]string)...), nil
	}

	var cities []ibgeCity
	if err := c.get(ctx, "/api/v1/localidades/estados/"+url.PathEscape(uf)+"/municipios", &cities); err != nil {
		return nil, err
	}
	names := make([]string, 0, len(cities))
	for _, city := range cities {
		names = append(names, city.Nome)
	}

	c.cache.Set(key, names, gocache.DefaultExpiration)
	return append([]string(nil), names...), nil
}

func (c *LocationClient) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("ibge %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("ibge %s: unexpected status %d", path, resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("ibge %s: decode: %w", path, err)
	}
	return nil
}
