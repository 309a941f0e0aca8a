package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"ecoleta/middleware"
	"ecoleta/models"
	"ecoleta/services"
	"ecoleta/storage/sqlstore"
	"ecoleta/utils/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testServer struct {
	*httptest.Server
	store *sqlstore.Store
}

func newTestServer(t *testing.T, jwtSecret string) *testServer {
	t.Helper()
	store, err := sqlstore.OpenSQLite(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	ctx := context.Background()
	require.NoError(t, store.InitSchema(ctx))
	catalog, err := services.LoadCatalog("")
	require.NoError(t, err)
	require.NoError(t, store.SeedItems(ctx, catalog))

	uploads := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(uploads, "lampadas.svg"), []byte("<svg/>"), 0o644))

	itemService := services.NewItemService(store, nil, "http://ecoleta.test")
	pointService := services.NewPointService(store, nil, nil, nil, "http://ecoleta.test")
	router := NewRouter(
		NewItemHandler(itemService),
		NewPointHandler(pointService),
		NewHealthHandler(store, nil),
		RouterConfig{
			AllowedOrigins: []string{"http://localhost:3000"},
			JWTSecret:      jwtSecret,
			UploadsDir:     uploads,
			Logger:         slog.New(slog.NewTextHandler(io.Discard, nil)),
		},
	)

	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return &testServer{Server: srv, store: store}
}

func (s *testServer) do(t *testing.T, method, path string, body any, header ...string) *http.Response {
	t.Helper()
	var reader io.Reader
	if body != nil {
		switch b := body.(type) {
		case string:
			reader = strings.NewReader(b)
		default:
			raw, err := json.Marshal(b)
			require.NoError(t, err)
			reader = bytes.NewReader(raw)
		}
	}
	req, err := http.NewRequest(method, s.URL+path, reader)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

func coopX() models.CreatePointInput {
	return models.CreatePointInput{
		Name: "Coop X", Email: "x@x.com", Whatsapp: "119999",
		UF: "SP", City: "Osasco", Latitude: -23.5, Longitude: -46.6,
		Items: []int64{1, 3},
	}
}

func TestListItemsIgnoresQuery(t *testing.T) {
	srv := newTestServer(t, "")

	resp := srv.do(t, http.MethodGet, "/items", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	plain := decode[[]models.Item](t, resp)
	require.Len(t, plain, 6)
	assert.Equal(t, "http://ecoleta.test/uploads/lampadas.svg", plain[0].ImageURL)

	resp = srv.do(t, http.MethodGet, "/items?title=Pilhas&limit=1", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, plain, decode[[]models.Item](t, resp))
}

func TestCreateAndShowPoint(t *testing.T) {
	srv := newTestServer(t, "")

	resp := srv.do(t, http.MethodPost, "/points", coopX())
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	created := decode[models.Point](t, resp)
	assert.NotZero(t, created.ID)
	assert.Equal(t, "Coop X", created.Name)
	assert.Equal(t, "x@x.com", created.Email)
	assert.Equal(t, "119999", created.Whatsapp)
	assert.Equal(t, "SP", created.UF)
	assert.Equal(t, "Osasco", created.City)
	assert.Equal(t, -23.5, created.Latitude)
	assert.Equal(t, -46.6, created.Longitude)
	assert.Equal(t, []int64{1, 3}, created.Items)

	links, err := srv.store.PointItems(context.Background(), created.ID)
	require.NoError(t, err)
	assert.Len(t, links, 2)

	resp = srv.do(t, http.MethodGet, fmt.Sprintf("/points/%d", created.ID), nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	detail := decode[models.PointDetail](t, resp)
	assert.Equal(t, created.ID, detail.Point.ID)
	require.Len(t, detail.Items, 2)
	assert.Equal(t, "Lâmpadas", detail.Items[0].Title)
	assert.Equal(t, "Papéis e Papelão", detail.Items[1].Title)
}

func TestShowUnknownPoint(t *testing.T) {
	srv := newTestServer(t, "")

	resp := srv.do(t, http.MethodGet, "/points/999", nil)
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
	body := decode[errors.APIError](t, resp)
	assert.Equal(t, "NOT_FOUND", body.Code)
	assert.Equal(t, "Point not found", body.Message)

	for _, id := range []string{"0", "-1"} {
		resp = srv.do(t, http.MethodGet, "/points/"+id, nil)
		assert.Equal(t, http.StatusNotFound, resp.StatusCode, "id %s", id)
	}

	resp = srv.do(t, http.MethodGet, "/points/abc", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = srv.do(t, http.MethodGet, "/nowhere", nil)
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "NOT_FOUND", decode[errors.APIError](t, resp).Code)
}

func TestCreatePointEchoesEmptyItems(t *testing.T) {
	srv := newTestServer(t, "")

	in := coopX()
	in.Items = []int64{}
	resp := srv.do(t, http.MethodPost, "/points", in)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	body := decode[map[string]any](t, resp)
	require.Contains(t, body, "items")
	assert.Empty(t, body["items"])
}

func TestCreatedAtIsStableAcrossReads(t *testing.T) {
	srv := newTestServer(t, "")

	resp := srv.do(t, http.MethodPost, "/points", coopX())
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	created := decode[models.Point](t, resp)

	resp = srv.do(t, http.MethodGet, fmt.Sprintf("/points/%d", created.ID), nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	detail := decode[models.PointDetail](t, resp)
	assert.True(t, created.CreatedAt.Equal(detail.Point.CreatedAt), "%v != %v", created.CreatedAt, detail.Point.CreatedAt)
}

func TestCreatePointRejectsBadInput(t *testing.T) {
	srv := newTestServer(t, "")

	resp := srv.do(t, http.MethodPost, "/points", "{not json")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	bad := coopX()
	bad.Items = []int64{42}
	resp = srv.do(t, http.MethodPost, "/points", bad)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = srv.do(t, http.MethodGet, "/points", nil)
	assert.Empty(t, decode[[]models.Point](t, resp))
}

func TestListPointsFilters(t *testing.T) {
	srv := newTestServer(t, "")

	osasco := coopX()
	rio := coopX()
	rio.Name, rio.UF, rio.City, rio.Latitude, rio.Longitude, rio.Items = "Rio Recicla", "RJ", "Rio de Janeiro", -22.9068, -43.1729, []int64{2}
	require.Equal(t, http.StatusCreated, srv.do(t, http.MethodPost, "/points", osasco).StatusCode)
	require.Equal(t, http.StatusCreated, srv.do(t, http.MethodPost, "/points", rio).StatusCode)

	names := func(resp *http.Response) []string {
		require.Equal(t, http.StatusOK, resp.StatusCode)
		out := []string{}
		for _, p := range decode[[]models.Point](t, resp) {
			out = append(out, p.Name)
		}
		return out
	}

	assert.Equal(t, []string{"Coop X", "Rio Recicla"}, names(srv.do(t, http.MethodGet, "/points", nil)))
	assert.Equal(t, []string{"Coop X"}, names(srv.do(t, http.MethodGet, "/points?uf=SP&city=Osasco", nil)))
	assert.Equal(t, []string{"Rio Recicla"}, names(srv.do(t, http.MethodGet, "/points?items=2,%204", nil)))
	assert.Equal(t, []string{"Coop X"}, names(srv.do(t, http.MethodGet, "/points?lat=-23.55&lon=-46.63&radius=50", nil)))
	assert.Equal(t, []string{"Coop X", "Rio Recicla"}, names(srv.do(t, http.MethodGet, "/points?lat=-23.55&lon=-46.63&radius=1000", nil)))

	assert.Equal(t, http.StatusBadRequest, srv.do(t, http.MethodGet, "/points?items=one", nil).StatusCode)
	assert.Equal(t, http.StatusBadRequest, srv.do(t, http.MethodGet, "/points?lat=-23.55", nil).StatusCode)
	assert.Equal(t, http.StatusBadRequest, srv.do(t, http.MethodGet, "/points?lat=-23.55&lon=-46.63&radius=-1", nil).StatusCode)
}

func TestCreatePointRequiresTokenWhenConfigured(t *testing.T) {
	const secret = "s3cret"
	srv := newTestServer(t, secret)

	resp := srv.do(t, http.MethodPost, "/points", coopX())
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	token, err := middleware.IssueToken(secret, "form", time.Hour)
	require.NoError(t, err)
	resp = srv.do(t, http.MethodPost, "/points", coopX(), "Authorization", "Bearer "+token)
	assert.Equal(t, http.StatusCreated, resp.StatusCode)

	// Reads stay public.
	assert.Equal(t, http.StatusOK, srv.do(t, http.MethodGet, "/points", nil).StatusCode)
}

func TestPreflightAndUploads(t *testing.T) {
	srv := newTestServer(t, "")

	resp := srv.do(t, http.MethodOptions, "/points", nil, "Origin", "http://localhost:3000")
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Equal(t, "http://localhost:3000", resp.Header.Get("Access-Control-Allow-Origin"))

	resp = srv.do(t, http.MethodGet, "/uploads/lampadas.svg", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, "<svg/>", string(body))
}

func TestHealth(t *testing.T) {
	srv := newTestServer(t, "")

	resp := srv.do(t, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	health := decode[HealthResponse](t, resp)
	assert.Equal(t, "ok", health.Status)
	assert.Equal(t, "up", health.Store)
	assert.Equal(t, "disabled", health.Cache)
}
