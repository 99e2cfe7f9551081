package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vietanh2810/shopstore/internal/api/handler/v1/response"
	"github.com/vietanh2810/shopstore/internal/config"
	"github.com/vietanh2810/shopstore/internal/domain"
	"github.com/vietanh2810/shopstore/internal/pkg/jwthelper"
	"github.com/vietanh2810/shopstore/internal/repository"
	"github.com/vietanh2810/shopstore/internal/service"
)

const signingKey = "test-signing-key"

type testServer struct {
	t      *testing.T
	server *Server
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	ctx := context.Background()

	m, err := service.New(ctx, repository.NewFileProvider(filepath.Join(t.TempDir(), "shops.json")))
	require.NoError(t, err)
	t.Cleanup(func() { _ = m.Close(ctx) })

	conf := &config.AppConfig{
		API: &config.APIConfig{Environment: "development", Port: "0", JWTSigningKey: signingKey},
		Gin: &config.GinConfig{Mode: "test"},
	}
	return &testServer{t: t, server: NewServer(conf, m, nil)}
}

func token(t *testing.T, subject, role string) string {
	t.Helper()
	tok, err := jwthelper.GenerateToken([]byte(signingKey), subject, role, time.Hour)
	require.NoError(t, err)
	return tok
}

func (s *testServer) do(method, path, tok string, body any) *httptest.ResponseRecorder {
	s.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(s.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if tok != "" {
		req.Header.Set("Authorization", "Bearer "+tok)
	}
	rec := httptest.NewRecorder()
	s.server.Router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v))
	return v
}

func listingBody(tab string, stock int) map[string]any {
	return map[string]any{
		"item_type":  "ore",
		"quantity":   10,
		"buy_price":  "5",
		"sell_price": "3",
		"stock":      stock,
		"tab":        tab,
	}
}

func TestServer_Healthcheck(t *testing.T) {
	s := newTestServer(t)
	rec := s.do(http.MethodGet, "/", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok","backend":"file"}`, rec.Body.String())
}

func TestServer_ShopFlow(t *testing.T) {
	s := newTestServer(t)
	owner := uuid.New()
	ownerTok := token(t, owner.String(), jwthelper.RoleOwner)
	base := "/api/v1/shops/" + owner.String()

	rec := s.do(http.MethodPost, base+"/tabs", "", map[string]string{"name": "Main"})
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = s.do(http.MethodPost, base+"/tabs", token(t, uuid.NewString(), jwthelper.RoleOwner), map[string]string{"name": "Main"})
	require.Equal(t, http.StatusForbidden, rec.Code)

	rec = s.do(http.MethodPost, base+"/tabs", ownerTok, map[string]string{"name": "Main"})
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, []string{"Main"}, decode[response.Tabs](t, rec).Tabs)

	rec = s.do(http.MethodPost, base+"/listings", ownerTok, listingBody("Main", 10))
	require.Equal(t, http.StatusCreated, rec.Code)
	created := decode[struct {
		Listing domain.Listing `json:"listing"`
		Merged  bool           `json:"merged"`
	}](t, rec)
	assert.False(t, created.Merged)
	assert.Equal(t, 10, created.Listing.Stock)

	rec = s.do(http.MethodPost, base+"/listings?stack=true", ownerTok, listingBody("Main", 5))
	require.Equal(t, http.StatusOK, rec.Code)
	stacked := decode[struct {
		Listing domain.Listing `json:"listing"`
		Merged  bool           `json:"merged"`
	}](t, rec)
	assert.True(t, stacked.Merged)
	assert.Equal(t, created.Listing.ID, stacked.Listing.ID)
	assert.Equal(t, 15, stacked.Listing.Stock)

	listingPath := fmt.Sprintf("/api/v1/listings/%d", created.Listing.ID)
	rec = s.do(http.MethodPost, listingPath+"/decrease", ownerTok, map[string]int{"amount": 100})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 0, decode[domain.Listing](t, rec).Stock)

	rec = s.do(http.MethodGet, base+"/listings?tab=Main", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]domain.Listing](t, rec), 1)

	rec = s.do(http.MethodDelete, base+"/tabs/Main", ownerTok, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = s.do(http.MethodGet, listingPath, "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = s.do(http.MethodDelete, base+"/tabs/Main", ownerTok, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestServer_Errors(t *testing.T) {
	s := newTestServer(t)
	owner := uuid.New()
	ownerTok := token(t, owner.String(), jwthelper.RoleOwner)
	base := "/api/v1/shops/" + owner.String()

	tests := []struct {
		name   string
		method string
		path   string
		body   any
		want   int
	}{
		{name: "invalid owner id", method: http.MethodGet, path: "/api/v1/shops/not-a-uuid", want: http.StatusBadRequest},
		{name: "unknown shop", method: http.MethodGet, path: base, want: http.StatusNotFound},
		{name: "invalid listing id", method: http.MethodGet, path: "/api/v1/listings/abc", want: http.StatusBadRequest},
		{name: "unknown listing", method: http.MethodGet, path: "/api/v1/listings/42", want: http.StatusNotFound},
		{name: "missing open flag", method: http.MethodPut, path: base + "/open", body: map[string]any{}, want: http.StatusBadRequest},
		{name: "unknown tab", method: http.MethodPost, path: base + "/listings", body: listingBody("Nope", 1), want: http.StatusUnprocessableEntity},
		{name: "bad listing", method: http.MethodPost, path: base + "/listings", body: map[string]any{"item_type": "ore"}, want: http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := s.do(tt.method, tt.path, ownerTok, tt.body)
			assert.Equal(t, tt.want, rec.Code, rec.Body.String())
		})
	}

	t.Run("tab limit", func(t *testing.T) {
		for i := 0; i < domain.MaxTabs; i++ {
			rec := s.do(http.MethodPost, base+"/tabs", ownerTok, map[string]string{"name": fmt.Sprintf("T%d", i)})
			require.Equal(t, http.StatusCreated, rec.Code)
		}
		rec := s.do(http.MethodPost, base+"/tabs", ownerTok, map[string]string{"name": "one too many"})
		assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	})
}

func TestServer_Shop(t *testing.T) {
	s := newTestServer(t)
	owner := uuid.New()
	ownerTok := token(t, owner.String(), jwthelper.RoleOwner)
	base := "/api/v1/shops/" + owner.String()

	require.Equal(t, http.StatusOK, s.do(http.MethodPut, base+"/nick", ownerTok, map[string]string{"nick": "alice"}).Code)
	require.Equal(t, http.StatusOK, s.do(http.MethodPut, base+"/name", ownerTok, map[string]string{"name": "Alice's Ores"}).Code)
	require.Equal(t, http.StatusOK, s.do(http.MethodPut, base+"/icon", ownerTok, map[string]string{"icon": "diamond"}).Code)
	require.Equal(t, http.StatusOK, s.do(http.MethodPut, base+"/open", ownerTok, map[string]bool{"open": true}).Code)

	rec := s.do(http.MethodGet, base, "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	o := decode[domain.Owner](t, rec)
	assert.Equal(t, "alice", o.Nick)
	assert.Equal(t, "Alice's Ores", o.CustomName)
	assert.Equal(t, "diamond", o.Icon)
	assert.True(t, o.IsOpen)

	rec = s.do(http.MethodGet, "/api/v1/shops/open", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	open := decode[[]response.ShopSummary](t, rec)
	require.Len(t, open, 1)
	assert.Equal(t, "Alice's Ores", open[0].DisplayName)
}

func TestServer_Admin(t *testing.T) {
	s := newTestServer(t)
	admin := token(t, "console", jwthelper.RoleAdmin)

	rec := s.do(http.MethodGet, "/api/v1/admin/stats", token(t, uuid.NewString(), jwthelper.RoleOwner), nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	owner := uuid.New()
	rec = s.do(http.MethodPost, "/api/v1/shops/"+owner.String()+"/listings", admin, listingBody("", 3))
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = s.do(http.MethodPost, "/api/v1/admin/reload", admin, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	stats := decode[service.Stats](t, rec)
	assert.Equal(t, 1, stats.Listings)
	assert.Equal(t, 1, stats.Owners)
	assert.False(t, stats.Dirty)

	rec = s.do(http.MethodDelete, "/api/v1/shops/"+owner.String()+"/listings", admin, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"removed":1}`, rec.Body.String())
}
