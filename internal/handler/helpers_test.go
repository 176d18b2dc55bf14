package handler_test

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"mime/multipart"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/cordobacasas/casas/internal/domain"
	"github.com/cordobacasas/casas/internal/handler"
	"github.com/cordobacasas/casas/internal/imagecodec"
	"github.com/cordobacasas/casas/internal/repository/sqlite"
	"github.com/cordobacasas/casas/internal/service"
)

const (
	testJWTSecret = "test-secret-for-handler-tests-0123456789"
	testPassword  = "password123"
	testMaxImages = 3
)

type testApp struct {
	srv      *httptest.Server
	auth     *service.AuthService
	listings *service.ListingService
	drafts   *service.DraftService
}

func newTestApp(t *testing.T) *testApp {
	t.Helper()
	db, err := sqlite.New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("New DB: %v", err)
	}
	if err := db.Migrate(context.Background()); err != nil {
		t.Fatalf("Migrate: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	hash, err := service.HashPassword(testPassword, 4)
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	files := db.Files("/files/")
	app := &testApp{
		auth:     service.NewAuthService(hash, testJWTSecret, time.Hour),
		listings: service.NewListingService(db.Listings()),
	}
	uploads := service.NewUploadPipeline(imagecodec.Default(), files)
	app.drafts = service.NewDraftService(uploads, app.listings, service.WithMaxImages(testMaxImages))

	mux := http.NewServeMux()
	handler.RegisterRoutes(mux, handler.Dependencies{
		Auth:           app.auth,
		Listings:       app.listings,
		Drafts:         app.drafts,
		Files:          files,
		LoginLimiter:   service.NewKeyedLimiter(0.001, 3),
		DB:             db,
		WhatsAppNumber: "5493510000000",
	})
	app.srv = httptest.NewServer(handler.SecurityHeaders(mux))
	t.Cleanup(app.srv.Close)
	return app
}

// client returns a client with its own cookie jar that does not follow
// redirects.
func (a *testApp) client(t *testing.T) *http.Client {
	t.Helper()
	jar, err := cookiejar.New(nil)
	if err != nil {
		t.Fatalf("create cookie jar: %v", err)
	}
	return &http.Client{
		Jar: jar,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
}

func (a *testApp) login(t *testing.T, client *http.Client) {
	t.Helper()
	resp, err := client.PostForm(a.srv.URL+"/admin/login", url.Values{"password": {testPassword}})
	if err != nil {
		t.Fatalf("POST /admin/login: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusSeeOther {
		t.Fatalf("login: expected 303, got %d", resp.StatusCode)
	}
}

// newDraft opens a draft through the editor and returns its path.
func (a *testApp) newDraft(t *testing.T, client *http.Client) string {
	t.Helper()
	resp, err := client.Post(a.srv.URL+"/admin/drafts", "", nil)
	if err != nil {
		t.Fatalf("POST /admin/drafts: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusSeeOther {
		t.Fatalf("new draft: expected 303, got %d", resp.StatusCode)
	}
	loc := resp.Header.Get("Location")
	if !strings.HasPrefix(loc, "/admin/drafts/") {
		t.Fatalf("new draft: unexpected redirect %q", loc)
	}
	return loc
}

func (a *testApp) seedListing(t *testing.T, title string, mutate func(*domain.Listing)) *domain.Listing {
	t.Helper()
	primary := "/files/listings/" + strings.ReplaceAll(title, " ", "_") + ".jpg"
	l := &domain.Listing{
		Title:        title,
		Price:        150000,
		Address:      "Av. Colón 1234, Córdoba",
		Type:         domain.PropertyTypeHouse,
		Operation:    domain.OperationSale,
		PrimaryImage: &primary,
		Images:       []string{primary},
	}
	if mutate != nil {
		mutate(l)
	}
	if err := a.listings.Create(context.Background(), l); err != nil {
		t.Fatalf("Create %q: %v", title, err)
	}
	return l
}

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.NRGBA{R: uint8(x), G: uint8(y), B: 120, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}

type upload struct {
	name string
	data []byte
}

func multipartBody(t *testing.T, field string, files ...upload) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for _, f := range files {
		part, err := mw.CreateFormFile(field, f.name)
		if err != nil {
			t.Fatalf("CreateFormFile: %v", err)
		}
		part.Write(f.data)
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("close multipart writer: %v", err)
	}
	return &buf, mw.FormDataContentType()
}

func (a *testApp) postFiles(t *testing.T, client *http.Client, path, field string, files ...upload) *http.Response {
	t.Helper()
	body, contentType := multipartBody(t, field, files...)
	resp, err := client.Post(a.srv.URL+path, contentType, body)
	if err != nil {
		t.Fatalf("POST %s: %v", path, err)
	}
	return resp
}

// editorBody builds the multipart body the draft editor form posts: the
// field values plus an optional primary image.
func editorBody(t *testing.T, fields url.Values, image *upload) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for name, values := range fields {
		for _, v := range values {
			if err := mw.WriteField(name, v); err != nil {
				t.Fatalf("WriteField %s: %v", name, err)
			}
		}
	}
	if image != nil {
		part, err := mw.CreateFormFile("image", image.name)
		if err != nil {
			t.Fatalf("CreateFormFile: %v", err)
		}
		part.Write(image.data)
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("close multipart writer: %v", err)
	}
	return &buf, mw.FormDataContentType()
}

func listingFields(title string) url.Values {
	return url.Values{
		"title":       {title},
		"description": {"Luminosa, con patio."},
		"price":       {"185000"},
		"address":     {"Bv. San Juan 500, Córdoba"},
		"type":        {string(domain.PropertyTypeApartment)},
		"operation":   {string(domain.OperationSale)},
		"bedrooms":    {"2"},
	}
}
