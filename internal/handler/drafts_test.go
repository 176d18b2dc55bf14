package handler_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/cordobacasas/casas/internal/domain"
	"github.com/cordobacasas/casas/internal/handler"
)

func TestDraftImages_SetPrimaryAndDeleteViaSSE(t *testing.T) {
	app := newTestApp(t)
	client := app.client(t)
	app.login(t, client)
	draft := app.newDraft(t, client)
	id := strings.TrimPrefix(draft, "/admin/drafts/")

	resp := app.postFiles(t, client, draft+"/images", "images",
		upload{"a.png", pngBytes(t, 20, 20)},
		upload{"b.png", pngBytes(t, 20, 20)},
	)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("images: expected 200, got %d", resp.StatusCode)
	}

	d, err := app.drafts.Get(id)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	images := d.Images()
	if len(images) != 2 {
		t.Fatalf("expected 2 images, got %d", len(images))
	}
	second := images[1].URL

	resp, err = client.Post(app.srv.URL+draft+"/images/primary?url="+url.QueryEscape(second), "", nil)
	if err != nil {
		t.Fatalf("POST primary: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("primary: expected 200, got %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "text/event-stream") {
		t.Fatalf("expected SSE response, got %s", ct)
	}
	if !strings.Contains(string(body), "draft-images") {
		t.Fatalf("expected patch targeting the image section, got %s", body)
	}
	d, _ = app.drafts.Get(id)
	if p, _ := d.Primary(); p.URL != second {
		t.Fatalf("expected primary %s, got %s", second, p.URL)
	}

	// Deleting the primary promotes the remaining image and removes the file.
	resp, err = client.Post(app.srv.URL+draft+"/images/delete?url="+url.QueryEscape(second), "", nil)
	if err != nil {
		t.Fatalf("POST delete: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("delete: expected 200, got %d", resp.StatusCode)
	}
	d, _ = app.drafts.Get(id)
	if p, ok := d.Primary(); !ok || p.URL != images[0].URL {
		t.Fatalf("expected %s to become primary, got %+v", images[0].URL, p)
	}
	if code, _ := get(t, client, app.srv.URL+second); code != http.StatusNotFound {
		t.Fatalf("expected deleted file to be gone, got %d", code)
	}
}

func TestDraftImages_UndecodableFileIsSkipped(t *testing.T) {
	app := newTestApp(t)
	client := app.client(t)
	app.login(t, client)
	draft := app.newDraft(t, client)

	resp := app.postFiles(t, client, draft+"/images", "images",
		upload{"ok.png", pngBytes(t, 20, 20)},
		upload{"notes.txt", []byte("not an image")},
	)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if !strings.Contains(string(body), `"reason":"decode"`) {
		t.Fatalf("expected a decode failure in report, got %s", body)
	}
}

func TestDraftPrimaryImage_DecodeFailureIsReported(t *testing.T) {
	app := newTestApp(t)
	client := app.client(t)
	app.login(t, client)
	draft := app.newDraft(t, client)

	resp := app.postFiles(t, client, draft+"/primary-image", "image", upload{"broken.jpg", []byte("garbage")})
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", resp.StatusCode)
	}
}

func TestDraftFields_RejectsMalformedNumbers(t *testing.T) {
	app := newTestApp(t)
	client := app.client(t)
	app.login(t, client)
	draft := app.newDraft(t, client)

	resp, err := client.PostForm(app.srv.URL+draft+"/fields", url.Values{
		"title":    {"Casa"},
		"price":    {"mucho"},
		"bedrooms": {"2.5"},
	})
	if err != nil {
		t.Fatalf("POST fields: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", resp.StatusCode)
	}
}

func TestDraft_DiscardAndUnknown(t *testing.T) {
	app := newTestApp(t)
	client := app.client(t)
	app.login(t, client)
	draft := app.newDraft(t, client)

	resp, err := client.Post(app.srv.URL+draft+"/discard", "", nil)
	if err != nil {
		t.Fatalf("POST discard: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusSeeOther {
		t.Fatalf("discard: expected 303, got %d", resp.StatusCode)
	}

	if code, _ := get(t, client, app.srv.URL+draft); code != http.StatusNotFound {
		t.Fatalf("expected discarded draft to be gone, got %d", code)
	}
	if code, _ := get(t, client, app.srv.URL+"/admin/drafts/unknown"); code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown draft, got %d", code)
	}
}

func TestDraftImages_StoredURLsAreFetchable(t *testing.T) {
	app := newTestApp(t)
	client := app.client(t)
	app.login(t, client)
	draft := app.newDraft(t, client)

	resp := app.postFiles(t, client, draft+"/images", "images",
		upload{"plano #2.png", pngBytes(t, 20, 20)},
		upload{"100%.png", pngBytes(t, 20, 20)},
		upload{"que?.png", pngBytes(t, 20, 20)},
	)
	var report handler.UploadReportDTO
	err := json.NewDecoder(resp.Body).Decode(&report)
	resp.Body.Close()
	if err != nil {
		t.Fatalf("decode report: %v", err)
	}
	if len(report.Images) != 3 {
		t.Fatalf("expected 3 stored images, got %+v", report)
	}

	for _, u := range report.Images {
		resp, err := client.Get(app.srv.URL + u)
		if err != nil {
			t.Fatalf("GET %s: %v", u, err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("GET %s: expected 200, got %d", u, resp.StatusCode)
		}
		if ct := resp.Header.Get("Content-Type"); ct != "image/jpeg" {
			t.Fatalf("GET %s: expected image/jpeg, got %s", u, ct)
		}
	}
}

func TestDraftSubmit_SavesPostedFields(t *testing.T) {
	app := newTestApp(t)
	client := app.client(t)
	app.login(t, client)
	draft := app.newDraft(t, client)

	resp := app.postFiles(t, client, draft+"/primary-image", "image", upload{"frente.png", pngBytes(t, 20, 20)})
	resp.Body.Close()
	if resp.StatusCode != http.StatusSeeOther {
		t.Fatalf("primary image: expected 303, got %d", resp.StatusCode)
	}

	// The fields were never saved on their own; Publicar posts them along.
	body, contentType := editorBody(t, listingFields("Depto en Nueva Córdoba"), nil)
	resp, err := client.Post(app.srv.URL+draft+"/submit", contentType, body)
	if err != nil {
		t.Fatalf("POST submit: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusSeeOther || resp.Header.Get("Location") != "/admin" {
		t.Fatalf("submit: expected redirect to /admin, got %d %s", resp.StatusCode, resp.Header.Get("Location"))
	}

	all, err := app.listings.ListAll(context.Background())
	if err != nil {
		t.Fatalf("ListAll: %v", err)
	}
	if len(all) != 1 {
		t.Fatalf("expected 1 listing, got %d", len(all))
	}
	l := all[0]
	if l.Title != "Depto en Nueva Córdoba" || l.Price != 185000 || l.Type != domain.PropertyTypeApartment {
		t.Fatalf("posted fields were not saved: %+v", l)
	}
	if l.Bedrooms == nil || *l.Bedrooms != 2 {
		t.Fatalf("expected 2 bedrooms, got %v", l.Bedrooms)
	}
}

func TestDraftPrimaryImage_SavesPostedFields(t *testing.T) {
	app := newTestApp(t)
	client := app.client(t)
	app.login(t, client)
	draft := app.newDraft(t, client)
	id := strings.TrimPrefix(draft, "/admin/drafts/")

	body, contentType := editorBody(t, listingFields("Casa en Villa Belgrano"),
		&upload{"frente.png", pngBytes(t, 20, 20)})
	resp, err := client.Post(app.srv.URL+draft+"/primary-image", contentType, body)
	if err != nil {
		t.Fatalf("POST primary-image: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusSeeOther {
		t.Fatalf("expected 303, got %d", resp.StatusCode)
	}

	d, err := app.drafts.Get(id)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if d.Title != "Casa en Villa Belgrano" || d.Address != "Bv. San Juan 500, Córdoba" {
		t.Fatalf("posted fields were not saved: %+v", d.DraftFields)
	}
	if _, ok := d.Primary(); !ok {
		t.Fatal("expected a primary image")
	}
}

func TestDraftPrimaryImage_NoFileKeepsFields(t *testing.T) {
	app := newTestApp(t)
	client := app.client(t)
	app.login(t, client)
	draft := app.newDraft(t, client)
	id := strings.TrimPrefix(draft, "/admin/drafts/")

	body, contentType := editorBody(t, listingFields("Dúplex en Alta Córdoba"), nil)
	resp, err := client.Post(app.srv.URL+draft+"/primary-image", contentType, body)
	if err != nil {
		t.Fatalf("POST primary-image: %v", err)
	}
	page, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", resp.StatusCode)
	}
	if !strings.Contains(string(page), `value="Dúplex en Alta Córdoba"`) {
		t.Fatal("expected the re-rendered editor to keep the posted title")
	}
	if d, _ := app.drafts.Get(id); d.Title != "Dúplex en Alta Córdoba" {
		t.Fatalf("expected title to be saved, got %q", d.Title)
	}
}

func TestDraftUploads_MalformedFormIsBadRequest(t *testing.T) {
	app := newTestApp(t)
	client := app.client(t)
	app.login(t, client)
	draft := app.newDraft(t, client)

	resp, err := client.PostForm(app.srv.URL+draft+"/primary-image", url.Values{"image": {"frente.png"}})
	if err != nil {
		t.Fatalf("POST primary-image: %v", err)
	}
	page, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("primary-image: expected 400, got %d", resp.StatusCode)
	}
	if strings.Contains(string(page), "demasiado grande") {
		t.Fatal("a malformed form must not be reported as too large")
	}

	resp, err = client.Post(app.srv.URL+draft+"/images", "text/plain", strings.NewReader("hola"))
	if err != nil {
		t.Fatalf("POST images: %v", err)
	}
	var dto struct {
		Error string `json:"error"`
	}
	err = json.NewDecoder(resp.Body).Decode(&dto)
	resp.Body.Close()
	if err != nil {
		t.Fatalf("decode error body: %v", err)
	}
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("images: expected 400, got %d", resp.StatusCode)
	}
	if strings.Contains(dto.Error, "tamaño") {
		t.Fatalf("a malformed form must not be reported as too large, got %q", dto.Error)
	}
}

func TestDraftPrimaryImage_OversizedBodyIs413(t *testing.T) {
	app := newTestApp(t)
	client := app.client(t)
	app.login(t, client)
	draft := app.newDraft(t, client)

	body, contentType := multipartBody(t, "image", upload{"enorme.png", make([]byte, 21<<20)})
	req := httptest.NewRequest(http.MethodPost, app.srv.URL+draft+"/primary-image", body)
	req.Header.Set("Content-Type", contentType)
	for _, c := range client.Jar.Cookies(req.URL) {
		req.AddCookie(c)
	}

	rec := httptest.NewRecorder()
	app.srv.Config.Handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("expected 413, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "demasiado grande") {
		t.Fatal("expected the too-large message")
	}
}
