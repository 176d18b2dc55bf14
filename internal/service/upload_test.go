package service_test

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/cordobacasas/casas/internal/domain"
	"github.com/cordobacasas/casas/internal/imagecodec"
	"github.com/cordobacasas/casas/internal/service"
)

// memStore is an in-memory domain.ObjectStore. Uploads whose file name has a
// gate block until the gate is closed.
type memStore struct {
	mu        sync.Mutex
	objects   map[string][]byte
	deleted   []string
	completed []string
	failOn    string
	gates     map[string]chan struct{}
	started   chan string
}

func newMemStore() *memStore {
	return &memStore{objects: make(map[string][]byte), gates: make(map[string]chan struct{})}
}

func (s *memStore) Upload(ctx context.Context, key, contentType string, data []byte) error {
	name := key[strings.Index(key, "_")+1:]
	if s.started != nil {
		s.started <- name
	}
	if gate, ok := s.gates[name]; ok {
		select {
		case <-gate:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if s.failOn != "" && name == s.failOn {
		return errors.New("bucket unavailable")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[key] = data
	s.completed = append(s.completed, name)
	return nil
}

func (s *memStore) PublicURL(key string) string {
	return "https://cdn.test/" + key
}

func (s *memStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.objects, key)
	s.deleted = append(s.deleted, key)
	return nil
}

func (s *memStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.objects)
}

// passthroughEncoder accepts anything except data equal to "garbage".
type passthroughEncoder struct{}

func (passthroughEncoder) Encode(a domain.ImageAsset) (*domain.OptimizedAsset, error) {
	if string(a.Data) == "garbage" {
		return nil, fmt.Errorf("%w: %s", domain.ErrDecode, a.Filename)
	}
	name := strings.TrimSuffix(a.Filename, ".png") + ".jpg"
	return &domain.OptimizedAsset{Filename: name, ContentType: "image/jpeg", Width: 10, Height: 10, Data: a.Data}, nil
}

func assets(names ...string) []domain.ImageAsset {
	out := make([]domain.ImageAsset, len(names))
	for i, n := range names {
		out[i] = domain.ImageAsset{Filename: n + ".png", ContentType: "image/png", Data: []byte(n)}
	}
	return out
}

func TestUploadAll_PreservesInputOrder(t *testing.T) {
	store := newMemStore()
	store.started = make(chan string, 3)
	for _, n := range []string{"a.jpg", "b.jpg", "c.jpg"} {
		store.gates[n] = make(chan struct{})
	}
	pipeline := service.NewUploadPipeline(passthroughEncoder{}, store, service.WithConcurrency(3))

	type result struct {
		report *service.UploadReport
		err    error
	}
	done := make(chan result, 1)
	go func() {
		r, err := pipeline.UploadAll(context.Background(), assets("a", "b", "c"), service.UploadOptions{})
		done <- result{r, err}
	}()

	for i := 0; i < 3; i++ {
		select {
		case <-store.started:
		case <-time.After(5 * time.Second):
			t.Fatal("uploads did not start concurrently")
		}
	}

	// Complete in the order c, a, b.
	for i, n := range []string{"c.jpg", "a.jpg", "b.jpg"} {
		close(store.gates[n])
		deadline := time.Now().Add(5 * time.Second)
		for store.completedCount() < i+1 {
			if time.Now().After(deadline) {
				t.Fatalf("upload of %s did not complete", n)
			}
			time.Sleep(time.Millisecond)
		}
	}

	res := <-done
	if res.err != nil {
		t.Fatalf("UploadAll: %v", res.err)
	}
	if got := strings.Join(store.completed, ","); got != "c.jpg,a.jpg,b.jpg" {
		t.Fatalf("expected completion order c,a,b, got %s", got)
	}
	if len(res.report.Stored) != 3 {
		t.Fatalf("expected 3 stored images, got %d", len(res.report.Stored))
	}
	for i, want := range []string{"_a.jpg", "_b.jpg", "_c.jpg"} {
		img := res.report.Stored[i]
		if !strings.HasSuffix(img.Key, want) {
			t.Fatalf("stored[%d] key %q, want suffix %q", i, img.Key, want)
		}
		if img.URL != store.PublicURL(img.Key) {
			t.Fatalf("stored[%d] url %q does not match key", i, img.URL)
		}
	}
}

func (s *memStore) completedCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.completed)
}

func TestUploadAll_CapAdmitsOnlyRemainingRoom(t *testing.T) {
	store := newMemStore()
	pipeline := service.NewUploadPipeline(passthroughEncoder{}, store)

	report, err := pipeline.UploadAll(context.Background(), assets("1", "2", "3", "4", "5"),
		service.UploadOptions{MaxCount: 9, ExistingCount: 8})
	if err != nil {
		t.Fatalf("UploadAll: %v", err)
	}
	if len(report.Stored) != 1 {
		t.Fatalf("expected 1 stored image, got %d", len(report.Stored))
	}
	if !strings.HasSuffix(report.Stored[0].Key, "_1.jpg") {
		t.Fatalf("expected the first asset to be admitted, got %q", report.Stored[0].Key)
	}
	if report.Dropped != 4 || !report.CapacityExceeded() {
		t.Fatalf("expected 4 dropped, got %d", report.Dropped)
	}
	if store.count() != 1 {
		t.Fatalf("expected 1 object in store, got %d", store.count())
	}
}

func TestUploadAll_FullDraftAdmitsNothing(t *testing.T) {
	store := newMemStore()
	pipeline := service.NewUploadPipeline(passthroughEncoder{}, store)

	report, err := pipeline.UploadAll(context.Background(), assets("1", "2"),
		service.UploadOptions{MaxCount: 9, ExistingCount: 12})
	if err != nil {
		t.Fatalf("UploadAll: %v", err)
	}
	if len(report.Stored) != 0 || report.Dropped != 2 {
		t.Fatalf("expected nothing stored and 2 dropped, got %+v", report)
	}
}

func TestUploadAll_SkipsUndecodableAsset(t *testing.T) {
	store := newMemStore()
	pipeline := service.NewUploadPipeline(imagecodec.Default(), store)

	batch := []domain.ImageAsset{
		{Filename: "roto.jpg", Data: []byte("definitely not a jpeg")},
	}
	report, err := pipeline.UploadAll(context.Background(), batch, service.UploadOptions{})
	if err != nil {
		t.Fatalf("UploadAll: %v", err)
	}
	if len(report.Stored) != 0 || len(report.Failures) != 1 {
		t.Fatalf("expected one failure, got %+v", report)
	}
	f := report.Failures[0]
	if f.Index != 0 || f.Filename != "roto.jpg" || !errors.Is(f.Err, domain.ErrDecode) {
		t.Fatalf("unexpected failure %+v", f)
	}
}

func TestUploadAll_FailureDoesNotAbortBatch(t *testing.T) {
	store := newMemStore()
	store.failOn = "b.jpg"
	pipeline := service.NewUploadPipeline(passthroughEncoder{}, store)

	batch := assets("a", "b", "c", "d")
	batch[3].Data = []byte("garbage")

	report, err := pipeline.UploadAll(context.Background(), batch, service.UploadOptions{})
	if err != nil {
		t.Fatalf("UploadAll: %v", err)
	}
	if len(report.Stored) != 2 {
		t.Fatalf("expected 2 stored images, got %d", len(report.Stored))
	}
	if !strings.HasSuffix(report.Stored[0].Key, "_a.jpg") || !strings.HasSuffix(report.Stored[1].Key, "_c.jpg") {
		t.Fatalf("unexpected stored order: %+v", report.Stored)
	}
	if len(report.Failures) != 2 {
		t.Fatalf("expected 2 failures, got %d", len(report.Failures))
	}
	if !errors.Is(report.Failures[0].Err, domain.ErrUpload) || report.Failures[0].Index != 1 {
		t.Fatalf("expected upload failure at index 1, got %+v", report.Failures[0])
	}
	if !errors.Is(report.Failures[1].Err, domain.ErrDecode) || report.Failures[1].Index != 3 {
		t.Fatalf("expected decode failure at index 3, got %+v", report.Failures[1])
	}
}

func TestUploadAll_CanceledContextKeepsNothing(t *testing.T) {
	store := newMemStore()
	pipeline := service.NewUploadPipeline(passthroughEncoder{}, store)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := pipeline.UploadAll(ctx, assets("a", "b"), service.UploadOptions{})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if store.count() != 0 {
		t.Fatalf("expected no objects kept, got %d", store.count())
	}
}

func TestUploadAll_KeysAreUniqueAndSanitized(t *testing.T) {
	store := newMemStore()
	pipeline := service.NewUploadPipeline(passthroughEncoder{}, store)

	batch := []domain.ImageAsset{
		{Filename: "living  comedor.png", Data: []byte("x")},
		{Filename: "living  comedor.png", Data: []byte("y")},
	}
	report, err := pipeline.UploadAll(context.Background(), batch, service.UploadOptions{})
	if err != nil {
		t.Fatalf("UploadAll: %v", err)
	}
	if len(report.Stored) != 2 {
		t.Fatalf("expected 2 stored, got %d", len(report.Stored))
	}
	a, b := report.Stored[0].Key, report.Stored[1].Key
	if a == b {
		t.Fatalf("expected distinct keys for identical file names, got %q twice", a)
	}
	for _, k := range []string{a, b} {
		if !strings.HasPrefix(k, "listings/") || !strings.HasSuffix(k, "_living_comedor.jpg") {
			t.Fatalf("unexpected key %q", k)
		}
		if strings.ContainsAny(k, " \t") {
			t.Fatalf("key %q contains whitespace", k)
		}
	}
}

func TestUploadAll_KeysAreURLSafe(t *testing.T) {
	store := newMemStore()
	pipeline := service.NewUploadPipeline(passthroughEncoder{}, store)

	tests := []struct {
		filename string
		suffix   string
	}{
		{"plano #2.png", "_plano_2.jpg"},
		{"100%.png", "_100_.jpg"},
		{"que?.png", "_que_.jpg"},
		{"baño principal.png", "_ba_o_principal.jpg"},
		{"../../etc/passwd.png", "_.._.._etc_passwd.jpg"},
		{"###.png", "_.jpg"},
	}
	for _, tc := range tests {
		t.Run(tc.filename, func(t *testing.T) {
			img, err := pipeline.UploadRequired(context.Background(), domain.ImageAsset{Filename: tc.filename, Data: []byte("x")})
			if err != nil {
				t.Fatalf("UploadRequired: %v", err)
			}
			if !strings.HasSuffix(img.Key, tc.suffix) {
				t.Fatalf("expected key ending in %q, got %q", tc.suffix, img.Key)
			}
			if escaped := url.PathEscape(strings.TrimPrefix(img.Key, "listings/")); escaped != strings.TrimPrefix(img.Key, "listings/") {
				t.Fatalf("key %q needs escaping in a URL path", img.Key)
			}
		})
	}
}

func TestUploadRequired(t *testing.T) {
	store := newMemStore()
	pipeline := service.NewUploadPipeline(passthroughEncoder{}, store)

	img, err := pipeline.UploadRequired(context.Background(), assets("portada")[0])
	if err != nil {
		t.Fatalf("UploadRequired: %v", err)
	}
	if img.URL == "" || img.Key == "" {
		t.Fatalf("expected stored image, got %+v", img)
	}

	_, err = pipeline.UploadRequired(context.Background(), domain.ImageAsset{Filename: "x.png", Data: []byte("garbage")})
	if !errors.Is(err, domain.ErrDecode) {
		t.Fatalf("expected ErrDecode, got %v", err)
	}
}
