package domain_test

import (
	"errors"
	"math/rand/v2"
	"strconv"
	"testing"

	"github.com/cordobacasas/casas/internal/domain"
)

func img(name string) domain.StoredImage {
	return domain.StoredImage{URL: "https://cdn.test/" + name, Key: "listings/" + name}
}

func urls(images []domain.StoredImage) []string {
	out := make([]string, len(images))
	for i, im := range images {
		out[i] = im.URL
	}
	return out
}

func assertPrimaryIsMember(t *testing.T, d *domain.ListingDraft) {
	t.Helper()
	p, ok := d.Primary()
	images := d.Images()
	if !ok {
		if len(images) != 0 {
			t.Fatalf("no primary but draft has %d images", len(images))
		}
		return
	}
	for _, im := range images {
		if im == p {
			return
		}
	}
	t.Fatalf("primary %q is not one of %v", p.URL, urls(images))
}

func TestDraft_AddImages_SetsFirstAsPrimary(t *testing.T) {
	d := domain.NewDraft()
	d.AddImages(img("a"), img("b"))

	p, ok := d.Primary()
	if !ok || p != img("a") {
		t.Fatalf("expected primary a, got %+v (set=%v)", p, ok)
	}

	// A later batch does not steal the primary.
	d.AddImages(img("c"))
	p, _ = d.Primary()
	if p != img("a") {
		t.Fatalf("expected primary to stay a, got %q", p.URL)
	}
	if got := urls(d.Images()); len(got) != 3 || got[2] != img("c").URL {
		t.Fatalf("expected images appended in order, got %v", got)
	}
}

func TestDraft_AddImages_Empty(t *testing.T) {
	d := domain.NewDraft()
	d.AddImages()
	if _, ok := d.Primary(); ok {
		t.Fatal("expected no primary after adding nothing")
	}
}

func TestDraft_SetPrimary_UnknownURLIsNoop(t *testing.T) {
	d := domain.NewDraft()
	d.AddImages(img("a"), img("b"))

	if d.SetPrimary("https://cdn.test/zzz") {
		t.Fatal("expected SetPrimary to report false for unknown url")
	}
	p, _ := d.Primary()
	if p != img("a") {
		t.Fatalf("expected primary unchanged, got %q", p.URL)
	}

	if !d.SetPrimary(img("b").URL) {
		t.Fatal("expected SetPrimary to succeed")
	}
	p, _ = d.Primary()
	if p != img("b") {
		t.Fatalf("expected primary b, got %q", p.URL)
	}
}

func TestDraft_RemovePrimary_ReassignsFirst(t *testing.T) {
	d := domain.NewDraft()
	d.AddImages(img("A"), img("B"), img("C"))
	d.SetPrimary(img("B").URL)

	removed, ok := d.RemoveImage(img("B").URL)
	if !ok || removed != img("B") {
		t.Fatalf("expected B removed, got %+v (ok=%v)", removed, ok)
	}

	got := urls(d.Images())
	if len(got) != 2 || got[0] != img("A").URL || got[1] != img("C").URL {
		t.Fatalf("expected [A C], got %v", got)
	}
	p, _ := d.Primary()
	if p != img("A") {
		t.Fatalf("expected primary A, got %q", p.URL)
	}
}

func TestDraft_RemoveBeforePrimary_KeepsPrimary(t *testing.T) {
	d := domain.NewDraft()
	d.AddImages(img("A"), img("B"), img("C"))
	d.SetPrimary(img("C").URL)

	d.RemoveImage(img("A").URL)

	p, _ := d.Primary()
	if p != img("C") {
		t.Fatalf("expected primary to remain C, got %q", p.URL)
	}
}

func TestDraft_RemoveLastImage_ClearsPrimary(t *testing.T) {
	d := domain.NewDraft()
	d.AddImages(img("A"))
	d.RemoveImage(img("A").URL)

	if _, ok := d.Primary(); ok {
		t.Fatal("expected no primary after removing the only image")
	}
	if _, ok := d.RemoveImage(img("A").URL); ok {
		t.Fatal("expected removing a missing image to report false")
	}
}

func TestDraft_PrimaryAlwaysMember(t *testing.T) {
	rng := rand.New(rand.NewPCG(7, 11))
	d := domain.NewDraft()
	next := 0

	for step := 0; step < 2000; step++ {
		images := d.Images()
		switch rng.IntN(3) {
		case 0:
			n := rng.IntN(3)
			batch := make([]domain.StoredImage, n)
			for i := range batch {
				batch[i] = img(strconv.Itoa(next))
				next++
			}
			d.AddImages(batch...)
		case 1:
			if len(images) > 0 && rng.IntN(4) > 0 {
				d.RemoveImage(images[rng.IntN(len(images))].URL)
			} else {
				d.RemoveImage("https://cdn.test/missing")
			}
		case 2:
			if len(images) > 0 && rng.IntN(4) > 0 {
				d.SetPrimary(images[rng.IntN(len(images))].URL)
			} else {
				d.SetPrimary("https://cdn.test/missing")
			}
		}
		assertPrimaryIsMember(t, d)
	}
}

func TestDraftFromListing(t *testing.T) {
	primary := "https://cdn.test/p.jpg"
	l := &domain.Listing{
		ID:           "abc",
		Title:        "Casa",
		Price:        100,
		PrimaryImage: &primary,
		Images:       []string{"https://cdn.test/x.jpg", primary},
	}

	d := domain.DraftFromListing(l)
	if d.ListingID != "abc" {
		t.Fatalf("expected listing id abc, got %q", d.ListingID)
	}
	p, ok := d.Primary()
	if !ok || p.URL != primary {
		t.Fatalf("expected primary %q, got %q", primary, p.URL)
	}
	if len(d.Uploaded()) != 0 {
		t.Fatal("expected persisted images to have no storage key")
	}
}

func TestDraftFromListing_PrimaryMissingFromImages(t *testing.T) {
	primary := "https://cdn.test/p.jpg"
	l := &domain.Listing{ID: "abc", PrimaryImage: &primary, Images: []string{"https://cdn.test/x.jpg"}}

	d := domain.DraftFromListing(l)
	got := urls(d.Images())
	if len(got) != 2 || got[0] != primary {
		t.Fatalf("expected primary prepended, got %v", got)
	}
	assertPrimaryIsMember(t, d)
}

func TestDraft_Validate(t *testing.T) {
	valid := func() *domain.ListingDraft {
		d := domain.NewDraft()
		d.Title = "Casa moderna"
		d.Address = "Av. Colón 1234"
		d.Price = 150000
		d.Type = domain.PropertyTypeHouse
		d.Operation = domain.OperationSale
		d.AddImages(img("a"))
		return d
	}

	if err := valid().Validate(); err != nil {
		t.Fatalf("expected valid draft, got %v", err)
	}

	negative := -1
	tests := []struct {
		name   string
		mutate func(d *domain.ListingDraft)
	}{
		{"no primary image", func(d *domain.ListingDraft) { d.RemoveImage(img("a").URL) }},
		{"empty title", func(d *domain.ListingDraft) { d.Title = "  " }},
		{"empty address", func(d *domain.ListingDraft) { d.Address = "" }},
		{"zero price", func(d *domain.ListingDraft) { d.Price = 0 }},
		{"unknown type", func(d *domain.ListingDraft) { d.Type = "castillo" }},
		{"missing operation", func(d *domain.ListingDraft) { d.Operation = "" }},
		{"negative bedrooms", func(d *domain.ListingDraft) { d.Bedrooms = &negative }},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			d := valid()
			tc.mutate(d)
			if err := d.Validate(); !errors.Is(err, domain.ErrValidation) {
				t.Fatalf("expected ErrValidation, got %v", err)
			}
		})
	}
}

func TestDraft_ToListing(t *testing.T) {
	d := domain.NewDraft()
	d.Title = " Depto céntrico "
	d.AddImages(img("a"), img("b"))
	d.SetPrimary(img("b").URL)

	l := d.ToListing()
	if l.Title != "Depto céntrico" {
		t.Fatalf("expected trimmed title, got %q", l.Title)
	}
	if l.PrimaryImage == nil || *l.PrimaryImage != img("b").URL {
		t.Fatalf("expected primary b, got %v", l.PrimaryImage)
	}
	if len(l.Images) != 2 || l.Images[0] != img("a").URL {
		t.Fatalf("expected images in upload order, got %v", l.Images)
	}
}

func TestDraft_CloneIsIndependent(t *testing.T) {
	d := domain.NewDraft()
	beds := 2
	d.Bedrooms = &beds
	d.AddImages(img("a"))

	c := d.Clone()
	c.AddImages(img("b"))
	*c.Bedrooms = 5

	if len(d.Images()) != 1 {
		t.Fatal("expected clone mutation not to affect original images")
	}
	if *d.Bedrooms != 2 {
		t.Fatal("expected clone mutation not to affect original fields")
	}
}
