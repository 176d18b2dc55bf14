package handler

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/starfederation/datastar-go/datastar"

	"github.com/cordobacasas/casas/internal/domain"
	"github.com/cordobacasas/casas/internal/service"
	"github.com/cordobacasas/casas/internal/view"
)

const (
	maxPrimaryUploadBytes = 20 << 20
	maxBatchUploadBytes   = 100 << 20
	multipartMemory       = 32 << 20
)

// DraftHandler serves the listing editor. Drafts live in memory until they
// are submitted or discarded.
type DraftHandler struct {
	drafts *service.DraftService
}

// NewDraftHandler creates a new DraftHandler.
func NewDraftHandler(drafts *service.DraftService) *DraftHandler {
	return &DraftHandler{drafts: drafts}
}

// HandleNew opens a draft for a new listing.
// POST /admin/drafts
func (h *DraftHandler) HandleNew(w http.ResponseWriter, r *http.Request) {
	id, _ := h.drafts.Open(r.Context())
	http.Redirect(w, r, draftPath(id), http.StatusSeeOther)
}

// HandleEdit opens a draft holding an existing listing.
// POST /admin/listings/{id}/edit
func (h *DraftHandler) HandleEdit(w http.ResponseWriter, r *http.Request) {
	id, _, err := h.drafts.OpenForEdit(r.Context(), r.PathValue("id"))
	if err != nil {
		code := errorStatus("open listing for edit", err)
		http.Error(w, userMessage(code, err), code)
		return
	}
	http.Redirect(w, r, draftPath(id), http.StatusSeeOther)
}

// HandleShow renders the editor.
// GET /admin/drafts/{id}
func (h *DraftHandler) HandleShow(w http.ResponseWriter, r *http.Request) {
	h.renderDraft(w, r, http.StatusOK, "")
}

// HandleFields saves the form fields.
// POST /admin/drafts/{id}/fields
func (h *DraftHandler) HandleFields(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if !h.parseEditorForm(w, r) {
		return
	}
	fields, err := parseDraftFields(r)
	if err == nil {
		err = h.drafts.UpdateFields(id, fields)
	}
	if err != nil {
		h.renderDraftError(w, r, "update draft fields", err)
		return
	}
	http.Redirect(w, r, draftPath(id), http.StatusSeeOther)
}

// HandlePrimaryImage uploads the primary image. Unlike additional images,
// a failure here is reported to the admin.
// POST /admin/drafts/{id}/primary-image
func (h *DraftHandler) HandlePrimaryImage(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := parseMultipart(w, r, maxPrimaryUploadBytes); err != nil {
		code := formErrorStatus(err)
		msg := "El formulario no es válido."
		if code == http.StatusRequestEntityTooLarge {
			msg = "La imagen es demasiado grande."
		}
		h.renderDraft(w, r, code, msg)
		return
	}
	if err := h.saveSubmittedFields(r, id); err != nil {
		h.renderDraftError(w, r, "update draft fields", err)
		return
	}

	file, header, err := r.FormFile("image")
	if err != nil {
		h.renderDraft(w, r, http.StatusUnprocessableEntity, "Elegí una imagen principal.")
		return
	}
	defer file.Close()

	asset, err := readAsset(file, header)
	if err != nil {
		slog.Error("read primary upload", "error", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	if _, err := h.drafts.AddPrimaryImage(r.Context(), id, asset); err != nil {
		h.renderDraftError(w, r, "upload primary image", err)
		return
	}
	http.Redirect(w, r, draftPath(id), http.StatusSeeOther)
}

// HandleImages uploads a batch of additional images and responds with a
// JSON report. Images that fail are skipped; the rest are kept.
// POST /admin/drafts/{id}/images
func (h *DraftHandler) HandleImages(w http.ResponseWriter, r *http.Request) {
	if err := parseMultipart(w, r, maxBatchUploadBytes); err != nil {
		code := formErrorStatus(err)
		if code == http.StatusRequestEntityTooLarge {
			writeError(w, code, "Las imágenes superan el tamaño permitido.")
			return
		}
		writeError(w, code, "El formulario de imágenes no es válido.")
		return
	}

	headers := r.MultipartForm.File["images"]
	if len(headers) == 0 {
		writeError(w, http.StatusUnprocessableEntity, "Elegí al menos una imagen.")
		return
	}

	assets := make([]domain.ImageAsset, 0, len(headers))
	for _, fh := range headers {
		asset, err := openAsset(fh)
		if err != nil {
			slog.Error("read batch upload", "filename", fh.Filename, "error", err)
			writeError(w, http.StatusInternalServerError, "No se pudieron leer las imágenes.")
			return
		}
		assets = append(assets, asset)
	}

	report, err := h.drafts.AddImages(r.Context(), r.PathValue("id"), assets)
	if err != nil {
		code := errorStatus("upload images", err)
		writeError(w, code, userMessage(code, err))
		return
	}
	writeJSON(w, http.StatusOK, toUploadReportDTO(report, h.drafts.MaxImages()))
}

// HandleSetPrimary marks an image as primary and re-renders the image
// section via SSE.
// POST /admin/drafts/{id}/images/primary?url=
func (h *DraftHandler) HandleSetPrimary(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	d, err := h.drafts.SetPrimary(id, r.FormValue("url"))
	if err != nil {
		code := errorStatus("set primary image", err)
		http.Error(w, userMessage(code, err), code)
		return
	}
	h.patchImages(w, r, id, d)
}

// HandleDeleteImage removes an image and re-renders the image section via
// SSE.
// POST /admin/drafts/{id}/images/delete?url=
func (h *DraftHandler) HandleDeleteImage(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	d, err := h.drafts.RemoveImage(r.Context(), id, r.FormValue("url"))
	if err != nil {
		code := errorStatus("remove image", err)
		http.Error(w, userMessage(code, err), code)
		return
	}
	h.patchImages(w, r, id, d)
}

// HandleSubmit publishes the draft. Field values posted with the request are
// saved first. Validation and save failures keep the draft so the admin can
// fix it and retry.
// POST /admin/drafts/{id}/submit
func (h *DraftHandler) HandleSubmit(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if !h.parseEditorForm(w, r) {
		return
	}
	if err := h.saveSubmittedFields(r, id); err != nil {
		h.renderDraftError(w, r, "update draft fields", err)
		return
	}
	l, err := h.drafts.Submit(r.Context(), id)
	if err != nil {
		if errors.Is(err, domain.ErrPersistence) {
			slog.Error("submit draft", "error", err)
			h.renderDraft(w, r, http.StatusInternalServerError, "No se pudo guardar la propiedad. Intentá de nuevo.")
			return
		}
		h.renderDraftError(w, r, "submit draft", err)
		return
	}
	slog.Info("listing saved", "listing_id", l.ID)
	http.Redirect(w, r, "/admin", http.StatusSeeOther)
}

// HandleDiscard throws the draft away along with its uploads.
// POST /admin/drafts/{id}/discard
func (h *DraftHandler) HandleDiscard(w http.ResponseWriter, r *http.Request) {
	if err := h.drafts.Discard(r.Context(), r.PathValue("id")); err != nil {
		code := errorStatus("discard draft", err)
		http.Error(w, userMessage(code, err), code)
		return
	}
	http.Redirect(w, r, "/admin", http.StatusSeeOther)
}

func (h *DraftHandler) patchImages(w http.ResponseWriter, r *http.Request, id string, d *domain.ListingDraft) {
	sse := datastar.NewSSE(w, r)
	sse.PatchElementTempl(
		view.ImageSection(id, d, h.drafts.MaxImages()),
		datastar.WithSelectorID(view.ImageSectionID),
		datastar.WithModeInner(),
	)
}

// renderDraftError re-renders the editor with a message derived from err.
func (h *DraftHandler) renderDraftError(w http.ResponseWriter, r *http.Request, op string, err error) {
	code := errorStatus(op, err)
	if code == http.StatusNotFound || code == http.StatusGone {
		http.Error(w, userMessage(code, err), code)
		return
	}
	h.renderDraft(w, r, code, userMessage(code, err))
}

func (h *DraftHandler) renderDraft(w http.ResponseWriter, r *http.Request, status int, notice string) {
	id := r.PathValue("id")
	d, err := h.drafts.Get(id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			w.WriteHeader(http.StatusNotFound)
			view.NotFoundPage().Render(r.Context(), w)
			return
		}
		slog.Error("get draft", "error", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	view.DraftPage(id, d, h.drafts.MaxImages(), notice).Render(r.Context(), w)
}

// parseEditorForm parses the editor form, which is multipart but may also
// arrive url-encoded. It renders the error and returns false on failure.
func (h *DraftHandler) parseEditorForm(w http.ResponseWriter, r *http.Request) bool {
	err := parseMultipart(w, r, maxPrimaryUploadBytes)
	if err == nil || errors.Is(err, http.ErrNotMultipart) {
		return true
	}
	code := formErrorStatus(err)
	msg := "El formulario no es válido."
	if code == http.StatusRequestEntityTooLarge {
		msg = "El formulario es demasiado grande."
	}
	h.renderDraft(w, r, code, msg)
	return false
}

// saveSubmittedFields applies the editor fields carried by the request, if
// any. Buttons that post the whole editor form go through here so unsaved
// input is kept.
func (h *DraftHandler) saveSubmittedFields(r *http.Request, id string) error {
	if !r.Form.Has("title") {
		return nil
	}
	fields, err := parseDraftFields(r)
	if err != nil {
		return err
	}
	return h.drafts.UpdateFields(id, fields)
}

// parseMultipart caps the body at limit and parses it as multipart.
func parseMultipart(w http.ResponseWriter, r *http.Request, limit int64) error {
	r.Body = http.MaxBytesReader(w, r.Body, limit)
	return r.ParseMultipartForm(multipartMemory)
}

// formErrorStatus maps a form parse error to 413 when the body hit its cap
// and 400 otherwise.
func formErrorStatus(err error) int {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return http.StatusRequestEntityTooLarge
	}
	return http.StatusBadRequest
}

func draftPath(id string) string {
	return "/admin/drafts/" + id
}

func openAsset(fh *multipart.FileHeader) (domain.ImageAsset, error) {
	f, err := fh.Open()
	if err != nil {
		return domain.ImageAsset{}, err
	}
	defer f.Close()
	return readAsset(f, fh)
}

// readAsset reads an uploaded file. The content type is sniffed from the
// bytes rather than trusted from the multipart header.
func readAsset(r io.Reader, fh *multipart.FileHeader) (domain.ImageAsset, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return domain.ImageAsset{}, fmt.Errorf("read %s: %w", fh.Filename, err)
	}
	return domain.ImageAsset{
		Filename:    fh.Filename,
		ContentType: http.DetectContentType(data),
		Data:        data,
	}, nil
}

// parseDraftFields reads the editor form. Blank optional numbers are left
// unset; malformed ones are rejected.
func parseDraftFields(r *http.Request) (domain.DraftFields, error) {
	f := domain.DraftFields{
		Title:     strings.TrimSpace(r.FormValue("title")),
		Address:   strings.TrimSpace(r.FormValue("address")),
		Type:      domain.PropertyType(r.FormValue("type")),
		Operation: domain.Operation(r.FormValue("operation")),
		Featured:  r.FormValue("featured") == "true",
	}
	if desc := strings.TrimSpace(r.FormValue("description")); desc != "" {
		f.Description = &desc
	}

	var errs []error
	if v := strings.TrimSpace(r.FormValue("price")); v != "" {
		p, err := strconv.ParseFloat(v, 64)
		if err != nil {
			errs = append(errs, fmt.Errorf("%w: el precio debe ser un número", domain.ErrInvalidInput))
		}
		f.Price = p
	}
	var err error
	if f.Bedrooms, err = optionalInt(r.FormValue("bedrooms"), "dormitorios"); err != nil {
		errs = append(errs, err)
	}
	if f.Bathrooms, err = optionalInt(r.FormValue("bathrooms"), "baños"); err != nil {
		errs = append(errs, err)
	}
	if v := strings.TrimSpace(r.FormValue("surface_area")); v != "" {
		s, err := strconv.ParseFloat(v, 64)
		if err != nil {
			errs = append(errs, fmt.Errorf("%w: la superficie debe ser un número", domain.ErrInvalidInput))
		} else {
			f.SurfaceArea = &s
		}
	}
	return f, errors.Join(errs...)
}

func optionalInt(v, label string) (*int, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return nil, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return nil, fmt.Errorf("%w: %s debe ser un número entero", domain.ErrInvalidInput, label)
	}
	return &n, nil
}
