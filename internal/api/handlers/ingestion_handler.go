package handlers

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/quarrylabs/quarry/internal/services"
)

type IngestionHandler struct {
	submissions *services.SubmissionService
	pdf         services.PDFExtractor
	url         services.URLFetcher
}

func NewIngestionHandler(submissions *services.SubmissionService, pdf services.PDFExtractor, url services.URLFetcher) *IngestionHandler {
	return &IngestionHandler{submissions: submissions, pdf: pdf, url: url}
}

// Upload accepts a multipart file submission and returns the receipt with
// the predicted artifact URL.
func (h *IngestionHandler) Upload(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(52 << 20); err != nil {
		http.Error(w, "invalid multipart form", http.StatusBadRequest)
		return
	}

	tenantID := r.FormValue("tenant_id")
	if tenantID == "" {
		http.Error(w, "tenant_id is required", http.StatusBadRequest)
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		http.Error(w, "invalid file", http.StatusBadRequest)
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		http.Error(w, "read file", http.StatusBadRequest)
		return
	}

	contentType := header.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	receipt, err := h.submissions.SubmitFile(r.Context(), tenantID, header.Filename, data, contentType)
	if err != nil {
		log.Printf("upload: submission failed: %v", err)
		http.Error(w, fmt.Sprintf("submission failed: %v", err), http.StatusInternalServerError)
		return
	}

	writeJSON(w, receipt)
}

// SubmitURL accepts a URL submission.
func (h *IngestionHandler) SubmitURL(w http.ResponseWriter, r *http.Request) {
	tenantID := r.FormValue("tenant_id")
	rawURL := r.FormValue("url")
	if tenantID == "" || rawURL == "" {
		http.Error(w, "tenant_id and url are required", http.StatusBadRequest)
		return
	}

	receipt, err := h.submissions.SubmitURL(r.Context(), tenantID, rawURL)
	if err != nil {
		log.Printf("url submit: submission failed: %v", err)
		http.Error(w, fmt.Sprintf("submission failed: %v", err), http.StatusInternalServerError)
		return
	}

	writeJSON(w, receipt)
}

// ExtractDirectFile runs the PDF fallback chain synchronously, without
// touching the pipeline. Debugging aid.
func (h *IngestionHandler) ExtractDirectFile(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(52 << 20); err != nil {
		http.Error(w, "invalid multipart form", http.StatusBadRequest)
		return
	}

	file, _, err := r.FormFile("file")
	if err != nil {
		http.Error(w, "invalid file", http.StatusBadRequest)
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		http.Error(w, "read file", http.StatusBadRequest)
		return
	}

	writeJSON(w, map[string]any{"structured_text": h.pdf.Extract(data)})
}

// ExtractDirectURL runs the URL fallback chain synchronously.
func (h *IngestionHandler) ExtractDirectURL(w http.ResponseWriter, r *http.Request) {
	rawURL := r.FormValue("url")
	if rawURL == "" {
		http.Error(w, "url is required", http.StatusBadRequest)
		return
	}

	writeJSON(w, h.url.Extract(r.Context(), rawURL))
}

// ListDocuments returns the registry rows for one tenant.
func (h *IngestionHandler) ListDocuments(w http.ResponseWriter, r *http.Request) {
	tenantID := r.URL.Query().Get("tenant_id")
	if tenantID == "" {
		http.Error(w, "tenant_id is required", http.StatusBadRequest)
		return
	}

	docs, err := h.submissions.ListByTenant(r.Context(), tenantID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	writeJSON(w, docs)
}

// GetDocument returns one registry row so submitters can watch the document
// move through the pipeline statuses.
func (h *IngestionHandler) GetDocument(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	doc, err := h.submissions.GetByID(r.Context(), id)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if doc == nil {
		http.Error(w, "document not found", http.StatusNotFound)
		return
	}

	writeJSON(w, doc)
}

// DownloadArtifact streams the extracted artifact straight from object
// storage without buffering it in memory.
func (h *IngestionHandler) DownloadArtifact(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	rc, doc, err := h.submissions.OpenArtifact(r.Context(), id)
	if err != nil {
		if doc != nil {
			// row exists but extraction has not written the artifact yet
			http.Error(w, fmt.Sprintf("artifact not available (status %s)", doc.Status), http.StatusConflict)
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if doc == nil {
		http.Error(w, "document not found", http.StatusNotFound)
		return
	}
	defer rc.Close()

	w.Header().Set("Content-Type", "application/json")
	if _, err := io.Copy(w, rc); err != nil {
		log.Printf("stream artifact %s: %v", id, err)
	}
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("write response: %v", err)
	}
}
