package handlers

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/pl-listing/lister/internal/batch"
	"github.com/pl-listing/lister/internal/grouping"
	"github.com/pl-listing/lister/internal/models"
	"github.com/pl-listing/lister/internal/storage"
)

const maxMultipartMemory = 32 << 20

type submitResponse struct {
	BatchID      string `json:"batch_id"`
	Total        int    `json:"total"`
	SkippedFiles int    `json:"skipped_files"`
}

type batchListItem struct {
	BatchID   string        `json:"batch_id"`
	CreatedAt time.Time     `json:"created_at"`
	Progress  string        `json:"progress"`
	Finished  bool          `json:"finished"`
	Summary   batch.Summary `json:"summary"`
}

type batchDetail struct {
	batch.Snapshot
	Progress     string       `json:"progress"`
	SkippedFiles int          `json:"skipped_files"`
	Hints        models.Hints `json:"hints"`
}

func (h *Handler) HandleBatches(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case "GET":
		records := h.batchStore.List()
		list := make([]batchListItem, 0, len(records))
		for _, rec := range records {
			snap := rec.Tracker.Snapshot()
			list = append(list, batchListItem{
				BatchID:   rec.ID,
				CreatedAt: rec.CreatedAt,
				Progress:  snap.Summary.Progress(),
				Finished:  snap.Finished,
				Summary:   snap.Summary,
			})
		}
		h.writeJSON(w, list)
	case "POST":
		h.handleSubmit(w, r)
	default:
		h.writeError(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

func (h *Handler) handleSubmit(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUpload)
	if err := r.ParseMultipartForm(maxMultipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) || strings.Contains(err.Error(), "request body too large") {
			h.writeError(w, fmt.Sprintf("Upload too large (max %d bytes)", h.maxUpload), http.StatusRequestEntityTooLarge)
			return
		}
		h.writeError(w, "Failed to parse upload: "+err.Error(), http.StatusBadRequest)
		return
	}
	defer func() {
		if err := r.MultipartForm.RemoveAll(); err != nil {
			slog.Warn("Unable to remove multipart temp files", "err", err)
		}
	}()

	files, err := h.readUploads(r.MultipartForm.File["images"])
	if err != nil {
		h.writeError(w, err.Error(), http.StatusBadRequest)
		return
	}

	res, err := h.grouper.Group(files)
	if errors.Is(err, grouping.ErrNoImages) {
		h.writeError(w, "no images found", http.StatusBadRequest)
		return
	}
	if err != nil {
		h.writeError(w, err.Error(), http.StatusBadRequest)
		return
	}

	id := h.newID()
	rec := &storage.BatchRecord{
		ID:           id,
		Tracker:      batch.NewTracker(id, len(res.Groups)),
		Groups:       res.Groups,
		Hints:        hintsFromForm(r),
		SkippedFiles: res.Dropped(),
		CreatedAt:    time.Now(),
	}
	h.batchStore.Set(id, rec)

	select {
	case h.queue <- id:
	default:
		h.batchStore.Delete(id)
		h.writeError(w, "Too many batches waiting, try again later", http.StatusServiceUnavailable)
		return
	}

	slog.Info("Batch accepted", "batch_id", id, "products", len(res.Groups), "files", res.Accepted, "skipped_files", rec.SkippedFiles)
	h.writeJSONStatus(w, submitResponse{
		BatchID:      id,
		Total:        len(res.Groups),
		SkippedFiles: rec.SkippedFiles,
	}, http.StatusAccepted)
}

// readUploads reads each part up to one byte past the per-file limit so the
// normalizer can still report the file as oversized.
func (h *Handler) readUploads(headers []*multipart.FileHeader) ([]models.RawFile, error) {
	files := make([]models.RawFile, 0, len(headers))
	for _, fh := range headers {
		name := filepath.Base(fh.Filename)
		if !grouping.IsImageFile(name) {
			files = append(files, models.RawFile{Name: name})
			continue
		}
		f, err := fh.Open()
		if err != nil {
			return nil, fmt.Errorf("failed to open %s: %w", name, err)
		}
		data, err := io.ReadAll(io.LimitReader(f, int64(h.maxFileBytes)+1))
		f.Close()
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", name, err)
		}
		files = append(files, models.RawFile{Name: name, Data: data})
	}
	return files, nil
}

func hintsFromForm(r *http.Request) models.Hints {
	hasScale, _ := strconv.ParseBool(r.FormValue("has_scale"))
	if r.FormValue("has_scale") == "on" {
		hasScale = true
	}
	return models.Hints{
		Brand:       strings.TrimSpace(r.FormValue("brand")),
		ModelNumber: strings.TrimSpace(r.FormValue("model_number")),
		Size:        strings.TrimSpace(r.FormValue("size")),
		ProductType: strings.TrimSpace(r.FormValue("product_type")),
		Color:       strings.TrimSpace(r.FormValue("color")),
		HasScale:    hasScale,
	}
}

func (h *Handler) HandleBatchDetail(w http.ResponseWriter, r *http.Request) {
	if r.Method != "GET" {
		h.writeError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	path := strings.TrimPrefix(r.URL.Path, "/api/batches/")
	id, view, _ := strings.Cut(path, "/")

	rec, ok := h.getBatchOrError(w, id)
	if !ok {
		return
	}
	snap := rec.Tracker.Snapshot()

	switch view {
	case "":
		h.writeJSON(w, batchDetail{
			Snapshot:     snap,
			Progress:     snap.Summary.Progress(),
			SkippedFiles: rec.SkippedFiles,
			Hints:        rec.Hints,
		})
	case "table":
		h.writeJSON(w, h.projector.Project(snap))
	default:
		h.writeError(w, "Not found", http.StatusNotFound)
	}
}
