package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"path"
	"strconv"

	"github.com/nevc-media/vidstream/catalog/internal/middleware"
	"github.com/nevc-media/vidstream/catalog/internal/models"
	"github.com/nevc-media/vidstream/catalog/internal/service"
	"github.com/nevc-media/vidstream/common/httputil"
	"github.com/nevc-media/vidstream/common/logging"
)

// multipartMemory is the part of an upload held in memory before the
// remainder spools to a temporary file.
const multipartMemory = 8 << 20

type VideoHandler struct {
	service        *service.VideoService
	maxUploadBytes int64
}

func NewVideoHandler(service *service.VideoService, maxUploadBytes int64) *VideoHandler {
	return &VideoHandler{service: service, maxUploadBytes: maxUploadBytes}
}

// Publish accepts multipart/form-data with a "file" part and a "metadata"
// part holding the asset draft as JSON.
func (h *VideoHandler) Publish(w http.ResponseWriter, r *http.Request) {
	if h.maxUploadBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes)
	}
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		writeDecodeError(w, err)
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if err != nil {
		writeServiceError(w, r, service.BadRequest(service.ReasonEmptyFile))
		return
	}
	defer file.Close()

	raw, err := metadataPart(r)
	if err != nil {
		writeServiceError(w, r, service.BadRequest(service.ReasonUnparseableMetadata, err.Error()))
		return
	}
	var draft models.AssetDraft
	if err := json.Unmarshal(raw, &draft); err != nil {
		writeServiceError(w, r, service.BadRequest(service.ReasonUnparseableMetadata, err.Error()))
		return
	}

	contentType := header.Header.Get("Content-Type")
	if contentType == "" {
		contentType = mime.TypeByExtension(path.Ext(header.Filename))
	}
	upload := &service.Upload{
		FileName:    header.Filename,
		ContentType: contentType,
		Size:        header.Size,
		Content:     file,
	}

	asset, err := h.service.Publish(r.Context(), middleware.UserFromContext(r.Context()), upload, draft)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	w.Header().Set("Location", "/api/v1/videos/"+strconv.FormatInt(asset.ID, 10))
	httputil.WriteJSON(w, http.StatusCreated, asset)
}

// metadataPart reads the metadata either as a form value or as a file part,
// which is what curl -F metadata=@draft.json sends.
func metadataPart(r *http.Request) ([]byte, error) {
	if v := r.MultipartForm.Value["metadata"]; len(v) > 0 {
		return []byte(v[0]), nil
	}
	files := r.MultipartForm.File["metadata"]
	if len(files) == 0 {
		return nil, errors.New("metadata part is missing")
	}
	f, err := files[0].Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(io.LimitReader(f, httputil.MaxJSONBodyBytes))
}

func (h *VideoHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var draft models.AssetDraft
	if err := httputil.DecodeJSON(w, r, &draft); err != nil {
		writeServiceError(w, r, service.BadRequest(service.ReasonUnparseableMetadata, err.Error()))
		return
	}

	asset, err := h.service.Update(r.Context(), middleware.UserFromContext(r.Context()), id, draft)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, asset)
}

func (h *VideoHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	origin := middleware.OriginFromContext(r.Context())
	if origin == nil {
		origin = &models.Origin{IP: httputil.NewRequestContext(r, nil).IPString(), UserAgent: r.UserAgent()}
	}

	asset, err := h.service.GetAsset(r.Context(), middleware.UserFromContext(r.Context()), id, origin)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, asset)
}

func (h *VideoHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := h.service.Delete(r.Context(), middleware.UserFromContext(r.Context()), id); err != nil {
		writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Play streams the media inline. Seekable backends get Range support.
func (h *VideoHandler) Play(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	pb, err := h.service.Playback(r.Context(), middleware.UserFromContext(r.Context()), id, middleware.OriginFromContext(r.Context()))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	defer pb.Content.Close()

	contentType := pb.Asset.FileExtension
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", mime.FormatMediaType("inline", map[string]string{"filename": pb.Asset.FileName}))

	if rs, ok := pb.Content.(io.ReadSeeker); ok {
		http.ServeContent(w, r, pb.Asset.FileName, pb.ModTime, rs)
		return
	}

	if pb.Size >= 0 {
		w.Header().Set("Content-Length", strconv.FormatInt(pb.Size, 10))
	}
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, pb.Content); err != nil {
		slog.WarnContext(r.Context(), "playback interrupted", logging.AssetID(id), logging.Error(err))
	}
}

func (h *VideoHandler) List(w http.ResponseWriter, r *http.Request) {
	h.search(w, r, models.ListAll())
}

func (h *VideoHandler) SearchByTitle(w http.ResponseWriter, r *http.Request) {
	h.search(w, r, models.ByTitle(r.URL.Query().Get("title")))
}

func (h *VideoHandler) SearchByDirector(w http.ResponseWriter, r *http.Request) {
	h.search(w, r, models.ByDirector(r.URL.Query().Get("director")))
}

func (h *VideoHandler) SearchByMainActor(w http.ResponseWriter, r *http.Request) {
	h.search(w, r, models.ByMainActor(r.URL.Query().Get("mainActor")))
}

func (h *VideoHandler) SearchByGenre(w http.ResponseWriter, r *http.Request) {
	g, err := models.ParseGenre(r.URL.Query().Get("genre"))
	if err != nil {
		writeServiceError(w, r, service.BadRequest(service.ReasonValidationFailed, err.Error()))
		return
	}
	h.search(w, r, models.ByGenre(g))
}

func (h *VideoHandler) SearchByRunningTime(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	minutes, err := strconv.Atoi(q.Get("runningTime"))
	if err != nil {
		writeServiceError(w, r, service.BadRequest(service.ReasonValidationFailed, "runningTime must be an integer"))
		return
	}
	c, err := models.ParseComparator(q.Get("comparator"))
	if err != nil {
		writeServiceError(w, r, service.BadRequest(service.ReasonValidationFailed, err.Error()))
		return
	}
	h.search(w, r, models.ByRunningTime(minutes, c))
}

// search renders an empty result as 404, which is what existing clients
// expect from these routes.
func (h *VideoHandler) search(w http.ResponseWriter, r *http.Request, c models.SearchCriteria) {
	summaries, err := h.service.Search(r.Context(), middleware.UserFromContext(r.Context()), c)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	if len(summaries) == 0 {
		httputil.WriteErrorCode(w, http.StatusNotFound, "not_found", "no videos found")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, summaries)
}

func (h *VideoHandler) Impressions(w http.ResponseWriter, r *http.Request) {
	h.auditTrail(w, r, h.service.ListImpressions)
}

func (h *VideoHandler) Views(w http.ResponseWriter, r *http.Request) {
	h.auditTrail(w, r, h.service.ListViews)
}

type auditLister func(ctx context.Context, caller *models.User, assetID int64) ([]*models.AuditEvent, error)

func (h *VideoHandler) auditTrail(w http.ResponseWriter, r *http.Request, list auditLister) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	events, err := list(r.Context(), middleware.UserFromContext(r.Context()), id)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	if events == nil {
		events = []*models.AuditEvent{}
	}
	httputil.WriteJSON(w, http.StatusOK, events)
}

func pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		httputil.WriteErrorCode(w, http.StatusBadRequest, "invalid_id", "video id must be a positive integer")
		return 0, false
	}
	return id, true
}
