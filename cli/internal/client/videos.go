package client

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

type Actor struct {
	ID       int64  `json:"id,omitempty"`
	FullName string `json:"full_name"`
}

// Draft is the editable metadata of a video.
type Draft struct {
	ID            int64    `json:"id,omitempty"`
	Title         string   `json:"title"`
	Synopsis      string   `json:"synopsis,omitempty"`
	DirectorName  string   `json:"director_name"`
	MainActor     string   `json:"main_actor"`
	Cast          []Actor  `json:"cast,omitempty"`
	Genres        []string `json:"genres,omitempty"`
	YearOfRelease int      `json:"year_of_release,omitempty"`
	RunningTime   int      `json:"running_time"`
}

type Video struct {
	ID            int64      `json:"id"`
	Title         string     `json:"title"`
	Synopsis      string     `json:"synopsis,omitempty"`
	DirectorName  string     `json:"director_name"`
	MainActor     string     `json:"main_actor"`
	Cast          []Actor    `json:"cast"`
	Genres        []string   `json:"genres"`
	YearOfRelease int        `json:"year_of_release,omitempty"`
	RunningTime   int        `json:"running_time"`
	FileName      string     `json:"file_name"`
	FileExtension string     `json:"file_extension"`
	FileSizeBytes int64      `json:"file_size_bytes"`
	PublishedAt   time.Time  `json:"published_at"`
	PublishedBy   string     `json:"published_by"`
	LastUpdatedAt *time.Time `json:"last_updated_at,omitempty"`
	LastUpdatedBy string     `json:"last_updated_by,omitempty"`
	State         string     `json:"state"`
}

type Summary struct {
	ID            int64    `json:"id"`
	Title         string   `json:"title"`
	DirectorName  string   `json:"director_name"`
	MainActor     string   `json:"main_actor"`
	YearOfRelease int      `json:"year_of_release,omitempty"`
	Genres        []string `json:"genres"`
	RunningTime   int      `json:"running_time"`
}

type AuditEvent struct {
	ID         string    `json:"id"`
	Kind       string    `json:"kind"`
	AssetID    int64     `json:"asset_id"`
	UserID     string    `json:"user_id"`
	OccurredAt time.Time `json:"occurred_at"`
	SourceIP   string    `json:"source_ip,omitempty"`
	UserAgent  string    `json:"user_agent,omitempty"`
}

// SearchField names a search route.
type SearchField string

const (
	SearchTitle       SearchField = "title"
	SearchDirector    SearchField = "director"
	SearchMainActor   SearchField = "mainActor"
	SearchGenre       SearchField = "genre"
	SearchRunningTime SearchField = "runningTime"
)

func videoPath(id int64, suffix string) string {
	return "/api/v1/videos/" + strconv.FormatInt(id, 10) + suffix
}

// Publish uploads content as fileName together with its metadata. The body
// is streamed, so content is read exactly once.
func (c *Client) Publish(ctx context.Context, fileName string, content io.Reader, draft Draft) (*Video, error) {
	meta, err := json.Marshal(draft)
	if err != nil {
		return nil, err
	}

	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)
	go func() {
		pw.CloseWithError(writeUpload(mw, fileName, content, meta))
	}()

	req, err := c.newRequest(ctx, http.MethodPost, "/api/v1/videos", pr)
	if err != nil {
		pr.Close()
		return nil, err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := c.send(req, http.StatusCreated)
	if err != nil {
		pr.Close()
		return nil, err
	}
	defer resp.Body.Close()

	var out Video
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &out, nil
}

func writeUpload(mw *multipart.Writer, fileName string, content io.Reader, meta []byte) error {
	if err := mw.WriteField("metadata", string(meta)); err != nil {
		return err
	}

	contentType := contentTypeOf(fileName)
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", mime.FormatMediaType("form-data", map[string]string{
		"name":     "file",
		"filename": filepath.Base(fileName),
	}))
	h.Set("Content-Type", contentType)

	part, err := mw.CreatePart(h)
	if err != nil {
		return err
	}
	if _, err := io.Copy(part, content); err != nil {
		return err
	}
	return mw.Close()
}

// videoTypes covers containers that system MIME tables often lack.
var videoTypes = map[string]string{
	".mp4":  "video/mp4",
	".m4v":  "video/mp4",
	".webm": "video/webm",
	".mkv":  "video/x-matroska",
	".mov":  "video/quicktime",
	".avi":  "video/x-msvideo",
}

func contentTypeOf(fileName string) string {
	ext := strings.ToLower(filepath.Ext(fileName))
	if t, ok := videoTypes[ext]; ok {
		return t
	}
	if t := mime.TypeByExtension(ext); t != "" {
		return t
	}
	return "application/octet-stream"
}

func (c *Client) GetVideo(ctx context.Context, id int64) (*Video, error) {
	var out Video
	if err := c.doJSON(ctx, http.MethodGet, videoPath(id, ""), nil, &out, http.StatusOK); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) UpdateVideo(ctx context.Context, id int64, draft Draft) (*Video, error) {
	var out Video
	if err := c.doJSON(ctx, http.MethodPut, videoPath(id, ""), draft, &out, http.StatusOK); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) DeleteVideo(ctx context.Context, id int64) error {
	return c.doJSON(ctx, http.MethodDelete, videoPath(id, ""), nil, nil, http.StatusNoContent)
}

// ListVideos returns every active video. An empty catalog is an empty
// slice, not an error.
func (c *Client) ListVideos(ctx context.Context) ([]Summary, error) {
	var out []Summary
	err := c.doJSON(ctx, http.MethodGet, "/api/v1/videos", nil, &out, http.StatusOK)
	if IsNotFound(err) {
		return []Summary{}, nil
	}
	return out, err
}

// Search runs a single-field search. comparator only applies to
// SearchRunningTime. No match is an empty slice.
func (c *Client) Search(ctx context.Context, field SearchField, value, comparator string) ([]Summary, error) {
	q := url.Values{}
	q.Set(string(field), value)
	if field == SearchRunningTime && comparator != "" {
		q.Set("comparator", comparator)
	}

	var out []Summary
	err := c.doJSON(ctx, http.MethodGet, "/api/v1/videos/search/"+string(field)+"?"+q.Encode(), nil, &out, http.StatusOK)
	if IsNotFound(err) {
		return []Summary{}, nil
	}
	return out, err
}

// Play streams the media of a video into w and returns the bytes written.
func (c *Client) Play(ctx context.Context, id int64, w io.Writer) (int64, error) {
	req, err := c.newRequest(ctx, http.MethodGet, videoPath(id, "/play"), nil)
	if err != nil {
		return 0, err
	}
	req.Header.Set("Accept", "*/*")

	resp, err := c.send(req, http.StatusOK)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	return io.Copy(w, resp.Body)
}

func (c *Client) Impressions(ctx context.Context, id int64) ([]AuditEvent, error) {
	return c.auditTrail(ctx, id, "/impressions")
}

func (c *Client) Views(ctx context.Context, id int64) ([]AuditEvent, error) {
	return c.auditTrail(ctx, id, "/views")
}

func (c *Client) auditTrail(ctx context.Context, id int64, suffix string) ([]AuditEvent, error) {
	var out []AuditEvent
	if err := c.doJSON(ctx, http.MethodGet, videoPath(id, suffix), nil, &out, http.StatusOK); err != nil {
		return nil, err
	}
	return out, nil
}
