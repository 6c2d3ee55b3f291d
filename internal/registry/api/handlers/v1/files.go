package v1

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"mime"
	"net/http"
	"strconv"

	"github.com/clawdhub/clawdhub/internal/bundle"
	"github.com/clawdhub/clawdhub/internal/models"
	"github.com/clawdhub/clawdhub/internal/registry/auth"
	"github.com/clawdhub/clawdhub/internal/registry/service"
)

// writeServiceError writes a service error as a problem+json response.
func writeServiceError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	detail := err.Error()
	if status == http.StatusInternalServerError {
		log.Printf("internal error: %v", err)
		detail = "Internal server error"
	}
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(status)
	body := map[string]any{
		"title":  http.StatusText(status),
		"status": status,
		"detail": detail,
	}
	if encodeErr := json.NewEncoder(w).Encode(body); encodeErr != nil {
		log.Printf("failed to write error response: %v", encodeErr)
	}
}

// RegisterFileEndpoints registers the raw-bytes endpoints directly on the
// mux; huma's JSON envelope does not fit file and zip payloads.
func RegisterFileEndpoints(mux *http.ServeMux, registry service.RegistryService) {
	// Raw file read
	mux.HandleFunc("GET /api/v1/skills/{slug}/file", func(w http.ResponseWriter, r *http.Request) {
		slug := r.PathValue("slug")
		q := r.URL.Query()
		path := q.Get("path")
		if path == "" {
			writeServiceError(w, service.E(service.KindValidation, "path query parameter is required"))
			return
		}

		fc, err := registry.GetFile(r.Context(), slug, path, q.Get("version"), q.Get("tag"))
		if err != nil {
			writeServiceError(w, err)
			return
		}

		w.Header().Set("Content-Type", fc.ContentType)
		w.Header().Set("Content-Length", strconv.Itoa(len(fc.Content)))
		w.Header().Set("ETag", `"`+fc.SHA256+`"`)
		if fc.Archived {
			w.Header().Set("Cache-Control", "private, max-age=60")
		}
		if _, err := w.Write(fc.Content); err != nil {
			log.Printf("failed to write file response: %v", err)
		}
	})

	// Zip download
	mux.HandleFunc("GET /api/v1/download", func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		slug := q.Get("slug")
		version := q.Get("version")
		if slug == "" || version == "" {
			writeServiceError(w, service.E(service.KindValidation, "slug and version query parameters are required"))
			return
		}

		data, name, err := registry.DownloadZip(r.Context(), slug, version)
		if err != nil {
			writeServiceError(w, err)
			return
		}

		w.Header().Set("Content-Type", "application/zip")
		w.Header().Set("Content-Length", strconv.Itoa(len(data)))
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
		if _, err := w.Write(data); err != nil {
			log.Printf("failed to write zip response: %v", err)
		}
	})
}

// RegisterPublishEndpoint registers POST /api/v1/skills. The endpoint
// accepts either a JSON manifest referencing pre-uploaded blobs, or a
// multipart form with a payload field and inline file parts.
func RegisterPublishEndpoint(mux *http.ServeMux, registry service.RegistryService) {
	mux.HandleFunc("POST /api/v1/skills", func(w http.ResponseWriter, r *http.Request) {
		session := auth.SessionFrom(r.Context())
		if session == nil || session.User == nil {
			writeServiceError(w, service.E(service.KindUnauthorized, "authentication required"))
			return
		}

		r.Body = http.MaxBytesReader(w, r.Body, bundle.MaxBundleSize+1<<20)

		contentType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
		if err != nil {
			writeServiceError(w, service.E(service.KindUnsupportedMediaType, "missing or malformed Content-Type"))
			return
		}

		var req *models.PublishRequest
		var inline map[string][]byte
		switch contentType {
		case "application/json":
			req = &models.PublishRequest{}
			if err := json.NewDecoder(r.Body).Decode(req); err != nil {
				writeServiceError(w, service.E(service.KindValidation, "invalid JSON body: %v", err))
				return
			}
		case "multipart/form-data":
			req, inline, err = parseMultipartPublish(r)
			if err != nil {
				writeServiceError(w, err)
				return
			}
		default:
			writeServiceError(w, service.E(service.KindUnsupportedMediaType, "unsupported Content-Type %q", contentType))
			return
		}

		resp, err := registry.Publish(r.Context(), session.User.ID, req, inline)
		if err != nil {
			writeServiceError(w, err)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(resp); err != nil {
			log.Printf("failed to write publish response: %v", err)
		}
	})
}

// parseMultipartPublish reads the payload field and the inline file parts.
// Each file part's filename carries the bundle-relative path.
func parseMultipartPublish(r *http.Request) (*models.PublishRequest, map[string][]byte, error) {
	reader, err := r.MultipartReader()
	if err != nil {
		return nil, nil, service.E(service.KindValidation, "invalid multipart body: %v", err)
	}

	req := &models.PublishRequest{}
	inline := map[string][]byte{}
	sawPayload := false

	for {
		part, err := reader.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, nil, service.E(service.KindValidation, "invalid multipart body: %v", err)
		}

		switch part.FormName() {
		case "payload":
			if err := json.NewDecoder(part).Decode(req); err != nil {
				return nil, nil, service.E(service.KindValidation, "invalid payload JSON: %v", err)
			}
			sawPayload = true
		case "files":
			path := part.FileName()
			if path == "" {
				return nil, nil, service.E(service.KindValidation, "file part is missing a filename")
			}
			data, err := io.ReadAll(io.LimitReader(part, bundle.MaxBundleSize+1))
			if err != nil {
				return nil, nil, service.E(service.KindValidation, "failed to read file part %q: %v", path, err)
			}
			if int64(len(data)) > bundle.MaxBundleSize {
				return nil, nil, service.E(service.KindPayloadTooLarge, "file part %q exceeds the bundle limit", path)
			}
			inline[path] = data
			req.Files = append(req.Files, models.PublishFile{
				Path:        path,
				Size:        int64(len(data)),
				ContentType: part.Header.Get("Content-Type"),
			})
		}
		_ = part.Close()
	}

	if !sawPayload {
		return nil, nil, service.E(service.KindValidation, "multipart body is missing the payload field")
	}
	return req, inline, nil
}
