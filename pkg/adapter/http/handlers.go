package http

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"
	"path"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/marmos91/dittobrowse/internal/logger"
	"github.com/marmos91/dittobrowse/pkg/listing"
	"github.com/marmos91/dittobrowse/pkg/resolver"
)

var (
	//go:embed icons/file.svg
	fileIcon []byte

	//go:embed icons/folder.svg
	folderIcon []byte
)

// Handler returns the routing table. It reads the registry at request time,
// so it may be built before SetRegistry.
func (a *HTTPAdapter) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.Handle("GET /api/list", a.instrument(routeList, a.handleList))
	mux.Handle("GET /api/list/{path...}", a.instrument(routeList, a.handleList))
	mux.Handle("GET /file/{path...}", a.instrument(routeFile, a.handleFile))
	mux.Handle("GET /thumb/{path...}", a.instrument(routeThumb, a.handleThumb))
	mux.Handle("GET /thumb", a.instrument(routeIcon, func(w http.ResponseWriter, r *http.Request) {
		serveIcon(w, fileIcon, true)
	}))
	mux.Handle("GET /thumbdir", a.instrument(routeIcon, func(w http.ResponseWriter, r *http.Request) {
		serveIcon(w, folderIcon, true)
	}))
	mux.Handle("/", a.instrument(routeUnknown, func(w http.ResponseWriter, r *http.Request) {
		notFound(w, r, errors.New("no route"))
	}))

	return mux
}

// listEntry is the JSON form of a listing.Entry.
type listEntry struct {
	Name string `json:"name"`

	// LastModified is RFC 3339 in UTC with second precision. It is omitted
	// only for entries kept without a modification time.
	LastModified string `json:"last_modified,omitempty"`

	Size *uint64 `json:"size,omitempty"`

	// URL downloads a file or lists a directory.
	URL string `json:"url"`

	// ThumbURL is the thumbnail for a thumbable file, otherwise a static
	// icon.
	ThumbURL string `json:"thumb_url"`
}

type listResponse struct {
	Files       []listEntry `json:"files"`
	Directories []listEntry `json:"directories"`
	Truncated   bool        `json:"truncated"`
}

// escapePath escapes every element of a slash-separated relative path.
func escapePath(rel string) string {
	parts := strings.Split(rel, "/")
	for i, p := range parts {
		parts[i] = url.PathEscape(p)
	}
	return strings.Join(parts, "/")
}

func lastModified(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

func newListResponse(l *listing.Listing) listResponse {
	resp := listResponse{
		Files:       make([]listEntry, 0, len(l.Files)),
		Directories: make([]listEntry, 0, len(l.Directories)),
		Truncated:   l.Truncated,
	}

	for _, f := range l.Files {
		size := f.Size
		e := listEntry{
			Name:         f.Name,
			LastModified: lastModified(f.Modified),
			Size:         &size,
			URL:          "/file/" + escapePath(f.Rel),
			ThumbURL:     "/thumb",
		}
		if f.Thumbable {
			e.ThumbURL = "/thumb/" + escapePath(f.Rel)
		}
		resp.Files = append(resp.Files, e)
	}

	for _, d := range l.Directories {
		resp.Directories = append(resp.Directories, listEntry{
			Name:         d.Name,
			LastModified: lastModified(d.Modified),
			URL:          "/api/list/" + escapePath(d.Rel),
			ThumbURL:     "/thumbdir",
		})
	}
	return resp
}

// handleList serves GET /api/list/{path...}. An empty path lists the root.
func (a *HTTPAdapter) handleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	dir, err := a.registry.Resolver().Resolve(ctx, r.PathValue("path"))
	if err != nil {
		notFound(w, r, err)
		return
	}

	l, err := a.registry.Lister().List(ctx, dir)
	if err != nil {
		notFound(w, r, err)
		return
	}

	body, err := json.Marshal(newListResponse(l))
	if err != nil {
		logger.Error("Failed to encode listing of %q: %v", dir.Rel(), err)
		notFound(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Length", strconv.Itoa(len(body)))
	_, _ = w.Write(body)
}

// handleFile serves GET /file/{path...}: the bytes of a regular file, with
// a content type guessed from its name.
func (a *HTTPAdapter) handleFile(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	fsys := a.registry.VFS()

	key, err := a.registry.Resolver().Resolve(ctx, r.PathValue("path"))
	if err != nil {
		notFound(w, r, err)
		return
	}

	rec, err := fsys.Stat(ctx, key.String())
	if err != nil {
		notFound(w, r, err)
		return
	}
	if !rec.IsFile() {
		notFound(w, r, errors.New("not a regular file"))
		return
	}

	size := int64(-1)
	if rec.Size != nil {
		size = int64(*rec.Size)
	}

	rc, err := fsys.OpenForRead(ctx, key.String())
	if err != nil {
		notFound(w, r, err)
		return
	}
	defer func() { _ = rc.Close() }()

	ct := typeByName(key.Base())
	var body io.Reader = rc

	// Small files without a known type are shown inline when they are text.
	if ct == octetStream && size >= 0 && size < attachmentThreshold {
		head, err := io.ReadAll(io.LimitReader(rc, attachmentThreshold))
		if err != nil {
			notFound(w, r, err)
			return
		}
		if utf8.Valid(head) {
			ct = textPlain
		}
		size = int64(len(head))
		body = bytes.NewReader(head)
	}

	ct, attachment := downloadHeaders(ct, size)

	h := w.Header()
	h.Set("Content-Type", ct)
	h.Set("X-Content-Type-Options", "nosniff")
	if attachment {
		h.Set("Content-Disposition", "attachment")
	}
	if size >= 0 {
		h.Set("Content-Length", strconv.FormatInt(size, 10))
	}

	if _, err := io.Copy(w, body); err != nil {
		// Headers are gone; the client sees a short body.
		logger.Debug("Download of %q aborted: %v (request_id=%s)", key.Rel(), err, RequestID(ctx))
	}
}

// handleThumb serves GET /thumb/{path...}.
//
// A path that does not resolve is a 404. A path that resolves but cannot be
// stat'd gets the file icon, a directory gets the folder icon, and any other
// non-file is a 404. Files whose requested name is not an image get the file
// icon. The name is taken from the request, not the resolved target, so a
// symlink listed as an image is thumbnailed like the listing promised. For
// the rest the thumbnail service is asked; when it cannot produce a
// thumbnail the file icon is served instead.
func (a *HTTPAdapter) handleThumb(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	key, err := a.registry.Resolver().Resolve(ctx, r.PathValue("path"))
	if err != nil {
		notFound(w, r, err)
		return
	}

	rec, err := a.registry.VFS().Stat(ctx, key.String())
	if err != nil {
		logger.Debug("Thumbnail stat %q failed, serving icon: %v", key.Rel(), err)
		serveIcon(w, fileIcon, false)
		return
	}
	if rec.IsDir() {
		serveIcon(w, folderIcon, false)
		return
	}
	if !rec.IsFile() {
		notFound(w, r, errors.New("not a file or directory"))
		return
	}
	if !listing.IsThumbable(path.Base(r.PathValue("path"))) {
		serveIcon(w, fileIcon, false)
		return
	}

	entry, err := a.registry.Thumbnails().Thumbnail(ctx, key)
	if err != nil {
		if !errors.Is(err, resolver.ErrNotFound) {
			logger.Debug("Thumbnail for %q unavailable, serving icon: %v (request_id=%s)",
				key.Rel(), err, RequestID(ctx))
		}
		serveIcon(w, fileIcon, false)
		return
	}

	h := w.Header()
	h.Set("Last-Modified", entry.Inserted.UTC().Format(http.TimeFormat))
	h.Set("Cache-Control", "public, no-cache")

	if notModified(r, entry.Inserted) {
		w.WriteHeader(http.StatusNotModified)
		return
	}

	h.Set("Content-Type", "image/jpeg")
	h.Set("Content-Length", strconv.Itoa(len(entry.Data)))
	_, _ = w.Write(entry.Data)
}

// notModified reports whether the request's If-Modified-Since covers t.
// HTTP dates carry whole seconds, so t is truncated before comparing.
func notModified(r *http.Request, t time.Time) bool {
	ims := r.Header.Get("If-Modified-Since")
	if ims == "" {
		return false
	}
	since, err := http.ParseTime(ims)
	if err != nil {
		return false
	}
	return !t.Truncate(time.Second).After(since)
}

// serveIcon writes an SVG icon. Static icon routes may be cached by clients
// for an hour; fallbacks are not, so a later thumbnail can replace them.
func serveIcon(w http.ResponseWriter, icon []byte, static bool) {
	h := w.Header()
	h.Set("Content-Type", "image/svg+xml")
	h.Set("Content-Length", strconv.Itoa(len(icon)))
	if static {
		h.Set("Cache-Control", "public, max-age=3600")
	} else {
		h.Set("Cache-Control", "no-cache")
	}
	_, _ = w.Write(icon)
}
