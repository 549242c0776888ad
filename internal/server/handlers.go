package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	printkit "github.com/porticus-lab/go-printkit"
	"github.com/porticus-lab/go-printkit/tools"
)

// maxFormOverhead is the multipart framing allowed on top of the file.
const maxFormOverhead = 1 << 20

// maxImportBytes caps documents uploaded for text import.
const maxImportBytes = 20 << 20

type toolInfo struct {
	Name        string               `json:"name"`
	Title       string               `json:"title"`
	Description string               `json:"description"`
	Dir         string               `json:"dir,omitempty"`
	Fields      []printkit.FieldSpec `json:"fields"`
}

func (s *Server) handleTools(w http.ResponseWriter, r *http.Request) {
	var out []toolInfo
	for _, t := range s.tools.Tools() {
		out = append(out, toolInfo{
			Name:        t.Name,
			Title:       t.Title,
			Description: t.Description,
			Dir:         t.Dir,
			Fields:      t.Schema.Fields,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

type createRequest struct {
	Tool string `json:"tool"`
	// Key names the persistence slot; sessions with the same key share
	// their saved snapshot.
	Key string `json:"key"`
	// Share is an encoded snapshot to open instead of the saved one.
	Share string `json:"share"`
}

type sessionInfo struct {
	ID       string            `json:"id"`
	Tool     string            `json:"tool"`
	Revision uint64            `json:"revision"`
	State    printkit.State    `json:"state"`
	Restored bool              `json:"restored,omitempty"`
	Fields   printkit.Snapshot `json:"fields"`
	Prefs    printkit.Prefs    `json:"prefs,omitempty"`
}

func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	tool, err := s.tools.Lookup(req.Tool)
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}

	var shared *printkit.Snapshot
	if req.Share != "" {
		snap, err := printkit.DecodeShare(tool.Schema, req.Share)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		shared = &snap
	}

	id := uuid.NewString()
	logger := s.logger.With(zap.String("session", id))
	opts := []printkit.SessionOption{
		printkit.WithDebounce(s.cfg.Debounce),
		printkit.WithSessionLogger(logger),
		printkit.WithExporters(s.exporters),
		printkit.WithImageLimits(tool.ImageLimits(s.cfg.MaxImageBytes)),
	}
	if s.store != nil {
		opts = append(opts, printkit.WithPersister(tool.Persister(s.store, req.Key, logger)))
	}
	sess, err := tool.NewSession(opts...)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	restored := false
	if shared != nil {
		err = sess.Replace(*shared)
	} else {
		restored = sess.Restore(r.Context())
	}
	if err != nil {
		sess.Close()
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	ctx, stop := context.WithCancel(context.Background())
	sess.StartAutosave(ctx, s.cfg.Autosave)

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		stop()
		sess.Close()
		writeError(w, http.StatusServiceUnavailable, "server is shutting down")
		return
	}
	s.sessions[id] = &entry{tool: tool, session: sess, stop: stop}
	s.mu.Unlock()

	logger.Info("session opened", zap.String("tool", tool.Name), zap.Bool("restored", restored))
	info := describe(id, sess)
	info.Restored = restored
	writeJSON(w, http.StatusCreated, info)
}

func describe(id string, sess *printkit.Session) sessionInfo {
	snap := sess.Snapshot()
	return sessionInfo{
		ID:       id,
		Tool:     sess.Tool(),
		Revision: snap.Revision(),
		State:    sess.State(),
		Fields:   snap,
		Prefs:    sess.Prefs(),
	}
}

// withSession resolves the {id} URL parameter.
func (s *Server) withSession(fn func(w http.ResponseWriter, r *http.Request, e *entry)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		e, ok := s.lookup(chi.URLParam(r, "id"))
		if !ok {
			writeError(w, http.StatusNotFound, "session not found")
			return
		}
		fn(w, r, e)
	}
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request, e *entry) {
	writeJSON(w, http.StatusOK, describe(chi.URLParam(r, "id"), e.session))
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	s.mu.Lock()
	e, ok := s.sessions[id]
	delete(s.sessions, id)
	s.mu.Unlock()
	if !ok {
		writeError(w, http.StatusNotFound, "session not found")
		return
	}
	s.closeEntry(id, e)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleSetField(w http.ResponseWriter, r *http.Request, e *entry) {
	name := chi.URLParam(r, "name")
	value, err := decodeValue(e.session.Schema(), name, r.Body)
	if err != nil {
		writeErr(w, err)
		return
	}
	if err := e.session.SetField(name, value); err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"revision": e.session.Revision()})
}

// decodeValue reads a JSON field value: a string, or an array of objects
// for list fields.
func decodeValue(schema *printkit.Schema, name string, body io.Reader) (any, error) {
	f, ok := schema.Field(name)
	if !ok {
		return nil, fmt.Errorf("%w: %q", printkit.ErrUnknownField, name)
	}
	dec := json.NewDecoder(body)
	if f.Kind == printkit.KindList {
		var rows []printkit.Record
		if err := dec.Decode(&rows); err != nil {
			return nil, fmt.Errorf("%w: %q expects an array of objects", printkit.ErrFieldType, name)
		}
		if rows == nil {
			rows = []printkit.Record{}
		}
		return rows, nil
	}
	var v string
	if err := dec.Decode(&v); err != nil {
		return nil, fmt.Errorf("%w: %q expects a string", printkit.ErrFieldType, name)
	}
	return v, nil
}

func (s *Server) handleSetPref(w http.ResponseWriter, r *http.Request, e *entry) {
	var v string
	if err := json.NewDecoder(r.Body).Decode(&v); err != nil {
		writeError(w, http.StatusBadRequest, "preference value must be a string")
		return
	}
	if err := e.session.SetPref(chi.URLParam(r, "key"), v); err != nil {
		writeErr(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleImage(w http.ResponseWriter, r *http.Request, e *entry) {
	name := chi.URLParam(r, "name")
	limit := s.cfg.MaxImageBytes
	if f, ok := e.session.Schema().Field(name); ok && f.MaxBytes > limit {
		limit = f.MaxBytes
	}
	if e.tool.Limits.MaxBytes > limit {
		limit = e.tool.Limits.MaxBytes
	}
	data, _, err := readUpload(w, r, limit+maxFormOverhead)
	if err != nil {
		writeErr(w, err)
		return
	}
	if err := e.session.SetImage(name, data); err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"revision": e.session.Revision()})
}

func (s *Server) handleImport(w http.ResponseWriter, r *http.Request, e *entry) {
	data, filename, err := readUpload(w, r, maxImportBytes+maxFormOverhead)
	if err != nil {
		writeErr(w, err)
		return
	}
	if err := e.session.ImportText(chi.URLParam(r, "name"), filename, data); err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"revision": e.session.Revision()})
}

var (
	errUpload   = errors.New("upload must be multipart form data with a \"file\" part")
	errTooLarge = errors.New("upload too large")
)

// readUpload returns the "file" part of a multipart request. Bodies
// larger than limit are rejected with errTooLarge.
func readUpload(w http.ResponseWriter, r *http.Request, limit int64) ([]byte, string, error) {
	if r.ContentLength > limit {
		return nil, "", fmt.Errorf("%w: request over %d bytes", errTooLarge, limit)
	}
	r.Body = http.MaxBytesReader(w, r.Body, limit)
	if err := r.ParseMultipartForm(limit); err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			return nil, "", fmt.Errorf("%w: request over %d bytes", errTooLarge, limit)
		}
		return nil, "", errUpload
	}
	f, hdr, err := r.FormFile("file")
	if err != nil {
		return nil, "", errUpload
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		return nil, "", fmt.Errorf("reading upload: %w", err)
	}
	return data, hdr.Filename, nil
}

func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request, e *entry) {
	p, err := e.session.Preview()
	if err != nil {
		writeErr(w, err)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("X-Printkit-Revision", strconv.FormatUint(p.Revision, 10))
	io.WriteString(w, p.HTML)
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request, e *entry) {
	format, err := printkit.ParseFormat(r.URL.Query().Get("format"))
	if err != nil {
		writeErr(w, err)
		return
	}
	a, err := e.session.Export(r.Context(), format)
	if err != nil {
		writeErr(w, err)
		return
	}
	w.Header().Set("Content-Type", a.MIME())
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": a.Filename}))
	w.Header().Set("Content-Length", strconv.Itoa(a.Len()))
	a.WriteTo(w)
}

func (s *Server) handleSave(w http.ResponseWriter, r *http.Request, e *entry) {
	if err := e.session.Save(r.Context()); err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"revision": e.session.Revision(),
		"state":    e.session.State(),
	})
}

func (s *Server) handleShare(w http.ResponseWriter, r *http.Request, e *entry) {
	u, err := printkit.ShareURL(s.baseURL(r)+"/share/"+e.tool.Name, e.session.Snapshot())
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"url": u})
}

func (s *Server) baseURL(r *http.Request) string {
	if s.cfg.BaseURL != "" {
		return s.cfg.BaseURL
	}
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	return scheme + "://" + r.Host
}

// handleShareView renders a shared snapshot without opening a session.
func (s *Server) handleShareView(w http.ResponseWriter, r *http.Request) {
	tool, err := s.tools.Lookup(chi.URLParam(r, "tool"))
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	snap, err := printkit.DecodeShare(tool.Schema, r.URL.Query().Get(printkit.ShareParam))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	rnd, err := tool.Renderer()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	p, err := rnd.Render(snap)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	io.WriteString(w, p.HTML)
}

type errorBody struct {
	Error  string   `json:"error"`
	Fields []string `json:"fields,omitempty"`
}

// writeErr maps library errors to HTTP statuses.
func writeErr(w http.ResponseWriter, err error) {
	var verr *printkit.ValidationError
	if errors.As(err, &verr) {
		writeJSON(w, http.StatusUnprocessableEntity, errorBody{Error: err.Error(), Fields: verr.Fields})
		return
	}
	writeError(w, statusOf(err), err.Error())
}

func statusOf(err error) int {
	switch {
	case errors.Is(err, printkit.ErrUnknownField), errors.Is(err, tools.ErrUnknownTool):
		return http.StatusNotFound
	case errors.Is(err, printkit.ErrFieldType),
		errors.Is(err, printkit.ErrUnsupportedFormat),
		errors.Is(err, errUpload):
		return http.StatusBadRequest
	case errors.Is(err, printkit.ErrImageTooLarge), errors.Is(err, errTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, printkit.ErrUnsupportedImage), errors.Is(err, printkit.ErrUnsupportedImport):
		return http.StatusUnsupportedMediaType
	case errors.Is(err, printkit.ErrExportBusy), errors.Is(err, printkit.ErrStale):
		return http.StatusConflict
	case errors.Is(err, printkit.ErrExport):
		return http.StatusBadGateway
	case errors.Is(err, printkit.ErrClosed):
		return http.StatusGone
	case errors.Is(err, printkit.ErrNoPersister):
		return http.StatusNotImplemented
	}
	return http.StatusInternalServerError
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorBody{Error: msg})
}
