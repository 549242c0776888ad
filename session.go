package printkit

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"
)

// State is the persistence state of a session.
type State int

const (
	// StateIdle means nothing changed since the session was created.
	StateIdle State = iota
	// StateDirty means the document has mutations that are not saved.
	StateDirty
	// StateSaved means the stored snapshot matches the document.
	StateSaved
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateDirty:
		return "dirty"
	case StateSaved:
		return "saved"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// MarshalText implements [encoding.TextMarshaler].
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText implements [encoding.TextUnmarshaler].
func (s *State) UnmarshalText(b []byte) error {
	for _, st := range []State{StateIdle, StateDirty, StateSaved} {
		if st.String() == string(b) {
			*s = st
			return nil
		}
	}
	return fmt.Errorf("printkit: unknown state %q", b)
}

// SessionOption configures a [Session].
type SessionOption func(*Session)

// WithDebounce coalesces renders triggered by mutations within d into one
// render of the latest snapshot. Zero, the default, renders synchronously
// inside every mutation.
func WithDebounce(d time.Duration) SessionOption {
	return func(s *Session) {
		if d > 0 {
			s.debounce = d
		}
	}
}

// WithSessionLogger sets the session logger.
func WithSessionLogger(l *zap.Logger) SessionOption {
	return func(s *Session) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithPersister enables Save, Restore and autosave.
func WithPersister(p *Persister) SessionOption {
	return func(s *Session) {
		s.persister = p
	}
}

// WithExporters sets the exporters. Defaults to NewExporters(nil), which
// has no browser-backed formats.
func WithExporters(e Exporters) SessionOption {
	return func(s *Session) {
		if e != nil {
			s.exporters = e
		}
	}
}

// WithPage sets the page geometry used by PDF and SVG exports.
func WithPage(pg *PageConfig) SessionOption {
	return func(s *Session) {
		s.page = pg
	}
}

// WithSelector sets the CSS selector of the printable element.
func WithSelector(sel string) SessionOption {
	return func(s *Session) {
		s.selector = sel
	}
}

// WithTitle sets the human readable document title.
func WithTitle(title string) SessionOption {
	return func(s *Session) {
		s.title = title
	}
}

// WithFilenameFields names the fields whose values build export filenames.
func WithFilenameFields(names ...string) SessionOption {
	return func(s *Session) {
		s.filenameFields = names
	}
}

// WithImageLimits sets the constraints applied by [Session.SetImage].
func WithImageLimits(lim ImageLimits) SessionOption {
	return func(s *Session) {
		s.limits = lim
	}
}

// Session is one open document: the single source of truth for its
// fields, plus its preview, export and persistence state.
//
// All methods are safe for concurrent use. Mutations are applied in call
// order and each one increments the revision.
type Session struct {
	schema         *Schema
	renderer       Renderer
	exporters      Exporters
	persister      *Persister
	page           *PageConfig
	selector       string
	title          string
	filenameFields []string
	limits         ImageLimits
	debounce       time.Duration
	logger         *zap.Logger

	exporting *semaphore.Weighted

	mu           sync.Mutex
	snap         Snapshot
	rev          uint64
	state        State
	prefs        Prefs
	prefsGen     uint64
	timer        *time.Timer
	cancelExport context.CancelCauseFunc
	closed       bool
	done         chan struct{}
	wg           sync.WaitGroup

	pubMu   sync.Mutex
	preview Preview
	ready   bool
	subs    map[int]chan Preview
	nextSub int
}

// NewSession opens a document of schema with every field at its default
// and renders the initial preview.
func NewSession(schema *Schema, r Renderer, opts ...SessionOption) (*Session, error) {
	s := &Session{
		schema:    schema,
		renderer:  r,
		exporters: NewExporters(nil),
		title:     schema.Name,
		logger:    zap.NewNop(),
		exporting: semaphore.NewWeighted(1),
		snap:      NewSnapshot(schema, nil),
		prefs:     Prefs{},
		done:      make(chan struct{}),
		subs:      make(map[int]chan Preview),
	}
	for _, o := range opts {
		o(s)
	}
	s.logger = s.logger.With(zap.String("tool", schema.Name))

	p, err := r.Render(s.snap)
	if err != nil {
		return nil, err
	}
	s.publish(p)
	return s, nil
}

// Tool returns the schema name.
func (s *Session) Tool() string { return s.schema.Name }

// Schema returns the document schema.
func (s *Session) Schema() *Schema { return s.schema }

// Snapshot returns an immutable copy of the current document.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snap
}

// Revision returns the number of mutations applied so far.
func (s *Session) Revision() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rev
}

// State returns the persistence state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// SetField stores value in the named field. value must be a string, or a
// []Record for list fields. No content validation happens here: empty
// required fields are only reported by [Session.Export].
func (s *Session) SetField(name string, value any) error {
	if err := s.schema.Check(name, value); err != nil {
		return err
	}
	return s.mutate(func(rev uint64) Snapshot {
		return s.snap.with(name, value, rev)
	})
}

// SetFields applies several mutations in name order, one revision each.
// Nothing is applied if any name or value is invalid.
func (s *Session) SetFields(values map[string]any) error {
	names := sortedKeys(values)
	for _, name := range names {
		if err := s.schema.Check(name, values[name]); err != nil {
			return err
		}
	}
	for _, name := range names {
		if err := s.SetField(name, values[name]); err != nil {
			return err
		}
	}
	return nil
}

// Replace swaps the whole document for snap in a single revision, for
// example when opening a shared link.
func (s *Session) Replace(snap Snapshot) error {
	fields := s.schema.Normalize(snap.fields)
	return s.mutate(func(rev uint64) Snapshot {
		return Snapshot{revision: rev, fields: fields}
	})
}

// SetImage validates an uploaded image and stores it as a data URI. On
// failure the field keeps its previous value.
func (s *Session) SetImage(name string, data []byte) error {
	f, ok := s.schema.Field(name)
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownField, name)
	}
	if f.Kind != KindImage {
		return fmt.Errorf("%w: %q is not an image field", ErrFieldType, name)
	}
	lim := s.limits
	if f.MaxBytes > 0 {
		lim.MaxBytes = f.MaxBytes
	}
	uri, err := DecodeImage(data, lim)
	if err != nil {
		s.logger.Debug("image rejected", zap.String("field", name), zap.Int("bytes", len(data)), zap.Error(err))
		return err
	}
	return s.SetField(name, uri)
}

// ImportText extracts the text of an uploaded document into a text field.
func (s *Session) ImportText(name, filename string, data []byte) error {
	f, ok := s.schema.Field(name)
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownField, name)
	}
	if f.Kind == KindList || f.Kind == KindImage {
		return fmt.Errorf("%w: %q does not hold text", ErrFieldType, name)
	}
	text, err := ExtractText(filename, data)
	if err != nil {
		return err
	}
	return s.SetField(name, text)
}

// SetPref records a UI preference, such as the theme. Preferences are
// saved with the document.
func (s *Session) SetPref(key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	s.prefs[key] = value
	s.prefsGen++
	s.state = StateDirty
	return nil
}

// Prefs returns a copy of the UI preferences.
func (s *Session) Prefs() Prefs {
	s.mu.Lock()
	defer s.mu.Unlock()
	return clonePrefs(s.prefs)
}

// mutate applies next under the lock and schedules the re-render.
func (s *Session) mutate(next func(rev uint64) Snapshot) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	s.rev++
	s.snap = next(s.rev)
	s.state = StateDirty
	snap := s.snap
	if s.cancelExport != nil {
		s.cancelExport(ErrStale)
	}
	if s.debounce > 0 {
		if s.timer == nil {
			s.timer = time.AfterFunc(s.debounce, s.flush)
		} else {
			s.timer.Reset(s.debounce)
		}
		s.mu.Unlock()
		return nil
	}
	s.mu.Unlock()

	s.render(snap)
	return nil
}

// flush renders the latest snapshot once the debounce window closes.
func (s *Session) flush() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	snap := s.snap
	s.mu.Unlock()
	s.render(snap)
}

func (s *Session) render(snap Snapshot) {
	p, err := s.renderer.Render(snap)
	if err != nil {
		s.logger.Warn("render failed", zap.Uint64("revision", snap.Revision()), zap.Error(err))
		return
	}
	s.publish(p)
}

// publish makes p the current preview unless a newer one is already out.
// Subscribers hold at most one pending preview; an unread one is replaced.
func (s *Session) publish(p Preview) {
	s.pubMu.Lock()
	defer s.pubMu.Unlock()
	if s.ready && p.Revision <= s.preview.Revision {
		return
	}
	s.preview, s.ready = p, true
	for _, ch := range s.subs {
		select {
		case ch <- p:
		default:
			select {
			case <-ch:
			default:
			}
			ch <- p
		}
	}
}

// Preview returns the preview of the current revision, rendering it now
// if a debounced render is still pending.
func (s *Session) Preview() (Preview, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return Preview{}, ErrClosed
	}
	snap := s.snap
	s.mu.Unlock()

	s.pubMu.Lock()
	if s.ready && s.preview.Revision == snap.Revision() {
		p := s.preview
		s.pubMu.Unlock()
		return p, nil
	}
	s.pubMu.Unlock()

	p, err := s.renderer.Render(snap)
	if err != nil {
		return Preview{}, err
	}
	s.publish(p)
	return p, nil
}

// Subscribe returns a channel of published previews, starting with the
// current one. A slow reader misses intermediate previews but always
// receives the latest. The channel is closed by cancel or [Session.Close].
func (s *Session) Subscribe() (<-chan Preview, func()) {
	ch := make(chan Preview, 1)

	s.pubMu.Lock()
	id := s.nextSub
	s.nextSub++
	if s.subs == nil {
		close(ch)
		s.pubMu.Unlock()
		return ch, func() {}
	}
	s.subs[id] = ch
	if s.ready {
		ch <- s.preview
	}
	s.pubMu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.pubMu.Lock()
			defer s.pubMu.Unlock()
			if _, ok := s.subs[id]; ok {
				delete(s.subs, id)
				close(ch)
			}
		})
	}
}

// Export produces an artifact of the current document in format.
//
// Only one export runs at a time; a concurrent call fails with
// [ErrExportBusy]. Required fields are checked first and reported as a
// [*ValidationError]. A mutation during the export cancels it and the
// result is discarded with [ErrStale]. Exporter failures are returned as
// [*ExportError]. Export never changes the document.
func (s *Session) Export(ctx context.Context, format Format) (*Artifact, error) {
	if _, ok := s.exporters[format]; !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}
	if !s.exporting.TryAcquire(1) {
		return nil, ErrExportBusy
	}
	defer s.exporting.Release(1)

	ctx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, ErrClosed
	}
	snap := s.snap
	s.cancelExport = cancel
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.cancelExport = nil
		s.mu.Unlock()
	}()

	if missing := s.schema.Missing(snap); len(missing) > 0 {
		return nil, &ValidationError{Fields: missing}
	}

	preview, err := s.renderer.Render(snap)
	if err != nil {
		return nil, &ExportError{Format: format, Err: err}
	}

	start := time.Now()
	a, err := s.exporters.Export(ctx, Job{
		Tool:     s.schema.Name,
		Title:    s.title,
		Schema:   s.schema,
		Snapshot: snap,
		Preview:  preview,
		Format:   format,
		Page:     s.page,
		Selector: s.selector,
		Filename: s.filename(snap, format),
	})

	if cur := s.Revision(); cur != snap.Revision() {
		s.logger.Debug("export discarded",
			zap.String("format", string(format)),
			zap.Uint64("revision", snap.Revision()),
			zap.Uint64("current", cur))
		return nil, fmt.Errorf("%w: exported revision %d, document at %d", ErrStale, snap.Revision(), cur)
	}
	if err != nil {
		s.logger.Warn("export failed", zap.String("format", string(format)), zap.Error(err))
		return nil, err
	}
	s.logger.Info("exported",
		zap.String("format", string(format)),
		zap.Uint64("revision", snap.Revision()),
		zap.Int("bytes", a.Len()),
		zap.Duration("took", time.Since(start)))
	return a, nil
}

func (s *Session) filename(snap Snapshot, f Format) string {
	parts := make([]string, 0, len(s.filenameFields))
	for _, name := range s.filenameFields {
		parts = append(parts, snap.String(name))
	}
	return Filename(s.schema.Name, parts, f)
}

// Save writes the current snapshot. The state becomes Saved unless a
// mutation or preference change landed while saving.
func (s *Session) Save(ctx context.Context) error {
	if s.persister == nil {
		return ErrNoPersister
	}
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	snap, prefs, gen := s.snap, clonePrefs(s.prefs), s.prefsGen
	s.mu.Unlock()

	if err := s.persister.Save(ctx, snap, prefs); err != nil {
		return err
	}

	s.mu.Lock()
	if s.rev == snap.Revision() && s.prefsGen == gen {
		s.state = StateSaved
	}
	s.mu.Unlock()
	s.logger.Debug("saved", zap.Uint64("revision", snap.Revision()))
	return nil
}

// Restore loads the stored snapshot, if any, as a new revision. It
// reports whether a snapshot was found. Unusable snapshots are ignored.
func (s *Session) Restore(ctx context.Context) bool {
	if s.persister == nil {
		return false
	}
	loaded, prefs, ok := s.persister.Load(ctx)
	if !ok {
		return false
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return false
	}
	s.rev++
	s.snap = Snapshot{revision: s.rev, fields: loaded.fields}
	s.state = StateSaved
	if prefs != nil {
		s.prefs = clonePrefs(prefs)
	}
	snap := s.snap
	s.mu.Unlock()

	s.render(snap)
	s.logger.Debug("restored", zap.String("key", s.persister.Key()))
	return true
}

// StartAutosave saves the document every interval while it is Dirty. It
// stops when ctx is done or the session is closed.
func (s *Session) StartAutosave(ctx context.Context, interval time.Duration) {
	if s.persister == nil || interval <= 0 {
		return
	}
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.wg.Add(1)
	s.mu.Unlock()

	go func() {
		defer s.wg.Done()
		t := time.NewTicker(interval)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-s.done:
				return
			case <-t.C:
				if s.State() != StateDirty {
					continue
				}
				if err := s.Save(ctx); err != nil && !errors.Is(err, ErrClosed) {
					s.logger.Warn("autosave failed", zap.Error(err))
				}
			}
		}
	}()
}

// Close stops pending renders and autosave, cancels a running export and
// closes every subscription. Close is idempotent.
func (s *Session) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	if s.timer != nil {
		s.timer.Stop()
	}
	if s.cancelExport != nil {
		s.cancelExport(ErrClosed)
	}
	close(s.done)
	s.mu.Unlock()

	s.wg.Wait()

	s.pubMu.Lock()
	for id, ch := range s.subs {
		delete(s.subs, id)
		close(ch)
	}
	s.subs = nil
	s.pubMu.Unlock()
	return nil
}

func clonePrefs(p Prefs) Prefs {
	out := make(Prefs, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}
