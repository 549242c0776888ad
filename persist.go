package printkit

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/porticus-lab/go-printkit/kv"
)

// Prefs are UI preferences saved alongside a document, such as the theme.
type Prefs map[string]string

// Migration upgrades the raw fields of a snapshot saved at version N to
// version N+1.
type Migration func(fields map[string]any) (map[string]any, error)

// envelope is the persisted form of a snapshot.
type envelope struct {
	Schema  string         `json:"schema"`
	Version int            `json:"version"`
	SavedAt time.Time      `json:"saved_at"`
	Fields  map[string]any `json:"fields"`
	Prefs   Prefs          `json:"prefs,omitempty"`
}

// Persister saves and restores snapshots of one schema in a [kv.Store].
//
// Every saved snapshot is tagged with the schema version. On load, older
// snapshots are passed through the registered migrations in order and
// then normalized, so fields added since are filled with defaults.
type Persister struct {
	store      kv.Store
	schema     *Schema
	key        string
	version    int
	migrations map[int]Migration
	logger     *zap.Logger
	now        func() time.Time
}

// PersistOption configures a [Persister].
type PersistOption func(*Persister)

// WithVersion sets the current schema version. Defaults to 1.
func WithVersion(v int) PersistOption {
	return func(p *Persister) {
		if v > 0 {
			p.version = v
		}
	}
}

// WithMigration registers the migration from version from to from+1.
func WithMigration(from int, m Migration) PersistOption {
	return func(p *Persister) {
		p.migrations[from] = m
	}
}

// WithPersistLogger sets the logger that reports discarded snapshots.
func WithPersistLogger(l *zap.Logger) PersistOption {
	return func(p *Persister) {
		if l != nil {
			p.logger = l
		}
	}
}

// StorageKey returns the key snapshots of schema are stored under.
// An empty name selects the default slot.
func StorageKey(schema, name string) string {
	if name == "" {
		name = "default"
	}
	return "printkit:" + schema + ":" + name
}

// NewPersister returns a persister storing schema snapshots under
// StorageKey(schema.Name, name).
func NewPersister(store kv.Store, schema *Schema, name string, opts ...PersistOption) *Persister {
	p := &Persister{
		store:      store,
		schema:     schema,
		key:        StorageKey(schema.Name, name),
		version:    1,
		migrations: make(map[int]Migration),
		logger:     zap.NewNop(),
		now:        time.Now,
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

// Key returns the storage key.
func (p *Persister) Key() string { return p.key }

// Save overwrites the stored snapshot.
func (p *Persister) Save(ctx context.Context, snap Snapshot, prefs Prefs) error {
	data, err := json.Marshal(envelope{
		Schema:  p.schema.Name,
		Version: p.version,
		SavedAt: p.now().UTC(),
		Fields:  snap.Fields(),
		Prefs:   prefs,
	})
	if err != nil {
		return fmt.Errorf("printkit: encoding snapshot: %w", err)
	}
	if err := p.store.Put(ctx, p.key, string(data)); err != nil {
		return fmt.Errorf("printkit: saving snapshot: %w", err)
	}
	return nil
}

// Load returns the stored snapshot. It fails open: a missing, corrupt,
// foreign or unmigratable snapshot yields ok == false and is logged.
func (p *Persister) Load(ctx context.Context) (snap Snapshot, prefs Prefs, ok bool) {
	raw, found, err := p.store.Get(ctx, p.key)
	if err != nil {
		p.logger.Warn("snapshot unreadable", zap.String("key", p.key), zap.Error(err))
		return Snapshot{}, nil, false
	}
	if !found {
		return Snapshot{}, nil, false
	}

	fields, prefs, err := p.decode(raw)
	if err != nil {
		p.logger.Warn("snapshot discarded", zap.String("key", p.key), zap.Error(err))
		return Snapshot{}, nil, false
	}
	return NewSnapshot(p.schema, fields), prefs, true
}

// Clear deletes the stored snapshot.
func (p *Persister) Clear(ctx context.Context) error {
	if err := p.store.Delete(ctx, p.key); err != nil {
		return fmt.Errorf("printkit: clearing snapshot: %w", err)
	}
	return nil
}

func (p *Persister) decode(raw string) (map[string]any, Prefs, error) {
	var env envelope
	if err := json.Unmarshal([]byte(raw), &env); err != nil {
		return nil, nil, fmt.Errorf("malformed snapshot: %w", err)
	}
	if env.Schema != p.schema.Name {
		return nil, nil, fmt.Errorf("snapshot belongs to schema %q", env.Schema)
	}
	if env.Fields == nil {
		return nil, nil, fmt.Errorf("snapshot has no fields")
	}
	// Snapshots written before versioning have no tag.
	if env.Version == 0 {
		env.Version = 1
	}
	if env.Version > p.version {
		return nil, nil, fmt.Errorf("snapshot version %d is newer than %d", env.Version, p.version)
	}

	fields := env.Fields
	for v := env.Version; v < p.version; v++ {
		m, ok := p.migrations[v]
		if !ok {
			continue
		}
		var err error
		if fields, err = m(fields); err != nil {
			return nil, nil, fmt.Errorf("migrating from version %d: %w", v, err)
		}
	}
	return fields, env.Prefs, nil
}
