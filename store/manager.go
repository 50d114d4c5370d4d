package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/doug-martin/goqu/v9"
	"github.com/puzpuzpuz/xsync/v3"
	"github.com/rs/zerolog/log"
)

// DefaultProjectName is used when no project is selected and none is active
const DefaultProjectName = "default"

const activeProjectKey = "active_project"

// Project is a registry entry describing one project database
type Project struct {
	Name         string     `json:"name"`
	DBPath       string     `json:"db_path"`
	CreatedAt    time.Time  `json:"created_at"`
	CreatedBy    string     `json:"created_by,omitempty"`
	LastOpened   *time.Time `json:"last_opened,omitempty"`
	LastModified *time.Time `json:"last_modified,omitempty"`
}

// Manager owns the project registry and the set of open project stores.
// Stores open lazily on first access and stay open until eviction or
// Close. Hooks let the notification layer attach a change detector to
// every opened store without the store package knowing about it.
type Manager struct {
	dataDir  string
	registry *sql.DB
	stores   *xsync.MapOf[string, *Store]

	onOpen  func(name string, s *Store)
	onEvict func(name string)

	openMu     sync.Mutex
	statsCache *statsCache
}

// NewManager opens the registry database under dataDir
func NewManager(dataDir string) (*Manager, error) {
	if err := os.MkdirAll(filepath.Join(dataDir, "projects"), 0755); err != nil {
		return nil, fmt.Errorf("failed to create projects directory: %w", err)
	}

	registryPath := filepath.Join(dataDir, "projects.db")
	dsn := fmt.Sprintf("file:%s?_journal_mode=WAL&_busy_timeout=5000", registryPath)
	registry, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open project registry: %w", err)
	}
	registry.SetMaxOpenConns(1)

	if err := ensureRegistrySchema(registry); err != nil {
		registry.Close()
		return nil, fmt.Errorf("failed to ensure registry schema: %w", err)
	}

	m := &Manager{
		dataDir:    dataDir,
		registry:   registry,
		stores:     xsync.NewMapOf[string, *Store](),
		statsCache: newStatsCache(),
	}

	log.Info().Str("data_dir", dataDir).Msg("Project manager initialized")
	return m, nil
}

// OnOpen registers a hook called once per project store after it opens.
// Must be set before the manager starts serving requests.
func (m *Manager) OnOpen(fn func(name string, s *Store)) {
	m.onOpen = fn
}

// OnEvict registers a hook called when a project store is closed
func (m *Manager) OnEvict(fn func(name string)) {
	m.onEvict = fn
}

// Resolve maps an empty project name to the active project, falling
// back to the default project.
func (m *Manager) Resolve(ctx context.Context, name string) (string, error) {
	if name != "" {
		return name, nil
	}
	active, err := m.ActiveProjectName(ctx)
	if err != nil {
		return "", err
	}
	if active != "" {
		return active, nil
	}
	return DefaultProjectName, nil
}

// Get returns the open store for a project, opening it on first use.
// The default project is created on demand; any other missing project
// is ErrProjectNotFound.
func (m *Manager) Get(ctx context.Context, name string) (*Store, error) {
	name, err := m.Resolve(ctx, name)
	if err != nil {
		return nil, err
	}

	if s, ok := m.stores.Load(name); ok {
		return s, nil
	}

	m.openMu.Lock()
	defer m.openMu.Unlock()
	if s, ok := m.stores.Load(name); ok {
		return s, nil
	}

	project, err := m.GetProject(ctx, name)
	if errors.Is(err, ErrProjectNotFound) && name == DefaultProjectName {
		project, err = m.CreateProject(ctx, name, "")
	}
	if err != nil {
		return nil, err
	}

	s, err := Open(project.DBPath, name)
	if err != nil {
		return nil, err
	}
	m.stores.Store(name, s)

	if err := m.touchLastOpened(ctx, name); err != nil {
		log.Warn().Err(err).Str("project", name).Msg("Failed to update last_opened")
	}
	if m.onOpen != nil {
		m.onOpen(name, s)
	}
	return s, nil
}

// ListProjects returns all registry entries in name order
func (m *Manager) ListProjects(ctx context.Context) ([]Project, error) {
	query, args, err := dialect.From("project").
		Select("name", "db_path", "created_at", "created_by", "last_opened", "last_modified").
		Order(goqu.C("name").Asc()).
		ToSQL()
	if err != nil {
		return nil, err
	}

	rows, err := m.registry.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list projects: %w", err)
	}
	defer rows.Close()

	var projects []Project
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, err
		}
		projects = append(projects, p)
	}
	return projects, rows.Err()
}

// GetProject returns one registry entry
func (m *Manager) GetProject(ctx context.Context, name string) (*Project, error) {
	query, args, err := dialect.From("project").
		Select("name", "db_path", "created_at", "created_by", "last_opened", "last_modified").
		Where(goqu.C("name").Eq(name)).
		ToSQL()
	if err != nil {
		return nil, err
	}

	rows, err := m.registry.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %s", ErrProjectNotFound, name)
	}
	p, err := scanProject(rows)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// CreateProject registers a new project and initializes its database
func (m *Manager) CreateProject(ctx context.Context, name, createdBy string) (*Project, error) {
	if err := validateProjectName(name); err != nil {
		return nil, err
	}
	if _, err := m.GetProject(ctx, name); err == nil {
		return nil, fmt.Errorf("%w: %s", ErrProjectExists, name)
	} else if !errors.Is(err, ErrProjectNotFound) {
		return nil, err
	}

	dbPath := filepath.Join(m.dataDir, "projects", name+".db")
	query, args, err := dialect.Insert("project").
		Rows(goqu.Record{
			"name":       name,
			"db_path":    dbPath,
			"created_at": nowString(),
			"created_by": createdBy,
		}).
		ToSQL()
	if err != nil {
		return nil, err
	}
	if _, err := m.registry.ExecContext(ctx, query, args...); err != nil {
		return nil, fmt.Errorf("failed to create project %q: %w", name, err)
	}

	// Initialize schema eagerly so the project is usable immediately
	store, err := Open(dbPath, name)
	if err != nil {
		return nil, err
	}
	store.Close()

	log.Info().Str("project", name).Msg("Project created")
	return m.GetProject(ctx, name)
}

// RenameProject renames a registry entry and moves its database file.
// The open store (if any) is evicted first.
func (m *Manager) RenameProject(ctx context.Context, oldName, newName string) (*Project, error) {
	if err := validateProjectName(newName); err != nil {
		return nil, err
	}
	project, err := m.GetProject(ctx, oldName)
	if err != nil {
		return nil, err
	}
	if _, err := m.GetProject(ctx, newName); err == nil {
		return nil, fmt.Errorf("%w: %s", ErrProjectExists, newName)
	} else if !errors.Is(err, ErrProjectNotFound) {
		return nil, err
	}

	m.evict(oldName)

	newPath := filepath.Join(m.dataDir, "projects", newName+".db")
	if err := os.Rename(project.DBPath, newPath); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to move project database: %w", err)
	}

	query, args, err := dialect.Update("project").
		Set(goqu.Record{"name": newName, "db_path": newPath}).
		Where(goqu.C("name").Eq(oldName)).
		ToSQL()
	if err != nil {
		return nil, err
	}
	if _, err := m.registry.ExecContext(ctx, query, args...); err != nil {
		return nil, fmt.Errorf("failed to rename project: %w", err)
	}

	// Keep the active pointer in sync
	if active, err := m.ActiveProjectName(ctx); err == nil && active == oldName {
		if err := m.SetActiveProject(ctx, newName); err != nil {
			log.Warn().Err(err).Msg("Failed to update active project after rename")
		}
	}

	log.Info().Str("from", oldName).Str("to", newName).Msg("Project renamed")
	return m.GetProject(ctx, newName)
}

// DeleteProject removes a project, its open store and its database files
func (m *Manager) DeleteProject(ctx context.Context, name string) error {
	project, err := m.GetProject(ctx, name)
	if err != nil {
		return err
	}

	m.evict(name)

	query, args, err := dialect.Delete("project").
		Where(goqu.C("name").Eq(name)).
		ToSQL()
	if err != nil {
		return err
	}
	if _, err := m.registry.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to delete project %q: %w", name, err)
	}

	if active, err := m.ActiveProjectName(ctx); err == nil && active == name {
		if err := m.SetActiveProject(ctx, ""); err != nil {
			log.Warn().Err(err).Msg("Failed to clear active project after delete")
		}
	}

	// Best effort removal of the database and its WAL siblings
	for _, suffix := range []string{"", "-wal", "-shm"} {
		os.Remove(project.DBPath + suffix)
	}

	log.Info().Str("project", name).Msg("Project deleted")
	return nil
}

// ActiveProjectName returns the currently active project, or "" if none
func (m *Manager) ActiveProjectName(ctx context.Context) (string, error) {
	var value string
	err := m.registry.QueryRowContext(ctx,
		"SELECT value FROM settings WHERE key = ?", activeProjectKey).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return value, nil
}

// SetActiveProject sets or clears the active project pointer
func (m *Manager) SetActiveProject(ctx context.Context, name string) error {
	if name == "" {
		_, err := m.registry.ExecContext(ctx,
			"DELETE FROM settings WHERE key = ?", activeProjectKey)
		return err
	}

	if _, err := m.GetProject(ctx, name); err != nil {
		return err
	}
	if err := m.touchLastOpened(ctx, name); err != nil {
		log.Warn().Err(err).Str("project", name).Msg("Failed to update last_opened")
	}

	_, err := m.registry.ExecContext(ctx, `
		INSERT INTO settings (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, activeProjectKey, name)
	return err
}

// CloneProject copies parameter definitions and optionally samples with
// their latest values from source into target, creating target if it
// does not exist yet. Values imply samples.
func (m *Manager) CloneProject(ctx context.Context, source, target string, cloneDefinitions, cloneValues bool) error {
	if cloneValues && !cloneDefinitions {
		return fmt.Errorf("cannot clone values without cloning definitions")
	}

	src, err := m.Get(ctx, source)
	if err != nil {
		return err
	}
	if _, err := m.GetProject(ctx, target); err != nil {
		if !errors.Is(err, ErrProjectNotFound) {
			return err
		}
		if _, err := m.CreateProject(ctx, target, ""); err != nil {
			return err
		}
	}
	dst, err := m.Get(ctx, target)
	if err != nil {
		return err
	}

	if cloneDefinitions {
		defs, err := src.ListParameterDefinitions(ctx)
		if err != nil {
			return err
		}
		for _, def := range defs {
			if _, err := dst.ensureParameterDef(ctx, def.Name, def.UnitSymbol); err != nil {
				return err
			}
		}
	}

	if cloneValues {
		samples, err := src.ListSamples(ctx, false)
		if err != nil {
			return err
		}
		for _, sample := range samples {
			created, err := dst.CreateSample(ctx, sample.PreparedOn, sample.AuthorName)
			if err != nil {
				return err
			}
			values, err := src.SampleParameterValues(ctx, sample.ID)
			if err != nil {
				return err
			}
			for _, v := range values {
				_, err := dst.RecordParameters(ctx, created.ID, []Assignment{{
					ParameterName: v.ParameterName,
					Value:         v.Value,
					UnitSymbol:    v.UnitSymbol,
				}})
				if err != nil {
					return err
				}
			}
		}
	}

	return nil
}

// Close closes all open stores and the registry
func (m *Manager) Close() {
	m.stores.Range(func(name string, s *Store) bool {
		m.evict(name)
		return true
	})
	if err := m.registry.Close(); err != nil {
		log.Warn().Err(err).Msg("Failed to close project registry")
	}
}

// evict closes and forgets an open store, notifying the eviction hook
func (m *Manager) evict(name string) {
	s, ok := m.stores.LoadAndDelete(name)
	if !ok {
		return
	}
	if m.onEvict != nil {
		m.onEvict(name)
	}
	if err := s.Close(); err != nil {
		log.Warn().Err(err).Str("project", name).Msg("Failed to close project store")
	}
}

func (m *Manager) touchLastOpened(ctx context.Context, name string) error {
	query, args, err := dialect.Update("project").
		Set(goqu.Record{"last_opened": nowString()}).
		Where(goqu.C("name").Eq(name)).
		ToSQL()
	if err != nil {
		return err
	}
	_, err = m.registry.ExecContext(ctx, query, args...)
	return err
}

func validateProjectName(name string) error {
	if name == "" {
		return fmt.Errorf("project name is required")
	}
	if strings.ContainsAny(name, `/\`) || name == "." || name == ".." {
		return fmt.Errorf("invalid project name: %s", name)
	}
	return nil
}

func scanProject(rows rowScanner) (Project, error) {
	var p Project
	var createdBy, createdAt, lastOpened, lastModified sql.NullString
	if err := rows.Scan(&p.Name, &p.DBPath, &createdAt, &createdBy, &lastOpened, &lastModified); err != nil {
		return Project{}, err
	}
	p.CreatedBy = createdBy.String
	p.CreatedAt = parseTime(createdAt.String)
	if lastOpened.Valid {
		t := parseTime(lastOpened.String)
		p.LastOpened = &t
	}
	if lastModified.Valid {
		t := parseTime(lastModified.String)
		p.LastModified = &t
	}
	return p, nil
}
