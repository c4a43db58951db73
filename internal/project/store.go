package project

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/inamate/imageboard/internal/typeid"
)

type Project struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Repository stores named project documents. Documents are stored as given;
// callers validate them first.
type Repository interface {
	List(ctx context.Context) ([]Project, error)
	Get(ctx context.Context, id string) (Project, json.RawMessage, error)
	Create(ctx context.Context, name string, doc json.RawMessage) (Project, error)
	Save(ctx context.Context, id string, doc json.RawMessage) (Project, error)
	Delete(ctx context.Context, id string) error
}

// MemoryStore is a Repository kept in process memory.
type MemoryStore struct {
	mu       sync.RWMutex
	projects map[string]memoryEntry
	now      func() time.Time
}

type memoryEntry struct {
	meta Project
	doc  json.RawMessage
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{projects: make(map[string]memoryEntry), now: time.Now}
}

func (m *MemoryStore) List(_ context.Context) ([]Project, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Project, 0, len(m.projects))
	for _, e := range m.projects {
		out = append(out, e.meta)
	}
	slices.SortFunc(out, func(a, b Project) int {
		if c := b.UpdatedAt.Compare(a.UpdatedAt); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})
	return out, nil
}

func (m *MemoryStore) Get(_ context.Context, id string) (Project, json.RawMessage, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.projects[id]
	if !ok {
		return Project{}, nil, ErrNotFound
	}
	return e.meta, slices.Clone(e.doc), nil
}

func (m *MemoryStore) Create(_ context.Context, name string, doc json.RawMessage) (Project, error) {
	now := m.now().UTC()
	p := Project{ID: typeid.NewProjectID(), Name: name, CreatedAt: now, UpdatedAt: now}
	m.mu.Lock()
	m.projects[p.ID] = memoryEntry{meta: p, doc: slices.Clone(doc)}
	m.mu.Unlock()
	return p, nil
}

func (m *MemoryStore) Save(_ context.Context, id string, doc json.RawMessage) (Project, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.projects[id]
	if !ok {
		return Project{}, ErrNotFound
	}
	e.meta.UpdatedAt = m.now().UTC()
	e.doc = slices.Clone(doc)
	m.projects[id] = e
	return e.meta, nil
}

func (m *MemoryStore) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.projects[id]; !ok {
		return ErrNotFound
	}
	delete(m.projects, id)
	return nil
}

// PGStore keeps projects in the projects table.
type PGStore struct {
	pool *pgxpool.Pool
}

func NewPGStore(pool *pgxpool.Pool) *PGStore {
	return &PGStore{pool: pool}
}

const schema = `
CREATE TABLE IF NOT EXISTS projects (
	id         TEXT PRIMARY KEY,
	name       TEXT NOT NULL,
	document   JSONB NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`

// Migrate creates the projects table if it does not exist.
func (s *PGStore) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("migrate projects: %w", err)
	}
	return nil
}

func (s *PGStore) List(ctx context.Context) ([]Project, error) {
	rows, err := s.pool.Query(ctx, `SELECT id, name, created_at, updated_at FROM projects ORDER BY updated_at DESC, id`)
	if err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	projects, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (Project, error) {
		var p Project
		err := row.Scan(&p.ID, &p.Name, &p.CreatedAt, &p.UpdatedAt)
		return p, err
	})
	if err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	return projects, nil
}

func (s *PGStore) Get(ctx context.Context, id string) (Project, json.RawMessage, error) {
	var p Project
	var doc []byte
	err := s.pool.QueryRow(ctx,
		`SELECT id, name, created_at, updated_at, document FROM projects WHERE id = $1`, id,
	).Scan(&p.ID, &p.Name, &p.CreatedAt, &p.UpdatedAt, &doc)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Project{}, nil, ErrNotFound
		}
		return Project{}, nil, fmt.Errorf("get project: %w", err)
	}
	return p, doc, nil
}

func (s *PGStore) Create(ctx context.Context, name string, doc json.RawMessage) (Project, error) {
	p := Project{ID: typeid.NewProjectID(), Name: name}
	err := s.pool.QueryRow(ctx,
		`INSERT INTO projects (id, name, document) VALUES ($1, $2, $3) RETURNING created_at, updated_at`,
		p.ID, p.Name, []byte(doc),
	).Scan(&p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return Project{}, fmt.Errorf("create project: %w", err)
	}
	return p, nil
}

func (s *PGStore) Save(ctx context.Context, id string, doc json.RawMessage) (Project, error) {
	var p Project
	err := s.pool.QueryRow(ctx,
		`UPDATE projects SET document = $2, updated_at = now() WHERE id = $1
		 RETURNING id, name, created_at, updated_at`,
		id, []byte(doc),
	).Scan(&p.ID, &p.Name, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Project{}, ErrNotFound
		}
		return Project{}, fmt.Errorf("save project: %w", err)
	}
	return p, nil
}

func (s *PGStore) Delete(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM projects WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete project: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
