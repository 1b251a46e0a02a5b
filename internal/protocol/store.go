package protocol

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wellora/coach/internal/cache"
)

// ErrNotFound indicates the referenced protocol does not exist.
var ErrNotFound = errors.New("protocol not found")

// Protocols change rarely, so the full active set is cached for an hour.
const (
	cacheKeyAll = "protocols:all"
	cacheTTL    = time.Hour
)

const protocolCols = `id, name, category, content, keywords, priority, active, created_at, updated_at`

// Store persists protocols in PostgreSQL with the active set cached.
type Store struct {
	pool   *pgxpool.Pool
	cache  cache.Cache
	logger *slog.Logger
}

// NewStore creates a protocol Store. c may be nil to disable caching.
func NewStore(pool *pgxpool.Pool, c cache.Cache, logger *slog.Logger) (*Store, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{pool: pool, cache: c, logger: logger}, nil
}

// ListActive returns all active protocols ordered by priority descending,
// then name ascending.
func (s *Store) ListActive(ctx context.Context) ([]*Protocol, error) {
	if s.cache != nil {
		if raw, err := s.cache.Get(ctx, cacheKeyAll); err == nil {
			var protocols []*Protocol
			if err := json.Unmarshal(raw, &protocols); err == nil {
				return protocols, nil
			}
			s.logger.Warn("dropping undecodable protocol cache entry")
			_ = s.cache.Delete(ctx, cacheKeyAll)
		} else if !errors.Is(err, cache.ErrMiss) {
			s.logger.Warn("protocol cache read failed", "error", err)
		}
	}

	rows, err := s.pool.Query(ctx,
		`SELECT `+protocolCols+`
		 FROM protocols
		 WHERE active
		 ORDER BY priority DESC, name ASC`,
	)
	if err != nil {
		return nil, fmt.Errorf("listing protocols: %w", err)
	}
	defer rows.Close()

	protocols, err := scanProtocols(rows)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if raw, err := json.Marshal(protocols); err == nil {
			if err := s.cache.Set(ctx, cacheKeyAll, raw, cacheTTL); err != nil {
				s.logger.Warn("protocol cache write failed", "error", err)
			}
		}
	}

	return protocols, nil
}

// FindByName returns the protocol with the given name, or ErrNotFound.
func (s *Store) FindByName(ctx context.Context, name string) (*Protocol, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+protocolCols+` FROM protocols WHERE name = $1`, name,
	)
	p, err := scanProtocol(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("finding protocol: %w", err)
	}
	return p, nil
}

// Create inserts a new protocol. Names are unique; creating an existing
// name fails.
func (s *Store) Create(ctx context.Context, p *Protocol) error {
	keywords, err := json.Marshal(orEmpty(p.Keywords))
	if err != nil {
		return fmt.Errorf("marshaling keywords: %w", err)
	}

	err = s.pool.QueryRow(ctx,
		`INSERT INTO protocols (name, category, content, keywords, priority, active)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING id, created_at, updated_at`,
		p.Name, p.Category, p.Content, keywords, ClampPriority(p.Priority), p.Active,
	).Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("creating protocol: %w", err)
	}

	s.invalidate(ctx)
	return nil
}

// Update overwrites a protocol's mutable fields by name.
func (s *Store) Update(ctx context.Context, p *Protocol) error {
	keywords, err := json.Marshal(orEmpty(p.Keywords))
	if err != nil {
		return fmt.Errorf("marshaling keywords: %w", err)
	}

	tag, err := s.pool.Exec(ctx,
		`UPDATE protocols
		 SET category = $2, content = $3, keywords = $4, priority = $5, active = $6, updated_at = now()
		 WHERE name = $1`,
		p.Name, p.Category, p.Content, keywords, ClampPriority(p.Priority), p.Active,
	)
	if err != nil {
		return fmt.Errorf("updating protocol: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}

	s.invalidate(ctx)
	return nil
}

func (s *Store) invalidate(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Delete(ctx, cacheKeyAll); err != nil {
		s.logger.Warn("protocol cache invalidation failed", "error", err)
	}
}

func orEmpty(keywords []string) []string {
	if keywords == nil {
		return []string{}
	}
	return keywords
}

func scanProtocol(row pgx.Row) (*Protocol, error) {
	p := &Protocol{}
	var keywords []byte
	if err := row.Scan(
		&p.ID, &p.Name, &p.Category, &p.Content, &keywords,
		&p.Priority, &p.Active, &p.CreatedAt, &p.UpdatedAt,
	); err != nil {
		return nil, err
	}
	if len(keywords) > 0 {
		if err := json.Unmarshal(keywords, &p.Keywords); err != nil {
			return nil, fmt.Errorf("unmarshaling keywords: %w", err)
		}
	}
	return p, nil
}

func scanProtocols(rows pgx.Rows) ([]*Protocol, error) {
	var protocols []*Protocol
	for rows.Next() {
		p, err := scanProtocol(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning protocol: %w", err)
		}
		protocols = append(protocols, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating protocols: %w", err)
	}
	return protocols, nil
}
