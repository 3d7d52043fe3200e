package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/samirrijal/poiexplorer/internal/core/domain"
	"github.com/samirrijal/poiexplorer/internal/core/ports"
)

// CatalogRepo implements ports.CatalogRepository with pgx.
type CatalogRepo struct {
	db *DB
}

// NewCatalogRepo creates a new CatalogRepo.
func NewCatalogRepo(db *DB) *CatalogRepo {
	return &CatalogRepo{db: db}
}

// GetProject returns a project by slug.
func (r *CatalogRepo) GetProject(ctx context.Context, slug string) (*domain.Project, error) {
	var p domain.Project
	err := r.db.Pool.QueryRow(ctx, `
		SELECT id, slug, name,
		       ST_Y(center::geometry) AS lat,
		       ST_X(center::geometry) AS lng,
		       created_at
		FROM projects WHERE slug = $1
	`, slug).Scan(&p.ID, &p.Slug, &p.Name, &p.Center.Lat, &p.Center.Lng, &p.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("project %s: %w", slug, ports.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// ListProjects returns every project ordered by name.
func (r *CatalogRepo) ListProjects(ctx context.Context) ([]domain.Project, error) {
	rows, err := r.db.Pool.Query(ctx, `
		SELECT id, slug, name,
		       ST_Y(center::geometry), ST_X(center::geometry),
		       created_at
		FROM projects ORDER BY name
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var projects []domain.Project
	for rows.Next() {
		var p domain.Project
		if err := rows.Scan(&p.ID, &p.Slug, &p.Name, &p.Center.Lat, &p.Center.Lng, &p.CreatedAt); err != nil {
			return nil, err
		}
		projects = append(projects, p)
	}
	return projects, rows.Err()
}

// ListThemes returns a project's themes with their category ids in display order.
func (r *CatalogRepo) ListThemes(ctx context.Context, projectID string) ([]domain.Theme, error) {
	rows, err := r.db.Pool.Query(ctx, `
		SELECT t.id, t.name,
		       COALESCE(array_agg(tc.category_id ORDER BY tc.position)
		                FILTER (WHERE tc.category_id IS NOT NULL), '{}')
		FROM themes t
		LEFT JOIN theme_categories tc
		       ON tc.project_id = t.project_id AND tc.theme_id = t.id
		WHERE t.project_id = $1
		GROUP BY t.id, t.name, t.position
		ORDER BY t.position, t.id
	`, projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var themes []domain.Theme
	for rows.Next() {
		var th domain.Theme
		if err := rows.Scan(&th.ID, &th.Name, &th.CategoryIDs); err != nil {
			return nil, err
		}
		themes = append(themes, th)
	}
	return themes, rows.Err()
}

// ListCategories returns a project's categories in display order.
func (r *CatalogRepo) ListCategories(ctx context.Context, projectID string) ([]domain.Category, error) {
	rows, err := r.db.Pool.Query(ctx, `
		SELECT id, name, COALESCE(icon, '')
		FROM categories WHERE project_id = $1
		ORDER BY position, id
	`, projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var categories []domain.Category
	for rows.Next() {
		var c domain.Category
		if err := rows.Scan(&c.ID, &c.Name, &c.Icon); err != nil {
			return nil, err
		}
		categories = append(categories, c)
	}
	return categories, rows.Err()
}

// ListPOIs returns every POI of a project.
func (r *CatalogRepo) ListPOIs(ctx context.Context, projectID string) ([]domain.POI, error) {
	rows, err := r.db.Pool.Query(ctx, `
		SELECT id, name, category_id,
		       ST_Y(location::geometry), ST_X(location::geometry)
		FROM pois WHERE project_id = $1
		ORDER BY id
	`, projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var pois []domain.POI
	for rows.Next() {
		var p domain.POI
		if err := rows.Scan(&p.ID, &p.Name, &p.CategoryID, &p.Coordinates.Lat, &p.Coordinates.Lng); err != nil {
			return nil, err
		}
		pois = append(pois, p)
	}
	return pois, rows.Err()
}

// UpsertPOIs inserts or updates POIs in one batch.
func (r *CatalogRepo) UpsertPOIs(ctx context.Context, projectID string, pois []domain.POI) error {
	batch := &pgx.Batch{}
	for _, p := range pois {
		batch.Queue(`
			INSERT INTO pois (project_id, id, name, category_id, location)
			VALUES ($1, $2, $3, $4, ST_SetSRID(ST_MakePoint($5, $6), 4326)::geography)
			ON CONFLICT (project_id, id) DO UPDATE
			SET name = EXCLUDED.name, category_id = EXCLUDED.category_id,
			    location = EXCLUDED.location
		`, projectID, p.ID, p.Name, p.CategoryID, p.Coordinates.Lng, p.Coordinates.Lat)
	}
	br := r.db.Pool.SendBatch(ctx, batch)
	defer br.Close()
	for range pois {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("batch exec: %w", err)
		}
	}
	return nil
}

// UpsertProject inserts or renames a project by slug and returns its id.
func (r *CatalogRepo) UpsertProject(ctx context.Context, p *domain.Project) (string, error) {
	var id string
	err := r.db.Pool.QueryRow(ctx, `
		INSERT INTO projects (slug, name, center)
		VALUES ($1, $2, ST_SetSRID(ST_MakePoint($3, $4), 4326)::geography)
		ON CONFLICT (slug) DO UPDATE
		SET name = EXCLUDED.name, center = EXCLUDED.center
		RETURNING id
	`, p.Slug, p.Name, p.Center.Lng, p.Center.Lat).Scan(&id)
	if err != nil {
		return "", fmt.Errorf("upsert project %s: %w", p.Slug, err)
	}
	return id, nil
}

// UpsertTaxonomy writes a project's categories and themes in one transaction.
// Theme membership is replaced, so categories removed from a theme leave it.
func (r *CatalogRepo) UpsertTaxonomy(ctx context.Context, projectID string, categories []domain.Category, themes []domain.Theme) error {
	tx, err := r.db.Pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	for i, c := range categories {
		if _, err := tx.Exec(ctx, `
			INSERT INTO categories (project_id, id, name, icon, position)
			VALUES ($1, $2, $3, NULLIF($4, ''), $5)
			ON CONFLICT (project_id, id) DO UPDATE
			SET name = EXCLUDED.name, icon = EXCLUDED.icon, position = EXCLUDED.position
		`, projectID, c.ID, c.Name, c.Icon, i); err != nil {
			return fmt.Errorf("upsert category %s: %w", c.ID, err)
		}
	}

	for i, th := range themes {
		if _, err := tx.Exec(ctx, `
			INSERT INTO themes (project_id, id, name, position)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (project_id, id) DO UPDATE
			SET name = EXCLUDED.name, position = EXCLUDED.position
		`, projectID, th.ID, th.Name, i); err != nil {
			return fmt.Errorf("upsert theme %s: %w", th.ID, err)
		}
		if _, err := tx.Exec(ctx, `
			DELETE FROM theme_categories WHERE project_id = $1 AND theme_id = $2
		`, projectID, th.ID); err != nil {
			return fmt.Errorf("clear theme %s: %w", th.ID, err)
		}
		for j, cid := range th.CategoryIDs {
			if _, err := tx.Exec(ctx, `
				INSERT INTO theme_categories (project_id, theme_id, category_id, position)
				VALUES ($1, $2, $3, $4)
			`, projectID, th.ID, cid, j); err != nil {
				return fmt.Errorf("link theme %s to %s: %w", th.ID, cid, err)
			}
		}
	}

	return tx.Commit(ctx)
}
