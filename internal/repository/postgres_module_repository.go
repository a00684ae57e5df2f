package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/prohmpiriya/test-platform/internal/domain"
)

// PostgresModuleRepository implements ModuleRepository using PostgreSQL
type PostgresModuleRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresModuleRepository creates a new PostgresModuleRepository
func NewPostgresModuleRepository(pool *pgxpool.Pool) *PostgresModuleRepository {
	return &PostgresModuleRepository{pool: pool}
}

const moduleColumns = `id, name, description, active, created_at, updated_at`

func scanModule(row pgx.Row) (*domain.Module, error) {
	m := &domain.Module{}
	if err := row.Scan(&m.ID, &m.Name, &m.Description, &m.Active, &m.CreatedAt, &m.UpdatedAt); err != nil {
		return nil, err
	}
	return m, nil
}

// Create inserts a module
func (r *PostgresModuleRepository) Create(ctx context.Context, module *domain.Module) error {
	query := `
		INSERT INTO modules (name, description, active)
		VALUES ($1, $2, $3)
		ON CONFLICT (name) DO NOTHING
		RETURNING id, created_at, updated_at
	`
	err := r.pool.QueryRow(ctx, query, module.Name, module.Description, module.Active).
		Scan(&module.ID, &module.CreatedAt, &module.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) || isPgCode(err, pgUniqueViolationCode) {
			return domain.ErrDuplicateModuleName
		}
		return storeError("create module", err)
	}
	return nil
}

// GetByID retrieves a module by ID
func (r *PostgresModuleRepository) GetByID(ctx context.Context, id int64) (*domain.Module, error) {
	query := `SELECT ` + moduleColumns + ` FROM modules WHERE id = $1`

	m, err := scanModule(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, storeError("get module", err)
	}
	return m, nil
}

// ListActive returns enabled modules ordered by name
func (r *PostgresModuleRepository) ListActive(ctx context.Context) ([]*domain.Module, error) {
	query := `SELECT ` + moduleColumns + ` FROM modules WHERE active = TRUE ORDER BY name`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, storeError("list modules", err)
	}
	defer rows.Close()

	modules := make([]*domain.Module, 0)
	for rows.Next() {
		m, err := scanModule(rows)
		if err != nil {
			return nil, storeError("scan module", err)
		}
		modules = append(modules, m)
	}
	if err := rows.Err(); err != nil {
		return nil, storeError("list modules", err)
	}
	return modules, nil
}

// Update updates name, description and status of a module
func (r *PostgresModuleRepository) Update(ctx context.Context, module *domain.Module) error {
	query := `
		UPDATE modules
		SET name = $2, description = $3, active = $4, updated_at = NOW()
		WHERE id = $1
		RETURNING created_at, updated_at
	`
	err := r.pool.QueryRow(ctx, query, module.ID, module.Name, module.Description, module.Active).
		Scan(&module.CreatedAt, &module.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.ErrModuleNotFound
		}
		if isPgCode(err, pgUniqueViolationCode) {
			return domain.ErrDuplicateModuleName
		}
		return storeError("update module", err)
	}
	return nil
}

// SetActive enables or disables a module
func (r *PostgresModuleRepository) SetActive(ctx context.Context, id int64, active bool) error {
	tag, err := r.pool.Exec(ctx, `UPDATE modules SET active = $2, updated_at = NOW() WHERE id = $1`, id, active)
	if err != nil {
		return storeError("set module status", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrModuleNotFound
	}
	return nil
}
