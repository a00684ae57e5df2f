package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/prohmpiriya/test-platform/internal/domain"
)

// PostgresRequirementRepository implements RequirementRepository using PostgreSQL
type PostgresRequirementRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRequirementRepository creates a new PostgresRequirementRepository
func NewPostgresRequirementRepository(pool *pgxpool.Pool) *PostgresRequirementRepository {
	return &PostgresRequirementRepository{pool: pool}
}

const requirementSelect = `
	SELECT r.id, r.code, r.name, r.description, r.creator_id, COALESCE(u.display_name, ''),
		r.module_id, COALESCE(m.name, ''), r.executor_ids, r.status, r.created_at, r.updated_at
	FROM requirements r
	LEFT JOIN users u ON u.id = r.creator_id
	LEFT JOIN modules m ON m.id = r.module_id
`

func scanRequirement(row pgx.Row) (*domain.Requirement, error) {
	req := &domain.Requirement{}
	err := row.Scan(
		&req.ID,
		&req.Code,
		&req.Name,
		&req.Description,
		&req.CreatorID,
		&req.CreatorName,
		&req.ModuleID,
		&req.ModuleName,
		&req.ExecutorIDs,
		&req.Status,
		&req.CreatedAt,
		&req.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return req, nil
}

// NextCodeSequence draws from requirement_code_seq, shared by every instance
func (r *PostgresRequirementRepository) NextCodeSequence(ctx context.Context) (int64, error) {
	var seq int64
	if err := r.pool.QueryRow(ctx, `SELECT nextval('requirement_code_seq')`).Scan(&seq); err != nil {
		return 0, storeError("next requirement code", err)
	}
	return seq, nil
}

// Create inserts a requirement with an already generated code
func (r *PostgresRequirementRepository) Create(ctx context.Context, req *domain.Requirement) error {
	query := `
		INSERT INTO requirements (code, name, description, creator_id, module_id, executor_ids, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at, updated_at
	`
	executors := req.ExecutorIDs
	if executors == nil {
		executors = []int64{}
	}

	err := r.pool.QueryRow(ctx, query,
		req.Code,
		req.Name,
		req.Description,
		req.CreatorID,
		req.ModuleID,
		executors,
		req.Status,
	).Scan(&req.ID, &req.CreatedAt, &req.UpdatedAt)
	if err != nil {
		if isPgCode(err, pgUniqueViolationCode) {
			return domain.ErrRequirementCodeTaken
		}
		if isPgCode(err, pgForeignKeyViolationCode) {
			return domain.ErrModuleNotFound
		}
		return storeError("create requirement", err)
	}
	return nil
}

// GetByID retrieves a requirement by ID
func (r *PostgresRequirementRepository) GetByID(ctx context.Context, id int64) (*domain.Requirement, error) {
	req, err := scanRequirement(r.pool.QueryRow(ctx, requirementSelect+` WHERE r.id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, storeError("get requirement", err)
	}
	return req, nil
}

// Update updates every mutable field; the code never changes
func (r *PostgresRequirementRepository) Update(ctx context.Context, req *domain.Requirement) error {
	query := `
		UPDATE requirements
		SET name = $2, description = $3, module_id = $4, executor_ids = $5, status = $6, updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at
	`
	executors := req.ExecutorIDs
	if executors == nil {
		executors = []int64{}
	}

	err := r.pool.QueryRow(ctx, query,
		req.ID,
		req.Name,
		req.Description,
		req.ModuleID,
		executors,
		req.Status,
	).Scan(&req.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.ErrRequirementNotFound
		}
		if isPgCode(err, pgForeignKeyViolationCode) {
			return domain.ErrModuleNotFound
		}
		return storeError("update requirement", err)
	}
	return nil
}

// List returns one page of requirements matching filter, newest first
func (r *PostgresRequirementRepository) List(ctx context.Context, filter domain.RequirementFilter) ([]*domain.Requirement, int64, error) {
	filter.Normalize()

	var conds []string
	var args []any
	add := func(cond string, arg any) {
		args = append(args, arg)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}

	if filter.Code != "" {
		add("r.code LIKE $%d", "%"+escapeLike(filter.Code)+"%")
	}
	if filter.Name != "" {
		add("r.name LIKE $%d", "%"+escapeLike(filter.Name)+"%")
	}
	if filter.ModuleID != nil {
		add("r.module_id = $%d", *filter.ModuleID)
	}
	if filter.Status != "" {
		add("r.status = $%d", string(filter.Status))
	}

	where := ""
	if len(conds) > 0 {
		where = " WHERE " + strings.Join(conds, " AND ")
	}

	return r.page(ctx, where, " ORDER BY r.created_at DESC, r.id DESC", args, filter.Page, filter.PageSize)
}

// Search matches keyword against code or name, ordered by code descending
func (r *PostgresRequirementRepository) Search(ctx context.Context, keyword string, page, pageSize int) ([]*domain.Requirement, int64, error) {
	filter := domain.RequirementFilter{Page: page, PageSize: pageSize}
	filter.Normalize()

	where := ""
	var args []any
	if kw := strings.TrimSpace(keyword); kw != "" {
		args = append(args, "%"+escapeLike(kw)+"%")
		where = " WHERE (r.code LIKE $1 OR r.name LIKE $1)"
	}

	return r.page(ctx, where, " ORDER BY r.code DESC", args, filter.Page, filter.PageSize)
}

func (r *PostgresRequirementRepository) page(ctx context.Context, where, orderBy string, args []any, page, pageSize int) ([]*domain.Requirement, int64, error) {
	var total int64
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM requirements r`+where, args...).Scan(&total); err != nil {
		return nil, 0, storeError("count requirements", err)
	}

	n := len(args)
	query := requirementSelect + where + orderBy + fmt.Sprintf(" LIMIT $%d OFFSET $%d", n+1, n+2)
	args = append(args, pageSize, (page-1)*pageSize)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, storeError("list requirements", err)
	}
	defer rows.Close()

	reqs := make([]*domain.Requirement, 0, pageSize)
	for rows.Next() {
		req, err := scanRequirement(rows)
		if err != nil {
			return nil, 0, storeError("scan requirement", err)
		}
		reqs = append(reqs, req)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, storeError("list requirements", err)
	}
	return reqs, total, nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}
