package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dharsanguruparan/MetroCheck/internal/rules"
)

// RuleRepository persists the rule registry. It implements rules.Journal, so
// a registry mutation only becomes visible once its row is written.
type RuleRepository struct {
	pool *pgxpool.Pool
}

// NewRuleRepository constructs a repository.
func NewRuleRepository(pool *pgxpool.Pool) *RuleRepository {
	return &RuleRepository{pool: pool}
}

var _ rules.Journal = (*RuleRepository)(nil)

// Record writes one registry change.
func (r *RuleRepository) Record(ctx context.Context, change rules.Change) error {
	rule := change.Rule
	var err error
	switch change.Op {
	case rules.OpAdded:
		_, err = r.pool.Exec(ctx, `
			INSERT INTO rules (id, name, description, priority, category, active, weight, check_kind, field, version, created_at, updated_at)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
		`, rule.ID, rule.Name, rule.Description, string(rule.Priority), rule.Category, rule.Active, rule.Weight,
			string(rule.Check), string(rule.Field), rule.Version, rule.CreatedAt, rule.UpdatedAt)
	case rules.OpUpdated:
		_, err = r.pool.Exec(ctx, `
			UPDATE rules
			SET description=$1, priority=$2, active=$3, weight=$4, version=$5, updated_at=$6
			WHERE id=$7 AND removed_at IS NULL
		`, rule.Description, string(rule.Priority), rule.Active, rule.Weight, rule.Version, rule.UpdatedAt, rule.ID)
	case rules.OpRemoved:
		_, err = r.pool.Exec(ctx, `UPDATE rules SET removed_at=$1 WHERE id=$2`, time.Now().UTC(), rule.ID)
	default:
		return fmt.Errorf("unknown rule change %q", change.Op)
	}
	if err != nil {
		return fmt.Errorf("%s rule %s: %w", change.Op, rule.ID, err)
	}
	return nil
}

// revisionSQL yields a counter that grows with every persisted registry
// change: adds insert a row at version 1, updates bump a version and removals
// stamp removed_at.
const revisionSQL = `
	SELECT COALESCE(SUM(version), 0) + COUNT(*) FILTER (WHERE removed_at IS NOT NULL)
	FROM rules
`

// querier is satisfied by both the pool and a transaction.
type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// List returns live rules in insertion order.
func (r *RuleRepository) List(ctx context.Context) ([]rules.Rule, error) {
	return listRules(ctx, r.pool)
}

func listRules(ctx context.Context, q querier) ([]rules.Rule, error) {
	rows, err := q.Query(ctx, `
		SELECT id, name, description, priority, category, active, weight, check_kind, field, version, created_at, updated_at
		FROM rules WHERE removed_at IS NULL ORDER BY seq
	`)
	if err != nil {
		return nil, fmt.Errorf("select rules: %w", err)
	}
	defer rows.Close()
	var out []rules.Rule
	for rows.Next() {
		var (
			rule     rules.Rule
			priority string
			check    string
			fld      string
		)
		if err := rows.Scan(&rule.ID, &rule.Name, &rule.Description, &priority, &rule.Category, &rule.Active,
			&rule.Weight, &check, &fld, &rule.Version, &rule.CreatedAt, &rule.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan rule: %w", err)
		}
		rule.Priority = rules.Priority(priority)
		rule.Check = rules.CheckKind(check)
		rule.Field = rules.Field(fld)
		out = append(out, rule)
	}
	return out, rows.Err()
}

// RetiredIDs returns ids of removed rules.
func (r *RuleRepository) RetiredIDs(ctx context.Context) ([]string, error) {
	rows, err := r.pool.Query(ctx, `SELECT id FROM rules WHERE removed_at IS NOT NULL ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("select retired rules: %w", err)
	}
	return pgx.CollectRows(rows, pgx.RowTo[string])
}

// Seed inserts rules into an empty table. It reports whether anything was
// written; a table that already holds rows, live or retired, is left alone.
func (r *RuleRepository) Seed(ctx context.Context, seed []rules.Rule) (bool, error) {
	var count int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM rules`).Scan(&count); err != nil {
		return false, fmt.Errorf("count rules: %w", err)
	}
	if count > 0 {
		return false, nil
	}
	snap, err := rules.NewSnapshot(seed)
	if err != nil {
		return false, err
	}
	now := time.Now().UTC()
	batch := &pgx.Batch{}
	for _, rule := range snap.Rules() {
		batch.Queue(`
			INSERT INTO rules (id, name, description, priority, category, active, weight, check_kind, field, version, created_at, updated_at)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,1,$10,$10)
		`, rule.ID, rule.Name, rule.Description, string(rule.Priority), rule.Category, rule.Active, rule.Weight,
			string(rule.Check), string(rule.Field), now)
	}
	if err := r.pool.SendBatch(ctx, batch).Close(); err != nil {
		return false, fmt.Errorf("seed rules: %w", err)
	}
	return true, nil
}

// LoadSnapshot reads live rules into a frozen rule set stamped with the
// table revision. Workers use it so each task runs against the rules current
// when it started.
func (r *RuleRepository) LoadSnapshot(ctx context.Context) (*rules.Snapshot, error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead, AccessMode: pgx.ReadOnly})
	if err != nil {
		return nil, fmt.Errorf("begin rules read: %w", err)
	}
	defer tx.Rollback(ctx)

	list, err := listRules(ctx, tx)
	if err != nil {
		return nil, err
	}
	var rev int64
	if err := tx.QueryRow(ctx, revisionSQL).Scan(&rev); err != nil {
		return nil, fmt.Errorf("rules revision: %w", err)
	}
	snap, err := rules.NewSnapshot(list)
	if err != nil {
		return nil, err
	}
	return snap.WithVersion(uint64(rev)), nil
}
