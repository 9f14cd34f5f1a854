package allocation

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/avramidis/optsentry/internal/domain"
)

// Repository handles allocation rule database operations.
// Database: config.db (allocation_rules table).
type Repository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewRepository creates a new allocation repository and ensures the schema
// exists. The db parameter should be the config.db connection.
func NewRepository(db *sql.DB, log zerolog.Logger) (*Repository, error) {
	r := &Repository{
		db:  db,
		log: log.With().Str("repo", "allocation").Logger(),
	}
	if err := r.ensureSchema(); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *Repository) ensureSchema() error {
	_, err := r.db.Exec(`
		CREATE TABLE IF NOT EXISTS allocation_rules (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			axis TEXT NOT NULL,
			category TEXT NOT NULL,
			target_pct REAL NOT NULL,
			min_pct REAL NOT NULL,
			max_pct REAL NOT NULL,
			tolerance_pct REAL NOT NULL,
			created_at INTEGER,
			updated_at INTEGER,
			UNIQUE(axis, category)
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create allocation_rules table: %w", err)
	}
	return nil
}

// GetAll returns every allocation rule ordered by axis then category
func (r *Repository) GetAll() ([]Rule, error) {
	query := `
		SELECT id, axis, category, target_pct, min_pct, max_pct, tolerance_pct, created_at, updated_at
		FROM allocation_rules
		ORDER BY axis, category
	`

	rows, err := r.db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("failed to query allocation rules: %w", err)
	}
	defer rows.Close()

	return scanRules(rows)
}

// GetByAxis returns allocation rules for one axis
func (r *Repository) GetByAxis(axis domain.Axis) ([]Rule, error) {
	query := `
		SELECT id, axis, category, target_pct, min_pct, max_pct, tolerance_pct, created_at, updated_at
		FROM allocation_rules
		WHERE axis = ?
		ORDER BY category
	`

	rows, err := r.db.Query(query, string(axis))
	if err != nil {
		return nil, fmt.Errorf("failed to query allocation rules by axis: %w", err)
	}
	defer rows.Close()

	return scanRules(rows)
}

func scanRules(rows *sql.Rows) ([]Rule, error) {
	var rules []Rule
	for rows.Next() {
		var rule Rule
		var createdAtUnix, updatedAtUnix sql.NullInt64

		if err := rows.Scan(
			&rule.ID,
			&rule.Axis,
			&rule.Category,
			&rule.TargetPct,
			&rule.MinPct,
			&rule.MaxPct,
			&rule.TolerancePct,
			&createdAtUnix,
			&updatedAtUnix,
		); err != nil {
			return nil, fmt.Errorf("failed to scan allocation rule: %w", err)
		}

		if createdAtUnix.Valid {
			rule.CreatedAt = time.Unix(createdAtUnix.Int64, 0).UTC()
		}
		if updatedAtUnix.Valid {
			rule.UpdatedAt = time.Unix(updatedAtUnix.Int64, 0).UTC()
		}

		rules = append(rules, rule)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating allocation rules: %w", err)
	}

	return rules, nil
}

// Upsert inserts or updates a rule keyed by (axis, category)
func (r *Repository) Upsert(rule Rule) error {
	if err := rule.Validate(); err != nil {
		return fmt.Errorf("invalid rule %s/%s: %w", rule.Axis, rule.Category, err)
	}

	now := time.Now().Unix()

	query := `
		INSERT INTO allocation_rules (axis, category, target_pct, min_pct, max_pct, tolerance_pct, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(axis, category) DO UPDATE SET
			target_pct = excluded.target_pct,
			min_pct = excluded.min_pct,
			max_pct = excluded.max_pct,
			tolerance_pct = excluded.tolerance_pct,
			updated_at = excluded.updated_at
	`

	_, err := r.db.Exec(query,
		string(rule.Axis), rule.Category,
		rule.TargetPct, rule.MinPct, rule.MaxPct, rule.TolerancePct,
		now, now,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert allocation rule: %w", err)
	}

	r.log.Debug().
		Str("axis", string(rule.Axis)).
		Str("category", rule.Category).
		Float64("target_pct", rule.TargetPct).
		Msg("Allocation rule upserted")

	return nil
}

// RuleError reports one rule that failed during a bulk update
type RuleError struct {
	Axis     domain.Axis `json:"axis"`
	Category string      `json:"category"`
	Error    string      `json:"error"`
}

// BulkUpsert saves a batch of rules with partial success: valid rules are
// persisted, invalid ones are reported back per rule in the same response.
func (r *Repository) BulkUpsert(rules []Rule) (saved int, ruleErrors []RuleError) {
	for _, rule := range rules {
		if err := r.Upsert(rule); err != nil {
			ruleErrors = append(ruleErrors, RuleError{
				Axis:     rule.Axis,
				Category: rule.Category,
				Error:    err.Error(),
			})
			continue
		}
		saved++
	}
	return saved, ruleErrors
}

// Delete removes an allocation rule
func (r *Repository) Delete(axis domain.Axis, category string) error {
	result, err := r.db.Exec(
		"DELETE FROM allocation_rules WHERE axis = ? AND category = ?",
		string(axis), category,
	)
	if err != nil {
		return fmt.Errorf("failed to delete allocation rule: %w", err)
	}

	rowsAffected, _ := result.RowsAffected()
	r.log.Debug().
		Str("axis", string(axis)).
		Str("category", category).
		Int64("rows_affected", rowsAffected).
		Msg("Allocation rule deleted")

	return nil
}

// SeedDefaults inserts the default rule set when the store is empty.
// Safe to call on every startup.
func (r *Repository) SeedDefaults() error {
	var count int
	if err := r.db.QueryRow("SELECT COUNT(*) FROM allocation_rules").Scan(&count); err != nil {
		return fmt.Errorf("failed to count allocation rules: %w", err)
	}
	if count > 0 {
		return nil
	}

	for _, rule := range DefaultRules() {
		if err := r.Upsert(rule); err != nil {
			return fmt.Errorf("failed to seed default rule %s/%s: %w", rule.Axis, rule.Category, err)
		}
	}

	r.log.Info().Int("rules", len(DefaultRules())).Msg("Seeded default allocation rules")
	return nil
}
