package universe

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/avramidis/optsentry/internal/domain"
)

// Repository handles universe database operations.
// Database: universe.db (securities and close_history tables).
type Repository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewRepository creates a new universe repository and ensures the schema exists
func NewRepository(db *sql.DB, log zerolog.Logger) (*Repository, error) {
	r := &Repository{
		db:  db,
		log: log.With().Str("repo", "universe").Logger(),
	}
	if err := r.ensureSchema(); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *Repository) ensureSchema() error {
	_, err := r.db.Exec(`
		CREATE TABLE IF NOT EXISTS securities (
			symbol TEXT PRIMARY KEY,
			name TEXT NOT NULL DEFAULT '',
			last_price REAL NOT NULL DEFAULT 0,
			iv_rank REAL NOT NULL DEFAULT 0,
			can_add INTEGER NOT NULL DEFAULT 1,
			sector TEXT NOT NULL DEFAULT '',
			industry TEXT NOT NULL DEFAULT '',
			score REAL NOT NULL DEFAULT 0,
			last_updated INTEGER
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create securities table: %w", err)
	}

	_, err = r.db.Exec(`
		CREATE TABLE IF NOT EXISTS close_history (
			symbol TEXT NOT NULL,
			day TEXT NOT NULL,
			close REAL NOT NULL,
			PRIMARY KEY (symbol, day)
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create close_history table: %w", err)
	}

	return nil
}

// GetAll returns every security ordered by screening score, best first
func (r *Repository) GetAll() ([]Security, error) {
	query := `
		SELECT symbol, name, last_price, iv_rank, can_add, sector, industry, score, last_updated
		FROM securities
		ORDER BY score DESC, symbol
	`

	rows, err := r.db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("failed to query securities: %w", err)
	}
	defer rows.Close()

	var securities []Security
	for rows.Next() {
		var sec Security
		var canAdd int
		var lastUpdated sql.NullInt64

		if err := rows.Scan(
			&sec.Symbol, &sec.Name, &sec.LastPrice, &sec.IVRank,
			&canAdd, &sec.Sector, &sec.Industry, &sec.Score, &lastUpdated,
		); err != nil {
			return nil, fmt.Errorf("failed to scan security: %w", err)
		}

		sec.CanAdd = canAdd != 0
		if lastUpdated.Valid {
			sec.LastUpdated = time.Unix(lastUpdated.Int64, 0).UTC()
		}
		securities = append(securities, sec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating securities: %w", err)
	}

	return securities, nil
}

// Candidates returns the universe as ranked candidates for the opening
// recommendation stage. Implements domain.UniverseProvider.
func (r *Repository) Candidates() ([]domain.Candidate, error) {
	securities, err := r.GetAll()
	if err != nil {
		return nil, err
	}

	candidates := make([]domain.Candidate, 0, len(securities))
	for _, sec := range securities {
		candidates = append(candidates, domain.Candidate{
			Symbol:    sec.Symbol,
			LastPrice: sec.LastPrice,
			IVRank:    sec.IVRank,
			CanAdd:    sec.CanAdd,
			Sector:    sec.Sector,
			Industry:  sec.Industry,
			Score:     sec.Score,
		})
	}
	return candidates, nil
}

// Upsert inserts or updates a security keyed by symbol
func (r *Repository) Upsert(sec Security) error {
	if sec.Symbol == "" {
		return fmt.Errorf("security symbol is required")
	}

	canAdd := 0
	if sec.CanAdd {
		canAdd = 1
	}

	query := `
		INSERT INTO securities (symbol, name, last_price, iv_rank, can_add, sector, industry, score, last_updated)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(symbol) DO UPDATE SET
			name = excluded.name,
			last_price = excluded.last_price,
			iv_rank = excluded.iv_rank,
			can_add = excluded.can_add,
			sector = excluded.sector,
			industry = excluded.industry,
			score = excluded.score,
			last_updated = excluded.last_updated
	`

	_, err := r.db.Exec(query,
		sec.Symbol, sec.Name, sec.LastPrice, sec.IVRank,
		canAdd, sec.Sector, sec.Industry, sec.Score,
		time.Now().Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert security %s: %w", sec.Symbol, err)
	}

	return nil
}

// RecordClose stores one daily close for a symbol (idempotent per day)
func (r *Repository) RecordClose(symbol, day string, close float64) error {
	query := `
		INSERT INTO close_history (symbol, day, close)
		VALUES (?, ?, ?)
		ON CONFLICT(symbol, day) DO UPDATE SET close = excluded.close
	`
	if _, err := r.db.Exec(query, symbol, day, close); err != nil {
		return fmt.Errorf("failed to record close for %s: %w", symbol, err)
	}
	return nil
}

// Closes returns up to limit daily closes for a symbol, oldest first
func (r *Repository) Closes(symbol string, limit int) ([]float64, error) {
	query := `
		SELECT close FROM (
			SELECT day, close FROM close_history
			WHERE symbol = ?
			ORDER BY day DESC
			LIMIT ?
		)
		ORDER BY day ASC
	`

	rows, err := r.db.Query(query, symbol, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query closes for %s: %w", symbol, err)
	}
	defer rows.Close()

	var closes []float64
	for rows.Next() {
		var c float64
		if err := rows.Scan(&c); err != nil {
			return nil, fmt.Errorf("failed to scan close: %w", err)
		}
		closes = append(closes, c)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating closes: %w", err)
	}

	return closes, nil
}

// Sectors returns the distinct non-empty sectors present in the universe
func (r *Repository) Sectors() ([]string, error) {
	rows, err := r.db.Query("SELECT DISTINCT sector FROM securities WHERE sector != '' ORDER BY sector")
	if err != nil {
		return nil, fmt.Errorf("failed to query sectors: %w", err)
	}
	defer rows.Close()

	var sectors []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, fmt.Errorf("failed to scan sector: %w", err)
		}
		sectors = append(sectors, s)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return sectors, nil
}

// SymbolsBySector returns the member symbols of one sector
func (r *Repository) SymbolsBySector(sector string) ([]string, error) {
	rows, err := r.db.Query("SELECT symbol FROM securities WHERE sector = ? ORDER BY symbol", sector)
	if err != nil {
		return nil, fmt.Errorf("failed to query sector members: %w", err)
	}
	defer rows.Close()

	var symbols []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, fmt.Errorf("failed to scan symbol: %w", err)
		}
		symbols = append(symbols, s)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return symbols, nil
}
