package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cory-johannsen/crownfall/internal/sim/combat"
	"github.com/cory-johannsen/crownfall/internal/sim/profile"
	"github.com/cory-johannsen/crownfall/internal/sim/terrain"
)

// ErrRecordNotFound is returned when a combat record lookup yields no results.
var ErrRecordNotFound = errors.New("combat record not found")

// RecordSummary is the lightweight listing row of an archived combat.
type RecordSummary struct {
	ID            uuid.UUID
	Scenario      string
	Winner        combat.Winner
	DurationTicks int
	CreatedAt     time.Time
}

// RecordRepository archives finished combat records. Phases are stored as
// JSONB; the per-unit-type breakdown gets its own rows so balance queries
// can aggregate across battles without unpacking JSON.
type RecordRepository struct {
	db *pgxpool.Pool
}

// NewRecordRepository creates a RecordRepository backed by the given pool.
//
// Precondition: db must be a valid, open connection pool.
func NewRecordRepository(db *pgxpool.Pool) *RecordRepository {
	return &RecordRepository{db: db}
}

// Save archives one finished combat under the given scenario label.
//
// Precondition: rec must be a terminal record from BuildRecord.
// Postcondition: The record and its unit breakdown rows are committed
// atomically, or nothing is written.
func (r *RecordRepository) Save(ctx context.Context, scenario string, rec *combat.DetailedCombatRecord) error {
	phases, err := json.Marshal(rec.Phases)
	if err != nil {
		return fmt.Errorf("encoding phase history: %w", err)
	}

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	_, err = tx.Exec(ctx,
		`INSERT INTO combat_records (
			id, scenario, location_q, location_r,
			terrain, elevation, entrenched, building,
			winner, duration_ticks, duration, phases,
			attacker_initial_units, attacker_final_units,
			attacker_initial_hp, attacker_final_hp,
			defender_initial_units, defender_final_units,
			defender_initial_hp, defender_final_hp
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20)`,
		rec.ID, scenario, rec.Location.Q, rec.Location.R,
		rec.Terrain.String(), rec.Elevation, rec.Entrenched, rec.Building.String(),
		rec.Winner.String(), rec.DurationTicks, rec.Duration, phases,
		rec.Attacker.InitialUnits, rec.Attacker.FinalUnits,
		rec.Attacker.InitialHP, rec.Attacker.FinalHP,
		rec.Defender.InitialUnits, rec.Defender.FinalUnits,
		rec.Defender.InitialHP, rec.Defender.FinalHP,
	)
	if err != nil {
		return fmt.Errorf("inserting combat record: %w", err)
	}

	for side, units := range map[string][]combat.UnitBreakdown{
		"attacker": rec.AttackerUnits,
		"defender": rec.DefenderUnits,
	} {
		for _, u := range units {
			_, err = tx.Exec(ctx,
				`INSERT INTO combat_record_units (
					record_id, side, unit_type, name, category,
					initial_count, final_count, casualties, damage_dealt
				) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
				rec.ID, side, u.UnitType, u.Name, u.Category.String(),
				u.InitialCount, u.FinalCount, u.Casualties, u.DamageDealt,
			)
			if err != nil {
				return fmt.Errorf("inserting unit breakdown %s/%s: %w", side, u.UnitType, err)
			}
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing combat record: %w", err)
	}
	return nil
}

// Get retrieves an archived combat record by ID, reconstructing the full
// report including unit breakdowns and phase history.
//
// Postcondition: Returns the record or ErrRecordNotFound.
func (r *RecordRepository) Get(ctx context.Context, id uuid.UUID) (*combat.DetailedCombatRecord, error) {
	var (
		rec         combat.DetailedCombatRecord
		terrainName string
		building    string
		winner      string
		phases      []byte
	)
	err := r.db.QueryRow(ctx,
		`SELECT id, location_q, location_r, terrain, elevation, entrenched,
			building, winner, duration_ticks, duration, phases,
			attacker_initial_units, attacker_final_units,
			attacker_initial_hp, attacker_final_hp,
			defender_initial_units, defender_final_units,
			defender_initial_hp, defender_final_hp
		 FROM combat_records WHERE id = $1`,
		id,
	).Scan(
		&rec.ID, &rec.Location.Q, &rec.Location.R, &terrainName, &rec.Elevation, &rec.Entrenched,
		&building, &winner, &rec.DurationTicks, &rec.Duration, &phases,
		&rec.Attacker.InitialUnits, &rec.Attacker.FinalUnits,
		&rec.Attacker.InitialHP, &rec.Attacker.FinalHP,
		&rec.Defender.InitialUnits, &rec.Defender.FinalUnits,
		&rec.Defender.InitialHP, &rec.Defender.FinalHP,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrRecordNotFound
		}
		return nil, fmt.Errorf("querying combat record: %w", err)
	}

	if rec.Terrain, err = terrain.ParseType(terrainName); err != nil {
		return nil, fmt.Errorf("decoding combat record %s: %w", id, err)
	}
	if rec.Building, err = terrain.ParseBuilding(building); err != nil {
		return nil, fmt.Errorf("decoding combat record %s: %w", id, err)
	}
	rec.Winner = parseWinner(winner)
	rec.Modifiers = terrain.Resolve(rec.Terrain, rec.Elevation, rec.Entrenched, rec.Building)
	rec.Attacker.TotalCasualties = rec.Attacker.InitialUnits - rec.Attacker.FinalUnits
	rec.Defender.TotalCasualties = rec.Defender.InitialUnits - rec.Defender.FinalUnits

	if err := json.Unmarshal(phases, &rec.Phases); err != nil {
		return nil, fmt.Errorf("decoding phase history for %s: %w", id, err)
	}

	rows, err := r.db.Query(ctx,
		`SELECT side, unit_type, name, category,
			initial_count, final_count, casualties, damage_dealt
		 FROM combat_record_units WHERE record_id = $1
		 ORDER BY side, category, unit_type`,
		id,
	)
	if err != nil {
		return nil, fmt.Errorf("querying unit breakdowns: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			side     string
			category string
			u        combat.UnitBreakdown
		)
		if err := rows.Scan(&side, &u.UnitType, &u.Name, &category,
			&u.InitialCount, &u.FinalCount, &u.Casualties, &u.DamageDealt); err != nil {
			return nil, fmt.Errorf("scanning unit breakdown: %w", err)
		}
		if u.Category, err = profile.ParseCategory(category); err != nil {
			return nil, fmt.Errorf("decoding unit breakdown for %s: %w", id, err)
		}
		switch side {
		case "attacker":
			rec.AttackerUnits = append(rec.AttackerUnits, u)
		case "defender":
			rec.DefenderUnits = append(rec.DefenderUnits, u)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading unit breakdowns: %w", err)
	}

	return &rec, nil
}

// ListRecent returns summaries of the most recently archived combats,
// newest first.
//
// Precondition: limit must be >= 1.
func (r *RecordRepository) ListRecent(ctx context.Context, limit int) ([]RecordSummary, error) {
	rows, err := r.db.Query(ctx,
		`SELECT id, scenario, winner, duration_ticks, created_at
		 FROM combat_records
		 ORDER BY created_at DESC, id DESC
		 LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("listing combat records: %w", err)
	}
	defer rows.Close()

	var out []RecordSummary
	for rows.Next() {
		var (
			s      RecordSummary
			winner string
		)
		if err := rows.Scan(&s.ID, &s.Scenario, &winner, &s.DurationTicks, &s.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning combat record summary: %w", err)
		}
		s.Winner = parseWinner(winner)
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading combat record summaries: %w", err)
	}
	return out, nil
}

// parseWinner maps the stored winner label back to its enum value. Unknown
// labels decode as WinnerUndecided.
func parseWinner(s string) combat.Winner {
	for _, w := range []combat.Winner{combat.AttackerVictory, combat.DefenderVictory, combat.Draw} {
		if w.String() == s {
			return w
		}
	}
	return combat.WinnerUndecided
}
