package export

import (
	"context"
	"database/sql"
	"fmt"
	"utmbindex-backend/internal/components/telemetry"

	_ "embed"
)

//go:embed schema.sql
var sqlSchema string

const report_sql_write = "sql.write"

// SQLSink writes to a sqlite or libsql database. Every write replaces the previous
// contents of the tables inside one transaction.
type SQLSink struct {
	db  *sql.DB
	tel telemetry.API
}

func NewSQLSink(db *sql.DB, tel telemetry.API) SQLSink {
	if tel == nil {
		tel = telemetry.Nop{}
	}
	return SQLSink{
		db:  db,
		tel: telemetry.NewScopedAPI("export", tel),
	}
}

func (s SQLSink) Migrate(ctx context.Context) error {
	for _, stmt := range statements(sqlSchema) {
		_, err := s.db.ExecContext(ctx, stmt)
		if err != nil {
			return fmt.Errorf("create schema: %w", err)
		}
	}
	return nil
}

func (s SQLSink) Write(ctx context.Context, data Dataset) (Counts, error) {
	err := s.Migrate(ctx)
	if err != nil {
		return Counts{}, err
	}

	races, results := raceRows(data.Races)
	runners, participations, err := runnerRows(data.Runners)
	if err != nil {
		return Counts{}, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Counts{}, err
	}
	defer tx.Rollback()

	for _, table := range []string{"participation", "runner", "result", "race", "runner_id"} {
		_, err := tx.ExecContext(ctx, "delete from "+table)
		if err != nil {
			return Counts{}, fmt.Errorf("clear %s: %w", table, err)
		}
	}

	for _, r := range races {
		_, err := tx.ExecContext(
			ctx,
			`insert into race (key, uid, year, location, date, distance, elevation_gain)
			values (?, ?, ?, ?, ?, ?, ?)`,
			r.Key, r.UID, r.Year, r.Location, r.Date, r.Distance, r.ElevationGain,
		)
		if err != nil {
			return Counts{}, fmt.Errorf("insert race '%s': %w", r.Key, err)
		}
	}
	for _, r := range results {
		_, err := tx.ExecContext(
			ctx,
			`insert into result (race, position, rank, status, time, name, runner_id, nationality, age_category)
			values (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			r.Race, r.Position, r.Rank, r.Status, r.Time, r.Name, r.RunnerID, r.Nationality, r.AgeCategory,
		)
		if err != nil {
			return Counts{}, fmt.Errorf("insert result %s/%d: %w", r.Race, r.Position, err)
		}
	}
	for _, r := range runners {
		_, err := tx.ExecContext(
			ctx,
			`insert into runner (id, rank_position, name, age_group, nationality, club, sponsor, general_index, secondary_index, utmb_index)
			values (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			r.ID, r.RankPosition, r.Name, r.AgeGroup, r.Nationality, r.Club, r.Sponsor,
			r.GeneralIndex, r.SecondaryIndex, r.UTMBIndex,
		)
		if err != nil {
			return Counts{}, fmt.Errorf("insert runner '%s': %w", r.ID, err)
		}
	}
	for _, p := range participations {
		_, err := tx.ExecContext(
			ctx,
			`insert into participation (runner_id, position, race, category, time, rank, gender_rank)
			values (?, ?, ?, ?, ?, ?, ?)`,
			p.RunnerID, p.Position, p.Race, p.Category, p.Time, p.Rank, p.GenderRank,
		)
		if err != nil {
			return Counts{}, fmt.Errorf("insert participation %s/%d: %w", p.RunnerID, p.Position, err)
		}
	}
	for i, id := range data.RunnerIDs {
		_, err := tx.ExecContext(ctx, "insert into runner_id (id, position) values (?, ?)", id, i+1)
		if err != nil {
			return Counts{}, fmt.Errorf("insert runner id '%s': %w", id, err)
		}
	}

	err = tx.Commit()
	if err != nil {
		s.tel.ReportBroken(report_sql_write, err)
		return Counts{}, err
	}

	counts := Counts{
		Races:          len(races),
		Results:        len(results),
		Runners:        len(runners),
		Participations: len(participations),
		RunnerIDs:      len(data.RunnerIDs),
	}
	s.tel.ReportCount(report_sql_write+".races", int64(counts.Races))
	s.tel.ReportCount(report_sql_write+".runners", int64(counts.Runners))
	return counts, nil
}
