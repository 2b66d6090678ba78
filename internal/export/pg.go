package export

import (
	"context"
	"fmt"
	"utmbindex-backend/internal/components/telemetry"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	_ "embed"
)

//go:embed pg_schema.sql
var pgSchema string

const (
	report_pg_write = "pg.write"

	DefaultPgMaxConns  = 2
	DefaultPgBatchSize = 500
)

type PgOptions struct {
	DSN      string
	MaxConns int
	// ViaBouncer switches to the simple protocol, pgbouncer in transaction mode cannot
	// hold prepared statements.
	ViaBouncer bool
	BatchSize  int
	Tel        telemetry.API
}

// PgSink upserts into postgres. Races and runners are updated in place, their results
// and participations are replaced.
type PgSink struct {
	pool      *pgxpool.Pool
	batchSize int
	tel       telemetry.API
}

func NewPgSink(ctx context.Context, opts PgOptions) (*PgSink, error) {
	cfg, err := pgxpool.ParseConfig(opts.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if opts.MaxConns <= 0 {
		opts.MaxConns = DefaultPgMaxConns
	}
	cfg.MaxConns = int32(opts.MaxConns)
	if opts.ViaBouncer {
		cfg.ConnConfig.DefaultQueryExecMode = pgx.QueryExecModeSimpleProtocol
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = DefaultPgBatchSize
	}
	if opts.Tel == nil {
		opts.Tel = telemetry.Nop{}
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}
	return &PgSink{
		pool:      pool,
		batchSize: opts.BatchSize,
		tel:       telemetry.NewScopedAPI("export", opts.Tel),
	}, nil
}

func (s *PgSink) Close() {
	s.pool.Close()
}

func (s *PgSink) Migrate(ctx context.Context) error {
	for _, stmt := range statements(pgSchema) {
		_, err := s.pool.Exec(ctx, stmt)
		if err != nil {
			return fmt.Errorf("create schema: %w", err)
		}
	}
	return nil
}

// batcher queues statements and sends them once batchSize are pending.
type batcher struct {
	ctx    context.Context
	tx     pgx.Tx
	size   int
	batch  *pgx.Batch
	queued int
}

func (b *batcher) queue(sql string, args ...any) error {
	if b.batch == nil {
		b.batch = &pgx.Batch{}
	}
	b.batch.Queue(sql, args...)
	b.queued++
	if b.queued >= b.size {
		return b.flush()
	}
	return nil
}

func (b *batcher) flush() error {
	if b.queued == 0 {
		return nil
	}
	br := b.tx.SendBatch(b.ctx, b.batch)
	for range b.queued {
		_, err := br.Exec()
		if err != nil {
			_ = br.Close()
			return err
		}
	}
	b.batch = nil
	b.queued = 0
	return br.Close()
}

func (s *PgSink) Write(ctx context.Context, data Dataset) (Counts, error) {
	err := s.Migrate(ctx)
	if err != nil {
		return Counts{}, err
	}

	races, results := raceRows(data.Races)
	runners, participations, err := runnerRows(data.Runners)
	if err != nil {
		return Counts{}, err
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return Counts{}, err
	}
	defer tx.Rollback(ctx)

	b := &batcher{ctx: ctx, tx: tx, size: s.batchSize}

	for _, r := range races {
		err := b.queue(
			`insert into race (key, uid, year, location, date, distance, elevation_gain)
			values ($1, $2, $3, $4, $5, $6, $7)
			on conflict (key) do update set
				uid = excluded.uid,
				year = excluded.year,
				location = excluded.location,
				date = excluded.date,
				distance = excluded.distance,
				elevation_gain = excluded.elevation_gain`,
			r.Key, r.UID, r.Year, r.Location, r.Date, r.Distance, r.ElevationGain,
		)
		if err == nil {
			err = b.queue("delete from result where race = $1", r.Key)
		}
		if err != nil {
			return Counts{}, fmt.Errorf("upsert races: %w", err)
		}
	}
	for _, r := range results {
		err := b.queue(
			`insert into result (race, position, rank, status, time, name, runner_id, nationality, age_category)
			values ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
			r.Race, r.Position, r.Rank, r.Status, r.Time, r.Name, r.RunnerID, r.Nationality, r.AgeCategory,
		)
		if err != nil {
			return Counts{}, fmt.Errorf("insert results: %w", err)
		}
	}
	for _, r := range runners {
		err := b.queue(
			`insert into runner (id, rank_position, name, age_group, nationality, club, sponsor, general_index, secondary_index, utmb_index)
			values ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10::jsonb)
			on conflict (id) do update set
				rank_position = excluded.rank_position,
				name = excluded.name,
				age_group = excluded.age_group,
				nationality = excluded.nationality,
				club = excluded.club,
				sponsor = excluded.sponsor,
				general_index = excluded.general_index,
				secondary_index = excluded.secondary_index,
				utmb_index = excluded.utmb_index`,
			r.ID, r.RankPosition, r.Name, r.AgeGroup, r.Nationality, r.Club, r.Sponsor,
			r.GeneralIndex, r.SecondaryIndex, r.UTMBIndex,
		)
		if err == nil {
			err = b.queue("delete from participation where runner_id = $1", r.ID)
		}
		if err != nil {
			return Counts{}, fmt.Errorf("upsert runners: %w", err)
		}
	}
	for _, p := range participations {
		err := b.queue(
			`insert into participation (runner_id, position, race, category, time, rank, gender_rank)
			values ($1, $2, $3, $4, $5, $6, $7)`,
			p.RunnerID, p.Position, p.Race, p.Category, p.Time, p.Rank, p.GenderRank,
		)
		if err != nil {
			return Counts{}, fmt.Errorf("insert participations: %w", err)
		}
	}
	for i, id := range data.RunnerIDs {
		err := b.queue(
			`insert into runner_id (id, position) values ($1, $2)
			on conflict (id) do update set position = excluded.position`,
			id, i+1,
		)
		if err != nil {
			return Counts{}, fmt.Errorf("upsert runner ids: %w", err)
		}
	}

	err = b.flush()
	if err == nil {
		err = tx.Commit(ctx)
	}
	if err != nil {
		s.tel.ReportBroken(report_pg_write, err)
		return Counts{}, err
	}

	counts := Counts{
		Races:          len(races),
		Results:        len(results),
		Runners:        len(runners),
		Participations: len(participations),
		RunnerIDs:      len(data.RunnerIDs),
	}
	s.tel.ReportCount(report_pg_write+".races", int64(counts.Races))
	s.tel.ReportCount(report_pg_write+".runners", int64(counts.Runners))
	return counts, nil
}
