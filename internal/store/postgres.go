package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/carebridge/leadtrust/internal/db"
	"github.com/carebridge/leadtrust/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

const leadColumns = `id, email, phone, first_name, display_name, locale, status,
	rule_score, final_score, trust_status,
	override_score, override_reason, override_by, override_at,
	consent_at, created_at, updated_at`

// preparedStatements lists queries to prepare on each new connection
// for faster execution of the hottest store operations.
var preparedStatements = map[string]string{
	"get_lead":     `SELECT ` + leadColumns + ` FROM leads WHERE id = $1`,
	"count_notes":  `SELECT COUNT(*) FROM notes WHERE lead_id = $1`,
	"active_rules": `SELECT code, delta, active, scope, position, updated_at FROM trust_rules WHERE scope = $1 AND active = true ORDER BY position`,
	"insert_event": `INSERT INTO trust_score_events (id, lead_id, kind, score_before, score_after, delta, metadata, actor, created_at) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pgxCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		for name, sql := range preparedStatements {
			if _, err := conn.Prepare(ctx, name, sql); err != nil {
				return eris.Wrapf(err, "postgres: prepare %s", name)
			}
		}
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

// Pool returns the underlying database pool for subsystems that need
// direct query access (e.g., bulk lead import).
func (s *PostgresStore) Pool() db.Pool {
	return s.pool
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS leads (
	id              TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	email           TEXT NOT NULL DEFAULT '',
	phone           TEXT NOT NULL DEFAULT '',
	first_name      TEXT NOT NULL DEFAULT '',
	display_name    TEXT NOT NULL DEFAULT '',
	locale          TEXT NOT NULL DEFAULT '',
	status          TEXT NOT NULL DEFAULT 'new',
	rule_score      INTEGER NOT NULL DEFAULT 80,
	final_score     INTEGER NOT NULL DEFAULT 80,
	trust_status    TEXT NOT NULL DEFAULT 'active',
	override_score  INTEGER,
	override_reason TEXT,
	override_by     TEXT,
	override_at     TIMESTAMPTZ,
	consent_at      TIMESTAMPTZ,
	created_at      TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at      TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS notes (
	id         TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	lead_id    TEXT NOT NULL REFERENCES leads(id),
	body       TEXT NOT NULL,
	author     TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS trust_rules (
	code       TEXT PRIMARY KEY,
	delta      INTEGER NOT NULL,
	active     BOOLEAN NOT NULL DEFAULT true,
	scope      TEXT NOT NULL DEFAULT 'lead',
	position   INTEGER NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS trust_score_events (
	id           TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	lead_id      TEXT NOT NULL REFERENCES leads(id),
	kind         TEXT NOT NULL,
	score_before INTEGER NOT NULL,
	score_after  INTEGER NOT NULL,
	delta        INTEGER NOT NULL,
	metadata     JSONB,
	actor        TEXT NOT NULL DEFAULT '',
	created_at   TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS trust_rule_runs (
	id           TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	run_id       TEXT NOT NULL,
	lead_id      TEXT NOT NULL REFERENCES leads(id),
	code         TEXT NOT NULL,
	delta        INTEGER NOT NULL,
	score_before INTEGER NOT NULL,
	score_after  INTEGER NOT NULL,
	position     INTEGER NOT NULL,
	created_at   TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS status_history (
	id          TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	lead_id     TEXT NOT NULL REFERENCES leads(id),
	from_status TEXT NOT NULL,
	to_status   TEXT NOT NULL,
	actor       TEXT NOT NULL DEFAULT '',
	created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_leads_status ON leads(status);
CREATE INDEX IF NOT EXISTS idx_leads_trust_status ON leads(trust_status);
CREATE INDEX IF NOT EXISTS idx_notes_lead_id ON notes(lead_id);
CREATE INDEX IF NOT EXISTS idx_events_lead_id ON trust_score_events(lead_id);
CREATE INDEX IF NOT EXISTS idx_rule_runs_run_id ON trust_rule_runs(run_id);
CREATE INDEX IF NOT EXISTS idx_status_history_lead_id ON status_history(lead_id);
`

func (s *PostgresStore) Ping(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, "SELECT 1")
	return eris.Wrap(err, "postgres: ping")
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func (s *PostgresStore) CreateLead(ctx context.Context, lead model.Lead) (*model.Lead, error) {
	if lead.ID == "" {
		lead.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	lead.CreatedAt = now
	lead.UpdatedAt = now
	if lead.Status == "" {
		lead.Status = model.LeadStatusNew
	}
	if lead.TrustStatus == "" {
		lead.RuleScore = 80
		lead.FinalScore = 80
		lead.TrustStatus = model.TrustActive
	}

	_, err := s.pool.Exec(ctx,
		`INSERT INTO leads (id, email, phone, first_name, display_name, locale, status,
		   rule_score, final_score, trust_status, consent_at, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		lead.ID, lead.Email, lead.Phone, lead.FirstName, lead.DisplayName, lead.Locale,
		string(lead.Status), lead.RuleScore, lead.FinalScore, string(lead.TrustStatus),
		lead.ConsentAt, lead.CreatedAt, lead.UpdatedAt,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: insert lead")
	}
	return &lead, nil
}

func (s *PostgresStore) GetLead(ctx context.Context, id string) (*model.Lead, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+leadColumns+` FROM leads WHERE id = $1`, id)
	lead, err := scanLead(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, eris.Wrapf(ErrLeadNotFound, "postgres: %s", id)
		}
		return nil, eris.Wrapf(err, "postgres: get lead %s", id)
	}
	return lead, nil
}

func (s *PostgresStore) ListLeads(ctx context.Context, filter LeadFilter) ([]model.Lead, error) {
	query := `SELECT ` + leadColumns + ` FROM leads WHERE true`
	args := []any{}
	argIdx := 1

	if filter.Status != "" {
		query += fmt.Sprintf(` AND status = $%d`, argIdx)
		args = append(args, string(filter.Status))
		argIdx++
	}
	if filter.TrustStatus != "" {
		query += fmt.Sprintf(` AND trust_status = $%d`, argIdx)
		args = append(args, string(filter.TrustStatus))
		argIdx++
	} else if !filter.IncludeHidden {
		query += fmt.Sprintf(` AND trust_status <> $%d`, argIdx)
		args = append(args, string(model.TrustRiskyHidden))
		argIdx++
	}
	query += ` ORDER BY created_at DESC`

	if filter.Limit > 0 {
		query += fmt.Sprintf(` LIMIT $%d`, argIdx)
		args = append(args, filter.Limit)
		argIdx++
	}

	if filter.Offset > 0 {
		query += fmt.Sprintf(` OFFSET $%d`, argIdx)
		args = append(args, filter.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list leads")
	}
	defer rows.Close()

	var leads []model.Lead
	for rows.Next() {
		lead, err := scanLead(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan lead")
		}
		leads = append(leads, *lead)
	}
	return leads, eris.Wrap(rows.Err(), "postgres: list leads iterate")
}

// ChangeLeadStatus updates the lifecycle status and appends the status
// transition record in one transaction.
func (s *PostgresStore) ChangeLeadStatus(ctx context.Context, id string, to model.LeadStatus, actor string) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return eris.Wrap(err, "postgres: begin status change")
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	var from string
	err = tx.QueryRow(ctx, `SELECT status FROM leads WHERE id = $1 FOR UPDATE`, id).Scan(&from)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return eris.Wrapf(ErrLeadNotFound, "postgres: %s", id)
		}
		return eris.Wrapf(err, "postgres: lock lead %s", id)
	}

	now := time.Now().UTC()
	_, err = tx.Exec(ctx,
		`UPDATE leads SET status = $1, updated_at = $2 WHERE id = $3`,
		string(to), now, id,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: update lead status %s", id)
	}

	_, err = tx.Exec(ctx,
		`INSERT INTO status_history (id, lead_id, from_status, to_status, actor, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		uuid.New().String(), id, from, string(to), actor, now,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: insert status history %s", id)
	}

	return eris.Wrap(tx.Commit(ctx), "postgres: commit status change")
}

func (s *PostgresStore) ListStatusChanges(ctx context.Context, leadID string) ([]model.StatusChange, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, lead_id, from_status, to_status, actor, created_at
		 FROM status_history WHERE lead_id = $1 ORDER BY created_at ASC`,
		leadID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list status changes")
	}
	defer rows.Close()

	var changes []model.StatusChange
	for rows.Next() {
		var c model.StatusChange
		if err := rows.Scan(&c.ID, &c.LeadID, &c.From, &c.To, &c.Actor, &c.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan status change")
		}
		changes = append(changes, c)
	}
	return changes, eris.Wrap(rows.Err(), "postgres: list status changes iterate")
}

func (s *PostgresStore) AddNote(ctx context.Context, note model.Note) (*model.Note, error) {
	if note.ID == "" {
		note.ID = uuid.New().String()
	}
	note.CreatedAt = time.Now().UTC()

	_, err := s.pool.Exec(ctx,
		`INSERT INTO notes (id, lead_id, body, author, created_at) VALUES ($1, $2, $3, $4, $5)`,
		note.ID, note.LeadID, note.Body, note.Author, note.CreatedAt,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: insert note for lead %s", note.LeadID)
	}
	return &note, nil
}

func (s *PostgresStore) CountNotes(ctx context.Context, leadID string) (int, error) {
	var count int
	err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM notes WHERE lead_id = $1`, leadID).Scan(&count)
	return count, eris.Wrap(err, "postgres: count notes")
}

func (s *PostgresStore) ListNotes(ctx context.Context, leadID string) ([]model.Note, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, lead_id, body, author, created_at FROM notes WHERE lead_id = $1 ORDER BY created_at ASC`,
		leadID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list notes")
	}
	defer rows.Close()

	var notes []model.Note
	for rows.Next() {
		var n model.Note
		if err := rows.Scan(&n.ID, &n.LeadID, &n.Body, &n.Author, &n.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan note")
		}
		notes = append(notes, n)
	}
	return notes, eris.Wrap(rows.Err(), "postgres: list notes iterate")
}

func (s *PostgresStore) ListRules(ctx context.Context, scope model.RuleScope, activeOnly bool) ([]model.Rule, error) {
	query := `SELECT code, delta, active, scope, position, updated_at FROM trust_rules WHERE scope = $1`
	if activeOnly {
		query += ` AND active = true`
	}
	query += ` ORDER BY position`

	rows, err := s.pool.Query(ctx, query, string(scope))
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list rules")
	}
	defer rows.Close()

	var rules []model.Rule
	for rows.Next() {
		var r model.Rule
		if err := rows.Scan(&r.Code, &r.Delta, &r.Active, &r.Scope, &r.Position, &r.UpdatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan rule")
		}
		rules = append(rules, r)
	}
	return rules, eris.Wrap(rows.Err(), "postgres: list rules iterate")
}

func (s *PostgresStore) UpdateRule(ctx context.Context, code string, delta int, active bool) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE trust_rules SET delta = $1, active = $2, updated_at = $3 WHERE code = $4`,
		delta, active, time.Now().UTC(), code,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: update rule %s", code)
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(ErrRuleNotFound, "postgres: %s", code)
	}
	return nil
}

// SeedRules inserts catalog entries that do not exist yet. Existing
// rules keep their admin-edited delta/active values.
func (s *PostgresStore) SeedRules(ctx context.Context, rules []model.Rule) error {
	now := time.Now().UTC()
	for _, r := range rules {
		_, err := s.pool.Exec(ctx,
			`INSERT INTO trust_rules (code, delta, active, scope, position, updated_at)
			 VALUES ($1, $2, $3, $4, $5, $6)
			 ON CONFLICT (code) DO NOTHING`,
			r.Code, r.Delta, r.Active, string(r.Scope), r.Position, now,
		)
		if err != nil {
			return eris.Wrapf(err, "postgres: seed rule %s", r.Code)
		}
	}
	return nil
}

// ApplyScore writes one scoring transition: the lead's score fields
// (and override columns when the update sets or clears one), the audit
// event, and any per-rule run records, all in a single transaction.
func (s *PostgresStore) ApplyScore(ctx context.Context, upd ScoreUpdate) error {
	metaJSON, err := upd.Event.MarshalMetadata()
	if err != nil {
		return eris.Wrap(err, "postgres: marshal event metadata")
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return eris.Wrap(err, "postgres: begin score update")
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	now := time.Now().UTC()
	var tag pgconn.CommandTag

	switch {
	case upd.Override != nil:
		tag, err = tx.Exec(ctx,
			`UPDATE leads SET rule_score = $1, final_score = $2, trust_status = $3,
			   override_score = $4, override_reason = $5, override_by = $6, override_at = $7,
			   updated_at = $8
			 WHERE id = $9`,
			upd.RuleScore, upd.FinalScore, string(upd.TrustStatus),
			upd.Override.Score, upd.Override.Reason, upd.Override.By, upd.Override.At,
			now, upd.LeadID,
		)
	case upd.ClearOverride:
		tag, err = tx.Exec(ctx,
			`UPDATE leads SET rule_score = $1, final_score = $2, trust_status = $3,
			   override_score = NULL, override_reason = NULL, override_by = NULL, override_at = NULL,
			   updated_at = $4
			 WHERE id = $5`,
			upd.RuleScore, upd.FinalScore, string(upd.TrustStatus), now, upd.LeadID,
		)
	case upd.RuleScoreOnly:
		tag, err = tx.Exec(ctx,
			`UPDATE leads SET rule_score = $1, updated_at = $2 WHERE id = $3`,
			upd.RuleScore, now, upd.LeadID,
		)
	default:
		tag, err = tx.Exec(ctx,
			`UPDATE leads SET rule_score = $1, final_score = $2, trust_status = $3, updated_at = $4
			 WHERE id = $5`,
			upd.RuleScore, upd.FinalScore, string(upd.TrustStatus), now, upd.LeadID,
		)
	}
	if err != nil {
		return eris.Wrapf(err, "postgres: update lead score %s", upd.LeadID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(ErrLeadNotFound, "postgres: %s", upd.LeadID)
	}

	ev := upd.Event
	if ev.ID == "" {
		ev.ID = uuid.New().String()
	}
	_, err = tx.Exec(ctx,
		`INSERT INTO trust_score_events (id, lead_id, kind, score_before, score_after, delta, metadata, actor, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		ev.ID, upd.LeadID, string(ev.Kind), ev.ScoreBefore, ev.ScoreAfter, ev.Delta,
		metaJSON, ev.Actor, now,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: insert score event for lead %s", upd.LeadID)
	}

	for _, a := range upd.Applied {
		_, err = tx.Exec(ctx,
			`INSERT INTO trust_rule_runs (id, run_id, lead_id, code, delta, score_before, score_after, position, created_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
			uuid.New().String(), a.RunID, upd.LeadID, a.Code, a.Delta, a.ScoreBefore, a.ScoreAfter, a.Position, now,
		)
		if err != nil {
			return eris.Wrapf(err, "postgres: insert rule run %s", a.Code)
		}
	}

	return eris.Wrap(tx.Commit(ctx), "postgres: commit score update")
}

func (s *PostgresStore) ListEvents(ctx context.Context, leadID string) ([]model.TrustScoreEvent, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, lead_id, kind, score_before, score_after, delta, metadata, actor, created_at
		 FROM trust_score_events WHERE lead_id = $1 ORDER BY created_at ASC`,
		leadID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list events")
	}
	defer rows.Close()

	var events []model.TrustScoreEvent
	for rows.Next() {
		var e model.TrustScoreEvent
		var meta []byte
		if err := rows.Scan(&e.ID, &e.LeadID, &e.Kind, &e.ScoreBefore, &e.ScoreAfter, &e.Delta,
			&meta, &e.Actor, &e.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan event")
		}
		e.RawMetadata = meta
		events = append(events, e)
	}
	return events, eris.Wrap(rows.Err(), "postgres: list events iterate")
}

func (s *PostgresStore) ListRuleApplications(ctx context.Context, runID string) ([]model.RuleApplication, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT run_id, lead_id, code, delta, score_before, score_after, position
		 FROM trust_rule_runs WHERE run_id = $1 ORDER BY position`,
		runID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list rule runs")
	}
	defer rows.Close()

	var apps []model.RuleApplication
	for rows.Next() {
		var a model.RuleApplication
		if err := rows.Scan(&a.RunID, &a.LeadID, &a.Code, &a.Delta, &a.ScoreBefore, &a.ScoreAfter, &a.Position); err != nil {
			return nil, eris.Wrap(err, "postgres: scan rule run")
		}
		apps = append(apps, a)
	}
	return apps, eris.Wrap(rows.Err(), "postgres: list rule runs iterate")
}

func (s *PostgresStore) CollectMetrics(ctx context.Context, since time.Time) (*model.TrustMetrics, error) {
	var m model.TrustMetrics

	err := s.pool.QueryRow(ctx,
		`SELECT COUNT(*),
		        COUNT(*) FILTER (WHERE trust_status = 'active'),
		        COUNT(*) FILTER (WHERE trust_status = 'risky_hidden'),
		        COUNT(*) FILTER (WHERE trust_status = 'blacklisted'),
		        COUNT(override_score),
		        COALESCE(AVG(final_score), 0)
		 FROM leads`,
	).Scan(&m.TotalLeads, &m.ActiveLeads, &m.RiskyHiddenLeads, &m.BlacklistedLeads,
		&m.OverriddenLeads, &m.AvgFinalScore)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: lead metrics")
	}

	err = s.pool.QueryRow(ctx,
		`SELECT COUNT(*),
		        COUNT(*) FILTER (WHERE kind = 'rule_recalc'),
		        COUNT(*) FILTER (WHERE kind IN ('override_set', 'override_cleared'))
		 FROM trust_score_events WHERE created_at >= $1`,
		since,
	).Scan(&m.EventsInWindow, &m.RecalcEvents, &m.OverrideEvents)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: event metrics")
	}

	return &m, nil
}

type scannable interface {
	Scan(dest ...any) error
}

func scanLead(row scannable) (*model.Lead, error) {
	var l model.Lead
	var overrideReason, overrideBy *string
	err := row.Scan(
		&l.ID, &l.Email, &l.Phone, &l.FirstName, &l.DisplayName, &l.Locale, &l.Status,
		&l.RuleScore, &l.FinalScore, &l.TrustStatus,
		&l.OverrideScore, &overrideReason, &overrideBy, &l.OverrideAt,
		&l.ConsentAt, &l.CreatedAt, &l.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if overrideReason != nil {
		l.OverrideReason = *overrideReason
	}
	if overrideBy != nil {
		l.OverrideBy = *overrideBy
	}
	return &l, nil
}
