package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/carebridge/leadtrust/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite. It serves
// single-node deployments and hermetic tests.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS leads (
	id              TEXT PRIMARY KEY,
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
	override_at     DATETIME,
	consent_at      DATETIME,
	created_at      DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at      DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS notes (
	id         TEXT PRIMARY KEY,
	lead_id    TEXT NOT NULL REFERENCES leads(id),
	body       TEXT NOT NULL,
	author     TEXT NOT NULL DEFAULT '',
	created_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS trust_rules (
	code       TEXT PRIMARY KEY,
	delta      INTEGER NOT NULL,
	active     INTEGER NOT NULL DEFAULT 1,
	scope      TEXT NOT NULL DEFAULT 'lead',
	position   INTEGER NOT NULL,
	updated_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS trust_score_events (
	id           TEXT PRIMARY KEY,
	lead_id      TEXT NOT NULL REFERENCES leads(id),
	kind         TEXT NOT NULL,
	score_before INTEGER NOT NULL,
	score_after  INTEGER NOT NULL,
	delta        INTEGER NOT NULL,
	metadata     TEXT,
	actor        TEXT NOT NULL DEFAULT '',
	created_at   DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS trust_rule_runs (
	id           TEXT PRIMARY KEY,
	run_id       TEXT NOT NULL,
	lead_id      TEXT NOT NULL REFERENCES leads(id),
	code         TEXT NOT NULL,
	delta        INTEGER NOT NULL,
	score_before INTEGER NOT NULL,
	score_after  INTEGER NOT NULL,
	position     INTEGER NOT NULL,
	created_at   DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS status_history (
	id          TEXT PRIMARY KEY,
	lead_id     TEXT NOT NULL REFERENCES leads(id),
	from_status TEXT NOT NULL,
	to_status   TEXT NOT NULL,
	actor       TEXT NOT NULL DEFAULT '',
	created_at  DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_leads_status ON leads(status);
CREATE INDEX IF NOT EXISTS idx_leads_trust_status ON leads(trust_status);
CREATE INDEX IF NOT EXISTS idx_notes_lead_id ON notes(lead_id);
CREATE INDEX IF NOT EXISTS idx_events_lead_id ON trust_score_events(lead_id);
CREATE INDEX IF NOT EXISTS idx_rule_runs_run_id ON trust_rule_runs(run_id);
CREATE INDEX IF NOT EXISTS idx_status_history_lead_id ON status_history(lead_id);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) CreateLead(ctx context.Context, lead model.Lead) (*model.Lead, error) {
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

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO leads (id, email, phone, first_name, display_name, locale, status,
		   rule_score, final_score, trust_status, consent_at, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		lead.ID, lead.Email, lead.Phone, lead.FirstName, lead.DisplayName, lead.Locale,
		string(lead.Status), lead.RuleScore, lead.FinalScore, string(lead.TrustStatus),
		lead.ConsentAt, lead.CreatedAt, lead.UpdatedAt,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: insert lead")
	}
	return &lead, nil
}

func (s *SQLiteStore) GetLead(ctx context.Context, id string) (*model.Lead, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+leadColumns+` FROM leads WHERE id = ?`, id)
	lead, err := scanLead(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, eris.Wrapf(ErrLeadNotFound, "sqlite: %s", id)
		}
		return nil, eris.Wrapf(err, "sqlite: get lead %s", id)
	}
	return lead, nil
}

func (s *SQLiteStore) ListLeads(ctx context.Context, filter LeadFilter) ([]model.Lead, error) {
	query := `SELECT ` + leadColumns + ` FROM leads WHERE 1=1`
	var args []any

	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, string(filter.Status))
	}
	if filter.TrustStatus != "" {
		query += ` AND trust_status = ?`
		args = append(args, string(filter.TrustStatus))
	} else if !filter.IncludeHidden {
		query += ` AND trust_status <> ?`
		args = append(args, string(model.TrustRiskyHidden))
	}
	query += ` ORDER BY created_at DESC`

	if filter.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, filter.Limit)
	} else if filter.Offset > 0 {
		// sqlite rejects OFFSET without LIMIT
		query += ` LIMIT -1`
	}

	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list leads")
	}
	defer rows.Close()

	var leads []model.Lead
	for rows.Next() {
		lead, err := scanLead(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan lead")
		}
		leads = append(leads, *lead)
	}
	return leads, eris.Wrap(rows.Err(), "sqlite: list leads iterate")
}

func (s *SQLiteStore) ChangeLeadStatus(ctx context.Context, id string, to model.LeadStatus, actor string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin status change")
	}
	defer tx.Rollback() //nolint:errcheck

	var from string
	err = tx.QueryRowContext(ctx, `SELECT status FROM leads WHERE id = ?`, id).Scan(&from)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return eris.Wrapf(ErrLeadNotFound, "sqlite: %s", id)
		}
		return eris.Wrapf(err, "sqlite: read lead status %s", id)
	}

	now := time.Now().UTC()
	_, err = tx.ExecContext(ctx,
		`UPDATE leads SET status = ?, updated_at = ? WHERE id = ?`,
		string(to), now, id,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update lead status %s", id)
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO status_history (id, lead_id, from_status, to_status, actor, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		uuid.New().String(), id, from, string(to), actor, now,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: insert status history %s", id)
	}

	return eris.Wrap(tx.Commit(), "sqlite: commit status change")
}

func (s *SQLiteStore) ListStatusChanges(ctx context.Context, leadID string) ([]model.StatusChange, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, lead_id, from_status, to_status, actor, created_at
		 FROM status_history WHERE lead_id = ? ORDER BY created_at ASC`,
		leadID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list status changes")
	}
	defer rows.Close()

	var changes []model.StatusChange
	for rows.Next() {
		var c model.StatusChange
		if err := rows.Scan(&c.ID, &c.LeadID, &c.From, &c.To, &c.Actor, &c.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan status change")
		}
		changes = append(changes, c)
	}
	return changes, eris.Wrap(rows.Err(), "sqlite: list status changes iterate")
}

func (s *SQLiteStore) AddNote(ctx context.Context, note model.Note) (*model.Note, error) {
	if note.ID == "" {
		note.ID = uuid.New().String()
	}
	note.CreatedAt = time.Now().UTC()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO notes (id, lead_id, body, author, created_at) VALUES (?, ?, ?, ?, ?)`,
		note.ID, note.LeadID, note.Body, note.Author, note.CreatedAt,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: insert note for lead %s", note.LeadID)
	}
	return &note, nil
}

func (s *SQLiteStore) CountNotes(ctx context.Context, leadID string) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM notes WHERE lead_id = ?`, leadID).Scan(&count)
	return count, eris.Wrap(err, "sqlite: count notes")
}

func (s *SQLiteStore) ListNotes(ctx context.Context, leadID string) ([]model.Note, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, lead_id, body, author, created_at FROM notes WHERE lead_id = ? ORDER BY created_at ASC`,
		leadID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list notes")
	}
	defer rows.Close()

	var notes []model.Note
	for rows.Next() {
		var n model.Note
		if err := rows.Scan(&n.ID, &n.LeadID, &n.Body, &n.Author, &n.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan note")
		}
		notes = append(notes, n)
	}
	return notes, eris.Wrap(rows.Err(), "sqlite: list notes iterate")
}

func (s *SQLiteStore) ListRules(ctx context.Context, scope model.RuleScope, activeOnly bool) ([]model.Rule, error) {
	query := `SELECT code, delta, active, scope, position, updated_at FROM trust_rules WHERE scope = ?`
	if activeOnly {
		query += ` AND active = 1`
	}
	query += ` ORDER BY position`

	rows, err := s.db.QueryContext(ctx, query, string(scope))
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list rules")
	}
	defer rows.Close()

	var rules []model.Rule
	for rows.Next() {
		var r model.Rule
		if err := rows.Scan(&r.Code, &r.Delta, &r.Active, &r.Scope, &r.Position, &r.UpdatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan rule")
		}
		rules = append(rules, r)
	}
	return rules, eris.Wrap(rows.Err(), "sqlite: list rules iterate")
}

func (s *SQLiteStore) UpdateRule(ctx context.Context, code string, delta int, active bool) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE trust_rules SET delta = ?, active = ?, updated_at = ? WHERE code = ?`,
		delta, active, time.Now().UTC(), code,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update rule %s", code)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "sqlite: rows affected")
	}
	if n == 0 {
		return eris.Wrapf(ErrRuleNotFound, "sqlite: %s", code)
	}
	return nil
}

func (s *SQLiteStore) SeedRules(ctx context.Context, rules []model.Rule) error {
	now := time.Now().UTC()
	for _, r := range rules {
		_, err := s.db.ExecContext(ctx,
			`INSERT INTO trust_rules (code, delta, active, scope, position, updated_at)
			 VALUES (?, ?, ?, ?, ?, ?)
			 ON CONFLICT (code) DO NOTHING`,
			r.Code, r.Delta, r.Active, string(r.Scope), r.Position, now,
		)
		if err != nil {
			return eris.Wrapf(err, "sqlite: seed rule %s", r.Code)
		}
	}
	return nil
}

func (s *SQLiteStore) ApplyScore(ctx context.Context, upd ScoreUpdate) error {
	metaJSON, err := upd.Event.MarshalMetadata()
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal event metadata")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin score update")
	}
	defer tx.Rollback() //nolint:errcheck

	now := time.Now().UTC()
	var res sql.Result

	switch {
	case upd.Override != nil:
		res, err = tx.ExecContext(ctx,
			`UPDATE leads SET rule_score = ?, final_score = ?, trust_status = ?,
			   override_score = ?, override_reason = ?, override_by = ?, override_at = ?,
			   updated_at = ?
			 WHERE id = ?`,
			upd.RuleScore, upd.FinalScore, string(upd.TrustStatus),
			upd.Override.Score, upd.Override.Reason, upd.Override.By, upd.Override.At,
			now, upd.LeadID,
		)
	case upd.ClearOverride:
		res, err = tx.ExecContext(ctx,
			`UPDATE leads SET rule_score = ?, final_score = ?, trust_status = ?,
			   override_score = NULL, override_reason = NULL, override_by = NULL, override_at = NULL,
			   updated_at = ?
			 WHERE id = ?`,
			upd.RuleScore, upd.FinalScore, string(upd.TrustStatus), now, upd.LeadID,
		)
	case upd.RuleScoreOnly:
		res, err = tx.ExecContext(ctx,
			`UPDATE leads SET rule_score = ?, updated_at = ? WHERE id = ?`,
			upd.RuleScore, now, upd.LeadID,
		)
	default:
		res, err = tx.ExecContext(ctx,
			`UPDATE leads SET rule_score = ?, final_score = ?, trust_status = ?, updated_at = ?
			 WHERE id = ?`,
			upd.RuleScore, upd.FinalScore, string(upd.TrustStatus), now, upd.LeadID,
		)
	}
	if err != nil {
		return eris.Wrapf(err, "sqlite: update lead score %s", upd.LeadID)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "sqlite: rows affected")
	}
	if n == 0 {
		return eris.Wrapf(ErrLeadNotFound, "sqlite: %s", upd.LeadID)
	}

	ev := upd.Event
	if ev.ID == "" {
		ev.ID = uuid.New().String()
	}
	var meta any
	if metaJSON != nil {
		meta = string(metaJSON)
	}
	_, err = tx.ExecContext(ctx,
		`INSERT INTO trust_score_events (id, lead_id, kind, score_before, score_after, delta, metadata, actor, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		ev.ID, upd.LeadID, string(ev.Kind), ev.ScoreBefore, ev.ScoreAfter, ev.Delta,
		meta, ev.Actor, now,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: insert score event for lead %s", upd.LeadID)
	}

	for _, a := range upd.Applied {
		_, err = tx.ExecContext(ctx,
			`INSERT INTO trust_rule_runs (id, run_id, lead_id, code, delta, score_before, score_after, position, created_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			uuid.New().String(), a.RunID, upd.LeadID, a.Code, a.Delta, a.ScoreBefore, a.ScoreAfter, a.Position, now,
		)
		if err != nil {
			return eris.Wrapf(err, "sqlite: insert rule run %s", a.Code)
		}
	}

	return eris.Wrap(tx.Commit(), "sqlite: commit score update")
}

func (s *SQLiteStore) ListEvents(ctx context.Context, leadID string) ([]model.TrustScoreEvent, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, lead_id, kind, score_before, score_after, delta, metadata, actor, created_at
		 FROM trust_score_events WHERE lead_id = ? ORDER BY created_at ASC`,
		leadID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list events")
	}
	defer rows.Close()

	var events []model.TrustScoreEvent
	for rows.Next() {
		var e model.TrustScoreEvent
		var meta sql.NullString
		if err := rows.Scan(&e.ID, &e.LeadID, &e.Kind, &e.ScoreBefore, &e.ScoreAfter, &e.Delta,
			&meta, &e.Actor, &e.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan event")
		}
		if meta.Valid {
			e.RawMetadata = []byte(meta.String)
		}
		events = append(events, e)
	}
	return events, eris.Wrap(rows.Err(), "sqlite: list events iterate")
}

func (s *SQLiteStore) CollectMetrics(ctx context.Context, since time.Time) (*model.TrustMetrics, error) {
	var m model.TrustMetrics

	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*),
		        COALESCE(SUM(CASE WHEN trust_status = 'active' THEN 1 ELSE 0 END), 0),
		        COALESCE(SUM(CASE WHEN trust_status = 'risky_hidden' THEN 1 ELSE 0 END), 0),
		        COALESCE(SUM(CASE WHEN trust_status = 'blacklisted' THEN 1 ELSE 0 END), 0),
		        COALESCE(SUM(CASE WHEN override_score IS NOT NULL THEN 1 ELSE 0 END), 0),
		        COALESCE(AVG(final_score), 0)
		 FROM leads`,
	).Scan(&m.TotalLeads, &m.ActiveLeads, &m.RiskyHiddenLeads, &m.BlacklistedLeads,
		&m.OverriddenLeads, &m.AvgFinalScore)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: lead metrics")
	}

	err = s.db.QueryRowContext(ctx,
		`SELECT COUNT(*),
		        COALESCE(SUM(CASE WHEN kind = 'rule_recalc' THEN 1 ELSE 0 END), 0),
		        COALESCE(SUM(CASE WHEN kind IN ('override_set', 'override_cleared') THEN 1 ELSE 0 END), 0)
		 FROM trust_score_events WHERE created_at >= ?`,
		since,
	).Scan(&m.EventsInWindow, &m.RecalcEvents, &m.OverrideEvents)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: event metrics")
	}

	return &m, nil
}

func (s *SQLiteStore) ListRuleApplications(ctx context.Context, runID string) ([]model.RuleApplication, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT run_id, lead_id, code, delta, score_before, score_after, position
		 FROM trust_rule_runs WHERE run_id = ? ORDER BY position`,
		runID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list rule runs")
	}
	defer rows.Close()

	var apps []model.RuleApplication
	for rows.Next() {
		var a model.RuleApplication
		if err := rows.Scan(&a.RunID, &a.LeadID, &a.Code, &a.Delta, &a.ScoreBefore, &a.ScoreAfter, &a.Position); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan rule run")
		}
		apps = append(apps, a)
	}
	return apps, eris.Wrap(rows.Err(), "sqlite: list rule runs iterate")
}
