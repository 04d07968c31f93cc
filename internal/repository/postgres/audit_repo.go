package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // Драйвер Postgres
	"github.com/xela07ax/zkspend-gateway/internal/audit"
)

// auditColumns: порядок колонок в batch insert
var auditColumns = []string{
	"id", "trace_id", "agent_id", "operation",
	"policy_name", "policy_version", "fingerprint",
	"proof_kind", "commitment", "recipient", "tx_hash",
	"status", "error", "duration_ms", "timestamp",
}

const auditSchema = `
CREATE TABLE IF NOT EXISTS proof_audit (
	id             UUID PRIMARY KEY,
	trace_id       TEXT NOT NULL,
	agent_id       TEXT NOT NULL DEFAULT '',
	operation      TEXT NOT NULL,
	policy_name    TEXT NOT NULL DEFAULT '',
	policy_version TEXT NOT NULL DEFAULT '',
	fingerprint    TEXT NOT NULL DEFAULT '',
	proof_kind     TEXT NOT NULL DEFAULT '',
	commitment     TEXT NOT NULL DEFAULT '',
	recipient      TEXT NOT NULL DEFAULT '',
	tx_hash        TEXT NOT NULL DEFAULT '',
	status         TEXT NOT NULL,
	error          TEXT NOT NULL DEFAULT '',
	duration_ms    BIGINT NOT NULL,
	timestamp      TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS proof_audit_policy_ts ON proof_audit (policy_name, timestamp DESC);`

type AuditRepo struct {
	db *sql.DB
}

// NewAuditRepo открывает пул через pgx stdlib. Соединение проверяется в Ping.
func NewAuditRepo(connString string, maxConns int) (*AuditRepo, error) {
	db, err := sql.Open("pgx", connString)
	if err != nil {
		return nil, fmt.Errorf("postgres: open: %w", err)
	}
	if maxConns <= 0 {
		maxConns = 15
	}
	db.SetMaxOpenConns(maxConns)
	db.SetMaxIdleConns(maxConns)
	db.SetConnMaxLifetime(5 * time.Minute)
	return &AuditRepo{db: db}, nil
}

func (r *AuditRepo) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// EnsureSchema создает таблицу журнала, если ее нет.
func (r *AuditRepo) EnsureSchema(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, auditSchema); err != nil {
		return fmt.Errorf("postgres: ensure audit schema: %w", err)
	}
	return nil
}

func (r *AuditRepo) Close() error {
	return r.db.Close()
}

func (r *AuditRepo) WriteBatch(ctx context.Context, events []audit.AuditEvent) error {
	if len(events) == 0 {
		return nil
	}
	query, vals := buildAuditInsert(events)
	_, err := r.db.ExecContext(ctx, query, vals...)
	return err
}

// buildAuditInsert строит один INSERT ... VALUES (...), (...) на всю пачку.
func buildAuditInsert(events []audit.AuditEvent) (string, []any) {
	numFields := len(auditColumns)
	rows := make([]string, 0, len(events))
	vals := make([]any, 0, len(events)*numFields)

	for i, e := range events {
		placeholders := make([]string, numFields)
		for j := range placeholders {
			placeholders[j] = fmt.Sprintf("$%d", i*numFields+j+1)
		}
		rows = append(rows, "("+strings.Join(placeholders, ", ")+")")

		vals = append(vals,
			e.ID, e.TraceID, e.AgentID, e.Operation,
			e.PolicyName, e.PolicyVersion, e.Fingerprint,
			e.ProofKind, e.Commitment, e.Recipient, e.TxHash,
			e.Status, e.Error, e.DurationMs, e.Timestamp,
		)
	}

	query := fmt.Sprintf("INSERT INTO proof_audit (%s) VALUES %s",
		strings.Join(auditColumns, ", "), strings.Join(rows, ", "))
	return query, vals
}
