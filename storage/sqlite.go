package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"argus/core"
)

const alertSchema = `
CREATE TABLE IF NOT EXISTS alerts (
	alert_id      TEXT NOT NULL,
	source_ip     TEXT NOT NULL,
	event_type    TEXT NOT NULL,
	severity      TEXT NOT NULL,
	anomaly_score REAL NOT NULL,
	matched_rules TEXT NOT NULL,
	first_seen    REAL NOT NULL,
	last_seen     REAL NOT NULL,
	message       TEXT NOT NULL,
	archived_at   TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_alerts_severity ON alerts(severity);
`

// AlertStore is the local alert artifact. Every run's alerts are appended
// here before transport is attempted, so a delivery failure never loses
// the computed alerts.
type AlertStore struct {
	db     *sql.DB
	logger *zap.SugaredLogger
}

// OpenAlertStore opens (and if needed creates) the sqlite artifact at path.
func OpenAlertStore(path string, logger *zap.SugaredLogger) (*AlertStore, error) {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open alert store %s: %w", path, err)
	}
	if _, err := db.Exec(alertSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize alert store schema: %w", err)
	}

	return &AlertStore{db: db, logger: logger}, nil
}

// Archive appends the run's alerts to the artifact in one transaction.
func (s *AlertStore) Archive(ctx context.Context, alerts []*core.Alert) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin archive transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO alerts
		(alert_id, source_ip, event_type, severity, anomaly_score, matched_rules, first_seen, last_seen, message, archived_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare archive insert: %w", err)
	}
	defer stmt.Close()

	archivedAt := time.Now().UTC().Format(time.RFC3339)
	for _, alert := range alerts {
		rules, err := json.Marshal(alert.MatchedRules)
		if err != nil {
			return fmt.Errorf("failed to encode matched rules for alert %s: %w", alert.ID, err)
		}
		if _, err := stmt.ExecContext(ctx,
			alert.ID, alert.SourceIP, alert.Key.EventType, alert.UnifiedSeverity,
			alert.AnomalyScore, string(rules), alert.FirstSeen, alert.LastSeen,
			alert.Message, archivedAt,
		); err != nil {
			return fmt.Errorf("failed to archive alert %s: %w", alert.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit archive transaction: %w", err)
	}

	s.logger.Debugw("archived alerts", "count", len(alerts))
	return nil
}

// Count returns the number of archived alerts, optionally filtered by
// severity ("" counts everything).
func (s *AlertStore) Count(ctx context.Context, severity string) (int, error) {
	var (
		count int
		err   error
	)
	if severity == "" {
		err = s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM alerts`).Scan(&count)
	} else {
		err = s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM alerts WHERE severity = ?`, severity).Scan(&count)
	}
	if err != nil {
		return 0, fmt.Errorf("failed to count archived alerts: %w", err)
	}
	return count, nil
}

// Close closes the underlying database.
func (s *AlertStore) Close() error {
	return s.db.Close()
}
