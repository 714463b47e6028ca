package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/lib/pq"
	cfgpkg "github.com/sweetpotato0/ticketpilot/config"
	"github.com/sweetpotato0/ticketpilot/escalation"
	"github.com/sweetpotato0/ticketpilot/pkg/env"
)

// PostgresConfig holds PostgreSQL connection configuration
type PostgresConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// PostgresConfigFromEnv loads PostgreSQL configuration from environment variables
func PostgresConfigFromEnv() *PostgresConfig {
	return &PostgresConfig{
		Host:     env.GetEnv("POSTGRES_HOST", "localhost"),
		Port:     env.GetEnvInt("POSTGRES_PORT", 5432),
		User:     env.GetEnv("POSTGRES_USER", "postgres"),
		Password: env.GetEnv("POSTGRES_PASSWORD", ""),
		DBName:   env.GetEnv("POSTGRES_DB", "ticketpilot"),
		SSLMode:  env.GetEnv("POSTGRES_SSLMODE", "disable"),
	}
}

// PostgresLog implements the escalation log on PostgreSQL. Each record is
// inserted in a single statement, so concurrent workflow runs append
// atomically.
type PostgresLog struct {
	db *sql.DB
}

// NewPostgresLog connects and ensures the escalations table exists.
func NewPostgresLog(config *PostgresConfig) (*PostgresLog, error) {
	if config == nil {
		config = PostgresConfigFromEnv()
	}
	if err := cfgpkg.ValidatePostgresConfig(config.Host, config.Port, config.User, config.DBName, config.SSLMode); err != nil {
		return nil, err
	}

	dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		config.Host, config.Port, config.User, config.Password, config.DBName, config.SSLMode)

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to PostgreSQL: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping PostgreSQL: %w", err)
	}

	log := &PostgresLog{db: db}
	if err := log.createTable(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create table: %w", err)
	}
	return log, nil
}

func (l *PostgresLog) createTable(ctx context.Context) error {
	query := `
	CREATE TABLE IF NOT EXISTS escalations (
		id BIGSERIAL PRIMARY KEY,
		ts TIMESTAMPTZ NOT NULL,
		ticket_id VARCHAR(255) NOT NULL,
		subject TEXT NOT NULL,
		description TEXT NOT NULL,
		category VARCHAR(64),
		classification_confidence DOUBLE PRECISION,
		num_drafts INT NOT NULL,
		num_reviews INT NOT NULL,
		final_review_score DOUBLE PRECISION,
		escalation_reason TEXT NOT NULL,
		failed_drafts JSONB,
		reviewer_feedback JSONB
	);
	CREATE INDEX IF NOT EXISTS idx_escalations_ts ON escalations(ts);
	CREATE INDEX IF NOT EXISTS idx_escalations_ticket_id ON escalations(ticket_id);
	`
	_, err := l.db.ExecContext(ctx, query)
	return err
}

// Append inserts one escalation record.
func (l *PostgresLog) Append(ctx context.Context, record escalation.Record) error {
	drafts, err := json.Marshal(record.FailedDrafts)
	if err != nil {
		return fmt.Errorf("marshal failed drafts: %w", err)
	}
	feedback, err := json.Marshal(record.ReviewerFeedback)
	if err != nil {
		return fmt.Errorf("marshal reviewer feedback: %w", err)
	}

	query := `
	INSERT INTO escalations
		(ts, ticket_id, subject, description, category, classification_confidence,
		 num_drafts, num_reviews, final_review_score, escalation_reason,
		 failed_drafts, reviewer_feedback)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`
	_, err = l.db.ExecContext(ctx, query,
		record.Timestamp, record.TicketID, record.Subject, record.Description,
		record.Category, record.Confidence, record.NumDrafts, record.NumReviews,
		record.FinalReviewScore, record.Reason, drafts, feedback)
	if err != nil {
		return fmt.Errorf("failed to append escalation: %w", err)
	}
	return nil
}

// List returns all records sorted by timestamp ascending.
func (l *PostgresLog) List(ctx context.Context) ([]escalation.Record, error) {
	query := `
	SELECT ts, ticket_id, subject, description, category, classification_confidence,
	       num_drafts, num_reviews, final_review_score, escalation_reason,
	       failed_drafts, reviewer_feedback
	FROM escalations
	ORDER BY ts ASC
	`
	rows, err := l.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list escalations: %w", err)
	}
	defer rows.Close()

	var records []escalation.Record
	for rows.Next() {
		var rec escalation.Record
		var drafts, feedback []byte
		err := rows.Scan(&rec.Timestamp, &rec.TicketID, &rec.Subject, &rec.Description,
			&rec.Category, &rec.Confidence, &rec.NumDrafts, &rec.NumReviews,
			&rec.FinalReviewScore, &rec.Reason, &drafts, &feedback)
		if err != nil {
			return nil, fmt.Errorf("failed to scan escalation: %w", err)
		}
		if len(drafts) > 0 {
			if err := json.Unmarshal(drafts, &rec.FailedDrafts); err != nil {
				return nil, fmt.Errorf("unmarshal failed drafts: %w", err)
			}
		}
		if len(feedback) > 0 {
			if err := json.Unmarshal(feedback, &rec.ReviewerFeedback); err != nil {
				return nil, fmt.Errorf("unmarshal reviewer feedback: %w", err)
			}
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating escalations: %w", err)
	}
	return records, nil
}

// Close closes the database connection.
func (l *PostgresLog) Close() error {
	return l.db.Close()
}

// Ping checks if the connection is alive.
func (l *PostgresLog) Ping(ctx context.Context) error {
	return l.db.PingContext(ctx)
}
