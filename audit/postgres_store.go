package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"math/big"
	"time"

	_ "github.com/lib/pq"
)

// PostgresStore implements Store with PostgreSQL persistence.
type PostgresStore struct {
	db *sql.DB
}

// PostgresConfig contains PostgreSQL connection settings.
type PostgresConfig struct {
	Host     string `json:"host" yaml:"host"`
	Port     int    `json:"port" yaml:"port"`
	User     string `json:"user" yaml:"user"`
	Password string `json:"password" yaml:"password"`
	Database string `json:"database" yaml:"database"`
	SSLMode  string `json:"sslmode" yaml:"sslmode"`
}

// ConnectionString returns the PostgreSQL connection string.
func (c *PostgresConfig) ConnectionString() string {
	sslMode := c.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, sslMode)
}

// NewPostgresStore creates a new PostgreSQL-backed store.
func NewPostgresStore(config *PostgresConfig) (*PostgresStore, error) {
	return OpenPostgresStore(config.ConnectionString())
}

// OpenPostgresStore connects using a raw connection string and runs
// migrations.
func OpenPostgresStore(dsn string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(5 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	store := &PostgresStore{db: db}
	if err := store.migrate(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return store, nil
}

func (s *PostgresStore) migrate(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS insecure_reports (
		id BIGSERIAL PRIMARY KEY,
		name VARCHAR(256) NOT NULL,
		participant_id VARCHAR(128) NOT NULL,
		value NUMERIC NOT NULL,
		reported_at TIMESTAMP WITH TIME ZONE NOT NULL
	);

	CREATE TABLE IF NOT EXISTS secure_reports (
		id BIGSERIAL PRIMARY KEY,
		name VARCHAR(256) NOT NULL,
		participant_id VARCHAR(128) NOT NULL,
		fingerprint VARCHAR(64) NOT NULL,
		masked_value NUMERIC NOT NULL,
		perturbations JSONB NOT NULL,
		reported_at TIMESTAMP WITH TIME ZONE NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_secure_fingerprint ON secure_reports(fingerprint);
	`

	_, err := s.db.ExecContext(ctx, schema)
	return err
}

// SaveInsecure persists a raw value report.
func (s *PostgresStore) SaveInsecure(ctx context.Context, r *InsecureReport) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO insecure_reports (name, participant_id, value, reported_at)
		VALUES ($1, $2, $3, $4)`,
		r.Name, r.ParticipantID, r.Value.String(), r.ReportedAt,
	)
	return err
}

// SaveSecure persists a masked value report.
func (s *PostgresStore) SaveSecure(ctx context.Context, r *SecureReport) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	perturbations, err := json.Marshal(r.Perturbations)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO secure_reports (name, participant_id, fingerprint, masked_value, perturbations, reported_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		r.Name, r.ParticipantID, r.Fingerprint, r.MaskedValue.String(), perturbations, r.ReportedAt,
	)
	return err
}

// ListInsecure returns all raw value reports.
func (s *PostgresStore) ListInsecure(ctx context.Context) ([]*InsecureReport, error) {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	rows, err := s.db.QueryContext(ctx, `
		SELECT name, participant_id, value::TEXT, reported_at
		FROM insecure_reports ORDER BY id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*InsecureReport
	for rows.Next() {
		var (
			r     InsecureReport
			value string
		)
		if err := rows.Scan(&r.Name, &r.ParticipantID, &value, &r.ReportedAt); err != nil {
			return nil, fmt.Errorf("scanning row: %w", err)
		}
		if r.Value, err = parseNumeric(value); err != nil {
			return nil, err
		}
		out = append(out, &r)
	}

	return out, rows.Err()
}

// ListSecure returns all masked value reports.
func (s *PostgresStore) ListSecure(ctx context.Context) ([]*SecureReport, error) {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	rows, err := s.db.QueryContext(ctx, `
		SELECT name, participant_id, fingerprint, masked_value::TEXT, perturbations, reported_at
		FROM secure_reports ORDER BY id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*SecureReport
	for rows.Next() {
		var (
			r             SecureReport
			masked        string
			perturbations []byte
		)
		if err := rows.Scan(&r.Name, &r.ParticipantID, &r.Fingerprint, &masked, &perturbations, &r.ReportedAt); err != nil {
			return nil, fmt.Errorf("scanning row: %w", err)
		}
		if r.MaskedValue, err = parseNumeric(masked); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(perturbations, &r.Perturbations); err != nil {
			return nil, fmt.Errorf("decoding perturbations: %w", err)
		}
		out = append(out, &r)
	}

	return out, rows.Err()
}

// Close closes the database connection.
func (s *PostgresStore) Close() error {
	return s.db.Close()
}

func parseNumeric(s string) (*big.Int, error) {
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return nil, fmt.Errorf("invalid numeric %q", s)
	}
	return v, nil
}
