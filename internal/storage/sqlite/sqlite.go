package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"tunveil/internal/storage/models"
)

// DB implements the Storage interface using SQLite
type DB struct {
	db *sql.DB
}

// New creates a new SQLite storage instance
func New(dbPath string) (*DB, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Set connection pool settings
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(5 * time.Minute)

	store := &DB{db: db}

	// Run migrations
	if err := runMigrations(store); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return store, nil
}

// Close closes the database connection
func (d *DB) Close() error {
	return d.db.Close()
}

// ─── Settings operations ────────────────────────────────────────────────────

func (d *DB) GetSetting(ctx context.Context, key string) (string, error) {
	var value string
	err := d.db.QueryRowContext(ctx, "SELECT value FROM settings WHERE key = ?", key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", fmt.Errorf("setting not found: %s", key)
	}
	if err != nil {
		return "", err
	}
	return value, nil
}

func (d *DB) SetSetting(ctx context.Context, key, value string) error {
	query := `
		INSERT INTO settings (key, value, updated_at) VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
	`
	_, err := d.db.ExecContext(ctx, query, key, value)
	return err
}

func (d *DB) GetAllSettings(ctx context.Context) (map[string]string, error) {
	rows, err := d.db.QueryContext(ctx, "SELECT key, value FROM settings")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	settings := make(map[string]string)
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return nil, err
		}
		settings[key] = value
	}
	return settings, rows.Err()
}

// ─── Session operations ─────────────────────────────────────────────────────

func (d *DB) SaveSession(ctx context.Context, session *models.Session) error {
	query := `
		INSERT INTO sessions (profile, status, pid, vpn_mode, socks_port, metrics_port, proxy_addr, connected_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(profile) DO UPDATE SET
			status = excluded.status,
			pid = excluded.pid,
			vpn_mode = excluded.vpn_mode,
			socks_port = excluded.socks_port,
			metrics_port = excluded.metrics_port,
			proxy_addr = excluded.proxy_addr,
			connected_at = excluded.connected_at,
			updated_at = excluded.updated_at
	`
	_, err := d.db.ExecContext(ctx, query,
		session.Profile, session.Status, session.PID, session.VPNMode,
		session.SocksPort, session.MetricsPort, session.ProxyAddr, session.ConnectedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}
	return nil
}

func (d *DB) GetSession(ctx context.Context, profile string) (*models.Session, error) {
	query := `
		SELECT profile, status, pid, vpn_mode, socks_port, metrics_port, proxy_addr, connected_at, updated_at
		FROM sessions WHERE profile = ?
	`
	session := &models.Session{}
	err := d.db.QueryRowContext(ctx, query, profile).Scan(
		&session.Profile, &session.Status, &session.PID, &session.VPNMode,
		&session.SocksPort, &session.MetricsPort, &session.ProxyAddr, &session.ConnectedAt, &session.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return session, nil
}

func (d *DB) ListSessions(ctx context.Context) ([]*models.Session, error) {
	query := `
		SELECT profile, status, pid, vpn_mode, socks_port, metrics_port, proxy_addr, connected_at, updated_at
		FROM sessions ORDER BY profile
	`
	rows, err := d.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sessions []*models.Session
	for rows.Next() {
		session := &models.Session{}
		if err := rows.Scan(
			&session.Profile, &session.Status, &session.PID, &session.VPNMode,
			&session.SocksPort, &session.MetricsPort, &session.ProxyAddr, &session.ConnectedAt, &session.UpdatedAt,
		); err != nil {
			return nil, err
		}
		sessions = append(sessions, session)
	}
	return sessions, rows.Err()
}

func (d *DB) ClearSession(ctx context.Context, profile string) error {
	_, err := d.db.ExecContext(ctx, "DELETE FROM sessions WHERE profile = ?", profile)
	return err
}
