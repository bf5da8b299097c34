package sqlite

const schema = `
-- Application settings (preferences, last-writer-wins)
CREATE TABLE IF NOT EXISTS settings (
    key TEXT PRIMARY KEY,
    value TEXT NOT NULL,
    updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);

-- Tunnel session registrations (one row per profile)
CREATE TABLE IF NOT EXISTS sessions (
    profile TEXT PRIMARY KEY,
    status TEXT NOT NULL DEFAULT 'Disconnected',
    pid INTEGER DEFAULT 0,
    vpn_mode TEXT DEFAULT 'Global',
    socks_port INTEGER DEFAULT 0,
    metrics_port INTEGER DEFAULT 0,
    proxy_addr TEXT DEFAULT '',
    connected_at TIMESTAMP,
    updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);

-- Schema version tracking
CREATE TABLE IF NOT EXISTS schema_version (
    version INTEGER PRIMARY KEY,
    applied_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);
`

const currentVersion = 1

// runMigrations applies the schema and records the version.
func runMigrations(d *DB) error {
	if _, err := d.db.Exec(schema); err != nil {
		return err
	}

	var version int
	err := d.db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_version").Scan(&version)
	if err != nil {
		return err
	}

	if version < currentVersion {
		if _, err := d.db.Exec("INSERT INTO schema_version (version) VALUES (?)", currentVersion); err != nil {
			return err
		}
	}
	return nil
}
