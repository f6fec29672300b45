package store

// migration holds a single schema migration with its target version and SQL.
type migration struct {
	version int
	sql     string
}

// migrations is the ordered list of schema migrations.
// Each migration's version must be sequential starting from 1.
var migrations = []migration{
	{
		version: 1,
		sql: `
CREATE TABLE IF NOT EXISTS schema_version (
	version INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS cycle_state (
	name  TEXT PRIMARY KEY,
	value TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS run_log (
	id         TEXT PRIMARY KEY,
	message    TEXT NOT NULL,
	created_at DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS owners (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	email       TEXT NOT NULL UNIQUE,
	can_publish INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS contents (
	id              INTEGER PRIMARY KEY AUTOINCREMENT,
	title           TEXT NOT NULL,
	body            TEXT NOT NULL,
	excerpt         TEXT NOT NULL DEFAULT '',
	authored_at     DATETIME NOT NULL,
	authored_at_utc DATETIME NOT NULL,
	owner_id        INTEGER NOT NULL,
	category        TEXT NOT NULL DEFAULT '',
	status          TEXT NOT NULL DEFAULT 'pending',
	created_at      DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_contents_owner ON contents(owner_id);
CREATE INDEX IF NOT EXISTS idx_contents_status ON contents(status);

INSERT INTO schema_version (version) VALUES (1);
`,
	},
}
