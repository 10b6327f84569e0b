package store

const schema = `
CREATE TABLE IF NOT EXISTS topics (
    id            TEXT PRIMARY KEY,
    category      TEXT NOT NULL,
    status        TEXT NOT NULL,
    current_depth INTEGER NOT NULL DEFAULT 1,
    mastery_score REAL NOT NULL DEFAULT 0,
    title         TEXT NOT NULL,
    last_active   DATETIME NOT NULL,
    created_at    DATETIME NOT NULL,
    doc           TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_topics_status ON topics(status);
CREATE INDEX IF NOT EXISTS idx_topics_category ON topics(category);
CREATE INDEX IF NOT EXISTS idx_topics_last_active ON topics(last_active);

CREATE TABLE IF NOT EXISTS archived_topics (
    id          TEXT PRIMARY KEY,
    category    TEXT NOT NULL,
    title       TEXT NOT NULL,
    archived_at DATETIME NOT NULL,
    reason      TEXT NOT NULL DEFAULT '',
    doc         TEXT NOT NULL
);

-- Singleton JSON documents: metrics, usage, grading cache, carry-over queue.
CREATE TABLE IF NOT EXISTS state_docs (
    name       TEXT PRIMARY KEY,
    doc        TEXT NOT NULL,
    updated_at DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS processed_urls (
    url_hash     TEXT PRIMARY KEY,
    url          TEXT NOT NULL,
    processed_at DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_processed_urls_at ON processed_urls(processed_at);

CREATE TABLE IF NOT EXISTS discards (
    id           INTEGER PRIMARY KEY AUTOINCREMENT,
    url          TEXT NOT NULL,
    title        TEXT NOT NULL,
    reason       TEXT NOT NULL,
    discarded_at DATETIME NOT NULL
);

-- One row per executed (date, slot): slot idempotency across restarts.
CREATE TABLE IF NOT EXISTS runs (
    date   TEXT NOT NULL,
    slot   TEXT NOT NULL,
    ran_at DATETIME NOT NULL,
    PRIMARY KEY (date, slot)
);

CREATE TABLE IF NOT EXISTS digests (
    date    TEXT PRIMARY KEY,
    sent_at DATETIME NOT NULL
);

-- One report per quarter, keyed by label ("Q3 2026").
CREATE TABLE IF NOT EXISTS quarterly_reports (
    quarter      TEXT PRIMARY KEY,
    generated_at DATETIME NOT NULL,
    doc          TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS feed_health (
    url                  TEXT PRIMARY KEY,
    name                 TEXT NOT NULL,
    consecutive_failures INTEGER NOT NULL DEFAULT 0,
    enabled              BOOLEAN NOT NULL DEFAULT 1,
    last_success         DATETIME,
    last_error           TEXT NOT NULL DEFAULT ''
);
`
