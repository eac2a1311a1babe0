package store

// Schema contains the complete DDL for the run-history tables.
const Schema = `
-- Runs: one row per completed analysis run
CREATE TABLE IF NOT EXISTS runs (
    namespace     TEXT PRIMARY KEY,
    url           TEXT NOT NULL,
    final_url     TEXT NOT NULL DEFAULT '',
    host          TEXT NOT NULL,
    title         TEXT NOT NULL DEFAULT '',
    section_count INTEGER NOT NULL DEFAULT 0,
    skipped_count INTEGER NOT NULL DEFAULT 0,
    content_hash  TEXT NOT NULL DEFAULT '',
    duration_ms   INTEGER NOT NULL DEFAULT 0,
    created_at    INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_runs_host ON runs(host, created_at DESC);
CREATE INDEX IF NOT EXISTS idx_runs_created ON runs(created_at DESC);

-- Crops: the persisted section images of a run
CREATE TABLE IF NOT EXISTS crops (
    namespace TEXT NOT NULL,
    idx       INTEGER NOT NULL,
    file      TEXT NOT NULL,
    top_px    INTEGER NOT NULL,
    left_px   INTEGER NOT NULL,
    width_px  INTEGER NOT NULL,
    height_px INTEGER NOT NULL,
    text      TEXT,
    PRIMARY KEY (namespace, idx),
    FOREIGN KEY (namespace) REFERENCES runs(namespace) ON DELETE CASCADE
);
`
