package sqlite

const schema = `
CREATE TABLE IF NOT EXISTS session (
    key         TEXT PRIMARY KEY,
    value       TEXT NOT NULL,
    updated_at  DATETIME DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS notifications (
    id          INTEGER PRIMARY KEY AUTOINCREMENT,
    message_id  TEXT NOT NULL UNIQUE,
    thread_id   TEXT,
    subject     TEXT,
    sender      TEXT,
    received_at TEXT,
    notified_at TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_notifications_notified ON notifications(notified_at DESC);
CREATE INDEX IF NOT EXISTS idx_notifications_thread ON notifications(thread_id);
`
