package storage

const schema = `
-- One row per user; also carries the daily new-card quota.
CREATE TABLE IF NOT EXISTS users (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    name TEXT NOT NULL UNIQUE,
    new_cards_today INTEGER NOT NULL DEFAULT 0,
    max_new_cards_per_day INTEGER NOT NULL DEFAULT 10,
    last_reset_date DATETIME NOT NULL
);

-- Decks the cards are imported from, either a local directory or a git repository.
CREATE TABLE IF NOT EXISTS sources (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    user_id INTEGER NOT NULL,
    path TEXT NOT NULL,
    type TEXT NOT NULL DEFAULT 'local', -- local | git
    last_scanned DATETIME,

    UNIQUE(user_id, path),
    FOREIGN KEY(user_id) REFERENCES users(id) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS cards (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    user_id INTEGER NOT NULL,
    source_id INTEGER,
    hash TEXT NOT NULL,
    question TEXT NOT NULL,
    answer TEXT NOT NULL,
    context TEXT NOT NULL DEFAULT '',
    phase INTEGER NOT NULL DEFAULT 1, -- 1: intensive, 2: consolidation, 3: maintenance
    state TEXT NOT NULL DEFAULT 'new', -- new | learning | consolidating | mature
    interval_seconds REAL NOT NULL DEFAULT 5.0,
    ease_factor REAL NOT NULL DEFAULT 2.5,
    created_at DATETIME NOT NULL,
    last_reviewed_at DATETIME,
    next_review_at DATETIME NOT NULL,
    correct_streak INTEGER NOT NULL DEFAULT 0,
    incorrect_streak INTEGER NOT NULL DEFAULT 0,
    last_response_time REAL NOT NULL DEFAULT 0,
    last_adjusted_grade REAL NOT NULL DEFAULT 0,

    UNIQUE(user_id, hash),
    FOREIGN KEY(user_id) REFERENCES users(id) ON DELETE CASCADE,
    FOREIGN KEY(source_id) REFERENCES sources(id) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_cards_user_due ON cards(user_id, next_review_at);

-- Append-only history of graded responses.
CREATE TABLE IF NOT EXISTS review_logs (
    id TEXT PRIMARY KEY,
    card_id INTEGER NOT NULL,
    reviewed_at DATETIME NOT NULL,
    base_grade INTEGER NOT NULL,
    response_time REAL NOT NULL,
    adjusted_grade REAL NOT NULL,
    phase_before INTEGER NOT NULL,
    phase_after INTEGER NOT NULL,

    FOREIGN KEY(card_id) REFERENCES cards(id) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_review_logs_card ON review_logs(card_id, reviewed_at);
`
