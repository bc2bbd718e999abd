package store

const schemaSQL = `
CREATE TABLE IF NOT EXISTS schema_version (
    version INTEGER PRIMARY KEY,
    applied_at TEXT NOT NULL DEFAULT (datetime('now'))
);
INSERT OR IGNORE INTO schema_version (version) VALUES (1);

CREATE TABLE IF NOT EXISTS trades (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    ticker TEXT NOT NULL,
    side TEXT NOT NULL,
    action TEXT NOT NULL,
    quantity INTEGER NOT NULL,
    price_cents INTEGER NOT NULL,
    status TEXT NOT NULL,
    order_id TEXT,
    fill_count INTEGER NOT NULL DEFAULT 0,
    remaining_count INTEGER NOT NULL DEFAULT 0,
    fee_cents INTEGER NOT NULL DEFAULT 0,
    error_message TEXT,
    created_at TEXT NOT NULL DEFAULT (datetime('now'))
);
CREATE INDEX IF NOT EXISTS idx_trades_ticker ON trades(ticker);
CREATE INDEX IF NOT EXISTS idx_trades_created ON trades(created_at);

CREATE TABLE IF NOT EXISTS positions (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    ticker TEXT NOT NULL,
    side TEXT NOT NULL,
    quantity INTEGER NOT NULL DEFAULT 0,
    avg_entry_cents INTEGER NOT NULL DEFAULT 0,
    realized_pnl_cents INTEGER NOT NULL DEFAULT 0,
    is_closed INTEGER NOT NULL DEFAULT 0,
    opened_at TEXT NOT NULL DEFAULT (datetime('now')),
    closed_at TEXT
);
CREATE INDEX IF NOT EXISTS idx_positions_key ON positions(ticker, side);
CREATE INDEX IF NOT EXISTS idx_positions_open ON positions(is_closed) WHERE is_closed = 0;

CREATE TABLE IF NOT EXISTS balance_history (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    balance_cents INTEGER NOT NULL,
    recorded_at TEXT NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS scan_results (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    ticker TEXT NOT NULL,
    event_ticker TEXT NOT NULL,
    side TEXT NOT NULL,
    signal_price INTEGER NOT NULL,
    signal_ask INTEGER NOT NULL,
    tier INTEGER NOT NULL,
    volume_24h INTEGER NOT NULL,
    dollar_24h INTEGER NOT NULL,
    dollar_rank INTEGER NOT NULL,
    spread_pct REAL NOT NULL,
    hours_left REAL,
    qualified INTEGER NOT NULL,
    fail_reasons TEXT NOT NULL DEFAULT '',
    scanned_at TEXT NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS scan_meta (
    id INTEGER PRIMARY KEY,
    total_fetched INTEGER NOT NULL,
    scanned INTEGER NOT NULL,
    passed_prefix INTEGER NOT NULL,
    passed_volume INTEGER NOT NULL,
    passed_price INTEGER NOT NULL,
    passed_tier INTEGER NOT NULL,
    passed_rank INTEGER NOT NULL,
    passed_dollar INTEGER NOT NULL,
    passed_spread INTEGER NOT NULL,
    passed_expiry INTEGER NOT NULL,
    qualified INTEGER NOT NULL,
    from_cache INTEGER NOT NULL,
    scanned_at TEXT NOT NULL DEFAULT (datetime('now'))
);
`
