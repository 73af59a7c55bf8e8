package journal

const Schema = `
CREATE TABLE IF NOT EXISTS positions (
	id TEXT PRIMARY KEY,
	agent_id TEXT NOT NULL,
	symbol TEXT NOT NULL,
	side TEXT NOT NULL,
	size REAL NOT NULL,
	entry_price REAL NOT NULL,
	current_price REAL NOT NULL,
	leverage REAL NOT NULL,
	margin_used REAL NOT NULL,
	unrealized_pnl REAL NOT NULL,
	unrealized_roe REAL NOT NULL,
	high_water_roe REAL NOT NULL,
	low_water_roe REAL NOT NULL,
	stop_loss REAL,
	take_profit REAL,
	take_profit_roe REAL NOT NULL,
	trailing_active INTEGER NOT NULL,
	trailing_stop REAL,
	confidence REAL NOT NULL,
	score REAL NOT NULL,
	reasons TEXT NOT NULL,
	llm_agreed INTEGER NOT NULL,
	opened_at DATETIME NOT NULL,
	max_hold_seconds INTEGER NOT NULL,
	partial_profit_taken INTEGER NOT NULL,
	paper INTEGER NOT NULL,
	order_id TEXT NOT NULL,
	status TEXT NOT NULL,
	closed_at DATETIME
);

CREATE TABLE IF NOT EXISTS trades (
	id TEXT PRIMARY KEY,
	position_id TEXT NOT NULL,
	symbol TEXT NOT NULL,
	side TEXT NOT NULL,
	type TEXT NOT NULL,
	quantity REAL NOT NULL,
	price REAL NOT NULL,
	realized_pnl REAL NOT NULL,
	fees REAL NOT NULL,
	reason TEXT NOT NULL,
	executed_at DATETIME NOT NULL,
	paper INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_positions_status ON positions(status);
CREATE INDEX IF NOT EXISTS idx_trades_type_time ON trades(type, executed_at);
`

// PostgresSchema mirrors Schema with exact NUMERIC money columns.
const PostgresSchema = `
CREATE TABLE IF NOT EXISTS positions (
	id TEXT PRIMARY KEY,
	agent_id TEXT NOT NULL,
	symbol TEXT NOT NULL,
	side TEXT NOT NULL,
	size NUMERIC NOT NULL,
	entry_price NUMERIC NOT NULL,
	current_price NUMERIC NOT NULL,
	leverage NUMERIC NOT NULL,
	margin_used NUMERIC NOT NULL,
	unrealized_pnl NUMERIC NOT NULL,
	unrealized_roe NUMERIC NOT NULL,
	high_water_roe NUMERIC NOT NULL,
	low_water_roe NUMERIC NOT NULL,
	stop_loss NUMERIC,
	take_profit NUMERIC,
	take_profit_roe NUMERIC NOT NULL,
	trailing_active BOOLEAN NOT NULL,
	trailing_stop NUMERIC,
	confidence NUMERIC NOT NULL,
	score NUMERIC NOT NULL,
	reasons JSONB NOT NULL,
	llm_agreed BOOLEAN NOT NULL,
	opened_at TIMESTAMPTZ NOT NULL,
	max_hold_seconds BIGINT NOT NULL,
	partial_profit_taken BOOLEAN NOT NULL,
	paper BOOLEAN NOT NULL,
	order_id TEXT NOT NULL,
	status TEXT NOT NULL,
	closed_at TIMESTAMPTZ
);

CREATE TABLE IF NOT EXISTS trades (
	id TEXT PRIMARY KEY,
	position_id TEXT NOT NULL,
	symbol TEXT NOT NULL,
	side TEXT NOT NULL,
	type TEXT NOT NULL,
	quantity NUMERIC NOT NULL,
	price NUMERIC NOT NULL,
	realized_pnl NUMERIC NOT NULL,
	fees NUMERIC NOT NULL,
	reason TEXT NOT NULL,
	executed_at TIMESTAMPTZ NOT NULL,
	paper BOOLEAN NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_positions_status ON positions(status);
CREATE INDEX IF NOT EXISTS idx_trades_type_time ON trades(type, executed_at);
`
