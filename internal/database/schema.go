package database

// schema holds the relational model of the analysis pipeline. Indices mirror
// the aggregation access paths: games by (user, date), evaluations by game,
// attempts by (user, next_review), puzzle themes as a separate table so theme
// filters stay indexable.
const schema = `
CREATE TABLE IF NOT EXISTS games (
	id               INTEGER PRIMARY KEY AUTOINCREMENT,
	user_id          TEXT NOT NULL,
	platform         TEXT NOT NULL DEFAULT 'manual',
	platform_game_id TEXT,
	game_hash        TEXT NOT NULL,
	played_at        TIMESTAMP NOT NULL,
	player_color     TEXT NOT NULL,
	result           TEXT NOT NULL,
	opening_name     TEXT NOT NULL DEFAULT '',
	eco              TEXT NOT NULL DEFAULT '',
	time_control     TEXT NOT NULL DEFAULT '',
	player_rating    INTEGER,
	opponent_rating  INTEGER,
	move_count       INTEGER NOT NULL,
	moves_san        TEXT NOT NULL,
	clocks           TEXT NOT NULL DEFAULT '',
	imported_at      TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
	UNIQUE (user_id, platform, platform_game_id),
	UNIQUE (user_id, game_hash)
);
CREATE INDEX IF NOT EXISTS idx_games_user_date ON games (user_id, played_at);

CREATE TABLE IF NOT EXISTS move_evaluations (
	id               INTEGER PRIMARY KEY AUTOINCREMENT,
	game_id          INTEGER NOT NULL REFERENCES games(id) ON DELETE CASCADE,
	ply              INTEGER NOT NULL,
	color            TEXT NOT NULL,
	san              TEXT NOT NULL,
	uci              TEXT NOT NULL,
	piece            TEXT NOT NULL,
	cp_loss          INTEGER NOT NULL,
	weighted_cp_loss REAL NOT NULL,
	phase            TEXT NOT NULL,
	quality          TEXT NOT NULL,
	blunder_subtype  TEXT,
	eval_before      INTEGER NOT NULL,
	eval_after       INTEGER NOT NULL,
	mate_before      INTEGER NOT NULL DEFAULT 0,
	mate_after       INTEGER NOT NULL DEFAULT 0,
	best_move_san    TEXT NOT NULL,
	best_move_uci    TEXT NOT NULL,
	fen_before       TEXT NOT NULL,
	win_prob_before  REAL NOT NULL,
	win_prob_after   REAL NOT NULL,
	accuracy         REAL NOT NULL,
	clock_seconds    REAL,
	degraded         INTEGER NOT NULL DEFAULT 0,
	UNIQUE (game_id, ply)
);
CREATE INDEX IF NOT EXISTS idx_move_evaluations_game ON move_evaluations (game_id);

CREATE TABLE IF NOT EXISTS game_analyses (
	id                INTEGER PRIMARY KEY AUTOINCREMENT,
	game_id           INTEGER NOT NULL UNIQUE REFERENCES games(id) ON DELETE CASCADE,
	user_id           TEXT NOT NULL,
	overall_cpl       REAL,
	opening_cpl       REAL,
	middlegame_cpl    REAL,
	endgame_cpl       REAL,
	best_count        INTEGER NOT NULL DEFAULT 0,
	excellent_count   INTEGER NOT NULL DEFAULT 0,
	good_count        INTEGER NOT NULL DEFAULT 0,
	inaccuracy_count  INTEGER NOT NULL DEFAULT 0,
	mistake_count     INTEGER NOT NULL DEFAULT 0,
	blunder_count     INTEGER NOT NULL DEFAULT 0,
	accuracy          REAL,
	depth             INTEGER NOT NULL,
	analyzed_at       TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_game_analyses_user ON game_analyses (user_id);

CREATE TABLE IF NOT EXISTS analysis_jobs (
	id              TEXT PRIMARY KEY,
	user_id         TEXT NOT NULL,
	status          TEXT NOT NULL DEFAULT 'pending',
	total_games     INTEGER NOT NULL,
	games_completed INTEGER NOT NULL DEFAULT 0,
	depth           INTEGER NOT NULL,
	error           TEXT,
	created_at      TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
	updated_at      TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_analysis_jobs_user ON analysis_jobs (user_id, created_at);

CREATE TABLE IF NOT EXISTS puzzles (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	puzzle_key    TEXT NOT NULL UNIQUE,
	fen           TEXT NOT NULL,
	side_to_move  TEXT NOT NULL,
	best_move_san TEXT NOT NULL,
	best_move_uci TEXT NOT NULL,
	played_san    TEXT NOT NULL,
	eval_loss     INTEGER NOT NULL,
	phase         TEXT NOT NULL,
	puzzle_type   TEXT NOT NULL,
	solution_line TEXT NOT NULL DEFAULT '',
	themes        TEXT NOT NULL DEFAULT '',
	created_at    TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS puzzle_themes (
	puzzle_id INTEGER NOT NULL REFERENCES puzzles(id) ON DELETE CASCADE,
	theme     TEXT NOT NULL,
	PRIMARY KEY (puzzle_id, theme)
);
CREATE INDEX IF NOT EXISTS idx_puzzle_themes_theme ON puzzle_themes (theme);

CREATE TABLE IF NOT EXISTS puzzle_attempts (
	id           INTEGER PRIMARY KEY AUTOINCREMENT,
	user_id      TEXT NOT NULL,
	puzzle_id    INTEGER NOT NULL REFERENCES puzzles(id) ON DELETE CASCADE,
	correct      INTEGER NOT NULL,
	time_taken   REAL NOT NULL DEFAULT 0,
	attempted_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
	next_review  TIMESTAMP NOT NULL,
	repetition   INTEGER NOT NULL DEFAULT 0,
	easiness     REAL NOT NULL DEFAULT 2.5
);
CREATE INDEX IF NOT EXISTS idx_puzzle_attempts_review ON puzzle_attempts (user_id, next_review);

CREATE TABLE IF NOT EXISTS opening_repertoire (
	user_id      TEXT NOT NULL,
	opening_name TEXT NOT NULL,
	eco          TEXT NOT NULL DEFAULT '',
	color        TEXT NOT NULL,
	wins         INTEGER NOT NULL DEFAULT 0,
	draws        INTEGER NOT NULL DEFAULT 0,
	losses       INTEGER NOT NULL DEFAULT 0,
	avg_cpl      REAL NOT NULL DEFAULT 0,
	last_played  TIMESTAMP NOT NULL,
	PRIMARY KEY (user_id, opening_name, color)
);
`
