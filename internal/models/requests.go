package models

// StartAnalysisRequest enqueues a batch analysis job. A nil GameIDs analyzes
// every unanalyzed game of the user.
type StartAnalysisRequest struct {
	GameIDs []int64 `json:"game_ids"`
	Depth   int     `json:"depth"`
}

// RunAnalysisRequest drives the inline streaming analyzer.
type RunAnalysisRequest struct {
	GameIDs   []int64 `json:"game_ids"`
	Depth     int     `json:"depth"`
	Reanalyze bool    `json:"reanalyze"`
}

// ImportGamesRequest carries one or more PGN games to import.
type ImportGamesRequest struct {
	PGN      string `json:"pgn" binding:"required"`
	Platform string `json:"platform"`
}

// ImportGamesResponse reports the import outcome.
type ImportGamesResponse struct {
	Imported   int     `json:"imported"`
	Duplicates int     `json:"duplicates"`
	Failed     int     `json:"failed"`
	GameIDs    []int64 `json:"gameIds"`
}

// AttemptRequest records a puzzle attempt.
type AttemptRequest struct {
	Correct   *bool   `json:"correct" binding:"required"`
	TimeTaken float64 `json:"time_taken"`
}

// AttemptResponse returns the updated review schedule.
type AttemptResponse struct {
	Correct    bool    `json:"correct"`
	Repetition int     `json:"repetition"`
	Easiness   float64 `json:"easiness"`
	NextReview string  `json:"nextReview"`
}

// AnalyzePositionRequest asks for a one-off engine evaluation of a FEN.
type AnalyzePositionRequest struct {
	FEN     string `json:"fen" binding:"required"`
	Depth   int    `json:"depth"`
	MultiPV int    `json:"multi_pv"`
}

// GameAnalysisResponse is the full per-game analysis payload.
type GameAnalysisResponse struct {
	Summary GameAnalysis     `json:"summary"`
	Moves   []MoveEvaluation `json:"moves"`
}
