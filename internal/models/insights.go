package models

// Trend describes the direction of recent results against the full corpus.
type Trend string

const (
	TrendImproving Trend = "improving"
	TrendStable    Trend = "stable"
	TrendDeclining Trend = "declining"
)

// Overview is the headline aggregate for a user's analyzed corpus.
type Overview struct {
	TotalGames      int     `json:"totalGames"`
	AnalyzedGames   int     `json:"analyzedGames"`
	Wins            int     `json:"wins"`
	Draws           int     `json:"draws"`
	Losses          int     `json:"losses"`
	WinRate         float64 `json:"winRate"`
	MeanCPL         float64 `json:"meanCpl"`
	BlundersPer100  float64 `json:"blundersPer100"`
	OpeningCPL      float64 `json:"openingCpl"`
	MiddlegameCPL   float64 `json:"middlegameCpl"`
	EndgameCPL      float64 `json:"endgameCpl"`
	RecentCPL       float64 `json:"recentCpl"`
	Trend           Trend   `json:"trend"`
	MeanAccuracy    float64 `json:"meanAccuracy"`
	TotalPlayerPlys int     `json:"totalPlayerPlys"`
}

// SkillRadar maps the corpus onto six 0..100 axes.
type SkillRadar struct {
	Opening     float64 `json:"opening"`
	Middlegame  float64 `json:"middlegame"`
	Endgame     float64 `json:"endgame"`
	Tactics     float64 `json:"tactics"`
	Composure   float64 `json:"composure"`
	Consistency float64 `json:"consistency"`
}

// Weakness is one detected recurring problem.
type Weakness struct {
	Kind        string  `json:"kind"`
	Description string  `json:"description"`
	Severity    float64 `json:"severity"`
	Count       int     `json:"count,omitempty"`
}

// TimePressureSlice aggregates player moves made with under 30 seconds
// on the clock.
type TimePressureSlice struct {
	Moves           int     `json:"moves"`
	MeanCPL         float64 `json:"meanCpl"`
	Blunders        int     `json:"blunders"`
	Mistakes        int     `json:"mistakes"`
	BaselineCPL     float64 `json:"baselineCpl"`
	PressurePenalty float64 `json:"pressurePenalty"`
}

// PieceStats is per-moved-piece performance.
type PieceStats struct {
	Piece    string  `json:"piece"`
	Moves    int     `json:"moves"`
	MeanCPL  float64 `json:"meanCpl"`
	Best     int     `json:"best"`
	Good     int     `json:"good"`
	Mistakes int     `json:"mistakes"`
	Blunders int     `json:"blunders"`
}

// BlunderProfile is the distribution of blunder subtypes for a user.
type BlunderProfile struct {
	Subtype string `json:"subtype"`
	Count   int    `json:"count"`
}

// MetricVector is the fixed input of the persona scorers. Every field is
// derived from the aggregator; scorers never touch the database.
type MetricVector struct {
	TotalGames        int
	WinRate           float64
	DrawRate          float64
	OverallCPL        float64
	OpeningCPL        float64
	MiddlegameCPL     float64
	EndgameCPL        float64
	BlundersPer100    float64
	MistakesPer100    float64
	BestMoveRate      float64
	Accuracy          float64
	Comebacks         int
	Collapses         int
	TimePressureCPL   float64
	TimePressureDelta float64
	AvgGameLength     float64
	FastGameShare     float64
	TopBlunderSubtype string
	TopBlunderCount   int
	MissedTactics     int
}

// SignatureStat is one headline stat in a persona report.
type SignatureStat struct {
	Label string  `json:"label"`
	Value float64 `json:"value"`
	Unit  string  `json:"unit,omitempty"`
}

// PhaseBreakdown is one row of the per-phase report table.
type PhaseBreakdown struct {
	Phase      GamePhase `json:"phase"`
	MeanCPL    float64   `json:"meanCpl"`
	Commentary string    `json:"commentary"`
}

// PersonaReport is the player-facing narrative profile.
type PersonaReport struct {
	Persona          string           `json:"persona"`
	SecondaryPersona string           `json:"secondaryPersona,omitempty"`
	SignatureStats   []SignatureStat  `json:"signatureStats"`
	Kryptonite       string           `json:"kryptonite"`
	OneThingToChange string           `json:"oneThingToChange"`
	Story            string           `json:"story"`
	PhaseBreakdown   []PhaseBreakdown `json:"phaseBreakdown"`
	GrowthPath       []string         `json:"growthPath"`
}
