package uci

import (
	"strconv"
	"strings"
)

// MateCP is the centipawn stand-in for a forced mate. All pipeline
// arithmetic happens on centipawns clamped to ±MateCP; the mate flag rides
// alongside so nothing downstream confuses a mate with a merely won position.
const MateCP = 1500

// Score is the engine's judgment of a position in white perspective.
type Score struct {
	// CP is the centipawn value clamped to ±MateCP.
	CP int
	// Mate is the signed distance to mate in moves (positive: white mates)
	// when IsMate is set.
	Mate   int
	IsMate bool
}

// Variation is one principal variation from a (possibly multi-PV) search.
type Variation struct {
	Score Score
	Depth int
	PV    []string
}

// AnalysisResult is the outcome of one Analyze call. Variations are ordered
// by multipv rank; BestMove is empty on terminal positions.
type AnalysisResult struct {
	BestMove   string
	Variations []Variation
}

// Best returns the top variation.
func (r *AnalysisResult) Best() (Variation, bool) {
	if len(r.Variations) == 0 {
		return Variation{}, false
	}
	return r.Variations[0], true
}

// ClampCP clamps a centipawn value to the ±MateCP arithmetic range.
func ClampCP(cp int) int {
	if cp > MateCP {
		return MateCP
	}
	if cp < -MateCP {
		return -MateCP
	}
	return cp
}

// parseInfoLine extracts the score, depth and pv from one "info ..." line.
// Scores are converted from side-to-move to white perspective here, at the
// driver boundary, so nothing above the driver ever sees a relative score.
// Returns the variation, its multipv rank (1 when absent), and whether the
// line carried a score at all.
func parseInfoLine(line string, whiteToMove bool) (Variation, int, bool) {
	fields := strings.Fields(line)
	v := Variation{}
	rank := 1
	hasScore := false

	for i := 0; i < len(fields); i++ {
		switch fields[i] {
		case "depth":
			if i+1 < len(fields) {
				v.Depth, _ = strconv.Atoi(fields[i+1])
			}
		case "multipv":
			if i+1 < len(fields) {
				if n, err := strconv.Atoi(fields[i+1]); err == nil && n > 0 {
					rank = n
				}
			}
		case "score":
			if i+2 >= len(fields) {
				continue
			}
			n, err := strconv.Atoi(fields[i+2])
			if err != nil {
				continue
			}
			switch fields[i+1] {
			case "cp":
				if !whiteToMove {
					n = -n
				}
				v.Score = Score{CP: ClampCP(n)}
				hasScore = true
			case "mate":
				// Relative mate: positive means the side to move mates,
				// zero means the side to move is already mated.
				moverMates := n > 0
				whiteMates := moverMates == whiteToMove
				mate := n
				if !whiteToMove {
					mate = -mate
				}
				cp := MateCP
				if !whiteMates {
					cp = -MateCP
				}
				v.Score = Score{CP: cp, Mate: mate, IsMate: true}
				hasScore = true
			}
			i += 2
		case "pv":
			v.PV = append([]string(nil), fields[i+1:]...)
			i = len(fields)
		}
	}
	return v, rank, hasScore
}
