package services

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/notnil/chess"
	"github.com/sirupsen/logrus"

	"chess-coach-backend/internal/models"
	"chess-coach-backend/internal/repository"
)

// ImportService turns raw PGN text into Game rows. Duplicate games are
// detected by platform game id when present, else by a fingerprint of the
// move list, so re-importing an archive is a no-op.
type ImportService struct {
	games *repository.GameRepository
}

func NewImportService(games *repository.GameRepository) *ImportService {
	return &ImportService{games: games}
}

var clkPattern = regexp.MustCompile(`\[%clk\s+(\d+):(\d+):(\d+(?:\.\d+)?)\]`)

// GameFingerprint is the 128-bit move-list hash standing in for a platform
// game id when the source did not assign one.
func GameFingerprint(movesSAN string) string {
	sum := sha256.Sum256([]byte(strings.TrimSpace(movesSAN)))
	return hex.EncodeToString(sum[:16])
}

// Import parses every game in the PGN text and inserts the new ones.
// Unparseable games are counted as failed, never abort the batch.
func (s *ImportService) Import(ctx context.Context, userID, platform, pgn string) (*models.ImportGamesResponse, error) {
	parsed, err := chess.GamesFromPGN(strings.NewReader(pgn))
	if err != nil {
		return nil, fmt.Errorf("parse pgn: %w", err)
	}
	if len(parsed) == 0 {
		return nil, fmt.Errorf("no games in pgn")
	}
	if platform == "" {
		platform = "pgn"
	}

	resp := &models.ImportGamesResponse{}
	for _, pg := range parsed {
		game, err := s.buildGame(userID, platform, pg)
		if err != nil {
			logrus.Warnf("Import: skipping game: %v", err)
			resp.Failed++
			continue
		}
		id, inserted, err := s.games.Insert(ctx, game)
		if err != nil {
			return resp, err
		}
		if !inserted {
			resp.Duplicates++
			continue
		}
		resp.Imported++
		resp.GameIDs = append(resp.GameIDs, id)
	}
	return resp, nil
}

func tag(g *chess.Game, name string) string {
	if pair := g.GetTagPair(name); pair != nil {
		return pair.Value
	}
	return ""
}

func (s *ImportService) buildGame(userID, platform string, pg *chess.Game) (*models.Game, error) {
	moves := pg.Moves()
	if len(moves) == 0 {
		return nil, fmt.Errorf("empty move list")
	}

	// Re-encode SAN from the parsed moves so the stored list is canonical
	// whatever notation quirks the source used.
	positions := pg.Positions()
	san := make([]string, len(moves))
	notation := chess.AlgebraicNotation{}
	for i, m := range moves {
		san[i] = notation.Encode(positions[i], m)
	}
	movesSAN := strings.Join(san, " ")

	color, err := playerColor(userID, pg)
	if err != nil {
		return nil, err
	}
	result, err := playerResult(tag(pg, "Result"), color)
	if err != nil {
		return nil, err
	}

	game := &models.Game{
		UserID:      userID,
		Platform:    platform,
		GameHash:    GameFingerprint(movesSAN),
		PlayedAt:    parseDate(pg),
		PlayerColor: color,
		Result:      result,
		OpeningName: tag(pg, "Opening"),
		ECO:         tag(pg, "ECO"),
		TimeControl: tag(pg, "TimeControl"),
		MoveCount:   (len(moves) + 1) / 2,
		MovesSAN:    movesSAN,
		Clocks:      extractClocks(pg, len(moves)),
		ImportedAt:  time.Now().UTC(),
	}

	if id := platformGameID(pg); id != "" {
		game.PlatformGameID = sql.NullString{String: id, Valid: true}
	}
	if r := parseRating(tag(pg, "WhiteElo")); r > 0 {
		if color == models.ColorWhite {
			game.PlayerRating = sql.NullInt64{Int64: int64(r), Valid: true}
		} else {
			game.OpponentRating = sql.NullInt64{Int64: int64(r), Valid: true}
		}
	}
	if r := parseRating(tag(pg, "BlackElo")); r > 0 {
		if color == models.ColorBlack {
			game.PlayerRating = sql.NullInt64{Int64: int64(r), Valid: true}
		} else {
			game.OpponentRating = sql.NullInt64{Int64: int64(r), Valid: true}
		}
	}
	return game, nil
}

// playerColor matches the importing user against the White/Black name tags,
// case-insensitively. A game naming the user on neither side defaults to
// white, which is what most single-player exports mean.
func playerColor(userID string, pg *chess.Game) (models.Color, error) {
	white := strings.TrimSpace(tag(pg, "White"))
	black := strings.TrimSpace(tag(pg, "Black"))
	switch {
	case strings.EqualFold(white, userID):
		return models.ColorWhite, nil
	case strings.EqualFold(black, userID):
		return models.ColorBlack, nil
	default:
		return models.ColorWhite, nil
	}
}

func playerResult(resultTag string, color models.Color) (models.Result, error) {
	switch resultTag {
	case "1-0":
		if color == models.ColorWhite {
			return models.ResultWin, nil
		}
		return models.ResultLoss, nil
	case "0-1":
		if color == models.ColorBlack {
			return models.ResultWin, nil
		}
		return models.ResultLoss, nil
	case "1/2-1/2":
		return models.ResultDraw, nil
	default:
		return "", fmt.Errorf("unfinished or unknown result %q", resultTag)
	}
}

func parseDate(pg *chess.Game) time.Time {
	for _, name := range []string{"UTCDate", "Date"} {
		raw := tag(pg, name)
		if raw == "" || strings.Contains(raw, "?") {
			continue
		}
		if t, err := time.Parse("2006.01.02", raw); err == nil {
			if clock := tag(pg, "UTCTime"); clock != "" {
				if tt, err := time.Parse("15:04:05", clock); err == nil {
					return t.Add(time.Duration(tt.Hour())*time.Hour +
						time.Duration(tt.Minute())*time.Minute +
						time.Duration(tt.Second())*time.Second)
				}
			}
			return t
		}
	}
	return time.Now().UTC()
}

// platformGameID prefers an explicit GameId tag, falling back to the last
// path segment of a Site URL (the lichess and chess.com convention).
func platformGameID(pg *chess.Game) string {
	if id := tag(pg, "GameId"); id != "" {
		return id
	}
	site := tag(pg, "Site")
	if !strings.HasPrefix(site, "http") {
		return ""
	}
	parts := strings.Split(strings.TrimRight(site, "/"), "/")
	last := parts[len(parts)-1]
	if last == "" || strings.Contains(last, ".") {
		return ""
	}
	return last
}

func parseRating(raw string) int {
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0
	}
	return n
}

// extractClocks pulls [%clk H:MM:SS] annotations into a space-joined
// seconds list, one per ply. Games without clock comments yield "".
func extractClocks(pg *chess.Game, plies int) string {
	comments := pg.Comments()
	if len(comments) == 0 {
		return ""
	}
	clocks := make([]string, 0, plies)
	for i := 0; i < plies && i < len(comments); i++ {
		found := ""
		for _, c := range comments[i] {
			m := clkPattern.FindStringSubmatch(c)
			if m == nil {
				continue
			}
			h, _ := strconv.Atoi(m[1])
			min, _ := strconv.Atoi(m[2])
			sec, _ := strconv.ParseFloat(m[3], 64)
			found = strconv.FormatFloat(float64(h*3600+min*60)+sec, 'f', -1, 64)
			break
		}
		if found == "" {
			return ""
		}
		clocks = append(clocks, found)
	}
	if len(clocks) < plies {
		return ""
	}
	return strings.Join(clocks, " ")
}
