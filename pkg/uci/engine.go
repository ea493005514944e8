package uci

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"sync"
	"time"
)

const (
	// DefaultReadTimeout bounds one engine search. A driver that misses the
	// deadline is marked broken and must be replaced by its pool.
	DefaultReadTimeout = 15 * time.Second

	handshakeTimeout = 10 * time.Second
	shutdownGrace    = 2 * time.Second
)

// ErrBroken is returned for every call after the driver has lost its
// subprocess (crash, pipe close, read timeout). Callers treat it as a
// retryable transport failure; the pool replaces the driver.
var ErrBroken = errors.New("uci: engine transport broken")

// EngineInfo identifies the engine binary from the UCI handshake.
type EngineInfo struct {
	Name   string
	Author string
}

// Options are applied to the subprocess during initialization.
type Options struct {
	Threads int
	Hash    int
}

// Engine wraps one UCI subprocess. All protocol exchanges are serialized:
// the protocol is stateful, so concurrent Analyze calls on one Engine queue
// behind a mutex.
type Engine struct {
	binaryPath string
	cmd        *exec.Cmd
	stdin      io.WriteCloser
	lines      chan string
	done       chan struct{}

	mu          sync.Mutex
	broken      bool
	info        EngineInfo
	readTimeout time.Duration
}

// NewEngine starts and initializes one engine subprocess.
func NewEngine(binaryPath string, opts Options) (*Engine, error) {
	cmd := exec.Command(binaryPath)

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("uci: stdin pipe: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		stdin.Close()
		return nil, fmt.Errorf("uci: stdout pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		stdin.Close()
		return nil, fmt.Errorf("uci: start %s: %w", binaryPath, err)
	}

	e := &Engine{
		binaryPath:  binaryPath,
		cmd:         cmd,
		stdin:       stdin,
		lines:       make(chan string, 256),
		done:        make(chan struct{}),
		readTimeout: DefaultReadTimeout,
	}

	go e.readLoop(stdout)

	if err := e.initialize(opts); err != nil {
		e.Close()
		return nil, fmt.Errorf("uci: initialize: %w", err)
	}
	return e, nil
}

// readLoop pumps subprocess stdout into the line channel until EOF.
func (e *Engine) readLoop(stdout io.Reader) {
	scanner := bufio.NewScanner(stdout)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		select {
		case e.lines <- scanner.Text():
		case <-e.done:
			return
		}
	}
	close(e.lines)
}

func (e *Engine) initialize(opts Options) error {
	if err := e.send("uci"); err != nil {
		return err
	}
	deadline := time.After(handshakeTimeout)
	for {
		select {
		case line, ok := <-e.lines:
			if !ok {
				return ErrBroken
			}
			if strings.HasPrefix(line, "id name ") {
				e.info.Name = strings.TrimPrefix(line, "id name ")
			}
			if strings.HasPrefix(line, "id author ") {
				e.info.Author = strings.TrimPrefix(line, "id author ")
			}
			if line == "uciok" {
				goto configured
			}
		case <-deadline:
			return fmt.Errorf("timeout waiting for uciok")
		}
	}

configured:
	if opts.Threads > 0 {
		if err := e.send(fmt.Sprintf("setoption name Threads value %d", opts.Threads)); err != nil {
			return err
		}
	}
	if opts.Hash > 0 {
		if err := e.send(fmt.Sprintf("setoption name Hash value %d", opts.Hash)); err != nil {
			return err
		}
	}
	return e.waitReady(handshakeTimeout)
}

// waitReady performs an isready/readyok round trip.
func (e *Engine) waitReady(timeout time.Duration) error {
	if err := e.send("isready"); err != nil {
		return err
	}
	deadline := time.After(timeout)
	for {
		select {
		case line, ok := <-e.lines:
			if !ok {
				return ErrBroken
			}
			if line == "readyok" {
				return nil
			}
		case <-deadline:
			return fmt.Errorf("timeout waiting for readyok")
		}
	}
}

func (e *Engine) send(cmd string) error {
	if _, err := io.WriteString(e.stdin, cmd+"\n"); err != nil {
		return fmt.Errorf("write %q: %w", cmd, err)
	}
	return nil
}

// Info returns the handshake identity of the subprocess.
func (e *Engine) Info() EngineInfo {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.info
}

// Broken reports whether the driver has lost its subprocess.
func (e *Engine) Broken() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.broken
}

// Analyze runs "go depth <depth> [multipv <k>]" on the given FEN and blocks
// until bestmove. Scores come back in white perspective: the engine reports
// side-to-move relative, so the driver negates for black to move and clamps
// mate scores to ±1500 centipawns while preserving the mate flag.
func (e *Engine) Analyze(fen string, depth, multiPV int) (*AnalysisResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.broken {
		return nil, ErrBroken
	}
	if multiPV < 1 {
		multiPV = 1
	}

	whiteToMove := sideToMoveIsWhite(fen)

	if err := e.send(fmt.Sprintf("setoption name MultiPV value %d", multiPV)); err != nil {
		e.markBroken()
		return nil, ErrBroken
	}
	if err := e.send("position fen " + fen); err != nil {
		e.markBroken()
		return nil, ErrBroken
	}
	goCmd := fmt.Sprintf("go depth %d", depth)
	if multiPV > 1 {
		goCmd = fmt.Sprintf("go depth %d multipv %d", depth, multiPV)
	}
	if err := e.send(goCmd); err != nil {
		e.markBroken()
		return nil, ErrBroken
	}

	result, err := e.collect(multiPV, whiteToMove)
	if err != nil {
		e.markBroken()
		return nil, err
	}
	return result, nil
}

// collect reads info lines until bestmove, keeping the deepest line seen for
// each multipv slot.
func (e *Engine) collect(multiPV int, whiteToMove bool) (*AnalysisResult, error) {
	byPV := make(map[int]Variation, multiPV)
	timer := time.NewTimer(e.readTimeout)
	defer timer.Stop()

	for {
		select {
		case line, ok := <-e.lines:
			if !ok {
				return nil, ErrBroken
			}
			if strings.HasPrefix(line, "info ") {
				if v, n, ok := parseInfoLine(line, whiteToMove); ok {
					byPV[n] = v
				}
				continue
			}
			if strings.HasPrefix(line, "bestmove") {
				result := &AnalysisResult{}
				fields := strings.Fields(line)
				if len(fields) >= 2 {
					result.BestMove = fields[1]
				}
				for i := 1; i <= multiPV; i++ {
					if v, ok := byPV[i]; ok {
						result.Variations = append(result.Variations, v)
					}
				}
				if len(result.Variations) == 0 {
					// "bestmove (none)" on mated/stalemated positions.
					if result.BestMove == "(none)" || result.BestMove == "" {
						result.BestMove = ""
						return result, nil
					}
					return nil, fmt.Errorf("uci: bestmove without score lines")
				}
				return result, nil
			}
		case <-timer.C:
			return nil, fmt.Errorf("uci: read timeout after %s: %w", e.readTimeout, ErrBroken)
		}
	}
}

// Stop asks the engine to cut the current search short. Best effort; used
// when a caller abandons a search mid-flight.
func (e *Engine) Stop() {
	// Deliberately not taking the mutex: Stop races with a blocked Analyze
	// and stdin writes are atomic at line granularity for our purposes.
	_ = e.send("stop")
}

// markBroken flags the driver; callers must already hold the mutex.
func (e *Engine) markBroken() {
	e.broken = true
}

// Close terminates the subprocess, waiting briefly for a clean exit before
// killing it.
func (e *Engine) Close() error {
	e.mu.Lock()
	e.broken = true
	e.mu.Unlock()

	_ = e.send("quit")
	e.stdin.Close()
	close(e.done)

	if e.cmd.Process == nil {
		return nil
	}
	exited := make(chan error, 1)
	go func() { exited <- e.cmd.Wait() }()
	select {
	case err := <-exited:
		return err
	case <-time.After(shutdownGrace):
		return e.cmd.Process.Kill()
	}
}

// sideToMoveIsWhite reads the active-color field of a FEN. Defaults to white
// on malformed input; the caller validates FENs before reaching the driver.
func sideToMoveIsWhite(fen string) bool {
	fields := strings.Fields(fen)
	if len(fields) >= 2 && fields[1] == "b" {
		return false
	}
	return true
}
