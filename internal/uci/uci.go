// Package uci implements the line-oriented UCI protocol shell that drives
// the MCTS search engine from stdin/stdout.
package uci

import (
	"bufio"
	"fmt"
	"os"
	"runtime"
	"runtime/pprof"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/mctschess/engine/internal/board"
	"github.com/mctschess/engine/internal/evalcache"
	"github.com/mctschess/engine/internal/history"
	"github.com/mctschess/engine/internal/mcts"
	"github.com/mctschess/engine/internal/neteval"
	"github.com/mctschess/engine/internal/storage"
)

// defaultVisitLimit bounds a "go" command issued with no time control or
// explicit visit count.
const defaultVisitLimit = 800

// defaultWarmEntries bounds how many persisted entries are loaded into
// memory at startup from the optional disk cache.
const defaultWarmEntries = 50_000

// evalEntryBytes approximates one cached entry's footprint (a float32
// value plus a 1,858-slot float32 policy vector), used to translate a
// UCI Hash (MB) setting into an evalcache entry-count capacity.
const evalEntryBytes = 4 + 1858*4

// UCI drives mcts.Search from stdin, reporting results per spec.md §6.
type UCI struct {
	search *mcts.Search
	eval   *neteval.Evaluator
	gs     *history.GameState

	threads    int
	useGPU     bool
	cpuct      float64
	visitLimit int

	searching     atomic.Bool
	searchDone    chan struct{}
	stopRequested atomic.Bool

	cacheStore  *storage.CacheStore
	profileFile *os.File
}

// New builds a UCI shell around an already-running network evaluator. The
// on-disk evaluation cache overflow store is opened best-effort: if it
// can't be opened (no writable data directory, e.g. a sandboxed CI
// runner), the engine still runs with an in-memory-only cache.
func New(eval *neteval.Evaluator) *UCI {
	tree := mcts.NewTree()
	u := &UCI{
		search:     mcts.NewSearch(tree, eval, mcts.DefaultCPuct),
		eval:       eval,
		gs:         history.NewGameState(board.NewPosition()),
		threads:    runtime.NumCPU(),
		cpuct:      mcts.DefaultCPuct,
		visitLimit: defaultVisitLimit,
	}

	store, err := storage.NewCacheStore()
	if err != nil {
		fmt.Fprintf(os.Stderr, "info string disk cache unavailable: %v\n", err)
		return u
	}
	u.cacheStore = store
	if err := store.WarmCache(eval.Cache(), defaultWarmEntries); err != nil {
		fmt.Fprintf(os.Stderr, "info string disk cache warm-up failed: %v\n", err)
	}
	return u
}

// Run reads UCI commands from stdin until quit or EOF.
func (u *UCI) Run() {
	scanner := bufio.NewScanner(os.Stdin)
	scanner.Buffer(make([]byte, 1024*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		fields := strings.Fields(line)
		cmd := fields[0]
		args := fields[1:]

		switch cmd {
		case "uci":
			u.handleUCI()
		case "isready":
			fmt.Println("readyok")
		case "ucinewgame":
			u.handleNewGame()
		case "position":
			u.handlePosition(args)
		case "go":
			u.handleGo(args)
		case "stop", "ponderhit":
			u.handleStop()
		case "setoption":
			u.handleSetOption(args)
		case "d":
			fmt.Println(u.gs.Position().String())
		case "quit":
			u.handleQuit()
			return
		default:
			// Unknown commands are silently ignored per UCI convention.
		}
	}
}

func (u *UCI) handleUCI() {
	fmt.Println("id name mctschess")
	fmt.Println("id author mctschess contributors")
	fmt.Printf("option name Threads type spin default %d min 1 max 512\n", runtime.NumCPU())
	fmt.Println("option name UseGPU type check default false")
	fmt.Printf("option name CPuct type spin default %d min 1 max 100\n", int(mcts.DefaultCPuct*10))
	fmt.Printf("option name VisitLimit type spin default %d min 1 max 1000000\n", defaultVisitLimit)
	fmt.Println("option name Hash type spin default 64 min 1 max 8192")
	fmt.Println("option name Debug type check default false")
	fmt.Println("uciok")
}

func (u *UCI) handleNewGame() {
	u.search.Clear()
	u.gs = history.NewGameState(board.NewPosition())
}

// handlePosition parses "position [startpos | fen <FEN>] [moves m1 m2 ...]".
// A malformed FEN leaves the board unchanged; an invalid move in the moves
// list is skipped, with subsequent moves still applied against the
// position as it stood before the skipped move (spec.md §7).
func (u *UCI) handlePosition(args []string) {
	if len(args) == 0 {
		return
	}

	var pos *board.Position
	rest := args

	switch args[0] {
	case "startpos":
		pos = board.NewPosition()
		rest = args[1:]
	case "fen":
		rest = args[1:]
		end := len(rest)
		for i, a := range rest {
			if a == "moves" {
				end = i
				break
			}
		}
		if end < 4 {
			return
		}
		fen := strings.Join(rest[:end], " ")
		parsed, err := board.ParseFEN(fen)
		if err != nil {
			return
		}
		pos = parsed
		rest = rest[end:]
	default:
		return
	}

	gs := history.NewGameState(pos)

	if len(rest) > 0 && rest[0] == "moves" {
		for _, ms := range rest[1:] {
			m, err := board.ParseMove(ms, gs.Position())
			if err != nil {
				continue
			}
			if !gs.Position().GenerateLegalMoves().Contains(m) {
				continue
			}
			gs.MakeMove(m)
		}
	}

	u.gs = gs
	u.search.Clear()
}

// GoOptions holds the parsed arguments of a "go" command.
type GoOptions struct {
	MoveTime  time.Duration
	WTime     time.Duration
	BTime     time.Duration
	WInc      time.Duration
	BInc      time.Duration
	MovesToGo int
	Visits    int
}

func (u *UCI) parseGoOptions(args []string) GoOptions {
	var opts GoOptions
	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "movetime":
			if i+1 < len(args) {
				if v, err := strconv.Atoi(args[i+1]); err == nil {
					opts.MoveTime = time.Duration(v) * time.Millisecond
				}
				i++
			}
		case "wtime":
			if i+1 < len(args) {
				if v, err := strconv.Atoi(args[i+1]); err == nil {
					opts.WTime = time.Duration(v) * time.Millisecond
				}
				i++
			}
		case "btime":
			if i+1 < len(args) {
				if v, err := strconv.Atoi(args[i+1]); err == nil {
					opts.BTime = time.Duration(v) * time.Millisecond
				}
				i++
			}
		case "winc":
			if i+1 < len(args) {
				if v, err := strconv.Atoi(args[i+1]); err == nil {
					opts.WInc = time.Duration(v) * time.Millisecond
				}
				i++
			}
		case "binc":
			if i+1 < len(args) {
				if v, err := strconv.Atoi(args[i+1]); err == nil {
					opts.BInc = time.Duration(v) * time.Millisecond
				}
				i++
			}
		case "movestogo":
			if i+1 < len(args) {
				if v, err := strconv.Atoi(args[i+1]); err == nil {
					opts.MovesToGo = v
				}
				i++
			}
		case "visits":
			if i+1 < len(args) {
				if v, err := strconv.Atoi(args[i+1]); err == nil {
					opts.Visits = v
				}
				i++
			}
		}
	}
	return opts
}

// estimateMovesRemaining guesses how many moves remain in the game when
// the GUI didn't supply movestogo.
func estimateMovesRemaining() int {
	return 30
}

// calculateBudget turns parsed go options into a search budget, per
// spec.md §6's three go-command forms.
func (u *UCI) calculateBudget(opts GoOptions) mcts.Budget {
	if opts.MoveTime > 0 {
		return mcts.Budget{Deadline: time.Now().Add(opts.MoveTime)}
	}

	var t, inc time.Duration
	if u.gs.Position().SideToMove == board.White {
		t, inc = opts.WTime, opts.WInc
	} else {
		t, inc = opts.BTime, opts.BInc
	}

	if t > 0 {
		m := opts.MovesToGo
		if m <= 0 {
			m = estimateMovesRemaining()
		}
		budgetMs := float64(t.Milliseconds())/(float64(m)+2.5) + float64(inc.Milliseconds())*0.8 - 50
		if budgetMs < 10 {
			budgetMs = 10
		}
		return mcts.Budget{Deadline: time.Now().Add(time.Duration(budgetMs) * time.Millisecond)}
	}

	visits := opts.Visits
	if visits <= 0 || visits > u.visitLimit {
		visits = u.visitLimit
	}
	return mcts.Budget{Visits: visits}
}

func (u *UCI) handleGo(args []string) {
	if u.searching.Load() {
		return
	}

	opts := u.parseGoOptions(args)
	budget := u.calculateBudget(opts)

	u.stopRequested.Store(false)
	u.searching.Store(true)
	u.searchDone = make(chan struct{})

	go func() {
		defer close(u.searchDone)
		defer u.searching.Store(false)

		move, ok := u.search.Run(u.gs, budget, u.threads, &u.stopRequested)
		if !ok {
			fmt.Println("bestmove 0000")
			return
		}
		fmt.Printf("bestmove %s\n", move.String())
	}()
}

func (u *UCI) handleStop() {
	if !u.searching.Load() {
		return
	}
	u.stopRequested.Store(true)
	<-u.searchDone
}

func (u *UCI) handleSetOption(args []string) {
	name, value := parseSetOption(args)
	switch strings.ToLower(name) {
	case "threads":
		if v, err := strconv.Atoi(value); err == nil && v > 0 {
			u.threads = v
		}
	case "usegpu":
		u.useGPU = strings.EqualFold(value, "true")
	case "cpuct":
		if v, err := strconv.Atoi(value); err == nil && v > 0 {
			u.cpuct = float64(v) / 10
			u.search.SetCPuct(u.cpuct)
		}
	case "visitlimit":
		if v, err := strconv.Atoi(value); err == nil && v > 0 {
			u.visitLimit = v
		}
	case "hash":
		if mb, err := strconv.Atoi(value); err == nil && mb > 0 {
			entries := mb * 1024 * 1024 / evalEntryBytes
			if entries > 0 {
				u.eval.Cache().SetCapacity(entries)
			}
		}
	case "debug":
		enabled := strings.EqualFold(value, "true")
		board.DebugMoveValidation = enabled
		if enabled {
			fmt.Fprintf(os.Stderr, "info string debug mode enabled\n")
		}
	case "cpuprofile":
		u.setCPUProfile(value)
	}
}

// setCPUProfile stops any profile in progress; a non-empty, non-"stop"
// value then starts a new one at that path.
func (u *UCI) setCPUProfile(path string) {
	if u.profileFile != nil {
		pprof.StopCPUProfile()
		u.profileFile.Close()
		fmt.Fprintf(os.Stderr, "info string CPU profile stopped\n")
		u.profileFile = nil
	}
	if path == "" || path == "stop" {
		return
	}
	f, err := os.Create(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "info string failed to create profile: %v\n", err)
		return
	}
	if err := pprof.StartCPUProfile(f); err != nil {
		f.Close()
		fmt.Fprintf(os.Stderr, "info string failed to start profile: %v\n", err)
		return
	}
	u.profileFile = f
	fmt.Fprintf(os.Stderr, "info string CPU profiling to %s\n", path)
}

// parseSetOption extracts the name and value fields from
// "name X value Y" (the value may itself contain spaces).
func parseSetOption(args []string) (name, value string) {
	var nameParts, valueParts []string
	mode := ""
	for _, a := range args {
		switch a {
		case "name":
			mode = "name"
			continue
		case "value":
			mode = "value"
			continue
		}
		switch mode {
		case "name":
			nameParts = append(nameParts, a)
		case "value":
			valueParts = append(valueParts, a)
		}
	}
	return strings.Join(nameParts, " "), strings.Join(valueParts, " ")
}

func (u *UCI) handleQuit() {
	if u.searching.Load() {
		u.stopRequested.Store(true)
		<-u.searchDone
	}
	if u.profileFile != nil {
		pprof.StopCPUProfile()
		u.profileFile.Close()
	}
	u.persistCache()
	u.eval.Close()
	os.Exit(0)
}

// persistCache writes the in-memory cache back to the disk overflow
// store, so the next process starts warm. Best-effort: a failure here
// shouldn't block shutdown.
func (u *UCI) persistCache() {
	if u.cacheStore == nil {
		return
	}
	u.eval.Cache().Range(func(key uint64, entry evalcache.Entry) bool {
		if err := u.cacheStore.Put(key, entry); err != nil {
			fmt.Fprintf(os.Stderr, "info string failed to persist cache entry: %v\n", err)
			return false
		}
		return true
	})
	u.cacheStore.Close()
}
