// Command engine-uci runs the MCTS chess engine as a UCI process.
package main

import (
	"flag"
	"log"
	"os"
	"path/filepath"
	"runtime/pprof"

	"github.com/mctschess/engine/internal/evalcache"
	"github.com/mctschess/engine/internal/neteval"
	"github.com/mctschess/engine/internal/uci"
)

// numPlanes is the input tensor's plane count: 104 history planes plus
// 4 castling-rights planes and a rule-50 plane (spec.md §4.8).
const numPlanes = 109

// defaultNetworkFile is the conventional weights file name this engine
// looks for alongside the NNUE-style search paths the teacher used.
const defaultNetworkFile = "weights.network"

var (
	cpuprofile = flag.String("cpuprofile", "", "write cpu profile to file")
	netPath    = flag.String("network", "", "path to the policy+value network weights file")
)

func main() {
	flag.Parse()

	profilePath := *cpuprofile
	if profilePath == "" {
		profilePath = os.Getenv("CPUPROFILE")
	}
	if profilePath != "" {
		f, err := os.Create(profilePath)
		if err != nil {
			log.Fatal("could not create CPU profile: ", err)
		}
		defer f.Close()
		if err := pprof.StartCPUProfile(f); err != nil {
			log.Fatal("could not start CPU profile: ", err)
		}
		defer pprof.StopCPUProfile()
		log.Printf("CPU profiling enabled, writing to %s", profilePath)
	}

	runner := loadRunner(*netPath)

	cache := evalcache.New()
	eval := neteval.New(runner, numPlanes, cache)

	protocol := uci.New(eval)
	protocol.Run()
}

// loadRunner resolves a network weights file from the -network flag or a
// small set of conventional search paths, per the teacher's NNUE
// auto-discovery idiom. The concrete inference runtime that would parse
// an actual weights file is the external collaborator behind
// neteval.Runner (spec.md's network file format is explicitly
// implementation-defined); until one is wired in, any discovered path is
// logged and a uniform-prior stub runner is used in its place, matching
// the teacher's "NNUE not loaded, using classical evaluation" fallback
// idiom rather than failing UCI startup outright.
func loadRunner(explicit string) neteval.Runner {
	if explicit != "" {
		log.Printf("network weights %s specified but no inference runtime is wired in; using uniform-prior stub runner", explicit)
		return &neteval.StubRunner{}
	}

	for _, dir := range searchPaths() {
		path := filepath.Join(dir, defaultNetworkFile)
		if fileExists(path) {
			log.Printf("found network weights at %s but no inference runtime is wired in; using uniform-prior stub runner", path)
			return &neteval.StubRunner{}
		}
	}

	log.Printf("no network weights found (tried -network flag and conventional search paths); using uniform-prior stub runner")
	return &neteval.StubRunner{}
}

func searchPaths() []string {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	return []string{
		filepath.Join(home, ".mctschess", "network"),
		"./network",
		".",
	}
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
