// Command magicgen searches magic multipliers for sliding-piece attack
// tables and packs the results into a compact layout.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"runtime/pprof"

	"github.com/go-logr/logr"
	"github.com/go-logr/stdr"
)

var (
	cpuprofile = flag.String("cpuprofile", "", "write cpu profile to file")
	dirFlag    = flag.String("dir", "", "magic folder (default $MAGIC_DIR or ./magic, searched up to three parents)")
	indexFlag  = flag.String("index", "", "run index directory (default in the user data directory)")
	verbosity  = flag.Int("v", 0, "log verbosity")
)

type command struct {
	name    string
	summary string
	run     func(args []string)
}

func commands() []command {
	return []command{
		{"gen", "gen [flags] <runs> [square]      search candidates", cmdGen},
		{"summary", "summary [flags]                  narrowest candidate per stream", cmdSummary},
		{"prune", "prune [flags]                    keep the narrowest candidates", cmdPrune},
		{"consolidate", "consolidate [flags]              pack the tables of each family", cmdConsolidate},
		{"holes", "holes [flags] <square>           unused runs inside the best table", cmdHoles},
		{"render", "render [flags] <square>          draw mask and attacks", cmdRender},
		{"export", "export [flags]                   write the plan to SQLite", cmdExport},
	}
}

func usage() {
	out := flag.CommandLine.Output()
	fmt.Fprintf(out, "usage: magicgen [global flags] <command> [flags] [args]\n\ncommands:\n")
	for _, c := range commands() {
		fmt.Fprintf(out, "  %s\n", c.summary)
	}
	fmt.Fprintf(out, "\nglobal flags:\n")
	flag.PrintDefaults()
}

func main() {
	log.SetFlags(log.Ltime)
	flag.Usage = usage
	flag.Parse()

	if flag.NArg() == 0 {
		usage()
		os.Exit(1)
	}

	// Start CPU profiling if requested (via flag or environment variable)
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

	name, args := flag.Arg(0), flag.Args()[1:]
	for _, c := range commands() {
		if c.name == name {
			c.run(args)
			return
		}
	}

	fmt.Fprintf(os.Stderr, "unknown command %q\n", name)
	usage()
	os.Exit(1)
}

// newLogger returns a logger writing through the standard log package.
func newLogger() logr.Logger {
	stdr.SetVerbosity(*verbosity)
	return stdr.New(log.Default())
}
