package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/sugawarayuuta/sonnet"

	"github.com/hailam/slidermagic/internal/board"
	"github.com/hailam/slidermagic/internal/consolidate"
	"github.com/hailam/slidermagic/internal/export"
	"github.com/hailam/slidermagic/internal/generate"
	"github.com/hailam/slidermagic/internal/magic"
	"github.com/hailam/slidermagic/internal/record"
	"github.com/hailam/slidermagic/internal/render"
	"github.com/hailam/slidermagic/internal/storage"
)

func newFlagSet(name, argsUsage string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), "usage: magicgen %s [flags] %s\n", name, argsUsage)
		fs.PrintDefaults()
	}
	return fs
}

// parseFlags exits 1 on a bad flag, 0 on -h.
func parseFlags(fs *flag.FlagSet, args []string) {
	err := fs.Parse(args)
	if errors.Is(err, flag.ErrHelp) {
		os.Exit(0)
	}
	if err != nil {
		os.Exit(1)
	}
}

func usageError(fs *flag.FlagSet, format string, args ...any) {
	fmt.Fprintf(fs.Output(), "magicgen %s: %s\n", fs.Name(), fmt.Sprintf(format, args...))
	fs.Usage()
	os.Exit(1)
}

// families resolves a -family value; "both" is only accepted when allowBoth.
func families(fs *flag.FlagSet, s string, allowBoth bool) []board.Family {
	if s == "both" && allowBoth {
		return board.Families[:]
	}
	fam, err := board.ParseFamily(s)
	if err != nil {
		usageError(fs, "%v", err)
	}
	return []board.Family{fam}
}

func squareArg(fs *flag.FlagSet, s string) board.Square {
	sq, err := board.ParseSquare(s)
	if err != nil {
		usageError(fs, "%v", err)
	}
	return sq
}

func magicDir(create bool) string {
	if *dirFlag != "" {
		if create {
			if err := os.MkdirAll(*dirFlag, 0755); err != nil {
				log.Fatal(err)
			}
		}
		return *dirFlag
	}
	dir, err := storage.FindMagicDir(".", create)
	if err != nil {
		log.Fatal(err)
	}
	return dir
}

func openIndex() *storage.Index {
	dir := *indexFlag
	if dir == "" {
		var err error
		if dir, err = storage.GetIndexDir(); err != nil {
			log.Fatal(err)
		}
	}
	idx, err := storage.OpenIndex(dir)
	if err != nil {
		log.Fatal(err)
	}
	return idx
}

func cmdGen(args []string) {
	fs := newFlagSet("gen", "<runs> [square]")
	bits := fs.Uint("bits", 0, "table-capacity bits (0 = per-square minimum)")
	attempts := fs.Uint64("attempts", magic.DefaultMaxAttempts, "attempts per run before giving up")
	workers := fs.Int("workers", runtime.NumCPU(), "parallel searches")
	seed := fs.Uint64("seed", 0, "random seed (0 = time based)")
	minTop := fs.Int("min-top-bits", magic.DefaultMinTopBits, "reject multipliers spreading fewer mask bits into the top byte")
	family := fs.String("family", "both", "rook, bishop or both")
	parseFlags(fs, args)

	if fs.NArg() < 1 || fs.NArg() > 2 {
		usageError(fs, "expected <runs> [square], got %d arguments", fs.NArg())
	}
	runs, err := strconv.Atoi(fs.Arg(0))
	if err != nil || runs < 1 {
		usageError(fs, "invalid run count %q", fs.Arg(0))
	}
	var target *board.Square
	if fs.NArg() == 2 {
		sq := squareArg(fs, fs.Arg(1))
		target = &sq
	}
	if *bits > magic.MaxBits {
		usageError(fs, "-bits must be at most %d", magic.MaxBits)
	}
	if *minTop < 0 || *minTop > 8 {
		usageError(fs, "-min-top-bits must be between 0 and 8")
	}
	fams := families(fs, *family, true)

	dir := magicDir(true)
	if *seed == 0 {
		*seed = uint64(time.Now().UnixNano())
	}

	r := generate.NewRunner(dir, runs)
	r.Bits = uint8(*bits)
	r.MaxAttempts = *attempts
	r.MinTopBits = *minTop
	r.Workers = *workers
	r.Seed = *seed
	r.Logger = newLogger()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	units := generate.Units(fams, target)
	log.Printf("%d runs for %d units into %s (seed %d, %d workers)", runs, len(units), dir, *seed, r.Workers)

	start := time.Now()
	report, err := r.Run(ctx, units)
	t := report.Totals()
	log.Printf("found %s candidates in %v (%d exhausted, %d lost)",
		humanize.Comma(int64(t.Found)), time.Since(start).Round(time.Millisecond), t.Exhausted, t.Lost)
	if err != nil {
		log.Fatal(err)
	}
}

func cmdSummary(args []string) {
	fs := newFlagSet("summary", "")
	family := fs.String("family", "both", "rook, bishop or both")
	parseFlags(fs, args)
	if fs.NArg() > 0 {
		usageError(fs, "unexpected arguments")
	}
	fams := families(fs, *family, true)

	dir := magicDir(false)
	idx := openIndex()
	defer idx.Close()

	for _, fam := range fams {
		pools, missing, rejected, err := record.LoadAll(dir, fam)
		if err != nil {
			log.Fatal(err)
		}
		summaries := record.Summarize(&pools, fam)
		for _, s := range summaries {
			if s.Count == 0 {
				continue
			}
			fmt.Printf("%s %-2s %6d  width %-6d magic 0x%016x\n", fam, s.Square, s.Count, s.Best.Width, s.Best.Multiplier)
		}
		if len(missing) > 0 {
			log.Printf("%s: %d squares without a stream", fam, len(missing))
		}
		if rejected > 0 {
			log.Printf("%s: %d malformed records skipped", fam, rejected)
		}
		if err := idx.SaveSummaries(summaries); err != nil {
			log.Fatal(err)
		}
	}
}

func cmdPrune(args []string) {
	fs := newFlagSet("prune", "")
	keep := fs.Int("keep", record.DefaultKeep, "candidates kept per stream")
	family := fs.String("family", "both", "rook, bishop or both")
	parseFlags(fs, args)
	if fs.NArg() > 0 {
		usageError(fs, "unexpected arguments")
	}
	if *keep < 1 {
		usageError(fs, "-keep must be positive")
	}
	fams := families(fs, *family, true)

	dir := magicDir(false)
	for _, fam := range fams {
		removed, err := record.Prune(dir, fam, *keep)
		if err != nil {
			log.Fatal(err)
		}
		log.Printf("%s: removed %s records", fam, humanize.Comma(int64(removed)))
	}
}

// buildPlan loads every stream of fam and packs it.
func buildPlan(ctx context.Context, dir string, fam board.Family) *consolidate.Plan {
	pools, missing, rejected, err := record.LoadAll(dir, fam)
	if err != nil {
		log.Fatal(err)
	}
	if rejected > 0 {
		log.Printf("%s: %d malformed records skipped", fam, rejected)
	}
	if len(missing) > 0 {
		log.Printf("%s: no stream for %v", fam, missing)
	}

	plan, err := consolidate.BuildPlan(ctx, fam, &pools)
	if err != nil {
		log.Fatal(err)
	}
	return plan
}

func cmdConsolidate(args []string) {
	fs := newFlagSet("consolidate", "")
	family := fs.String("family", "both", "rook, bishop or both")
	asJSON := fs.Bool("json", false, "print the plans as JSON")
	parseFlags(fs, args)
	if fs.NArg() > 0 {
		usageError(fs, "unexpected arguments")
	}
	fams := families(fs, *family, true)

	dir := magicDir(false)
	idx := openIndex()
	defer idx.Close()

	for _, fam := range fams {
		plan := buildPlan(context.Background(), dir, fam)
		if err := idx.SavePlan(plan); err != nil {
			log.Fatal(err)
		}

		if *asJSON {
			data, err := sonnet.Marshal(plan)
			if err != nil {
				log.Fatal(err)
			}
			fmt.Printf("%s\n", data)
			continue
		}

		fmt.Printf("%s:\n", fam)
		for _, c := range plan.Choices {
			mults := make([]string, len(c.Multipliers))
			for i, m := range c.Multipliers {
				mults[i] = fmt.Sprintf("0x%016x", m)
			}
			fmt.Printf("%s size: %d start: %d magics: %s\n", c.Group, c.Size, c.Start, strings.Join(mults, " "))
		}
		fmt.Printf("predicted total: %s slots (%s)\n", humanize.Comma(int64(plan.TotalSlots)), humanize.IBytes(plan.Bytes()))
	}
}

func cmdHoles(args []string) {
	fs := newFlagSet("holes", "<square>")
	family := fs.String("family", "rook", "rook or bishop")
	bits := fs.Uint("bits", 0, "table-capacity bits the stream was searched with (0 = per-square minimum)")
	minHole := fs.Int("min-hole", magic.DefaultMinHoleSize, "report free runs longer than this")
	out := fs.String("out", "", "also draw the slot usage to this SVG file")
	parseFlags(fs, args)
	if fs.NArg() != 1 {
		usageError(fs, "expected one square")
	}
	sq := squareArg(fs, fs.Arg(0))
	fam := families(fs, *family, false)[0]
	if *bits > magic.MaxBits {
		usageError(fs, "-bits must be at most %d", magic.MaxBits)
	}

	tableBits := uint8(*bits)
	if tableBits == 0 {
		tableBits = magic.DefaultBits(sq, fam)
	}

	cands, _, err := record.Load(magicDir(false), sq, fam)
	if err != nil {
		log.Fatal(err)
	}
	best, ok := record.Best(cands)
	if !ok {
		log.Fatalf("%s %s: no candidates", fam, sq)
	}
	if err := magic.Verify(sq, fam, tableBits, best); err != nil {
		log.Fatalf("%s %s: best candidate does not replay with %d bits (wrong -bits?): %v", fam, sq, tableBits, err)
	}

	holes := magic.FindHoles(sq, fam, tableBits, best, *minHole)
	for _, h := range holes {
		fmt.Printf("hole at %d size %d\n", h.Position, h.Size)
	}
	fmt.Printf("%s %s magic 0x%016x: %d holes, %d free slots in [%d, %d]\n",
		fam, sq, best.Multiplier, len(holes), magic.HoleSlots(holes), best.MinHash, best.MaxHash)

	if *out != "" {
		f, err := os.Create(*out)
		if err != nil {
			log.Fatal(err)
		}
		used := magic.UsedSlots(sq, fam, tableBits, best)
		render.WriteUsageSVG(f, used, int(best.MinHash), int(best.MaxHash), 64, holes)
		if err := f.Close(); err != nil {
			log.Fatal(err)
		}
	}
}

func cmdRender(args []string) {
	fs := newFlagSet("render", "<square>")
	family := fs.String("family", "rook", "rook or bishop")
	occ := fs.String("occ", "0", "occupied squares as a hex bitboard")
	out := fs.String("out", "", "output file, .svg or .png (default <letter>_<square>.svg)")
	size := fs.Int("size", 480, "PNG width and height in pixels")
	parseFlags(fs, args)
	if fs.NArg() != 1 {
		usageError(fs, "expected one square")
	}
	sq := squareArg(fs, fs.Arg(0))
	fam := families(fs, *family, false)[0]
	occupied, err := strconv.ParseUint(strings.TrimPrefix(*occ, "0x"), 16, 64)
	if err != nil {
		usageError(fs, "invalid -occ %q", *occ)
	}
	if *size < 8 {
		usageError(fs, "-size too small")
	}

	path := *out
	if path == "" {
		path = fmt.Sprintf("%c_%s.svg", fam.Letter(), sq)
	}

	f, err := os.Create(path)
	if err != nil {
		log.Fatal(err)
	}
	d := render.NewDiagram(sq, fam, board.Bitboard(occupied))
	if strings.EqualFold(filepath.Ext(path), ".png") {
		err = d.WritePNG(f, *size)
	} else {
		d.WriteSVG(f)
	}
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		log.Fatal(err)
	}
	log.Printf("wrote %s", path)
}

func cmdExport(args []string) {
	fs := newFlagSet("export", "")
	dbPath := fs.String("db", "plan.db", "SQLite database")
	family := fs.String("family", "both", "rook, bishop or both")
	parseFlags(fs, args)
	if fs.NArg() > 0 {
		usageError(fs, "unexpected arguments")
	}
	fams := families(fs, *family, true)

	idx := openIndex()
	defer idx.Close()

	db, err := export.Open(*dbPath)
	if err != nil {
		log.Fatal(err)
	}
	defer db.Close()

	for _, fam := range fams {
		var plan *consolidate.Plan
		saved, err := idx.LoadPlan(fam)
		switch {
		case errors.Is(err, storage.ErrNotFound):
			plan = buildPlan(context.Background(), magicDir(false), fam)
			if err := idx.SavePlan(plan); err != nil {
				log.Fatal(err)
			}
		case err != nil:
			log.Fatal(err)
		default:
			plan = saved.Plan
			log.Printf("%s: plan built %s", fam, humanize.Time(saved.BuiltAt))
		}

		if err := db.WritePlan(plan); err != nil {
			log.Fatal(err)
		}
		log.Printf("%s: exported %d groups, %s", fam, len(plan.Choices), humanize.IBytes(plan.Bytes()))
	}
}
