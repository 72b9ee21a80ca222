package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/playmatatu/billiards/internal/config"
	"github.com/playmatatu/billiards/internal/game"
	"github.com/playmatatu/billiards/internal/journal"
)

func main() {
	var (
		journalPath = flag.String("journal", "", "path to <table>.jsonl.zst")
		physicsPath = flag.String("physics", "configs/physics.yaml", "physics tuning the table ran with")
		verbose     = flag.Bool("v", false, "print every ball, not just those on the table")
	)
	flag.Parse()

	if *journalPath == "" {
		fmt.Fprintln(os.Stderr, "missing -journal")
		os.Exit(2)
	}

	tuning, err := config.LoadPhysics(*physicsPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "load physics:", err)
		os.Exit(1)
	}

	entries, err := journal.ReadFile(*journalPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "read journal:", err)
		os.Exit(1)
	}

	table, err := game.NewStandardTable(tuning.CushionRestitution)
	if err != nil {
		fmt.Fprintln(os.Stderr, "table:", err)
		os.Exit(1)
	}

	var shots, ticks int
	for _, e := range entries {
		switch e.Kind {
		case journal.KindShot:
			shots++
		case journal.KindTick:
			ticks++
		}
	}
	fmt.Printf("journal entries=%d shots=%d ticks=%d\n", len(entries), shots, ticks)

	d, err := journal.Replay(entries, table, tuning.Params)
	if err != nil {
		fmt.Fprintln(os.Stderr, "replay:", err)
		os.Exit(1)
	}

	balls := d.Balls()
	fmt.Printf("replay OK tick=%d state=%s on_table=%d digest=%s\n",
		d.TickCount(), d.State(), d.Store().ActiveCount(), journal.Digest(balls))
	for _, b := range balls {
		if !b.Active && !*verbose {
			continue
		}
		fmt.Printf("  ball %2d %-7s active=%-5v pos=(%.4f, %.4f)\n", b.Number, b.Kind, b.Active, b.Position.X, b.Position.Y)
	}
}
