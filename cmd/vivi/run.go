package main

import (
	"bufio"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"vivigo/internal/config"
	"vivigo/internal/engine/event"
	"vivigo/internal/engine/executor"
	"vivigo/internal/engine/manager"
	"vivigo/internal/engine/runtime"
	"vivigo/internal/engine/scripting"
	"vivigo/internal/log"
	"vivigo/internal/storage"
)

// cmdRun drives a project with a plain line-oriented loop: it prints output
// events, and at each wait reads one line of input. Empty line continues,
// a number picks a choice, "save N"/"load N" use slots, "q" exits.
func cmdRun(args []string) {
	fs := flag.NewFlagSet("run", flag.ExitOnError)
	entry := fs.String("label", "init", "entry label")
	cfgPath := fs.String("config", "config.yaml", "config file path")
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: vivi run [-label init] [-config config.yaml] <project-dir>\n")
		fs.PrintDefaults()
	}
	_ = fs.Parse(args)

	if fs.NArg() < 1 {
		fs.Usage()
		os.Exit(1)
	}

	cfg, err := config.Load(*cfgPath)
	log.Init(log.Options{Level: cfg.Logging.Level, Format: cfg.Logging.Format, File: cfg.Logging.File})
	if err != nil {
		log.L().Warn("bad config, using defaults", "path", *cfgPath, "err", err)
	}

	mgr := manager.New()
	if err := mgr.LoadProject(fs.Arg(0)); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	eval, err := scripting.NewEngine()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	ctx := runtime.NewCtx()
	exe := executor.New(mgr, eval, &cfg)
	exe.LoadGlobalData()
	if err := exe.Start(ctx, *entry); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	if err := os.MkdirAll(cfg.Storage.SaveDir, 0o755); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	catalog, err := storage.OpenCatalog(filepath.Join(cfg.Storage.SaveDir, "saves.db"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening save catalog: %v\n", err)
		os.Exit(1)
	}
	defer catalog.Close()

	in := bufio.NewScanner(os.Stdin)
	for {
		waiting, err := exe.Step(ctx)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Fatal: %v\n", err)
			os.Exit(1)
		}

		ended := false
		for _, ev := range ctx.Drain() {
			ended = printEvent(ev) || ended
		}
		if ended {
			return
		}
		if !waiting {
			continue
		}

		if !in.Scan() {
			exe.Feed(event.Exit{})
			continue
		}
		line := strings.TrimSpace(in.Text())
		switch {
		case line == "":
			exe.Feed(event.Continue{})
		case line == "q" || line == "quit":
			exe.Feed(event.Exit{})
		case strings.HasPrefix(line, "save "):
			doSave(&cfg, ctx, exe, catalog, strings.TrimPrefix(line, "save "))
		case strings.HasPrefix(line, "load "):
			doLoad(&cfg, &ctx, exe, strings.TrimPrefix(line, "load "))
		default:
			if n, err := strconv.Atoi(line); err == nil {
				exe.Feed(event.ChoiceMade{Index: n})
			}
		}
	}
}

func doSave(cfg *config.Config, ctx *runtime.Ctx, exe *executor.Executor, catalog *storage.Catalog, arg string) {
	slot, err := strconv.Atoi(strings.TrimSpace(arg))
	if err != nil {
		fmt.Println("usage: save <slot>")
		return
	}
	exe.SyncVarsToCtx(ctx)
	snap := exe.Snapshot()
	if err := storage.SaveSlot(storage.SlotPath(cfg.Storage.SaveDir, slot), ctx, snap); err != nil {
		fmt.Printf("save failed: %v\n", err)
		return
	}
	if catalog != nil {
		meta := storage.SaveMeta{Slot: slot}
		if len(snap) > 0 {
			meta.Label = snap[len(snap)-1].Label
		}
		if len(ctx.History) > 0 {
			meta.LastLine = ctx.History[len(ctx.History)-1].Text
		}
		if err := catalog.Record(meta); err != nil {
			fmt.Printf("catalog update failed: %v\n", err)
		}
	}
	fmt.Printf("saved to slot %d\n", slot)
}

func doLoad(cfg *config.Config, ctx **runtime.Ctx, exe *executor.Executor, arg string) {
	slot, err := strconv.Atoi(strings.TrimSpace(arg))
	if err != nil {
		fmt.Println("usage: load <slot>")
		return
	}
	loaded, snap, err := storage.LoadSlot(storage.SlotPath(cfg.Storage.SaveDir, slot))
	if err != nil {
		fmt.Printf("load failed: %v\n", err)
		return
	}
	if err := exe.Restore(snap); err != nil {
		fmt.Printf("load failed: %v\n", err)
		return
	}
	*ctx = loaded
	exe.SyncVarsFromCtx(loaded)
	fmt.Printf("loaded slot %d\n", slot)
}

// printEvent renders one output event; reports true on End.
func printEvent(ev event.OutputEvent) bool {
	switch e := ev.(type) {
	case event.ShowNarration:
		for _, l := range e.Lines {
			fmt.Println(l)
		}
	case event.ShowDialogue:
		fmt.Printf("%s: %s\n", e.Name, e.Content)
	case event.ShowChoice:
		if e.Title != "" {
			fmt.Println(e.Title)
		}
		for i, opt := range e.Options {
			fmt.Printf("  [%d] %s\n", i, opt)
		}
	case event.PlayAudio:
		fmt.Printf("~ play %s on %s (vol %.2f)\n", e.Path, e.Channel, e.Volume)
	case event.StopAudio:
		fmt.Printf("~ stop %s\n", e.Channel)
	case event.NewScene:
		fmt.Printf("~ scene (%s)\n", e.Transition)
	case event.NewSprite:
		fmt.Printf("~ show %s (%s)\n", e.Target, e.Transition)
	case event.UpdateSprite:
		fmt.Printf("~ update %s (%s)\n", e.Target, e.Transition)
	case event.HideSprite:
		fmt.Printf("~ hide %s\n", e.Target)
	case event.Preload:
		// asset hints are of no use to a terminal
	case event.End:
		fmt.Println("-- end --")
		return true
	}
	return false
}
