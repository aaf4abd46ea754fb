package main

import (
	"flag"
	"fmt"
	"os"

	"vivigo/internal/engine/manager"
	"vivigo/internal/log"
)

func cmdCheck(args []string) {
	fs := flag.NewFlagSet("check", flag.ExitOnError)
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: vivi check <project-dir>\n")
	}
	_ = fs.Parse(args)

	if fs.NArg() < 1 {
		fs.Usage()
		os.Exit(1)
	}

	log.Init(log.FromEnv())

	mgr := manager.New()
	if err := mgr.LoadProject(fs.Arg(0)); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	chars := mgr.CollectCharacters()
	fmt.Printf("OK: %d label(s), %d character(s)\n", mgr.Labels(), len(chars))
}
