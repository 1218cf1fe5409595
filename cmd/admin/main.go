package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"

	persistlog "buildgrid.ai/internal/persistence/log"
)

func main() {
	if len(os.Args) >= 2 {
		switch os.Args[1] {
		case "db":
			dbCmd(os.Args[2:])
			return
		case "status":
			statusCmd(os.Args[2:])
			return
		case "destroy":
			destroyCmd(os.Args[2:])
			return
		}
	}
	listCmd(os.Args[1:])
}

func listCmd(args []string) {
	fs := flag.NewFlagSet("admin", flag.ExitOnError)
	dataDir := fs.String("data", "./data", "runtime data directory")
	_ = fs.Parse(args)

	entries, err := os.ReadDir(filepath.Join(*dataDir, "worlds"))
	if err != nil {
		fmt.Fprintln(os.Stderr, "read:", err)
		os.Exit(1)
	}
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		runs, _ := persistlog.Runs(filepath.Join(*dataDir, "worlds", e.Name()))
		if len(runs) == 0 {
			fmt.Println(e.Name())
			continue
		}
		fmt.Printf("%s runs=%d latest=%s\n", e.Name(), len(runs), runs[len(runs)-1])
	}
}
