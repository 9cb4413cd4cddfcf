package main

import (
	"flag"
	"fmt"
	"os"
)

const version = "0.1.0"

func main() {
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: vecbt <command> [options]\n\n")
		fmt.Fprintf(os.Stderr, "Commands:\n")
		fmt.Fprintf(os.Stderr, "  run         Backtest one strategy over a dataset\n")
		fmt.Fprintf(os.Stderr, "  sweep       Evaluate a parameter grid in parallel\n")
		fmt.Fprintf(os.Stderr, "  gen         Generate a synthetic bar file\n")
		fmt.Fprintf(os.Stderr, "  convert     Convert a CSV bar file to Parquet or import it into the store\n")
		fmt.Fprintf(os.Stderr, "  runs        List persisted runs, or the trades of one run\n")
		fmt.Fprintf(os.Stderr, "  strategies  List registered strategy kinds\n")
		fmt.Fprintf(os.Stderr, "  version     Print the CLI version\n")
		fmt.Fprintf(os.Stderr, "\nRun 'vecbt <command> -h' for command options.\n")
	}

	if len(os.Args) < 2 {
		flag.Usage()
		os.Exit(1)
	}

	cmd, args := os.Args[1], os.Args[2:]
	var err error
	switch cmd {
	case "version":
		fmt.Printf("vecbt %s\n", version)

	case "run":
		err = runCommand(args)

	case "sweep":
		err = sweepCommand(args)

	case "gen":
		err = genCommand(args)

	case "convert":
		err = convertCommand(args)

	case "runs":
		err = runsCommand(args)

	case "strategies":
		err = strategiesCommand()

	case "help", "-h", "--help":
		flag.Usage()

	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n\n", cmd)
		flag.Usage()
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "vecbt %s: %v\n", cmd, err)
		os.Exit(1)
	}
}
