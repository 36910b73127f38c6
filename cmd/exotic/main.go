// exotic CLI - benchmarks call sites, resolves accessor fields and prints
// stored profiles
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/tliron/commonlog"

	_ "github.com/tliron/commonlog/simple"
)

var log = commonlog.GetLogger("exotic.cli")

func main() {
	flag.Usage = usage
	flag.Parse()

	args := flag.Args()
	if len(args) == 0 {
		usage()
		os.Exit(2)
	}

	var err error
	switch args[0] {
	case "bench":
		err = handleBenchCommand(args[1:])
	case "fields":
		err = handleFieldsCommand(args[1:])
	case "profile":
		err = handleProfileCommand(args[1:])
	case "help":
		usage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", args[0])
		usage()
		os.Exit(2)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintf(os.Stderr, "Usage: exotic <command> [options]\n\n")
	fmt.Fprintf(os.Stderr, "Commands:\n")
	fmt.Fprintf(os.Stderr, "  bench [-n N] [-config dir] [-profile out.cbor]  Run one workload per call-site kind\n")
	fmt.Fprintf(os.Stderr, "  fields -pkg path -type T func...                 Print the fields read by accessor funcs\n")
	fmt.Fprintf(os.Stderr, "  profile file.cbor                                Print a stored profile snapshot\n")
	fmt.Fprintf(os.Stderr, "\nExamples:\n")
	fmt.Fprintf(os.Stderr, "  exotic bench -n 100000 -profile bench.cbor\n")
	fmt.Fprintf(os.Stderr, "  exotic fields -pkg ./model -type User userID userEmail\n")
	fmt.Fprintf(os.Stderr, "  exotic profile bench.cbor\n")
}
