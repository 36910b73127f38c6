package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/chazu/exotic/profile"
)

// handleProfileCommand processes `exotic profile`.
func handleProfileCommand(args []string) error {
	if len(args) != 1 {
		return errors.New("usage: exotic profile file.cbor")
	}
	snap, err := profile.ReadFile(args[0])
	if err != nil {
		return err
	}
	printSnapshot(os.Stdout, snap)
	return nil
}

func printSnapshot(w io.Writer, snap *profile.Snapshot) {
	fmt.Fprintf(w, "Snapshot taken %s, %d sites\n\n", snap.Taken().Format("2006-01-02 15:04:05"), len(snap.Sites))
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tSTATE\tDEPTH\tHITS\tMISSES\tFALLBACKS")
	for _, s := range snap.Sites {
		fmt.Fprintf(tw, "%s\t%s\t%d/%d\t%d\t%d\t%d\n", s.Name, s.State, s.Depth, s.MaxDepth, s.Hits, s.Misses, s.Fallbacks)
	}
	tw.Flush()
}
