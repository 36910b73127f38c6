package main

import (
	"errors"
	"flag"
	"fmt"
	"os"

	"github.com/chazu/exotic/projection"
)

// handleFieldsCommand processes `exotic fields`.
func handleFieldsCommand(args []string) error {
	fs := flag.NewFlagSet("fields", flag.ContinueOnError)
	pkg := fs.String("pkg", ".", "Package pattern to load")
	typeName := fs.String("type", "", "Struct type the accessors read")
	file := fs.String("file", "", "Parse a single file instead of loading a package")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *typeName == "" || fs.NArg() == 0 {
		return errors.New("usage: exotic fields [-pkg path | -file f.go] -type T func...")
	}

	var names []string
	var err error
	if *file != "" {
		names, err = projection.ResolveSource(*file, nil, *typeName, fs.Args()...)
	} else {
		names, err = projection.Resolve(*pkg, *typeName, fs.Args()...)
	}
	if err != nil {
		return err
	}
	for i, fn := range fs.Args() {
		fmt.Fprintf(os.Stdout, "%s\t%s.%s\n", fn, *typeName, names[i])
	}
	return nil
}
