// Command csphash computes the CSP source expression for an inline script or
// style snippet, for hash allow-listing instead of 'unsafe-inline'.
//
// Usage:
//
//	csphash file.js            hash the file contents
//	cat snippet | csphash      hash stdin
//
// The snippet must match the inline content byte for byte, whitespace
// included, or browsers will reject the hash.
package main

import (
	"fmt"
	"io"
	"os"

	"github.com/promptexify/promptexify/internal/secutil"
)

func main() {
	if err := run(os.Args[1:], os.Stdin, os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, "csphash:", err)
		os.Exit(1)
	}
}

func run(args []string, stdin io.Reader, stdout io.Writer) error {
	if len(args) == 0 {
		src, err := io.ReadAll(stdin)
		if err != nil {
			return err
		}
		fmt.Fprintln(stdout, secutil.InlineHash(src))
		return nil
	}

	for _, name := range args {
		src, err := os.ReadFile(name)
		if err != nil {
			return err
		}
		if len(args) == 1 {
			fmt.Fprintln(stdout, secutil.InlineHash(src))
			continue
		}
		fmt.Fprintf(stdout, "%s  %s\n", secutil.InlineHash(src), name)
	}
	return nil
}
