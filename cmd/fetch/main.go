// Command fetch downloads a single artifact over HTTP(S), optionally
// verifying its MD5 and SHA-256 digests, and writes it to a file or stdout.
package main

import (
	"os"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}
