//go:build mage

package main

import "github.com/magefile/mage/sh"

// Search runs a catalog search for query through the CLI and saves the
// ranked candidates to results.yaml.
func Search(query string) error {
	return sh.RunV("go", "run", cmdPkg, "search", "--save", "results.yaml", query)
}

// Serve starts the HTTP API on the configured address.
func Serve() error {
	return sh.RunV("go", "run", cmdPkg, "serve")
}
