//go:build mage

package main

import (
	"strconv"

	"github.com/magefile/mage/sh"
)

// Download acquires the candidate at rank from results.yaml (written by
// the Search target) into media/books/pdfs.
func Download(rank int) error {
	return sh.RunV("go", "run", cmdPkg, "acquire", "--from", "results.yaml", "--pick", strconv.Itoa(rank))
}
