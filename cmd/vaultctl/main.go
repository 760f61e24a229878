package main

import (
	"os"

	"github.com/dmitrijs2005/sbetterfy/internal/vaultctl"
)

func main() {
	os.Exit(vaultctl.Execute())
}
