package main

import (
	"os"

	"github.com/altglass/imgcache/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
