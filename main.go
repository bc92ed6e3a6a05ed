package main

import (
	"os"

	"github.com/kyleking/docs2ddl/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
