package main

import (
	"os"

	"github.com/CrisisCore-Systems/CompressKit-sub000/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
