package main

import (
	"os"
	_ "time/tzdata"

	"kal/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
