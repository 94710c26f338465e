package main

import (
	"os"

	_ "go.uber.org/automaxprocs"

	"github.com/kiosk404/reinsmem/internal/reinsmemctl/cmd"
)

func main() {
	command := cmd.NewDefaultReinsmemCtlCommand()
	if err := command.Execute(); err != nil {
		os.Exit(1)
	}
}
