package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"

	"qcmpulse/internal/app"
	"qcmpulse/pkg/contracts"
)

func main() {
	version := flag.Bool("version", false, "print version information and exit")
	flag.Parse()

	if *version {
		fmt.Println(app.AppName, contracts.GetVersionInfo())
		return
	}

	application, err := app.NewApplication()
	if err != nil {
		slog.Error("Failed to initialize application", slog.String("error", err.Error()))
		os.Exit(1)
	}

	if err := application.Run(); err != nil {
		slog.Error("Application error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
