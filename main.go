package main

import (
	"log/slog"
	"os"

	"github.com/VladMinzatu/symquery/internal/cli"
)

func main() {
	settings := cli.LoadSettings(os.Getenv)
	// stdout carries the query protocol, so logs go to stderr
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: settings.LogLevel})))

	os.Exit(cli.Run(os.Args, os.Stdin, os.Stdout, cli.DefaultEnv(settings.Library)))
}
