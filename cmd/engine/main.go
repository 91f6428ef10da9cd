package main

import (
	"fmt"
	"os"

	"disorderbook/domain/book"
	"disorderbook/infra/logging"
	"disorderbook/service"
)

// The engine process owns exactly one (venue, symbol). It speaks the
// command protocol on stdin/stdout and publishes the event feed on
// stderr, so logs go to a rotating file only.
func main() {
	if len(os.Args) != 3 {
		fmt.Printf("Engine called with %d arguments (2 required: venue symbol). Quitting.\n", len(os.Args)-1)
		os.Exit(1)
	}
	venue, symbol := os.Args[1], os.Args[2]

	logger := logging.New("logs", "engine", "info", false)
	logger.Info("engine starting", "venue", venue, "symbol", symbol)

	eng := book.New(book.Config{Venue: venue, Symbol: symbol}, book.NewFeedWriter(os.Stderr))
	d := service.NewDispatcher(eng, os.Stdin, os.Stdout, logger)

	if err := d.Run(); err != nil {
		logger.Error("engine stopped", "error", err)
		os.Exit(1)
	}
}
