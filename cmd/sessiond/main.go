// Command sessiond serves a small guestbook whose entries live in each
// visitor's server-side session.
//
// Run:
//
//	go run ./cmd/sessiond
//
// Without REDIS_ADDR it uses an in-process miniredis. Set
// SESSIOND_COOKIE_SECRET (32+ bytes) so sessions survive restarts.
package main

import (
	"fmt"
	"os"

	"github.com/MrEthical07/goSession/internal/app"
)

func main() {
	if err := app.Run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
