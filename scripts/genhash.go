// Prints a password hash for seeding users by hand:
//
//	go run scripts/genhash.go [password]
//
// The cost comes from BCRYPT_COST, like the API.
package main

import (
	"fmt"
	"os"
	"strconv"

	"taskmanager/internal/auth"
)

func main() {
	password := "admin"
	if len(os.Args) > 1 {
		password = os.Args[1]
	}
	cost := 10
	if v, err := strconv.Atoi(os.Getenv("BCRYPT_COST")); err == nil {
		cost = v
	}
	h, err := auth.NewPasswordHasher(cost).Hash(password)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	fmt.Print(h)
}
