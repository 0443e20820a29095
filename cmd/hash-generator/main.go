// Command hash-generator prints bcrypt hashes for seeding users directly
// into the users table, for example a first staff account.
//
//	hash-generator -cost 12 'correct horse battery'
package main

import (
	"flag"
	"fmt"
	"io"
	"os"

	"golang.org/x/crypto/bcrypt"
)

func main() {
	cost := flag.Int("cost", bcrypt.DefaultCost, "bcrypt cost (4-31)")
	flag.Parse()

	if err := run(os.Stdout, *cost, flag.Args()); err != nil {
		fmt.Fprintf(os.Stderr, "hash-generator: %v\n", err)
		os.Exit(1)
	}
}

func run(out io.Writer, cost int, passwords []string) error {
	if len(passwords) == 0 {
		return fmt.Errorf("at least one password is required")
	}
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		return fmt.Errorf("cost must be between %d and %d, got %d", bcrypt.MinCost, bcrypt.MaxCost, cost)
	}

	for _, password := range passwords {
		hash, err := bcrypt.GenerateFromPassword([]byte(password), cost)
		if err != nil {
			return fmt.Errorf("failed to hash password: %w", err)
		}
		fmt.Fprintln(out, string(hash))
	}
	return nil
}
