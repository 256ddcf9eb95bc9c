// Package main is a utility for generating a bcrypt hash of a password. The
// portal stores only bcrypt hashes of passwords — never the raw values — so
// this tool is used when manually seeding or repairing a profiles row in the
// database without running the full server. Pass the password as the first
// argument; the hash can be inserted directly into the password column.
package main

import (
	"fmt"
	"os"

	"golang.org/x/crypto/bcrypt"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintf(os.Stderr, "usage: %s <password>\n", os.Args[0])
		os.Exit(1)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(os.Args[1]), 12)
	if err != nil {
		panic(err)
	}
	fmt.Println(string(hash))
}
