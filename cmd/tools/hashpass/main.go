// Command hashpass prints a bcrypt hash for BOOTSTRAP_ADMIN_PASSWORD_HASH.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"golang.org/x/crypto/bcrypt"
)

func main() {
	cost := flag.Int("cost", bcrypt.DefaultCost, "bcrypt cost")
	flag.Usage = func() {
		fmt.Fprintln(os.Stderr, "usage: go run ./cmd/tools/hashpass [-cost n] <password>")
		flag.PrintDefaults()
	}
	flag.Parse()
	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(2)
	}

	password := flag.Arg(0)
	if len(password) < 8 || len(password) > 72 {
		log.Fatal("password must be 8 to 72 bytes")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), *cost)
	if err != nil {
		log.Fatal(err)
	}

	fmt.Println(string(hash))
}
