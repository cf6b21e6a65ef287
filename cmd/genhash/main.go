// cmd/genhash prints a bcrypt hash for manual inserts.
package main

import (
	"fmt"
	"os"

	flag "github.com/spf13/pflag"
	"golang.org/x/crypto/bcrypt"
)

func main() {
	cost := flag.Int("cost", 12, "bcrypt cost")
	flag.Parse()
	if flag.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "uso: genhash [--cost N] <password>")
		os.Exit(2)
	}
	h, err := bcrypt.GenerateFromPassword([]byte(flag.Arg(0)), *cost)
	if err != nil {
		panic(err)
	}
	fmt.Println(string(h))
}
