package main

import (
	"errors"
	"fmt"
	"log"
	"os"

	"github.com/phillip-england/transitops/internal/transitopscli"
)

func main() {
	if err := transitopscli.Execute(os.Args[1:]); err != nil {
		if errors.Is(err, transitopscli.ErrUsage) {
			fmt.Fprintln(os.Stderr, err)
			transitopscli.PrintUsage(os.Stderr)
			os.Exit(2)
		}
		log.Fatal(err)
	}
}
