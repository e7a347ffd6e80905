package main

import (
	"log"

	"ticket-reconcile/cmd"
)

func main() {
	if err := cmd.Start(); err != nil {
		log.Fatal(err)
	}
}
