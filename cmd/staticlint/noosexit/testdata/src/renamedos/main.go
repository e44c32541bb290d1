package main

import (
	"fmt"
	system "os"
)

type exiter struct{}

func (exiter) Exit(code int) {
	fmt.Println("not the real exit", code)
}

func main() {
	var os exiter
	os.Exit(0)

	system.Exit(3) // want "avoid using os.Exit in main.main"
}
