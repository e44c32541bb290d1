package main

import (
	"fmt"
	"io"
	"log"
	"os"

	"github.com/YashLadlapure/meme-vault/internal/app"
)

// Set with -ldflags "-X main.buildVersion=..." at build time.
var (
	buildVersion = "N/A"
	buildDate    = "N/A"
	buildCommit  = "N/A"
)

func printBuildInfo(w io.Writer) {
	fmt.Fprintf(w, "Build version: %s\n", buildVersion)
	fmt.Fprintf(w, "Build date: %s\n", buildDate)
	fmt.Fprintf(w, "Build commit: %s\n", buildCommit)
}

func main() {
	printBuildInfo(os.Stdout)

	theApp, err := app.New()
	if err != nil {
		log.Fatal(err)
	}
	defer theApp.Close()

	if err := theApp.Run(); err != nil {
		log.Println(err)
	}
}
