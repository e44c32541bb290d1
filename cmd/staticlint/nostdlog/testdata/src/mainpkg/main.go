package main

import "log"

func main() {
	log.Println("main may use the standard logger")
}
