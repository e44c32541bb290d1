package usesstdlog

import "log" // want "use internal/logger instead of the standard log package"

func Report(message string) {
	log.Println(message)
}
