package zaponly

import "fmt"

func Describe(name string) string {
	return fmt.Sprintf("meme %s", name)
}
