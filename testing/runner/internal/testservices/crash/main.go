// Command crash exits with an error as soon as it starts.
package main

import (
	"fmt"
	"os"
)

func main() {
	fmt.Fprintln(os.Stderr, "crash: configuration is broken")
	os.Exit(3)
}
