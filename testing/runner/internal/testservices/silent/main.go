// Command silent runs until it is terminated without ever listening.
package main

import (
	"context"
	"fmt"

	"github.com/circleci/testservers/termination"
)

func main() {
	fmt.Println("silent: not listening")
	_ = termination.Handle(context.Background(), 0)
}
