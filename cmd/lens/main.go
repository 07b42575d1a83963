package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	lenserrors "github.com/lingua-lens/lens/internal/errors"
)

var version = "dev"

func main() {
	cmd := newRootCommand()
	if err := cmd.ExecuteContext(context.Background()); err != nil {
		if !errors.Is(err, context.Canceled) {
			fmt.Fprintln(os.Stderr, lenserrors.FormatUserMessage(err))
		}
		os.Exit(exitCode(err))
	}
}

// exitCode is 2 for errors the user can fix (bad input, settings,
// config) and 1 for everything else.
func exitCode(err error) int {
	if lenserrors.GetCategory(err) == lenserrors.CategoryUser {
		return 2
	}
	return 1
}
