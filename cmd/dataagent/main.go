package main

import (
	"context"
	"fmt"
	"os"

	"github.com/gear6io/dataagent/cli"
	"github.com/gear6io/dataagent/pkg/errors"
)

func main() {
	if err := cli.ExecuteWithContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		if code := errors.GetCode(err); code != "" {
			fmt.Fprintln(os.Stderr, "Code:", code)
		}
		os.Exit(1)
	}
}
