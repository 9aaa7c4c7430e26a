// notesctl administers a note log directly: listing, adding and deleting by
// title, and copying the log to and from object storage.
package main

import (
	"context"
	"fmt"
	"os"
)

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
