package cmd

import (
	"io"
	"os"
	"strings"

	"github.com/dotcommander/scour/internal/present"
)

func drainStdin() {
	if present.IsInputTTY() {
		return
	}
	_, _ = io.Copy(io.Discard, os.Stdin)
}

func readStdin() string {
	if present.IsInputTTY() {
		return ""
	}
	data, err := io.ReadAll(os.Stdin)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(data))
}
