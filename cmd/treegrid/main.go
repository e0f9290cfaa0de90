package main

import (
	"os"
	"path/filepath"
	"strings"

	"treegrid-cli/internal/cli"
	"treegrid-cli/internal/savefile"
)

func isTreeFile(s string) bool {
	return strings.EqualFold(filepath.Ext(strings.TrimSpace(s)), savefile.Ext)
}

// rewriteDirectFileArgs makes `treegrid plan.sav` work like `treegrid --file plan.sav`.
//
// Cobra treats the first non-flag token as a subcommand, so argv is rewritten before
// parsing. Persistent flags may come first, so this looks for the first positional
// token rather than argv[1].
func rewriteDirectFileArgs(argv []string) []string {
	if len(argv) < 2 {
		return argv
	}

	valueFlags := map[string]bool{
		"--file":   true,
		"-f":       true,
		"--format": true,
	}

	for i := 1; i < len(argv); i++ {
		a := strings.TrimSpace(argv[i])
		if a == "" {
			continue
		}
		if a == "--" {
			if i+1 < len(argv) && isTreeFile(argv[i+1]) {
				out := make([]string, 0, len(argv))
				out = append(out, argv[:i]...)
				out = append(out, "--file")
				out = append(out, argv[i+1:]...)
				return out
			}
			return argv
		}

		if strings.HasPrefix(a, "-") {
			if a == "--file" || a == "-f" || strings.HasPrefix(a, "--file=") || strings.HasPrefix(a, "-f=") {
				// An explicit --file wins; leave argv alone.
				return argv
			}
			if strings.Contains(a, "=") {
				continue
			}
			if valueFlags[a] {
				i++
			}
			continue
		}

		// First positional token.
		if isTreeFile(a) {
			out := make([]string, 0, len(argv)+1)
			out = append(out, argv[:i]...)
			out = append(out, "--file")
			out = append(out, argv[i:]...)
			return out
		}
		return argv
	}

	return argv
}

func main() {
	os.Args = rewriteDirectFileArgs(os.Args)

	cmd := cli.NewRootCmd()
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
