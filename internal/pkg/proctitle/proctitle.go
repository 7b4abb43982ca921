package proctitle

import (
	"errors"
	"os"
	"strings"
)

// Title builds "<name>:<env>" for the process list, e.g. "folio:prod".
func Title(name, env string) string {
	name = strings.TrimSpace(name)
	env = strings.TrimSpace(env)
	if env == "" {
		return name
	}
	return name + ":" + env
}

// Set renames the current process. Only Linux changes the kernel comm name;
// elsewhere os.Args[0] is updated.
func Set(title string) error {
	title = strings.TrimSpace(title)
	if title == "" {
		return errors.New("empty process title")
	}
	if len(os.Args) > 0 {
		os.Args[0] = title
	}
	return setName(title)
}
