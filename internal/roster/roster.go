// Package roster reads account credentials from the roster file, one
// username:password pair per line.
package roster

import (
	"bufio"
	"os"
	"strings"

	"github.com/dawnkeeper/dawnkeeper/internal/errors"
	"github.com/dawnkeeper/dawnkeeper/internal/logging"
)

// Credential is one roster entry.
type Credential struct {
	Username string
	Password string
}

// Load reads and parses the roster file at path. Malformed lines are
// skipped with a warning, never fatal.
//
// Blank lines and lines starting with '#' are skipped. Passwords may
// contain ':' so only the first separator splits. A roster with no
// usable entries is an error.
func Load(path string, logger *logging.Logger) ([]Credential, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &errors.ErrRosterRead{Path: path, Err: err}
	}
	defer f.Close()

	var creds []Credential
	seen := make(map[string]bool)

	lineNo := 0
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		username, password, ok := strings.Cut(line, ":")
		username = strings.TrimSpace(username)
		password = strings.TrimSpace(password)
		if !ok || username == "" || password == "" {
			// The line content may hold a password, so only the position
			// is logged.
			logger.Warn("skipping malformed roster line", "path", path, "line", lineNo)
			continue
		}

		// First occurrence wins.
		if seen[username] {
			logger.Warn("skipping duplicate roster entry", "account", username, "line", lineNo)
			continue
		}
		seen[username] = true
		creds = append(creds, Credential{Username: username, Password: password})
	}
	if err := scanner.Err(); err != nil {
		return nil, &errors.ErrRosterRead{Path: path, Err: err}
	}

	if len(creds) == 0 {
		return nil, &errors.ErrEmptyRoster{Path: path}
	}

	return creds, nil
}
