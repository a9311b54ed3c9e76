// Package targets reads the newline-delimited domain list.
package targets

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
)

// Load reads domains from path.
func Load(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open domains file: %w", err)
	}
	defer func() { _ = f.Close() }()
	return Parse(f)
}

// Parse returns one domain per non-blank line, trimmed. Lines starting with
// '#' are comments.
func Parse(r io.Reader) ([]string, error) {
	var domains []string
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		domains = append(domains, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read domains: %w", err)
	}
	return domains, nil
}
