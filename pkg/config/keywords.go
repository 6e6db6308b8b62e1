package config

import (
	"bufio"
	"fmt"
	"os"
	"strings"
)

// LoadKeywords reads search terms from the configured keywords file, one
// term per line, skipping blanks and '#' comments. The same terms are used
// for both the keyword and hashtag query conditions unless the config
// already carries explicit lists.
func (c *Config) LoadKeywords() error {
	if len(c.Query.Keywords) > 0 || len(c.Query.Hashtags) > 0 {
		return nil
	}
	if c.Query.KeywordsFile == "" {
		return fmt.Errorf("no keywords configured: set query.keywords or query.keywords_file")
	}

	terms, err := ReadKeywordFile(c.Query.KeywordsFile)
	if err != nil {
		return err
	}
	if len(terms) == 0 {
		return fmt.Errorf("keyword file %s is empty", c.Query.KeywordsFile)
	}

	c.Query.Keywords = terms
	c.Query.Hashtags = terms
	return nil
}

// ReadKeywordFile parses a keyword file into a list of terms.
func ReadKeywordFile(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open keyword file: %w", err)
	}
	defer f.Close()

	var terms []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		terms = append(terms, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read keyword file: %w", err)
	}

	return terms, nil
}
