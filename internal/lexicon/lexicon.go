package lexicon

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
)

// Dictionary maps a normalized word to its pronunciations. An unknown word
// yields no pronunciations.
type Dictionary interface {
	Lookup(word string) [][]string
}

// Map is an in-memory Dictionary keyed by lowercase word. Pronunciations keep
// their file order, so the primary variant comes first.
type Map map[string][][]string

func (m Map) Lookup(word string) [][]string {
	return m[strings.ToLower(word)]
}

// Len reports the number of distinct words.
func (m Map) Len() int { return len(m) }

// LoadCMU reads a CMU pronouncing dictionary from disk.
func LoadCMU(path string) (Map, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open dictionary: %w", err)
	}
	defer f.Close()
	m, err := ParseCMU(f)
	if err != nil {
		return nil, fmt.Errorf("parse dictionary %s: %w", path, err)
	}
	return m, nil
}

// ParseCMU parses both the classic layout ("WORD(2)  W ER1 D", ";;;" comments)
// and the newer one ("word(2) w er1 d # note").
func ParseCMU(r io.Reader) (Map, error) {
	m := make(Map)
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" || strings.HasPrefix(text, ";;;") || strings.HasPrefix(text, "#") {
			continue
		}
		if idx := strings.Index(text, " #"); idx >= 0 {
			text = text[:idx]
		}
		fields := strings.Fields(text)
		if len(fields) < 2 {
			return nil, fmt.Errorf("line %d: expected word and phonemes", line)
		}
		word := strings.ToLower(fields[0])
		if open := strings.IndexByte(word, '('); open > 0 && strings.HasSuffix(word, ")") {
			word = word[:open]
		}
		m[word] = append(m[word], append([]string(nil), fields[1:]...))
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return m, nil
}
