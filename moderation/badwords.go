package moderation

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"regexp"
	"strings"
	"sync"

	"github.com/samber/lo"
)

var wordPattern = regexp.MustCompile(`[\p{L}\p{N}']+`)

// BadWords matches text against a replaceable word list. It is safe for
// concurrent use.
type BadWords struct {
	mu    sync.RWMutex
	words map[string]struct{}
}

// NewBadWords returns a list holding words.
func NewBadWords(words ...string) *BadWords {
	b := &BadWords{}
	b.Replace(words)
	return b
}

// Replace swaps the word list. Words are matched case-insensitively.
func (b *BadWords) Replace(words []string) {
	set := make(map[string]struct{}, len(words))
	for _, w := range words {
		if w = strings.ToLower(strings.TrimSpace(w)); w != "" {
			set[w] = struct{}{}
		}
	}
	b.mu.Lock()
	b.words = set
	b.mu.Unlock()
}

// Len returns the number of words.
func (b *BadWords) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.words)
}

// Contains reports whether any word of text is on the list.
func (b *BadWords) Contains(text string) bool {
	tokens := wordPattern.FindAllString(strings.ToLower(text), -1)
	b.mu.RLock()
	defer b.mu.RUnlock()
	return lo.SomeBy(tokens, func(t string) bool {
		_, ok := b.words[t]
		return ok
	})
}

// ParseWordList reads a JSON array of words, or one word per line.
func ParseWordList(r io.Reader) ([]string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read word list: %w", err)
	}
	trimmed := strings.TrimSpace(string(data))
	if strings.HasPrefix(trimmed, "[") {
		var words []string
		if err := json.Unmarshal([]byte(trimmed), &words); err != nil {
			return nil, fmt.Errorf("parse word list: %w", err)
		}
		return words, nil
	}
	var words []string
	sc := bufio.NewScanner(strings.NewReader(trimmed))
	for sc.Scan() {
		if w := strings.TrimSpace(sc.Text()); w != "" && !strings.HasPrefix(w, "#") {
			words = append(words, w)
		}
	}
	return words, sc.Err()
}
