package extractor

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode"
)

const fence = "```"

// cleanJSON strips a surrounding markdown code fence (with an optional
// language tag such as "json") and the whitespace around it.
func cleanJSON(raw string) string {
	s := strings.TrimSpace(raw)
	if strings.HasPrefix(s, fence) {
		s = s[len(fence):]
		if idx := strings.IndexByte(s, '\n'); idx >= 0 && isFenceTag(s[:idx]) {
			s = s[idx+1:]
		} else if len(s) >= 4 && strings.EqualFold(s[:4], "json") {
			s = s[4:]
		}
	}
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, fence)
	return strings.TrimSpace(s)
}

func isFenceTag(s string) bool {
	for _, r := range strings.TrimSpace(s) {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '-' && r != '_' && r != '+' {
			return false
		}
	}
	return true
}

// parseReply repairs a model reply and strictly decodes it. Numbers are kept
// as json.Number so their literal text survives normalization.
func parseReply(raw string) (any, error) {
	s := cleanJSON(raw)
	if s == "" {
		return nil, errors.New("empty reply")
	}

	dec := json.NewDecoder(strings.NewReader(s))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, fmt.Errorf("parse reply: %w", err)
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, errors.New("parse reply: unexpected data after JSON value")
	}
	return v, nil
}
