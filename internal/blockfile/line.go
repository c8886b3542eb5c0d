/*
Copyright (C) 2026 Audio Solutions

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package blockfile

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/audiosolutions/gradefm/internal/models"
)

// Separator joins tokens on a block line.
const Separator = ",vht,"

// Token is one slot's rendered output. Wildcard tokens are emitted bare (no
// quotes, no extension); everything else is a quoted filename.
type Token struct {
	Value    string
	Wildcard bool
}

// FileToken builds a quoted-filename token.
func FileToken(filename string) Token {
	return Token{Value: filename}
}

// WildcardToken builds a bare fallback token.
func WildcardToken(code string) Token {
	return Token{Value: code, Wildcard: true}
}

func (t Token) render() string {
	if t.Wildcard {
		return t.Value
	}
	return `"` + t.Value + `"`
}

// InsertAt places a token into the list at a configured fixed-content
// position: "start", "middle", "end", or a 1-based numeric index. Unknown
// positions append.
func InsertAt(tokens []Token, token Token, position string) []Token {
	idx := len(tokens)
	switch position {
	case "start":
		idx = 0
	case "middle":
		idx = len(tokens) / 2
	case "end", "":
		idx = len(tokens)
	default:
		if n, err := strconv.Atoi(position); err == nil && n >= 1 {
			idx = n - 1
			if idx > len(tokens) {
				idx = len(tokens)
			}
		}
	}

	out := make([]Token, 0, len(tokens)+1)
	out = append(out, tokens[:idx]...)
	out = append(out, token)
	out = append(out, tokens[idx:]...)
	return out
}

// FormatLine renders one block line: `HH:MM (ID=<Name>) tok1,vht,tok2,...`.
func FormatLine(at models.HourMinute, programName string, tokens []Token) string {
	rendered := make([]string, len(tokens))
	for i, t := range tokens {
		rendered[i] = t.render()
	}
	return fmt.Sprintf("%s (ID=%s) %s", at.Label(), programName, strings.Join(rendered, Separator))
}

var linePattern = regexp.MustCompile(`^(\d{2}):(\d{2}) \(ID=([^)]*)\) (.*)$`)

// ParsedLine is the structured form of one block line.
type ParsedLine struct {
	Time        models.HourMinute
	ProgramName string
	Tokens      []Token
}

// ParseLine parses a formatted block line. The token list round-trips through
// FormatLine exactly.
func ParseLine(line string) (ParsedLine, error) {
	m := linePattern.FindStringSubmatch(strings.TrimRight(line, "\r\n"))
	if m == nil {
		return ParsedLine{}, fmt.Errorf("malformed block line: %q", line)
	}

	hour, _ := strconv.Atoi(m[1])
	minute, _ := strconv.Atoi(m[2])
	parsed := ParsedLine{
		Time:        models.HourMinute{Hour: hour, Minute: minute},
		ProgramName: m[3],
	}

	for _, raw := range strings.Split(m[4], Separator) {
		if strings.HasPrefix(raw, `"`) && strings.HasSuffix(raw, `"`) && len(raw) >= 2 {
			parsed.Tokens = append(parsed.Tokens, FileToken(raw[1:len(raw)-1]))
		} else {
			parsed.Tokens = append(parsed.Tokens, WildcardToken(raw))
		}
	}
	return parsed, nil
}
