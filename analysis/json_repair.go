// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package analysis

import "strings"

// repairJSON fixes the two malformations models most often emit in
// otherwise valid JSON: keys missing their opening quote (`{gaps": []}`) and
// trailing commas before a closing brace or bracket. String contents are
// copied untouched.
func repairJSON(s string) string {
	var b strings.Builder
	b.Grow(len(s) + 16)

	inString, escaped, expectKey := false, false, false
	for i := 0; i < len(s); i++ {
		c := s[i]
		if inString {
			b.WriteByte(c)
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}

		switch {
		case c == '"':
			inString = true
			expectKey = false
		case c == ',':
			if closesNext(s, i+1) {
				continue
			}
			expectKey = true
		case c == '{':
			expectKey = true
		case c == ' ' || c == '\t' || c == '\n' || c == '\r':
		case expectKey && isKeyStart(c):
			expectKey = false
			j := i
			for j < len(s) && isKeyByte(s[j]) {
				j++
			}
			if j+1 < len(s) && s[j] == '"' && s[j+1] == ':' {
				b.WriteByte('"')
				b.WriteString(s[i : j+1])
				i = j
				continue
			}
		default:
			expectKey = false
		}
		b.WriteByte(c)
	}
	return b.String()
}

// closesNext reports whether the next non-space byte at or after i is a
// closing brace or bracket.
func closesNext(s string, i int) bool {
	for ; i < len(s); i++ {
		switch s[i] {
		case ' ', '\t', '\n', '\r':
		case '}', ']':
			return true
		default:
			return false
		}
	}
	return false
}

func isKeyStart(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || c == '_'
}

func isKeyByte(c byte) bool {
	return isKeyStart(c) || (c >= '0' && c <= '9') || c == '-'
}

// extractObject strips Markdown code fences and any prose around the
// outermost JSON object. It returns "" if s holds no object or is a
// top-level array.
func extractObject(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSpace(strings.TrimSuffix(s, "```"))
	if strings.HasPrefix(s, "[") {
		return ""
	}

	start := strings.IndexByte(s, '{')
	end := strings.LastIndexByte(s, '}')
	if start < 0 || end < start {
		return ""
	}
	return s[start : end+1]
}
