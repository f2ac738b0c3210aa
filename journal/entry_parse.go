package journal

import "strings"

// parseEntry tokenizes a journal payload ("name value name value ...") into
// an Entry. Whitespace separates tokens; a quoted value may contain embedded
// spaces and escaped quotes/newlines, and survives as a single token. This
// is the "small, tolerant tokenizer" spec.md §4.7 calls for: a flat,
// single-line, single-delimiter grammar that a hand scanner matches better
// than a recursive-descent or PEG grammar would (see DESIGN.md).
func parseEntry(payload string) *Entry {
	e := &Entry{}
	s := strings.TrimSpace(payload)
	i := 0
	n := len(s)
	for i < n {
		for i < n && isSpace(s[i]) {
			i++
		}
		if i >= n {
			break
		}
		nameStart := i
		for i < n && !isSpace(s[i]) {
			i++
		}
		name := s[nameStart:i]

		for i < n && isSpace(s[i]) {
			i++
		}
		if i >= n {
			// malformed: name with no value; keep it as an empty raw token
			e.fields = append(e.fields, field{name, ""})
			break
		}

		var value string
		if s[i] == '"' {
			valueStart := i
			i++
			for i < n {
				if s[i] == '\\' && i+1 < n {
					i += 2
					continue
				}
				if s[i] == '"' {
					i++
					break
				}
				i++
			}
			value = s[valueStart:i]
		} else {
			valueStart := i
			for i < n && !isSpace(s[i]) {
				i++
			}
			value = s[valueStart:i]
		}
		e.fields = append(e.fields, field{name, value})
	}
	return e
}

func isSpace(b byte) bool {
	return b == ' ' || b == '\t'
}

// splitForwardReverse splits a record's remainder-of-line at the first
// "<<", returning the forward payload and, if present, the reverse payload,
// each with surrounding whitespace trimmed. Matches the original's
// `%*[^\n<]<< %m[^\n]` scan.
func splitForwardReverse(rest string) (forward, reverse string, hasReverse bool) {
	idx := strings.Index(rest, "<<")
	if idx < 0 {
		return strings.TrimSpace(rest), "", false
	}
	forward = strings.TrimSpace(rest[:idx])
	reverse = strings.TrimSpace(rest[idx+2:])
	return forward, reverse, true
}
