package submit

import "strings"

// NormalizeTags splits comma separated tag text, trims each entry, and drops
// empty entries and repeats of an earlier entry. Order is preserved, so
// "a, b ,b," yields [a b]. Uniqueness is exact and case sensitive; "A" and
// "a" both survive.
func NormalizeTags(raw string) []string {
	parts := strings.Split(raw, ",")
	tags := make([]string, 0, len(parts))
	seen := make(map[string]bool, len(parts))
	for _, p := range parts {
		tag := strings.TrimSpace(p)
		if tag == "" || seen[tag] {
			continue
		}
		seen[tag] = true
		tags = append(tags, tag)
	}
	return tags
}

// SplitIdentifiers returns the non-blank, trimmed lines of text.
func SplitIdentifiers(text string) []string {
	var ids []string
	for _, line := range strings.Split(text, "\n") {
		if id := strings.TrimSpace(line); id != "" {
			ids = append(ids, id)
		}
	}
	return ids
}
