package engine

import "strings"

const (
	// FolderPlaceholder substitutes a missing or empty label in a
	// label-derived folder path.
	FolderPlaceholder = "undefined"

	// PathSeparator joins folder path segments.
	PathSeparator = "/"
)

// FolderPath derives the target folder for a host from its labels and
// the configured ordered label keys. Missing or empty labels become
// the placeholder; an entirely empty label map keeps the path depth
// stable by repeating the placeholder. rootFolder, when set, becomes
// the first segment. Spaces are replaced with underscores per segment.
//
// The result carries no leading separator; prefixing is a property of
// the wire protocol and left to the API client.
func FolderPath(labels map[string]string, keys []string, rootFolder string) string {
	var segments []string

	if len(labels) == 0 {
		for range keys {
			segments = append(segments, FolderPlaceholder)
		}
	} else {
		for _, key := range keys {
			if value := labels[key]; value != "" {
				segments = append(segments, value)
			} else {
				segments = append(segments, FolderPlaceholder)
			}
		}
	}

	if rootFolder != "" {
		segments = append([]string{rootFolder}, segments...)
	}

	for i, segment := range segments {
		segments[i] = strings.ReplaceAll(segment, " ", "_")
	}

	return strings.Join(segments, PathSeparator)
}
