package sshexec

import "strings"

// FileEntry is one parsed line of "ls -la" output.
type FileEntry struct {
	Name        string `json:"name"`
	Type        string `json:"type"`
	Size        string `json:"size,omitempty"`
	Permissions string `json:"permissions"`
	Target      string `json:"target,omitempty"`
}

// ParseLsOutput parses "ls -la" output. The "total" header and the "." and
// ".." entries are skipped; lines that do not look like long-format entries
// are ignored.
func ParseLsOutput(output string) []FileEntry {
	var entries []FileEntry
	for _, line := range strings.Split(output, "\n") {
		line = strings.TrimRight(line, "\r")
		if line == "" || strings.HasPrefix(line, "total ") {
			continue
		}
		fields := strings.Fields(line)
		// perms links owner group size month day time-or-year name...
		if len(fields) < 9 || len(fields[0]) < 10 {
			continue
		}
		name := strings.Join(fields[8:], " ")
		entry := FileEntry{Permissions: fields[0]}

		switch fields[0][0] {
		case 'd':
			entry.Type = "directory"
		case 'l':
			entry.Type = "symlink"
			if i := strings.Index(name, " -> "); i >= 0 {
				entry.Target = name[i+4:]
				name = name[:i]
			}
		case '-':
			entry.Type = "file"
			entry.Size = fields[4]
		default:
			entry.Type = "other"
		}
		if name == "." || name == ".." {
			continue
		}
		entry.Name = name
		entries = append(entries, entry)
	}
	return entries
}
