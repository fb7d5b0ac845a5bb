package sshexec

import "testing"

func TestParseLsOutput(t *testing.T) {
	out := `total 16
drwxr-xr-x  4 root root 4096 Jan  1 00:00 .
drwxr-xr-x 20 root root 4096 Jan  1 00:00 ..
-rw-r--r--  1 root root   11 Jan  1 00:00 hello.txt
drwxr-xr-x  2 root root 4096 Jan  1 00:00 my dir
lrwxrwxrwx  1 root root    9 Jan  1 00:00 link -> hello.txt
srwxrwxrwx  1 root root    0 Jan  1 00:00 agent.sock
ls: cannot open directory
`
	entries := ParseLsOutput(out)
	if len(entries) != 4 {
		t.Fatalf("expected 4 entries, got %d: %+v", len(entries), entries)
	}

	want := []FileEntry{
		{Name: "hello.txt", Type: "file", Size: "11", Permissions: "-rw-r--r--"},
		{Name: "my dir", Type: "directory", Permissions: "drwxr-xr-x"},
		{Name: "link", Type: "symlink", Permissions: "lrwxrwxrwx", Target: "hello.txt"},
		{Name: "agent.sock", Type: "other", Permissions: "srwxrwxrwx"},
	}
	for i, w := range want {
		if entries[i] != w {
			t.Errorf("entry %d = %+v, want %+v", i, entries[i], w)
		}
	}
}

func TestParseLsOutputEmpty(t *testing.T) {
	if entries := ParseLsOutput(""); len(entries) != 0 {
		t.Errorf("expected no entries, got %+v", entries)
	}
}
