package diff_test

import (
	"fmt"

	"github.com/TheMichaelB/syncvault/internal/diff"
	"github.com/TheMichaelB/syncvault/internal/models"
)

func ExampleClassify() {
	local := map[string]models.FileFingerprint{
		"a.md": {Path: "a.md", ContentHash: "h1", ModTime: 100},
		"b.md": {Path: "b.md", ContentHash: "h2", ModTime: 200},
		"c.md": {Path: "c.md", ContentHash: "h3", ModTime: 300},
	}
	server := map[string]models.FileFingerprint{
		"b.md": {Path: "b.md", ContentHash: "h2-server", ModTime: 250},
		"c.md": {Path: "c.md", ContentHash: "h3-server", ModTime: 300},
		"d.md": {Path: "d.md", ContentHash: "h4", ModTime: 400},
	}

	d := diff.Classify(local, server)
	fmt.Println("local only:", d.LocalOnly)
	fmt.Println("server only:", d.ServerOnly)
	fmt.Println("modified:", d.Modified)
	fmt.Println("conflicts:", d.Conflicts)
	// Output:
	// local only: [a.md]
	// server only: [d.md]
	// modified: [b.md]
	// conflicts: [c.md]
}
