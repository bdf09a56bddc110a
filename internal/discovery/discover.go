package discovery

import (
	"path/filepath"
	"strings"
)

// Discovered is one automated test found in the source tree
type Discovered struct {
	// Name is "<file without extension>::<test>", e.g. "UserTest::testCreateUser"
	Name string
	// File is relative to the scanned root
	File string
	Test string
}

// Discover scans root and parses every matching file. Files that cannot be
// read are returned in skipped rather than failing the whole scan.
func Discover(scanner *Scanner, parser *Parser, root string) (found []Discovered, skipped []error, err error) {
	files, err := scanner.Scan(root)
	if err != nil {
		return nil, nil, err
	}

	for _, file := range files {
		tests, perr := parser.FindTestCases(file)
		if perr != nil {
			skipped = append(skipped, perr)
			continue
		}
		rel, rerr := filepath.Rel(root, file)
		if rerr != nil {
			rel = file
		}
		base := strings.TrimSuffix(filepath.Base(file), filepath.Ext(file))
		for _, test := range tests {
			found = append(found, Discovered{
				Name: base + "::" + test,
				File: filepath.ToSlash(rel),
				Test: test,
			})
		}
	}
	return found, skipped, nil
}
