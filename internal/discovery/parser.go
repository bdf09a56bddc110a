package discovery

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
)

var (
	goTestPattern = regexp.MustCompile(`(?m)^func\s+(Test[A-Z_0-9]\w*)\s*\(\s*\w+\s+\*testing\.T\s*\)`)

	pyTestPattern = regexp.MustCompile(`(?m)^\s*(?:async\s+)?def\s+(test\w*)\s*\(`)

	// public function testCreateUser(), final protected function test_it_works()
	phpTestMethodPattern = regexp.MustCompile(`(?m)^\s*(?:(?:public|protected|private|static|final)\s+)*function\s+(test\w+)\s*\(`)

	// methods marked with an @test docblock annotation
	phpAnnotatedPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?m)/\*\*[\s\S]*?@test[\s\S]*?\*/\s*(?:(?:public|protected|private|static|final)\s+)*function\s+(\w+)\s*\(`),
		regexp.MustCompile(`(?m)@test.*?function\s+(\w+)\s*\(`),
	}
)

// Parser extracts test names from Go, PHPUnit and pytest files
type Parser struct{}

// NewParser creates a new Parser
func NewParser() *Parser {
	return &Parser{}
}

// FindTestCases returns the sorted, de-duplicated test names declared in filePath.
// Files of an unknown language yield no tests.
func (p *Parser) FindTestCases(filePath string) ([]string, error) {
	content, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("error reading file %s: %w", filePath, err)
	}

	found := make(map[string]bool)
	collect := func(re *regexp.Regexp, skip func(string) bool) {
		for _, match := range re.FindAllStringSubmatch(string(content), -1) {
			if len(match) > 1 && (skip == nil || !skip(match[1])) {
				found[match[1]] = true
			}
		}
	}

	switch filepath.Ext(filePath) {
	case ".go":
		collect(goTestPattern, nil)
	case ".py":
		collect(pyTestPattern, nil)
	case ".php":
		collect(phpTestMethodPattern, nil)
		for _, re := range phpAnnotatedPatterns {
			collect(re, func(name string) bool { return strings.HasPrefix(name, "test") })
		}
	}

	testCases := make([]string, 0, len(found))
	for name := range found {
		testCases = append(testCases, name)
	}
	sort.Strings(testCases)
	return testCases, nil
}
