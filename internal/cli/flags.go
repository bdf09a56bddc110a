package cli

import "qad/internal/config"

// Flags holds command-line flags
type Flags struct {
	// Global
	ConfigFile  string
	ProjectPath string
	StoreDriver string
	StorePath   string
	Oracle      string
	Seed        int64
	Verbose     bool

	// testcase list
	NameFilter string

	// testcase discover
	TestPath string

	// testcase create, testcase discover
	Description string
	Priority    string
	Automated   bool

	// run schedule
	RunPriority int

	// run execute
	OpenDefects bool

	// defect add
	Title    string
	Severity string
}

// ToConfigFlags converts CLI flags to config flags
func (f *Flags) ToConfigFlags() config.Flags {
	return config.Flags{
		ConfigFile:  f.ConfigFile,
		ProjectPath: f.ProjectPath,
		StoreDriver: f.StoreDriver,
		StorePath:   f.StorePath,
		Oracle:      f.Oracle,
		Seed:        f.Seed,
		Verbose:     f.Verbose,
		TestPath:    f.TestPath,
	}
}
