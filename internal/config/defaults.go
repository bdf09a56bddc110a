package config

import "time"

const (
	// DefaultProjectPath is the default project path
	DefaultProjectPath = "."
	// DefaultConfigName is the config file name searched for, without extension
	DefaultConfigName = "qad"
	// DefaultEnvPrefix prefixes every environment override, e.g. QAD_STORE_DRIVER
	DefaultEnvPrefix = "QAD"

	// DefaultStoreDriver is the default storage backend
	DefaultStoreDriver = DriverJSON
	// DefaultStoreDir is the default directory for file based stores
	DefaultStoreDir = "storage"
	// DefaultJSONFile is the default JSON store file name
	DefaultJSONFile = "qa-dashboard.json"
	// DefaultSQLiteFile is the default SQLite store file name
	DefaultSQLiteFile = "qa-dashboard.db"

	DefaultMySQLHost     = "127.0.0.1"
	DefaultMySQLPort     = "3306"
	DefaultMySQLUser     = "root"
	DefaultMySQLDatabase = "qa_dashboard"

	// DefaultTestPath is where test discovery starts, relative to the project path
	DefaultTestPath = "."

	// DefaultCriticalThreshold is the highest run priority whose failures raise Critical defects
	DefaultCriticalThreshold = 3
	// DefaultOracle decides run outcomes with a coin flip
	DefaultOracle = OracleRandom
	// DefaultCommandTimeout bounds a single command oracle invocation
	DefaultCommandTimeout = 5 * time.Minute

	// DefaultPriorityClass is given to test cases created without --priority
	DefaultPriorityClass = "P2"
	// DefaultRunPriority is the numeric priority of runs scheduled without --priority
	DefaultRunPriority = 5
	// DefaultSeverity is given to manually added defects
	DefaultSeverity = "Major"

	DefaultLogLevel      = "warn"
	DefaultLogFormat     = "console"
	DefaultLogMaxSizeMB  = 10
	DefaultLogMaxBackups = 3
	DefaultLogMaxAgeDays = 28
)

// Storage drivers
const (
	DriverJSON   = "json"
	DriverSQLite = "sqlite"
	DriverMySQL  = "mysql"
)

// Outcome oracles
const (
	OracleRandom  = "random"
	OracleCommand = "command"
)

// DefaultPathsToIgnore are the default directories to ignore when scanning for tests
var DefaultPathsToIgnore = []string{
	"vendor",
	"node_modules",
	"storage",
	"testdata",
	"__pycache__",
}

// DefaultTestPatterns select test files for Go, PHPUnit and pytest projects
var DefaultTestPatterns = []string{
	"*_test.go",
	"*Test.php",
	"test_*.py",
}
