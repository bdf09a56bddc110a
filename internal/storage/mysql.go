package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/go-sql-driver/mysql"
)

// mysqlDuplicateEntry is ER_DUP_ENTRY
const mysqlDuplicateEntry = 1062

var mysqlDialect = dialect{
	name:   "mysql",
	driver: "mysql",
	schema: []string{
		`CREATE TABLE IF NOT EXISTS test_cases (
			id          INT PRIMARY KEY,
			name        VARCHAR(255) NOT NULL,
			description TEXT NOT NULL,
			priority    VARCHAR(8) NOT NULL,
			automated   BOOLEAN NOT NULL DEFAULT FALSE
		)`,
		`CREATE TABLE IF NOT EXISTS defects (
			id           INT PRIMARY KEY,
			test_case_id INT NOT NULL,
			title        VARCHAR(512) NOT NULL,
			severity     VARCHAR(16) NOT NULL,
			status       VARCHAR(16) NOT NULL,
			INDEX idx_defects_test_case (test_case_id)
		)`,
		`CREATE TABLE IF NOT EXISTS test_runs (
			run_id       INT PRIMARY KEY,
			test_case_id INT NOT NULL,
			priority     INT NOT NULL,
			submitted_at VARCHAR(40) NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS run_results (
			run_id       INT PRIMARY KEY,
			batch_id     VARCHAR(36) NOT NULL,
			test_case_id INT NOT NULL,
			priority     INT NOT NULL,
			outcome      VARCHAR(8) NOT NULL,
			passed       BOOLEAN NOT NULL,
			notes        TEXT NOT NULL,
			executed_at  VARCHAR(40) NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS history (
			id         BIGINT AUTO_INCREMENT PRIMARY KEY,
			entry      TEXT NOT NULL,
			created_at VARCHAR(40) NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS record_ids (
			id INT PRIMARY KEY
		)`,
		`INSERT IGNORE INTO record_ids (id) SELECT id FROM test_cases UNION SELECT id FROM defects`,
		`CREATE TABLE IF NOT EXISTS consumed_runs (
			run_id      INT PRIMARY KEY,
			consumed_at VARCHAR(40) NOT NULL
		)`,
	},
	isDuplicate: func(err error) bool {
		var me *mysql.MySQLError
		return errors.As(err, &me) && me.Number == mysqlDuplicateEntry
	},
}

// MySQLOptions describes how to reach the MySQL server.
type MySQLOptions struct {
	Host     string
	Port     string
	User     string
	Password string
	Database string
	// DSN, when set, is used as-is and the fields above are ignored.
	DSN string
}

func (o MySQLOptions) config(database string) *mysql.Config {
	cfg := mysql.NewConfig()
	cfg.User = o.User
	cfg.Passwd = o.Password
	cfg.Net = "tcp"
	cfg.Addr = o.Host + ":" + o.Port
	cfg.DBName = database
	return cfg
}

// OpenMySQL connects to MySQL, creating the database first when it does not exist.
func OpenMySQL(ctx context.Context, opts MySQLOptions) (*SQLStore, error) {
	if opts.DSN != "" {
		return openSQL(ctx, mysqlDialect, opts.DSN)
	}
	if err := ensureDatabase(ctx, opts); err != nil {
		return nil, err
	}
	return openSQL(ctx, mysqlDialect, opts.config(opts.Database).FormatDSN())
}

// ensureDatabase connects to the server without a database and creates opts.Database.
func ensureDatabase(ctx context.Context, opts MySQLOptions) error {
	if !isValidDatabaseName(opts.Database) {
		return fmt.Errorf("invalid database name: %q", opts.Database)
	}

	db, err := sql.Open("mysql", opts.config("").FormatDSN())
	if err != nil {
		return unavailable("connect to database server", err)
	}
	defer db.Close()

	if err := db.PingContext(ctx); err != nil {
		return unavailable("ping database server", err)
	}

	var exists bool
	query := "SELECT EXISTS(SELECT SCHEMA_NAME FROM INFORMATION_SCHEMA.SCHEMATA WHERE SCHEMA_NAME = ?)"
	if err := db.QueryRowContext(ctx, query, opts.Database).Scan(&exists); err != nil {
		return unavailable("check database "+opts.Database, err)
	}
	if exists {
		return nil
	}
	if _, err := db.ExecContext(ctx, fmt.Sprintf("CREATE DATABASE IF NOT EXISTS `%s`", opts.Database)); err != nil {
		return unavailable("create database "+opts.Database, err)
	}
	return nil
}

// isValidDatabaseName allows letters, digits, underscore and dollar, up to 64 characters.
func isValidDatabaseName(name string) bool {
	if len(name) == 0 || len(name) > 64 {
		return false
	}
	return strings.IndexFunc(name, func(r rune) bool {
		return !(r == '_' || r == '$' || r >= '0' && r <= '9' || r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z')
	}) == -1
}
