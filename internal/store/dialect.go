package store

import (
	"fmt"
	"net"
	"net/url"
	"strconv"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"gitlab.com/dirk.krummacker/rolodex/internal/config"
)

// dialect collects the SQL that differs between the supported databases.
type dialect struct {
	// substringFunc returns the 1-based position of a substring, 0 if absent.
	substringFunc string

	// returningId is set for databases without LastInsertId support.
	returningId bool

	schema string
}

var dialects = map[string]dialect{
	"mysql": {
		substringFunc: "INSTR",
		schema: `
			CREATE TABLE IF NOT EXISTS contacts (
				id                  BIGINT        NOT NULL AUTO_INCREMENT,
				first_name          VARCHAR(255)  NOT NULL,
				last_name           VARCHAR(255)  NOT NULL,
				email               VARCHAR(255)  NULL,
				phone_number        VARCHAR(64)   NULL,
				contact_type        VARCHAR(16)   NULL,
				address             VARCHAR(1024) NULL,
				date_of_birth       DATE          NULL,
				last_contacted_date DATE          NULL,
				notes               TEXT          NULL,
				created_at_utc      DATETIME(6)   NOT NULL,
				updated_at_utc      DATETIME(6)   NOT NULL,
				version             BIGINT        NOT NULL DEFAULT 1,
				PRIMARY KEY (id),
				CHECK (first_name <> ''),
				CHECK (last_name <> '')
			)`,
	},
	"postgres": {
		substringFunc: "STRPOS",
		returningId:   true,
		schema: `
			CREATE TABLE IF NOT EXISTS contacts (
				id                  BIGINT    GENERATED ALWAYS AS IDENTITY PRIMARY KEY,
				first_name          TEXT      NOT NULL CHECK (first_name <> ''),
				last_name           TEXT      NOT NULL CHECK (last_name <> ''),
				email               TEXT      NULL,
				phone_number        TEXT      NULL,
				contact_type        TEXT      NULL,
				address             TEXT      NULL,
				date_of_birth       DATE      NULL,
				last_contacted_date DATE      NULL,
				notes               TEXT      NULL,
				created_at_utc      TIMESTAMP NOT NULL,
				updated_at_utc      TIMESTAMP NOT NULL,
				version             BIGINT    NOT NULL DEFAULT 1
			)`,
	},
	"sqlite3": {
		substringFunc: "INSTR",
		schema: `
			CREATE TABLE IF NOT EXISTS contacts (
				id                  INTEGER  PRIMARY KEY AUTOINCREMENT,
				first_name          TEXT     NOT NULL CHECK (first_name <> ''),
				last_name           TEXT     NOT NULL CHECK (last_name <> ''),
				email               TEXT     NULL,
				phone_number        TEXT     NULL,
				contact_type        TEXT     NULL,
				address             TEXT     NULL,
				date_of_birth       DATE     NULL,
				last_contacted_date DATE     NULL,
				notes               TEXT     NULL,
				created_at_utc      DATETIME NOT NULL,
				updated_at_utc      DATETIME NOT NULL,
				version             INTEGER  NOT NULL DEFAULT 1
			)`,
	},
}

func dialectFor(driverName string) (dialect, error) {
	d, ok := dialects[driverName]
	if !ok {
		return dialect{}, fmt.Errorf("store: unsupported database driver %q", driverName)
	}
	return d, nil
}

// contains returns a condition that holds if column contains the next bind parameter.
func (d dialect) contains(column string) string {
	return fmt.Sprintf("%s(%s, ?) > 0", d.substringFunc, column)
}

// dataSourceName builds the connection string for the configured driver. User names and
// passwords may contain any character, including spaces, or be empty.
func dataSourceName(cfg config.DatabaseConfig) string {
	hostPort := net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port))
	switch cfg.Driver {
	case "mysql":
		mysqlCfg := mysql.NewConfig()
		mysqlCfg.User = cfg.User
		mysqlCfg.Passwd = cfg.Password
		mysqlCfg.Net = "tcp"
		mysqlCfg.Addr = hostPort
		mysqlCfg.DBName = cfg.Name
		mysqlCfg.ParseTime = true
		mysqlCfg.Loc = time.UTC
		return mysqlCfg.FormatDSN()
	case "postgres":
		dsn := url.URL{
			Scheme:   "postgres",
			User:     url.UserPassword(cfg.User, cfg.Password),
			Host:     hostPort,
			Path:     "/" + cfg.Name,
			RawQuery: url.Values{"sslmode": {cfg.SSLMode}}.Encode(),
		}
		return dsn.String()
	default:
		return fmt.Sprintf("file:%s?_busy_timeout=5000", cfg.Name)
	}
}

// Open creates the database handle for the configured driver. The connection itself is
// established lazily; call Ping to verify it.
func Open(cfg config.DatabaseConfig) (*sqlx.DB, error) {
	if _, err := dialectFor(cfg.Driver); err != nil {
		return nil, err
	}
	db, err := sqlx.Open(cfg.Driver, dataSourceName(cfg))
	if err != nil {
		return nil, fmt.Errorf("store: opening %s database: %w", cfg.Driver, err)
	}
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	return db, nil
}
