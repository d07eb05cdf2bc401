package branchdb

import (
	"fmt"
	"net/url"

	"cabangpos/backend/internal/domain"

	"github.com/jmoiron/sqlx"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/microsoft/go-mssqldb"
	_ "modernc.org/sqlite"
)

func init() {
	// modernc's driver is not in sqlx's built-in bind table.
	sqlx.BindDriver("sqlite", sqlx.QUESTION)
}

func driverName(engine domain.Engine) (string, bool) {
	switch engine {
	case domain.EngineSQLite:
		return "sqlite", true
	case domain.EnginePostgres:
		return "pgx", true
	case domain.EngineMySQL:
		return "mysql", true
	case domain.EngineSQLServer:
		return "sqlserver", true
	default:
		return "", false
	}
}

func buildDSN(cfg domain.BranchConfig) string {
	c := cfg.Conn
	switch cfg.Engine {
	case domain.EngineSQLite:
		return fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)", c.Name)
	case domain.EnginePostgres:
		sslMode := c.SSLMode
		if sslMode == "" {
			sslMode = "disable"
		}
		return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
			c.Server, c.Port, c.User, c.Password, c.Name, sslMode)
	case domain.EngineMySQL:
		return fmt.Sprintf("%s:%s@tcp(%s:%s)/%s", c.User, c.Password, c.Server, c.Port, c.Name)
	case domain.EngineSQLServer:
		u := url.URL{
			Scheme:   "sqlserver",
			User:     url.UserPassword(c.User, c.Password),
			Host:     fmt.Sprintf("%s:%s", c.Server, c.Port),
			RawQuery: url.Values{"database": {c.Name}}.Encode(),
		}
		return u.String()
	default:
		return ""
	}
}
