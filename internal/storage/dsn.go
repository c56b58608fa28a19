package storage

import "fmt"

// PostgresDSN builds a lib/pq connection string.
func PostgresDSN(host string, port int, user, password, dbname, sslMode string) string {
	if port == 0 {
		port = 5432
	}
	if sslMode == "" {
		sslMode = "disable"
	}
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		host, port, user, password, dbname, sslMode,
	)
}

// MySQLDSN builds a go-sql-driver/mysql DSN.
func MySQLDSN(host string, port int, user, password, dbname, sslMode string) string {
	if port == 0 {
		port = 3306
	}
	// Format: user:password@tcp(host:port)/dbname?charset=utf8mb4
	dsn := fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4",
		user, password, host, port, dbname,
	)
	if sslMode == "require" {
		dsn += "&tls=true"
	}
	return dsn
}
