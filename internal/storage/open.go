package storage

import (
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/go-sql-driver/mysql"
	"go.uber.org/zap"
	gormmysql "gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	// Pure-Go SQLite driver registered as "sqlite".
	_ "modernc.org/sqlite"
)

// Supported database drivers.
const (
	DriverMySQL    = "mysql"
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// Config describes how to reach the shared database.
type Config struct {
	// Driver is one of mysql, postgres or sqlite.
	Driver string `yaml:"driver"`

	// DSN overrides the connection string built from the fields below.
	DSN string `yaml:"dsn"`

	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Database string `yaml:"database"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`

	// PoolSize is the number of idle connections kept open.
	PoolSize int `yaml:"pool_size"`

	// MaxOverflow is how many connections may be opened above PoolSize.
	MaxOverflow int `yaml:"max_overflow"`

	// PoolRecycle is the maximum lifetime of a connection.
	PoolRecycle time.Duration `yaml:"pool_recycle"`

	// ShowStatements logs every SQL statement.
	ShowStatements bool `yaml:"show_statements"`
}

// DefaultConfig mirrors a local MySQL deployment.
func DefaultConfig() Config {
	return Config{
		Driver:      DriverMySQL,
		Host:        "localhost",
		Port:        3306,
		Database:    "bot",
		Username:    "bot",
		Password:    "bot",
		PoolSize:    20,
		MaxOverflow: 20,
		PoolRecycle: 300 * time.Second,
	}
}

// Dialector builds the gorm dialector for cfg.
func Dialector(cfg Config) (gorm.Dialector, error) {
	switch cfg.Driver {
	case DriverMySQL:
		dsn := cfg.DSN
		if dsn == "" {
			mc := mysql.NewConfig()
			mc.User = cfg.Username
			mc.Passwd = cfg.Password
			mc.Net = "tcp"
			mc.Addr = net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port))
			mc.DBName = cfg.Database
			mc.ParseTime = true
			dsn = mc.FormatDSN()
		}
		return gormmysql.Open(dsn), nil

	case DriverPostgres:
		dsn := cfg.DSN
		if dsn == "" {
			dsn = fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%d sslmode=disable",
				cfg.Host, cfg.Username, cfg.Password, cfg.Database, cfg.Port)
		}
		return postgres.Open(dsn), nil

	case DriverSQLite:
		dsn := cfg.DSN
		if dsn == "" {
			dsn = fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)", cfg.Database)
		}
		return &sqlite.Dialector{DriverName: "sqlite", DSN: dsn}, nil

	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}
}

// Open connects to the database described by cfg and configures the pool.
func Open(cfg Config, logger *zap.Logger) (*gorm.DB, error) {
	dialector, err := Dialector(cfg)
	if err != nil {
		return nil, err
	}

	logLevel := gormlogger.Silent
	if cfg.ShowStatements {
		logLevel = gormlogger.Info
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: gormlogger.Default.LogMode(logLevel),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database instance: %w", err)
	}

	if cfg.PoolSize > 0 {
		sqlDB.SetMaxIdleConns(cfg.PoolSize)
		sqlDB.SetMaxOpenConns(cfg.PoolSize + cfg.MaxOverflow)
	}
	if cfg.PoolRecycle > 0 {
		sqlDB.SetConnMaxLifetime(cfg.PoolRecycle)
	}

	if err := sqlDB.Ping(); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	logger.Info("database connection established",
		zap.String("driver", cfg.Driver),
		zap.String("database", cfg.Database),
	)
	return db, nil
}

// Close releases the connection pool behind db.
func Close(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
