package database

import (
	"database/sql"
	"fmt"
	"net/url"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/pressly/goose/v3"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/trezcool/cetrack/core"
	appfs "github.com/trezcool/cetrack/fs"
)

const (
	EnginePostgres = "postgres"
	EngineSqlite   = "sqlite3"
)

func dsn(dbName string, admin bool, conf *core.Config) string {
	user := url.UserPassword(conf.Database.User, conf.Database.Password)
	if admin && conf.Database.AdminUser != "" {
		user = url.UserPassword(conf.Database.AdminUser, conf.Database.AdminPassword)
	}

	sslMode := "require"
	if conf.Database.DisableTLS {
		sslMode = "disable"
	}
	q := make(url.Values)
	q.Set("sslmode", sslMode)
	q.Set("timezone", "utc")

	u := url.URL{
		Scheme:   EnginePostgres,
		User:     user,
		Host:     conf.Database.Address(),
		Path:     dbName,
		RawQuery: q.Encode(),
	}
	return u.String()
}

func open(dbName string, admin bool, conf *core.Config) (*sql.DB, error) {
	return sql.Open(EnginePostgres, dsn(dbName, admin, conf))
}

// Open opens the application pool. DATABASE_URL wins over the discrete settings;
// the sqlite3 engine treats the database name as the file path.
func Open(conf *core.Config) (*sql.DB, error) {
	var (
		db  *sql.DB
		err error
	)
	switch {
	case conf.Database.Engine == EngineSqlite:
		db, err = sql.Open(EngineSqlite, conf.Database.Name)
	case conf.Database.URL != "":
		db, err = sql.Open(EnginePostgres, conf.Database.URL)
	default:
		db, err = open(conf.Database.Name, false, conf)
	}
	if err != nil {
		return nil, err
	}
	if conf.Database.MaxOpenConns > 0 {
		db.SetMaxOpenConns(conf.Database.MaxOpenConns)
	}
	if conf.Database.MaxIdleConns > 0 {
		db.SetMaxIdleConns(conf.Database.MaxIdleConns)
	}
	if conf.Database.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(conf.Database.ConnMaxLifetime)
	}
	return db, nil
}

// ping waits for the database to be ready. Waits 100ms longer between each attempt.
func ping(db *sql.DB) error {
	var err error
	maxAttempts := 30
	for attempts := 1; attempts <= maxAttempts; attempts++ {
		err = db.Ping()
		if err == nil {
			break
		}
		time.Sleep(time.Duration(attempts) * 100 * time.Millisecond)
	}

	if err != nil {
		return errors.Wrap(err, "DB ping timeout")
	}
	return nil
}

func exists(db *sql.DB, query, arg string) (bool, error) {
	var found bool
	err := db.QueryRow(query, arg).Scan(&found)
	if err == sql.ErrNoRows {
		return false, nil
	}
	return found, err
}

func createAppUser(db *sql.DB, conf *core.Config) error {
	if conf.Database.User == "" {
		return nil
	}

	found, err := exists(db, "SELECT true FROM pg_roles WHERE rolname = $1", conf.Database.User)
	if err != nil {
		return errors.Wrap(err, "checking app user")
	}
	if !found {
		q := fmt.Sprintf("CREATE USER %q CREATEDB ENCRYPTED PASSWORD '%s'", conf.Database.User, conf.Database.Password)
		if _, err = db.Exec(q); err != nil {
			return errors.Wrap(err, "creating app user")
		}
	}
	return nil
}

func createDB(db *sql.DB, conf *core.Config) error {
	found, err := exists(db, "SELECT true FROM pg_database WHERE datname = $1", conf.Database.Name)
	if err != nil {
		return errors.Wrap(err, "checking DB")
	}
	if !found {
		if _, err = db.Exec(fmt.Sprintf("CREATE DATABASE %q", conf.Database.Name)); err != nil {
			return errors.Wrap(err, "creating database")
		}
	}
	return nil
}

// CreateIfNotExist creates the application role and database.
// It does nothing for sqlite3 or when DATABASE_URL points to a managed database.
func CreateIfNotExist(conf *core.Config) error {
	if conf.Database.Engine == EngineSqlite || conf.Database.URL != "" {
		return nil
	}

	// connect as admin
	db, err := open("postgres", true, conf)
	if err != nil {
		return errors.Wrap(err, "opening database")
	}
	defer func() { _ = db.Close() }()

	if err = ping(db); err != nil {
		return errors.Wrap(err, "pinging database")
	}
	if err = createAppUser(db, conf); err != nil {
		return err
	}

	// create DB as app user
	appDB, err := open("postgres", false, conf)
	if err != nil {
		return errors.Wrap(err, "opening database")
	}
	defer func() { _ = appDB.Close() }()
	return createDB(appDB, conf)
}

// Migrate applies the embedded goose migrations.
func Migrate(db *sql.DB) error {
	goose.SetBaseFS(appfs.FS)
	if err := goose.SetDialect(EnginePostgres); err != nil {
		return errors.Wrap(err, "setting migration dialect")
	}
	if err := goose.Up(db, "migrations"); err != nil {
		return errors.Wrap(err, "migrating database")
	}
	return nil
}

// NewGorm wraps the shared pool. `writer` receives slow query and error logs; nil silences them.
func NewGorm(db *sql.DB, engine string, writer gormlogger.Writer) (*gorm.DB, error) {
	logCfg := gormlogger.Config{SlowThreshold: 200 * time.Millisecond, LogLevel: gormlogger.Warn, IgnoreRecordNotFoundError: true}
	lg := gormlogger.Discard
	if writer != nil {
		lg = gormlogger.New(writer, logCfg)
	}

	var dialector gorm.Dialector
	switch engine {
	case EngineSqlite:
		dialector = sqlite.Dialector{DriverName: EngineSqlite, Conn: db}
	default:
		dialector = postgres.New(postgres.Config{Conn: db})
	}
	gdb, err := gorm.Open(dialector, &gorm.Config{Logger: lg, NowFunc: func() time.Time { return time.Now().UTC() }})
	if err != nil {
		return nil, errors.Wrap(err, "opening gorm")
	}
	return gdb, nil
}

// NewSqlx wraps the shared pool for the reporting queries.
func NewSqlx(db *sql.DB, engine string) *sqlx.DB {
	if engine == "" {
		engine = EnginePostgres
	}
	return sqlx.NewDb(db, engine)
}
