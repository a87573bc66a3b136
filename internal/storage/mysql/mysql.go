package mysql

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"

	"prod-tracker/internal/config"
)

const (
	errDuplicateKey = 1062
	errForeignKey   = 1452

	defaultPageSize = 500
)

type Storage struct {
	db       *sqlx.DB
	pageSize int
}

func New(cfg config.Config) (*Storage, error) {
	const op = "storage.mysql.New"

	db, err := sqlx.Open("mysql", DSN(cfg))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%s: ping failed: %w", op, err)
	}

	return NewWithDB(db, cfg.Facts.PageSize), nil
}

// NewWithDB для уже открытого соединения (тесты, CLI)
func NewWithDB(db *sqlx.DB, pageSize int) *Storage {
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}
	return &Storage{db: db, pageSize: pageSize}
}

// DSN время в базе только UTC, конвертация в локальное в timeanchor
func DSN(cfg config.Config) string {
	c := mysql.NewConfig()
	c.User = cfg.DBUser
	c.Passwd = cfg.DBPassword
	c.Net = "tcp"
	c.Addr = net.JoinHostPort(cfg.DBHost, strconv.Itoa(cfg.DBPort))
	c.DBName = cfg.DBName
	c.ParseTime = true
	c.Loc = time.UTC
	c.ClientFoundRows = true

	return c.FormatDSN()
}

func (s *Storage) Close() error {
	return s.db.Close()
}

func mysqlErrNumber(err error) uint16 {
	var mysqlErr *mysql.MySQLError
	if errors.As(err, &mysqlErr) {
		return mysqlErr.Number
	}
	return 0
}
