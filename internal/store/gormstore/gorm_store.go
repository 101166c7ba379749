package gormstore

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"poa/internal/session"
	storemodel "poa/internal/store/model"

	"gorm.io/datatypes"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

type authTokenModel = storemodel.AuthTokenModel
type orderLogModel = storemodel.OrderLogModel

// GormStore persists access tokens and the order journal in SQLite.
type GormStore struct {
	db *gorm.DB
}

// NewGormStore opens (and migrates) the database at path.
func NewGormStore(path string) (*GormStore, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("gorm store: 数据库路径不能为空")
	}
	if err := ensureDir(path); err != nil {
		return nil, err
	}
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&cache=shared", path)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:                                   logger.Default.LogMode(logger.Silent),
		DisableForeignKeyConstraintWhenMigrating: true,
	})
	if err != nil {
		return nil, err
	}
	if err := db.AutoMigrate(&authTokenModel{}, &orderLogModel{}); err != nil {
		return nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(2)
	sqlDB.SetMaxIdleConns(2)
	return &GormStore{db: db}, nil
}

// Close closes the underlying database connection.
func (s *GormStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

var _ session.TokenStore = (*GormStore)(nil)

// ------------------------------ Tokens ---------------------------------

func (s *GormStore) Get(ctx context.Context, accountID string) (session.AuthToken, bool, error) {
	if s == nil || s.db == nil {
		return session.AuthToken{}, false, fmt.Errorf("gorm store 未初始化")
	}
	var m authTokenModel
	err := s.db.WithContext(ctx).Where("account_id = ?", accountID).Take(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return session.AuthToken{}, false, nil
	}
	if err != nil {
		return session.AuthToken{}, false, err
	}
	tok := session.AuthToken{Value: m.Token, Raw: []byte(m.RawResponse)}
	if m.ExpiresAtUnix > 0 {
		tok.ExpiresAt = time.Unix(m.ExpiresAtUnix, 0)
	}
	return tok, true, nil
}

func (s *GormStore) Put(ctx context.Context, accountID string, tok session.AuthToken) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("gorm store 未初始化")
	}
	if strings.TrimSpace(accountID) == "" {
		return fmt.Errorf("account_id 必填")
	}
	now := time.Now().Unix()
	m := authTokenModel{
		AccountID:     accountID,
		Token:         tok.Value,
		CreatedAtUnix: now,
		UpdatedAtUnix: now,
	}
	if !tok.ExpiresAt.IsZero() {
		m.ExpiresAtUnix = tok.ExpiresAt.Unix()
	}
	if len(tok.Raw) > 0 {
		m.RawResponse = datatypes.JSON(tok.Raw)
	}
	return s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "account_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"token", "expires_at", "raw_response", "updated_at"}),
		}).
		Create(&m).Error
}

// --------------------------- Model Helpers ------------------------------

func ensureDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "" || dir == "." {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}
