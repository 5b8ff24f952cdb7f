package db

import (
	"fmt"
	"time"

	"github.com/Ayflow350/Ice-empire/internal/config"
	"github.com/Ayflow350/Ice-empire/internal/domain/model"

	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Connect はDBに接続して *gorm.DB を返す。
func Connect(cfg config.DB) (*gorm.DB, error) {
	var (
		gdb *gorm.DB
		err error
	)

	switch cfg.Driver {
	case "mysql":
		//一意制約違反を gorm.ErrDuplicatedKey に変換させる
		gdb, err = gorm.Open(mysql.Open(cfg.MySQLDSN), &gorm.Config{
			TranslateError: true,
			Logger:         logger.Default.LogMode(logger.Warn),
		})
	default:
		gdb, err = gorm.Open(postgres.Open(PostgresDSN(cfg)), &gorm.Config{
			Logger: logger.Default.LogMode(logger.Warn),
		})
	}
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", cfg.Driver, err)
	}

	sqlDB, err := gdb.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(20)
	sqlDB.SetMaxIdleConns(5)
	sqlDB.SetConnMaxLifetime(30 * time.Minute)

	return gdb, nil
}

// DATABASE_URL があれば最優先で使う
func PostgresDSN(cfg config.DB) string {
	if cfg.DatabaseURL != "" {
		return cfg.DatabaseURL
	}
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.PostgresHost, cfg.PostgresPort, cfg.PostgresUser, cfg.PostgresPassword, cfg.PostgresDB, cfg.PostgresSSLMode,
	)
}

func Migrate(gdb *gorm.DB) error {
	return gdb.AutoMigrate(
		&model.Order{},
		&model.OrderItem{},
		&model.Product{},
		&model.ProductVariant{},
		&model.AuditLog{},
	)
}
