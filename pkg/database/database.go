package database

import (
	"fmt"
	"strings"

	"tutor_backend/internal/config"
	"tutor_backend/internal/model"
	"tutor_backend/pkg/logger"

	"go.uber.org/zap"
	"gorm.io/driver/mysql"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// Models 需要迁移的全部表
func Models() []interface{} {
	return []interface{}{
		&model.User{},
		&model.Subject{},
		&model.ChatSession{},
		&model.ChatMessage{},
		&model.SubjectProgress{},
		&model.LearningPath{},
		&model.LearningModule{},
		&model.UserLearningPath{},
		&model.Goal{},
		&model.Achievement{},
		&model.UserAchievement{},
	}
}

// GormConfig mysql 与测试用 sqlite 共用的 gorm 配置
func GormConfig(mode string) *gorm.Config {
	level := gormlogger.Warn
	switch mode {
	case "debug":
		level = gormlogger.Info
	case "test":
		level = gormlogger.Silent
	}
	return &gorm.Config{
		Logger:                                   gormlogger.Default.LogMode(level),
		DisableForeignKeyConstraintWhenMigrating: true,
	}
}

func InitDB(cfg *config.Config) (*gorm.DB, error) {
	dbCfg := cfg.Database
	if dbCfg.Driver == "sqlite" {
		db, err := OpenSQLite(dbCfg.Path, cfg.Server.Mode)
		if err != nil {
			return nil, err
		}
		logger.Log.Info("SQLite database opened", zap.String("path", dbCfg.Path))
		return db, Seed(db)
	}

	dsn := fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=%s&parseTime=%t&loc=Local",
		dbCfg.User,
		dbCfg.Password,
		dbCfg.Host,
		dbCfg.Port,
		dbCfg.DBName,
		dbCfg.Charset,
		dbCfg.ParseTime,
	)

	db, err := gorm.Open(mysql.Open(dsn), GormConfig(cfg.Server.Mode))
	if err != nil {
		return nil, err
	}

	logger.Log.Info("Database connection established", zap.String("host", dbCfg.Host), zap.String("db", dbCfg.DBName))

	// release 模式默认跳过迁移，除非命令行强制
	if cfg.Server.Mode != "release" || cfg.ForceMigrate {
		if err := Migrate(db); err != nil {
			return nil, err
		}
		logger.Log.Info("Database migration completed")
	}

	if err := Seed(db); err != nil {
		return nil, err
	}

	return db, nil
}

// OpenSQLite 打开 sqlite 数据库并迁移，内存库限制为单连接以保证各查询看到同一份数据
func OpenSQLite(dsn, mode string) (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(dsn), GormConfig(mode))
	if err != nil {
		return nil, err
	}
	if dsn == ":memory:" || strings.Contains(dsn, "mode=memory") {
		sqlDB, err := db.DB()
		if err != nil {
			return nil, err
		}
		sqlDB.SetMaxOpenConns(1)
		sqlDB.SetConnMaxLifetime(0)
	}
	if err := Migrate(db); err != nil {
		return nil, err
	}
	return db, nil
}

func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(Models()...)
}
