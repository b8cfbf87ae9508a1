package database

import (
	"appcc_edu_backend/internal/config"
	"appcc_edu_backend/internal/model"
	"fmt"
	"log"
	"time"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func InitDB(cfg *config.Config) (*gorm.DB, error) {
	dbCfg := cfg.Database
	dsn := fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=%s&parseTime=%t&loc=Local",
		dbCfg.User,
		dbCfg.Password,
		dbCfg.Host,
		dbCfg.Port,
		dbCfg.DBName,
		dbCfg.Charset,
		dbCfg.ParseTime,
	)

	logLevel := logger.Warn
	if cfg.Server.Mode == "debug" {
		logLevel = logger.Info
	}

	db, err := gorm.Open(mysql.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logLevel),
		TranslateError: true,
	})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(50)
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetConnMaxLifetime(time.Hour)

	log.Println("Database connection established")

	// release 模式下仅在显式要求时迁移
	if cfg.Server.Mode != "release" || cfg.ForceMigrate {
		if err := Migrate(db, &cfg.Bootstrap); err != nil {
			return nil, err
		}
	}

	return db, nil
}

// Migrate 自动迁移全部模型，并在库中没有用户时创建初始公司和管理员
func Migrate(db *gorm.DB, bootstrap *config.BootstrapConfig) error {
	if err := db.AutoMigrate(model.AllModels()...); err != nil {
		return err
	}

	log.Println("Database migration completed")

	if bootstrap == nil || bootstrap.AdminEmail == "" || bootstrap.AdminPassword == "" {
		return nil
	}

	var count int64
	if err := db.Model(&model.User{}).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	return db.Transaction(func(tx *gorm.DB) error {
		company := &model.Company{Name: bootstrap.CompanyName}
		if company.Name == "" {
			company.Name = "Default"
		}
		if err := tx.Create(company).Error; err != nil {
			return err
		}

		hashed, err := bcrypt.GenerateFromPassword([]byte(bootstrap.AdminPassword), bcrypt.DefaultCost)
		if err != nil {
			return err
		}
		name := bootstrap.AdminName
		if name == "" {
			name = "Admin"
		}
		admin := &model.User{
			CompanyID: company.ID,
			Name:      name,
			Email:     bootstrap.AdminEmail,
			Password:  string(hashed),
			Role:      model.RoleAdmin,
		}
		if err := tx.Create(admin).Error; err != nil {
			return err
		}
		log.Printf("Bootstrap admin %s created for company %d", admin.Email, company.ID)
		return nil
	})
}
