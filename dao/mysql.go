package dao

import (
	"github.com/heidiie13/api-auction-system/model"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"
)

// InitMySQL 初始化MySQL连接并迁移表结构（开发环境）
func InitMySQL(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(mysql.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, err
	}

	if err := AutoMigrate(db); err != nil {
		return nil, err
	}

	return db, nil
}

// AutoMigrate 自动迁移表结构
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&model.User{},
		&model.Appraiser{},
		&model.Asset{},
		&model.Auction{},
		&model.AuctionAsset{},
		&model.RegistrationFee{},
		&model.AssetDeposit{},
		&model.Bid{},
		&model.Fee{},
		&model.Tax{},
		&model.Contract{},
		&model.ContractFee{},
		&model.ContractTax{},
		&model.TransactionHistory{},
	)
}
