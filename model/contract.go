package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// FeeType 费用类型
type FeeType string

const (
	FeeTypeCommission FeeType = "commission" // 佣金
	FeeTypeListing    FeeType = "listing"    // 上拍费
	FeeTypeInsurance  FeeType = "insurance"  // 保险费
	FeeTypeShipping   FeeType = "shipping"   // 运输费
	FeeTypeOther      FeeType = "other"      // 其他服务费
)

// TaxType 税种
type TaxType string

const (
	TaxTypeImport TaxType = "import" // 进口税
	TaxTypeVAT    TaxType = "vat"    // 增值税
	TaxTypeIncome TaxType = "income" // 个人所得税
	TaxTypeSales  TaxType = "sales"  // 销售税
)

// ContractStatus 合同状态
type ContractStatus string

const (
	ContractStatusPending   ContractStatus = "pending"   // 待生效
	ContractStatusActive    ContractStatus = "active"    // 履约中
	ContractStatusCompleted ContractStatus = "completed" // 双方结清
	ContractStatusCancelled ContractStatus = "cancelled" // 已取消
)

// Fee 费用目录表（配置输入）
type Fee struct {
	ID           uint            `gorm:"primaryKey;comment:费用ID" json:"id"`
	Name         string          `gorm:"size:255;comment:名称" json:"name"`
	FeeType      FeeType         `gorm:"size:50;comment:类型" json:"fee_type"`
	IsPercentage bool            `gorm:"comment:是否按成交价比例计" json:"is_percentage"`
	Amount       decimal.Decimal `gorm:"type:decimal(10,2);comment:比例(0-100)或固定金额" json:"amount"`
	Description  string          `gorm:"type:text;comment:描述" json:"description"`
	CreatedAt    time.Time       `gorm:"comment:创建时间" json:"created_at"`
	UpdatedAt    time.Time       `gorm:"comment:更新时间" json:"updated_at"`
}

// TableName 表名
func (f *Fee) TableName() string {
	return "fees"
}

// Tax 税费目录表（配置输入）
type Tax struct {
	ID           uint            `gorm:"primaryKey;comment:税费ID" json:"id"`
	Name         string          `gorm:"size:255;comment:名称" json:"name"`
	TaxType      TaxType         `gorm:"size:50;comment:税种" json:"tax_type"`
	IsPercentage bool            `gorm:"comment:是否按成交价比例计" json:"is_percentage"`
	Amount       decimal.Decimal `gorm:"type:decimal(10,2);comment:比例(0-100)或固定金额" json:"amount"`
	Description  string          `gorm:"type:text;comment:描述" json:"description"`
	CreatedAt    time.Time       `gorm:"comment:创建时间" json:"created_at"`
	UpdatedAt    time.Time       `gorm:"comment:更新时间" json:"updated_at"`
}

// TableName 表名
func (t *Tax) TableName() string {
	return "taxes"
}

// Contract 成交合同表，与拍卖拍品一一对应
// 派生金额在费用/税费行变化时重算：
// winner_amount_due = final_price + total_taxes - 已付保证金抵扣
// seller_amount_due = total_fees
type Contract struct {
	ID                  uint            `gorm:"primaryKey;comment:合同ID" json:"id"`
	ContractNo          string          `gorm:"uniqueIndex;size:64;comment:合同编号(UUID)" json:"contract_no"`
	Name                string          `gorm:"size:255;comment:名称" json:"name"`
	AuctionAssetID      uint            `gorm:"uniqueIndex;comment:关联拍卖拍品ID" json:"auction_asset_id"`
	WinnerID            uint            `gorm:"index;comment:买受人用户ID" json:"winner_id"`
	SellerID            uint            `gorm:"index;comment:卖家用户ID" json:"seller_id"`
	Status              ContractStatus  `gorm:"size:20;default:pending;comment:状态" json:"status"`
	WinnerPaymentStatus PaymentStatus   `gorm:"size:20;default:unpaid;comment:买受人支付状态" json:"winner_payment_status"`
	SellerPaymentStatus PaymentStatus   `gorm:"size:20;default:unpaid;comment:卖家支付状态" json:"seller_payment_status"`
	PaymentDueDate      time.Time       `gorm:"comment:付款截止日" json:"payment_due_date"`
	TotalFees           decimal.Decimal `gorm:"type:decimal(12,2);comment:费用合计" json:"total_fees"`
	TotalTaxes          decimal.Decimal `gorm:"type:decimal(12,2);comment:税费合计" json:"total_taxes"`
	WinnerAmountDue     decimal.Decimal `gorm:"type:decimal(12,2);comment:买受人应付" json:"winner_amount_due"`
	SellerAmountDue     decimal.Decimal `gorm:"type:decimal(12,2);comment:卖家应付" json:"seller_amount_due"`
	CreatedAt           time.Time       `gorm:"comment:创建时间" json:"created_at"`
	UpdatedAt           time.Time       `gorm:"comment:更新时间" json:"updated_at"`
}

// TableName 表名
func (c *Contract) TableName() string {
	return "contracts"
}

// ContractFee 合同费用行，(contract, fee)唯一
type ContractFee struct {
	ID         uint            `gorm:"primaryKey;comment:合同费用ID" json:"id"`
	ContractID uint            `gorm:"uniqueIndex:uniq_contract_fee;comment:合同ID" json:"contract_id"`
	FeeID      uint            `gorm:"uniqueIndex:uniq_contract_fee;comment:费用ID" json:"fee_id"`
	Amount     decimal.Decimal `gorm:"type:decimal(10,2);comment:实际应收金额" json:"amount"`
	CreatedAt  time.Time       `gorm:"comment:创建时间" json:"created_at"`
	UpdatedAt  time.Time       `gorm:"comment:更新时间" json:"updated_at"`
}

// TableName 表名
func (c *ContractFee) TableName() string {
	return "contract_fees"
}

// ContractTax 合同税费行，(contract, tax)唯一
type ContractTax struct {
	ID         uint            `gorm:"primaryKey;comment:合同税费ID" json:"id"`
	ContractID uint            `gorm:"uniqueIndex:uniq_contract_tax;comment:合同ID" json:"contract_id"`
	TaxID      uint            `gorm:"uniqueIndex:uniq_contract_tax;comment:税费ID" json:"tax_id"`
	Amount     decimal.Decimal `gorm:"type:decimal(10,2);comment:实际应收金额" json:"amount"`
	CreatedAt  time.Time       `gorm:"comment:创建时间" json:"created_at"`
	UpdatedAt  time.Time       `gorm:"comment:更新时间" json:"updated_at"`
}

// TableName 表名
func (c *ContractTax) TableName() string {
	return "contract_taxes"
}

// TransactionType 交易流水类型
type TransactionType string

const (
	TransactionTypeRegistration  TransactionType = "registration_fee" // 报名费
	TransactionTypeDeposit       TransactionType = "asset_deposit"    // 保证金
	TransactionTypeWinnerPayment TransactionType = "winner_payment"   // 买受人付款
	TransactionTypeSellerPayment TransactionType = "seller_payment"   // 卖家付款
)

// TransactionStatus 交易流水状态
type TransactionStatus string

const (
	TransactionStatusPending TransactionStatus = "pending"
	TransactionStatusSuccess TransactionStatus = "success"
	TransactionStatusFailed  TransactionStatus = "failed"
)

// TransactionHistory 交易流水表（审计账本，只追加）
type TransactionHistory struct {
	ID              uint              `gorm:"primaryKey;comment:流水ID" json:"id"`
	UserID          uint              `gorm:"index;comment:用户ID" json:"user_id"`
	TransactionType TransactionType   `gorm:"size:20;comment:类型" json:"transaction_type"`
	Status          TransactionStatus `gorm:"size:20;default:pending;comment:状态" json:"status"`
	Description     string            `gorm:"type:text;comment:描述" json:"description"`
	ContractID      *uint             `gorm:"comment:关联合同ID" json:"contract_id"`
	AuctionID       *uint             `gorm:"comment:关联拍卖会ID" json:"auction_id"`
	AuctionAssetID  *uint             `gorm:"comment:关联拍卖拍品ID" json:"auction_asset_id"`
	CreatedAt       time.Time         `gorm:"comment:创建时间" json:"created_at"`
	UpdatedAt       time.Time         `gorm:"comment:更新时间" json:"updated_at"`
}

// TableName 表名
func (t *TransactionHistory) TableName() string {
	return "transaction_histories"
}
