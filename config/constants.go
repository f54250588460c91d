package config

import "github.com/shopspring/decimal"

// 拍卖排期常量（时间均按服务器本地时区计算）
const (
	RegistrationPeriodDays = 14 // 报名期总天数（首日09:00起算）
	AuctionStartDelayDays  = 3  // 报名截止后到开拍日的间隔天数
	MaxAssetsPerAuction    = 3  // 单场拍卖会最多上拍的拍品数

	RegistrationStartHour = 9  // 报名开始时刻 09:00
	RegistrationEndHour   = 17 // 报名截止时刻 17:00
)

// 未配置品类的默认保证金比例（%）
const defaultDepositPercentage = 15

// AssetSlot 单件拍品的竞价时段（开拍日内的时分）
type AssetSlot struct {
	StartHour   int
	StartMinute int
	EndHour     int
	EndMinute   int
}

// MorningAssetSlots 上午场竞价时段表
var MorningAssetSlots = []AssetSlot{
	{9, 0, 9, 50},
	{10, 0, 10, 50},
	{11, 0, 11, 50},
}

// AfternoonAssetSlots 下午场竞价时段表
var AfternoonAssetSlots = []AssetSlot{
	{14, 0, 14, 50},
	{15, 0, 15, 50},
	{16, 0, 16, 50},
}

// depositPercentages 品类 -> 保证金比例（%），作为配置输入，不参与计算推导
var depositPercentages = map[string]int64{
	"vehicles":    10,
	"jewelry":     20,
	"art":         25,
	"electronics": 15,
}

// DepositPercentageFor 查询品类对应的保证金比例，未配置的品类取默认值
func DepositPercentageFor(category string) decimal.Decimal {
	if p, ok := depositPercentages[category]; ok {
		return decimal.NewFromInt(p)
	}
	return GlobalConfig.DefaultDepositPercentage
}
