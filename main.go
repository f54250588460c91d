package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/heidiie13/api-auction-system/config"
	"github.com/heidiie13/api-auction-system/dao"
	"github.com/heidiie13/api-auction-system/handler"
	"github.com/heidiie13/api-auction-system/service"
	"github.com/heidiie13/api-auction-system/utils"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func main() {
	// 1. 初始化配置
	if err := config.InitConfig(); err != nil {
		zap.L().Fatal("初始化配置失败", zap.Error(err))
	}

	// 2. 初始化日志
	if err := utils.InitLogger(); err != nil {
		zap.L().Fatal("初始化日志失败", zap.Error(err))
	}

	// 3. 初始化MySQL（含表结构迁移）
	db, err := dao.InitMySQL(config.GlobalConfig.MySQLDSN)
	if err != nil {
		utils.Logger.Fatal("连接MySQL失败", zap.Error(err))
	}

	// 4. 初始化Redis（分布式锁）
	if err := utils.InitRedis(config.GlobalConfig.RedisAddr, config.GlobalConfig.RedisPassword, config.GlobalConfig.RedisDB); err != nil {
		utils.Logger.Fatal("初始化Redis失败", zap.Error(err))
	}
	locker, err := utils.NewRedisLocker()
	if err != nil {
		utils.Logger.Fatal("初始化分布式锁失败", zap.Error(err))
	}

	// 5. 初始化RabbitMQ（事件通知）
	if err := utils.InitRabbitMQ(config.GlobalConfig.RabbitMQURL); err != nil {
		utils.Logger.Fatal("初始化RabbitMQ失败", zap.Error(err))
	}
	defer utils.CloseRabbitMQ()
	notifier := utils.NewAMQPNotifier()

	// 6. 初始化延时任务调度器
	scheduler := utils.NewTimerScheduler()

	// 7. 初始化服务和处理器
	assetService := service.NewAssetService(db, locker, notifier)
	bidService := service.NewBidService(db, locker, scheduler, notifier)
	auctionService := service.NewAuctionService(db, locker, scheduler, notifier, bidService)
	contractService := service.NewContractService(db, notifier)

	assetHandler := handler.NewAssetHandler(assetService)
	auctionHandler := handler.NewAuctionHandler(auctionService)
	bidHandler := handler.NewBidHandler(bidService)
	contractHandler := handler.NewContractHandler(contractService)

	// 8. 重启恢复：补挂未结束拍卖会的状态流转任务
	if err := auctionService.RestoreSchedules(context.Background()); err != nil {
		utils.Logger.Fatal("恢复拍卖排期任务失败", zap.Error(err))
	}

	// 9. 启动事件消费者（通知分发worker，投递渠道后续接入）
	err = utils.ConsumeEvents(func(event utils.Event) error {
		utils.Logger.Info("收到拍卖事件",
			zap.String("type", event.Type),
			zap.Uint("entity_id", event.EntityID))
		return nil
	})
	if err != nil {
		utils.Logger.Fatal("启动事件消费者失败", zap.Error(err))
	}

	// 10. 初始化Gin引擎
	r := gin.Default()
	r.Use(handler.PrincipalMiddleware())

	// 路由
	v1 := r.Group("/api/v1")
	{
		// 拍品与鉴定
		v1.POST("/assets", assetHandler.CreateAsset)
		v1.GET("/assets", assetHandler.ListAssets)
		v1.GET("/assets/:id", assetHandler.GetAsset)
		v1.POST("/assets/:id/appraisal", assetHandler.SubmitForAppraisal)
		v1.PATCH("/assets/:id/appraisal", assetHandler.RecordAppraisal)
		v1.GET("/appraisers", assetHandler.ListAppraisers)

		// 拍卖会排期
		v1.POST("/auctions", auctionHandler.CreateAuction)
		v1.GET("/auctions", auctionHandler.ListAuctions)
		v1.GET("/auctions/:id", auctionHandler.GetAuction)
		v1.GET("/auctions/:id/assets", auctionHandler.ListAuctionAssets)
		v1.DELETE("/auctions/:id", auctionHandler.DeleteAuction)

		// 报名、保证金与竞价
		v1.POST("/auctions/:id/registrations", bidHandler.RegisterForAuction)
		v1.POST("/registration-fees/:id/pay", bidHandler.PayRegistrationFee)
		v1.POST("/auction-assets/:id/deposits", bidHandler.DepositForAsset)
		v1.POST("/deposits/:id/pay", bidHandler.PayDeposit)
		v1.POST("/auction-assets/:id/bids", bidHandler.PlaceBid)
		v1.GET("/bids", bidHandler.ListBids)

		// 结算合同与目录
		v1.POST("/contracts", contractHandler.CreateContract)
		v1.GET("/contracts/:id", contractHandler.GetContract)
		v1.POST("/contracts/:id/fees", contractHandler.AttachFee)
		v1.POST("/contracts/:id/taxes", contractHandler.AttachTax)
		v1.POST("/contracts/:id/pay-winner", contractHandler.PayWinner)
		v1.POST("/contracts/:id/pay-seller", contractHandler.PaySeller)
		v1.POST("/fees", contractHandler.CreateFee)
		v1.GET("/fees", contractHandler.ListFees)
		v1.POST("/taxes", contractHandler.CreateTax)
		v1.GET("/taxes", contractHandler.ListTaxes)
	}

	// 11. 启动服务（优雅关闭）
	go func() {
		if err := r.Run(config.GlobalConfig.ServerPort); err != nil {
			utils.Logger.Fatal("启动服务失败", zap.Error(err))
		}
	}()

	// 监听系统信号，优雅关闭
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	utils.Logger.Info("服务正在关闭...")
}
