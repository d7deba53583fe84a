package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	logger "github.com/sirupsen/logrus"

	"signalbridge/src/controller"
	"signalbridge/src/database"
	"signalbridge/src/executor"
	"signalbridge/src/gateway"
	"signalbridge/src/reconciler"
	"signalbridge/src/repository"
	"signalbridge/src/server"
	"signalbridge/src/utils"
)

var APP_NAME = os.Getenv("APP_NAME")

func SetupLogger() {
	levelStr := strings.ToLower(os.Getenv("LOG_LEVEL"))

	level, err := logger.ParseLevel(levelStr)
	if err != nil {
		level = logger.DebugLevel
	}

	logger.SetLevel(level)
	logger.SetFormatter(&logger.TextFormatter{
		FullTimestamp: true,
	})
}

func main() {
	SetupLogger()
	defer handlePanic()

	if err := database.InitMainDB(); err != nil {
		logger.WithError(err).Fatal("Failed to connect to database")
	}

	gwCfg := gateway.GetConfig()
	gw := gateway.NewClient(gwCfg)
	clock := utils.RealClock()

	feed := gateway.NewMidsFeed(gwCfg)
	go feed.Run(context.Background())

	trades := repository.NewTradeRepository()
	state := repository.NewRiskStateRepository()
	settings := repository.NewSettingsRepository()
	coins := repository.NewCoinConfigRepository()
	activity := repository.NewActivityLogRepository()

	rec := reconciler.New(trades, state, settings, activity, clock)
	exec := executor.NewCoordinator(executor.GetConfig(), gw, clock)
	ctrl := controller.NewTradeController(controller.GetConfig(), executor.GetConfig(),
		gw, exec, rec, settings, coins, activity, clock).WithMidsFeed(feed)

	server.StartServer(server.GetConfig().Port, server.Deps{
		Controller: ctrl,
		Trades:     trades,
		Settings:   settings,
		Activity:   activity,
		Clock:      clock,
	})
}

func handlePanic() {
	if r := recover(); r != nil {
		logger.WithError(fmt.Errorf("%+v", r)).Error(fmt.Sprintf("Application %s panic", APP_NAME))
	}
	//nolint
	time.Sleep(time.Second * 5)
}
