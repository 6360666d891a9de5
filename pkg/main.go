package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	pkg "github.com/pollbridge/pollbridge/pkg/internal"
	"github.com/pollbridge/pollbridge/pkg/internal/cache"
	"github.com/pollbridge/pollbridge/pkg/internal/database"
	"github.com/pollbridge/pollbridge/pkg/internal/gateway"
	"github.com/pollbridge/pollbridge/pkg/internal/http"
	"github.com/pollbridge/pollbridge/pkg/internal/http/api"
	"github.com/pollbridge/pollbridge/pkg/internal/services"
	"github.com/pollbridge/pollbridge/pkg/internal/wallet"

	"github.com/fatih/color"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

func init() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stdout})
}

func main() {
	// Booting screen
	fmt.Println(color.YellowString(" ____       _ _ _          _     _\n|  _ \\ ___ | | | |__  _ __(_) __| | __ _  ___\n| |_) / _ \\| | | '_ \\| '__| |/ _` |/ _` |/ _ \\\n|  __/ (_) | | | |_) | |  | | (_| | (_| |  __/\n|_|   \\___/|_|_|_.__/|_|  |_|\\__,_|\\__, |\\___|\n                                   |___/"))
	fmt.Printf("%s v%s\n", color.New(color.FgHiYellow).Add(color.Bold).Sprintf("Pollbridge"), pkg.AppVersion)
	fmt.Printf("The web bridge of the on-chain voting system\n")
	color.HiBlack("=====================================================\n")

	// Configure settings
	viper.AddConfigPath(".")
	viper.AddConfigPath("..")
	viper.SetConfigName("settings")
	viper.SetConfigType("toml")

	// Load settings
	if err := viper.ReadInConfig(); err != nil {
		log.Panic().Err(err).Msg("An error occurred when loading settings.")
	}

	// Local cache
	if err := cache.NewStore(); err != nil {
		log.Fatal().Err(err).Msg("An error occurred when initializing cache.")
	}

	// Connect to database
	if err := database.NewGorm(); err != nil {
		log.Fatal().Err(err).Msg("An error occurred when connect to database.")
	} else if err := database.RunMigration(database.C); err != nil {
		log.Fatal().Err(err).Msg("An error occurred when running database auto migration.")
	}

	// Contract gateway and poll board
	ledger := gateway.NewClient()
	api.BalanceSource = ledger
	services.InitBoard(ledger)

	refreshCtx, cancelRefresh := context.WithTimeout(context.Background(), 30*time.Second)
	if err := services.RefreshBoard(refreshCtx); err != nil {
		log.Warn().Err(err).Msg("An error occurred when loading polls from the ledger, serving local snapshots...")
	}
	cancelRefresh()

	// Configure timed tasks
	refreshInterval := viper.GetDuration("ledger.refresh_interval")
	if refreshInterval <= 0 {
		refreshInterval = 30 * time.Second
	}

	quartz := cron.New(cron.WithLogger(cron.VerbosePrintfLogger(&log.Logger)))
	quartz.AddFunc(fmt.Sprintf("@every %s", refreshInterval), func() {
		ctx, cancel := context.WithTimeout(context.Background(), refreshInterval)
		defer cancel()
		if err := services.RefreshBoard(ctx, wallet.KnownAccounts()...); err != nil {
			log.Warn().Err(err).Msg("An error occurred when refreshing the poll board...")
		}
	})
	quartz.AddFunc("@every 60m", services.DoAutoDatabaseCleanup)
	quartz.Start()

	// Server
	go http.NewServer().Listen()

	// Messages
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	quartz.Stop()
}
