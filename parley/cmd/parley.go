// Operator commands for a parley deployment.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"

	"parley/parley/config"
	"parley/parley/services/auth"
	"parley/parley/services/retention"
	"parley/parley/sources/psql"
	"parley/parley/sources/psql/dao"
	"parley/parley/sources/storage"
	"parley/parley/utils/color"
	"parley/parley/utils/logging"
)

func main() {
	if os.Getenv("TERM") == "dumb" {
		color.Disable()
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Println(color.Error("config error: ") + err.Error())
		os.Exit(1)
	}
	if err := logging.InitLogger(cfg.LogDir); err != nil {
		fmt.Println(color.Error("logger init error: ") + err.Error())
		os.Exit(1)
	}
	defer logging.Sync()

	args := os.Args[1:]
	if len(args) == 0 {
		usage()
		os.Exit(1)
	}

	switch args[0] {
	case "sweep":
		os.Exit(runSweep(cfg))
	case "token":
		os.Exit(runToken(cfg, args[1:]))
	default:
		usage()
		os.Exit(1)
	}
}

func usage() {
	fmt.Println(color.Header("parley operator commands:"))
	fmt.Println("  parley sweep                      # delete transcripts past the retention period once")
	fmt.Println("  parley token <uid> [email] [name] # mint a session token for testing")
}

func runSweep(cfg config.Config) int {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	db, err := psql.NewDatabase(ctx, cfg.DSN())
	if err != nil {
		logging.ErrorLogger.Error("database connection error", zap.Error(err))
		fmt.Println(color.Error("database connection error: ") + err.Error())
		return 1
	}
	defer db.Close()

	var archiver retention.Archiver
	if cfg.ArchiveEnabled() {
		minioClient, err := storage.NewMinIOClient(ctx, cfg)
		if err != nil {
			fmt.Println(color.Error("minio connection error: ") + err.Error())
			return 1
		}
		archiver = minioClient
	} else {
		fmt.Println(color.Warning("archive disabled, expired transcripts are deleted without a copy"))
	}

	sweeper := retention.NewSweeper(dao.NewTranscriptDAO(db.DB), archiver, cfg.RetentionPeriod)
	removed, err := sweeper.RunOnce(ctx)
	if err != nil {
		fmt.Println(color.Error("sweep failed: ") + err.Error())
		return 1
	}
	fmt.Println(color.Info("removed transcripts:"), color.Value(fmt.Sprint(removed)))
	return 0
}

func runToken(cfg config.Config, args []string) int {
	if len(args) < 1 {
		usage()
		return 1
	}
	id := auth.Identity{UID: args[0]}
	if len(args) > 1 {
		id.Email = args[1]
	}
	if len(args) > 2 {
		id.Name = args[2]
	}

	token, err := auth.NewTokenManager(cfg.JWTSecret, cfg.TokenTTL).Issue(id)
	if err != nil {
		fmt.Println(color.Error("issue token: ") + err.Error())
		return 1
	}
	fmt.Println(color.Info("token for"), color.Value(id.UID), color.Info("valid for"), color.Value(cfg.TokenTTL.String()))
	fmt.Println(token)
	return 0
}
