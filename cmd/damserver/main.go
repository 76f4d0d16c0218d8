// SPDX-FileCopyrightText: © 2025 DSLab - Fondazione Bruno Kessler
//
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/bitrise-io/go-utils/v2/log"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/viper"

	"github.com/scc-digitalhub/dam-assets-sdk/sdk/auth"
	"github.com/scc-digitalhub/dam-assets-sdk/sdk/server"
	"github.com/scc-digitalhub/dam-assets-sdk/sdk/services/assets"
	"github.com/scc-digitalhub/dam-assets-sdk/sdk/services/upload"
	"github.com/scc-digitalhub/dam-assets-sdk/sdk/utils"
)

func main() {
	env := flag.String("env", "", "INI section to load (defaults to current_environment)")
	flag.Parse()

	logger := log.NewLogger()
	if err := run(logger, *env); err != nil {
		logger.Errorf("%v", err)
		os.Exit(1)
	}
}

func run(logger log.Logger, env string) error {
	var envs []string
	if env != "" {
		envs = append(envs, env)
	}
	if err := utils.RegisterIniCfgWithViper(envs...); err != nil {
		return err
	}
	debug, _ := strconv.ParseBool(viper.GetString(utils.Debug))
	logger.EnableDebugLog(debug)

	conf, err := utils.LoadConfig()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	tokens, err := auth.NewIMSTokenProvider(conf.IMS, auth.WithLogger(logger))
	if err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	assetSvc, err := assets.NewAssetService(ctx, conf, tokens, logger)
	if err != nil {
		return err
	}
	uploadSvc, err := upload.NewUploadService(ctx, conf, tokens,
		upload.WithLogger(logger),
		upload.WithMetrics(upload.MustNewMetrics(reg)),
	)
	if err != nil {
		return err
	}

	srv, err := server.New(conf.Server, server.Deps{
		Assets:   assetSvc,
		Uploads:  uploadSvc,
		Tokens:   tokens,
		Registry: reg,
	}, logger)
	if err != nil {
		return err
	}
	return srv.Run(ctx)
}
