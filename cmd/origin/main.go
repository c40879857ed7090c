// Copyright (C) 2025 Storj Labs, Inc.
// See LICENSE for copying information.

package main

import (
	"path/filepath"
	"strconv"
	"time"

	"github.com/spf13/cobra"
	"github.com/zeebo/errs"
	"go.uber.org/zap"

	"storj.io/common/fpath"
	"storj.io/private/cfgstruct"
	"storj.io/private/process"

	"origin.energy/origin/account/accountdb"
	"origin.energy/origin/account/allocation"
	"origin.energy/origin/account/issuance"
	"origin.energy/origin/account/ledger"
	"origin.energy/origin/account/ledger/localledger"
	"origin.energy/origin/account/technology"
)

// Config defines the origin account service configuration.
type Config struct {
	Database string `help:"account database connection string" default:"postgres://"`

	DB              accountdb.Config
	Issuance        issuance.Config
	Ledger          ledger.Config
	TechnologyCache technology.CacheConfig
}

var (
	rootCmd = &cobra.Command{
		Use:   "origin",
		Short: "GGO account service",
	}
	runCmd = &cobra.Command{
		Use:   "run",
		Short: "Run the account service",
		RunE:  cmdRun,
	}
	setupCmd = &cobra.Command{
		Use:         "setup",
		Short:       "Create config files",
		RunE:        cmdSetup,
		Annotations: map[string]string{"type": "setup"},
	}
	migrateCmd = &cobra.Command{
		Use:   "migrate",
		Short: "Migrate the database to the latest schema",
		RunE:  cmdMigrate,
	}
	importCmd = &cobra.Command{
		Use:   "import-measurement [gsrn] [begin] [end] [amount]",
		Short: "Publish a measurement, issuing a GGO for production",
		Args:  cobra.ExactArgs(4),
		RunE:  cmdImportMeasurement,
	}

	runCfg     Config
	setupCfg   Config
	migrateCfg Config
	importCfg  Config

	confDir string
)

func init() {
	defaultConfDir := fpath.ApplicationDir("origin", "account")
	cfgstruct.SetupFlag(zap.L(), rootCmd, &confDir, "config-dir", defaultConfDir, "main directory for origin configuration")
	defaults := cfgstruct.DefaultsFlag(rootCmd)

	rootCmd.AddCommand(runCmd, setupCmd, migrateCmd, importCmd)

	process.Bind(runCmd, &runCfg, defaults, cfgstruct.ConfDir(confDir))
	process.Bind(setupCmd, &setupCfg, defaults, cfgstruct.ConfDir(confDir), cfgstruct.SetupMode())
	process.Bind(migrateCmd, &migrateCfg, defaults, cfgstruct.ConfDir(confDir))
	process.Bind(importCmd, &importCfg, defaults, cfgstruct.ConfDir(confDir))
}

func cmdRun(cmd *cobra.Command, args []string) (err error) {
	ctx, _ := process.Ctx(cmd)
	log := zap.L()

	db, err := accountdb.Open(ctx, log.Named("db"), runCfg.Database, runCfg.DB)
	if err != nil {
		return errs.New("error connecting to account database: %+v", err)
	}
	defer func() { err = errs.Combine(err, db.Close()) }()

	technologies := technology.OpenCache(db.Technologies(), runCfg.TechnologyCache)
	defer func() { err = errs.Combine(err, technologies.Close()) }()

	allocator := allocation.NewService(log.Named("allocation"), db, technologies)

	// The external ledger transport is wired here. Until the real
	// ledger client lands, batches settle against the in-process
	// ledger.
	chore := ledger.NewChore(log.Named("ledger"), db, localledger.New(), allocator, runCfg.Ledger)
	defer func() { err = errs.Combine(err, chore.Close()) }()

	return chore.Run(ctx)
}

func cmdSetup(cmd *cobra.Command, args []string) error {
	setupDir, err := filepath.Abs(confDir)
	if err != nil {
		return err
	}
	return process.SaveConfig(cmd, filepath.Join(setupDir, "config.yaml"))
}

func cmdImportMeasurement(cmd *cobra.Command, args []string) (err error) {
	ctx, _ := process.Ctx(cmd)
	log := zap.L()

	gsrn := args[0]
	begin, err := time.Parse(time.RFC3339, args[1])
	if err != nil {
		return errs.New("invalid begin: %+v", err)
	}
	end, err := time.Parse(time.RFC3339, args[2])
	if err != nil {
		return errs.New("invalid end: %+v", err)
	}
	amount, err := strconv.ParseInt(args[3], 10, 64)
	if err != nil {
		return errs.New("invalid amount: %+v", err)
	}

	db, err := accountdb.Open(ctx, log.Named("db"), importCfg.Database, importCfg.DB)
	if err != nil {
		return errs.New("error connecting to account database: %+v", err)
	}
	defer func() { err = errs.Combine(err, db.Close()) }()

	technologies := technology.OpenCache(db.Technologies(), importCfg.TechnologyCache)
	defer func() { err = errs.Combine(err, technologies.Close()) }()

	allocator := allocation.NewService(log.Named("allocation"), db, technologies)
	issuer := issuance.NewService(log.Named("issuance"), db, allocator, importCfg.Issuance)

	issued, err := issuer.CreateMeasurement(ctx, gsrn, begin, end, amount, nil)
	if err != nil {
		return err
	}
	if issued != nil {
		log.Info("issued", zap.Stringer("public_id", issued.PublicID))
	}
	return nil
}

func cmdMigrate(cmd *cobra.Command, args []string) (err error) {
	ctx, _ := process.Ctx(cmd)
	log := zap.L()

	db, err := accountdb.Open(ctx, log.Named("db"), migrateCfg.Database, migrateCfg.DB)
	if err != nil {
		return errs.New("error connecting to account database: %+v", err)
	}
	defer func() { err = errs.Combine(err, db.Close()) }()

	return db.MigrateToLatest(ctx)
}

func main() {
	process.Exec(rootCmd)
}
