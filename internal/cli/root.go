package cli

import (
	"context"
	"step_tracker_backend/internal/config"
	"step_tracker_backend/internal/repository"
	"step_tracker_backend/internal/service"
	"step_tracker_backend/pkg/database"

	"github.com/spf13/cobra"
	"gorm.io/gorm"
)

// RootOptions 所有子命令共用的参数
type RootOptions struct {
	ConfigDir string

	// Config 非空时直接使用，不再读取配置文件
	Config *config.Config
}

func (o *RootOptions) loadConfig() (*config.Config, error) {
	if o.Config != nil {
		return o.Config, nil
	}
	return config.LoadConfig(o.ConfigDir)
}

// env 子命令运行时依赖
type env struct {
	cfg   *config.Config
	db    *gorm.DB
	users *repository.UserRepository
}

func (o *RootOptions) open() (*env, func(), error) {
	cfg, err := o.loadConfig()
	if err != nil {
		return nil, nil, err
	}

	db, err := database.InitDB(&cfg.Database, false, true)
	if err != nil {
		return nil, nil, err
	}
	closeDB := func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	}

	return &env{cfg: cfg, db: db, users: repository.NewUserRepository(db)}, closeDB, nil
}

func (e *env) verificationService(ctx context.Context) (*service.VerificationService, error) {
	storage, err := service.NewStorageProvider(ctx, &e.cfg.Storage)
	if err != nil {
		return nil, err
	}
	rules := service.NewRuleSet(e.cfg.Campaign)
	return service.NewVerificationService(
		repository.NewSubmissionRepository(e.db),
		e.users,
		storage,
		repository.NewMemorySessionStore(),
		rules,
	), nil
}

// NewRootCommand stepctl 运维命令
func NewRootCommand() *cobra.Command {
	return newRootCommand(&RootOptions{})
}

func newRootCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "stepctl",
		Short:         "Step Tracker operator tool",
		Long:          "Operator commands for the step challenge backend: schema migration, accounts and challenge reset.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVarP(&opts.ConfigDir, "config", "c", "configs", "directory containing config.yaml")

	cmd.AddCommand(newMigrateCommand(opts))
	cmd.AddCommand(newUserCommand(opts))
	cmd.AddCommand(newResetCommand(opts))

	return cmd
}
