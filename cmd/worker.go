/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/contactsbook/apiserver/config"
	"github.com/contactsbook/apiserver/internal/auth"
	"github.com/contactsbook/apiserver/internal/logging"
	"github.com/contactsbook/apiserver/internal/mailer"
	"github.com/contactsbook/apiserver/internal/mq"
	"github.com/spf13/cobra"
)

// workerCmd represents the worker command
var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Consumes email confirmation requests and sends the letters",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.LoadConfig(configPath)
		if err != nil {
			return err
		}
		logger := logging.New(cfg.Env, cfg.LogLevel)

		if isMemoryMQ(cfg.MQ.Backend) {
			return errors.New("the memory mq backend is in-process; the server runs its own worker")
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		codec, err := auth.NewCodec(cfg.JWT.Secret, cfg.JWT.Algorithm)
		if err != nil {
			return err
		}
		sender, err := mailer.NewSMTPSender(cfg.SMTP)
		if err != nil {
			return fmt.Errorf("init smtp: %w", err)
		}
		broker, err := mq.New(ctx, cfg.MQ)
		if err != nil {
			return fmt.Errorf("init mq: %w", err)
		}
		defer func() {
			if err := broker.Close(); err != nil {
				logger.Warn("close mq", "error", err)
			}
		}()

		worker := mailer.NewWorker(broker, cfg.MQ.Channel, codec, sender, logger)
		if err := worker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		logger.Info("mail worker stopped")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(workerCmd)
}
