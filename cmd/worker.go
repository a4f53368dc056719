/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/picourse/apiserver/config"
	"github.com/picourse/apiserver/internal/mq"
	"github.com/picourse/apiserver/internal/notify"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// workerCmd represents the worker command
var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Runs the lesson-request notification worker",
	Long: `Runs the notification worker. It consumes lesson-request events from
the configured message broker and logs them; wire delivery channels in
here. Usage:

	apiserver worker
`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.LoadConfig()

		logger, err := zap.NewProduction()
		if err != nil {
			return err
		}
		defer logger.Sync()

		broker, err := mq.NewFromConfig(cmd.Context(), cfg.MQ)
		if err != nil {
			return err
		}
		if broker == nil {
			return errors.New("MQ_DRIVER is required for the worker")
		}
		defer broker.Close()

		consumer := notify.NewConsumer(broker, logger)
		if err := consumer.Run(cmd.Context()); err != nil {
			fmt.Fprintf(os.Stderr, "worker error: %v\n", err)
			return err
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(workerCmd)
}
