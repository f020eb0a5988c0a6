/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/lifenippon/apiserver/config"
	"github.com/lifenippon/apiserver/internal/mailer"
	"github.com/lifenippon/apiserver/internal/mq"
	"github.com/spf13/cobra"
)

// mailworkerCmd represents the mailworker command
var mailworkerCmd = &cobra.Command{
	Use:   "mailworker",
	Short: "Consumes the mail queue and delivers emails over SMTP",
	Long: `Consumes the mail queue and delivers emails over SMTP. Run it
alongside the server when MAIL_DISPATCH=queue. Usage:

	apiserver mailworker
`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg := config.LoadConfig()
		logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
		slog.SetDefault(logger)

		backend, err := mq.NewBackend(cmd.Context(), cfg)
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to connect to queue: %v\n", err)
			os.Exit(1)
		}
		defer backend.Close()

		sender := mailer.NewSMTPSender(cfg.SMTP, cfg.Mail.From)
		worker := mailer.NewWorker(backend, cfg.Queue.MailQueue, sender, logger)

		logger.Info("mail worker started", "queue", cfg.Queue.MailQueue, "backend", cfg.Queue.Backend)
		if err := worker.Run(cmd.Context()); err != nil {
			fmt.Fprintf(os.Stderr, "mail worker error: %v\n", err)
			os.Exit(1)
		}
	},
}

func init() {
	rootCmd.AddCommand(mailworkerCmd)
}
