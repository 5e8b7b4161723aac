package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"rcaflow/internal/platform/config"
	"rcaflow/internal/platform/kafka"
	"rcaflow/internal/platform/logger"
	"rcaflow/internal/platform/postgres"
	auditpg "rcaflow/pkg/platform/audit/store/postgres"
	"rcaflow/pkg/platform/audit/stream"
)

var auditConsumeGroup string

var auditConsumeCmd = &cobra.Command{
	Use:   "audit-consume",
	Short: "Project the Kafka audit stream into Postgres",
	Long: `Consumes KAFKA_AUDIT_TOPIC as part of a consumer group and appends every
event to the audit_events table of DATABASE_URL. Offsets are committed only
after the batch is stored.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := config.FromEnv()
		if err != nil {
			return err
		}
		if len(cfg.Kafka.Brokers) == 0 || cfg.Postgres.DSN == "" {
			return fmt.Errorf("KAFKA_BROKERS and DATABASE_URL are required")
		}
		log := logger.New(cfg.Log)

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		db, err := postgres.Open(ctx, cfg.Postgres)
		if err != nil {
			return err
		}
		defer db.Close()
		if _, err := postgres.Migrate(ctx, db); err != nil {
			return err
		}

		consumer, err := kafka.NewConsumer(cfg.Kafka, auditConsumeGroup, log)
		if err != nil {
			return err
		}
		log.Info("consuming audit events", "topic", cfg.Kafka.AuditTopic, "group", auditConsumeGroup)
		return ignoreCanceled(consumer.Run(ctx, stream.NewProjector(auditpg.New(db), log)))
	},
}

func init() {
	auditConsumeCmd.Flags().StringVar(&auditConsumeGroup, "group", "rcaflow-audit-projector", "Kafka consumer group")
}
