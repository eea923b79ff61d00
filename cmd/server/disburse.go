package main

import (
	"errors"
	"fmt"
	"time"

	"go-hospitality/internal/disbursement"
	"go-hospitality/internal/models"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	disburseProperty string
	disburseTenant   string
	disburseDate     string
	disburseAll      bool
)

// disburseCmd is the daily payout run, meant for cron.
func disburseCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "disburse",
		Short: "Pay out collected card funds for one day",
		Long: `Aggregate the day's collected fund flows and send each property's net
amount to its bank account through RealPay.

Examples:
  go-hospitality disburse --tenant <uuid> --property <uuid> --date 2026-10-14
  go-hospitality disburse --all-properties
  go-hospitality disburse --all-properties --tenant <uuid>`,
		RunE: runDisburse,
	}

	cmd.Flags().StringVar(&disburseProperty, "property", "", "property to pay out")
	cmd.Flags().StringVar(&disburseTenant, "tenant", "", "tenant owning the property")
	cmd.Flags().StringVar(&disburseDate, "date", "", "day to pay out, YYYY-MM-DD (default yesterday, UTC)")
	cmd.Flags().BoolVar(&disburseAll, "all-properties", false, "pay out every property, or every property of --tenant")

	return cmd
}

func runDisburse(cmd *cobra.Command, args []string) error {
	day := disbursement.Day(time.Now().UTC().AddDate(0, 0, -1))
	if disburseDate != "" {
		d, err := time.Parse("2006-01-02", disburseDate)
		if err != nil {
			return fmt.Errorf("invalid --date: %w", err)
		}
		day = d
	}

	var tenantID *uuid.UUID
	if disburseTenant != "" {
		id, err := uuid.Parse(disburseTenant)
		if err != nil {
			return fmt.Errorf("invalid --tenant: %w", err)
		}
		tenantID = &id
	}
	if !disburseAll && (tenantID == nil || disburseProperty == "") {
		return errors.New("specify --tenant and --property, or --all-properties")
	}

	a, err := bootstrap()
	if err != nil {
		return err
	}
	defer a.close()
	proc := a.processor()

	if disburseAll {
		rows, err := proc.ProcessAll(cmd.Context(), tenantID, day)
		for i := range rows {
			logRow(a.log, &rows[i])
		}
		return err
	}

	propertyID, err := uuid.Parse(disburseProperty)
	if err != nil {
		return fmt.Errorf("invalid --property: %w", err)
	}
	row, err := proc.Process(cmd.Context(), *tenantID, propertyID, day)
	if row != nil {
		logRow(a.log, row)
	}
	return err
}

func logRow(log *zap.Logger, row *models.DailyDisbursement) {
	fields := []zap.Field{
		zap.String("property_id", row.PropertyID.String()),
		zap.String("date", row.DisbursementDate.Format("2006-01-02")),
		zap.String("status", row.Status),
		zap.Int("transactions", row.TransactionCount),
		zap.String("net_amount", row.NetPropertyAmount.String()),
	}
	if row.ErrorMessage != nil {
		fields = append(fields, zap.String("error", *row.ErrorMessage))
	}
	log.Info("disbursement", fields...)
}
