package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/example/gym-booking-assistant/internal/booker"
	"github.com/example/gym-booking-assistant/internal/events"
	"github.com/example/gym-booking-assistant/internal/gymapi"
	"github.com/example/gym-booking-assistant/internal/gymtime"
	"github.com/example/gym-booking-assistant/internal/scanner"
	"github.com/example/gym-booking-assistant/internal/schedule"
	"github.com/example/gym-booking-assistant/internal/userstore"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the periodic scanner and the booking consumer until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := setup()
			if err != nil {
				return err
			}
			defer func() { _ = log.Sync() }()
			if err := cfg.ValidateAPI(); err != nil {
				return err
			}
			crit, err := cfg.Criteria()
			if err != nil {
				return err
			}
			cal, err := gymtime.NewCalendar(cfg.Timezone)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			source, store, cleanup, err := credsSource(ctx, cfg)
			if err != nil {
				return err
			}
			defer cleanup()

			pub, err := events.NewBusPublisher(cfg.AMQPURL, cfg.EventExchange)
			if err != nil {
				return err
			}
			defer func() { _ = pub.Close() }()
			reg := schedule.NewInProcess(pub, log)
			defer reg.Stop()

			api := gymapi.New(cfg.GymAPI(), log)
			sc := &scanner.Scanner{
				API:        api,
				Criteria:   crit,
				Calendar:   cal,
				Publisher:  pub,
				Registrar:  reg,
				Creds:      source,
				FacilityID: cfg.FacilityID,
				Log:        log,
			}
			bk := &booker.Booker{
				API:          api,
				Calendar:     cal,
				Publisher:    pub,
				Creds:        source,
				Log:          log,
				RequireAlias: cfg.MultiUser(),
			}

			consumer, err := events.NewBusConsumer(cfg.AMQPURL, cfg.EventExchange, cfg.BookQueue,
				[]string{events.RoutingKey(events.TypeClassBookingAvailable)})
			if err != nil {
				return err
			}
			defer func() { _ = consumer.Close() }()
			deliveries, err := consumer.Deliveries(ctx)
			if err != nil {
				return err
			}
			go consume(ctx, log, bk, deliveries)

			cr := cron.New()
			if _, err := cr.AddFunc(cfg.ScanCron, func() { runScan(ctx, log, sc, store) }); err != nil {
				return fmt.Errorf("invalid SCAN_CRON %q: %w", cfg.ScanCron, err)
			}
			cr.Start()
			log.Info("gym booking assistant running",
				zap.String("scanCron", cfg.ScanCron),
				zap.String("queue", cfg.BookQueue),
				zap.Bool("multiUser", cfg.MultiUser()),
			)

			<-ctx.Done()
			<-cr.Stop().Done()
			log.Info("shut down")
			return nil
		},
	}
}

// consume drains booking-available deliveries. Every delivery is acked
// exactly once: the handler either reached a terminal outcome (already
// published) or hit a contract error that a redelivery cannot fix, and
// re-driving the booking call against the gym API is worse than dropping.
func consume(ctx context.Context, log *zap.Logger, bk *booker.Booker, deliveries <-chan events.Delivery) {
	for d := range deliveries {
		var entry events.Entry
		if err := json.Unmarshal(d.Body, &entry); err != nil {
			log.Error("dropping undecodable event", zap.String("messageId", d.MessageId), zap.Error(err))
			_ = d.Ack(false)
			continue
		}
		if err := bk.Handle(ctx, entry); err != nil {
			log.Error("booking handler failed", zap.String("eventId", entry.ID), zap.Error(err))
		}
		_ = d.Ack(false)
	}
}

// runScan executes one scheduled pass. Multi-user deployments scan once per
// registered alias; a failing alias does not block the others.
func runScan(ctx context.Context, log *zap.Logger, sc *scanner.Scanner, store *userstore.Store) {
	if store == nil {
		if err := sc.Run(ctx, scanner.Trigger{}); err != nil {
			log.Error("scan pass failed", zap.Error(err))
		}
		return
	}
	users, err := store.List(ctx)
	if err != nil {
		log.Error("listing users for scan failed", zap.Error(err))
		return
	}
	for _, u := range users {
		if err := sc.Run(ctx, scanner.Trigger{UserAlias: u.Alias}); err != nil {
			log.Error("scan pass failed", zap.String("alias", u.Alias), zap.Error(err))
		}
	}
}
