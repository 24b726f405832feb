package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/example/gym-booking-assistant/internal/events"
	"github.com/example/gym-booking-assistant/internal/gymapi"
	"github.com/example/gym-booking-assistant/internal/gymtime"
	"github.com/example/gym-booking-assistant/internal/scanner"
	"github.com/example/gym-booking-assistant/internal/schedule"
)

func newScanCmd() *cobra.Command {
	var alias string
	var wait bool

	c := &cobra.Command{
		Use:   "scan",
		Short: "Run one scan pass over the facility's upcoming classes",
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

			ctx := cmd.Context()
			source, _, cleanup, err := credsSource(ctx, cfg)
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

			s := &scanner.Scanner{
				API:        gymapi.New(cfg.GymAPI(), log),
				Criteria:   crit,
				Calendar:   cal,
				Publisher:  pub,
				Registrar:  reg,
				Creds:      source,
				FacilityID: cfg.FacilityID,
				Log:        log,
			}
			if err := s.Run(ctx, scanner.Trigger{UserAlias: alias}); err != nil {
				return err
			}

			// Triggers registered by this pass live in this process; without
			// --wait they are cancelled when the command exits.
			if active := reg.Active(); len(active) > 0 {
				if !wait {
					return fmt.Errorf("%d booking schedules registered; re-run with --wait or keep a serve process running", len(active))
				}
				log.Info("waiting for booking schedules to fire", zap.Strings("schedules", active))
				for len(reg.Active()) > 0 {
					select {
					case <-ctx.Done():
						return ctx.Err()
					case <-time.After(time.Second):
					}
				}
			}
			return nil
		},
	}

	c.Flags().StringVar(&alias, "user", "", "user alias to scan for (multi-user deployments)")
	c.Flags().BoolVar(&wait, "wait", false, "stay alive until registered booking schedules fire")
	return c
}
