// Package main is a demo and soak driver for the event coordination core.
// It floods a dedicated dispatch worker from several producer goroutines,
// runs the cooperative close protocol and dumps the pump statistics.
package main

import (
	"context"
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/dshills/eventcore/event"
)

// Version information (set via ldflags during build).
var (
	version = "dev"
	commit  = "unknown"
)

// tick is the demo payload event.
type tick struct {
	event.BaseEvent
	Producer int
	Seq      int
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		producers int
		events    int
		vetoes    int
		verbose   bool
	)

	cmd := &cobra.Command{
		Use:     "eventcore",
		Short:   "Soak the event pump with concurrent producers",
		Version: fmt.Sprintf("%s (%s)", version, commit),
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(producers, events, vetoes, verbose)
		},
	}

	cmd.Flags().IntVarP(&producers, "producers", "p", 4, "concurrent producer goroutines")
	cmd.Flags().IntVarP(&events, "events", "n", 1000, "events per producer")
	cmd.Flags().IntVar(&vetoes, "vetoes", 1, "close requests to veto before allowing shutdown")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	return cmd
}

func run(producers, events, vetoes int, verbose bool) error {
	logger, err := newLogger(verbose)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	worker := event.NewWorker(event.WithLogger(logger))

	// Count every tick that reaches a handler.
	var handled atomic.Int64
	if _, err := event.SubscribeFunc(worker,
		func(_ context.Context, _ *tick) error {
			handled.Add(1)
			return nil
		}); err != nil {
		return err
	}

	// Veto the first few close requests to exercise the protocol.
	var vetoed atomic.Int64
	if _, err := event.SubscribeFunc(worker,
		func(_ context.Context, evt *event.CloseRequest) error {
			if vetoed.Add(1) <= int64(vetoes) {
				evt.CanBeginClose = false
				logger.Info("vetoed close request",
					zap.Stringer("requested_at", evt.Source()))
			}
			return nil
		}); err != nil {
		return err
	}

	if _, err := event.SubscribeFunc(worker, event.LogUnhandled(logger)); err != nil {
		return err
	}

	if err := worker.Start(); err != nil {
		return err
	}

	start := time.Now()

	var wg sync.WaitGroup
	for p := 0; p < producers; p++ {
		wg.Add(1)
		go func(producer int) {
			defer wg.Done()
			for seq := 0; seq < events; seq++ {
				if err := worker.Enqueue(&tick{Producer: producer, Seq: seq}); err != nil {
					logger.Warn("enqueue failed", zap.Error(err))
					return
				}
			}
		}(p)
	}
	wg.Wait()

	// Keep requesting shutdown until the vetoes are used up, then wait
	// for the Closing/Closed pair to drain.
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	for i := 0; i <= vetoes; i++ {
		if err := worker.EnqueueAndWait(ctx, event.NewCloseRequest()); err != nil {
			return err
		}
	}
	if err := worker.WaitForClosed(ctx); err != nil {
		return err
	}

	stats := worker.Stats()
	fmt.Printf("handled %d/%d ticks from %d producers in %s\n",
		handled.Load(), producers*events, producers, time.Since(start).Round(time.Millisecond))
	fmt.Printf("enqueued=%d dispatched=%d dropped=%d purged=%d\n",
		stats.Enqueued, stats.Dispatched, stats.Dropped, stats.Purged)
	fmt.Printf("handlers=%d errors=%d panics=%d avg=%s max_depth=%d\n",
		stats.HandlersInvoked, stats.HandlerErrors, stats.HandlerPanics,
		stats.AvgDispatchTime, stats.MaxQueueDepth)

	return nil
}

func newLogger(verbose bool) (*zap.Logger, error) {
	if verbose {
		return zap.NewDevelopment()
	}
	cfg := zap.NewProductionConfig()
	cfg.OutputPaths = []string{"stderr"}
	return cfg.Build()
}
