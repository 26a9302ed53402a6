package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/ismaiel54/limit-order-book/internal/config"
	"github.com/ismaiel54/limit-order-book/internal/logging"
	"github.com/ismaiel54/limit-order-book/internal/msg"
	"go.uber.org/zap"
)

func main() {
	var (
		duration = flag.Duration("duration", 30*time.Second, "How long to consume before reporting")
		brokers  = flag.String("brokers", "127.0.0.1:9092", "Kafka broker addresses")
		group    = flag.String("group", "", "Consumer group (defaults to a fresh group per run)")
	)
	flag.Parse()

	logger, err := logging.NewLogger("verifier", "info")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	if *group == "" {
		*group = fmt.Sprintf("verifier-%d", time.Now().UnixNano())
	}

	brokerList := config.SplitBrokers(*brokers)
	logger.Info("starting verifier",
		zap.Duration("duration", *duration),
		zap.Strings("brokers", brokerList),
		zap.String("group", *group),
	)

	consumer, err := msg.NewConsumer(brokerList, *group, []string{msg.TopicOrdersEvents, msg.TopicBookTop}, logger)
	if err != nil {
		logger.Fatal("failed to create consumer", zap.Error(err))
	}
	defer consumer.Close()

	ctx, cancel := context.WithTimeout(context.Background(), *duration)
	defer cancel()

	c := newChecker()
	err = consumer.Run(ctx, func(ctx context.Context, rec msg.Record) error {
		c.handle(rec)
		return nil
	})
	if err != nil && !errors.Is(err, context.DeadlineExceeded) {
		logger.Error("consumer error", zap.Error(err))
	}

	fmt.Println("\n=== Verification Results ===")
	fmt.Printf("orders.events consumed: %d (restarts: %d)\n", c.orders.events, c.orders.restarts)
	fmt.Printf("book.top consumed: %d (restarts: %d)\n", c.top.events, c.top.restarts)
	fmt.Printf("Accepted/Rejected: %d/%d\n", c.statuses[msg.StatusAccepted], c.statuses[msg.StatusRejected])
	fmt.Printf("Undecodable records: %d\n", c.undecodable)

	report("Sequence gaps in orders.events", c.orders.gaps)
	report("Sequence gaps in book.top", c.top.gaps)
	report("Duplicate event ids", c.duplicateEvents)
	report("Commands applied more than once", c.reappliedCommands)
	report("REJECTED events without a reason", c.missingReasons)

	if c.failed() {
		fmt.Println("\n❌ VERIFICATION FAILED")
		os.Exit(1)
	}
	fmt.Println("\n✅ VERIFICATION PASSED")
}

func report(title string, items []string) {
	fmt.Printf("%s: %d\n", title, len(items))
	for _, item := range items {
		fmt.Printf("  %s\n", item)
	}
}
