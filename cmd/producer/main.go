package main

import (
	"context"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/ismaiel54/limit-order-book/internal/config"
	"github.com/ismaiel54/limit-order-book/internal/logging"
	"github.com/ismaiel54/limit-order-book/internal/msg"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type resting struct {
	id    int64
	side  string
	price string
	qty   int64
	venue string
}

// generator produces a deterministic command stream that mostly refers to
// orders it has placed before, so amends and cancels hit the book
type generator struct {
	rng      *rand.Rand
	symbol   string
	tick     decimal.Decimal
	mid      int64 // ticks
	spread   int64
	nextID   int64
	live     []resting
	venues   []string
	sent     []msg.OrderCmdMsg
	badPct   int
	redelPct int
}

func main() {
	var (
		count    = flag.Int("count", 200, "Number of command messages to produce")
		dupPct   = flag.Int("dup-pct", 10, "Percentage of messages that re-send an earlier event (0-100)")
		badPct   = flag.Int("bad-pct", 5, "Percentage of commands the book should reject (0-100)")
		seed     = flag.Int64("seed", 42, "Random seed for deterministic generation")
		brokers  = flag.String("brokers", "127.0.0.1:9092", "Kafka broker addresses")
		symbol   = flag.String("symbol", "BTC-USD", "Instrument symbol")
		tickSize = flag.String("tick-size", "0.01", "Price increment")
		mid      = flag.String("mid", "100.00", "Mid price around which orders are placed")
		topic    = flag.String("topic", msg.TopicOrdersCommands, "Topic to produce to")
	)
	flag.Parse()

	logger, err := logging.NewLogger("producer", "info")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	tick, err := msg.ParseTickSize(*tickSize)
	if err != nil {
		logger.Fatal("invalid tick size", zap.Error(err))
	}
	midTicks, err := msg.PriceToTicks(*mid, tick)
	if err != nil {
		logger.Fatal("invalid mid price", zap.Error(err))
	}

	brokerList := config.SplitBrokers(*brokers)
	logger.Info("starting producer",
		zap.Int("count", *count),
		zap.Int("dup_pct", *dupPct),
		zap.Int("bad_pct", *badPct),
		zap.Int64("seed", *seed),
		zap.Strings("brokers", brokerList),
		zap.String("symbol", *symbol),
		zap.String("topic", *topic),
	)

	producer, err := msg.NewProducer(brokerList, logger)
	if err != nil {
		logger.Fatal("failed to create producer", zap.Error(err))
	}
	defer producer.Close()

	g := &generator{
		rng:      rand.New(rand.NewSource(*seed)),
		symbol:   *symbol,
		tick:     tick,
		mid:      midTicks,
		spread:   20,
		nextID:   1,
		venues:   []string{"XNAS", "ARCA", "BATS"},
		badPct:   *badPct,
		redelPct: *dupPct,
	}

	ctx := context.Background()
	produced, failed, redelivered := 0, 0, 0
	kinds := make(map[string]int)

	for i := 0; i < *count; i++ {
		cmd, redelivery := g.next()
		if redelivery {
			redelivered++
		} else {
			kinds[cmd.Command]++
		}

		if err := producer.ProduceJSON(ctx, *topic, cmd.Symbol, cmd); err != nil {
			logger.Error("failed to produce command",
				zap.String("event_id", cmd.EventID),
				zap.Int64("order_id", cmd.OrderID),
				zap.Error(err),
			)
			failed++
			continue
		}

		produced++
		logger.Debug("produced command",
			zap.String("event_id", cmd.EventID),
			zap.String("command", cmd.Command),
			zap.Int64("order_id", cmd.OrderID),
		)
	}

	logger.Info("producer completed",
		zap.Int("total", *count),
		zap.Int("produced", produced),
		zap.Int("failed", failed),
		zap.Int("redelivered", redelivered),
		zap.Int("new", kinds["NEW"]),
		zap.Int("amend", kinds["AMEND"]),
		zap.Int("cancel", kinds["CANCEL"]),
		zap.Int("resting_estimate", len(g.live)),
	)

	fmt.Printf("\n=== Producer Summary ===\n")
	fmt.Printf("Total messages: %d\n", *count)
	fmt.Printf("Produced: %d\n", produced)
	fmt.Printf("Failed: %d\n", failed)
	fmt.Printf("NEW/AMEND/CANCEL: %d/%d/%d\n", kinds["NEW"], kinds["AMEND"], kinds["CANCEL"])
	fmt.Printf("Redelivered events: %d\n", redelivered)
	fmt.Printf("Topic: %s\n", *topic)
	fmt.Printf("\n")

	if failed > 0 {
		os.Exit(1)
	}
}

// next returns the next message and whether it re-sends an earlier event
func (g *generator) next() (msg.OrderCmdMsg, bool) {
	if len(g.sent) > 0 && g.rng.Intn(100) < g.redelPct {
		return g.sent[g.rng.Intn(len(g.sent))], true
	}

	var cmd msg.OrderCmdMsg
	switch roll := g.rng.Intn(100); {
	case len(g.live) == 0 || roll < 55:
		cmd = g.newOrder()
	case roll < 80:
		cmd = g.amend()
	default:
		cmd = g.cancel()
	}

	if g.rng.Intn(100) < g.badPct {
		g.spoil(&cmd)
	}

	g.sent = append(g.sent, cmd)
	return cmd, false
}

func (g *generator) base(command string, r resting) msg.OrderCmdMsg {
	venue := r.venue
	return msg.OrderCmdMsg{
		EventID:      uuid.New().String(),
		Command:      command,
		OrderID:      r.id,
		Symbol:       g.symbol,
		Type:         "LIMIT",
		Side:         r.side,
		Price:        r.price,
		Qty:          r.qty,
		Venue:        &venue,
		TsUnixMillis: time.Now().UnixMilli(),
	}
}

func (g *generator) newOrder() msg.OrderCmdMsg {
	side, offset := "BID", -1-g.rng.Int63n(g.spread)
	if g.rng.Intn(2) == 0 {
		side, offset = "ASK", 1+g.rng.Int63n(g.spread)
	}

	r := resting{
		id:    g.nextID,
		side:  side,
		price: msg.TicksToPrice(g.mid+offset, g.tick),
		qty:   1 + g.rng.Int63n(100),
		venue: g.venues[g.rng.Intn(len(g.venues))],
	}
	g.nextID++
	g.live = append(g.live, r)
	return g.base("NEW", r)
}

func (g *generator) amend() msg.OrderCmdMsg {
	i := g.rng.Intn(len(g.live))
	g.live[i].qty = 1 + g.rng.Int63n(100)
	return g.base("AMEND", g.live[i])
}

func (g *generator) cancel() msg.OrderCmdMsg {
	i := g.rng.Intn(len(g.live))
	r := g.live[i]
	g.live = append(g.live[:i], g.live[i+1:]...)

	cmd := g.base("CANCEL", r)
	cmd.Type = ""
	cmd.Qty = 0
	cmd.Venue = nil
	return cmd
}

// spoil turns cmd into one the book rejects
func (g *generator) spoil(cmd *msg.OrderCmdMsg) {
	switch g.rng.Intn(3) {
	case 0:
		if cmd.Command == "NEW" {
			// the order never rests, so later commands on it are rejected too
			cmd.Qty = 0
			return
		}
		cmd.OrderID = g.nextID + 1_000_000
	case 1:
		price := decimal.RequireFromString(cmd.Price).Add(g.tick.Div(decimal.NewFromInt(2)))
		cmd.Price = price.String()
	default:
		cmd.Command = "REPLACE"
	}
}
