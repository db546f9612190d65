package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"sort"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/annel0/tilegrid/internal/eventbus"
	"github.com/annel0/tilegrid/internal/sim"
)

const (
	defaultNATSURL = "nats://127.0.0.1:4222"
	timeFormat     = "2006-01-02T15:04:05Z"
	idleTimeout    = 2 * time.Second // без новых сообщений считаем стрим прочитанным
)

func main() {
	var (
		url        = flag.String("nats", defaultNATSURL, "NATS server URL")
		stream     = flag.String("stream", "TILEGRID_EVENTS", "JetStream stream name")
		command    = flag.String("cmd", "tail", "Command: tail, stats, types")
		eventTypes = flag.String("types", "", "Event types filter (comma-separated)")
		since      = flag.String("since", "1h", "Time duration since now (e.g., 1h, 30m) or RFC3339 time")
		limit      = flag.Int("limit", 100, "Maximum number of events")
		follow     = flag.Bool("follow", false, "Follow new events (like tail -f)")
	)
	flag.Parse()

	if *command == "types" {
		showTypes()
		return
	}

	startTime, err := parseSinceTime(*since, time.Now())
	if err != nil {
		log.Fatalf("❌ Invalid since time: %v", err)
	}

	bus, err := eventbus.NewJetStreamBus(*url, *stream, 0)
	if err != nil {
		log.Fatalf("❌ Failed to connect to NATS: %v", err)
	}
	defer bus.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	filter := eventbus.Filter{Types: parseStringList(*eventTypes)}

	switch *command {
	case "tail":
		if err := tailEvents(ctx, bus, filter, startTime, *limit, *follow); err != nil {
			log.Fatalf("❌ Tail failed: %v", err)
		}

	case "stats":
		if err := showStats(ctx, bus, filter, startTime); err != nil {
			log.Fatalf("❌ Stats failed: %v", err)
		}

	default:
		fmt.Printf("❌ Unknown command: %s\n", *command)
		fmt.Println("Available commands: tail, stats, types")
		os.Exit(1)
	}
}

// tailEvents выводит события стрима начиная с startTime
func tailEvents(ctx context.Context, bus *eventbus.JetStreamBus, filter eventbus.Filter, startTime time.Time, limit int, follow bool) error {
	fmt.Printf("🎬 Tailing events since %s (limit: %d, follow: %v)\n", startTime.Format(timeFormat), limit, follow)

	received := make(chan *eventbus.Envelope, 256)
	done := make(chan struct{})
	defer close(done)

	sub, err := bus.Replay(ctx, startTime, filter, func(_ context.Context, ev *eventbus.Envelope) {
		select {
		case received <- ev:
		case <-done:
		}
	})
	if err != nil {
		return err
	}
	defer sub.Unsubscribe()

	eventCount := 0
	for {
		select {
		case <-ctx.Done():
			fmt.Printf("\n📊 Total events: %d\n", eventCount)
			return nil
		case ev := <-received:
			printEvent(ev)
			eventCount++
			if !follow && eventCount >= limit {
				fmt.Printf("\n📊 Total events: %d\n", eventCount)
				return nil
			}
		case <-time.After(idleTimeout):
			if !follow {
				fmt.Printf("\n📊 Total events: %d\n", eventCount)
				return nil
			}
		}
	}
}

// showStats считает события по типам начиная с startTime
func showStats(ctx context.Context, bus *eventbus.JetStreamBus, filter eventbus.Filter, startTime time.Time) error {
	fmt.Println("📊 Event statistics")

	var mu sync.Mutex
	counts := make(map[string]int)
	total := 0
	last := time.Now()

	sub, err := bus.Replay(ctx, startTime, filter, func(_ context.Context, ev *eventbus.Envelope) {
		mu.Lock()
		counts[ev.EventType]++
		total++
		last = time.Now()
		mu.Unlock()
	})
	if err != nil {
		return err
	}
	defer sub.Unsubscribe()

	ticker := time.NewTicker(200 * time.Millisecond)
	defer ticker.Stop()
wait:
	for {
		select {
		case <-ctx.Done():
			break wait
		case <-ticker.C:
			mu.Lock()
			idle := time.Since(last) > idleTimeout
			mu.Unlock()
			if idle {
				break wait
			}
		}
	}

	mu.Lock()
	defer mu.Unlock()

	fmt.Printf("Period: %s - %s\n", startTime.Format(timeFormat), time.Now().UTC().Format(timeFormat))
	fmt.Printf("Total events: %d\n", total)
	fmt.Println("\nBy event type:")
	types := make([]string, 0, len(counts))
	for t := range counts {
		types = append(types, t)
	}
	sort.Strings(types)
	for _, t := range types {
		fmt.Printf("  %s: %d events\n", t, counts[t])
	}
	return nil
}

// showTypes выводит типы событий, которые публикует симуляция
func showTypes() {
	fmt.Println("📋 Available event types")
	for _, t := range []struct{ name, description string }{
		{eventbus.TypeObjectPlaced, "объект поставлен в слой"},
		{eventbus.TypeObjectRemoved, "объект убран из слоя"},
		{eventbus.TypeCollision, "сущность задела объект с OnCollide"},
		{eventbus.TypeMoverAdded, "сущность добавлена в мир"},
		{eventbus.TypeMoverRemoved, "сущность убрана из мира"},
		{eventbus.TypeTick, "сводка тика симуляции"},
	} {
		fmt.Printf("Type: %s\n", t.name)
		fmt.Printf("  Subject: %s\n", eventbus.Subject(t.name))
		fmt.Printf("  Description: %s\n", t.description)
	}
}

// printEvent выводит событие в читаемом формате
func printEvent(ev *eventbus.Envelope) {
	fmt.Printf("[%s] %s [%s] %s\n",
		ev.Timestamp.Format("15:04:05"),
		ev.Source,
		ev.EventType,
		ev.ID)

	// Добавляем детали в зависимости от типа события
	switch ev.EventType {
	case eventbus.TypeTick:
		var p sim.TickPayload
		if err := ev.Decode(&p); err == nil {
			fmt.Printf("  Tick: %d moved=%d contacts=%d/%d dispatches=%d %dµs\n",
				p.Tick, p.MoversMoved, p.MoverContacts, p.TileContacts, p.Dispatches, p.DurationUS)
		}
	default:
		var p sim.WorldEventPayload
		if err := ev.Decode(&p); err == nil {
			fmt.Printf("  Tick: %d Layer: %d Tile: (%d,%d) Kind: %s Mover: %s\n",
				p.Tick, p.Layer, p.Row, p.Col, p.Kind, p.MoverID)
		}
	}
}

// parseStringList парсит строку с разделителями-запятыми
func parseStringList(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}

// parseSinceTime парсит относительное время типа "1h", "30m" или абсолютное
func parseSinceTime(since string, from time.Time) (time.Time, error) {
	if since == "" {
		return from, nil
	}

	duration, err := time.ParseDuration(since)
	if err != nil {
		return time.Parse(timeFormat, since)
	}
	return from.Add(-duration), nil
}
