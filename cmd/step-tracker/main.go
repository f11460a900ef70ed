// Command step-tracker keeps the step-counter source alive, persists
// daily progress and publishes notification state over MQTT.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sweeney/step-tracker/internal/logic"
	"github.com/sweeney/step-tracker/internal/notify"
	"github.com/sweeney/step-tracker/internal/sensor"
	"github.com/sweeney/step-tracker/internal/status"
	"github.com/sweeney/step-tracker/internal/store"
	"github.com/sweeney/step-tracker/internal/web"
)

// restartDelay is how long the watchdog waits before requesting a fresh
// sensor subscription after the listening task terminated.
const restartDelay = 500 * time.Millisecond

func main() {
	broker := flag.String("broker", "tcp://192.168.1.200:1883", "MQTT broker address")
	dbPath := flag.String("db", "/var/lib/step-tracker/steps.db", "SQLite database path")
	goal := flag.Int64("goal", 10000, "Daily step goal")
	batchDelay := flag.Duration("batch-delay", sensor.DefaultBatchDelay, "Maximum sensor batching delay")
	pin := flag.Int("pin", sensor.DefaultPin, "BCM pin number of the step pulse line")
	httpAddr := flag.String("http", ":80", "HTTP status address (empty to disable)")
	printToday := flag.Bool("print-today", false, "Print today's step count and exit")

	flag.Parse()

	if err := run(*broker, *dbPath, *goal, *batchDelay, *pin, *httpAddr, *printToday); err != nil {
		log.Fatalf("fatal: %v", err)
	}
}

func run(broker, dbPath string, goal int64, batchDelay time.Duration, pin int, httpAddr string, printToday bool) error {
	st, err := store.OpenSQLite(dbPath)
	if err != nil {
		return fmt.Errorf("init store: %w", err)
	}
	defer st.Close()

	// Print mode
	if printToday {
		today, err := todaySteps(st, time.Now())
		if err != nil {
			return err
		}
		fmt.Printf("%s: %d steps\n", logic.DayKey(time.Now()), today)
		return nil
	}

	// Initialize MQTT: outbound notifications plus the inbound command topic
	commands := make(chan notify.Command, 4)
	publisher, err := notify.NewRealPublisher(broker, commands)
	if err != nil {
		return fmt.Errorf("init mqtt: %w", err)
	}
	defer publisher.Close()

	tracker := logic.NewTracker(st, goal)

	// Initialize status tracker (before STARTUP so snapshot is available)
	stat := status.NewTracker(time.Now(), status.Config{
		Broker:       broker,
		HTTPAddr:     httpAddr,
		DBPath:       dbPath,
		Goal:         goal,
		BatchDelayMs: batchDelay.Milliseconds(),
		Pin:          pin,
	})
	stat.Apply(tracker.Snapshot(time.Now()))
	stat.SetMQTTConnected(publisher.IsConnected())

	// Last persisted scratch value, used for counter-reset detection.
	lastSaved, err := st.GetCurrentSteps()
	if err != nil {
		return fmt.Errorf("read current steps: %w", err)
	}

	// Initialize the step source. Missing hardware is surfaced once here;
	// the daemon keeps running and degrades to "no data yet".
	readings := make(chan float64, 16)
	var sensorDone <-chan error
	resubscribe := func() error { return sensor.ErrUnavailable }

	src, err := sensor.NewRealSource(pin)
	if err != nil {
		log.Printf("step sensor unavailable: %v", err)
	} else {
		defer func() {
			if err := src.Close(); err != nil {
				log.Printf("close sensor: %v", err)
			}
		}()
		sensorDone = src.Done()
		resubscribe = func() error {
			return src.Subscribe(func(total float64) {
				readings <- total
			}, batchDelay)
		}
		if err := resubscribe(); err != nil {
			return fmt.Errorf("subscribe sensor: %w", err)
		}
	}

	// Publish startup event with full status snapshot
	snap := stat.Snapshot()
	startupEvent := notify.SystemEvent{
		Timestamp:  snap.Now,
		Event:      "STARTUP",
		Retained:   true,
		RawPayload: status.FormatStatusEvent(snap, "STARTUP", ""),
	}
	if err := publisher.PublishSystem(startupEvent); err != nil {
		log.Printf("failed to publish startup event: %v", err)
	} else {
		log.Printf("published startup event")
	}

	// Start HTTP status server
	if httpAddr != "" {
		srv := web.New(httpAddr, stat)
		go func() {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Printf("http server error: %v", err)
			}
		}()
		defer srv.Shutdown(context.Background())
		log.Printf("http status server listening on %s", httpAddr)
	}

	log.Printf("started: broker=%s db=%s goal=%d batch-delay=%v pin=%d", broker, dbPath, goal, batchDelay, pin)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	restart := make(chan struct{}, 1)
	scheduleRestart := func(after time.Duration) {
		time.AfterFunc(after, func() {
			select {
			case restart <- struct{}{}:
			default:
			}
		})
	}

	return runLoop(tracker, stat, publisher, publisher, readings, commands,
		sensorDone, restart, resubscribe, scheduleRestart, lastSaved, time.Now, sigCh)
}

func runLoop(
	tracker *logic.Tracker,
	stat *status.Tracker,
	pub notify.Publisher,
	conn notify.ConnectionStatus,
	readings <-chan float64,
	commands <-chan notify.Command,
	sensorDone <-chan error,
	restart <-chan struct{},
	resubscribe func() error,
	scheduleRestart func(time.Duration),
	lastSavedSteps int64,
	now func() time.Time,
	sig <-chan os.Signal,
) error {
	firstAccepted := true

	for {
		select {
		case s := <-sig:
			log.Printf("received %v, shutting down", s)
			signalName := "UNKNOWN"
			if s == syscall.SIGINT {
				signalName = "SIGINT"
			} else if s == syscall.SIGTERM {
				signalName = "SIGTERM"
			}
			snap := stat.Snapshot()
			event := notify.SystemEvent{
				Timestamp:  now(),
				Event:      "SHUTDOWN",
				Reason:     signalName,
				Retained:   true,
				RawPayload: status.FormatStatusEvent(snap, "SHUTDOWN", signalName),
			}
			if err := pub.PublishSystem(event); err != nil {
				log.Printf("failed to publish shutdown event: %v", err)
			} else {
				log.Printf("published shutdown event")
			}
			return nil

		case raw := <-readings:
			t := now()
			if firstAccepted {
				if v, ok := logic.ValidateReading(raw); ok {
					firstAccepted = false
					if v < lastSavedSteps {
						log.Printf("counter reset detected: reading %d below persisted %d (reboot?)", v, lastSavedSteps)
					}
				}
			}

			update, persisted, err := tracker.HandleReading(raw, t)
			if err != nil {
				// Persist marks were not advanced; the next reading retries.
				log.Printf("persist error: %v", err)
			}
			if persisted {
				renderAndRefresh(pub, update, t)
			}
			syncStatus(tracker, stat, conn, t)

		case cmd := <-commands:
			t := now()
			log.Printf("command: %s", cmd)
			switch cmd {
			case notify.CommandPause:
				update, err := tracker.TogglePause(t)
				if err != nil {
					log.Printf("pause toggle error: %v", err)
					break
				}
				if err := pub.Render(update, t); err != nil {
					log.Printf("render error: %v", err)
				}

			case notify.CommandForceUpdate:
				update, persisted, err := tracker.ForceUpdate(t)
				if err != nil {
					log.Printf("force update error: %v", err)
				}
				if persisted {
					renderAndRefresh(pub, update, t)
				}

			case notify.CommandUpdateNotification:
				if err := pub.Render(tracker.Progress(t), t); err != nil {
					log.Printf("render error: %v", err)
				}
			}
			// Any external command arms an early persist, so the next
			// reading refreshes durable state promptly.
			tracker.MarkStale()
			syncStatus(tracker, stat, conn, t)

		case err := <-sensorDone:
			log.Printf("sensor delivery terminated: %v, restart in %v", err, restartDelay)
			scheduleRestart(restartDelay)

		case <-restart:
			if err := resubscribe(); err != nil {
				log.Printf("sensor resubscribe failed: %v, retry in %v", err, restartDelay)
				scheduleRestart(restartDelay)
				continue
			}
			log.Printf("sensor monitoring resumed")
		}
	}
}

/// renderAndRefresh completes a persist-and-notify cycle: render the
// notification, then fire the widget refresh.
func renderAndRefresh(pub notify.Publisher, u logic.Update, t time.Time) {
	if err := pub.Render(u, t); err != nil {
		log.Printf("render error: %v", err)
	}
	if err := pub.RequestRefresh(t); err != nil {
		log.Printf("widget refresh error: %v", err)
	}
}

func syncStatus(tracker *logic.Tracker, stat *status.Tracker, conn notify.ConnectionStatus, t time.Time) {
	stat.Apply(tracker.Snapshot(t))
	if conn != nil {
		stat.SetMQTTConnected(conn.IsConnected())
	}
}

// todaySteps computes the user-visible count for --print-today.
func todaySteps(st *store.SQLite, t time.Time) (int64, error) {
	total, err := st.GetCurrentSteps()
	if err != nil {
		return 0, fmt.Errorf("read current steps: %w", err)
	}
	if total == 0 {
		return 0, nil
	}
	offset, err := st.GetSteps(logic.DayKey(t))
	if errors.Is(err, logic.ErrNoEntry) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read today: %w", err)
	}
	return offset + total, nil
}
