// Command bomb-prop runs the escape-room bomb: a button, a bank of wires to
// cut, a 7-segment countdown and a buzzer. Game events go to MQTT and
// finished rounds to SQLite.
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/sweeney/bomb-prop/internal/audio"
	"github.com/sweeney/bomb-prop/internal/config"
	"github.com/sweeney/bomb-prop/internal/display"
	"github.com/sweeney/bomb-prop/internal/gpio"
	"github.com/sweeney/bomb-prop/internal/logic"
	"github.com/sweeney/bomb-prop/internal/mqtt"
	"github.com/sweeney/bomb-prop/internal/status"
	"github.com/sweeney/bomb-prop/internal/store"
	"github.com/sweeney/bomb-prop/internal/web"
)

const (
	recentRounds  = 10
	recorderQueue = 16

	// At most one repeated hardware error line per interval.
	errorLogEvery = 5 * time.Second
)

func main() {
	cfg, err := config.Parse(os.Args[1:])
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if err := run(cfg); err != nil {
		log.Fatalf("fatal: %v", err)
	}
}

func run(cfg config.Config) error {
	ctx := context.Background()

	db, err := store.Open(ctx, cfg.DBPath)
	if err != nil {
		return fmt.Errorf("init store: %w", err)
	}
	defer db.Close()

	if cfg.PrintPassword {
		pw, err := db.APPassword(ctx)
		if err != nil {
			return err
		}
		fmt.Println(pw)
		return nil
	}

	// Initialize GPIO
	gpioReader, err := gpio.NewRealReader(cfg.PinButton, cfg.PinWires)
	if err != nil {
		return fmt.Errorf("init gpio: %w", err)
	}
	defer gpioReader.Close()

	// Print state mode
	if cfg.PrintState {
		s, err := gpioReader.Read()
		if err != nil {
			return fmt.Errorf("read gpio: %w", err)
		}
		fmt.Println(formatSample(s))
		return nil
	}

	pin, err := gpio.NewRealPin(cfg.PinBuzzer)
	if err != nil {
		return fmt.Errorf("init buzzer: %w", err)
	}
	buzzer := audio.NewBuzzer(pin)
	defer buzzer.Close()

	var (
		sink  display.Sink = &display.LogDisplay{}
		panel *display.HT16K33
	)
	if cfg.DisplayEnabled() {
		panel, err = display.OpenHT16K33(cfg.Display, cfg.I2CAddr)
		if err != nil {
			return fmt.Errorf("init display: %w", err)
		}
		defer panel.Close()
		sink = panel
	}
	mirror := display.NewMirror(sink)

	// Initialize MQTT
	var publisher mqtt.Publisher = mqtt.NopPublisher{}
	var mqttStatus mqtt.ConnectionStatus = mqtt.NopPublisher{}
	if cfg.BrokerEnabled() {
		p := mqtt.NewRealPublisher(cfg.Broker, cfg.ClientID)
		publisher, mqttStatus = p, p
	}
	defer publisher.Close()

	// Initialize status tracker (before STARTUP so snapshot is available)
	tracker := status.NewTracker(time.Now(), status.Config{
		PollMs:          cfg.Poll.Milliseconds(),
		SampleMs:        cfg.Sample.Milliseconds(),
		LongPressMs:     cfg.LongPress.Milliseconds(),
		HeartbeatMs:     cfg.Heartbeat.Milliseconds(),
		DefaultMinutes:  cfg.DefaultMinutes,
		Wires:           len(cfg.PinWires),
		TieBreak:        cfg.TieBreak,
		Broker:          cfg.Broker,
		HTTPAddr:        cfg.HTTPAddr,
		DisplayEndpoint: displayEndpoint(cfg),
	})
	if net := readNetworkInfo(); net != nil {
		tracker.SetNetwork(net)
	}
	if recent, err := db.RecentRounds(ctx, recentRounds); err != nil {
		log.Printf("load recent rounds: %v", err)
	} else {
		tracker.SetRecent(summaries(recent))
	}

	recorder := store.NewRecorder(db, recorderQueue, recentRounds, func(recent []store.Round) {
		tracker.SetRecent(summaries(recent))
	})
	defer recorder.Close()

	// Publish startup event with full status snapshot
	snap := tracker.Snapshot()
	startupEvent := mqtt.SystemEvent{
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
	if cfg.HTTPAddr != "" && cfg.HTTPAddr != config.Off {
		srv := web.New(cfg.HTTPAddr, tracker)
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Printf("http server error: %v", err)
			}
		}()
		defer srv.Shutdown(context.Background())
		log.Printf("http status server listening on %s", cfg.HTTPAddr)
	}

	log.Printf("started: poll=%v sample=%v long_press=%v wires=%d broker=%s heartbeat=%v",
		cfg.Poll, cfg.Sample, cfg.LongPress, len(cfg.PinWires), cfg.Broker, cfg.Heartbeat)

	game := logic.NewGame(cfg.GameConfig(), mirror, buzzer, logic.NewSeededRand(), time.Now(),
		logic.WithRoundIDs(uuid.NewString))

	ticker := time.NewTicker(cfg.Poll)
	defer ticker.Stop()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	l := &loop{
		reader:     gpioReader,
		game:       game,
		buzzer:     buzzer,
		mirror:     mirror,
		publisher:  publisher,
		mqttStatus: mqttStatus,
		tracker:    tracker,
		recorder:   recorder,
		heartbeat:  cfg.Heartbeat,
		now:        time.Now,
	}
	if panel != nil {
		l.panel = panel
	}
	return l.run(ticker.C, sigCh)
}

// roundRecorder is the part of store.Recorder the loop uses.
type roundRecorder interface {
	Record(store.Round) bool
}

// loop owns every component advanced on a tick. Everything it calls returns
// immediately; slow work (MQTT acks, SQLite writes) happens on other goroutines.
type loop struct {
	reader     gpio.Reader
	game       *logic.Game
	buzzer     *audio.Buzzer
	mirror     *display.Mirror
	panel      interface{ Err() error } // nil when the display only logs
	publisher  mqtt.Publisher
	mqttStatus mqtt.ConnectionStatus
	tracker    *status.Tracker
	recorder   roundRecorder
	heartbeat  time.Duration
	now        func() time.Time

	gpioErrLog  *rate.Limiter
	audioErrLog *rate.Limiter
	panelErr    error
	lastSample  gpio.Sample
}

func (l *loop) run(tick <-chan time.Time, sig <-chan os.Signal) error {
	l.gpioErrLog = rate.NewLimiter(rate.Every(errorLogEvery), 1)
	l.audioErrLog = rate.NewLimiter(rate.Every(errorLogEvery), 1)

	for {
		select {
		case s := <-sig:
			l.shutdown(s)
			return nil

		case <-tick:
			l.step(l.now())
		}
	}
}

func (l *loop) shutdown(s os.Signal) {
	log.Printf("received %v, shutting down", s)
	signalName := "UNKNOWN"
	if s == syscall.SIGINT {
		signalName = "SIGINT"
	} else if s == syscall.SIGTERM {
		signalName = "SIGTERM"
	}
	event := mqtt.SystemEvent{
		Timestamp: l.now(),
		Event:     "SHUTDOWN",
		Reason:    signalName,
		Retained:  true,
	}
	if l.tracker != nil {
		if l.mqttStatus != nil {
			l.tracker.SetMQTTConnected(l.mqttStatus.IsConnected())
		}
		snap := l.tracker.Snapshot()
		event.RawPayload = status.FormatStatusEvent(snap, "SHUTDOWN", signalName)
	}
	if err := l.publisher.PublishSystem(event); err != nil {
		log.Printf("failed to publish shutdown event: %v", err)
	} else {
		log.Printf("published shutdown event")
	}
}

// step runs one scheduler iteration with a single timestamp.
func (l *loop) step(t time.Time) {
	sample, err := l.reader.Read()
	if err != nil {
		if l.gpioErrLog.AllowN(t, 1) {
			log.Printf("gpio read error: %v", err)
		}
		// Keep the clock and buzzer running on the last good levels.
		sample = l.lastSample
	} else {
		l.lastSample = sample
	}
	if sample.Wires == nil {
		// No good read yet: every wire intact.
		sample.Wires = make([]bool, len(l.game.Status().WiresCut))
	}

	events := l.game.Tick(logic.Input{
		Button: sample.Button,
		Wires:  sample.Wires,
		Time:   t,
	})

	if l.buzzer != nil {
		if err := l.buzzer.Advance(t); err != nil && l.audioErrLog.AllowN(t, 1) {
			log.Printf("audio error: %v", err)
		}
	}
	if l.panel != nil {
		err := l.panel.Err()
		if err != nil && l.panelErr == nil {
			log.Printf("display error: %v", err)
		}
		l.panelErr = err
	}

	for _, event := range events {
		logEvent(event)
		if err := l.publisher.Publish(event); err != nil {
			log.Printf("publish error: %v", err)
			// Don't crash on publish failure
		}
		if event.Type == logic.EventRoundWon || event.Type == logic.EventRoundLost {
			l.record(event)
		}
	}

	// Check for heartbeat
	if hbData := l.game.CheckHeartbeat(t, l.heartbeat); hbData != nil {
		log.Printf("heartbeat: uptime=%v armed=%d won=%d lost=%d",
			hbData.Uptime, hbData.Counts.Armed, hbData.Counts.Won, hbData.Counts.Lost)

		hbEvent := mqtt.SystemEvent{
			Timestamp: hbData.Timestamp,
			Event:     "HEARTBEAT",
		}
		if l.tracker != nil {
			if l.mqttStatus != nil {
				l.tracker.SetMQTTConnected(l.mqttStatus.IsConnected())
			}
			// Refresh network info for heartbeat
			if net := readNetworkInfo(); net != nil {
				l.tracker.SetNetwork(net)
			}
			l.updateTracker(t)
			snap := l.tracker.Snapshot()
			hbEvent.RawPayload = status.FormatStatusEvent(snap, "HEARTBEAT", "")
		}
		if err := l.publisher.PublishSystem(hbEvent); err != nil {
			log.Printf("heartbeat publish error: %v", err)
		}
	}

	// Update status tracker for HTTP consumers
	if l.tracker != nil {
		l.updateTracker(t)
		if l.mqttStatus != nil {
			l.tracker.SetMQTTConnected(l.mqttStatus.IsConnected())
		}
	}
}

func (l *loop) updateTracker(t time.Time) {
	var shown, playing string
	if l.mirror != nil {
		shown = l.mirror.Text()
		l.tracker.SetDisplayBlink(l.mirror.Blinking())
	}
	if l.buzzer != nil {
		playing = l.buzzer.Playing(t)
	}
	l.tracker.Update(l.game.Status(), l.game.Counts(), shown, playing)
}

func (l *loop) record(event logic.Event) {
	if l.recorder == nil {
		return
	}
	outcome := "WON"
	if event.Type == logic.EventRoundLost {
		outcome = "LOST"
	}
	l.recorder.Record(store.Round{
		ID:          event.RoundID,
		Game:        event.Game,
		Minutes:     event.Minutes,
		Outcome:     outcome,
		Cuts:        event.Cuts,
		Mistakes:    event.Mistakes,
		DisplayCode: event.DisplayCode,
		StartedAt:   event.RoundStarted,
		EndedAt:     event.Timestamp,
	})
}

func logEvent(e logic.Event) {
	switch e.Type {
	case logic.EventWireCut:
		log.Printf("event: %s channel=%d slot=%d correct=%v cuts=%d mistakes=%d",
			e.Type, e.Channel, e.Slot+1, e.Correct, e.Cuts, e.Mistakes)
	case logic.EventRoundArmed:
		log.Printf("event: %s round=%s game=%d minutes=%d code=%s",
			e.Type, e.RoundID, e.Game, e.Minutes, e.DisplayCode)
	case logic.EventRoundWon, logic.EventRoundLost:
		log.Printf("event: %s round=%s cuts=%d mistakes=%d remaining=%s",
			e.Type, e.RoundID, e.Cuts, e.Mistakes, status.FormatRemaining(e.RemainingSeconds))
	default:
		log.Printf("event: %s (state=%s)", e.Type, e.State)
	}
}

func summaries(rounds []store.Round) []status.RoundSummary {
	out := make([]status.RoundSummary, len(rounds))
	for i, r := range rounds {
		out[i] = status.RoundSummary{
			ID:          r.ID,
			Game:        r.Game,
			Minutes:     r.Minutes,
			Outcome:     r.Outcome,
			Cuts:        r.Cuts,
			Mistakes:    r.Mistakes,
			DisplayCode: r.DisplayCode,
			StartedAt:   r.StartedAt,
			EndedAt:     r.EndedAt,
		}
	}
	return out
}

func displayEndpoint(cfg config.Config) string {
	if !cfg.DisplayEnabled() {
		return config.Off
	}
	bus := cfg.Display
	if bus == "" {
		bus = "i2c"
	}
	return fmt.Sprintf("%s@0x%02x", bus, cfg.I2CAddr)
}

// formatSample renders raw input levels for -print-state.
func formatSample(s gpio.Sample) string {
	var b strings.Builder
	fmt.Fprintf(&b, "BUTTON: %s", levelString(s.Button, "DOWN", "UP"))
	for i, cut := range s.Wires {
		fmt.Fprintf(&b, ", W%d: %s", i+1, levelString(cut, "CUT", "INTACT"))
	}
	return b.String()
}

func levelString(on bool, yes, no string) string {
	if on {
		return yes
	}
	return no
}

// pi-helper env var names (written to /run/pi-helper.env).
const (
	envNetworkType       = "NETWORK_TYPE"
	envNetworkIP         = "NETWORK_IP"
	envNetworkStatus     = "NETWORK_STATUS"
	envNetworkGateway    = "NETWORK_GATEWAY"
	envNetworkWifiStatus = "NETWORK_WIFI_STATUS"
	envNetworkWifiSSID   = "NETWORK_WIFI_SSID"
)

func readNetworkInfo() *status.NetworkInfo {
	s := os.Getenv(envNetworkStatus)
	if s == "" {
		return nil
	}
	return &status.NetworkInfo{
		Type:       os.Getenv(envNetworkType),
		IP:         os.Getenv(envNetworkIP),
		Status:     s,
		Gateway:    os.Getenv(envNetworkGateway),
		WifiStatus: os.Getenv(envNetworkWifiStatus),
		SSID:       os.Getenv(envNetworkWifiSSID),
	}
}
