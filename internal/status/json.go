package status

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/sweeney/bomb-prop/internal/logic"
)

// StatusJSON is the top-level JSON envelope for status output.
type StatusJSON struct {
	Status StatusInner `json:"status"`
}

// StatusInner contains the status details.
type StatusInner struct {
	Event         string             `json:"event,omitempty"`
	Reason        string             `json:"reason,omitempty"`
	Round         RoundJSON          `json:"round"`
	Display       string             `json:"display"`
	DisplayBlink  bool               `json:"display_blink"`
	Audio         string             `json:"audio"`
	UptimeSeconds int64              `json:"uptime_seconds"`
	StartTime     string             `json:"start_time"`
	Timestamp     string             `json:"timestamp"`
	MQTT          MQTTStatus         `json:"mqtt"`
	Counts        CountsJSON         `json:"round_counts"`
	Recent        []RoundSummaryJSON `json:"recent_rounds,omitempty"`
	Network       *NetworkJSON       `json:"network,omitempty"`
	Config        ConfigJSON         `json:"config"`
}

// RoundJSON is the JSON representation of the current round.
type RoundJSON struct {
	State            string     `json:"state"`
	Game             int        `json:"game"`
	Variant          string     `json:"variant"`
	Minutes          int        `json:"minutes"`
	ID               string     `json:"id,omitempty"`
	RemainingSeconds int        `json:"remaining_seconds"`
	Remaining        string     `json:"remaining"`
	Cuts             int        `json:"cuts"`
	Mistakes         int        `json:"mistakes"`
	DisplayCode      string     `json:"display_code,omitempty"`
	ButtonDown       bool       `json:"button_down"`
	Wires            []WireJSON `json:"wires"`
}

// WireJSON reports one channel and the slot it was filed in (0 = not filed).
type WireJSON struct {
	Channel int  `json:"channel"`
	Cut     bool `json:"cut"`
	Slot    int  `json:"slot,omitempty"`
}

// MQTTStatus reports MQTT connection state.
type MQTTStatus struct {
	Connected bool   `json:"connected"`
	Broker    string `json:"broker"`
}

// CountsJSON is the JSON representation of round outcome counts.
type CountsJSON struct {
	Armed int `json:"armed"`
	Won   int `json:"won"`
	Lost  int `json:"lost"`
}

// RoundSummaryJSON is the JSON representation of a finished round.
type RoundSummaryJSON struct {
	ID              string `json:"id"`
	Game            int    `json:"game"`
	Minutes         int    `json:"minutes"`
	Outcome         string `json:"outcome"`
	Cuts            int    `json:"cuts"`
	Mistakes        int    `json:"mistakes"`
	DisplayCode     string `json:"display_code"`
	StartedAt       string `json:"started_at"`
	DurationSeconds int64  `json:"duration_seconds"`
}

// NetworkJSON is the JSON representation of network info.
type NetworkJSON struct {
	Type       string `json:"type"`
	IP         string `json:"ip"`
	Status     string `json:"status"`
	Gateway    string `json:"gateway"`
	WifiStatus string `json:"wifi_status"`
	SSID       string `json:"ssid"`
}

// ConfigJSON is the JSON representation of daemon config.
type ConfigJSON struct {
	PollMs          int64  `json:"poll_ms"`
	SampleMs        int64  `json:"sample_ms"`
	LongPressMs     int64  `json:"long_press_ms"`
	HeartbeatMs     int64  `json:"heartbeat_ms"`
	DefaultMinutes  int    `json:"default_minutes"`
	Wires           int    `json:"wires"`
	TieBreak        string `json:"tie_break"`
	Broker          string `json:"broker"`
	HTTPAddr        string `json:"http_addr"`
	DisplayEndpoint string `json:"display"`
}

// FormatRemaining renders seconds as mm:ss.
func FormatRemaining(seconds int) string {
	return fmt.Sprintf("%02d:%02d", seconds/60, seconds%60)
}

func buildRound(r logic.RoundStatus) RoundJSON {
	state := string(r.State)
	if state == "" {
		state = "STARTING"
	}

	slotOf := make(map[int]int)
	for i, c := range r.Slots {
		if c != 0 {
			slotOf[c] = i + 1
		}
	}
	wires := make([]WireJSON, len(r.WiresCut))
	for i, cut := range r.WiresCut {
		wires[i] = WireJSON{Channel: i + 1, Cut: cut, Slot: slotOf[i+1]}
	}

	return RoundJSON{
		State:            state,
		Game:             r.Game,
		Variant:          logic.Variant(r.Game).String(),
		Minutes:          r.Minutes,
		ID:               r.RoundID,
		RemainingSeconds: r.RemainingSeconds,
		Remaining:        FormatRemaining(r.RemainingSeconds),
		Cuts:             r.Cuts,
		Mistakes:         r.Mistakes,
		DisplayCode:      r.DisplayCode,
		ButtonDown:       r.ButtonDown,
		Wires:            wires,
	}
}

func buildInner(snap Snapshot) StatusInner {
	inner := StatusInner{
		Round:         buildRound(snap.Round),
		Display:       snap.Display,
		DisplayBlink:  snap.DisplayBlink,
		Audio:         snap.Audio,
		UptimeSeconds: int64(snap.Uptime().Truncate(time.Second).Seconds()),
		StartTime:     snap.StartTime.UTC().Format(time.RFC3339),
		Timestamp:     snap.Now.UTC().Format(time.RFC3339),
		MQTT:          MQTTStatus{Connected: snap.MQTTConnected, Broker: snap.Config.Broker},
		Counts: CountsJSON{
			Armed: snap.Counts.Armed,
			Won:   snap.Counts.Won,
			Lost:  snap.Counts.Lost,
		},
		Config: ConfigJSON{
			PollMs:          snap.Config.PollMs,
			SampleMs:        snap.Config.SampleMs,
			LongPressMs:     snap.Config.LongPressMs,
			HeartbeatMs:     snap.Config.HeartbeatMs,
			DefaultMinutes:  snap.Config.DefaultMinutes,
			Wires:           snap.Config.Wires,
			TieBreak:        snap.Config.TieBreak,
			Broker:          snap.Config.Broker,
			HTTPAddr:        snap.Config.HTTPAddr,
			DisplayEndpoint: snap.Config.DisplayEndpoint,
		},
	}
	for _, r := range snap.Recent {
		inner.Recent = append(inner.Recent, RoundSummaryJSON{
			ID:              r.ID,
			Game:            r.Game,
			Minutes:         r.Minutes,
			Outcome:         r.Outcome,
			Cuts:            r.Cuts,
			Mistakes:        r.Mistakes,
			DisplayCode:     r.DisplayCode,
			StartedAt:       r.StartedAt.UTC().Format(time.RFC3339),
			DurationSeconds: int64(r.Duration().Truncate(time.Second).Seconds()),
		})
	}
	return inner
}

func buildNetwork(snap Snapshot, inner *StatusInner) {
	if snap.Network != nil {
		inner.Network = &NetworkJSON{
			Type:       snap.Network.Type,
			IP:         snap.Network.IP,
			Status:     snap.Network.Status,
			Gateway:    snap.Network.Gateway,
			WifiStatus: snap.Network.WifiStatus,
			SSID:       snap.Network.SSID,
		}
	}
}

// FormatJSON returns the JSON status for the web endpoint (no event/reason).
func FormatJSON(snap Snapshot) []byte {
	inner := buildInner(snap)
	buildNetwork(snap, &inner)

	data, _ := json.MarshalIndent(StatusJSON{Status: inner}, "", "  ")
	return data
}

// FormatStatusEvent returns the JSON status for an MQTT system event.
// Recent rounds are left out to keep retained messages small.
func FormatStatusEvent(snap Snapshot, event, reason string) []byte {
	inner := buildInner(snap)
	inner.Event = event
	inner.Reason = reason
	inner.Recent = nil
	buildNetwork(snap, &inner)

	data, _ := json.Marshal(StatusJSON{Status: inner})
	return data
}
