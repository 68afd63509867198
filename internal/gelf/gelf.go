package gelf

import (
	"encoding/json"
	"net"
	"os"
	"strings"
	"time"
)

// Writer sends GELF 1.1 messages over UDP. Each Write receives one zap JSON
// entry and turns it into one GELF datagram.
type Writer struct {
	conn     net.Conn
	hostname string
	service  string
	now      func() time.Time
}

// New creates a GELF UDP writer connected to addr (e.g. "172.17.0.1:12201").
func New(addr, service string) (*Writer, error) {
	conn, err := net.Dial("udp", addr)
	if err != nil {
		return nil, err
	}

	hostname, _ := os.Hostname()
	if hostname == "" {
		hostname = service + "-server"
	}

	return &Writer{conn: conn, hostname: hostname, service: service, now: time.Now}, nil
}

// Write implements io.Writer. Lines that are not zap JSON are forwarded
// verbatim as the short message at informational level.
func (w *Writer) Write(p []byte) (int, error) {
	payload, err := json.Marshal(w.message(p))
	if err != nil {
		return len(p), nil
	}
	// Fire-and-forget
	w.conn.Write(payload)
	return len(p), nil
}

// Sync satisfies zapcore.WriteSyncer.
func (w *Writer) Sync() error { return nil }

// Close closes the UDP socket.
func (w *Writer) Close() error { return w.conn.Close() }

func (w *Writer) message(p []byte) map[string]any {
	line := strings.TrimRight(string(p), "\n")

	msg := map[string]any{
		"version":       "1.1",
		"host":          w.hostname,
		"short_message": line,
		"timestamp":     float64(w.now().UnixNano()) / 1e9,
		"level":         6,
		"_service":      w.service,
	}

	var entry map[string]any
	if err := json.Unmarshal([]byte(line), &entry); err != nil {
		return msg
	}

	if m, ok := entry["msg"].(string); ok {
		msg["short_message"] = m
	}
	if lvl, ok := entry["level"].(string); ok {
		msg["level"] = syslogLevel(lvl)
	}
	if ts, ok := entry["ts"].(float64); ok {
		msg["timestamp"] = ts
	}
	if st, ok := entry["stacktrace"].(string); ok {
		msg["full_message"] = st
	}
	for k, v := range entry {
		switch k {
		case "msg", "level", "ts", "stacktrace":
			continue
		case "id":
			// GELF reserves _id
			k = "field_id"
		}
		msg["_"+k] = v
	}
	return msg
}

func syslogLevel(zapLevel string) int {
	switch zapLevel {
	case "debug":
		return 7
	case "info":
		return 6
	case "warn":
		return 4
	case "error":
		return 3
	case "dpanic", "panic":
		return 2
	case "fatal":
		return 1
	}
	return 6
}
