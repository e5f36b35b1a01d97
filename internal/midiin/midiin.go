package midiin

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/cbegin/grainscope/internal/logging"
	gomidi "gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/drivers"
	_ "gitlab.com/gomidi/midi/v2/drivers/rtmididrv" // Register MIDI driver
)

// ErrNoPort is returned when no input port matches.
var ErrNoPort = errors.New("midiin: no matching input port")

const (
	queueSize   = 256
	scanTimeout = 3 * time.Second
)

// Ports lists the input ports. Some platform backends can hang while
// enumerating, so the scan gives up after a timeout.
func Ports() ([]drivers.In, error) {
	ch := make(chan []drivers.In, 1)
	go func() { ch <- gomidi.GetInPorts() }()
	select {
	case ports := <-ch:
		return ports, nil
	case <-time.After(scanTimeout):
		return nil, errors.New("midiin: port scan timed out")
	}
}

// PortNames returns the names of ports.
func PortNames(ports []drivers.In) []string {
	names := make([]string, len(ports))
	for i, p := range ports {
		names[i] = p.String()
	}
	return names
}

// Match returns the index of the first name containing want, ignoring case.
// An empty want matches the first name.
func Match(names []string, want string) (int, bool) {
	if len(names) == 0 {
		return -1, false
	}
	if want == "" {
		return 0, true
	}
	want = strings.ToLower(want)
	for i, n := range names {
		if strings.Contains(strings.ToLower(n), want) {
			return i, true
		}
	}
	return -1, false
}

// Input delivers messages from one MIDI input port.
type Input struct {
	name     string
	stopFunc func()
	msgs     chan gomidi.Message
	log      *slog.Logger
}

// Open listens on the first port matching want.
func Open(want string, logger *slog.Logger) (*Input, error) {
	ports, err := Ports()
	if err != nil {
		return nil, err
	}
	i, ok := Match(PortNames(ports), want)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrNoPort, want)
	}
	in := &Input{
		name: ports[i].String(),
		msgs: make(chan gomidi.Message, queueSize),
		log:  logging.Component(logger, "midi"),
	}
	stop, err := gomidi.ListenTo(ports[i], func(msg gomidi.Message, timestampms int32) {
		select {
		case in.msgs <- msg:
		default:
			in.log.Warn("input queue full, dropping message", "msg", msg.String())
		}
	})
	if err != nil {
		return nil, fmt.Errorf("open input: %w", err)
	}
	in.stopFunc = stop
	in.log.Info("listening", "port", in.name)
	return in, nil
}

func (in *Input) Name() string { return in.name }

func (in *Input) Messages() <-chan gomidi.Message { return in.msgs }

// Run hands each message to fn until ctx is done.
func (in *Input) Run(ctx context.Context, fn func(gomidi.Message)) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-in.msgs:
			fn(msg)
		}
	}
}

func (in *Input) Close() error {
	if in.stopFunc != nil {
		in.stopFunc()
		in.stopFunc = nil
	}
	return nil
}

// CloseDriver releases the MIDI backend. Call once at exit.
func CloseDriver() { gomidi.CloseDriver() }
