package launcher

import (
	"bufio"
	"io"
	"log/slog"
	"strings"
)

// MessageKind classifies a pipeline bus message
type MessageKind int

const (
	MessageOther MessageKind = iota
	MessagePlaying
	MessageEOS
	MessageWarning
	MessageError
)

func (k MessageKind) String() string {
	switch k {
	case MessagePlaying:
		return "playing"
	case MessageEOS:
		return "eos"
	case MessageWarning:
		return "warning"
	case MessageError:
		return "error"
	}
	return "other"
}

// Message represents a single pipeline bus message
type Message struct {
	Kind MessageKind
	Text string
}

// ParseMessage classifies one line of gst-launch output
func ParseMessage(line string) *Message {
	text := strings.TrimSpace(line)
	ret := &Message{Text: text}
	switch {
	case strings.HasPrefix(text, "Got EOS from element"):
		ret.Kind = MessageEOS
	case strings.HasPrefix(text, "ERROR:"):
		ret.Kind = MessageError
	case strings.HasPrefix(text, "WARNING:"):
		ret.Kind = MessageWarning
	case strings.HasPrefix(text, "Setting pipeline to PLAYING"):
		ret.Kind = MessagePlaying
	}
	return ret
}

// busListener follows a pipeline message stream until it is closed
type busListener struct {
	logger  *slog.Logger
	playing chan struct{}
	ended   chan struct{}
	done    chan struct{}
	errors  []string
}

func newBusListener(logger *slog.Logger) *busListener {
	return &busListener{
		logger:  logger,
		playing: make(chan struct{}),
		ended:   make(chan struct{}),
		done:    make(chan struct{}),
	}
}

// listen reads messages until EOF. End-of-stream closes ended exactly once,
// errors are logged and never stop the listener.
func (l *busListener) listen(reader io.ReadCloser) {
	defer close(l.done)
	defer reader.Close()
	scanner := bufio.NewScanner(reader)
	var isPlaying, isEnded bool
	for scanner.Scan() {
		msg := ParseMessage(scanner.Text())
		switch msg.Kind {
		case MessagePlaying:
			if !isPlaying {
				isPlaying = true
				close(l.playing)
			}
		case MessageEOS:
			if !isEnded {
				isEnded = true
				close(l.ended)
				l.logger.Debug("end of stream")
			}
		case MessageError:
			l.errors = append(l.errors, msg.Text)
			l.logger.Error("pipeline error", "message", msg.Text)
		case MessageWarning:
			l.logger.Warn("pipeline warning", "message", msg.Text)
		default:
			if msg.Text != "" {
				l.logger.Debug(msg.Text)
			}
		}
	}
	if err := scanner.Err(); err != nil {
		l.logger.Debug("bus read interrupted", "error", err)
	}
}

// lastError returns the most recent error message; valid once done is closed
func (l *busListener) lastError() string {
	if len(l.errors) == 0 {
		return ""
	}
	return l.errors[len(l.errors)-1]
}
