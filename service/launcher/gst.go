package launcher

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/viant/tapedeck/model/session"
)

// description builds a textual pipeline graph accepted by gst-launch
type description struct {
	segments []string
}

// element appends a factory with its properties
func (d *description) element(factory string, props ...property) *description {
	parts := []string{factory}
	for _, p := range props {
		parts = append(parts, p.String())
	}
	d.segments = append(d.segments, strings.Join(parts, " "))
	return d
}

// link appends a link to the previous element
func (d *description) link() *description {
	d.segments = append(d.segments, "!")
	return d
}

// chain appends elements linked to each other
func (d *description) chain(elements ...string) *description {
	for i, element := range elements {
		if i > 0 {
			d.link()
		}
		d.segments = append(d.segments, element)
	}
	return d
}

// ref appends a pad reference to a named element, e.g. "mux."
func (d *description) ref(name string) *description {
	d.segments = append(d.segments, name+".")
	return d
}

func (d *description) String() string {
	return strings.Join(d.segments, " ")
}

type property struct {
	name  string
	value string
}

func (p property) String() string {
	return p.name + "=" + quote(p.value)
}

func prop(name string, value interface{}) property {
	return property{name: name, value: fmt.Sprint(value)}
}

// quote escapes values gst-launch would otherwise split or parse
func quote(value string) string {
	if value != "" && !strings.ContainsAny(value, " \t\"'!=,;:/\\") {
		return value
	}
	return strconv.Quote(value)
}

func (s *Service) videoSource(cfg *session.Config) string {
	src := (&description{}).element("ximagesrc",
		prop("display-name", cfg.Display()),
		prop("show-pointer", false),
		prop("do-timestamp", true),
		prop("use-damage", false),
	)
	return src.String()
}

func (s *Service) videoCaps() string {
	return fmt.Sprintf("video/x-raw,framerate=%d/1", s.config.Framerate)
}

func (s *Service) audioSource(cfg *session.Config) string {
	return (&description{}).element("pulsesrc",
		prop("server", cfg.AudioServer()),
		prop("device", session.LoopbackSink+".monitor"),
		prop("do-timestamp", true),
	).String()
}

// unboundedQueue never drops audio while the video encoder catches up
const unboundedQueue = "queue max-size-bytes=0 max-size-buffers=0 max-size-time=0"

// previewDescription renders the session display and audio locally
func (s *Service) previewDescription(cfg *session.Config) string {
	d := &description{}
	d.chain(s.videoSource(cfg), "capsfilter caps="+quote(s.videoCaps()), "queue", "glimagesink sync=false")
	d.chain(s.audioSource(cfg), "queue", "autoaudiosink sync=false")
	return d.String()
}

// encodeDescription captures display and audio into the configured sinks,
// the file sink as h264/opus mp4, the network target as h264/aac flv
func (s *Service) encodeDescription(cfg *session.Config, networkTarget string) string {
	d := &description{}
	hasFile := cfg.Sink.FilePath != ""
	hasNetwork := networkTarget != ""
	d.chain(s.videoSource(cfg), s.videoCaps(), "queue", "videoconvert", "x264enc speed-preset=fast", "h264parse")
	switch {
	case hasFile && hasNetwork:
		d.link().chain("tee name=vt")
		d.ref("vt").link().chain("queue").link().ref("mux")
		d.ref("vt").link().chain("queue").link().ref("flv")
	case hasFile:
		d.link().chain("queue").link().ref("mux")
	default:
		d.link().chain("queue").link().ref("flv")
	}

	d.chain(s.audioSource(cfg), unboundedQueue, "audioconvert", "audioresample")
	opus := fmt.Sprintf("opusenc bitrate=%d", s.config.AudioBitrate)
	aac := fmt.Sprintf("voaacenc bitrate=%d", s.config.AudioBitrate)
	switch {
	case hasFile && hasNetwork:
		d.link().chain("tee name=at")
		d.ref("at").link().chain("queue", opus, "queue").link().ref("mux")
		d.ref("at").link().chain("queue", aac, "aacparse", "queue").link().ref("flv")
	case hasFile:
		d.link().chain(opus, "queue").link().ref("mux")
	default:
		d.link().chain(aac, "aacparse", "queue").link().ref("flv")
	}

	if hasFile {
		d.element("mp4mux", prop("name", "mux")).link().element("filesink",
			prop("location", cfg.Sink.FilePath), prop("sync", false))
	}
	if hasNetwork {
		d.element("flvmux", prop("name", "flv"), prop("streamable", true)).link().element("rtmpsink",
			prop("location", networkTarget+" live=1"))
	}
	return d.String()
}

// networkTarget returns the configured target with the resolved stream key appended
func (s *Service) networkTarget(ctx context.Context, cfg *session.Config) (string, error) {
	target := cfg.Sink.NetworkTarget
	if target == "" || cfg.Sink.NetworkSecret == "" {
		return target, nil
	}
	key, err := s.secrets.StreamKey(ctx, cfg.Sink.NetworkSecret)
	if err != nil {
		return "", err
	}
	return strings.TrimSuffix(target, "/") + "/" + key, nil
}
