// Package webrtc publishes the paced frame streams to a browser peer:
// H264 over one video track, Opus over one audio track, with a tiny
// websocket endpoint for the SDP handshake.
package webrtc

import (
	"encoding/base64"
	"fmt"
	"math"
	"sync"

	"github.com/gofrs/uuid"
	"github.com/goccy/go-json"
	"github.com/hashicorp/go-multierror"
	"github.com/pion/interceptor"
	"github.com/pion/webrtc/v3"
	"github.com/rs/zerolog"

	"github.com/loopcast/loopcast/pkg/config"
	"github.com/loopcast/loopcast/pkg/logger"
	"github.com/loopcast/loopcast/pkg/media"
	"github.com/loopcast/loopcast/pkg/transport"
)

// Publisher owns one peer connection with a pre-negotiated video and
// audio track. Frames written before a viewer attaches are dropped by
// the tracks, so publishing is safe to start immediately.
type Publisher struct {
	id   string
	conf config.Webrtc
	log  *logger.Logger

	mu        sync.Mutex
	pc        *webrtc.PeerConnection
	signal    *signalServer
	video     *videoSource
	audio     *audioSource
	published bool
}

func New(conf config.Webrtc, log *logger.Logger) *Publisher {
	id := uuid.Must(uuid.NewV4()).String()
	return &Publisher{
		id:   id,
		conf: conf,
		log:  log.Wrap(log.With().Str("cid", id[:8])),
	}
}

func (p *Publisher) Publish(info media.MediaInfo) (transport.VideoSource, transport.AudioSource, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.published {
		return nil, nil, fmt.Errorf("webrtc: already published")
	}
	if info.AudioChannels > 2 {
		return nil, nil, fmt.Errorf("webrtc: %d audio channels, opus takes at most 2", info.AudioChannels)
	}

	m := &webrtc.MediaEngine{}
	if err := m.RegisterDefaultCodecs(); err != nil {
		return nil, nil, err
	}
	i := &interceptor.Registry{}
	if err := webrtc.RegisterDefaultInterceptors(m, i); err != nil {
		return nil, nil, err
	}
	s := webrtc.SettingEngine{LoggerFactory: logger.NewPionLogger(p.log, zerolog.WarnLevel)}
	api := webrtc.NewAPI(webrtc.WithMediaEngine(m), webrtc.WithInterceptorRegistry(i), webrtc.WithSettingEngine(s))

	pc, err := api.NewPeerConnection(webrtc.Configuration{ICEServers: p.iceServers()})
	if err != nil {
		return nil, nil, err
	}

	videoTrack, err := webrtc.NewTrackLocalStaticSample(
		webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeH264}, "video", "loopcast-video")
	if err != nil {
		return nil, nil, err
	}
	if _, err = pc.AddTrack(videoTrack); err != nil {
		return nil, nil, err
	}
	audioTrack, err := webrtc.NewTrackLocalStaticSample(
		webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeOpus}, "audio", "loopcast-audio")
	if err != nil {
		return nil, nil, err
	}
	if _, err = pc.AddTrack(audioTrack); err != nil {
		return nil, nil, err
	}

	pc.OnICEConnectionStateChange(func(state webrtc.ICEConnectionState) {
		p.log.Info().Msgf("ICE connection state is %v", state)
	})

	fps := int(math.Round(info.VideoFPS))
	video, err := newVideoSource(videoTrack, info.VideoWidth, info.VideoHeight, fps, p.conf.Video)
	if err != nil {
		_ = pc.Close()
		return nil, nil, err
	}
	audio, err := newAudioSource(audioTrack, info.AudioSampleRate, info.AudioChannels, p.conf.Audio.FrameMs)
	if err != nil {
		_ = video.Close()
		_ = pc.Close()
		return nil, nil, err
	}

	signal := newSignalServer(p.conf.SignalAddress, pc, p.log)
	go signal.run()

	p.pc, p.signal, p.video, p.audio = pc, signal, video, audio
	p.published = true
	p.log.Info().Msgf("publishing %dx%d@%d H264 + %dHz ch=%d Opus, signaling at %v",
		info.VideoWidth, info.VideoHeight, fps, info.AudioSampleRate, info.AudioChannels, p.conf.SignalAddress)
	return video, audio, nil
}

func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.published {
		return nil
	}
	var result *multierror.Error
	if err := p.signal.shutdown(); err != nil {
		result = multierror.Append(result, err)
	}
	if err := p.video.Close(); err != nil {
		result = multierror.Append(result, err)
	}
	if err := p.pc.Close(); err != nil {
		result = multierror.Append(result, err)
	}
	p.published = false
	return result.ErrorOrNil()
}

func (p *Publisher) iceServers() []webrtc.ICEServer {
	servers := make([]webrtc.ICEServer, 0, len(p.conf.IceServers))
	for _, url := range p.conf.IceServers {
		servers = append(servers, webrtc.ICEServer{URLs: []string{url}})
	}
	return servers
}

// Encode encodes the input in base64.
func Encode(obj any) (string, error) {
	b, err := json.Marshal(obj)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(b), nil
}

// Decode decodes the input from base64.
func Decode(in string, obj any) error {
	b, err := base64.StdEncoding.DecodeString(in)
	if err != nil {
		return err
	}
	return json.Unmarshal(b, obj)
}
