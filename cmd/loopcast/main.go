package main

import (
	"context"
	"time"

	flag "github.com/spf13/pflag"

	"github.com/loopcast/loopcast/pkg/config"
	"github.com/loopcast/loopcast/pkg/logger"
	"github.com/loopcast/loopcast/pkg/monitoring"
	"github.com/loopcast/loopcast/pkg/os"
	"github.com/loopcast/loopcast/pkg/recorder"
	"github.com/loopcast/loopcast/pkg/session"
	"github.com/loopcast/loopcast/pkg/streamer"
	"github.com/loopcast/loopcast/pkg/transport"
	"github.com/loopcast/loopcast/pkg/transport/webrtc"
)

var Version = "?"

func main() {
	conf, err := config.NewConfig()
	if err != nil {
		logger.Default().Fatal().Err(err).Msg("config load failed")
	}
	conf.WithFlags(flag.CommandLine)
	flag.Parse()

	log := logger.NewConsole(conf.Debug, "lc")
	if conf.JSONLogs {
		log = logger.New(conf.Debug)
	}
	log.Info().Msgf("version %s", Version)
	if conf.Debug {
		log.Debug().Msgf("config: %+v", conf)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	src, err := streamer.New(ctx, conf.Streamer, log)
	if err != nil {
		log.Fatal().Err(err).Msg("can't open the media file")
	}

	pub, err := newPublisher(conf, log)
	if err != nil {
		log.Fatal().Err(err).Msg("can't create a publisher")
	}

	var mon *monitoring.Monitoring
	if conf.Monitoring.Port > 0 {
		mon = monitoring.New(conf.Monitoring, "lc", log)
		go mon.Run()
	}

	sess := session.New(src, pub, conf.Sync, log)
	done := make(chan error, 1)
	go func() { done <- sess.Run(ctx) }()

	select {
	case err = <-done:
	case <-os.ExpectTermination():
		cancel()
		err = <-done
	}
	if err != nil {
		log.Error().Err(err).Msg("session errors")
	}

	if mon != nil {
		shutdownCtx, stop := context.WithTimeout(context.Background(), 5*time.Second)
		defer stop()
		if err := mon.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("monitoring shutdown errors")
		}
	}
}

// newPublisher picks the frame destination: a WebRTC peer, a local
// recording, or both stacked together.
func newPublisher(conf *config.Config, log *logger.Logger) (transport.Publisher, error) {
	var pubs []transport.Publisher
	if conf.Webrtc.Enabled {
		pubs = append(pubs, webrtc.New(conf.Webrtc, log))
	}
	if conf.Recorder.Enabled {
		rec, err := recorder.New(recorder.Options{Dir: conf.Recorder.Dir, Name: conf.Recorder.Name}, log)
		if err != nil {
			return nil, err
		}
		pubs = append(pubs, rec)
	}
	return transport.Stack(pubs...), nil
}
