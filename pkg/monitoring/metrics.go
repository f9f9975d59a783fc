package monitoring

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	VideoFramesPushed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "loopcast_video_frames_pushed_total",
		Help: "Video frames handed to the synchronizer.",
	})
	AudioFramesPushed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "loopcast_audio_frames_pushed_total",
		Help: "Audio frames handed to the synchronizer.",
	})
	FramesReleased = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "loopcast_frames_released_total",
		Help: "Frames released downstream by the synchronizer.",
	}, []string{"stream"})
	LookaheadDepth = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "loopcast_lookahead_depth",
		Help: "Buffered look-ahead, frames for video and milliseconds for audio.",
	}, []string{"stream"})
	LoopRestarts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "loopcast_loop_restarts_total",
		Help: "Times a stream was rewound to the start of the file.",
	}, []string{"stream"})
	PushLoopFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "loopcast_push_loop_failures_total",
		Help: "Push loops terminated by a decode or push error.",
	}, []string{"stream"})
)
