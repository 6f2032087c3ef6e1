package media

import (
	"context"
	"fmt"
	"time"

	"github.com/maauso/avsync/internal/audio"
)

// Action is the change applied to the audio track to match the video.
type Action string

const (
	// ActionNone means no audio was attached and the output is silent.
	ActionNone Action = "none"
	// ActionKeep means the audio already matched the video and was used unchanged.
	ActionKeep Action = "keep"
	// ActionTrim means the audio was truncated to the video duration.
	ActionTrim Action = "trim"
	// ActionPad means silence was appended to reach the video duration.
	ActionPad Action = "pad"
)

// Plan describes how an audio track is reconciled with a video.
// Lengths are in sample frames at SampleRate.
type Plan struct {
	Action       Action
	SampleRate   int
	SourceFrames int64
	TargetFrames int64
}

// PadFrames returns the number of silent frames to append.
func (p Plan) PadFrames() int64 {
	if p.Action != ActionPad {
		return 0
	}
	return p.TargetFrames - p.SourceFrames
}

// PlanAudio decides whether audio of audioFrames at rate must be trimmed,
// padded or kept to last exactly as long as video.
func PlanAudio(video time.Duration, audioFrames int64, rate int) Plan {
	target := audio.FramesFor(video, rate)
	p := Plan{
		Action:       ActionKeep,
		SampleRate:   rate,
		SourceFrames: audioFrames,
		TargetFrames: target,
	}
	switch {
	case audioFrames > target:
		p.Action = ActionTrim
	case audioFrames < target:
		p.Action = ActionPad
	}
	return p
}

// Reconcile returns a track with the same duration as video, derived from a.
// For ActionKeep the returned track is a itself.
func Reconcile(ctx context.Context, codec Codec, video VideoTrack, a AudioTrack) (AudioTrack, Plan, error) {
	plan := PlanAudio(video.Duration(), a.Frames(), a.SampleRate())

	switch plan.Action {
	case ActionTrim:
		trimmed, err := codec.Trim(ctx, a, plan.TargetFrames)
		if err != nil {
			return nil, plan, fmt.Errorf("trim audio: %w", err)
		}
		return trimmed, plan, nil

	case ActionPad:
		silence, err := codec.GenerateSilence(ctx, a.SampleRate(), a.Channels(), plan.PadFrames())
		if err != nil {
			return nil, plan, fmt.Errorf("generate silence: %w", err)
		}
		defer func() { _ = silence.Close() }()

		padded, err := codec.Concatenate(ctx, a, silence)
		if err != nil {
			return nil, plan, fmt.Errorf("concatenate silence: %w", err)
		}
		return padded, plan, nil

	default:
		return a, plan, nil
	}
}
