package compiler

import (
	"context"
	"time"

	"github.com/zoobzio/capitan"
)

// Signals for compiler events.
var (
	SignalBuildStart     = capitan.NewSignal("typecodec.build.start", "Graph build beginning")
	SignalBuildComplete  = capitan.NewSignal("typecodec.build.complete", "Graph build finished")
	SignalCacheHit       = capitan.NewSignal("typecodec.cache.hit", "Plan artifact reused")
	SignalArtifactStored = capitan.NewSignal("typecodec.artifact.stored", "Plan artifact published")
	SignalDecodeComplete = capitan.NewSignal("typecodec.decode.complete", "Decode finished")
	SignalEncodeComplete = capitan.NewSignal("typecodec.encode.complete", "Encode finished")
)

// Keys for typed event data.
var (
	KeyType      = capitan.NewStringKey("type")
	KeyFormat    = capitan.NewStringKey("format")
	KeyStrategy  = capitan.NewStringKey("strategy")
	KeyDirection = capitan.NewStringKey("direction")
	KeyArtifact  = capitan.NewStringKey("artifact")
	KeyBuildID   = capitan.NewStringKey("build_id")
	KeyDuration  = capitan.NewDurationKey("duration")
	KeyCollected = capitan.NewIntKey("collected")
	KeyError     = capitan.NewErrorKey("error")
)

func (cd *Codec) fields() []capitan.Field {
	return []capitan.Field{
		KeyType.Field(cd.Type.String()),
		KeyFormat.Field(string(cd.Format)),
		KeyStrategy.Field(string(cd.Strategy)),
		KeyDirection.Field(string(cd.Direction)),
		KeyBuildID.Field(cd.BuildID),
	}
}

func emitBuildStart(ctx context.Context, cd *Codec) {
	capitan.Emit(ctx, SignalBuildStart, cd.fields()...)
}

func emitBuildComplete(ctx context.Context, cd *Codec, duration time.Duration, err error) {
	fields := append(cd.fields(), KeyDuration.Field(duration))
	if err != nil {
		fields = append(fields, KeyError.Field(err))
		capitan.Error(ctx, SignalBuildComplete, fields...)
		return
	}
	capitan.Emit(ctx, SignalBuildComplete, fields...)
}

func emitCacheHit(ctx context.Context, cd *Codec) {
	capitan.Emit(ctx, SignalCacheHit, append(cd.fields(), KeyArtifact.Field(cd.Artifact))...)
}

func emitArtifactStored(ctx context.Context, cd *Codec) {
	capitan.Emit(ctx, SignalArtifactStored, append(cd.fields(), KeyArtifact.Field(cd.Artifact))...)
}

func emitDecodeComplete(ctx context.Context, cd *Codec, duration time.Duration, collected int, err error) {
	fields := append(cd.fields(), KeyDuration.Field(duration), KeyCollected.Field(collected))
	if err != nil {
		fields = append(fields, KeyError.Field(err))
		capitan.Error(ctx, SignalDecodeComplete, fields...)
		return
	}
	capitan.Emit(ctx, SignalDecodeComplete, fields...)
}

func emitEncodeComplete(ctx context.Context, cd *Codec, duration time.Duration, err error) {
	fields := append(cd.fields(), KeyDuration.Field(duration))
	if err != nil {
		fields = append(fields, KeyError.Field(err))
		capitan.Error(ctx, SignalEncodeComplete, fields...)
		return
	}
	capitan.Emit(ctx, SignalEncodeComplete, fields...)
}
