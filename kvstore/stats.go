package kvstore

import (
	"context"
	"net"
	"sync/atomic"

	"github.com/redis/go-redis/v9"
)

// StatsSnapshot is a point-in-time copy of the adapter's call counters.
type StatsSnapshot struct {
	Commands          uint64
	Pipelines         uint64
	PipelinedCommands uint64
}

// RoundTrips counts network round trips: one per standalone command and
// one per pipeline.
func (s StatsSnapshot) RoundTrips() uint64 {
	return s.Commands + s.Pipelines
}

type stats struct {
	commands          atomic.Uint64
	pipelines         atomic.Uint64
	pipelinedCommands atomic.Uint64
}

func (s *stats) snapshot() StatsSnapshot {
	return StatsSnapshot{
		Commands:          s.commands.Load(),
		Pipelines:         s.pipelines.Load(),
		PipelinedCommands: s.pipelinedCommands.Load(),
	}
}

// statsHook is a go-redis hook that counts traffic without touching it.
type statsHook struct {
	stats *stats
}

func (h statsHook) DialHook(next redis.DialHook) redis.DialHook {
	return func(ctx context.Context, network, addr string) (net.Conn, error) {
		return next(ctx, network, addr)
	}
}

func (h statsHook) ProcessHook(next redis.ProcessHook) redis.ProcessHook {
	return func(ctx context.Context, cmd redis.Cmder) error {
		h.stats.commands.Add(1)
		return next(ctx, cmd)
	}
}

func (h statsHook) ProcessPipelineHook(next redis.ProcessPipelineHook) redis.ProcessPipelineHook {
	return func(ctx context.Context, cmds []redis.Cmder) error {
		h.stats.pipelines.Add(1)
		h.stats.pipelinedCommands.Add(uint64(len(cmds)))
		return next(ctx, cmds)
	}
}
