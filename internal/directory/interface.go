package directory

import "context"

// Directory advertises which nodes currently host members of a room.
type Directory interface {
	Register(ctx context.Context, room string) error
	Deregister(ctx context.Context, room string) error
	Nodes(ctx context.Context, room string) ([]string, error)
	StartHeartbeat(ctx context.Context) error
	StopHeartbeat()
	Close() error
}

// Noop is used when the directory is disabled.
type Noop struct{}

func (Noop) Register(context.Context, string) error { return nil }
func (Noop) Deregister(context.Context, string) error { return nil }
func (Noop) Nodes(context.Context, string) ([]string, error) { return nil, nil }
func (Noop) StartHeartbeat(context.Context) error { return nil }
func (Noop) StopHeartbeat() {}
func (Noop) Close() error { return nil }
