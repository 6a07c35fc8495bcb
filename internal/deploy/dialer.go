package deploy

import (
	"context"

	"github.com/rileyhilliard/debdeploy/internal/host"
	"github.com/rileyhilliard/debdeploy/pkg/sshutil"
)

// Dialer opens a connection to one host.
type Dialer interface {
	Dial(ctx context.Context, h host.Spec) (sshutil.SSHClient, error)
}

// DialerFunc adapts a function to Dialer.
type DialerFunc func(ctx context.Context, h host.Spec) (sshutil.SSHClient, error)

// Dial implements Dialer.
func (f DialerFunc) Dial(ctx context.Context, h host.Spec) (sshutil.SSHClient, error) {
	return f(ctx, h)
}

// SSHDialer dials real hosts with pkg/sshutil.
type SSHDialer struct {
	Options sshutil.DialOptions
}

// Dial implements Dialer.
func (d SSHDialer) Dial(ctx context.Context, h host.Spec) (sshutil.SSHClient, error) {
	c, err := sshutil.Dial(ctx, h.Target(), d.Options)
	if err != nil {
		return nil, err
	}
	return c, nil
}
