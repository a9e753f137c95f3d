package cli

import (
	"context"
	"time"

	"github.com/watchfire-io/nowplaying/internal/config"
	"github.com/watchfire-io/nowplaying/internal/daemon/server"
)

// rpcTimeout bounds every unary call the CLI makes.
const rpcTimeout = 5 * time.Second

// connectDaemon establishes a gRPC connection to the running daemon.
func connectDaemon() (*server.Client, error) {
	info, err := config.RunningDaemon()
	if err != nil {
		return nil, err
	}
	return server.Dial(info.Address())
}

func rpcContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), rpcTimeout)
}
