package server

import (
	"context"
	"errors"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/watchfire-io/nowplaying/internal/models"
)

// ErrZoneNotFound is returned by Client.SelectZone for an unknown zone id.
var ErrZoneNotFound = errors.New("zone not found")

// Client calls the control service.
type Client struct {
	conn *grpc.ClientConn
}

// Dial connects to the control service at addr.
func Dial(addr string, opts ...grpc.DialOption) (*Client, error) {
	opts = append([]grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}, opts...)
	conn, err := grpc.NewClient(addr, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to daemon: %w", err)
	}
	return &Client{conn: conn}, nil
}

// Close closes the underlying connection.
func (c *Client) Close() error {
	return c.conn.Close()
}

// GetState fetches the daemon's current state.
func (c *Client) GetState(ctx context.Context) (models.StatusView, error) {
	out := new(structpb.Struct)
	if err := c.conn.Invoke(ctx, methodGetState, &emptypb.Empty{}, out); err != nil {
		return models.StatusView{}, err
	}
	return StructToView(out)
}

// SelectZone pins id, or returns to automatic selection when id is empty.
func (c *Client) SelectZone(ctx context.Context, id string) error {
	err := c.conn.Invoke(ctx, methodSelectZone, wrapperspb.String(id), new(emptypb.Empty))
	if status.Code(err) == codes.NotFound {
		return fmt.Errorf("%w: %s", ErrZoneNotFound, id)
	}
	return err
}

// Shutdown asks the daemon to exit.
func (c *Client) Shutdown(ctx context.Context) error {
	return c.conn.Invoke(ctx, methodShutdown, &emptypb.Empty{}, new(emptypb.Empty))
}
