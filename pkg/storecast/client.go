// Package storecast is the Go SDK for the storecast calendar service.
package storecast

import (
	"context"
	"fmt"
	"io"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/structpb"

	"storecast/internal/api"
	"storecast/internal/calendar"
)

// Tags holds every calendar feature of one date.
type Tags = calendar.Tags

// Client talks to the gRPC calendar service of storecast-server.
type Client struct {
	addr string
	conn *grpc.ClientConn
}

// NewClient creates a client targeting the given gRPC address. Without
// options the connection is unencrypted.
func NewClient(addr string, opts ...grpc.DialOption) (*Client, error) {
	if len(opts) == 0 {
		opts = []grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}
	}
	conn, err := grpc.NewClient(addr, opts...)
	if err != nil {
		return nil, fmt.Errorf("connecting to %s: %w", addr, err)
	}
	return &Client{addr: addr, conn: conn}, nil
}

// Close releases the connection.
func (c *Client) Close() error {
	return c.conn.Close()
}

// Tag returns the calendar features of date.
func (c *Client) Tag(ctx context.Context, date time.Time) (Tags, error) {
	req, err := structpb.NewStruct(map[string]any{"date": date.Format(time.DateOnly)})
	if err != nil {
		return Tags{}, err
	}
	out := new(structpb.Struct)
	if err := c.conn.Invoke(ctx, api.CalendarTagMethod, req, out); err != nil {
		return Tags{}, fmt.Errorf("tag %s: %w", date.Format(time.DateOnly), err)
	}
	return api.TagsFromStruct(out)
}

// TagRange returns the calendar features of every date from through to,
// inclusive.
func (c *Client) TagRange(ctx context.Context, from, to time.Time) ([]Tags, error) {
	req, err := structpb.NewStruct(map[string]any{
		"from": from.Format(time.DateOnly),
		"to":   to.Format(time.DateOnly),
	})
	if err != nil {
		return nil, err
	}

	stream, err := c.conn.NewStream(ctx, &api.CalendarServiceDesc.Streams[0], api.CalendarTagRangeMethod)
	if err != nil {
		return nil, fmt.Errorf("starting stream: %w", err)
	}
	cs := &grpc.GenericClientStream[structpb.Struct, structpb.Struct]{ClientStream: stream}
	if err := cs.Send(req); err != nil {
		return nil, fmt.Errorf("sending request: %w", err)
	}
	if err := cs.CloseSend(); err != nil {
		return nil, err
	}

	var tags []Tags
	for {
		msg, err := cs.Recv()
		if err == io.EOF {
			return tags, nil
		}
		if err != nil {
			return nil, fmt.Errorf("receiving tags: %w", err)
		}
		t, err := api.TagsFromStruct(msg)
		if err != nil {
			return nil, err
		}
		tags = append(tags, t)
	}
}
