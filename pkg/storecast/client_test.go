package storecast

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"

	"storecast/internal/api"
	"storecast/internal/calendar"
)

func newTestClient(t *testing.T) *Client {
	t.Helper()
	b, err := calendar.DefaultBuilder()
	require.NoError(t, err)

	lis := bufconn.Listen(1 << 20)
	gs := grpc.NewServer()
	api.NewCalendarService(b, nil).RegisterGRPC(gs)
	go func() { _ = gs.Serve(lis) }()
	t.Cleanup(gs.Stop)

	c, err := NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	return c
}

func TestNewClientDefaultsToInsecure(t *testing.T) {
	c, err := NewClient("localhost:9090")
	require.NoError(t, err)
	assert.Equal(t, "localhost:9090", c.addr)
	assert.NoError(t, c.Close())
}

func TestClientTag(t *testing.T) {
	c := newTestClient(t)

	tags, err := c.Tag(context.Background(), time.Date(2025, 1, 7, 15, 30, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 1, 7, 0, 0, 0, 0, time.UTC), tags.Date)
	assert.Equal(t, "Tuesday", tags.DayOfWeek)
	assert.Equal(t, calendar.EventCopticChristmas, tags.RetailEvent)
	assert.Equal(t, calendar.Winter, tags.Season)
}

func TestClientTagRange(t *testing.T) {
	c := newTestClient(t)

	from := time.Date(2024, 2, 27, 0, 0, 0, 0, time.UTC)
	tags, err := c.TagRange(context.Background(), from, from.AddDate(0, 0, 4))
	require.NoError(t, err)
	require.Len(t, tags, 5)
	for i, tg := range tags {
		assert.Equal(t, from.AddDate(0, 0, i), tg.Date)
	}
	assert.True(t, tags[2].IsEndOfMonth, "2024-02-29")
	assert.True(t, tags[3].IsStartOfMonth, "2024-03-01")
}

func TestClientTagRangeInverted(t *testing.T) {
	c := newTestClient(t)

	day := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	_, err := c.TagRange(context.Background(), day, day.AddDate(0, 0, -1))
	require.Error(t, err)
	assert.Equal(t, codes.InvalidArgument, status.Code(err))
}
