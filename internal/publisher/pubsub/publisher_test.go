package pubsub

import (
	"context"
	"encoding/json"
	"testing"

	"cloud.google.com/go/pubsub"
	"cloud.google.com/go/pubsub/pstest"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

func TestPublishDeliversJSON(t *testing.T) {
	ctx := context.Background()

	srv := pstest.NewServer()
	defer srv.Close()

	conn, err := grpc.NewClient(srv.Addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	require.NoError(t, err)
	defer conn.Close()

	client, err := pubsub.NewClient(ctx, "konut", option.WithGRPCConn(conn))
	require.NoError(t, err)
	defer client.Close()

	_, err = client.CreateTopic(ctx, "snapshots")
	require.NoError(t, err)

	pub := New(client)
	id, err := pub.Publish(ctx, "snapshots", map[string]any{"label": "apartments_for_rent", "records": 3})
	require.NoError(t, err)
	require.NotEmpty(t, id)
	require.NoError(t, pub.Close())

	msgs := srv.Messages()
	require.Len(t, msgs, 1)
	var got map[string]any
	require.NoError(t, json.Unmarshal(msgs[0].Data, &got))
	require.Equal(t, "apartments_for_rent", got["label"])
	require.Equal(t, "application/json", msgs[0].Attributes["content_type"])
}

func TestPublishValidates(t *testing.T) {
	t.Parallel()

	_, err := (&Publisher{}).Publish(context.Background(), "t", "x")
	require.Error(t, err)

	_, err = Open(context.Background(), "")
	require.Error(t, err)
}
