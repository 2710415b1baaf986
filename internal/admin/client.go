package admin

import (
	"context"
	"fmt"

	"streamvault/internal/types"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

type Client struct {
	conn *grpc.ClientConn
}

func Dial(target string, opts ...grpc.DialOption) (*Client, error) {
	opts = append([]grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}, opts...)
	conn, err := grpc.NewClient(target, opts...)
	if err != nil {
		return nil, fmt.Errorf("admin dial %s: %w", target, err)
	}
	return &Client{conn: conn}, nil
}

func (c *Client) Close() error {
	return c.conn.Close()
}

// Dump returns every stored value keyed by its key.
func (c *Client) Dump(ctx context.Context) (map[string]types.Scalar, error) {
	out := new(structpb.Struct)
	if err := c.conn.Invoke(ctx, dumpMethod, &emptypb.Empty{}, out); err != nil {
		return nil, err
	}

	values := make(map[string]types.Scalar, len(out.GetFields()))
	for key, v := range out.GetFields() {
		scalar, err := types.FromProto(v)
		if err != nil {
			return nil, fmt.Errorf("dump key %q: %w", key, err)
		}
		values[key] = scalar
	}
	return values, nil
}

func (c *Client) Save(ctx context.Context) error {
	return c.conn.Invoke(ctx, saveMethod, &emptypb.Empty{}, new(emptypb.Empty))
}

// Clear empties the store and returns how many entries were removed.
func (c *Client) Clear(ctx context.Context) (int64, error) {
	out := new(wrapperspb.Int64Value)
	if err := c.conn.Invoke(ctx, clearMethod, &emptypb.Empty{}, out); err != nil {
		return 0, err
	}
	return out.GetValue(), nil
}

func (c *Client) Health(ctx context.Context) (healthpb.HealthCheckResponse_ServingStatus, error) {
	resp, err := healthpb.NewHealthClient(c.conn).Check(ctx, &healthpb.HealthCheckRequest{Service: ServiceName})
	if err != nil {
		return healthpb.HealthCheckResponse_UNKNOWN, err
	}
	return resp.GetStatus(), nil
}
