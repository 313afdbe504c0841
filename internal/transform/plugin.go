package transform

import (
	"context"
	"fmt"

	"google.golang.org/grpc"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/protobuf/types/known/emptypb"

	transformv1 "github.com/max0ne/fluent-plugin-google-cloud/api/transform/v1"
	"github.com/max0ne/fluent-plugin-google-cloud/internal/event"
	"github.com/max0ne/fluent-plugin-google-cloud/internal/gke"
	"github.com/max0ne/fluent-plugin-google-cloud/internal/transport"
)

type Metadata struct {
	Name    string
	Version string
	Mode    string
}

// Client wraps a transform (over gRPC or in-process) behind one API so the
// pipeline does not care where a stage runs.
type Client interface {
	Metadata(ctx context.Context) (Metadata, error)
	Health(ctx context.Context) error
	// Transform returns the event with its record rewritten. Tag, time and
	// checkpoint are carried over from ev.
	Transform(ctx context.Context, ev *event.Event) (*event.Event, error)
	Close() error
}

// GRPCClient dials a plugin over gRPC.
type GRPCClient struct {
	conn   *grpc.ClientConn
	svc    transformv1.TransformServiceClient
	health healthpb.HealthClient
}

func NewGRPCClient(target string, opts ...grpc.DialOption) (*GRPCClient, error) {
	conn, err := transport.Dial(target, opts...)
	if err != nil {
		return nil, err
	}
	return &GRPCClient{
		conn:   conn,
		svc:    transformv1.NewTransformServiceClient(conn),
		health: healthpb.NewHealthClient(conn),
	}, nil
}

func (c *GRPCClient) Metadata(ctx context.Context) (Metadata, error) {
	resp, err := c.svc.Metadata(ctx, &emptypb.Empty{})
	if err != nil {
		return Metadata{}, err
	}
	f := resp.GetFields()
	return Metadata{
		Name:    f["name"].GetStringValue(),
		Version: f["version"].GetStringValue(),
		Mode:    f["mode"].GetStringValue(),
	}, nil
}

func (c *GRPCClient) Health(ctx context.Context) error {
	resp, err := c.health.Check(ctx, &healthpb.HealthCheckRequest{Service: transformv1.ServiceName})
	if err != nil {
		return err
	}
	if resp.GetStatus() != healthpb.HealthCheckResponse_SERVING {
		return fmt.Errorf("transform plugin not serving: %s", resp.GetStatus())
	}
	return nil
}

func (c *GRPCClient) Transform(ctx context.Context, ev *event.Event) (*event.Event, error) {
	req, err := transformv1.NewTransformRequest(ev)
	if err != nil {
		return nil, err
	}
	resp, err := c.svc.Transform(ctx, req)
	if err != nil {
		return nil, err
	}
	rec, err := transformv1.ParseTransformResponse(resp)
	if err != nil {
		return nil, err
	}
	out := *ev
	out.Record = rec
	return &out, nil
}

func (c *GRPCClient) Close() error {
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}

// InProcessClient runs a gke filter compiled into the engine.
type InProcessClient struct {
	filter *gke.Filter
}

func NewInProcessClient(f *gke.Filter) *InProcessClient { return &InProcessClient{filter: f} }

func (c *InProcessClient) Metadata(context.Context) (Metadata, error) {
	return filterMetadata(c.filter), nil
}

func (c *InProcessClient) Health(context.Context) error { return nil }

func (c *InProcessClient) Transform(_ context.Context, ev *event.Event) (*event.Event, error) {
	out := *ev
	out.Record = c.filter.Transform(ev.Tag, ev.Time, ev.Record)
	return &out, nil
}

func (c *InProcessClient) Close() error { return nil }

func filterMetadata(f *gke.Filter) Metadata {
	return Metadata{Name: PluginName, Version: PluginVersion, Mode: string(f.Mode())}
}
