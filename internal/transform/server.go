package transform

import (
	"context"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"

	transformv1 "github.com/max0ne/fluent-plugin-google-cloud/api/transform/v1"
	"github.com/max0ne/fluent-plugin-google-cloud/internal/gke"
	"github.com/max0ne/fluent-plugin-google-cloud/internal/logging"
)

const (
	PluginName    = "gke"
	PluginVersion = "0.2.0"
)

// Server exposes a gke filter as a transformv1.TransformService.
type Server struct {
	filter *gke.Filter
}

var _ transformv1.TransformServiceServer = (*Server)(nil)

func NewServer(f *gke.Filter) *Server { return &Server{filter: f} }

func (s *Server) Metadata(context.Context, *emptypb.Empty) (*structpb.Struct, error) {
	md := filterMetadata(s.filter)
	return structpb.NewStruct(map[string]any{
		"name":    md.Name,
		"version": md.Version,
		"mode":    md.Mode,
	})
}

func (s *Server) Transform(_ context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	ev, err := transformv1.ParseTransformRequest(req)
	if err != nil {
		logging.L().Debug("transform server: bad request", "err", err)
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	out := s.filter.Transform(ev.Tag, ev.Time, ev.Record)
	resp, err := transformv1.NewTransformResponse(out)
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	return resp, nil
}
