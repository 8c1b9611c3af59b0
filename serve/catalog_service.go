package serve

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/zero-day-ai/mxgraph/catalog"
	"github.com/zero-day-ai/mxgraph/nodetype"
)

// CatalogServiceName is the fully qualified gRPC service name.
const CatalogServiceName = "mxgraph.v1.CatalogService"

const (
	listNodeTypesMethod = "/" + CatalogServiceName + "/ListNodeTypes"
	getNodeTypeMethod   = "/" + CatalogServiceName + "/GetNodeType"
)

// CatalogServiceServer is the server API of the catalog service.
//
// Messages use the well-known protobuf types so that no generated code is
// needed on either side. A node type travels as a Struct holding the JSON
// form of catalog.TypeRecord.
type CatalogServiceServer interface {
	// ListNodeTypes returns {namespace, revision, types} for the node types
	// matching the filter expression. An empty filter matches all.
	ListNodeTypes(context.Context, *wrapperspb.StringValue) (*structpb.Struct, error)
	// GetNodeType returns one node type by identifier or category.
	GetNodeType(context.Context, *wrapperspb.StringValue) (*structpb.Struct, error)
}

// RegisterCatalogService registers srv on s.
func RegisterCatalogService(s grpc.ServiceRegistrar, srv CatalogServiceServer) {
	s.RegisterService(&catalogServiceDesc, srv)
}

var catalogServiceDesc = grpc.ServiceDesc{
	ServiceName: CatalogServiceName,
	HandlerType: (*CatalogServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "ListNodeTypes", Handler: listNodeTypesHandler},
		{MethodName: "GetNodeType", Handler: getNodeTypeHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "mxgraph/v1/catalog.proto",
}

func listNodeTypesHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(wrapperspb.StringValue)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(CatalogServiceServer).ListNodeTypes(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: listNodeTypesMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(CatalogServiceServer).ListNodeTypes(ctx, req.(*wrapperspb.StringValue))
	}
	return interceptor(ctx, in, info, handler)
}

func getNodeTypeHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(wrapperspb.StringValue)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(CatalogServiceServer).GetNodeType(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: getNodeTypeMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(CatalogServiceServer).GetNodeType(ctx, req.(*wrapperspb.StringValue))
	}
	return interceptor(ctx, in, info, handler)
}

// catalogService answers from whatever catalog is active when a request
// arrives; one request never sees two revisions.
type catalogService struct {
	src CatalogSource
}

func (s *catalogService) ListNodeTypes(ctx context.Context, req *wrapperspb.StringValue) (*structpb.Struct, error) {
	c := s.src.Current()
	types, err := c.Filter(req.GetValue())
	if err != nil {
		return nil, status.Errorf(codes.InvalidArgument, "invalid filter: %v", err)
	}

	list := make([]any, 0, len(types))
	for _, nt := range types {
		m, err := catalog.Record(nt).Map()
		if err != nil {
			return nil, status.Errorf(codes.Internal, "%v", err)
		}
		list = append(list, m)
	}

	resp, err := structpb.NewStruct(map[string]any{
		"namespace": c.Namespace(),
		"revision":  float64(c.Revision()),
		"types":     list,
	})
	if err != nil {
		return nil, status.Errorf(codes.Internal, "failed to encode catalog: %v", err)
	}
	return resp, nil
}

func (s *catalogService) GetNodeType(ctx context.Context, req *wrapperspb.StringValue) (*structpb.Struct, error) {
	id := req.GetValue()
	if id == "" {
		return nil, status.Error(codes.InvalidArgument, "node type id is required")
	}

	nt, ok := lookup(s.src.Current(), id)
	if !ok {
		return nil, status.Errorf(codes.NotFound, "node type %q not found", id)
	}

	m, err := catalog.Record(nt).Map()
	if err != nil {
		return nil, status.Errorf(codes.Internal, "%v", err)
	}
	resp, err := structpb.NewStruct(m)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "failed to encode node type %s: %v", id, err)
	}
	return resp, nil
}

// lookup accepts a full identifier or a bare category.
func lookup(c *catalog.Catalog, id string) (*nodetype.NodeType, bool) {
	if nt, ok := c.Get(id); ok {
		return nt, true
	}
	return c.Lookup(id)
}
