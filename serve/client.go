package serve

import (
	"context"
	"encoding/json"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/zero-day-ai/mxgraph/catalog"
)

// Listing is the decoded response of ListNodeTypes.
type Listing struct {
	Namespace string               `json:"namespace"`
	Revision  uint64               `json:"revision"`
	Types     []catalog.TypeRecord `json:"types"`
}

// Client queries a remote catalog service.
type Client struct {
	cc grpc.ClientConnInterface
}

// NewClient returns a client using cc.
func NewClient(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc}
}

// ListNodeTypes returns the node types matching filter, a CEL expression
// over the variable node. An empty filter returns every type.
func (c *Client) ListNodeTypes(ctx context.Context, filter string, opts ...grpc.CallOption) (*Listing, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, listNodeTypesMethod, wrapperspb.String(filter), out, opts...); err != nil {
		return nil, err
	}
	var l Listing
	if err := decodeStruct(out, &l); err != nil {
		return nil, fmt.Errorf("failed to decode node type listing: %w", err)
	}
	return &l, nil
}

// GetNodeType returns one node type by identifier or category. A missing
// type is reported with codes.NotFound.
func (c *Client) GetNodeType(ctx context.Context, id string, opts ...grpc.CallOption) (*catalog.TypeRecord, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, getNodeTypeMethod, wrapperspb.String(id), out, opts...); err != nil {
		return nil, err
	}
	var rec catalog.TypeRecord
	if err := decodeStruct(out, &rec); err != nil {
		return nil, fmt.Errorf("failed to decode node type %s: %w", id, err)
	}
	return &rec, nil
}

func decodeStruct(s *structpb.Struct, v any) error {
	data, err := json.Marshal(s.AsMap())
	if err != nil {
		return err
	}
	return json.Unmarshal(data, v)
}
