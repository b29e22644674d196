package api

import (
	"context"
	"encoding/json"
	"fmt"

	"google.golang.org/genai"
	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/victornm/trivia/internal/agent"
	"github.com/victornm/trivia/internal/errors"
)

// AgentServiceServer is the server API of trivia.v1.AgentService, used by the voice worker
// to run tool calls of a live session against a game.
type AgentServiceServer interface {
	// ListTools returns {"tools": [function declarations]}.
	ListTools(ctx context.Context, req *emptypb.Empty) (*structpb.Struct, error)
	// CallTool takes {"game_id", "name", "args"} and returns the tool output.
	CallTool(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
}

const agentServiceName = "trivia.v1.AgentService"

var agentServiceDesc = grpc.ServiceDesc{
	ServiceName: agentServiceName,
	HandlerType: (*AgentServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "ListTools",
			Handler:    listToolsHandler,
		},
		{
			MethodName: "CallTool",
			Handler:    callToolHandler,
		},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "trivia/v1/agent.proto",
}

func (a *API) ListTools(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	return toStruct(map[string]any{
		"tools": agent.Declarations(),
	})
}

func (a *API) CallTool(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	m := req.AsMap()

	gameID, _ := m["game_id"].(string)
	name, _ := m["name"].(string)
	if gameID == "" || name == "" {
		return nil, errors.New(errors.CodeInvalidArgument, errors.WithMessagef("game_id and name are required"))
	}

	args, _ := m["args"].(map[string]any)
	resp, err := a.ad.Call(ctx, gameID, &genai.FunctionCall{
		Name: name,
		Args: args,
	})
	if err != nil {
		return nil, errors.Convert(err)
	}

	return toStruct(resp.Response)
}

// toStruct converts v to a Struct through its JSON form.
func toStruct(v any) (*structpb.Struct, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, errors.Internal(fmt.Errorf("marshal struct: %w", err))
	}

	s := &structpb.Struct{}
	if err := s.UnmarshalJSON(b); err != nil {
		return nil, errors.Internal(fmt.Errorf("unmarshal struct: %w", err))
	}

	return s, nil
}

func listToolsHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(emptypb.Empty)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(AgentServiceServer).ListTools(ctx, in)
	}

	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: "/" + agentServiceName + "/ListTools",
	}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(AgentServiceServer).ListTools(ctx, req.(*emptypb.Empty))
	}

	return interceptor(ctx, in, info, handler)
}

func callToolHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(AgentServiceServer).CallTool(ctx, in)
	}

	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: "/" + agentServiceName + "/CallTool",
	}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(AgentServiceServer).CallTool(ctx, req.(*structpb.Struct))
	}

	return interceptor(ctx, in, info, handler)
}
