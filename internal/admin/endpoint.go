package admin

import (
	"context"
	"log/slog"

	"streamvault/internal/types"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// Store is the part of the storage service the admin endpoint drives.
type Store interface {
	GetAll() map[string]types.Entry
	Save() error
	Clear() int
}

type endpoint struct {
	store Store
}

func (e *endpoint) Dump(_ context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	entries := e.store.GetAll()
	out := &structpb.Struct{Fields: make(map[string]*structpb.Value, len(entries))}
	for key, entry := range entries {
		out.Fields[key] = entry.Value.ToProto()
	}
	slog.Debug("admin dump", "keys", len(out.Fields))
	return out, nil
}

func (e *endpoint) Save(_ context.Context, _ *emptypb.Empty) (*emptypb.Empty, error) {
	if err := e.store.Save(); err != nil {
		return nil, status.Errorf(codes.Internal, "save snapshot: %v", err)
	}
	return &emptypb.Empty{}, nil
}

func (e *endpoint) Clear(_ context.Context, _ *emptypb.Empty) (*wrapperspb.Int64Value, error) {
	removed := e.store.Clear()
	slog.Warn("store cleared through admin endpoint", "removed", removed)
	return wrapperspb.Int64(int64(removed)), nil
}
