package instance

import (
	"context"
	"fmt"
	"path/filepath"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/trgui-ng/trgui/internal/models"
)

func dial(socketPath string) (*grpc.ClientConn, error) {
	target := "unix:" + filepath.ToSlash(socketPath)
	conn, err := grpc.NewClient(target, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", socketPath, err)
	}
	return conn, nil
}

func invokeForward(ctx context.Context, conn *grpc.ClientConn, batch models.ArgumentBatch) error {
	values := make([]any, len(batch))
	for i, arg := range batch {
		values[i] = arg
	}
	list, err := structpb.NewList(values)
	if err != nil {
		return fmt.Errorf("encode batch: %w", err)
	}
	return conn.Invoke(ctx, forwardMethod, list, new(emptypb.Empty))
}

// QueryStatus asks the primary listening on socketPath for its status.
func QueryStatus(ctx context.Context, socketPath string) (map[string]any, error) {
	conn, err := dial(socketPath)
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	out := new(structpb.Struct)
	if err := conn.Invoke(ctx, statusMethod, new(emptypb.Empty), out); err != nil {
		return nil, fmt.Errorf("query status: %w", err)
	}
	return out.AsMap(), nil
}

// Ping reports whether a primary answers on socketPath.
func Ping(ctx context.Context, socketPath string) error {
	conn, err := dial(socketPath)
	if err != nil {
		return err
	}
	defer conn.Close()

	if err := conn.Invoke(ctx, pingMethod, new(emptypb.Empty), new(emptypb.Empty)); err != nil {
		return fmt.Errorf("ping: %w", err)
	}
	return nil
}
