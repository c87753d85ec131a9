package verify

import (
	"context"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/secureentry/secureentry/internal/grpcapi"
)

// GRPCClient calls the unary Verify method with Struct messages.
type GRPCClient struct {
	conn    grpc.ClientConnInterface
	kioskID string
}

func NewGRPCClient(conn grpc.ClientConnInterface, kioskID string) *GRPCClient {
	return &GRPCClient{conn: conn, kioskID: kioskID}
}

// DialGRPC opens a plaintext client connection to addr.
func DialGRPC(addr string) (*grpc.ClientConn, error) {
	return grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
}

func (c *GRPCClient) Verify(ctx context.Context, image []byte, takenAt time.Time) (Decision, error) {
	in, err := structpb.NewStruct(map[string]any{
		"image":     DataURI(image),
		"timestamp": takenAt.UTC().Format(time.RFC3339),
		"kiosk_id":  c.kioskID,
	})
	if err != nil {
		return Decision{}, &TransportError{Op: "encode", Err: err}
	}
	if c.kioskID != "" {
		ctx = metadata.AppendToOutgoingContext(ctx, grpcapi.KioskMetadataKey, c.kioskID)
	}

	out := new(structpb.Struct)
	if err := c.conn.Invoke(ctx, grpcapi.VerifyMethod, in, out); err != nil {
		return Decision{}, &TransportError{Op: "invoke", Err: err}
	}

	v, ok := out.GetFields()["granted"]
	if !ok {
		return Decision{}, &MalformedResponseError{Reason: "granted is missing"}
	}
	b, ok := v.GetKind().(*structpb.Value_BoolValue)
	if !ok {
		return Decision{}, &MalformedResponseError{Reason: "granted is not a boolean"}
	}
	return Decision{Granted: b.BoolValue}, nil
}
