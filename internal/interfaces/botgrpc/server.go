// Package botgrpc exposes the bot transition engine over gRPC, mirroring
// agentgrpc's server shape: a net/grpc listener with the service methods
// implemented directly against Go types, ready to wire to generated proto
// stubs once a .proto definition is added to the build.
package botgrpc

import (
	"context"
	"fmt"
	"net"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/meetbot/lifecycle-engine/internal/domain/bot"
	"github.com/meetbot/lifecycle-engine/internal/domain/engine"
	apperr "github.com/meetbot/lifecycle-engine/pkg/errors"
)

// HeartbeatStore is the narrow persistence port SetHeartbeat needs;
// satisfied by persistence.BotStore, same as the HTTP heartbeat handler.
type HeartbeatStore interface {
	SetHeartbeat(ctx context.Context, botID string, currentTimestamp int64) error
}

// Server implements the bot control gRPC surface: external callers (a
// meeting-platform adapter, an operator CLI) create events against a bot
// without going through the HTTP admin API.
type Server struct {
	engine    *engine.Engine
	heartbeat HeartbeatStore
	logger    *zap.Logger
	server    *grpc.Server
	port      int
}

func NewServer(eng *engine.Engine, heartbeat HeartbeatStore, port int, logger *zap.Logger) *Server {
	return &Server{
		engine:    eng,
		heartbeat: heartbeat,
		logger:    logger.With(zap.String("component", "bot-grpc")),
		port:      port,
	}
}

func (s *Server) Start() error {
	lis, err := net.Listen("tcp", fmt.Sprintf(":%d", s.port))
	if err != nil {
		return fmt.Errorf("listen port %d: %w", s.port, err)
	}

	s.server = grpc.NewServer()
	// Register would happen here once proto is generated:
	// pb.RegisterBotEngineServiceServer(s.server, s)

	s.logger.Info("Starting gRPC bot engine server", zap.Int("port", s.port))

	go func() {
		if err := s.server.Serve(lis); err != nil {
			s.logger.Error("gRPC server failed", zap.Error(err))
		}
	}()

	return nil
}

func (s *Server) Stop() {
	if s.server != nil {
		s.server.GracefulStop()
		s.logger.Info("gRPC bot engine server stopped")
	}
}

// CreateEventRequest is the inbound request for the CreateEvent RPC.
type CreateEventRequest struct {
	BotID        string         `json:"bot_id"`
	EventKind    int            `json:"event_kind"`
	EventSubkind *int           `json:"event_subkind,omitempty"`
	Metadata     map[string]any `json:"metadata,omitempty"`
}

// CreateEventResponse is the RPC response, pre-proto-generation shape.
type CreateEventResponse struct {
	EventID   string `json:"event_id"`
	OldState  string `json:"old_state"`
	NewState  string `json:"new_state"`
}

// CreateEvent runs the engine's transition logic. Exposed directly for now;
// once proto generation is wired, this becomes the gRPC handler body.
func (s *Server) CreateEvent(ctx context.Context, req *CreateEventRequest) (*CreateEventResponse, error) {
	if req.BotID == "" {
		return nil, status.Error(codes.InvalidArgument, "bot_id is required")
	}

	var subkind *bot.Subkind
	if req.EventSubkind != nil {
		v := bot.Subkind(*req.EventSubkind)
		subkind = &v
	}

	ev, err := s.engine.Apply(ctx, req.BotID, bot.EventKind(req.EventKind), subkind, req.Metadata)
	if err != nil {
		s.logger.Warn("gRPC CreateEvent failed", zap.String("bot_id", req.BotID), zap.Error(err))
		return nil, grpcStatusFor(err)
	}

	return &CreateEventResponse{
		EventID:  ev.ID,
		OldState: ev.OldState.APICode(),
		NewState: ev.NewState.APICode(),
	}, nil
}

// RecordRequestTakenRequest is the inbound request for the
// RecordRequestTaken RPC.
type RecordRequestTakenRequest struct {
	BotID string `json:"bot_id"`
}

// RecordRequestTaken stamps the last requester event for a bot as acted on.
// Exposed directly for now; becomes the gRPC handler body once proto
// generation is wired.
func (s *Server) RecordRequestTaken(ctx context.Context, req *RecordRequestTakenRequest) (*emptyResponse, error) {
	if req.BotID == "" {
		return nil, status.Error(codes.InvalidArgument, "bot_id is required")
	}
	if err := s.engine.RecordRequestTaken(ctx, req.BotID); err != nil {
		s.logger.Warn("gRPC RecordRequestTaken failed", zap.String("bot_id", req.BotID), zap.Error(err))
		return nil, grpcStatusFor(err)
	}
	return &emptyResponse{}, nil
}

// SetHeartbeatRequest is the inbound request for the SetHeartbeat RPC.
type SetHeartbeatRequest struct {
	BotID            string `json:"bot_id"`
	CurrentTimestamp int64  `json:"current_timestamp,omitempty"`
}

// SetHeartbeat records a liveness ping for a bot, defaulting the timestamp
// to now the same way the HTTP heartbeat handler does.
func (s *Server) SetHeartbeat(ctx context.Context, req *SetHeartbeatRequest) (*emptyResponse, error) {
	if req.BotID == "" {
		return nil, status.Error(codes.InvalidArgument, "bot_id is required")
	}
	ts := req.CurrentTimestamp
	if ts == 0 {
		ts = time.Now().Unix()
	}
	if err := s.heartbeat.SetHeartbeat(ctx, req.BotID, ts); err != nil {
		s.logger.Warn("gRPC SetHeartbeat failed", zap.String("bot_id", req.BotID), zap.Error(err))
		return nil, status.Error(codes.Internal, err.Error())
	}
	return &emptyResponse{}, nil
}

// emptyResponse is the pre-proto-generation stand-in for google.protobuf.Empty.
type emptyResponse struct{}

func grpcStatusFor(err error) error {
	switch {
	case apperr.IsNotFound(err):
		return status.Error(codes.NotFound, err.Error())
	case apperr.IsInvalidInput(err), apperr.IsInvalidEventCombination(err), apperr.IsInvariantViolation(err):
		return status.Error(codes.InvalidArgument, err.Error())
	case apperr.IsIllegalTransition(err), apperr.IsVersionConflict(err), apperr.IsConcurrentStateOverwrite(err):
		return status.Error(codes.FailedPrecondition, err.Error())
	default:
		return status.Error(codes.Internal, err.Error())
	}
}
