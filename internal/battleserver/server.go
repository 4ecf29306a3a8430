package battleserver

import (
	"context"
	"encoding/json"
	"errors"

	"go.uber.org/zap"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/cory-johannsen/legendraid/internal/battle"
)

// Engines resolves the engine serving a battle mode.
type Engines interface {
	Engine(mode battle.Mode) (battle.Engine, error)
}

// RaidSetup creates raids and waits for their tables.
type RaidSetup interface {
	CreateRaid(ctx context.Context, userID, bossID string, team []battle.PartySlot) (*battle.RaidRecord, error)
	AwaitSetup(ctx context.Context, battleID, userID string) (battle.Snapshot, error)
}

// DuelSetup creates duels.
type DuelSetup interface {
	CreateDuel(ctx context.Context, userID, challengerID, opponentID string) (*battle.DuelRecord, error)
}

// Server implements BattleServiceServer on top of the battle engines.
type Server struct {
	engines Engines
	raids   RaidSetup
	duels   DuelSetup
	logger  *zap.Logger
}

// NewServer creates a Server.
//
// Precondition: every argument must be non-nil.
func NewServer(engines *battle.Router, raids *battle.RaidEngine, duels *battle.DuelEngine, logger *zap.Logger) *Server {
	return newServer(engines, raids, duels, logger)
}

func newServer(engines Engines, raids RaidSetup, duels DuelSetup, logger *zap.Logger) *Server {
	return &Server{engines: engines, raids: raids, duels: duels, logger: logger}
}

type battleRequest struct {
	Mode     battle.Mode `json:"mode"`
	BattleID string      `json:"battleId"`
	Choice   *int        `json:"choice"`
}

type createRaidRequest struct {
	BossID string             `json:"bossId"`
	Party  []battle.PartySlot `json:"party"`
}

type createDuelRequest struct {
	ChallengerID string `json:"challengerId"`
	OpponentID   string `json:"opponentId"`
}

type created struct {
	Mode     battle.Mode `json:"mode"`
	BattleID string      `json:"battleId"`
	Status   string      `json:"status,omitempty"`
}

// Load returns the current snapshot of a battle.
func (s *Server) Load(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	user, req, engine, err := s.battleCall(ctx, in)
	if err != nil {
		return nil, err
	}
	return s.reply("Load", req.BattleID, func() (any, error) { return engine.Load(ctx, req.BattleID, user) })
}

// Act applies one player action. The request must carry a choice.
func (s *Server) Act(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	user, req, engine, err := s.battleCall(ctx, in)
	if err != nil {
		return nil, err
	}
	if req.Choice == nil {
		return nil, status.Error(codes.InvalidArgument, "choice is required")
	}
	return s.reply("Act", req.BattleID, func() (any, error) { return engine.Act(ctx, req.BattleID, user, *req.Choice) })
}

// Forfeit ends a battle as forfeited.
func (s *Server) Forfeit(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	user, req, engine, err := s.battleCall(ctx, in)
	if err != nil {
		return nil, err
	}
	return s.reply("Forfeit", req.BattleID, func() (any, error) { return engine.Forfeit(ctx, req.BattleID, user) })
}

// CreateRaid stores a pending raid and starts its setup.
func (s *Server) CreateRaid(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	user, err := userID(ctx)
	if err != nil {
		return nil, err
	}
	var req createRaidRequest
	if err := decode(in, &req); err != nil {
		return nil, err
	}
	return s.reply("CreateRaid", "", func() (any, error) {
		rec, err := s.raids.CreateRaid(ctx, user, req.BossID, req.Party)
		if err != nil {
			return nil, err
		}
		return created{Mode: battle.ModeRaid, BattleID: rec.ID, Status: string(rec.Status)}, nil
	})
}

// AwaitSetup blocks until a raid is ready or its setup fails.
func (s *Server) AwaitSetup(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	user, err := userID(ctx)
	if err != nil {
		return nil, err
	}
	var req battleRequest
	if err := decode(in, &req); err != nil {
		return nil, err
	}
	return s.reply("AwaitSetup", req.BattleID, func() (any, error) { return s.raids.AwaitSetup(ctx, req.BattleID, user) })
}

// CreateDuel stores a new duel between two characters.
func (s *Server) CreateDuel(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	user, err := userID(ctx)
	if err != nil {
		return nil, err
	}
	var req createDuelRequest
	if err := decode(in, &req); err != nil {
		return nil, err
	}
	return s.reply("CreateDuel", "", func() (any, error) {
		rec, err := s.duels.CreateDuel(ctx, user, req.ChallengerID, req.OpponentID)
		if err != nil {
			return nil, err
		}
		return created{Mode: battle.ModeDuel, BattleID: rec.ID}, nil
	})
}

func (s *Server) battleCall(ctx context.Context, in *structpb.Struct) (string, battleRequest, battle.Engine, error) {
	var req battleRequest
	user, err := userID(ctx)
	if err != nil {
		return "", req, nil, err
	}
	if err := decode(in, &req); err != nil {
		return "", req, nil, err
	}
	if req.BattleID == "" {
		return "", req, nil, status.Error(codes.InvalidArgument, "battleId is required")
	}
	engine, err := s.engines.Engine(req.Mode)
	if err != nil {
		return "", req, nil, toStatus(err).Err()
	}
	return user, req, engine, nil
}

func (s *Server) reply(method, battleID string, fn func() (any, error)) (*structpb.Struct, error) {
	out, err := fn()
	if snap, ok := out.(battle.Snapshot); ok && snap.Terminal && errors.Is(err, battle.ErrNotDurable) {
		// The ending is shown now; Durable stays false until a later call lands the write.
		s.logger.Warn("battle ended without a durable write",
			zap.String("method", method),
			zap.String("battle_id", battleID),
			zap.Error(err),
		)
		return encode(snap)
	}
	if err != nil {
		st := toStatus(err)
		if st.Code() == codes.Internal {
			s.logger.Error("battle call failed",
				zap.String("method", method),
				zap.String("battle_id", battleID),
				zap.Error(err),
			)
		}
		return nil, st.Err()
	}
	return encode(out)
}

func userID(ctx context.Context) (string, error) {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return "", status.Error(codes.Unauthenticated, "missing metadata")
	}
	vals := md.Get(UserIDKey)
	if len(vals) == 0 || vals[0] == "" {
		return "", status.Errorf(codes.Unauthenticated, "missing %s", UserIDKey)
	}
	return vals[0], nil
}

func decode(in *structpb.Struct, dst any) error {
	b, err := json.Marshal(in.AsMap())
	if err != nil {
		return status.Errorf(codes.InvalidArgument, "reading request: %v", err)
	}
	if err := json.Unmarshal(b, dst); err != nil {
		return status.Errorf(codes.InvalidArgument, "decoding request: %v", err)
	}
	return nil
}

func encode(v any) (*structpb.Struct, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "encoding response: %v", err)
	}
	var m map[string]any
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, status.Errorf(codes.Internal, "encoding response: %v", err)
	}
	out, err := structpb.NewStruct(m)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "encoding response: %v", err)
	}
	return out, nil
}

// toStatus maps battle errors to gRPC statuses.
func toStatus(err error) *status.Status {
	code := codes.Internal
	switch {
	case errors.Is(err, context.Canceled):
		code = codes.Canceled
	case errors.Is(err, context.DeadlineExceeded):
		code = codes.DeadlineExceeded
	case errors.Is(err, battle.ErrSessionLost):
		code = codes.Aborted
	case errors.Is(err, battle.ErrPermission):
		code = codes.PermissionDenied
	case errors.Is(err, battle.ErrInvalidSkill), errors.Is(err, battle.ErrInvalidRequest):
		code = codes.InvalidArgument
	case errors.Is(err, battle.ErrNotFound):
		code = codes.NotFound
	case errors.Is(err, battle.ErrSetupPending), errors.Is(err, battle.ErrNotDurable):
		code = codes.Unavailable
	case errors.Is(err, battle.ErrAlreadyStarted):
		code = codes.FailedPrecondition
	}
	return status.New(code, err.Error())
}
