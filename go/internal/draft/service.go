package draft

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"

	"connectrpc.com/connect"
	"github.com/google/uuid"
	"github.com/mcdev12/draftroom/go/internal/draft/league"
	"github.com/mcdev12/draftroom/go/internal/draft/orchestrator"
	"github.com/mcdev12/draftroom/go/internal/draft/pick"
	"github.com/mcdev12/draftroom/go/internal/models"
	"github.com/rs/zerolog/log"
)

const (
	// DraftRoomServiceName is the fully-qualified name of the draft room service.
	DraftRoomServiceName = "draftroom.v1.DraftRoomService"

	ProposePickProcedure    = "/" + DraftRoomServiceName + "/ProposePick"
	GetCurrentTurnProcedure = "/" + DraftRoomServiceName + "/GetCurrentTurn"
	OnTimeoutTickProcedure  = "/" + DraftRoomServiceName + "/OnTimeoutTick"
	UndoLastPickProcedure   = "/" + DraftRoomServiceName + "/UndoLastPick"
	CreateLeagueProcedure   = "/" + DraftRoomServiceName + "/CreateLeague"
	StartDraftProcedure     = "/" + DraftRoomServiceName + "/StartDraft"
	PauseDraftProcedure     = "/" + DraftRoomServiceName + "/PauseDraft"
	ResumeDraftProcedure    = "/" + DraftRoomServiceName + "/ResumeDraft"
)

// PickApp defines what the service layer needs from the pick application
type PickApp interface {
	ProposePick(ctx context.Context, req pick.ProposePickRequest) (*pick.ProposePickResult, error)
	GetCurrentTurn(ctx context.Context, leagueID uuid.UUID) (*pick.Turn, error)
	UndoLastPick(ctx context.Context, leagueID uuid.UUID, actor models.Actor) (*models.DraftPick, error)
}

// LeagueApp defines what the service layer needs from the league application
type LeagueApp interface {
	CreateLeague(ctx context.Context, req league.CreateLeagueRequest) (*models.League, error)
	StartDraft(ctx context.Context, leagueID uuid.UUID, actor models.Actor) (*models.League, error)
	PauseDraft(ctx context.Context, leagueID uuid.UUID, reason string, actor models.Actor) (*models.League, error)
	ResumeDraft(ctx context.Context, leagueID uuid.UUID, actor models.Actor) (*models.League, error)
}

// TimeoutArbiter evaluates an expired pick on demand.
type TimeoutArbiter interface {
	OnTimeoutTick(ctx context.Context, leagueID uuid.UUID) (orchestrator.State, error)
}

// ActorMessage identifies the caller. The IP address is taken from the transport.
type ActorMessage struct {
	Type string `json:"type"`
	ID   string `json:"id,omitempty"`
}

type ProposePickRequest struct {
	LeagueID  string       `json:"league_id"`
	CaptainID string       `json:"captain_id"`
	PlayerID  string       `json:"player_id"`
	Actor     ActorMessage `json:"actor"`
	// ExpectedPickNumber pins the pick to the turn the client saw. Optional.
	ExpectedPickNumber *int `json:"expected_pick_number,omitempty"`
}

type GetCurrentTurnRequest struct {
	LeagueID string `json:"league_id"`
}

type OnTimeoutTickRequest struct {
	LeagueID string `json:"league_id"`
}

type OnTimeoutTickResponse struct {
	State orchestrator.State `json:"state"`
}

// LeagueRequest is shared by the lifecycle and undo procedures.
type LeagueRequest struct {
	LeagueID string       `json:"league_id"`
	Actor    ActorMessage `json:"actor"`
	// Reason is only read by PauseDraft.
	Reason string `json:"reason,omitempty"`
}

type LeagueResponse struct {
	League *models.League `json:"league"`
}

type UndoLastPickResponse struct {
	// Pick is nil when the undone slot had been skipped.
	Pick *models.DraftPick `json:"pick,omitempty"`
}

// Service implements the DraftRoomService Connect procedures
type Service struct {
	picks   PickApp
	leagues LeagueApp
	arbiter TimeoutArbiter
}

// NewService creates a new draft room service
func NewService(picks PickApp, leagues LeagueApp, arbiter TimeoutArbiter) *Service {
	return &Service{
		picks:   picks,
		leagues: leagues,
		arbiter: arbiter,
	}
}

// NewHandler builds an HTTP handler serving every DraftRoomService procedure, returning the
// path to mount it on.
func NewHandler(svc *Service, opts ...connect.HandlerOption) (string, http.Handler) {
	opts = append([]connect.HandlerOption{WithJSONCodec()}, opts...)

	mux := http.NewServeMux()
	mux.Handle(ProposePickProcedure, connect.NewUnaryHandler(ProposePickProcedure, svc.ProposePick, opts...))
	mux.Handle(GetCurrentTurnProcedure, connect.NewUnaryHandler(GetCurrentTurnProcedure, svc.GetCurrentTurn, opts...))
	mux.Handle(OnTimeoutTickProcedure, connect.NewUnaryHandler(OnTimeoutTickProcedure, svc.OnTimeoutTick, opts...))
	mux.Handle(UndoLastPickProcedure, connect.NewUnaryHandler(UndoLastPickProcedure, svc.UndoLastPick, opts...))
	mux.Handle(CreateLeagueProcedure, connect.NewUnaryHandler(CreateLeagueProcedure, svc.CreateLeague, opts...))
	mux.Handle(StartDraftProcedure, connect.NewUnaryHandler(StartDraftProcedure, svc.StartDraft, opts...))
	mux.Handle(PauseDraftProcedure, connect.NewUnaryHandler(PauseDraftProcedure, svc.PauseDraft, opts...))
	mux.Handle(ResumeDraftProcedure, connect.NewUnaryHandler(ResumeDraftProcedure, svc.ResumeDraft, opts...))
	return "/" + DraftRoomServiceName + "/", mux
}

// ProposePick claims a player for the captain on the clock
func (s *Service) ProposePick(ctx context.Context, req *connect.Request[ProposePickRequest]) (*connect.Response[pick.ProposePickResult], error) {
	leagueID, err := parseID("league_id", req.Msg.LeagueID)
	if err != nil {
		return nil, err
	}
	captainID, err := parseID("captain_id", req.Msg.CaptainID)
	if err != nil {
		return nil, err
	}
	playerID, err := parseID("player_id", req.Msg.PlayerID)
	if err != nil {
		return nil, err
	}
	actor, err := actorFromRequest(req.Msg.Actor, req.Header(), req.Peer())
	if err != nil {
		return nil, err
	}

	res, err := s.picks.ProposePick(ctx, pick.ProposePickRequest{
		LeagueID:  leagueID,
		CaptainID: captainID,
		PlayerID:  playerID,
		Actor:     actor,

		ExpectedPickNumber: req.Msg.ExpectedPickNumber,
	})
	if err != nil {
		return nil, toConnectError(err)
	}
	return connect.NewResponse(res), nil
}

// GetCurrentTurn returns who is on the clock and their deadline
func (s *Service) GetCurrentTurn(ctx context.Context, req *connect.Request[GetCurrentTurnRequest]) (*connect.Response[pick.Turn], error) {
	leagueID, err := parseID("league_id", req.Msg.LeagueID)
	if err != nil {
		return nil, err
	}
	turn, err := s.picks.GetCurrentTurn(ctx, leagueID)
	if err != nil {
		return nil, toConnectError(err)
	}
	return connect.NewResponse(turn), nil
}

// OnTimeoutTick forces evaluation of the league's pick timer
func (s *Service) OnTimeoutTick(ctx context.Context, req *connect.Request[OnTimeoutTickRequest]) (*connect.Response[OnTimeoutTickResponse], error) {
	leagueID, err := parseID("league_id", req.Msg.LeagueID)
	if err != nil {
		return nil, err
	}
	if s.arbiter == nil {
		return nil, connect.NewError(connect.CodeUnimplemented, errors.New("timeout arbiter is not running"))
	}
	state, err := s.arbiter.OnTimeoutTick(ctx, leagueID)
	if err != nil {
		return nil, toConnectError(err)
	}
	return connect.NewResponse(&OnTimeoutTickResponse{State: state}), nil
}

// UndoLastPick removes the most recent pick and puts its captain back on the clock
func (s *Service) UndoLastPick(ctx context.Context, req *connect.Request[LeagueRequest]) (*connect.Response[UndoLastPickResponse], error) {
	leagueID, actor, err := s.leagueRequest(req)
	if err != nil {
		return nil, err
	}
	undone, err := s.picks.UndoLastPick(ctx, leagueID, actor)
	if err != nil {
		return nil, toConnectError(err)
	}
	return connect.NewResponse(&UndoLastPickResponse{Pick: undone}), nil
}

// CreateLeague stores a new league with its captains and player pool
func (s *Service) CreateLeague(ctx context.Context, req *connect.Request[league.CreateLeagueRequest]) (*connect.Response[LeagueResponse], error) {
	created, err := s.leagues.CreateLeague(ctx, *req.Msg)
	if err != nil {
		return nil, toConnectError(err)
	}
	return connect.NewResponse(&LeagueResponse{League: created}), nil
}

// StartDraft starts the draft
func (s *Service) StartDraft(ctx context.Context, req *connect.Request[LeagueRequest]) (*connect.Response[LeagueResponse], error) {
	leagueID, actor, err := s.leagueRequest(req)
	if err != nil {
		return nil, err
	}
	l, err := s.leagues.StartDraft(ctx, leagueID, actor)
	if err != nil {
		return nil, toConnectError(err)
	}
	return connect.NewResponse(&LeagueResponse{League: l}), nil
}

// PauseDraft pauses the draft
func (s *Service) PauseDraft(ctx context.Context, req *connect.Request[LeagueRequest]) (*connect.Response[LeagueResponse], error) {
	leagueID, actor, err := s.leagueRequest(req)
	if err != nil {
		return nil, err
	}
	l, err := s.leagues.PauseDraft(ctx, leagueID, req.Msg.Reason, actor)
	if err != nil {
		return nil, toConnectError(err)
	}
	return connect.NewResponse(&LeagueResponse{League: l}), nil
}

// ResumeDraft resumes a paused draft
func (s *Service) ResumeDraft(ctx context.Context, req *connect.Request[LeagueRequest]) (*connect.Response[LeagueResponse], error) {
	leagueID, actor, err := s.leagueRequest(req)
	if err != nil {
		return nil, err
	}
	l, err := s.leagues.ResumeDraft(ctx, leagueID, actor)
	if err != nil {
		return nil, toConnectError(err)
	}
	return connect.NewResponse(&LeagueResponse{League: l}), nil
}

func (s *Service) leagueRequest(req *connect.Request[LeagueRequest]) (uuid.UUID, models.Actor, error) {
	leagueID, err := parseID("league_id", req.Msg.LeagueID)
	if err != nil {
		return uuid.Nil, models.Actor{}, err
	}
	actor, err := actorFromRequest(req.Msg.Actor, req.Header(), req.Peer())
	if err != nil {
		return uuid.Nil, models.Actor{}, err
	}
	return leagueID, actor, nil
}

func parseID(field, value string) (uuid.UUID, error) {
	id, err := uuid.Parse(value)
	if err != nil {
		return uuid.Nil, connect.NewError(connect.CodeInvalidArgument, fmt.Errorf("invalid %s: %w", field, err))
	}
	return id, nil
}

// actorFromRequest builds the audited caller identity. Clients cannot claim to be the system.
func actorFromRequest(msg ActorMessage, header http.Header, peer connect.Peer) (models.Actor, error) {
	actor := models.Actor{Type: models.ActorType(msg.Type)}
	switch actor.Type {
	case models.ActorManager, models.ActorCaptain, models.ActorPlayer:
	default:
		return models.Actor{}, connect.NewError(connect.CodeInvalidArgument, fmt.Errorf("invalid actor type %q", msg.Type))
	}
	if msg.ID != "" {
		id, err := parseID("actor.id", msg.ID)
		if err != nil {
			return models.Actor{}, err
		}
		actor.ID = &id
	}
	actor.IP = clientIP(header, peer)
	return actor, nil
}

// clientIP prefers the first X-Forwarded-For hop and falls back to the peer address.
func clientIP(header http.Header, peer connect.Peer) string {
	if fwd := header.Get("X-Forwarded-For"); fwd != "" {
		first, _, _ := strings.Cut(fwd, ",")
		if ip := net.ParseIP(strings.TrimSpace(first)); ip != nil {
			return ip.String()
		}
	}
	host, _, err := net.SplitHostPort(peer.Addr)
	if err != nil {
		host = peer.Addr
	}
	if ip := net.ParseIP(host); ip != nil {
		return ip.String()
	}
	return ""
}

func toConnectError(err error) error {
	var commitErr *pick.CommitError
	switch {
	case errors.As(err, &commitErr):
		log.Error().Err(err).Msg("pick commit failed")
		return connect.NewError(connect.CodeInternal, err)
	case errors.Is(err, pick.ErrNotFound):
		return connect.NewError(connect.CodeNotFound, err)
	case errors.Is(err, pick.ErrInvalidRequest), errors.Is(err, league.ErrInvalidSettings):
		return connect.NewError(connect.CodeInvalidArgument, err)
	case errors.Is(err, league.ErrInvalidTransition), errors.Is(err, pick.ErrNothingToUndo):
		return connect.NewError(connect.CodeFailedPrecondition, err)
	case errors.Is(err, pick.ErrRaceLost):
		return connect.NewError(connect.CodeAborted, err)
	default:
		log.Error().Err(err).Msg("draft room request failed")
		return connect.NewError(connect.CodeInternal, err)
	}
}
