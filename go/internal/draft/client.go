package draft

import (
	"strings"

	"connectrpc.com/connect"
	"github.com/mcdev12/draftroom/go/internal/draft/league"
	"github.com/mcdev12/draftroom/go/internal/draft/pick"
)

// Client is a typed DraftRoomService client.
type Client struct {
	ProposePick    *connect.Client[ProposePickRequest, pick.ProposePickResult]
	GetCurrentTurn *connect.Client[GetCurrentTurnRequest, pick.Turn]
	OnTimeoutTick  *connect.Client[OnTimeoutTickRequest, OnTimeoutTickResponse]
	UndoLastPick   *connect.Client[LeagueRequest, UndoLastPickResponse]
	CreateLeague   *connect.Client[league.CreateLeagueRequest, LeagueResponse]
	StartDraft     *connect.Client[LeagueRequest, LeagueResponse]
	PauseDraft     *connect.Client[LeagueRequest, LeagueResponse]
	ResumeDraft    *connect.Client[LeagueRequest, LeagueResponse]
}

// NewClient constructs a client for the service at baseURL, e.g. http://localhost:8080.
func NewClient(httpClient connect.HTTPClient, baseURL string, opts ...connect.ClientOption) *Client {
	baseURL = strings.TrimRight(baseURL, "/")
	opts = append([]connect.ClientOption{WithJSONCodec()}, opts...)
	return &Client{
		ProposePick:    connect.NewClient[ProposePickRequest, pick.ProposePickResult](httpClient, baseURL+ProposePickProcedure, opts...),
		GetCurrentTurn: connect.NewClient[GetCurrentTurnRequest, pick.Turn](httpClient, baseURL+GetCurrentTurnProcedure, opts...),
		OnTimeoutTick:  connect.NewClient[OnTimeoutTickRequest, OnTimeoutTickResponse](httpClient, baseURL+OnTimeoutTickProcedure, opts...),
		UndoLastPick:   connect.NewClient[LeagueRequest, UndoLastPickResponse](httpClient, baseURL+UndoLastPickProcedure, opts...),
		CreateLeague:   connect.NewClient[league.CreateLeagueRequest, LeagueResponse](httpClient, baseURL+CreateLeagueProcedure, opts...),
		StartDraft:     connect.NewClient[LeagueRequest, LeagueResponse](httpClient, baseURL+StartDraftProcedure, opts...),
		PauseDraft:     connect.NewClient[LeagueRequest, LeagueResponse](httpClient, baseURL+PauseDraftProcedure, opts...),
		ResumeDraft:    connect.NewClient[LeagueRequest, LeagueResponse](httpClient, baseURL+ResumeDraftProcedure, opts...),
	}
}
