// Package memstore is an in-memory store for the draft room. It backs the dev server and
// tests, and can inject faults before any write.
package memstore

import (
	"cmp"
	"context"
	"slices"
	"sync"

	"github.com/google/uuid"
	"github.com/mcdev12/draftroom/go/internal/draft/pick"
	"github.com/mcdev12/draftroom/go/internal/models"
)

// Op names a store operation for fault injection and hooks.
type Op string

const (
	OpGetLeague      Op = "get_league"
	OpInsertPick     Op = "insert_pick"
	OpMarkPlayer     Op = "mark_player"
	OpUpdateTurn     Op = "update_turn"
	OpDeletePick     Op = "delete_pick"
	OpClearPlayer    Op = "clear_player"
	OpCaptainTimeout Op = "captain_timeout"
	OpInsertAudit    Op = "insert_audit"
)

type pickKey struct {
	leagueID   uuid.UUID
	pickNumber int
}

type fault struct {
	err  error
	once bool
}

// Store implements pick.PickRepository and the audit repository in memory.
type Store struct {
	mu       sync.Mutex
	leagues  map[uuid.UUID]*models.League
	captains map[uuid.UUID]*models.Captain
	players  map[uuid.UUID]*models.Player
	picks    map[pickKey]models.DraftPick
	audit    []models.AuditLog

	faults map[Op]fault
	hooks  map[Op]func()
}

// New creates an empty store.
func New() *Store {
	return &Store{
		leagues:  make(map[uuid.UUID]*models.League),
		captains: make(map[uuid.UUID]*models.Captain),
		players:  make(map[uuid.UUID]*models.Player),
		picks:    make(map[pickKey]models.DraftPick),
		faults:   make(map[Op]fault),
		hooks:    make(map[Op]func()),
	}
}

// Fail makes every call to op return err until ClearFaults.
func (s *Store) Fail(op Op, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.faults[op] = fault{err: err}
}

// FailOnce makes the next call to op return err.
func (s *Store) FailOnce(op Op, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.faults[op] = fault{err: err, once: true}
}

// ClearFaults removes all injected faults.
func (s *Store) ClearFaults() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.faults = make(map[Op]fault)
}

// Before registers fn to run before op takes the store lock. fn may call back into the store.
func (s *Store) Before(op Op, fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hooks[op] = fn
}

// enter runs the hook for op and returns the store locked, or an injected fault.
func (s *Store) enter(op Op) error {
	s.mu.Lock()
	hook := s.hooks[op]
	s.mu.Unlock()
	if hook != nil {
		hook()
	}

	s.mu.Lock()
	if f, ok := s.faults[op]; ok {
		if f.once {
			delete(s.faults, op)
		}
		s.mu.Unlock()
		return f.err
	}
	return nil
}

// CreateLeague seeds a league with its captains and players. The draft order follows draft position.
func (s *Store) CreateLeague(_ context.Context, league models.League, captains []models.Captain, players []models.Player) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ordered := slices.Clone(captains)
	slices.SortFunc(ordered, func(a, b models.Captain) int {
		return cmp.Compare(a.DraftPosition, b.DraftPosition)
	})

	league.DraftOrder = make([]uuid.UUID, 0, len(ordered))
	for _, c := range ordered {
		c.LeagueID = league.ID
		s.captains[c.ID] = &c
		league.DraftOrder = append(league.DraftOrder, c.ID)
	}
	for _, p := range players {
		p.LeagueID = cmp.Or(p.LeagueID, league.ID)
		s.players[p.ID] = &p
	}
	if league.Status == "" {
		league.Status = models.LeagueStatusNotStarted
	}
	s.leagues[league.ID] = &league
	return nil
}

// SetLeague overwrites the stored league row, keeping its draft order.
func (s *Store) SetLeague(league models.League) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.leagues[league.ID]; ok && league.DraftOrder == nil {
		league.DraftOrder = existing.DraftOrder
	}
	s.leagues[league.ID] = &league
}

// AuditLogs returns every persisted audit entry in insertion order.
func (s *Store) AuditLogs() []models.AuditLog {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.audit)
}

func (s *Store) GetLeague(_ context.Context, leagueID uuid.UUID) (*models.League, error) {
	if err := s.enter(OpGetLeague); err != nil {
		return nil, err
	}
	defer s.mu.Unlock()

	l, ok := s.leagues[leagueID]
	if !ok {
		return nil, pick.ErrNotFound
	}
	cp := *l
	cp.DraftOrder = slices.Clone(l.DraftOrder)
	return &cp, nil
}

func (s *Store) ListLeaguesByStatus(_ context.Context, status models.LeagueStatus) ([]models.League, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var leagues []models.League
	for _, l := range s.leagues {
		if l.Status == status {
			cp := *l
			cp.DraftOrder = slices.Clone(l.DraftOrder)
			leagues = append(leagues, cp)
		}
	}
	slices.SortFunc(leagues, func(a, b models.League) int {
		return cmp.Compare(a.ID.String(), b.ID.String())
	})
	return leagues, nil
}

func (s *Store) ListCaptains(_ context.Context, leagueID uuid.UUID) ([]models.Captain, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var captains []models.Captain
	for _, c := range s.captains {
		if c.LeagueID == leagueID {
			captains = append(captains, *c)
		}
	}
	slices.SortFunc(captains, func(a, b models.Captain) int {
		return cmp.Compare(a.DraftPosition, b.DraftPosition)
	})
	return captains, nil
}

func (s *Store) GetPlayer(_ context.Context, playerID uuid.UUID) (*models.Player, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.players[playerID]
	if !ok {
		return nil, pick.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (s *Store) ListAvailablePlayers(_ context.Context, leagueID uuid.UUID) ([]models.Player, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var players []models.Player
	for _, p := range s.players {
		if p.LeagueID == leagueID && !p.IsDrafted() {
			players = append(players, *p)
		}
	}
	slices.SortFunc(players, func(a, b models.Player) int {
		return cmp.Or(
			cmp.Compare(a.Rank, b.Rank),
			cmp.Compare(a.FullName, b.FullName),
			cmp.Compare(a.ID.String(), b.ID.String()),
		)
	})
	return players, nil
}

func (s *Store) GetPick(_ context.Context, leagueID uuid.UUID, pickNumber int) (*models.DraftPick, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.picks[pickKey{leagueID, pickNumber}]
	if !ok {
		return nil, pick.ErrNotFound
	}
	return &p, nil
}

func (s *Store) ListPicks(_ context.Context, leagueID uuid.UUID) ([]models.DraftPick, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var picks []models.DraftPick
	for k, p := range s.picks {
		if k.leagueID == leagueID {
			picks = append(picks, p)
		}
	}
	slices.SortFunc(picks, func(a, b models.DraftPick) int {
		return cmp.Compare(a.PickNumber, b.PickNumber)
	})
	return picks, nil
}

func (s *Store) InsertPick(_ context.Context, p models.DraftPick) error {
	if err := s.enter(OpInsertPick); err != nil {
		return err
	}
	defer s.mu.Unlock()

	key := pickKey{p.LeagueID, p.PickNumber}
	if _, ok := s.picks[key]; ok {
		return pick.ErrPickExists
	}
	s.picks[key] = p
	return nil
}

func (s *Store) MarkPlayerDrafted(_ context.Context, leagueID, playerID, captainID uuid.UUID, pickNumber int) (bool, error) {
	if err := s.enter(OpMarkPlayer); err != nil {
		return false, err
	}
	defer s.mu.Unlock()

	p, ok := s.players[playerID]
	if !ok || p.LeagueID != leagueID || p.DraftedByCaptainID != nil {
		return false, nil
	}
	p.DraftedByCaptainID = &captainID
	p.DraftPickNumber = &pickNumber
	return true, nil
}

func (s *Store) UpdateTurn(_ context.Context, upd pick.TurnUpdate) (bool, error) {
	if err := s.enter(OpUpdateTurn); err != nil {
		return false, err
	}
	defer s.mu.Unlock()

	l, ok := s.leagues[upd.LeagueID]
	if !ok || l.CurrentPickIndex != upd.ExpectedIndex || l.Status != upd.ExpectedStatus {
		return false, nil
	}
	l.CurrentPickIndex = upd.NextIndex
	l.Status = upd.NextStatus
	l.CurrentPickStartedAt = upd.PickStartedAt
	return true, nil
}

func (s *Store) DeletePick(_ context.Context, leagueID uuid.UUID, pickNumber int) error {
	if err := s.enter(OpDeletePick); err != nil {
		return err
	}
	defer s.mu.Unlock()

	delete(s.picks, pickKey{leagueID, pickNumber})
	return nil
}

func (s *Store) ClearPlayerDrafted(_ context.Context, playerID, captainID uuid.UUID, pickNumber int) error {
	if err := s.enter(OpClearPlayer); err != nil {
		return err
	}
	defer s.mu.Unlock()

	p, ok := s.players[playerID]
	if !ok || p.DraftedByCaptainID == nil || *p.DraftedByCaptainID != captainID ||
		p.DraftPickNumber == nil || *p.DraftPickNumber != pickNumber {
		return nil
	}
	p.DraftedByCaptainID = nil
	p.DraftPickNumber = nil
	return nil
}

func (s *Store) UpdateCaptainTimeouts(_ context.Context, captainID uuid.UUID, timedOut bool) error {
	if err := s.enter(OpCaptainTimeout); err != nil {
		return err
	}
	defer s.mu.Unlock()

	c, ok := s.captains[captainID]
	if !ok {
		return pick.ErrNotFound
	}
	if timedOut {
		c.ConsecutiveTimeoutPicks++
	} else {
		c.ConsecutiveTimeoutPicks = 0
	}
	return nil
}

func (s *Store) DecrementCaptainTimeouts(_ context.Context, captainID uuid.UUID) error {
	if err := s.enter(OpCaptainTimeout); err != nil {
		return err
	}
	defer s.mu.Unlock()

	c, ok := s.captains[captainID]
	if !ok {
		return pick.ErrNotFound
	}
	if c.ConsecutiveTimeoutPicks > 0 {
		c.ConsecutiveTimeoutPicks--
	}
	return nil
}

// InsertAuditLog appends an audit entry.
func (s *Store) InsertAuditLog(_ context.Context, entry models.AuditLog) error {
	if err := s.enter(OpInsertAudit); err != nil {
		return err
	}
	defer s.mu.Unlock()

	s.audit = append(s.audit, entry)
	return nil
}

var _ pick.PickRepository = (*Store)(nil)
