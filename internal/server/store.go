package server

import (
	"errors"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"
)

var (
	errGameNotFound      = errors.New("game not found")
	errPlayerNotFound    = errors.New("player not found")
	errTeamNotFound      = errors.New("team not found")
	errNicknameTaken     = errors.New("nickname already taken")
	errTeamNameTaken     = errors.New("team name already taken")
	errAlreadyOnTeam     = errors.New("player already belongs to a team")
	errNotOnTeam         = errors.New("player does not belong to a team")
	errGameAlreadyActive = errors.New("game already started")
	errTeamLimitReached  = errors.New("team limit reached")
)

// Store is the authoritative in-memory state for running games. All
// mutations go through the store mutex, which is what makes roster checks
// and balance updates atomic on a single instance.
type Store struct {
	mu           sync.Mutex
	nextGameID   int
	nextPlayerID int
	nextTeamID   int
	games        map[string]*Game
}

func NewStore() *Store {
	return &Store{
		nextGameID:   1,
		nextPlayerID: 1,
		nextTeamID:   1,
		games:        make(map[string]*Game),
	}
}

func (s *Store) CreateGame(initialCents int64, durationMinutes, maxTeams int) *Game {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := "game-" + strconv.Itoa(s.nextGameID)
	s.nextGameID++
	game := &Game{
		ID:               id,
		JoinCode:         s.uniqueJoinCodeLocked(),
		Status:           statusLobby,
		InitialCents:     initialCents,
		CurrentCents:     initialCents,
		MaxTeams:         maxTeams,
		DurationMinutes:  durationMinutes,
		CreatedAt:        timeNowUTC(),
		PlayerAuthTokens: make(map[int]string),
	}
	s.games[id] = game
	return game
}

func (s *Store) uniqueJoinCodeLocked() string {
	for {
		code := newJoinCode()
		taken := false
		for _, game := range s.games {
			if game.JoinCode == code && game.Status != statusFinished {
				taken = true
				break
			}
		}
		if !taken {
			return code
		}
	}
}

func (s *Store) GetGame(id string) (*Game, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	game, ok := s.games[id]
	return game, ok
}

func (s *Store) FindGameByJoinCode(code string) (*Game, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, game := range s.games {
		if game.JoinCode == code && game.Status != statusFinished {
			return game, true
		}
	}
	return nil, false
}

func (s *Store) UpdateGame(id string, update func(game *Game) error) (*Game, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	game, ok := s.games[id]
	if !ok {
		return nil, errGameNotFound
	}
	if err := update(game); err != nil {
		return nil, err
	}
	return game, nil
}

// AddPlayer joins a player to a lobby by game id or join code. The nickname
// check here is advisory; with persistence enabled the database unique index
// remains the authoritative arbiter and the caller rolls back on violation.
func (s *Store) AddPlayer(gameIDOrCode, nickname string) (*Game, *Player, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	game, ok := s.games[gameIDOrCode]
	if !ok {
		for _, candidate := range s.games {
			if candidate.JoinCode == gameIDOrCode && candidate.Status != statusFinished {
				game = candidate
				ok = true
				break
			}
		}
	}
	if !ok {
		return nil, nil, errGameNotFound
	}
	if game.Status != statusLobby {
		return nil, nil, errGameAlreadyActive
	}
	for i := range game.Players {
		if game.Players[i].Nickname == nickname {
			return nil, nil, errNicknameTaken
		}
	}

	player := Player{
		ID:       s.nextPlayerID,
		Nickname: nickname,
		JoinedAt: timeNowUTC(),
	}
	s.nextPlayerID++
	game.Players = append(game.Players, player)
	return game, &game.Players[len(game.Players)-1], nil
}

// RemovePlayer undoes an AddPlayer after a persistence-level uniqueness
// violation.
func (s *Store) RemovePlayer(gameID string, playerID int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	game, ok := s.games[gameID]
	if !ok {
		return
	}
	for i := range game.Players {
		if game.Players[i].ID == playerID {
			game.Players = append(game.Players[:i], game.Players[i+1:]...)
			return
		}
	}
}

// CreateTeam creates a hunter team and joins the caller to it.
func (s *Store) CreateTeam(gameID string, playerID int, name string) (*Game, *Team, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	game, ok := s.games[gameID]
	if !ok {
		return nil, nil, errGameNotFound
	}
	player := findPlayer(game, playerID)
	if player == nil {
		return nil, nil, errPlayerNotFound
	}
	if player.TeamID != 0 {
		return nil, nil, errAlreadyOnTeam
	}
	for i := range game.Teams {
		if game.Teams[i].Name == name {
			return nil, nil, errTeamNameTaken
		}
	}
	if game.MaxTeams > 0 && len(game.Teams) >= game.MaxTeams {
		return nil, nil, errTeamLimitReached
	}

	team := Team{
		ID:   s.nextTeamID,
		Name: name,
	}
	s.nextTeamID++
	game.Teams = append(game.Teams, team)
	player.TeamID = team.ID
	return game, &game.Teams[len(game.Teams)-1], nil
}

// EnsureChickenTeam is an idempotent get-or-create keyed on the game's
// chicken flag: a second caller joins the existing chicken team instead of
// creating a duplicate.
func (s *Store) EnsureChickenTeam(gameID string, playerID int, name string) (*Game, *Team, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	game, ok := s.games[gameID]
	if !ok {
		return nil, nil, false, errGameNotFound
	}
	player := findPlayer(game, playerID)
	if player == nil {
		return nil, nil, false, errPlayerNotFound
	}

	for i := range game.Teams {
		if game.Teams[i].IsChicken {
			if player.TeamID == 0 {
				player.TeamID = game.Teams[i].ID
			}
			return game, &game.Teams[i], false, nil
		}
	}

	if player.TeamID != 0 {
		return nil, nil, false, errAlreadyOnTeam
	}
	team := Team{
		ID:        s.nextTeamID,
		Name:      name,
		IsChicken: true,
	}
	s.nextTeamID++
	game.Teams = append(game.Teams, team)
	game.ChickenTeamID = team.ID
	player.TeamID = team.ID
	return game, &game.Teams[len(game.Teams)-1], true, nil
}

func (s *Store) JoinTeam(gameID string, playerID, teamID int) (*Game, *Player, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	game, ok := s.games[gameID]
	if !ok {
		return nil, nil, errGameNotFound
	}
	player := findPlayer(game, playerID)
	if player == nil {
		return nil, nil, errPlayerNotFound
	}
	if player.TeamID != 0 {
		return nil, nil, errAlreadyOnTeam
	}
	if _, found := game.FindTeam(teamID); !found {
		return nil, nil, errTeamNotFound
	}
	player.TeamID = teamID
	return game, player, nil
}

func (s *Store) LeaveTeam(gameID string, playerID int) (*Game, *Player, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	game, ok := s.games[gameID]
	if !ok {
		return nil, nil, errGameNotFound
	}
	player := findPlayer(game, playerID)
	if player == nil {
		return nil, nil, errPlayerNotFound
	}
	if player.TeamID == 0 {
		return nil, nil, errNotOnTeam
	}
	player.TeamID = 0
	return game, player, nil
}

func (s *Store) GetPlayer(gameID string, playerID int) (*Game, *Player, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	game, ok := s.games[gameID]
	if !ok {
		return nil, nil, false
	}
	player := findPlayer(game, playerID)
	if player == nil {
		return game, nil, false
	}
	return game, player, true
}

func (s *Store) ListGameSummaries() []GameSummary {
	s.mu.Lock()
	defer s.mu.Unlock()
	list := make([]GameSummary, 0, len(s.games))
	for _, game := range s.games {
		list = append(list, GameSummary{
			ID:       game.ID,
			JoinCode: game.JoinCode,
			Status:   game.Status,
			Teams:    len(game.Teams),
			Players:  len(game.Players),
		})
	}
	// Earliest phase first, newest game first within a phase, so a lobby
	// listing surfaces joinable games at the top.
	sort.Slice(list, func(i, j int) bool {
		if ri, rj := statusRank(list[i].Status), statusRank(list[j].Status); ri != rj {
			return ri < rj
		}
		return gameSortKey(list[i].ID) > gameSortKey(list[j].ID)
	})
	return list
}

func findPlayer(game *Game, playerID int) *Player {
	for i := range game.Players {
		if game.Players[i].ID == playerID {
			return &game.Players[i]
		}
	}
	return nil
}

func gameSortKey(id string) int {
	parts := strings.Split(id, "-")
	if len(parts) < 2 {
		return 0
	}
	value, err := strconv.Atoi(parts[len(parts)-1])
	if err != nil {
		return 0
	}
	return value
}

func timeNowUTC() time.Time {
	return time.Now().UTC()
}
