package server

import "time"

// scheduleGameTimer auto-finishes a game after its configured duration. The
// expected-status check in finishExpiredGame makes a stale timer harmless.
func (s *Server) scheduleGameTimer(game *Game) {
	if game.DurationMinutes <= 0 {
		return
	}
	duration := time.Duration(game.DurationMinutes) * time.Minute
	s.timersMu.Lock()
	if existing, ok := s.timers[game.ID]; ok {
		existing.Stop()
	}
	gameID := game.ID
	s.timers[gameID] = time.AfterFunc(duration, func() {
		if current, ok := s.store.GetGame(gameID); ok {
			s.finishExpiredGame(gameID, current.Status)
		}
		s.cancelGameTimer(gameID)
	})
	s.timersMu.Unlock()
}

func (s *Server) cancelGameTimer(gameID string) {
	s.timersMu.Lock()
	defer s.timersMu.Unlock()
	if timer, ok := s.timers[gameID]; ok {
		timer.Stop()
		delete(s.timers, gameID)
	}
}
