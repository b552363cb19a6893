package db

import "testing"

func TestJoinCodeReusableAfterFinish(t *testing.T) {
	conn := openTestDB(t)

	finished := Game{
		PublicID: "game-1",
		JoinCode: "QRX234",
		Status:   "finished",
	}
	if err := conn.Create(&finished).Error; err != nil {
		t.Fatalf("create finished game: %v", err)
	}

	// A code handed out for a new game may match one held by a finished
	// game; only live games reserve their codes.
	reissued := Game{
		PublicID: "game-2",
		JoinCode: "QRX234",
		Status:   "lobby",
	}
	if err := conn.Create(&reissued).Error; err != nil {
		t.Fatalf("reissued join code rejected: %v", err)
	}
}
