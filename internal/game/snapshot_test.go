package game

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const serviceState = `{
	"game_stage": "preflop",
	"button_position": 0,
	"current_player_idx": 1,
	"current_bet": 2,
	"small_blind": 1,
	"big_blind": 2,
	"min_raise": 4,
	"community_cards": [],
	"pots": [{"amount": 3, "eligible_players": [0, 1, 2], "required_amount": 0}],
	"total_pot": 3,
	"players": [
		{"name": "HumanUser", "is_bot": false, "position": "Button", "chips": 200, "status": "active", "pocket_cards": ["A♠", "K♥"], "current_street_contribution": 0},
		{"name": "LooseLauren", "is_bot": true, "position": "Small Blind", "chips": 199, "status": "active", "pocket_cards": [], "current_street_contribution": 1, "available_actions": ["fold", "call", "raise"], "call_amount": 1},
		{"name": "TightTimmy", "is_bot": true, "position": "Big Blind", "chips": 198, "status": "allin", "current_street_contribution": 2, "is_all_in": true}
	]
}`

func TestSnapshotDecodesServiceState(t *testing.T) {
	var snap GameSnapshot
	require.NoError(t, json.Unmarshal([]byte(serviceState), &snap))

	assert.Equal(t, StagePreflop, snap.GameStage)
	assert.Equal(t, 0, snap.HumanIndex())
	assert.Equal(t, "HumanUser", snap.Human().Name)
	assert.True(t, snap.IsBotTurn())
	assert.False(t, snap.IsHumanTurn())
	assert.Equal(t, StatusAllIn, snap.Players[2].Status)
	assert.True(t, snap.CurrentPlayer().CanAct(ActionRaise))
	assert.False(t, snap.CurrentPlayer().CanAct(ActionCheck))
	assert.Equal(t, 2, snap.BigBlindAmount())
	assert.Equal(t, 4, snap.MinRaiseFor(snap.CurrentPlayer()))
	require.NoError(t, snap.Validate())
}

func TestSnapshotValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*GameSnapshot)
	}{
		{"no players", func(s *GameSnapshot) { s.Players = nil }},
		{"too many community cards", func(s *GameSnapshot) {
			s.CommunityCards = []Card{"2♠", "3♠", "4♠", "5♠", "6♠", "7♠"}
		}},
		{"negative chips", func(s *GameSnapshot) { s.Players[0].Chips = -1 }},
		{"one pocket card", func(s *GameSnapshot) { s.Players[0].PocketCards = []Card{"A♠"} }},
		{"folded with actions", func(s *GameSnapshot) {
			s.Players[1].Status = StatusFolded
		}},
		{"actor out of range", func(s *GameSnapshot) { s.CurrentPlayerIdx = 7 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var snap GameSnapshot
			require.NoError(t, json.Unmarshal([]byte(serviceState), &snap))
			tt.mutate(&snap)
			assert.ErrorIs(t, snap.Validate(), ErrInvalidSnapshot)
		})
	}
}

func TestSnapshotCloneIsDeep(t *testing.T) {
	var snap GameSnapshot
	require.NoError(t, json.Unmarshal([]byte(serviceState), &snap))

	c := snap.Clone()
	c.Players[0].Chips = 1
	c.Players[1].AvailableActions[0] = ActionBet
	c.Pots[0].EligiblePlayers[0] = 9

	assert.Equal(t, 200, snap.Players[0].Chips)
	assert.Equal(t, ActionFold, snap.Players[1].AvailableActions[0])
	assert.Equal(t, 0, snap.Pots[0].EligiblePlayers[0])
	assert.Nil(t, (*GameSnapshot)(nil).Clone())
}

func TestChipLeaderKeepsLowestSeatOnTie(t *testing.T) {
	snap := GameSnapshot{Players: []Player{{Chips: 50}, {Chips: 80}, {Chips: 80}}}
	assert.Equal(t, 1, snap.ChipLeader())
	assert.Equal(t, []int{0, 1, 2}, snap.WithChips())
}

func TestParseAction(t *testing.T) {
	a, err := ParseAction(" Raise ")
	require.NoError(t, err)
	assert.Equal(t, ActionRaise, a)
	assert.True(t, a.NeedsAmount())

	_, err = ParseAction("shove")
	assert.Error(t, err)
}

func TestSessionHandleExpired(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	h := SessionHandle{GameID: "g1", ExpiresAt: now.Add(24 * time.Hour)}

	assert.False(t, h.Expired(now))
	assert.True(t, h.Expired(now.Add(24*time.Hour)))
	assert.False(t, SessionHandle{GameID: "g1"}.Expired(now))
}

func TestUnflaggedBotsSeatHumanFirst(t *testing.T) {
	snap := GameSnapshot{
		GameStage:        StageFlop,
		CurrentPlayerIdx: 2,
		Players: []Player{
			{Name: "HumanUser", Chips: 100},
			{Name: "LooseLauren", Chips: 100},
			{Name: "AggroAmy", Chips: 100, AvailableActions: []Action{ActionFold, ActionCheck}},
		},
	}
	assert.Equal(t, 0, snap.HumanIndex())
	assert.True(t, snap.IsBotTurn())

	snap.CurrentPlayerIdx = 0
	assert.True(t, snap.IsHumanTurn())
	assert.False(t, snap.IsBotTurn())
}

func TestSeating(t *testing.T) {
	names, ids, err := Seating("", []string{"aggroamy", "CalmCarl"})
	require.NoError(t, err)
	assert.Equal(t, []string{HumanName, "AggroAmy", "CalmCarl"}, names)
	require.Len(t, ids, 3)
	assert.Nil(t, ids[0])
	assert.Equal(t, "aggroamy", *ids[1])
	assert.Equal(t, "calmcarl", *ids[2])

	_, _, err = Seating("me", nil)
	assert.Error(t, err)
	_, _, err = Seating("me", []string{"a", "b", "c", "d", "e", "f"})
	assert.Error(t, err)
	_, _, err = Seating("me", []string{"Nobody"})
	assert.ErrorContains(t, err, "unknown bot")
}
