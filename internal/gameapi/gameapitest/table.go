package gameapitest

import (
	"errors"
	"fmt"
	rand "math/rand/v2"
	"slices"
	"sync"

	"github.com/lox/acehigh/internal/game"
	"github.com/paulhankin/poker"
)

// Sandbox table defaults, matching the hosted service
const (
	StartingChips = 1000
	SmallBlind    = 10
	BigBlind      = 20
)

var (
	errHandInProgress = errors.New("hand already in progress")
	errGameOver       = errors.New("fewer than two players have chips")
	errNotYourTurn    = errors.New("not this player's turn")
	errNoHand         = errors.New("no hand in progress")
)

var positions = []string{
	game.PositionButton, game.PositionSmallBlind, game.PositionBigBlind,
	game.PositionUTG, game.PositionUTG1, game.PositionCutoff,
}

var (
	rankNames = []string{"A", "2", "3", "4", "5", "6", "7", "8", "9", "10", "J", "Q", "K"}
	suitNames = []string{"♣", "♦", "♥", "♠"}
)

type seat struct {
	name    string
	botID   string
	chips   int
	status  game.PlayerStatus
	contrib int
	acted   bool
	cards   []game.Card
}

func (s *seat) canAct() bool {
	return s.status == game.StatusActive && s.chips > 0
}

// Table is a small in-process Hold'em engine used when no real service is
// available. Bots play a loose passive style and chat occasionally. Side pots
// are not modelled: the whole pot goes to the best hand.
type Table struct {
	mu         sync.Mutex
	id         string
	seats      []*seat
	button     int
	stage      game.Stage
	board      []game.Card
	deck       []game.Card
	pot        int
	currentBet int
	minRaise   int
	current    int
	handStart  []int
	rng        *rand.Rand
}

// TurnOutcome is the result of one action on a Table
type TurnOutcome struct {
	Snapshot     game.GameSnapshot
	Complete     bool
	Winner       *game.PlayerRef
	ChipDelta    *int
	Comment      string
	CommentIndex int
}

// NewTable seats players in order. A nil bot id marks the human.
func NewTable(id string, names []string, botIDs []*string, rng *rand.Rand) (*Table, error) {
	if len(names) < 2 || len(names) > len(positions) {
		return nil, fmt.Errorf("need 2 to %d players, got %d", len(positions), len(names))
	}
	if len(botIDs) != len(names) {
		return nil, fmt.Errorf("got %d bot ids for %d players", len(botIDs), len(names))
	}
	t := &Table{
		id:       id,
		button:   len(names) - 1,
		stage:    game.StageIdle,
		minRaise: BigBlind,
		rng:      rng,
	}
	for i, name := range names {
		s := &seat{name: name, chips: StartingChips, status: game.StatusActive}
		if botIDs[i] != nil {
			s.botID = *botIDs[i]
		}
		t.seats = append(t.seats, s)
	}
	return t, nil
}

// ID returns the game id
func (t *Table) ID() string { return t.id }

// Snapshot returns the current state as the service would report it
func (t *Table) Snapshot() game.GameSnapshot {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.snapshotLocked()
}

// StartHand deals a new hand and posts the blinds
func (t *Table) StartHand() (game.GameSnapshot, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.stage.IsBetting() {
		return game.GameSnapshot{}, errHandInProgress
	}
	live := 0
	for _, s := range t.seats {
		if s.chips > 0 {
			live++
		}
	}
	if live < 2 {
		return game.GameSnapshot{}, errGameOver
	}

	t.board, t.pot, t.currentBet, t.minRaise = nil, 0, 0, BigBlind
	t.handStart = make([]int, len(t.seats))
	for i, s := range t.seats {
		s.contrib, s.acted, s.cards = 0, false, nil
		s.status = game.StatusActive
		if s.chips == 0 {
			s.status = game.StatusFolded
		}
		t.handStart[i] = s.chips
	}
	t.shuffle()

	t.button = t.nextLive(t.button)
	for _, s := range t.seats {
		if s.status == game.StatusActive {
			s.cards = []game.Card{t.draw(), t.draw()}
		}
	}

	sb := t.nextLive(t.button)
	if live == 2 {
		sb = t.button
	}
	bb := t.nextLive(sb)
	t.post(sb, SmallBlind)
	t.post(bb, BigBlind)
	t.currentBet = max(t.seats[sb].contrib, t.seats[bb].contrib)
	t.stage = game.StagePreflop

	t.current = bb
	if !t.moveToNextActor() {
		t.finishStreet()
	}
	return t.snapshotLocked(), nil
}

// Act applies the human's action
func (t *Table) Act(action game.Action, amount int) (TurnOutcome, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.stage.IsBetting() {
		return TurnOutcome{}, errNoHand
	}
	if t.seats[t.current].botID != "" {
		return TurnOutcome{}, errNotYourTurn
	}
	return t.apply(action, amount)
}

// PlayBot lets the acting bot choose and apply an action
func (t *Table) PlayBot() (TurnOutcome, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.stage.IsBetting() {
		return TurnOutcome{}, errNoHand
	}
	actor := t.current
	if t.seats[actor].botID == "" {
		return TurnOutcome{}, errNotYourTurn
	}
	action, amount := t.chooseBotAction(actor)
	out, err := t.apply(action, amount)
	if err != nil {
		return out, err
	}
	if t.rng.IntN(2) == 0 {
		out.Comment = t.chatter(action)
		out.CommentIndex = actor
	}
	return out, nil
}

func (t *Table) apply(action game.Action, amount int) (TurnOutcome, error) {
	i := t.current
	s := t.seats[i]
	if !slices.Contains(t.actionsFor(i), action) {
		return TurnOutcome{}, fmt.Errorf("%s is not available", action)
	}

	switch action {
	case game.ActionFold:
		s.status = game.StatusFolded
	case game.ActionCheck:
	case game.ActionCall:
		t.post(i, t.currentBet-s.contrib)
	case game.ActionBet, game.ActionRaise:
		allIn := s.contrib + s.chips
		minTo := BigBlind
		if action == game.ActionRaise {
			minTo = t.currentBet + t.minRaise
		}
		if amount > allIn {
			amount = allIn
		}
		if amount < minTo && amount != allIn {
			return TurnOutcome{}, fmt.Errorf("minimum %s is %d", action, minTo)
		}
		raiseBy := amount - t.currentBet
		t.post(i, amount-s.contrib)
		if s.contrib > t.currentBet {
			if raiseBy >= t.minRaise {
				t.minRaise = raiseBy
			}
			t.currentBet = s.contrib
			for j, other := range t.seats {
				if j != i {
					other.acted = false
				}
			}
		}
	}
	s.acted = true

	out := TurnOutcome{CommentIndex: -1}
	if winner, done := t.advance(); done {
		out.Complete = true
		out.Winner = winner
		if h := t.humanSeat(); h >= 0 {
			delta := t.seats[h].chips - t.handStart[h]
			out.ChipDelta = &delta
		}
	}
	out.Snapshot = t.snapshotLocked()
	return out, nil
}

// advance moves to the next actor, street or showdown
func (t *Table) advance() (*game.PlayerRef, bool) {
	var contenders []int
	for i, s := range t.seats {
		if s.status != game.StatusFolded {
			contenders = append(contenders, i)
		}
	}
	if len(contenders) == 1 {
		t.award([]int{contenders[0]})
		return &game.PlayerRef{Index: contenders[0], Name: t.seats[contenders[0]].name}, true
	}
	if t.moveToNextActor() {
		return nil, false
	}
	return t.finishStreet()
}

func (t *Table) finishStreet() (*game.PlayerRef, bool) {
	for {
		for _, s := range t.seats {
			s.contrib, s.acted = 0, false
		}
		t.currentBet, t.minRaise = 0, BigBlind

		switch t.stage {
		case game.StagePreflop:
			t.board = append(t.board, t.draw(), t.draw(), t.draw())
			t.stage = game.StageFlop
		case game.StageFlop:
			t.board = append(t.board, t.draw())
			t.stage = game.StageTurn
		case game.StageTurn:
			t.board = append(t.board, t.draw())
			t.stage = game.StageRiver
		default:
			return t.showdown()
		}

		actors := 0
		for _, s := range t.seats {
			if s.canAct() {
				actors++
			}
		}
		if actors >= 2 {
			t.current = t.button
			if t.moveToNextActor() {
				return nil, false
			}
		}
	}
}

func (t *Table) showdown() (*game.PlayerRef, bool) {
	t.stage = game.StageShowdown
	var (
		best    int16 = -1
		winners []int
	)
	for n := 1; n <= len(t.seats); n++ {
		i := (t.button + n) % len(t.seats)
		s := t.seats[i]
		if s.status == game.StatusFolded {
			continue
		}
		score := t.score(s)
		switch {
		case score > best:
			best, winners = score, []int{i}
		case score == best:
			winners = append(winners, i)
		}
	}
	t.award(winners)
	return &game.PlayerRef{Index: winners[0], Name: t.seats[winners[0]].name}, true
}

func (t *Table) award(winners []int) {
	share := t.pot / len(winners)
	for _, w := range winners {
		t.seats[w].chips += share
	}
	t.seats[winners[0]].chips += t.pot - share*len(winners)
	t.pot = 0
	if t.stage.IsBetting() {
		t.stage = game.StageShowdown
	}
}

func (t *Table) score(s *seat) int16 {
	var hand [7]poker.Card
	cards := append(slices.Clone(t.board), s.cards...)
	for i, c := range cards {
		hand[i] = toPokerCard(c)
	}
	return poker.Eval7(&hand)
}

// moveToNextActor advances current to the next seat that still owes a
// decision, reporting false when the street is closed
func (t *Table) moveToNextActor() bool {
	for n := 1; n <= len(t.seats); n++ {
		i := (t.current + n) % len(t.seats)
		s := t.seats[i]
		if s.canAct() && (!s.acted || s.contrib < t.currentBet) {
			t.current = i
			return true
		}
	}
	return false
}

func (t *Table) nextLive(from int) int {
	for n := 1; n <= len(t.seats); n++ {
		i := (from + n) % len(t.seats)
		if t.seats[i].chips > 0 {
			return i
		}
	}
	return from
}

func (t *Table) post(i, amount int) {
	s := t.seats[i]
	pay := min(amount, s.chips)
	s.chips -= pay
	s.contrib += pay
	t.pot += pay
	if s.chips == 0 && s.status == game.StatusActive {
		s.status = game.StatusAllIn
	}
}

func (t *Table) actionsFor(i int) []game.Action {
	s := t.seats[i]
	if !t.stage.IsBetting() || i != t.current || !s.canAct() {
		return nil
	}
	toCall := t.currentBet - s.contrib
	actions := []game.Action{game.ActionFold}
	if toCall <= 0 {
		actions = append(actions, game.ActionCheck)
		if t.currentBet == 0 {
			actions = append(actions, game.ActionBet)
		} else {
			actions = append(actions, game.ActionRaise)
		}
		return actions
	}
	actions = append(actions, game.ActionCall)
	if s.chips > toCall {
		actions = append(actions, game.ActionRaise)
	}
	return actions
}

func (t *Table) chooseBotAction(i int) (game.Action, int) {
	s := t.seats[i]
	actions := t.actionsFor(i)
	toCall := t.currentBet - s.contrib
	roll := t.rng.IntN(100)
	aggression := 10
	if s.botID == "aggroamy" || s.botID == "looselauren" {
		aggression = 25
	}

	switch {
	case roll < aggression && slices.Contains(actions, game.ActionBet):
		return game.ActionBet, BigBlind * 2
	case roll < aggression && slices.Contains(actions, game.ActionRaise):
		return game.ActionRaise, t.currentBet + t.minRaise
	case toCall <= 0:
		return game.ActionCheck, 0
	case toCall > s.chips/2 && roll < 60:
		return game.ActionFold, 0
	case roll < 85:
		return game.ActionCall, 0
	default:
		return game.ActionFold, 0
	}
}

var chatterLines = map[game.Action][]string{
	game.ActionFold:  {"Not this time.", "I'll sit this one out.", "Too rich for me."},
	game.ActionCheck: {"I'll check.", "Let's see another card.", "Your move."},
	game.ActionCall:  {"I'll keep you honest.", "Call.", "Sure, why not."},
	game.ActionBet:   {"Let's make it interesting.", "Feeling lucky.", "Bet."},
	game.ActionRaise: {"Raise it up!", "I don't believe you.", "More, please."},
}

func (t *Table) chatter(a game.Action) string {
	lines := chatterLines[a]
	return lines[t.rng.IntN(len(lines))]
}

func (t *Table) humanSeat() int {
	for i, s := range t.seats {
		if s.botID == "" {
			return i
		}
	}
	return -1
}

func (t *Table) snapshotLocked() game.GameSnapshot {
	snap := game.GameSnapshot{
		CurrentPlayerIdx: t.current,
		ButtonPosition:   t.button,
		CommunityCards:   slices.Clone(t.board),
		TotalPot:         t.pot,
		CurrentBet:       t.currentBet,
		GameStage:        t.stage,
		SmallBlind:       SmallBlind,
		BigBlind:         BigBlind,
		MinRaise:         t.minRaise,
	}
	if snap.CommunityCards == nil {
		snap.CommunityCards = []game.Card{}
	}
	if t.pot > 0 {
		snap.Pots = []game.Pot{{Amount: t.pot}}
	}
	for i, s := range t.seats {
		p := game.Player{
			Name:                      s.name,
			IsBot:                     s.botID != "",
			Chips:                     s.chips,
			Status:                    s.status,
			Position:                  positions[(i-t.button+len(t.seats))%len(t.seats)],
			CurrentStreetContribution: s.contrib,
			IsAllIn:                   s.status == game.StatusAllIn,
		}
		if !p.IsBot || (t.stage == game.StageShowdown && s.status != game.StatusFolded) {
			p.PocketCards = slices.Clone(s.cards)
		}
		if i == t.current {
			p.AvailableActions = t.actionsFor(i)
			if slices.Contains(p.AvailableActions, game.ActionCall) {
				p.CallAmount = min(t.currentBet-s.contrib, s.chips)
			}
			if slices.Contains(p.AvailableActions, game.ActionRaise) {
				p.MinRaise = t.currentBet + t.minRaise
			}
		}
		snap.Players = append(snap.Players, p)
	}
	return snap
}

func (t *Table) shuffle() {
	t.deck = t.deck[:0]
	for s := range suitNames {
		for r := range rankNames {
			t.deck = append(t.deck, game.Card(rankNames[r]+suitNames[s]))
		}
	}
	t.rng.Shuffle(len(t.deck), func(i, j int) { t.deck[i], t.deck[j] = t.deck[j], t.deck[i] })
}

func (t *Table) draw() game.Card {
	c := t.deck[len(t.deck)-1]
	t.deck = t.deck[:len(t.deck)-1]
	return c
}

func toPokerCard(c game.Card) poker.Card {
	s := string(c)
	var suit, rank int
	for i, name := range suitNames {
		if len(s) > len(name) && s[len(s)-len(name):] == name {
			suit = i
			s = s[:len(s)-len(name)]
		}
	}
	for i, name := range rankNames {
		if s == name {
			rank = i + 1
		}
	}
	card, err := poker.MakeCard(poker.Suit(suit), poker.Rank(rank))
	if err != nil {
		panic(fmt.Sprintf("sandbox dealt an invalid card %q: %v", c, err))
	}
	return card
}
