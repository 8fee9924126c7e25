package devauthority

import (
	"math/rand/v2"
	"slices"

	"github.com/DoyleJ11/matchsync/internal/match"
	"github.com/DoyleJ11/matchsync/internal/protocol"
)

var ranks = []string{"2", "3", "4", "5", "6", "7", "8", "9", "T", "J", "Q", "K", "A"}
var suits = []string{"s", "h", "d", "c"}

func rankValue(r string) int { return slices.Index(ranks, r) }

// ShuffledDeck returns a fresh 52-card deck in rng order.
func ShuffledDeck(rng *rand.Rand) []match.Card {
	deck := make([]match.Card, 0, len(ranks)*len(suits))
	for _, s := range suits {
		for _, r := range ranks {
			deck = append(deck, match.Card{Rank: r, Suit: s})
		}
	}
	rng.Shuffle(len(deck), func(i, j int) { deck[i], deck[j] = deck[j], deck[i] })
	return deck
}

func handLive(phase string) bool {
	switch phase {
	case PhasePreflop, PhaseFlop, PhaseTurn, PhaseRiver:
		return true
	}
	return false
}

func applyReady(g *Game, seat match.Role, c protocol.PokerReady) ([]Event, error) {
	if seat.Slot != match.SlotCard {
		return nil, ErrWrongSlot
	}
	b := &g.State.SubGames.B
	if handLive(b.Phase) {
		return nil, ErrHandLive
	}
	team := g.State.Teams.Get(seat.Team)
	p := team.Players[match.SlotCard]
	p.Ready = c.Ready
	team.Players[match.SlotCard] = p

	events := []Event{{Type: EvtStateChanged, Team: seat.Team, Slot: match.SlotCard}}
	if g.State.Status == match.StatusActive && bothReady(g.State) {
		events = append(events, Event{Type: EvtDealRequested, Slot: match.SlotCard})
	}
	return events, nil
}

func bothReady(s match.State) bool {
	return s.Teams.White.Players[match.SlotCard].Ready && s.Teams.Black.Players[match.SlotCard].Ready
}

// Deal starts a new hand from deck: two cards each, blinds posted by the
// dealer (small) and the other team (big), dealer first to act.
func Deal(g Game, deck []match.Card) ([]Event, Game, error) {
	if handLive(g.State.SubGames.B.Phase) {
		return nil, g, ErrHandLive
	}
	next := g.Clone()
	next.HandNo++
	if next.HandNo > 1 {
		next.Dealer = next.Dealer.Opponent()
	}

	var events []Event
	if level := 1 + (next.HandNo-1)/handsPerLevel; level != next.BlindLevel {
		next.BlindLevel = level
		events = append(events, Event{Type: EvtBlindLevelChanged})
	}

	deck = slices.Clone(deck)
	b := &next.State.SubGames.B
	b.Hands = map[match.Team]match.Hand{
		next.Dealer:            {Cards: []match.Card{deck[0], deck[2]}, Count: 2},
		next.Dealer.Opponent(): {Cards: []match.Card{deck[1], deck[3]}, Count: 2},
	}
	next.Deck = deck[4:]
	b.Community = []match.Card{}
	b.Folded = map[match.Team]bool{}
	b.History = []match.BettingAction{}
	b.Bets = map[match.Team]int{match.TeamWhite: 0, match.TeamBlack: 0}
	b.Pot = 0
	b.Winner = nil
	b.Phase = PhasePreflop
	next.Acted = map[match.Team]bool{}

	bl := next.blinds()
	post(&next, next.Dealer, bl.Small)
	post(&next, next.Dealer.Opponent(), bl.Big)
	b.CurrentBet = max(b.Bets[match.TeamWhite], b.Bets[match.TeamBlack])
	b.Turn = next.Dealer

	for _, t := range []match.Team{match.TeamWhite, match.TeamBlack} {
		team := next.State.Teams.Get(t)
		p := team.Players[match.SlotCard]
		p.Ready = false
		team.Players[match.SlotCard] = p
	}
	events = append(events, Event{Type: EvtHandDealt, Slot: match.SlotCard})
	return events, next, nil
}

// post moves up to amount from the team's economy into the pot.
func post(g *Game, t match.Team, amount int) int {
	team := g.State.Teams.Get(t)
	amount = min(amount, team.Economy)
	team.Economy -= amount
	b := &g.State.SubGames.B
	b.Bets[t] += amount
	b.Pot += amount
	return amount
}

func applyBet(g *Game, seat match.Role, c protocol.PokerAction) ([]Event, error) {
	s := &g.State
	b := &s.SubGames.B
	switch {
	case seat.Slot != match.SlotCard:
		return nil, ErrWrongSlot
	case s.Status != match.StatusActive:
		return nil, ErrMatchNotActive
	case !handLive(b.Phase):
		return nil, ErrNoHand
	case b.Turn != seat.Team || b.Folded[seat.Team]:
		return nil, ErrWrongTurn
	}
	me, opp := seat.Team, seat.Team.Opponent()
	econ := s.Teams.Get(me).Economy
	owe := b.CurrentBet - b.Bets[me]
	action := match.BettingAction{Team: me, Action: c.Action}

	switch c.Action {
	case "fold":
		b.Folded[me] = true
		b.History = append(b.History, action)
		events := []Event{{Type: EvtBetPlaced, Team: me, Slot: match.SlotCard}}
		return append(events, award(g, &opp)), nil
	case "check":
		if owe != 0 {
			return nil, ErrIllegalBet
		}
	case "call":
		if owe <= 0 {
			return nil, ErrIllegalBet
		}
		action.Amount = post(g, me, owe)
	case "bet", "raise":
		if c.Amount == nil || *c.Amount <= b.CurrentBet {
			return nil, ErrIllegalBet
		}
		if *c.Amount-b.Bets[me] > econ {
			return nil, ErrInsufficientFunds
		}
		action.Amount = post(g, me, *c.Amount-b.Bets[me])
	case "allin":
		if econ == 0 {
			return nil, ErrInsufficientFunds
		}
		action.Amount = post(g, me, econ)
	default:
		return nil, ErrIllegalBet
	}
	b.CurrentBet = max(b.CurrentBet, b.Bets[me])
	b.History = append(b.History, action)
	g.Acted[me] = true
	b.Turn = opp

	events := []Event{{Type: EvtBetPlaced, Team: me, Slot: match.SlotCard}}
	if !streetClosed(g) {
		return events, nil
	}
	for {
		if b.Phase == PhaseRiver {
			return append(events, showdown(g)), nil
		}
		advanceStreet(g)
		// With a team out of chips no more betting is possible; run the
		// board out.
		if s.Teams.White.Economy > 0 && s.Teams.Black.Economy > 0 {
			return events, nil
		}
	}
}

func streetClosed(g *Game) bool {
	b := g.State.SubGames.B
	if !g.Acted[match.TeamWhite] || !g.Acted[match.TeamBlack] {
		return false
	}
	if b.Bets[match.TeamWhite] == b.Bets[match.TeamBlack] {
		return true
	}
	// The short side is all in.
	for _, t := range []match.Team{match.TeamWhite, match.TeamBlack} {
		if b.Bets[t] < b.Bets[t.Opponent()] && g.State.Teams.Get(t).Economy == 0 {
			return true
		}
	}
	return false
}

func advanceStreet(g *Game) {
	b := &g.State.SubGames.B
	reveal := 1
	switch b.Phase {
	case PhasePreflop:
		b.Phase, reveal = PhaseFlop, 3
	case PhaseFlop:
		b.Phase = PhaseTurn
	case PhaseTurn:
		b.Phase = PhaseRiver
	}
	reveal = min(reveal, len(g.Deck))
	b.Community = append(b.Community, g.Deck[:reveal]...)
	g.Deck = g.Deck[reveal:]
	b.Bets = map[match.Team]int{match.TeamWhite: 0, match.TeamBlack: 0}
	b.CurrentBet = 0
	b.Turn = g.Dealer.Opponent()
	g.Acted = map[match.Team]bool{}
}

// showdown reveals both hands and pays the pot by high card, comparing the
// two hole cards from the top down. Equal hands split it.
func showdown(g *Game) Event {
	b := &g.State.SubGames.B
	for t, h := range b.Hands {
		h.Revealed = true
		b.Hands[t] = h
	}
	w := holeRanks(b.Hands[match.TeamWhite])
	k := holeRanks(b.Hands[match.TeamBlack])
	switch c := slices.Compare(w, k); {
	case c > 0:
		t := match.TeamWhite
		return award(g, &t)
	case c < 0:
		t := match.TeamBlack
		return award(g, &t)
	default:
		return award(g, nil)
	}
}

func holeRanks(h match.Hand) []int {
	out := make([]int, 0, len(h.Cards))
	for _, c := range h.Cards {
		out = append(out, rankValue(c.Rank))
	}
	slices.SortFunc(out, func(a, b int) int { return b - a })
	return out
}

// award pays the pot to winner, or splits it when winner is nil, and ends
// the hand.
func award(g *Game, winner *match.Team) Event {
	b := &g.State.SubGames.B
	if winner != nil {
		g.State.Teams.Get(*winner).Economy += b.Pot
		w := *winner
		b.Winner = &w
	} else {
		half := b.Pot / 2
		g.State.Teams.White.Economy += b.Pot - half
		g.State.Teams.Black.Economy += half
		b.Winner = nil
	}
	b.Pot = 0
	b.CurrentBet = 0
	b.Bets = map[match.Team]int{match.TeamWhite: 0, match.TeamBlack: 0}
	b.Phase = PhaseShowdown
	g.Acted = map[match.Team]bool{}
	return Event{Type: EvtHandFinished, Slot: match.SlotCard, Winner: b.Winner}
}

// Redact strips hole cards the viewer may not see: everything but the
// viewer's own hand when seated at the card game, unless revealed.
func Redact(s match.State, viewer match.Role) match.State {
	out := s.Clone()
	for t, h := range out.SubGames.B.Hands {
		if h.Revealed || (viewer.Slot == match.SlotCard && viewer.Team == t) {
			continue
		}
		out.SubGames.B.Hands[t] = match.Hand{Count: h.Size()}
	}
	return out
}
