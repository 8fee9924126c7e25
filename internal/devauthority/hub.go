package devauthority

import (
	"context"
	"crypto/rand"
	"math/big"
	mrand "math/rand/v2"
	"slices"
	"strings"

	"go.uber.org/zap"

	"github.com/DoyleJ11/matchsync/internal/match"
	"github.com/DoyleJ11/matchsync/internal/protocol"
)

// Match ids skip look-alike characters (0/O, 1/I) so players can read
// them to each other.
const matchIDAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

const DefaultMatchIDLength = 6

// NewMatchID draws an n-character match id from crypto/rand. n <= 0 means
// DefaultMatchIDLength.
func NewMatchID(n int) (string, error) {
	if n <= 0 {
		n = DefaultMatchIDLength
	}
	limit := big.NewInt(int64(len(matchIDAlphabet)))
	var b strings.Builder
	b.Grow(n)
	for range n {
		i, err := rand.Int(rand.Reader, limit)
		if err != nil {
			return "", err
		}
		b.WriteByte(matchIDAlphabet[i.Int64()])
	}
	return b.String(), nil
}

type HubMsg interface{ isHubMsg() }

type CreateMatch struct {
	Reply chan *Match
}

type GetMatch struct {
	Code  string
	Reply chan *Match
}

type RemoveMatch struct {
	Code string
}

type ListMatches struct {
	Reply chan []protocol.MatchSummary
}

// Watch subscribes a client to directory pushes. The hub closes Outbox
// on Unwatch, on shutdown, or when the client falls behind.
type Watch struct {
	ClientID string
	Outbox   chan Outgoing
}

type Unwatch struct {
	ClientID string
}

type MatchChanged struct {
	Summary protocol.MatchSummary
}

type ShutdownHub struct{}

func (CreateMatch) isHubMsg()  {}
func (GetMatch) isHubMsg()     {}
func (RemoveMatch) isHubMsg()  {}
func (ListMatches) isHubMsg()  {}
func (Watch) isHubMsg()        {}
func (Unwatch) isHubMsg()      {}
func (MatchChanged) isHubMsg() {}
func (ShutdownHub) isHubMsg()  {}

type Options struct {
	Economy int
	Catalog Catalog
	// Seed makes card shuffles reproducible; zero picks a random seed.
	Seed uint64
	// IDLength is the match id length; zero means DefaultMatchIDLength.
	IDLength int
	Log      *zap.Logger
}

type Hub struct {
	inbox     chan HubMsg
	matches   map[string]*Match
	summaries map[string]protocol.MatchSummary
	watchers  map[string]chan Outgoing
	opts      Options
	seeds     *mrand.Rand
	log       *zap.Logger
	ctx       context.Context
	cancel    context.CancelFunc
	done      chan struct{}
}

func NewHub(parent context.Context, opts Options) *Hub {
	ctx, cancel := context.WithCancel(parent)
	if opts.Log == nil {
		opts.Log = zap.NewNop()
	}
	if opts.Catalog.Pieces == nil && opts.Catalog.Upgrades == nil && opts.Catalog.Modifiers == nil {
		opts.Catalog = DefaultCatalog()
	}
	seed := opts.Seed
	if seed == 0 {
		seed = mrand.Uint64()
	}
	h := &Hub{
		inbox:     make(chan HubMsg, 64),
		matches:   make(map[string]*Match),
		summaries: make(map[string]protocol.MatchSummary),
		watchers:  make(map[string]chan Outgoing),
		opts:      opts,
		seeds:     mrand.New(mrand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
		log:       opts.Log,
		ctx:       ctx,
		cancel:    cancel,
		done:      make(chan struct{}),
	}
	go h.loop()
	return h
}

func (h *Hub) Inbox() chan<- HubMsg { return h.inbox }

func (h *Hub) loop() {
	defer close(h.done)
	for {
		select {
		case <-h.ctx.Done():
			h.shutdown()
			return

		case m := <-h.inbox:
			switch msg := m.(type) {
			case CreateMatch:
				msg.Reply <- h.create()

			case GetMatch:
				msg.Reply <- h.matches[strings.ToUpper(msg.Code)] // May be nil

			case RemoveMatch:
				code := strings.ToUpper(msg.Code)
				if mt := h.matches[code]; mt != nil {
					go mt.Stop()
				}
				delete(h.matches, code)
				delete(h.summaries, code)
				h.pushDirectory()

			case ListMatches:
				msg.Reply <- h.open()

			case Watch:
				h.watchers[msg.ClientID] = msg.Outbox

			case Unwatch:
				if ch, ok := h.watchers[msg.ClientID]; ok {
					close(ch)
					delete(h.watchers, msg.ClientID)
				}

			case MatchChanged:
				if _, ok := h.matches[msg.Summary.ID]; !ok {
					break
				}
				h.summaries[msg.Summary.ID] = msg.Summary
				h.pushDirectory()

			case ShutdownHub:
				h.shutdown()
				return
			}
		}
	}
}

func (h *Hub) create() *Match {
	var code string
	for code == "" {
		id, err := NewMatchID(h.opts.IDLength)
		if err != nil {
			h.log.Error("match id generation failed", zap.Error(err))
			return nil
		}
		if h.matches[id] != nil {
			h.log.Debug("match id taken, drawing again", zap.String("id", id))
			continue
		}
		code = id
	}
	mt := NewMatch(h.ctx, code, MatchOptions{
		Economy: h.opts.Economy,
		Catalog: h.opts.Catalog,
		Rand:    mrand.New(mrand.NewPCG(h.seeds.Uint64(), h.seeds.Uint64())),
		Log:     h.log,
		Notify: func(s protocol.MatchSummary) {
			select {
			case h.inbox <- MatchChanged{Summary: s}:
			case <-h.ctx.Done():
			}
		},
	})
	h.matches[code] = mt
	h.summaries[code] = mt.summary()
	h.log.Info("match created", zap.String("match_id", code))
	h.pushDirectory()
	return mt
}

// open lists matches with a free seat, ordered by id.
func (h *Hub) open() []protocol.MatchSummary {
	out := []protocol.MatchSummary{}
	for _, s := range h.summaries {
		if s.Status != match.StatusCompleted && len(s.OpenRoles) > 0 {
			out = append(out, s)
		}
	}
	slices.SortFunc(out, func(a, b protocol.MatchSummary) int { return strings.Compare(a.ID, b.ID) })
	return out
}

func (h *Hub) pushDirectory() {
	if len(h.watchers) == 0 {
		return
	}
	payload := protocol.MatchesUpdated{Matches: h.open()}
	for id, ch := range h.watchers {
		select {
		case ch <- Outgoing{Event: protocol.EvtMatchesUpdated, Payload: payload}:
		default:
			h.log.Warn("dropping slow directory watcher", zap.String("client_id", id))
			close(ch)
			delete(h.watchers, id)
		}
	}
}

func (h *Hub) shutdown() {
	for id, ch := range h.watchers {
		close(ch)
		delete(h.watchers, id)
	}
	clear(h.matches)
	clear(h.summaries)
	// Matches run under h.ctx and stop with it.
	h.cancel()
}

func (h *Hub) post(msg HubMsg) bool {
	select {
	case <-h.done:
		return false
	default:
	}
	select {
	case h.inbox <- msg:
		return true
	case <-h.done:
		return false
	}
}

func (h *Hub) Create(ctx context.Context) (*Match, error) {
	reply := make(chan *Match, 1)
	if !h.post(CreateMatch{Reply: reply}) {
		return nil, ErrStopped
	}
	select {
	case mt := <-reply:
		if mt == nil {
			return nil, ErrStopped
		}
		return mt, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Get returns the match with code, or nil.
func (h *Hub) Get(ctx context.Context, code string) *Match {
	reply := make(chan *Match, 1)
	if !h.post(GetMatch{Code: code, Reply: reply}) {
		return nil
	}
	select {
	case mt := <-reply:
		return mt
	case <-ctx.Done():
		return nil
	}
}

func (h *Hub) List(ctx context.Context) ([]protocol.MatchSummary, error) {
	reply := make(chan []protocol.MatchSummary, 1)
	if !h.post(ListMatches{Reply: reply}) {
		return nil, ErrStopped
	}
	select {
	case ms := <-reply:
		return ms, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (h *Hub) Watch(clientID string, outbox chan Outgoing) { h.post(Watch{ClientID: clientID, Outbox: outbox}) }

func (h *Hub) Unwatch(clientID string) { h.post(Unwatch{ClientID: clientID}) }

func (h *Hub) Remove(code string) { h.post(RemoveMatch{Code: code}) }

func (h *Hub) Stop() {
	h.post(ShutdownHub{})
	<-h.done
}
