// Package turn models governed units of agent behavior.
//
// A Turn is an event extended with governance metadata: a closed kind
// discriminator, state fingerprints taken before and after the behavior,
// and confidence/entropy-cost figures supporting automated approval-policy
// decisions. YieldTurn is the Yield-kinded case: a proposed action withheld
// until a quorum of named approvers agrees.
//
// The kind set is closed so governance predicates stay exhaustively
// checkable; there is no open extension point.
package turn

import (
	"crypto/sha256"
	"encoding/hex"

	"github.com/randalmurphal/causegraph/pkg/causegraph/event"
)

// Kind discriminates the closed set of turn variants.
type Kind int

// Turn kinds.
const (
	// Speech is observable communication to other agents.
	Speech Kind = iota
	// Action is an effectful operation on the environment.
	Action
	// Thought is internal reasoning, not observable by other agents.
	Thought
	// Yield is a proposed action withheld pending approval.
	Yield
	// Silence is an explicit decision to do nothing.
	Silence
)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case Speech:
		return "speech"
	case Action:
		return "action"
	case Thought:
		return "thought"
	case Yield:
		return "yield"
	case Silence:
		return "silence"
	default:
		return "unknown"
	}
}

// EmptyFingerprint is the sentinel for an absent state snapshot.
const EmptyFingerprint = "empty"

// Fingerprint hashes a caller-supplied state snapshot. Nil or empty
// snapshots map to EmptyFingerprint.
func Fingerprint(snapshot []byte) string {
	if len(snapshot) == 0 {
		return EmptyFingerprint
	}
	h := sha256.Sum256(snapshot)
	return hex.EncodeToString(h[:])
}

// Turn is an event carrying governance metadata. Immutable once constructed;
// Confidence and EntropyCost are clamped at construction only.
type Turn[T any] struct {
	event.Event[T]

	// Kind discriminates the turn variant.
	Kind Kind `json:"kind"`

	// StatePre and StatePost fingerprint the caller's state snapshots
	// around the behavior, or EmptyFingerprint when none was supplied.
	StatePre  string `json:"state_pre"`
	StatePost string `json:"state_post"`

	// Confidence is the producer's confidence in the turn, in [0,1].
	Confidence float64 `json:"confidence"`

	// EntropyCost is the turn's irreversibility cost, in [0,inf).
	EntropyCost float64 `json:"entropy_cost"`
}

// Option configures turn creation.
type Option func(*turnConfig)

type turnConfig struct {
	eventOpts   []event.Option
	statePre    []byte
	statePost   []byte
	confidence  float64
	entropyCost float64
}

// WithEventOptions passes options through to the underlying event.
func WithEventOptions(opts ...event.Option) Option {
	return func(cfg *turnConfig) {
		cfg.eventOpts = append(cfg.eventOpts, opts...)
	}
}

// WithStatePre supplies the pre-behavior state snapshot to fingerprint.
func WithStatePre(snapshot []byte) Option {
	return func(cfg *turnConfig) {
		cfg.statePre = snapshot
	}
}

// WithStatePost supplies the post-behavior state snapshot to fingerprint.
func WithStatePost(snapshot []byte) Option {
	return func(cfg *turnConfig) {
		cfg.statePost = snapshot
	}
}

// WithConfidence sets the confidence figure, clamped to [0,1].
func WithConfidence(confidence float64) Option {
	return func(cfg *turnConfig) {
		cfg.confidence = confidence
	}
}

// WithEntropyCost sets the entropy cost, clamped to [0,inf).
func WithEntropyCost(cost float64) Option {
	return func(cfg *turnConfig) {
		cfg.entropyCost = cost
	}
}

// New creates a turn of the given kind.
func New[T any](kind Kind, content T, source string, opts ...Option) Turn[T] {
	cfg := &turnConfig{confidence: 1}
	for _, opt := range opts {
		opt(cfg)
	}

	confidence := cfg.confidence
	if confidence < 0 {
		confidence = 0
	} else if confidence > 1 {
		confidence = 1
	}
	entropyCost := cfg.entropyCost
	if entropyCost < 0 {
		entropyCost = 0
	}

	return Turn[T]{
		Event:       event.New(content, source, cfg.eventOpts...),
		Kind:        kind,
		StatePre:    Fingerprint(cfg.statePre),
		StatePost:   Fingerprint(cfg.statePost),
		Confidence:  confidence,
		EntropyCost: entropyCost,
	}
}

// IsObservable reports whether other agents can observe the turn.
// Only Thought is unobservable.
func (t Turn[T]) IsObservable() bool {
	return t.Kind != Thought
}

// IsBlocking reports whether the turn suspends its producer.
// Only Yield blocks.
func (t Turn[T]) IsBlocking() bool {
	return t.Kind == Yield
}

// IsEffectful reports whether the turn changes the environment.
// Only Action is effectful.
func (t Turn[T]) IsEffectful() bool {
	return t.Kind == Action
}

// RequiresGovernance reports whether the turn is gated by governance policy:
// true for Action and Yield.
func (t Turn[T]) RequiresGovernance() bool {
	return t.Kind == Action || t.Kind == Yield
}
