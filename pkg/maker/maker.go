// Package maker implements the MAKER voting engine: it turns a
// non-deterministic Sampler into a reliable producer of a validated
// structured result by repeatedly sampling, discarding pathological output
// ("red-flagging"), and returning the first canonical answer that is ahead
// of every rival by a fixed margin k.
//
// The algorithm is intentionally small and sequential per invocation — see
// voteTable for the only piece of state it touches.
package maker

import (
	"context"
	"encoding/json"
	"sort"
	"strings"

	"golang.org/x/sync/semaphore"

	"github.com/nnmtech/verisynthos/pkg/apperrors"
)

// TaskInput carries the prompt context and model hint passed to the
// Sampler. ModelHint drives the default red-flag length threshold when
// MaxRawLength is left at zero.
type TaskInput struct {
	Prompt    string
	ModelHint string
	Metadata  map[string]any
}

// Sampler produces one raw text completion for a TaskInput. It may be
// called up to MaxRounds times in sequence by FirstToAheadByK.
type Sampler func(ctx context.Context, input TaskInput) (string, error)

// Parser extracts a value of type T from raw sampler output. It must
// return a *apperrors.Error with Kind apperrors.RedFlag for malformed,
// unparseable, or schema-invalid output — never a bare error.
type Parser[T any] func(raw string) (T, error)

// Params bounds a single FirstToAheadByK invocation.
type Params struct {
	K            int // margin required to declare a winner
	MaxRounds    int
	MaxRawLength int // 0 => derived from TaskInput.ModelHint
}

// premiumMaxRawLength and defaultMaxRawLength are the two red-flag length
// thresholds named in spec.md §4.1: long-context/premium models get more
// room before an output is considered a runaway.
const (
	premiumMaxRawLength = 1200
	defaultMaxRawLength = 750
)

var premiumModelHints = []string{"o1", "claude-3", "opus", "sonnet", "haiku", "grok", "gpt-4", "gemini-1.5", "gemini-2"}

// maxConcurrentInvocations bounds how many FirstToAheadByK calls may be
// sampling at once across the whole process (spec.md §5's MAKER fan-out
// limit) — every façade shares this one semaphore rather than each
// carrying its own bound.
const maxConcurrentInvocations = 10

var invocationSem = semaphore.NewWeighted(maxConcurrentInvocations)

// resolveMaxRawLength derives the red-flag threshold from the model hint
// when the caller did not pin one explicitly.
func resolveMaxRawLength(p Params, input TaskInput) int {
	if p.MaxRawLength > 0 {
		return p.MaxRawLength
	}
	hint := strings.ToLower(input.ModelHint)
	for _, premium := range premiumModelHints {
		if strings.Contains(hint, premium) {
			return premiumMaxRawLength
		}
	}
	return defaultMaxRawLength
}

// voteTable tallies canonical-serialization strings to vote counts. It is
// local to one FirstToAheadByK invocation — there is no shared-state
// concern, and rounds run strictly sequentially so no synchronization is
// needed.
type voteTable map[string]int

// maxOther returns the highest vote count among serializations other than
// the one just produced.
func (v voteTable) maxOther(exclude string) int {
	m := 0
	for k, c := range v {
		if k == exclude {
			continue
		}
		if c > m {
			m = c
		}
	}
	return m
}

// FirstToAheadByK runs sampler up to params.MaxRounds times, red-flagging
// pathological output before handing it to parser, and returns the first
// parsed result whose canonical-serialization vote count is ahead of every
// other candidate's by at least params.K.
//
// It never returns a result whose count is not ahead by at least K (spec.md
// §8 invariant 3): the winning check is the single condition
// `c >= m + k`, computed fresh every round. An earlier revision of this
// algorithm tracked a separate "best so far" candidate alongside the
// winning check; that tracking never affected the outcome (the winning
// check is self-contained) and is intentionally not reproduced here.
func FirstToAheadByK[T any](ctx context.Context, input TaskInput, sampler Sampler, parser Parser[T], params Params) (T, error) {
	var zero T
	if err := invocationSem.Acquire(ctx, 1); err != nil {
		return zero, apperrors.Wrap(apperrors.Cancelled, "maker: waiting for fan-out slot", err)
	}
	defer invocationSem.Release(1)

	if params.K < 1 {
		params.K = 1
	}
	if params.MaxRounds < 1 {
		params.MaxRounds = 1
	}
	maxRaw := resolveMaxRawLength(params, input)

	votes := make(voteTable)
	parsed := make(map[string]T)

	for round := 0; round < params.MaxRounds; round++ {
		if err := ctx.Err(); err != nil {
			return zero, apperrors.Wrap(apperrors.Cancelled, "maker: context cancelled", err)
		}

		raw, err := sampler(ctx, input)
		if err != nil {
			if apperrors.IsCancelled(err) {
				return zero, err
			}
			// Unrecoverable sampler errors propagate; everything else a
			// Sampler implementation wants discarded should instead return
			// an empty/garbage string and a nil error so it red-flags here.
			return zero, apperrors.Wrap(apperrors.TransientIO, "maker: sampler error", err)
		}

		if len(raw) > maxRaw {
			continue // red-flag: oversized
		}

		value, perr := parser(raw)
		if perr != nil {
			continue // red-flag: unparseable or schema-invalid
		}

		canon, cerr := canonicalize(value)
		if cerr != nil {
			continue // red-flag: value cannot be canonicalized deterministically
		}

		votes[canon]++
		parsed[canon] = value

		count := votes[canon]
		margin := votes.maxOther(canon)
		if count >= margin+params.K {
			return value, nil
		}
	}

	return zero, apperrors.New(apperrors.NoConvergence, "maker: exhausted max rounds without a winner")
}

// canonicalize serializes value deterministically: map keys sorted,
// whitespace normalized, full Unicode preserved (json.Marshal still
// escapes <, > and &, identically for every vote). Two
// results are "the same vote" iff their canonical serializations are
// byte-equal.
func canonicalize[T any](value T) (string, error) {
	// Round-trip through a generic representation so map key ordering is
	// deterministic regardless of how T's fields were populated.
	raw, err := json.Marshal(value)
	if err != nil {
		return "", err
	}
	var generic any
	if err := json.Unmarshal(raw, &generic); err != nil {
		return "", err
	}
	normalized, err := marshalSorted(generic)
	if err != nil {
		return "", err
	}
	return normalized, nil
}

// marshalSorted re-encodes a decoded JSON value with map keys sorted at
// every level, since encoding/json already sorts map[string]any keys on
// marshal but we make the guarantee explicit and recursive here for
// nested maps inside slices.
func marshalSorted(v any) (string, error) {
	var sb strings.Builder
	if err := writeSorted(&sb, v); err != nil {
		return "", err
	}
	return sb.String(), nil
}

func writeSorted(sb *strings.Builder, v any) error {
	switch val := v.(type) {
	case map[string]any:
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		sb.WriteByte('{')
		for i, k := range keys {
			if i > 0 {
				sb.WriteByte(',')
			}
			kb, err := json.Marshal(k)
			if err != nil {
				return err
			}
			sb.Write(kb)
			sb.WriteByte(':')
			if err := writeSorted(sb, val[k]); err != nil {
				return err
			}
		}
		sb.WriteByte('}')
		return nil
	case []any:
		sb.WriteByte('[')
		for i, item := range val {
			if i > 0 {
				sb.WriteByte(',')
			}
			if err := writeSorted(sb, item); err != nil {
				return err
			}
		}
		sb.WriteByte(']')
		return nil
	default:
		b, err := json.Marshal(val)
		if err != nil {
			return err
		}
		sb.Write(b)
		return nil
	}
}
