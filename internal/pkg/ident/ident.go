package ident

import (
	"fmt"
	"strconv"
	"strings"
	"sync"

	"supplysim/internal/pkg/errs"
)

var (
	ErrInvalidKind       = errs.New("invalid actor kind")
	ErrInvalidInstance   = errs.New("actor instance out of range")
	ErrInvalidRef        = errs.New("malformed actor ref")
	ErrSequenceExhausted = errs.New("request sequence exhausted")
)

// Kind is the tier an actor belongs to. Its numeric value is the leading
// digit of every request id the actor issues, so ids are traceable to their
// issuer without a lookup.
type Kind int

const (
	KindStore     Kind = 1
	KindWarehouse Kind = 2
	KindSupplier  Kind = 3
)

func (k Kind) String() string {
	switch k {
	case KindStore:
		return "store"
	case KindWarehouse:
		return "warehouse"
	case KindSupplier:
		return "supplier"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

func (k Kind) valid() bool {
	return k >= KindStore && k <= KindSupplier
}

func ParseKind(s string) (Kind, error) {
	switch s {
	case "store":
		return KindStore, nil
	case "warehouse":
		return KindWarehouse, nil
	case "supplier":
		return KindSupplier, nil
	default:
		return 0, errs.Mark(errs.Newf("unknown kind %q", s), ErrInvalidKind)
	}
}

const (
	kindBase     = 100_000_000
	instanceBase = 1_000_000

	// MaxInstance bounds instances per kind so the instance digits never
	// collide with the sequence digits.
	MaxInstance = 99
	// MaxSequence is the last request sequence an instance may issue.
	MaxSequence = instanceBase - 1
)

// Ref identifies one actor instance, rendered as "warehouse-2".
type Ref struct {
	kind     Kind
	instance int
}

func NewRef(kind Kind, instance int) (Ref, error) {
	if !kind.valid() {
		return Ref{}, ErrInvalidKind
	}
	if instance < 1 || instance > MaxInstance {
		return Ref{}, errs.Mark(errs.Newf("instance %d not in [1,%d]", instance, MaxInstance), ErrInvalidInstance)
	}
	return Ref{kind: kind, instance: instance}, nil
}

// MustRef is for wiring and tests where the arguments are static.
func MustRef(kind Kind, instance int) Ref {
	r, err := NewRef(kind, instance)
	if err != nil {
		panic(err)
	}
	return r
}

func ParseRef(s string) (Ref, error) {
	i := strings.LastIndexByte(s, '-')
	if i <= 0 || i == len(s)-1 {
		return Ref{}, errs.Mark(errs.Newf("ref %q", s), ErrInvalidRef)
	}
	kind, err := ParseKind(s[:i])
	if err != nil {
		return Ref{}, errs.Mark(err, ErrInvalidRef)
	}
	instance, err := strconv.Atoi(s[i+1:])
	if err != nil {
		return Ref{}, errs.Mark(errs.Wrap(err, "instance"), ErrInvalidRef)
	}
	return NewRef(kind, instance)
}

func (r Ref) Kind() Kind    { return r.kind }
func (r Ref) Instance() int { return r.instance }
func (r Ref) IsZero() bool  { return r.kind == 0 }

func (r Ref) String() string {
	return r.kind.String() + "-" + strconv.Itoa(r.instance)
}

// MarshalText renders the ref in its wire form, e.g. "warehouse-2".
func (r Ref) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

func (r *Ref) UnmarshalText(b []byte) error {
	parsed, err := ParseRef(string(b))
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}

// RequestID encodes its issuer and a per-issuer sequence:
// kind*10^8 + instance*10^6 + sequence. Issuers draw from disjoint bands, so
// ids are globally unique with no coordination.
type RequestID int64

func ComposeRequestID(r Ref, seq int) RequestID {
	return RequestID(int64(r.kind)*kindBase + int64(r.instance)*instanceBase + int64(seq))
}

func (id RequestID) Issuer() (Ref, error) {
	kind := Kind(int64(id) / kindBase)
	instance := int(int64(id) % kindBase / instanceBase)
	return NewRef(kind, instance)
}

func (id RequestID) Sequence() int {
	return int(int64(id) % instanceBase)
}

func (id RequestID) String() string {
	return strconv.FormatInt(int64(id), 10)
}

// Allocator issues request ids for a single actor instance, strictly
// increasing. Instances never share an allocator.
type Allocator struct {
	mu   sync.Mutex
	ref  Ref
	next int
}

func NewAllocator(ref Ref) *Allocator {
	return &Allocator{ref: ref}
}

func (a *Allocator) Ref() Ref {
	return a.ref
}

func (a *Allocator) Next() (RequestID, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.next > MaxSequence {
		return 0, errs.Mark(errs.Newf("issuer %s", a.ref), ErrSequenceExhausted)
	}
	id := ComposeRequestID(a.ref, a.next)
	a.next++
	return id, nil
}
