// Package object implements the interned object store (IOS): a generic
// facility producing reference-counted, value-equal objects deduplicated
// through a hash table keyed by caller-supplied equality and hash
// functions. See SPEC_FULL.md §4.1.
//
// A Context is registered once per logical payload type at startup and
// destroyed at shutdown (Finish); contexts are never created lazily so
// shutdown stays deterministic (SPEC_FULL.md §9, "Global object
// contexts").
package object

import (
	"fmt"
	"sync"

	"github.com/route-beacon/ribd/internal/riberr"
)

// Ops is the per-type context: init/finish are required, dup/equal/hashKey
// are optional except that equal is required whenever hashKey is set
// (spec invariant).
type Ops[T any] struct {
	// Init zero-initializes a freshly allocated payload.
	Init func(payload *T)
	// Finish releases any resources owned by payload. Called when the
	// last reference is dropped, or when a floating duplicate loses the
	// coalescing race in Ref.
	Finish func(payload *T)
	// Dup deep-copies src into dst. Required for Dup/GetMutable.
	Dup func(dst, src *T)
	// Equal is the semantic-equality predicate used for interning.
	// Required whenever HashKey is set.
	Equal func(a, b *T) bool
	// HashKey computes a (possibly weak) hash for bucketing. When nil,
	// the context never interns: Ref only bumps a refcount.
	HashKey func(payload *T) uint64
}

// Context is a process-wide registry for one payload type, guarding a
// hash table of cached objects.
type Context[T any] struct {
	tag        string
	ops        Ops[T]
	concurrent bool

	mu      sync.Mutex
	buckets map[uint64][]*Object[T]
	cached  uint64
}

// Object is the interned handle: a refcount, a back-pointer to its
// context, and the payload. Refcount == 0 means floating (uncached).
type Object[T any] struct {
	refcount uint32
	ctx      any // *Context[T]; stored as any to avoid generic field cycles
	Payload  T
}

var registry sync.Map // tag string -> any (*Context[T])

// Init registers a per-type context under tag. It fails if Init or Finish
// is unset, or if HashKey is set without Equal. Init is idempotent per
// logical type: calling it again with the same tag returns the existing
// context, provided the payload type matches.
func Init[T any](tag string, ops Ops[T], concurrent bool) (*Context[T], error) {
	if ops.Init == nil || ops.Finish == nil {
		return nil, fmt.Errorf("object: context %q requires Init and Finish", tag)
	}
	if ops.HashKey != nil && ops.Equal == nil {
		return nil, fmt.Errorf("object: context %q sets HashKey without Equal", tag)
	}

	if v, ok := registry.Load(tag); ok {
		ctx, ok := v.(*Context[T])
		if !ok {
			return nil, fmt.Errorf("object: context %q already registered with a different payload type", tag)
		}
		return ctx, nil
	}

	ctx := &Context[T]{
		tag:        tag,
		ops:        ops,
		concurrent: concurrent,
		buckets:    make(map[uint64][]*Object[T]),
	}
	actual, loaded := registry.LoadOrStore(tag, ctx)
	if loaded {
		return actual.(*Context[T]), nil
	}
	return ctx, nil
}

// Finish destroys the context's registration. Callers must have already
// dereferenced every outstanding object; Finish does not walk the table
// calling payload Finish itself.
func Finish[T any](ctx *Context[T]) {
	registry.Delete(ctx.tag)
	ctx.mu.Lock()
	ctx.buckets = make(map[uint64][]*Object[T])
	ctx.cached = 0
	ctx.mu.Unlock()
}

func (c *Context[T]) lock() {
	if c.concurrent {
		c.mu.Lock()
	}
}

func (c *Context[T]) unlock() {
	if c.concurrent {
		c.mu.Unlock()
	}
}

// New returns a floating object (refcount 0), zero-initialized then
// passed through the context's Init.
func New[T any](ctx *Context[T]) *Object[T] {
	obj := &Object[T]{ctx: ctx}
	ctx.ops.Init(&obj.Payload)
	return obj
}

// Ref interns obj: if the context has a hash function, it looks up an
// equal cached object. If one exists, obj is discarded via Finish and the
// cached object is returned; otherwise obj is inserted. Either way the
// refcount of the surviving object is incremented. Without a hash
// function, Ref just increments obj's own refcount.
func Ref[T any](ctx *Context[T], obj *Object[T]) *Object[T] {
	if ctx.ops.HashKey == nil {
		obj.refcount++
		return obj
	}

	ctx.lock()
	defer ctx.unlock()

	key := ctx.ops.HashKey(&obj.Payload)
	bucket := ctx.buckets[key]
	for _, cand := range bucket {
		if ctx.ops.Equal(&cand.Payload, &obj.Payload) {
			if cand != obj {
				ctx.ops.Finish(&obj.Payload)
			}
			cand.refcount++
			return cand
		}
	}

	ctx.buckets[key] = append(bucket, obj)
	ctx.cached++
	obj.refcount++
	return obj
}

// Deref decrements obj's refcount; when it reaches zero, obj is removed
// from the hash table (if cached) and its payload is finalized.
func Deref[T any](ctx *Context[T], obj *Object[T]) {
	if obj == nil {
		return
	}

	ctx.lock()
	defer ctx.unlock()

	if obj.refcount == 0 {
		riberr.Invariant("object.Deref", fmt.Errorf("deref of object with zero refcount"))
		return
	}
	obj.refcount--
	if obj.refcount > 0 {
		return
	}

	if ctx.ops.HashKey != nil {
		key := ctx.ops.HashKey(&obj.Payload)
		bucket := ctx.buckets[key]
		for i, cand := range bucket {
			if cand == obj {
				bucket[i] = bucket[len(bucket)-1]
				ctx.buckets[key] = bucket[:len(bucket)-1]
				ctx.cached--
				break
			}
		}
	}
	ctx.ops.Finish(&obj.Payload)
}

// Discard finalizes a floating object (refcount 0) that was never
// interned — used to tear down partial allocations on an error path, per
// SPEC_FULL.md §7 ("partial allocations ... are torn down before
// returning absent").
func Discard[T any](ctx *Context[T], obj *Object[T]) {
	if obj == nil {
		return
	}
	if obj.refcount != 0 {
		riberr.Invariant("object.Discard", fmt.Errorf("discard of a referenced object"))
		return
	}
	ctx.ops.Finish(&obj.Payload)
}

// Dup allocates a fresh floating object and deep-copies payload into it
// via the context's Dup. It fails if Dup is unset.
func Dup[T any](ctx *Context[T], obj *Object[T]) (*Object[T], error) {
	if ctx.ops.Dup == nil {
		return nil, fmt.Errorf("object: context %q has no Dup", ctx.tag)
	}
	dup := &Object[T]{ctx: ctx}
	ctx.ops.Dup(&dup.Payload, &obj.Payload)
	return dup, nil
}

// GetMutable is the copy-on-write hook: if obj is floating (refcount 0)
// it is returned unchanged; otherwise a fresh Dup is returned for the
// caller to edit before re-interning via Ref.
func GetMutable[T any](ctx *Context[T], obj *Object[T]) (*Object[T], error) {
	if obj.refcount == 0 {
		return obj, nil
	}
	return Dup(ctx, obj)
}

// WithMutable applies fn to a mutable view of *slot (copy-on-write if
// shared), re-interns the result, and installs it back into *slot via
// ReplaceRef. It is the single edit entry point SPEC_FULL.md §9 calls
// for: callers never hold a raw mutable pointer into a shared object.
func WithMutable[T any](ctx *Context[T], slot **Object[T], fn func(*T)) error {
	mutable, err := GetMutable(ctx, *slot)
	if err != nil {
		return err
	}
	fn(&mutable.Payload)
	next := Ref(ctx, mutable)
	ReplaceRef(ctx, slot, next)
	return nil
}

// ReplaceRef derefs *slot (if non-nil) and installs next in its place.
// This is the take-a-slot API SPEC_FULL.md §9 calls for in place of the
// original source's object_ref_swap, which mutated a local parameter
// instead of the caller's storage.
func ReplaceRef[T any](ctx *Context[T], slot **Object[T], next *Object[T]) {
	if *slot != nil {
		Deref(ctx, *slot)
	}
	*slot = next
}

// Iterate walks all cached entries in unspecified order. fn must not
// mutate the set.
func Iterate[T any](ctx *Context[T], fn func(*Object[T])) {
	ctx.lock()
	defer ctx.unlock()
	for _, bucket := range ctx.buckets {
		for _, obj := range bucket {
			fn(obj)
		}
	}
}

// NumCached returns the number of distinct cached objects.
func NumCached[T any](ctx *Context[T]) uint64 {
	ctx.lock()
	defer ctx.unlock()
	return ctx.cached
}

// Refcount returns obj's current refcount, for tests and diagnostics.
func (o *Object[T]) Refcount() uint32 { return o.refcount }
