package rtype

import "github.com/joeycumines/substrate/block"

// Member describes one field of a named type: its name, its Type, and its
// byte offset within the named type's layout.
type Member struct {
	Name   string
	Type   *Type
	Offset uintptr
}

// MemberSpec is a member declaration with no offset yet assigned, the input
// to CreateNamedComputed; the Context assigns Offset per LayoutPolicy.
type MemberSpec struct {
	Name string
	Type *Type
}

// LayoutPolicy selects how CreateNamedComputed assigns member offsets.
type LayoutPolicy int

const (
	// AsDeclared lays members out in declaration order, inserting only the
	// padding each member's own alignment requires (the C-struct default).
	AsDeclared LayoutPolicy = iota
	// OptimizeSizeFast reorders members by decreasing alignment (ties
	// broken by decreasing size, then declaration order) before laying
	// them out, minimizing inter-member padding. Members() still reports
	// members in their original declaration order; only the byte offsets
	// change.
	OptimizeSizeFast
)

// CreateNamed registers a named type with explicit, caller-assigned member
// offsets (the original's "declared layout with explicit offsets" entry
// point). Size and Align are derived from the highest member extent and the
// strictest member alignment, then rounded so repeated instances tile
// without misaligning a following instance's first member.
func (c *Context) CreateNamed(name string, members []Member) (*Type, CreateResult) {
	if name == "" {
		return nil, CreateInvalidMembers
	}
	if err := validateMembers(members); err != CreateSuccess {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.named[name]; exists {
		return nil, CreateNameExists
	}

	size, align := extentOf(members)
	t, err := c.buildNamedLocked(name, members, size, align)
	if err != CreateSuccess {
		return nil, err
	}
	c.named[name] = t
	c.namedLive.Add(1)
	return t, CreateSuccess
}

// CreateNamedComputed registers a named type whose member offsets are
// computed by the Context according to policy, rather than supplied by the
// caller.
func (c *Context) CreateNamedComputed(name string, specs []MemberSpec, policy LayoutPolicy) (*Type, CreateResult) {
	if name == "" || len(specs) == 0 {
		return nil, CreateInvalidMembers
	}
	for _, s := range specs {
		if s.Name == "" || s.Type == nil {
			return nil, CreateInvalidMembers
		}
	}
	for i := 0; i < len(specs); i++ {
		for j := i + 1; j < len(specs); j++ {
			if specs[i].Name == specs[j].Name {
				return nil, CreateInvalidMembers
			}
		}
	}

	order := make([]int, len(specs))
	for i := range order {
		order[i] = i
	}
	if policy == OptimizeSizeFast {
		// Stable sort by decreasing alignment, then decreasing size,
		// preserving declaration order among ties.
		for i := 1; i < len(order); i++ {
			for j := i; j > 0 && less(specs[order[j]], specs[order[j-1]]); j-- {
				order[j], order[j-1] = order[j-1], order[j]
			}
		}
	}

	members := make([]Member, len(specs))
	var offset uintptr
	var maxAlign uintptr = 1
	for _, idx := range order {
		s := specs[idx]
		if s.Type.align > maxAlign {
			maxAlign = s.Type.align
		}
		offset = block.AlignUp(offset, s.Type.align)
		members[idx] = Member{Name: s.Name, Type: s.Type, Offset: offset}
		offset += s.Type.size
	}
	size := block.AlignUp(offset, maxAlign)

	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.named[name]; exists {
		return nil, CreateNameExists
	}
	t, err := c.buildNamedLocked(name, members, size, maxAlign)
	if err != CreateSuccess {
		return nil, err
	}
	c.named[name] = t
	c.namedLive.Add(1)
	return t, CreateSuccess
}

// ForceNotCopyable clears t's synthesized copy capability, modeling a
// resource-holding named type with no copy semantics at all (as opposed
// to one whose copy can merely fail at runtime). CreateNamed and
// CreateNamedComputed always synthesize a working copy closure; this
// exists for callers that need to construct the NOT_COPYABLE case the
// rest of this port's lifetime machinery otherwise can't reach.
func ForceNotCopyable(t *Type) {
	t.triviallyCopyable = false
	t.copyFn = nil
}

// ForceCopyFails replaces t's synthesized copy closure with one that always
// reports failure, modeling a type whose copy is attempted but fails at
// runtime (as opposed to ForceNotCopyable's "no copy capability at all").
// Used as a member's type, this lets a caller exercise CopyAny/copyInstance's
// mid-member rollback without panicking: the member's copyFn is non-nil and
// called, it just returns false.
func ForceCopyFails(t *Type) {
	t.triviallyCopyable = false
	t.copyFn = func(dst, src any) bool { return false }
}

// less reports whether a sorts before b under OptimizeSizeFast: strictly
// greater alignment first, then strictly greater size.
func less(a, b MemberSpec) bool {
	if a.Type.align != b.Type.align {
		return a.Type.align > b.Type.align
	}
	return a.Type.size > b.Type.size
}

func validateMembers(members []Member) CreateResult {
	if len(members) == 0 {
		return CreateInvalidMembers
	}
	seen := make(map[string]struct{}, len(members))
	for _, m := range members {
		if m.Name == "" || m.Type == nil {
			return CreateInvalidMembers
		}
		if _, dup := seen[m.Name]; dup {
			return CreateInvalidMembers
		}
		seen[m.Name] = struct{}{}
	}
	return CreateSuccess
}

func extentOf(members []Member) (size, align uintptr) {
	align = 1
	for _, m := range members {
		if end := m.Offset + m.Type.size; end > size {
			size = end
		}
		if m.Type.align > align {
			align = m.Type.align
		}
	}
	return block.AlignUp(size, align), align
}

// buildNamedLocked synthesizes a named Type's aggregate trivial bits, its
// member-wise move/copy/destroy closures, and its PHF-backed fast lookup
// table, per §4.9.4's aggregation rules (a named type is trivially
// movable/copyable/destructible iff every member is) and §4.9.3's
// lookup_fast contract. Callers hold c.mu.
func (c *Context) buildNamedLocked(name string, members []Member, size, align uintptr) (*Type, CreateResult) {
	byName := make(map[string]int, len(members))
	triviallyMovable := true
	triviallyCopyable := true
	triviallyDestructible := true
	keys := make([]string, len(members))
	for i, m := range members {
		byName[m.Name] = i
		keys[i] = m.Name
		triviallyMovable = triviallyMovable && m.Type.triviallyMovable
		triviallyCopyable = triviallyCopyable && m.Type.triviallyCopyable
		triviallyDestructible = triviallyDestructible && m.Type.triviallyDestructible
	}

	phf, err := c.phfRecipe.Construct(keys)
	if err != nil {
		return nil, CreateFailMemory
	}

	t := &Type{
		kind:                  KindNamed,
		size:                  size,
		align:                 align,
		triviallyMovable:      triviallyMovable,
		triviallyCopyable:     triviallyCopyable,
		triviallyDestructible: triviallyDestructible,
		name:                  name,
		members:               members,
		byName:                byName,
		phf:                   phf,
	}

	t.destroy = func(v any) { destroyInstance(t, v) }
	t.move = func(dst, src any) { moveInstance(t, dst, src) }
	t.copyFn = func(dst, src any) bool { return copyInstance(t, dst, src) }

	return t, CreateSuccess
}
