package rtype

// LookupFast resolves name against t's PHF-backed index without verifying
// the result actually carries that name, per §4.9.3's lookup_fast
// contract: O(1) and allocation-free, but returns an unspecified in-range
// Member (a false positive) for a name outside t's member set instead of
// failing. Callers that cannot tolerate a false positive must use Lookup.
func (t *Type) LookupFast(name string) (Member, LookupResult) {
	if t.kind != KindNamed {
		return Member{}, LookupExpectedNamed
	}
	if len(t.members) == 0 {
		return Member{}, LookupNotFound
	}
	idx := t.phf.Lookup(name)
	if idx >= uint64(len(t.members)) {
		return Member{}, LookupNotFound
	}
	return t.members[idx], LookupSuccess
}

// Lookup performs a full, false-positive-free member lookup by name.
func (t *Type) Lookup(name string) (Member, LookupResult) {
	if t.kind != KindNamed {
		return Member{}, LookupExpectedNamed
	}
	idx, ok := t.byName[name]
	if !ok {
		return Member{}, LookupNotFound
	}
	return t.members[idx], LookupSuccess
}

// PreparedMember is a verified, name-resolved handle to a named type's
// member, produced once by PrepareMember and then replayed cheaply against
// any Instance of that type via ResolvePrepared, avoiding a repeated
// string lookup on a hot path — the two-phase "prepare once, resolve many"
// pattern named in §4.9.3.
type PreparedMember struct {
	member Member
}

// Member returns the resolved Member a PreparedMember was built from.
func (p *PreparedMember) Member() Member { return p.member }

// PrepareMember resolves name against t once, returning a PreparedMember
// for repeated use, or a LookupResult other than LookupSuccess if t isn't
// named or has no such member.
func (t *Type) PrepareMember(name string) (*PreparedMember, LookupResult) {
	m, res := t.Lookup(name)
	if res != LookupSuccess {
		return nil, res
	}
	return &PreparedMember{member: m}, LookupSuccess
}

// ResolvePrepared fetches the field a PreparedMember names out of inst,
// without re-resolving the member's name.
func ResolvePrepared(inst *Instance, p *PreparedMember) any {
	return inst.Fields[p.member.Name]
}

// MemberIterator walks a named Type's members in declaration order, the
// reflection surface of §4.9.6.
type MemberIterator struct {
	members []Member
	idx     int
}

// Reflect returns an iterator over t's members in declaration order.
func (t *Type) Reflect() *MemberIterator {
	return &MemberIterator{members: t.members}
}

// Next returns the next member and true, or a zero Member and false once
// the iterator is exhausted.
func (it *MemberIterator) Next() (Member, bool) {
	if it.idx >= len(it.members) {
		return Member{}, false
	}
	m := it.members[it.idx]
	it.idx++
	return m, true
}

// ReflectName looks up a previously created named Type by its name, the
// reverse direction of Type.Name, for callers that only have a name
// string (e.g. deserializing a wire-format type reference).
func (c *Context) ReflectName(name string) (*Type, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	t, ok := c.named[name]
	return t, ok
}
