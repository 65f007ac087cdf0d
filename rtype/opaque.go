package rtype

// OpaqueID is an external, address-like key used to converge on a single
// canonical Type across independently compiled modules, per §4.9.5: two
// translation units that each derive the same OpaqueID (typically the
// address of a linker-provided symbol unique to the type, in the
// original; any deterministic uintptr both sides can compute, in this
// port) can share one Type rather than each creating — and disagreeing
// about — their own.
type OpaqueID uintptr

// RegisterOpaque associates id with t. Registering the same id with the
// same Type again is a no-op; registering it with a different Type fails
// with CreateNameExists, since that would silently fork what's supposed to
// be one logical type.
func (c *Context) RegisterOpaque(id OpaqueID, t *Type) CreateResult {
	c.mu.Lock()
	defer c.mu.Unlock()
	if existing, ok := c.opaque[uintptr(id)]; ok {
		if existing != t {
			return CreateNameExists
		}
		return CreateSuccess
	}
	c.opaque[uintptr(id)] = t
	return CreateSuccess
}

// ResolveOpaque looks up a Type previously associated with id.
func (c *Context) ResolveOpaque(id OpaqueID) (*Type, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	t, ok := c.opaque[uintptr(id)]
	return t, ok
}
