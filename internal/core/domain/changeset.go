package domain

// ChangeSet is the per-cycle difference between the discovered source tree
// and the last committed cache.
type ChangeSet struct {
	Added    []InternedString
	Modified []InternedString
	Removed  []InternedString

	// ConfigChanged is set when the site configuration file was added,
	// edited, or removed. Config affects every output's rendering context,
	// so it invalidates the entire cache.
	ConfigChanged bool
}

// Empty reports whether nothing changed since the last committed cache.
func (c *ChangeSet) Empty() bool {
	return len(c.Added) == 0 && len(c.Modified) == 0 && len(c.Removed) == 0 && !c.ConfigChanged
}

// Touched returns all changed source identities regardless of change kind.
// Removed sources are included: outputs built from them must be re-examined
// just like outputs built from edited ones.
func (c *ChangeSet) Touched() []InternedString {
	out := make([]InternedString, 0, len(c.Added)+len(c.Modified)+len(c.Removed))
	out = append(out, c.Added...)
	out = append(out, c.Modified...)
	out = append(out, c.Removed...)
	return out
}
