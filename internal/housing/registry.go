package housing

// Registry resolves the remote provider for a country URI key. Selection is
// always explicit per request; there is no process-wide default country.
type Registry struct {
	providers map[string]Provider
}

// NewRegistry creates a registry holding the given providers, keyed by their
// country key.
func NewRegistry(providers ...Provider) *Registry {
	r := &Registry{providers: make(map[string]Provider, len(providers))}
	for _, p := range providers {
		r.Register(p)
	}
	return r
}

// Register adds or replaces the provider for its country key.
func (r *Registry) Register(p Provider) {
	r.providers[p.CountryKey()] = p
}

// Lookup returns the provider registered for the country key, if any.
func (r *Registry) Lookup(countryKey string) (Provider, bool) {
	p, ok := r.providers[countryKey]
	return p, ok
}
