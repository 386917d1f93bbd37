package ingestmodel

// Manifest is an immutable batch of ingest items. Once stored by the
// artifact store, a manifest is never mutated; it is referenced by an
// opaque artifact key.
type Manifest struct {
	Count int    `json:"count"`
	Items []Item `json:"items"`
}

// NewManifest builds a manifest from items, setting Count from len(items).
func NewManifest(items []Item) Manifest {
	return Manifest{Count: len(items), Items: items}
}

// KeepSet returns the set of DocIDs present in the manifest, used by the
// prune engine as the reconciliation keep-set.
func (m Manifest) KeepSet() map[string]struct{} {
	out := make(map[string]struct{}, len(m.Items))
	for _, it := range m.Items {
		out[it.DocID] = struct{}{}
	}
	return out
}

// Repos returns the distinct metadata.repo values referenced by the
// manifest's items, used by prune scope selector metadata_repo_from_manifest.
func (m Manifest) Repos() []string {
	seen := make(map[string]struct{})
	var out []string
	for _, it := range m.Items {
		r := it.MetaString(MetaRepo)
		if r == "" {
			continue
		}
		if _, ok := seen[r]; ok {
			continue
		}
		seen[r] = struct{}{}
		out = append(out, r)
	}
	return out
}
