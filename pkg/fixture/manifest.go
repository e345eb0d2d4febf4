package fixture

// Manifest describes a built fixture. The appserver serves it to the client
// runtime and the CLI prints it.
type Manifest struct {
	Routes []ManifestRoute `json:"routes"`
	Assets []string        `json:"assets"`
}

// ManifestRoute is the public view of a Route.
type ManifestRoute struct {
	ID        string `json:"id"`
	Path      string `json:"path"`
	File      string `json:"file"`
	Index     bool   `json:"index,omitempty"`
	HasLoader bool   `json:"hasLoader"`
}

func newManifest(routes []*Route, assets []string) Manifest {
	m := Manifest{
		Routes: make([]ManifestRoute, 0, len(routes)),
		Assets: assets,
	}
	if m.Assets == nil {
		m.Assets = []string{}
	}
	for _, r := range routes {
		m.Routes = append(m.Routes, ManifestRoute{
			ID:        r.ID,
			Path:      r.Path,
			File:      r.File,
			Index:     r.Index,
			HasLoader: r.HasLoader,
		})
	}
	return m
}
