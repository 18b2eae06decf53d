package model

// Bundle is a named collection of museums sold together.  Buying a
// bundle grants access to every museum in its composition for
// ValidityDays days.
type Bundle struct {
    ID           uint64 `json:"id"`            // bundles.id
    Name         string `json:"name"`          // bundles.name
    Description  string `json:"description"`   // bundles.description
    PriceCents   int64  `json:"price_cents"`   // bundles.price_cents
    ValidityDays int    `json:"validity_days"` // bundles.validity_days
}

// BundleMuseum is one (bundle, museum) pair of a bundle's composition.
type BundleMuseum struct {
    ID       uint64 `json:"id"`        // bundle_museums.id
    BundleID uint64 `json:"bundle_id"` // bundle_museums.bundle_id
    MuseumID uint64 `json:"museum_id"` // bundle_museums.museum_id
}
