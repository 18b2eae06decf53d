package model

// Museum is a purchasable virtual tour in the catalog.  It mirrors a row
// in the `museums` table.
//
// Fields:
//  ID          – primary key identifier.
//  Name        – display name of the museum.
//  Description – long form description shown on the detail page.
//  ImageURL    – cover image.
//  DurationMin – approximate tour length in minutes.
//  PriceCents  – price of a direct purchase in cents.
//  Rating      – rating in tenths of a star (48 = 4.8/5), nil when unrated.
//  TourURL     – panorama or third-party tour location.  Only handed out
//                to users with access.
type Museum struct {
    ID          uint64 `json:"id"`               // museums.id
    Name        string `json:"name"`             // museums.name
    Description string `json:"description"`      // museums.description
    ImageURL    string `json:"image_url"`        // museums.image_url
    DurationMin uint32 `json:"duration_min"`     // museums.duration_min
    PriceCents  int64  `json:"price_cents"`      // museums.price_cents
    Rating      *uint8 `json:"rating,omitempty"` // museums.rating (nullable)
    TourURL     string `json:"-"`                // museums.tour_url
}

// MuseumStat is the per-museum purchase count shown on the public
// analytics page.  Purchases counts direct purchases plus bundle
// purchases whose bundle currently contains the museum.
type MuseumStat struct {
    ID         uint64 `json:"id"`
    Name       string `json:"name"`
    Rating     *uint8 `json:"rating,omitempty"`
    PriceCents int64  `json:"price_cents"`
    Purchases  uint64 `json:"purchases"`
}
