package main

import "github.com/iliyamo/museum-tour-access/internal/model"

func rating(v uint8) *uint8 { return &v }

var launchMuseums = []model.Museum{
	{
		Name:        "Ssemagulu Museum",
		Description: "Buganda royal regalia, bark cloth and reconstructed Ganda homes, with an oral history archive of recorded elders.",
		ImageURL:    "https://images.unsplash.com/photo-1608889476561-6242cfdbf622?q=80&w=1600&auto=format&fit=crop",
		DurationMin: 90,
		PriceCents:  1500,
		Rating:      rating(45),
		TourURL:     "https://realevr.com/SSEMAGULU%20MUSEUM/",
	},
	{
		Name:        "Museum of Technology",
		Description: "Uganda's technology from iron smelting and talking drums to locally built apps and renewable energy.",
		ImageURL:    "https://images.unsplash.com/photo-1581092446343-379129d150db?q=80&w=1600&auto=format&fit=crop",
		DurationMin: 120,
		PriceCents:  2200,
		Rating:      rating(47),
		TourURL:     "https://realevr.com/MUSEUM%20OF%20TECHNOLOGY/",
	},
	{
		Name:        "Uganda National Museum",
		Description: "East Africa's oldest museum, founded in 1908: archaeology, ethnography and instruments from over fifty ethnic groups.",
		ImageURL:    "https://images.unsplash.com/photo-1555662800-d6429edbad12?q=80&w=1600&auto=format&fit=crop",
		DurationMin: 120,
		PriceCents:  1500,
		Rating:      rating(42),
		TourURL:     "https://ugandawildlife.org/wp-content/uploads/2022/06/hs-2.jpg",
	},
	{
		Name:        "Kabaka's Palace & Idi Amin Torture Chambers",
		Description: "The palace of the Buganda kings beside the underground chambers of the Amin era.",
		ImageURL:    "https://images.unsplash.com/photo-1623866571829-67d5b5c3ebd2?q=80&w=1600&auto=format&fit=crop",
		DurationMin: 90,
		PriceCents:  2000,
		Rating:      rating(38),
		TourURL:     "https://theeagleonline.com.ng/wp-content/uploads/2015/07/buganda-palace-1.jpg",
	},
	{
		Name:        "Ndere Cultural Centre",
		Description: "A living museum of Ugandan dance, music and storytelling with traditional instruments on show.",
		ImageURL:    "https://images.unsplash.com/photo-1574756762862-3ffa7f61c5e5?q=80&w=1600&auto=format&fit=crop",
		DurationMin: 180,
		PriceCents:  2500,
		Rating:      rating(48),
		TourURL:     "https://www.africanmeccasafaris.com/wp-content/uploads/2021/05/Uganda-Travel-Ndere-Cultural-Center-Kampala-Africa-Tours6.jpg",
	},
	{
		Name:        "Kasubi Tombs",
		Description: "UNESCO World Heritage burial grounds of four Buganda kings under the thatched Muzibu-Azaala-Mpanga.",
		ImageURL:    "https://images.unsplash.com/photo-1523240795612-9a054b0db644?q=80&w=1600&auto=format&fit=crop",
		DurationMin: 60,
		PriceCents:  1800,
		Rating:      rating(40),
		TourURL:     "https://whc.unesco.org/uploads/thumbs/site_1022_0004-750-750-20151104162346.jpg",
	},
	{
		Name:        "Igongo Cultural Centre",
		Description: "Ankole heritage: reconstructed homesteads, cattle kraals and royal emblems of western Uganda.",
		ImageURL:    "https://images.unsplash.com/photo-1531321053571-054653dd8a21?q=80&w=1600&auto=format&fit=crop",
		DurationMin: 120,
		PriceCents:  1700,
		Rating:      rating(41),
		TourURL:     "https://pbs.twimg.com/media/CgVo6HoWwAA7PRl.jpg",
	},
}

// firstN limits a bundle to the first N launch museums; zero means all.
var launchBundles = []struct {
	bundle model.Bundle
	firstN int
}{
	{
		bundle: model.Bundle{
			Name:         "Pioneering Museums Pass",
			Description:  "Ssemagulu Museum and Museum of Technology for 30 days.",
			PriceCents:   3000,
			ValidityDays: 30,
		},
		firstN: 2,
	},
	{
		bundle: model.Bundle{
			Name:         "All Access Museums Pass",
			Description:  "Every museum in the catalog for 60 days.",
			PriceCents:   8000,
			ValidityDays: 60,
		},
	},
}
