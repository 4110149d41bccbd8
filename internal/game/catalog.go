package game

// Static card and clue catalogs. The POI table covers the UBC Vancouver
// campus, the default play area.

var ChallengeCatalog = []Challenge{
	{Title: "Library Whisper", Description: "Take a photo of your team inside any library without disturbing anyone.", Tokens: "5", Category: "photo"},
	{Title: "Fountain Finder", Description: "Touch a working water fountain and photograph it.", Tokens: "3", Category: "photo"},
	{Title: "Stairmaster", Description: "Climb four flights of stairs in one building without stopping.", Tokens: "4", Category: "physical"},
	{Title: "Campus Trivia", Description: "Name the founding year of the university. Verify on a plaque.", Tokens: "5", Category: "trivia"},
	{Title: "Statue Salute", Description: "Recreate the pose of any statue or sculpture on campus.", Tokens: "3", Category: "photo"},
	{Title: "Lecture Crasher", Description: "Stand outside a lecture hall while a class is in session and note the course code on the door.", Tokens: "4", Category: "exploration"},
	{Title: "High Roller", Description: "Roll the dice and collect whatever fortune gives you.", Tokens: "Variable", Category: "luck"},
	{Title: "Double or Nothing", Description: "Roll once, earn double the face value.", Tokens: "2 x Dice roll", Category: "luck"},
	{Title: "Garden Gnome", Description: "Find and photograph three different flower species.", Tokens: "4", Category: "photo"},
	{Title: "Bus Stop Bingo", Description: "Visit two different transit stops and record their route numbers.", Tokens: "3", Category: "exploration"},
	{Title: "Alphabet Hunt", Description: "Photograph building signs starting with three consecutive letters of the alphabet.", Tokens: "6", Category: "exploration"},
	{Title: "Lucky Streak", Description: "Roll the dice three times; your reward is the best single roll.", Tokens: "Variable", Category: "luck"},
}

var CurseCatalog = []Curse{
	{ID: "curse-slow-walk", Title: "Curse of the Leisurely Stroll", Description: "Your team may only walk at a slow stroll for the duration.", Penalty: 300, TokenCount: 5, TimeSeconds: 300, Cost: 10},
	{ID: "curse-no-shade", Title: "Curse of the Open Sky", Description: "You may not enter any building for the duration.", Penalty: 420, TokenCount: 7, TimeSeconds: 420, Cost: 10},
	{ID: "curse-single-file", Title: "Curse of the Single File", Description: "Your team must move in single file, arms at your sides.", Penalty: 240, TokenCount: 4, TimeSeconds: 240, Cost: 10},
	{ID: "curse-silence", Title: "Curse of Silence", Description: "No verbal communication within your team for the duration.", Penalty: 300, TokenCount: 5, TimeSeconds: 300, Cost: 10},
	{ID: "curse-tourist", Title: "Curse of the Tourist", Description: "Photograph five different buildings before you may move on.", Penalty: 360, TokenCount: 6, TimeSeconds: 360, Cost: 10},
	{ID: "curse-frozen-feet", Title: "Curse of Frozen Feet", Description: "Your team must stay within 10 meters of your current spot.", Penalty: 480, TokenCount: 8, TimeSeconds: 480, Cost: 10},
}

var ClueTypeCatalog = []ClueType{
	{ID: "exact-location", Name: "Exact Location", Description: "Exact current location on map", Cost: 10},
	{ID: "team-selfie", Name: "Team Selfie", Description: "Selfie of whole team at arm's length including surroundings", Cost: 8, ResponseType: "photo"},
	{ID: "nearest-building", Name: "Nearest Building", Description: "Picture of nearest building (or interior of current building)", Cost: 7, ResponseType: "photo", RangeMeters: 2000},
	{ID: "tallest-building", Name: "Tallest Building View", Description: "Picture of tallest building you can see", Cost: 6, ResponseType: "photo"},
	{ID: "relative-direction", Name: "Relative Direction", Description: "Relative direction to Seekers", Cost: 5},
	{ID: "distance", Name: "Distance", Description: "Distance from Seekers (in walking time)", Cost: 5},
	{ID: "inside-outside", Name: "Inside/Outside", Description: "Are you inside or outside a building?", Cost: 3, RangeMeters: 1000},
	{ID: "closest-street", Name: "Closest Street", Description: "Name of closest named street", Cost: 4, RangeMeters: 1000},
	{ID: "closest-landmark", Name: "Closest Landmark", Description: "Name of closest landmark, in the hider's own words", Cost: 4, ResponseType: "text"},
	{ID: "closest-library", Name: "Closest Library", Description: "Name of closest library", Cost: 4, RangeMeters: 2000},
	{ID: "closest-museum", Name: "Closest Museum", Description: "Name of closest museum/gallery", Cost: 4},
	{ID: "closest-parking", Name: "Closest Parking", Description: "Name of closest parking lot", Cost: 3, RangeMeters: 1000},
}

type PointOfInterest struct {
	Name        string  `json:"name"`
	Type        string  `json:"type"`
	Latitude    float64 `json:"latitude"`
	Longitude   float64 `json:"longitude"`
	Description string  `json:"description"`
}

// POICatalog order matters: nearest-match scans use strict less-than, so
// an exact distance tie resolves to the earlier entry.
var POICatalog = []PointOfInterest{
	{Name: "Irving K. Barber Learning Centre", Type: "library", Latitude: 49.2676, Longitude: -123.2534, Description: "Main library with 24/7 study spaces"},
	{Name: "Buchanan Building", Type: "building", Latitude: 49.2695, Longitude: -123.2544, Description: "Home to Arts and Humanities departments"},
	{Name: "Student Union Building (SUB)", Type: "landmark", Latitude: 49.2663, Longitude: -123.2492, Description: "Student services and food court"},
	{Name: "Koerner Library", Type: "library", Latitude: 49.2681, Longitude: -123.2561, Description: "Humanities and Social Sciences library"},
	{Name: "Chemistry Building", Type: "building", Latitude: 49.2625, Longitude: -123.2529, Description: "Known for chemistry research and labs"},
	{Name: "Physics & Astronomy Building", Type: "building", Latitude: 49.2623, Longitude: -123.2525, Description: "Known for physics research and the TRIUMF facility"},
	{Name: "Museum of Anthropology", Type: "museum", Latitude: 49.2690, Longitude: -123.2591, Description: "World-renowned anthropology museum"},
	{Name: "Rose Garden", Type: "landmark", Latitude: 49.2676, Longitude: -123.2576, Description: "Beautiful garden with seasonal flowers"},
	{Name: "Main Mall", Type: "street", Latitude: 49.2665, Longitude: -123.2520, Description: "Central pedestrian thoroughfare"},
	{Name: "East Mall", Type: "street", Latitude: 49.2660, Longitude: -123.2500, Description: "Eastern campus road"},
}

// ClueTypeByID returns the catalog entry or nil.
func ClueTypeByID(id string) *ClueType {
	for i := range ClueTypeCatalog {
		if ClueTypeCatalog[i].ID == id {
			return &ClueTypeCatalog[i]
		}
	}
	return nil
}

// ChallengeByTitle returns the catalog entry or nil. Titles are the
// challenge deck's identifiers.
func ChallengeByTitle(title string) *Challenge {
	for i := range ChallengeCatalog {
		if ChallengeCatalog[i].Title == title {
			return &ChallengeCatalog[i]
		}
	}
	return nil
}

// ClosestPOI returns the nearest catalog entry of the given type, or nil
// when the type has no entries. Scans in catalog order with strict
// less-than so ties keep the earlier entry.
func ClosestPOI(lat, lon float64, poiType string) *PointOfInterest {
	var closest *PointOfInterest
	var minDist float64
	for i := range POICatalog {
		poi := &POICatalog[i]
		if poi.Type != poiType {
			continue
		}
		d := DistanceMeters(lat, lon, poi.Latitude, poi.Longitude)
		if closest == nil || d < minDist {
			closest = poi
			minDist = d
		}
	}
	return closest
}
