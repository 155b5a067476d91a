package model

import "time"

type Rarity string

const (
	RarityCommon    Rarity = "common"
	RarityUncommon  Rarity = "uncommon"
	RarityRare      Rarity = "rare"
	RarityLegendary Rarity = "legendary"
)

// Achievement is the catalogue entry shown on dashboards, earned or not.
type Achievement struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Icon        string `json:"icon"`
	Rarity      Rarity `json:"rarity"`
}

// UnlockedAchievement is a catalogue entry together with when it was earned.
type UnlockedAchievement struct {
	Achievement
	EarnedAt time.Time `json:"earnedAt"`
}
