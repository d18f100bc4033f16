package core

import "strings"

// IconID identifies one of the fixed category icons.
type IconID string

const (
	IconBriefcase   IconID = "briefcase"
	IconTrendingUp  IconID = "trending-up"
	IconUtensils    IconID = "utensils"
	IconCar         IconID = "car"
	IconGamepad     IconID = "gamepad"
	IconHome        IconID = "home"
	IconShoppingBag IconID = "shopping-bag"
	IconHeartPulse  IconID = "heart-pulse"
	IconHelpCircle  IconID = "help-circle"
)

var iconAssets = map[IconID]string{
	IconBriefcase:   "icons/briefcase.svg",
	IconTrendingUp:  "icons/trending-up.svg",
	IconUtensils:    "icons/utensils.svg",
	IconCar:         "icons/car.svg",
	IconGamepad:     "icons/gamepad-2.svg",
	IconHome:        "icons/home.svg",
	IconShoppingBag: "icons/shopping-bag.svg",
	IconHeartPulse:  "icons/heart-pulse.svg",
	IconHelpCircle:  "icons/help-circle.svg",
}

// ParseIconID maps s onto the closed icon set. Unknown names become IconHelpCircle.
func ParseIconID(s string) IconID {
	id := IconID(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := iconAssets[id]; ok {
		return id
	}
	return IconHelpCircle
}

func (i IconID) Valid() bool {
	_, ok := iconAssets[i]
	return ok
}

// Asset returns the front-end asset path for the icon.
func (i IconID) Asset() string {
	if a, ok := iconAssets[i]; ok {
		return a
	}
	return iconAssets[IconHelpCircle]
}
