// Package i18n provides the user-facing message catalog. Messages are keyed
// and formatted with fmt verbs; an unknown key falls back to the key itself
// so a missing entry is visible but never fatal.
package i18n

import "fmt"

// Message keys.
const (
	KeySessionStatus  = "session.status"  // username, bac, level label, drink count
	KeySessionStarted = "session.started" // username
	KeySessionStopped = "session.stopped" // username
	KeyCheckReply     = "check.reply"     // bac, sampled-at
	KeyCheckNoData    = "check.no_data"
	KeyDrinkLogged    = "drink.logged" // name
	KeyUnknownCommand = "command.unknown"
	KeyNoSession      = "session.none"
	KeyAlreadyRunning = "session.already_running"

	// Qualitative BAC labels.
	KeyLevelSober    = "level.sober"
	KeyLevelBuzzed   = "level.buzzed"
	KeyLevelDrunk    = "level.drunk"
	KeyLevelHammered = "level.hammered"
)

var catalog = map[string]string{
	KeySessionStatus:  "%s is at %.3f BAC (%s) after %d drinks",
	KeySessionStarted: "%s started a drinking session",
	KeySessionStopped: "%s's drinking session has ended. Drink some water!",
	KeyCheckReply:     "Your last estimate was %.3f BAC at %s",
	KeyCheckNoData:    "No BAC estimate yet. Log a drink first.",
	KeyDrinkLogged:    "Logged %s. Cheers!",
	KeyUnknownCommand: "Didn't catch that. Try: start, stop, check, or drink <name>; <abv%%>; <oz>",
	KeyNoSession:      "You don't have a running session.",
	KeyAlreadyRunning: "You already have a running session.",

	KeyLevelSober:    "sober",
	KeyLevelBuzzed:   "buzzed",
	KeyLevelDrunk:    "drunk",
	KeyLevelHammered: "hammered",
}

// Label formats the message for key with args.
func Label(key string, args ...any) string {
	format, ok := catalog[key]
	if !ok {
		return key
	}
	return fmt.Sprintf(format, args...)
}

// LevelKey returns the qualitative label key for a BAC value.
func LevelKey(bac float64) string {
	switch {
	case bac <= 0:
		return KeyLevelSober
	case bac < 0.08:
		return KeyLevelBuzzed
	case bac < 0.20:
		return KeyLevelDrunk
	default:
		return KeyLevelHammered
	}
}
