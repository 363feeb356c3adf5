package dreambot

import (
	"regexp"
)

// TriggerPhrase marks a post as a request to the bot.
const TriggerPhrase = "cc: dreambot"

var triggerRegex = regexp.MustCompile(`(?i)` + regexp.QuoteMeta(TriggerPhrase))

// ShouldTrigger reports whether text contains the trigger phrase, in any letter case.
func ShouldTrigger(text string) bool {
	return triggerRegex.MatchString(text)
}
