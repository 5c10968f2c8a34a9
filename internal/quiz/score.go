package quiz

// Tier is a score bucket.
type Tier string

const (
	TierNovice    Tier = "novice"
	TierConfident Tier = "confident"
	TierAllSeeing Tier = "all_seeing"
)

// Badge is the title awarded for a score.
type Badge struct {
	Tier  Tier
	Title string
}

var (
	badgeNovice    = Badge{Tier: TierNovice, Title: "🤓 Ученик."}
	badgeConfident = Badge{Tier: TierConfident, Title: "😏 Уверенный юзер."}
	badgeAllSeeing = Badge{Tier: TierAllSeeing, Title: "😎 Всевидящее око."}
)

// Score adds the optional image bonus to the correct answer count.
func Score(correct int, imageBonus bool) int {
	if imageBonus {
		return correct + 1
	}
	return correct
}

// BadgeFor maps a score to its badge: up to 2 novice, up to 5 confident, above all-seeing.
func BadgeFor(score int) Badge {
	switch {
	case score <= 2:
		return badgeNovice
	case score <= 5:
		return badgeConfident
	default:
		return badgeAllSeeing
	}
}

// Summary is the result of the current attempt.
type Summary struct {
	Attempt int
	Correct int
	Total   int
	Image   bool
	Score   int
	Badge   Badge
}
