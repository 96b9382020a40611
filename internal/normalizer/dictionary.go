package normalizer

// Dictionary holds the rewrite tables used by the normalizer. Every
// replacement must itself be stable under all three tables, otherwise
// Preprocess stops being idempotent.
type Dictionary struct {
	Abbreviations    map[string]string `koanf:"abbreviations"`
	Typos            map[string]string `koanf:"typos"`
	Colloquial       map[string]string `koanf:"colloquial"`
	Preserve         []string          `koanf:"preserve"`
	Particles        []string          `koanf:"particles"`
	LocalExpressions []string          `koanf:"local_expressions"`
}

// DefaultPreserve lists words that carry intent and are never rewritten.
var DefaultPreserve = []string{
	"yes", "no", "ok", "help", "job", "work", "pay", "money",
	"time", "when", "how", "what", "where", "who",
}

// DefaultDictionary returns the built-in tables for English chat shorthand
// and Singapore/Malaysia colloquial text.
func DefaultDictionary() Dictionary {
	return Dictionary{
		Abbreviations: map[string]string{
			"u":     "you",
			"ur":    "your",
			"r":     "are",
			"pls":   "please",
			"plz":   "please",
			"thx":   "thanks",
			"tq":    "thank you",
			"ty":    "thank you",
			"idk":   "i do not know",
			"btw":   "by the way",
			"msg":   "message",
			"tmr":   "tomorrow",
			"tmrw":  "tomorrow",
			"tml":   "tomorrow",
			"wat":   "what",
			"wht":   "what",
			"hw":    "how",
			"y":     "why",
			"b4":    "before",
			"asap":  "as soon as possible",
			"nvm":   "never mind",
			"cuz":   "because",
			"coz":   "because",
			"bcos":  "because",
			"abt":   "about",
			"wk":    "week",
			"mins":  "minutes",
			"hr":    "hour",
			"hrs":   "hours",
			"appt":  "appointment",
			"im":    "i am",
			"dont":  "do not",
			"cant":  "cannot",
			"wont":  "will not",
			"didnt": "did not",
			"isnt":  "is not",
			"no":    "number",
			"ok":    "okay",
			"k":     "okay",
		},
		Typos: map[string]string{
			"recieve":      "receive",
			"interveiw":    "interview",
			"intervew":     "interview",
			"inteview":     "interview",
			"schedual":     "schedule",
			"shedule":      "schedule",
			"scedule":      "schedule",
			"verfication":  "verification",
			"verifcation":  "verification",
			"varification": "verification",
			"paymnet":      "payment",
			"payemnt":      "payment",
			"tommorow":     "tomorrow",
			"tomorow":      "tomorrow",
			"tommorrow":    "tomorrow",
			"availible":    "available",
			"avaliable":    "available",
			"calender":     "calendar",
			"appoinment":   "appointment",
			"definately":   "definitely",
			"wierd":        "weird",
			"becuase":      "because",
			"salery":       "salary",
			"accout":       "account",
		},
		Colloquial: map[string]string{
			"dunno":  "do not know",
			"wanna":  "want to",
			"gonna":  "going to",
			"gotta":  "have to",
			"kinda":  "kind of",
			"gimme":  "give me",
			"lemme":  "let me",
			"ya":     "yes",
			"yah":    "yes",
			"yeah":   "yes",
			"yep":    "yes",
			"yup":    "yes",
			"nope":   "no",
			"nah":    "no",
			"boh":    "no",
			"mai":    "do not",
			"shiok":  "great",
			"paiseh": "sorry",
			"makan":  "eat",
			"kena":   "got",
			"jialat": "terrible",
			"alamak": "oh no",
			"walao":  "wow",
			"sian":   "bored",
			"liao":   "already",
			"izzit":  "is it",
			"issit":  "is it",
			"den":    "then",
			"oso":    "also",
			"abit":   "a bit",
			"lah":    "",
			"leh":    "",
			"lor":    "",
			"meh":    "",
			"sia":    "",
			"hor":    "",
		},
		Preserve:  append([]string(nil), DefaultPreserve...),
		Particles: []string{"lah", "leh", "lor", "meh", "sia", "hor"},
		LocalExpressions: []string{
			"shiok", "paiseh", "makan", "kena", "jialat", "alamak", "walao",
			"sian", "liao", "izzit", "issit", "boh", "mai",
			"can or not", "got or not", "bo jio", "on the ball",
		},
	}
}
