package service

// glossary maps transliterated-Hindi keywords to the English keywords the
// pattern tables are written against. It is deliberately a flat, standalone
// mapping so translations can be reviewed and versioned independently of the
// classification rules. Substitution happens per token after punctuation is
// stripped; entries whose key contains a space can only match via future
// phrase-level substitution and are kept for completeness.
var glossary = map[string]string{
	"kaunse": "which", "kaun": "who", "kitne": "how many", "kya": "what",
	"students": "students", "bachche": "students", "vidyarthi": "students",
	"homework": "homework", "ghar ka kaam": "homework", "assignment": "homework",
	"quiz": "quiz", "test": "quiz", "pariksha": "quiz",
	"submit": "submitted", "jama": "submitted", "diya": "submitted",
	"nahi": "not", "nahin": "not", "kiya": "done", "hai": "is",
	"grade": "grade", "class": "class", "kaksha": "class",
	"pichhla": "last", "pichhe": "last", "week": "week", "hafta": "week",
	"performance": "performance", "pradarshan": "performance",
	"marks": "score", "ank": "score", "number": "score",
	"dikhao": "show", "dekho": "show", "batao": "tell",
	"list": "list", "suchi": "list", "aane": "upcoming", "wale": "upcoming",
	"sabse": "top", "acche": "good", "best": "best", "highest": "highest",
	"kam": "low", "kharab": "poor", "worst": "worst", "lowest": "lowest",
}

// translateToken resolves a cleaned token through the glossary. The second
// return reports whether a translation applied.
func translateToken(token string) (string, bool) {
	english, ok := glossary[token]
	return english, ok
}
