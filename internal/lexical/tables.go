package lexical

// numberWords maps spoken digit strings to the words a target may use for
// them. The first entry is the canonical form.
var numberWords = map[string][]string{
	"0":   {"zero"},
	"1":   {"one"},
	"2":   {"two"},
	"3":   {"three"},
	"4":   {"four"},
	"5":   {"five"},
	"6":   {"six"},
	"7":   {"seven"},
	"8":   {"eight"},
	"9":   {"nine"},
	"10":  {"ten"},
	"11":  {"eleven"},
	"12":  {"twelve"},
	"20":  {"twenty"},
	"100": {"hundred", "one hundred"},
}

// homophones maps a letter to the spellings recognizers commonly produce
// when a child says the letter name.
var homophones = map[string][]string{
	"b": {"be", "bee"},
	"c": {"see", "sea", "si", "ci"},
	"d": {"dee"},
	"f": {"eff"},
	"g": {"jee", "gee"},
	"h": {"aitch", "hey"},
	"i": {"eye"},
	"j": {"jay"},
	"k": {"kay", "key", "cay"},
	"l": {"el", "ell"},
	"m": {"em"},
	"n": {"en"},
	"o": {"oh"},
	"p": {"pee", "pea"},
	"q": {"cue", "queue", "kew"},
	"r": {"are", "ar"},
	"s": {"ess"},
	"t": {"tea", "tee"},
	"u": {"you"},
	"v": {"vee"},
	"w": {"double u", "doubleplay", "doubleyou"},
	"x": {"ex"},
	"y": {"why", "wi"},
	"z": {"zee", "zed"},
}

// NumberWord returns the canonical word for a spoken digit string, if known.
func NumberWord(digits string) (string, bool) {
	words, ok := numberWords[digits]
	if !ok {
		return "", false
	}
	return words[0], true
}

// Homophones returns the aliases registered for letter. The returned slice
// is a copy.
func Homophones(letter string) []string {
	aliases := homophones[compact(Normalize(letter))]
	out := make([]string, len(aliases))
	copy(out, aliases)
	return out
}
