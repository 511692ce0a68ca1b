package service

// domainStopwords are environmental-assessment-document boilerplate terms
// that would otherwise dominate every chunk's TF-IDF ranking (C9).
var domainStopwords = map[string]struct{}{
	"project": {}, "projects": {}, "document": {}, "documents": {}, "assessment": {},
	"report": {}, "section": {}, "sections": {}, "page": {}, "pages": {}, "table": {},
	"figure": {}, "appendix": {}, "chapter": {}, "part": {}, "item": {}, "items": {},
	"will": {}, "may": {}, "shall": {}, "would": {}, "could": {}, "should": {}, "must": {},
	"can": {}, "also": {}, "however": {}, "therefore": {}, "furthermore": {},
	"additionally": {}, "respectively": {}, "including": {}, "such": {}, "etc": {},
	"eg": {}, "ie": {}, "see": {}, "refer": {}, "shown": {}, "described": {}, "noted": {},
	"within": {}, "during": {}, "following": {}, "according": {}, "regarding": {}, "concerning": {},
}

// englishStopwords is a standard general-English stopword set, standing in
// for scikit-learn's built-in `stop_words='english'` list.
var englishStopwords = map[string]struct{}{
	"a": {}, "about": {}, "above": {}, "after": {}, "again": {}, "against": {}, "all": {},
	"am": {}, "an": {}, "and": {}, "any": {}, "are": {}, "as": {}, "at": {}, "be": {},
	"because": {}, "been": {}, "before": {}, "being": {}, "below": {}, "between": {}, "both": {},
	"but": {}, "by": {}, "did": {}, "do": {}, "does": {}, "doing": {}, "down": {}, "during": {},
	"each": {}, "few": {}, "for": {}, "from": {}, "further": {}, "had": {}, "has": {}, "have": {},
	"having": {}, "he": {}, "her": {}, "here": {}, "hers": {}, "herself": {}, "him": {}, "himself": {},
	"his": {}, "how": {}, "i": {}, "if": {}, "in": {}, "into": {}, "is": {}, "it": {}, "its": {},
	"itself": {}, "just": {}, "me": {}, "more": {}, "most": {}, "my": {}, "myself": {}, "no": {},
	"nor": {}, "not": {}, "now": {}, "of": {}, "off": {}, "on": {}, "once": {}, "only": {}, "or": {},
	"other": {}, "our": {}, "ours": {}, "ourselves": {}, "out": {}, "over": {}, "own": {}, "s": {},
	"same": {}, "she": {}, "should": {}, "so": {}, "some": {}, "still": {}, "such": {}, "t": {},
	"than": {}, "that": {}, "the": {}, "their": {}, "theirs": {}, "them": {}, "themselves": {},
	"then": {}, "there": {}, "these": {}, "they": {}, "this": {}, "those": {}, "through": {}, "to": {},
	"too": {}, "under": {}, "until": {}, "up": {}, "very": {}, "was": {}, "we": {}, "were": {},
	"what": {}, "when": {}, "where": {}, "which": {}, "while": {}, "who": {}, "whom": {}, "why": {},
	"will": {}, "with": {}, "you": {}, "your": {}, "yours": {}, "yourself": {}, "yourselves": {},
}

func isStopword(word string) bool {
	if _, ok := domainStopwords[word]; ok {
		return true
	}
	_, ok := englishStopwords[word]
	return ok
}
