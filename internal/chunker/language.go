package chunker

import "github.com/abadojack/whatlanggo"

// Languages the corpus indexes. Detection defaults to english; french is
// assigned only on a confident match since both FTS configurations are
// queried at search time anyway.
const (
	LangEnglish = "english"
	LangFrench  = "french"
)

// DetectLanguage labels a chunk's text.
func DetectLanguage(text string) string {
	info := whatlanggo.Detect(text)
	if info.Lang == whatlanggo.Fra && info.IsReliable() {
		return LangFrench
	}
	return LangEnglish
}
