package language

import (
	"strings"

	xlang "golang.org/x/text/language"
	"golang.org/x/text/language/display"
)

// words maps English language names onto tags for input that is not a code.
var words = map[string]xlang.Tag{
	"english":    xlang.English,
	"spanish":    xlang.Spanish,
	"french":     xlang.French,
	"german":     xlang.German,
	"italian":    xlang.Italian,
	"portuguese": xlang.Portuguese,
	"japanese":   xlang.Japanese,
	"korean":     xlang.Korean,
	"chinese":    xlang.Chinese,
	"russian":    xlang.Russian,
	"arabic":     xlang.Arabic,
	"hindi":      xlang.Hindi,
	"dutch":      xlang.Dutch,
	"polish":     xlang.Polish,
	"swedish":    xlang.Swedish,
	"danish":     xlang.Danish,
	"norwegian":  xlang.Norwegian,
	"finnish":    xlang.Finnish,
	"turkish":    xlang.Turkish,
	"ukrainian":  xlang.Ukrainian,
}

// bibliographic holds ISO 639-2/B codes that differ from the terminology codes
// the tag parser understands.
var bibliographic = map[string]string{
	"alb": "sq",
	"chi": "zh",
	"cze": "cs",
	"dut": "nl",
	"fre": "fr",
	"geo": "ka",
	"ger": "de",
	"gre": "el",
	"ice": "is",
	"per": "fa",
	"rum": "ro",
	"slo": "sk",
	"wel": "cy",
}

// Normalize returns the ISO 639-1 code for input, or false when input is not
// a recognized language.
func Normalize(input string) (string, bool) {
	value := strings.ToLower(strings.TrimSpace(input))
	if value == "" {
		return "", false
	}
	if code, ok := bibliographic[value]; ok {
		return code, true
	}
	tag, ok := words[value]
	if !ok {
		parsed, err := xlang.Parse(strings.ReplaceAll(value, "_", "-"))
		if err != nil {
			return "", false
		}
		tag = parsed
	}
	if tag == xlang.Und {
		return "", false
	}
	base, confidence := tag.Base()
	if confidence == xlang.No {
		return "", false
	}
	// Languages without a two-letter code keep their three-letter form.
	return base.String(), true
}

// DisplayName returns the English name of code, falling back to code itself.
func DisplayName(code string) string {
	tag, err := xlang.Parse(strings.TrimSpace(code))
	if err != nil {
		return code
	}
	if name := display.English.Tags().Name(tag); name != "" {
		return name
	}
	return code
}
